package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the application collectors and the registry they live in.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	UploadsTotal       *prometheus.CounterVec
	UploadedBytesTotal prometheus.Counter
	DownloadsTotal     prometheus.Counter
	CheckoutsTotal     *prometheus.CounterVec
	ConfirmationsTotal *prometheus.CounterVec
	WebhookEventsTotal *prometheus.CounterVec
	LoginAttemptsTotal *prometheus.CounterVec
}

// New creates the collectors and registers them, along with the Go and
// process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Current number of HTTP requests in flight",
			},
		),
		UploadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fileflow_uploads_total",
				Help: "File uploads by result",
			},
			[]string{"result"},
		),
		UploadedBytesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "fileflow_uploaded_bytes_total",
				Help: "Bytes accepted by successful uploads",
			},
		),
		DownloadsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "fileflow_downloads_total",
				Help: "Files streamed to clients",
			},
		),
		CheckoutsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fileflow_checkouts_total",
				Help: "Checkout session attempts by result",
			},
			[]string{"result"},
		),
		ConfirmationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fileflow_payment_confirmations_total",
				Help: "Payment confirmations by result",
			},
			[]string{"result"},
		),
		WebhookEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fileflow_webhook_events_total",
				Help: "Webhook deliveries by result",
			},
			[]string{"result"},
		),
		LoginAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fileflow_login_attempts_total",
				Help: "Login attempts by result",
			},
			[]string{"result"},
		),
	}

	m.registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.UploadsTotal,
		m.UploadedBytesTotal,
		m.DownloadsTotal,
		m.CheckoutsTotal,
		m.ConfirmationsTotal,
		m.WebhookEventsTotal,
		m.LoginAttemptsTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
