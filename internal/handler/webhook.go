package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/dukerupert/fileflow/internal/metrics"
	"github.com/dukerupert/fileflow/internal/payment"
)

// maxWebhookBody caps webhook payloads.
const maxWebhookBody = 65536

type WebhookHandler struct {
	payments *payment.Service
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func NewWebhookHandler(payments *payment.Service, m *metrics.Metrics, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{payments: payments, metrics: m, logger: logger}
}

// HandleStripeWebhook verifies the delivery and acknowledges it. Subscriptions
// are activated on the success page, not here.
func (h *WebhookHandler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.metrics.WebhookEventsTotal.WithLabelValues("invalid").Inc()
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	event, err := h.payments.VerifyWebhook(body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.metrics.WebhookEventsTotal.WithLabelValues("invalid").Inc()
		if !errors.Is(err, payment.ErrInvalidWebhook) {
			h.logger.Error("verify webhook", "error", err)
		}
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	h.metrics.WebhookEventsTotal.WithLabelValues("ok").Inc()
	h.logger.Info("webhook received", "event_id", event.ID, "type", event.Type)
	w.WriteHeader(http.StatusOK)
}
