package server

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/fileflow/internal/access"
	"github.com/dukerupert/fileflow/internal/blob"
	"github.com/dukerupert/fileflow/internal/entitlement"
	"github.com/dukerupert/fileflow/internal/flash"
	"github.com/dukerupert/fileflow/internal/handler"
	"github.com/dukerupert/fileflow/internal/metrics"
	"github.com/dukerupert/fileflow/internal/middleware"
	"github.com/dukerupert/fileflow/internal/payment"
	"github.com/dukerupert/fileflow/internal/store"
	"github.com/dukerupert/fileflow/internal/upload"
	"github.com/dukerupert/fileflow/internal/web"
)

// Config carries the settings the HTTP layer needs.
type Config struct {
	BaseURL         string
	SessionSecret   []byte
	SecureCookies   bool
	StaffFileAccess bool
}

type Server struct {
	accountH     *handler.AccountHandler
	fileH        *handler.FileHandler
	paymentH     *handler.PaymentHandler
	webhookH     *handler.WebhookHandler
	userStore    *store.UserStore
	sessionStore *store.SessionStore
	rateLimiter  *middleware.RateLimiter
	metrics      *metrics.Metrics
	logger       *slog.Logger
}

// route is one entry of the routing table.
type route struct {
	pattern   string
	handler   http.HandlerFunc
	protected bool
	limited   bool
}

func New(cfg Config, db *sql.DB, blobs blob.Store, processor payment.Processor, m *metrics.Metrics, logger *slog.Logger) (*Server, error) {
	templates, err := web.Templates()
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}

	userStore := store.NewUserStore(db)
	sessionStore := store.NewSessionStore(db)
	fileStore := store.NewFileStore(db)
	planStore := store.NewPlanStore(db)
	subscriptionStore := store.NewSubscriptionStore(db)

	resolver := entitlement.NewResolver(subscriptionStore)
	flashes := flash.NewStore(cfg.SessionSecret, cfg.SecureCookies, logger.With("component", "flash"))
	policy := access.Policy{StaffOverride: cfg.StaffFileAccess}

	uploads := upload.NewService(fileStore, blobs, resolver, policy, logger.With("component", "upload"))
	payments := payment.NewService(planStore, subscriptionStore, userStore, resolver, processor, logger.With("component", "payment"))

	return &Server{
		accountH:     handler.NewAccountHandler(userStore, sessionStore, fileStore, resolver, m, cfg.SecureCookies, templates, flashes, logger.With("component", "account")),
		fileH:        handler.NewFileHandler(uploads, resolver, m, templates, flashes, logger.With("component", "file")),
		paymentH:     handler.NewPaymentHandler(payments, planStore, resolver, m, cfg.BaseURL, templates, flashes, logger.With("component", "payment_handler")),
		webhookH:     handler.NewWebhookHandler(payments, m, logger.With("component", "webhook")),
		userStore:    userStore,
		sessionStore: sessionStore,
		rateLimiter:  middleware.NewRateLimiter(),
		metrics:      m,
		logger:       logger,
	}, nil
}

func (s *Server) routes() []route {
	return []route{
		// Files
		{pattern: "GET /{$}", handler: s.fileH.Index, protected: true},
		{pattern: "POST /{$}", handler: s.fileH.Upload, protected: true},
		{pattern: "GET /file/all", handler: s.fileH.All, protected: true},
		{pattern: "POST /file/all/{slug}/delete", handler: s.fileH.DeleteFromAll, protected: true},
		{pattern: "GET /file/{slug}", handler: s.fileH.Detail, protected: true},
		{pattern: "GET /file/{slug}/download", handler: s.fileH.Download, protected: true},
		{pattern: "GET /file/{slug}/preview", handler: s.fileH.Preview, protected: true},
		{pattern: "POST /file/{slug}/delete", handler: s.fileH.Delete, protected: true},

		// Accounts
		{pattern: "GET /accounts/register", handler: s.accountH.RegisterPage},
		{pattern: "POST /accounts/register", handler: s.accountH.Register, limited: true},
		{pattern: "GET /accounts/login", handler: s.accountH.LoginPage},
		{pattern: "POST /accounts/login", handler: s.accountH.Login, limited: true},
		{pattern: "POST /accounts/logout", handler: s.accountH.Logout, protected: true},
		{pattern: "GET /accounts/profile", handler: s.accountH.Profile, protected: true},

		// Payments
		{pattern: "GET /payments/plans", handler: s.paymentH.Plans, protected: true},
		{pattern: "POST /payments/create-session/{planID}", handler: s.paymentH.CreateSession, protected: true},
		{pattern: "GET /payments/success", handler: s.paymentH.Success, protected: true},
		{pattern: "GET /payments/cancel", handler: s.paymentH.Cancel, protected: true},
		{pattern: "GET /payments/status", handler: s.paymentH.Status, protected: true},
		{pattern: "POST /payments/webhook", handler: s.webhookH.HandleStripeWebhook},
	}
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()
	for _, rt := range s.routes() {
		var h http.Handler = rt.handler
		if rt.limited {
			h = s.rateLimitedHandler(h)
		}
		if rt.protected {
			h = middleware.RequireAuth(h)
		}
		mux.Handle(rt.pattern, middleware.Instrument(s.metrics, rt.pattern, h))
	}
	mux.HandleFunc("GET /health", s.healthHandler)
	mux.Handle("GET /metrics", s.metrics.Handler())

	loadSession := middleware.LoadSession(s.sessionStore, s.userStore)
	return middleware.RequestLogger(s.logger.With("component", "http"))(loadSession(mux))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.Handler) http.Handler {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	return middleware.RateLimit(s.rateLimiter, keyFunc, 10, time.Minute)(h)
}
