package handler

import (
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/dukerupert/fileflow/internal/auth"
	"github.com/dukerupert/fileflow/internal/entitlement"
	"github.com/dukerupert/fileflow/internal/flash"
	"github.com/dukerupert/fileflow/internal/metrics"
	"github.com/dukerupert/fileflow/internal/payment"
	"github.com/dukerupert/fileflow/internal/store"
)

const plansPath = "/payments/plans"

type PaymentHandler struct {
	payments *payment.Service
	plans    *store.PlanStore
	resolver *entitlement.Resolver
	metrics  *metrics.Metrics
	baseURL  string
	view
}

func NewPaymentHandler(
	payments *payment.Service,
	plans *store.PlanStore,
	resolver *entitlement.Resolver,
	m *metrics.Metrics,
	baseURL string,
	templates map[string]*template.Template,
	flashes *flash.Store,
	logger *slog.Logger,
) *PaymentHandler {
	return &PaymentHandler{
		payments: payments,
		plans:    plans,
		resolver: resolver,
		metrics:  m,
		baseURL:  strings.TrimRight(baseURL, "/"),
		view:     view{templates: templates, flash: flashes, logger: logger},
	}
}

// Plans lists the active plans with the caller's resolved status.
func (h *PaymentHandler) Plans(w http.ResponseWriter, r *http.Request) {
	status, ok := h.status(w, r)
	if !ok {
		return
	}
	plans, err := h.plans.ListActive()
	if err != nil {
		h.logger.Error("list plans", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	h.render(w, r, "plans.html", map[string]any{
		"Title":  "Подписка",
		"Plans":  plans,
		"Status": status,
	})
}

// CreateSession starts a checkout for the plan and redirects to it.
func (h *PaymentHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	planID, err := strconv.ParseInt(r.PathValue("planID"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	user := auth.User(r.Context())

	url, err := h.payments.StartCheckout(r.Context(), user, planID,
		h.baseURL+"/payments/success?session_id={CHECKOUT_SESSION_ID}",
		h.baseURL+"/payments/cancel",
	)
	switch {
	case errors.Is(err, payment.ErrPlanNotFound):
		h.metrics.CheckoutsTotal.WithLabelValues("plan_not_found").Inc()
		http.NotFound(w, r)
	case errors.Is(err, payment.ErrAlreadySubscribed):
		h.metrics.CheckoutsTotal.WithLabelValues("already_subscribed").Inc()
		h.notify(w, r, plansPath, flash.Warning, "У вас уже есть активная подписка!")
	case err != nil:
		h.metrics.CheckoutsTotal.WithLabelValues("error").Inc()
		h.logger.Error("start checkout", "user_id", user.ID, "plan_id", planID, "error", err)
		h.notify(w, r, plansPath, flash.Error, "Не удалось создать платёжную сессию. Попробуйте позже.")
	default:
		h.metrics.CheckoutsTotal.WithLabelValues("ok").Inc()
		http.Redirect(w, r, url, http.StatusSeeOther)
	}
}

// Success confirms the checkout named by session_id.
func (h *PaymentHandler) Success(w http.ResponseWriter, r *http.Request) {
	sub, err := h.payments.ConfirmPayment(r.Context(), r.URL.Query().Get("session_id"))
	switch {
	case errors.Is(err, payment.ErrNoSession):
		h.metrics.ConfirmationsTotal.WithLabelValues("no_session").Inc()
		h.notify(w, r, plansPath, flash.Error, "Не указан идентификатор платёжной сессии.")
	case errors.Is(err, payment.ErrNotPaid):
		h.metrics.ConfirmationsTotal.WithLabelValues("not_paid").Inc()
		h.notify(w, r, plansPath, flash.Error, "Платёж не был завершён.")
	case err != nil:
		h.metrics.ConfirmationsTotal.WithLabelValues("error").Inc()
		h.logger.Error("confirm payment", "error", err)
		h.notify(w, r, plansPath, flash.Error, "Ошибка при обработке платежа. Обратитесь в поддержку.")
	default:
		h.metrics.ConfirmationsTotal.WithLabelValues("ok").Inc()
		h.render(w, r, "success.html", map[string]any{
			"Title":        "Оплата прошла успешно",
			"Subscription": sub,
		})
	}
}

func (h *PaymentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "cancel.html", map[string]any{"Title": "Оплата отменена"})
}

func (h *PaymentHandler) Status(w http.ResponseWriter, r *http.Request) {
	status, ok := h.status(w, r)
	if !ok {
		return
	}
	history, err := h.payments.History(auth.User(r.Context()))
	if err != nil {
		h.logger.Error("load subscription history", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	h.render(w, r, "status.html", map[string]any{
		"Title":   "Статус подписки",
		"Status":  status,
		"History": history,
	})
}

func (h *PaymentHandler) status(w http.ResponseWriter, r *http.Request) (entitlement.Status, bool) {
	status, err := h.resolver.Resolve(auth.User(r.Context()))
	if err != nil {
		h.logger.Error("resolve subscription", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return status, false
	}
	return status, true
}
