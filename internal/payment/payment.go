// Package payment orchestrates checkout sessions with the payment processor
// and turns paid sessions into subscriptions.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/dukerupert/fileflow/internal/model"
	"github.com/dukerupert/fileflow/internal/store"
)

// Metadata keys attached to every checkout session.
const (
	MetaUserID = "user_id"
	MetaPlanID = "plan_id"
)

var (
	ErrPlanNotFound      = errors.New("plan not found")
	ErrAlreadySubscribed = errors.New("user already has an active subscription")
	ErrNotPaid           = errors.New("checkout session is not paid")
	ErrInvalidMetadata   = errors.New("checkout session metadata is invalid")
	ErrUserNotFound      = errors.New("user not found")
	ErrNoSession         = errors.New("missing checkout session id")
	ErrInvalidWebhook    = errors.New("invalid webhook payload or signature")
)

// CheckoutRequest describes a one-off payment for a plan.
type CheckoutRequest struct {
	Plan          model.SubscriptionPlan
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
	Metadata      map[string]string
}

// CheckoutSession is the processor's view of a checkout.
type CheckoutSession struct {
	ID             string
	URL            string
	Paid           bool
	SubscriptionID string
	Metadata       map[string]string
}

// WebhookEvent is a verified processor event.
type WebhookEvent struct {
	ID   string
	Type string
}

// Processor is the payment provider.
type Processor interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, id string) (*CheckoutSession, error)
	CreateRecurringPrice(ctx context.Context, plan model.SubscriptionPlan) (string, error)
	VerifyWebhook(payload []byte, signature string) (WebhookEvent, error)
}

type PlanRepository interface {
	GetByID(id int64) (*model.SubscriptionPlan, error)
	UpdateStripePriceID(id int64, priceID string) error
}

type SubscriptionRepository interface {
	Create(p store.CreateSubscriptionParams) (*model.UserSubscription, error)
	CountBySession(sessionID string) (int, error)
	ListByUser(userID int64) ([]model.UserSubscription, error)
}

type UserRepository interface {
	GetByID(id int64) (*model.User, error)
	SetPlan(id int64, plan model.Plan) error
}

// CurrentFinder finds a user's current subscription without any fallbacks.
type CurrentFinder interface {
	Current(user *model.User) (*model.UserSubscription, error)
}

type Service struct {
	plans     PlanRepository
	subs      SubscriptionRepository
	users     UserRepository
	current   CurrentFinder
	processor Processor
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(plans PlanRepository, subs SubscriptionRepository, users UserRepository, current CurrentFinder, processor Processor, logger *slog.Logger) *Service {
	return &Service{
		plans:     plans,
		subs:      subs,
		users:     users,
		current:   current,
		processor: processor,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *Service) activePlan(planID int64) (*model.SubscriptionPlan, error) {
	plan, err := s.plans.GetByID(planID)
	if err != nil {
		return nil, fmt.Errorf("get plan: %w", err)
	}
	if plan == nil || !plan.IsActive {
		return nil, ErrPlanNotFound
	}
	return plan, nil
}

// StartCheckout creates a processor session for plan and returns its URL.
// Only a real current subscription blocks checkout; the plan flag does not.
func (s *Service) StartCheckout(ctx context.Context, user *model.User, planID int64, successURL, cancelURL string) (string, error) {
	plan, err := s.activePlan(planID)
	if err != nil {
		return "", err
	}

	sub, err := s.current.Current(user)
	if err != nil {
		return "", err
	}
	if sub != nil {
		return "", ErrAlreadySubscribed
	}

	sess, err := s.processor.CreateCheckoutSession(ctx, CheckoutRequest{
		Plan:          *plan,
		CustomerEmail: user.Email,
		SuccessURL:    successURL,
		CancelURL:     cancelURL,
		Metadata: map[string]string{
			MetaUserID: strconv.FormatInt(user.ID, 10),
			MetaPlanID: strconv.FormatInt(plan.ID, 10),
		},
	})
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}

	s.logger.Info("checkout session created", "user_id", user.ID, "plan_id", plan.ID, "session_id", sess.ID)
	return sess.URL, nil
}

// ConfirmPayment activates the subscription paid for in the given session.
// Each call on a paid session records a new subscription row.
func (s *Service) ConfirmPayment(ctx context.Context, sessionID string) (*model.UserSubscription, error) {
	if sessionID == "" {
		return nil, ErrNoSession
	}
	sess, err := s.processor.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get checkout session: %w", err)
	}
	if !sess.Paid {
		return nil, ErrNotPaid
	}

	userID, err := strconv.ParseInt(sess.Metadata[MetaUserID], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: user_id %q", ErrInvalidMetadata, sess.Metadata[MetaUserID])
	}
	planID, err := strconv.ParseInt(sess.Metadata[MetaPlanID], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: plan_id %q", ErrInvalidMetadata, sess.Metadata[MetaPlanID])
	}

	user, err := s.users.GetByID(userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	plan, err := s.plans.GetByID(planID)
	if err != nil {
		return nil, fmt.Errorf("get plan: %w", err)
	}
	if plan == nil {
		return nil, ErrPlanNotFound
	}

	prior, err := s.subs.CountBySession(sess.ID)
	if err != nil {
		return nil, fmt.Errorf("count session subscriptions: %w", err)
	}
	if prior > 0 {
		s.logger.Warn("checkout session already confirmed", "session_id", sess.ID, "user_id", user.ID, "prior_subscriptions", prior)
	}

	now := s.now()
	sub, err := s.subs.Create(store.CreateSubscriptionParams{
		UserID:               user.ID,
		PlanID:               plan.ID,
		StripeSubscriptionID: sess.SubscriptionID,
		StripeSessionID:      sess.ID,
		Status:               model.SubscriptionStatusActive,
		StartDate:            now,
		EndDate:              now.AddDate(0, 0, plan.DurationDays),
	})
	if err != nil {
		return nil, fmt.Errorf("create subscription: %w", err)
	}
	if err := s.users.SetPlan(user.ID, model.PlanPremium); err != nil {
		return nil, fmt.Errorf("set user plan: %w", err)
	}

	s.logger.Info("subscription activated", "user_id", user.ID, "plan_id", plan.ID, "subscription_id", sub.ID, "session_id", sess.ID)
	return sub, nil
}

// History lists every subscription the user has held, newest first.
func (s *Service) History(user *model.User) ([]model.UserSubscription, error) {
	subs, err := s.subs.ListByUser(user.ID)
	if err != nil {
		return nil, fmt.Errorf("subscription history: %w", err)
	}
	return subs, nil
}

// VerifyWebhook checks the signature of a webhook delivery.
func (s *Service) VerifyWebhook(payload []byte, signature string) (WebhookEvent, error) {
	return s.processor.VerifyWebhook(payload, signature)
}

// SyncPlan creates a processor price for plan if it has none and stores its
// id. It reports whether a price was created.
func (s *Service) SyncPlan(ctx context.Context, plan *model.SubscriptionPlan) (bool, error) {
	if plan.StripePriceID != "" {
		return false, nil
	}
	priceID, err := s.processor.CreateRecurringPrice(ctx, *plan)
	if err != nil {
		return false, fmt.Errorf("create price: %w", err)
	}
	if err := s.plans.UpdateStripePriceID(plan.ID, priceID); err != nil {
		return false, err
	}
	plan.StripePriceID = priceID
	s.logger.Info("plan synced", "plan_id", plan.ID, "price_id", priceID)
	return true, nil
}
