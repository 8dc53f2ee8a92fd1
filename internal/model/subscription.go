package model

import "time"

const SubscriptionStatusActive = "active"

type SubscriptionPlan struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	PriceCents    int64  `json:"price_cents"`
	DurationDays  int    `json:"duration_days"`
	StripePriceID string `json:"stripe_price_id"`
	IsActive      bool   `json:"is_active"`
}

type UserSubscription struct {
	ID                   int64     `json:"id"`
	UserID               int64     `json:"user_id"`
	PlanID               int64     `json:"plan_id"`
	StripeSubscriptionID string    `json:"stripe_subscription_id"`
	StripeSessionID      string    `json:"stripe_session_id"`
	Status               string    `json:"status"`
	StartDate            time.Time `json:"start_date"`
	EndDate              time.Time `json:"end_date"`
	IsActive             bool      `json:"is_active"`
}

// CurrentAt reports whether the subscription grants access at t.
func (s *UserSubscription) CurrentAt(t time.Time) bool {
	return s.IsActive && !s.EndDate.Before(t)
}
