// Package entitlement resolves a user's subscription status and the upload
// quota that follows from it.
package entitlement

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dukerupert/fileflow/internal/model"
)

const (
	// FreeUploadBytes is the per-file limit without a subscription.
	FreeUploadBytes int64 = 512 << 20
	// PremiumUploadBytes is the per-file limit for premium users.
	PremiumUploadBytes int64 = 2 << 30

	// FlagFallbackDays is reported when only the user's plan flag says premium.
	FlagFallbackDays = 30
)

var ErrQuotaExceeded = errors.New("upload exceeds quota")

// QuotaError reports an upload larger than the user's limit.
type QuotaError struct {
	Size  int64
	Limit int64
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("upload of %d bytes exceeds limit of %d bytes", e.Size, e.Limit)
}

func (e *QuotaError) Unwrap() error { return ErrQuotaExceeded }

type Tier string

const (
	TierNone    Tier = "none"
	TierPremium Tier = "premium"
)

// Source records which rule produced a Status.
type Source string

const (
	SourceNone         Source = "none"
	SourceSubscription Source = "subscription"
	SourcePlanFlag     Source = "plan_flag"
	SourceSuperuser    Source = "superuser"
)

// Status is the resolved subscription state of a user.
type Status struct {
	Tier          Tier
	Active        bool
	DaysRemaining int
	Unlimited     bool
	Source        Source
	Subscription  *model.UserSubscription
}

// Label is the tier name shown to users.
func (s Status) Label() string {
	if s.Tier == TierPremium {
		return "Премиум"
	}
	return "Нет подписки"
}

// DaysLabel renders the remaining days, "∞" when unlimited.
func (s Status) DaysLabel() string {
	if s.Unlimited {
		return "∞"
	}
	return strconv.Itoa(s.DaysRemaining)
}

// MaxUploadBytes is the largest single upload the status permits.
func (s Status) MaxUploadBytes() int64 {
	if s.Tier == TierPremium {
		return PremiumUploadBytes
	}
	return FreeUploadBytes
}

// SubscriptionFinder returns the current subscription of a user at now, or nil.
type SubscriptionFinder interface {
	GetCurrent(userID int64, now time.Time) (*model.UserSubscription, error)
}

// Resolver computes Status values from the subscription table.
type Resolver struct {
	subs SubscriptionFinder
	now  func() time.Time
}

func NewResolver(subs SubscriptionFinder) *Resolver {
	return &Resolver{subs: subs, now: time.Now}
}

// WithClock returns a copy of r that reads the time from now.
func (r *Resolver) WithClock(now func() time.Time) *Resolver {
	return &Resolver{subs: r.subs, now: now}
}

// Current returns the user's active, unexpired subscription or nil. The
// plan flag and superuser status are not consulted.
func (r *Resolver) Current(user *model.User) (*model.UserSubscription, error) {
	sub, err := r.subs.GetCurrent(user.ID, r.now())
	if err != nil {
		return nil, fmt.Errorf("find current subscription: %w", err)
	}
	return sub, nil
}

// Resolve applies, in order: current subscription, premium plan flag, none.
// A superuser is always premium with unlimited days.
func (r *Resolver) Resolve(user *model.User) (Status, error) {
	now := r.now()
	sub, err := r.subs.GetCurrent(user.ID, now)
	if err != nil {
		return Status{}, fmt.Errorf("find current subscription: %w", err)
	}

	var st Status
	switch {
	case sub != nil && sub.CurrentAt(now):
		st = Status{
			Tier:          TierPremium,
			Active:        true,
			DaysRemaining: int(sub.EndDate.Sub(now) / (24 * time.Hour)),
			Source:        SourceSubscription,
			Subscription:  sub,
		}
	case user.Plan == model.PlanPremium:
		st = Status{Tier: TierPremium, Active: true, DaysRemaining: FlagFallbackDays, Source: SourcePlanFlag}
	default:
		st = Status{Tier: TierNone, Source: SourceNone}
	}

	if user.IsSuperuser {
		st.Tier = TierPremium
		st.Active = true
		st.Unlimited = true
		st.Source = SourceSuperuser
	}
	return st, nil
}

// CheckUpload returns a *QuotaError when size exceeds the user's limit.
func (r *Resolver) CheckUpload(user *model.User, size int64) error {
	st, err := r.Resolve(user)
	if err != nil {
		return err
	}
	if limit := st.MaxUploadBytes(); size > limit {
		return &QuotaError{Size: size, Limit: limit}
	}
	return nil
}
