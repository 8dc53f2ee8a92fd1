package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/fileflow/internal/model"
)

type SubscriptionStore struct {
	db *sql.DB
}

func NewSubscriptionStore(db *sql.DB) *SubscriptionStore {
	return &SubscriptionStore{db: db}
}

func scanSubscription(scanner interface{ Scan(...any) error }) (*model.UserSubscription, error) {
	var sub model.UserSubscription
	var active int
	err := scanner.Scan(
		&sub.ID, &sub.UserID, &sub.PlanID, &sub.StripeSubscriptionID, &sub.StripeSessionID,
		&sub.Status, &sub.StartDate, &sub.EndDate, &active,
	)
	if err != nil {
		return nil, err
	}
	sub.IsActive = active != 0
	return &sub, nil
}

const subscriptionCols = `id, user_id, plan_id, stripe_subscription_id, stripe_session_id, status, start_date, end_date, is_active`

// CreateSubscriptionParams holds the fields for a new subscription row.
// A zero StartDate means now; a zero EndDate means StartDate plus the plan's duration.
type CreateSubscriptionParams struct {
	UserID               int64
	PlanID               int64
	StripeSubscriptionID string
	StripeSessionID      string
	Status               string
	StartDate            time.Time
	EndDate              time.Time
}

func (s *SubscriptionStore) Create(p CreateSubscriptionParams) (*model.UserSubscription, error) {
	if p.StartDate.IsZero() {
		p.StartDate = time.Now()
	}
	if p.Status == "" {
		p.Status = model.SubscriptionStatusActive
	}
	if p.EndDate.IsZero() {
		var days int
		err := s.db.QueryRow(`SELECT duration_days FROM subscription_plans WHERE id = ?`, p.PlanID).Scan(&days)
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("plan %d not found", p.PlanID)
		}
		if err != nil {
			return nil, fmt.Errorf("get plan duration: %w", err)
		}
		p.EndDate = p.StartDate.AddDate(0, 0, days)
	}

	result, err := s.db.Exec(
		`INSERT INTO user_subscriptions (user_id, plan_id, stripe_subscription_id, stripe_session_id, status, start_date, end_date, is_active)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 1)`,
		p.UserID, p.PlanID, p.StripeSubscriptionID, p.StripeSessionID, p.Status,
		p.StartDate.UTC(), p.EndDate.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert subscription: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *SubscriptionStore) GetByID(id int64) (*model.UserSubscription, error) {
	row := s.db.QueryRow(`SELECT `+subscriptionCols+` FROM user_subscriptions WHERE id = ?`, id)
	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	return sub, nil
}

// GetCurrent returns the active subscription with the latest end date that
// has not ended at now, or nil.
func (s *SubscriptionStore) GetCurrent(userID int64, now time.Time) (*model.UserSubscription, error) {
	row := s.db.QueryRow(
		`SELECT `+subscriptionCols+` FROM user_subscriptions
		 WHERE user_id = ? AND is_active = 1 AND end_date >= ?
		 ORDER BY end_date DESC, id DESC LIMIT 1`,
		userID, now.UTC(),
	)
	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get current subscription: %w", err)
	}
	return sub, nil
}

func (s *SubscriptionStore) ListByUser(userID int64) ([]model.UserSubscription, error) {
	rows, err := s.db.Query(
		`SELECT `+subscriptionCols+` FROM user_subscriptions WHERE user_id = ? ORDER BY start_date DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []model.UserSubscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

func (s *SubscriptionStore) CountBySession(sessionID string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM user_subscriptions WHERE stripe_session_id = ?`, sessionID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count subscriptions by session: %w", err)
	}
	return n, nil
}

func (s *SubscriptionStore) Deactivate(id int64) error {
	_, err := s.db.Exec(`UPDATE user_subscriptions SET is_active = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deactivate subscription: %w", err)
	}
	return nil
}
