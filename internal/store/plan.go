package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/fileflow/internal/model"
)

type PlanStore struct {
	db *sql.DB
}

func NewPlanStore(db *sql.DB) *PlanStore {
	return &PlanStore{db: db}
}

func scanPlan(scanner interface{ Scan(...any) error }) (*model.SubscriptionPlan, error) {
	var p model.SubscriptionPlan
	var active int
	err := scanner.Scan(
		&p.ID, &p.Name, &p.Description, &p.PriceCents,
		&p.DurationDays, &p.StripePriceID, &active,
	)
	if err != nil {
		return nil, err
	}
	p.IsActive = active != 0
	return &p, nil
}

const planCols = `id, name, description, price_cents, duration_days, stripe_price_id, is_active`

func (s *PlanStore) Create(p *model.SubscriptionPlan) (*model.SubscriptionPlan, error) {
	result, err := s.db.Exec(
		`INSERT INTO subscription_plans (name, description, price_cents, duration_days, stripe_price_id, is_active)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		p.Name, p.Description, p.PriceCents, p.DurationDays, p.StripePriceID, boolInt(p.IsActive),
	)
	if err != nil {
		return nil, fmt.Errorf("insert plan: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *PlanStore) GetByID(id int64) (*model.SubscriptionPlan, error) {
	row := s.db.QueryRow(`SELECT `+planCols+` FROM subscription_plans WHERE id = ?`, id)
	p, err := scanPlan(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get plan: %w", err)
	}
	return p, nil
}

func (s *PlanStore) GetByName(name string) (*model.SubscriptionPlan, error) {
	row := s.db.QueryRow(`SELECT `+planCols+` FROM subscription_plans WHERE name = ? ORDER BY id LIMIT 1`, name)
	p, err := scanPlan(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get plan by name: %w", err)
	}
	return p, nil
}

// ListActive returns active plans ordered by price.
func (s *PlanStore) ListActive() ([]model.SubscriptionPlan, error) {
	rows, err := s.db.Query(
		`SELECT ` + planCols + ` FROM subscription_plans WHERE is_active = 1 ORDER BY price_cents, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close()

	var plans []model.SubscriptionPlan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		plans = append(plans, *p)
	}
	return plans, rows.Err()
}

func (s *PlanStore) UpdateStripePriceID(id int64, priceID string) error {
	_, err := s.db.Exec(`UPDATE subscription_plans SET stripe_price_id = ? WHERE id = ?`, priceID, id)
	if err != nil {
		return fmt.Errorf("update stripe price id: %w", err)
	}
	return nil
}
