// ABOUTME: Customer store operations used by the tier agents
// ABOUTME: Tier-scoped filtered selection, risk-score write-back, and bulk import
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/harperreed/retainiq/models"
)

var ErrCustomerNotFound = errors.New("customer not found")

const customerColumns = `
	id, name, email, company, tier, health_score, churn_risk, logins_per_week,
	features_used, total_features, days_since_last_login, support_tickets, arr,
	onboarding_status, onboarding_day, upsell_ready, upsell_value, last_login, created_at`

// CustomerRepository reads customer snapshots and writes back risk scores.
type CustomerRepository struct {
	db *sql.DB
}

// NewCustomerRepository creates a new customer repository.
func NewCustomerRepository(db *sql.DB) *CustomerRepository {
	return &CustomerRepository{db: db}
}

// Select returns the tier's customers matching filter, sorted by the
// selection's priority key: churn risk descending for risk triage, upsell
// value descending for expansion, otherwise health ascending.
func (r *CustomerRepository) Select(ctx context.Context, tier models.Tier, filter models.CustomerFilter) ([]models.Customer, error) {
	var (
		where = []string{"tier = ?"}
		args  = []interface{}{string(tier)}
		order = "health_score ASC"
	)

	if filter.MinChurnRisk != nil {
		where = append(where, "churn_risk > ?")
		args = append(args, *filter.MinChurnRisk)
		order = "churn_risk DESC"
	}
	if filter.StuckOnly {
		where = append(where, "onboarding_status = ?")
		args = append(args, models.OnboardingStuck)
	}
	if filter.UpsellReady {
		where = append(where, "upsell_ready = 1")
		order = "upsell_value DESC"
	}

	query := fmt.Sprintf("SELECT %s FROM customers WHERE %s ORDER BY %s, id ASC",
		customerColumns, strings.Join(where, " AND "), order)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query customers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var customers []models.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, *c)
	}

	return customers, rows.Err()
}

// Get retrieves a customer by ID.
func (r *CustomerRepository) Get(ctx context.Context, id string) (*models.Customer, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+customerColumns+" FROM customers WHERE id = ?", id)
	c, err := scanCustomer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCustomerNotFound
	}
	return c, err
}

// UpdateRiskScore writes a fresh churn score back to the customer record.
func (r *CustomerRepository) UpdateRiskScore(ctx context.Context, id string, score float64) error {
	res, err := r.db.ExecContext(ctx, "UPDATE customers SET churn_risk = ? WHERE id = ?", score, id)
	if err != nil {
		return fmt.Errorf("failed to update churn risk: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrCustomerNotFound
	}
	return nil
}

// Upsert inserts or replaces a customer record. Used by data import.
func (r *CustomerRepository) Upsert(ctx context.Context, c *models.Customer) error {
	if c.ID == "" {
		return fmt.Errorf("customer id is required")
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	var onboardingStatus sql.NullString
	if c.OnboardingStatus != "" {
		onboardingStatus = sql.NullString{String: c.OnboardingStatus, Valid: true}
	}
	var onboardingDay sql.NullInt64
	if c.OnboardingDay != nil {
		onboardingDay = sql.NullInt64{Int64: int64(*c.OnboardingDay), Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO customers (`+customerColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			company = excluded.company,
			tier = excluded.tier,
			health_score = excluded.health_score,
			churn_risk = excluded.churn_risk,
			logins_per_week = excluded.logins_per_week,
			features_used = excluded.features_used,
			total_features = excluded.total_features,
			days_since_last_login = excluded.days_since_last_login,
			support_tickets = excluded.support_tickets,
			arr = excluded.arr,
			onboarding_status = excluded.onboarding_status,
			onboarding_day = excluded.onboarding_day,
			upsell_ready = excluded.upsell_ready,
			upsell_value = excluded.upsell_value,
			last_login = excluded.last_login
	`,
		c.ID, c.Name, c.Email, c.Company, string(c.Tier), c.HealthScore, c.ChurnRisk,
		c.LoginsPerWeek, c.FeaturesUsed, c.TotalFeatures, c.DaysSinceLastLogin,
		c.SupportTickets, c.ARR, onboardingStatus, onboardingDay, c.UpsellReady,
		c.UpsellValue, c.LastLogin, c.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert customer %s: %w", c.ID, err)
	}
	return nil
}

// Count returns the number of customers, optionally restricted to a tier.
func (r *CustomerRepository) Count(ctx context.Context, tier models.Tier) (int, error) {
	query := "SELECT COUNT(*) FROM customers"
	var args []interface{}
	if tier != "" {
		query += " WHERE tier = ?"
		args = append(args, string(tier))
	}
	var n int
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&n)
	return n, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCustomer(row rowScanner) (*models.Customer, error) {
	var (
		c                models.Customer
		tier             string
		onboardingStatus sql.NullString
		onboardingDay    sql.NullInt64
		lastLogin        sql.NullTime
	)

	err := row.Scan(
		&c.ID, &c.Name, &c.Email, &c.Company, &tier, &c.HealthScore, &c.ChurnRisk,
		&c.LoginsPerWeek, &c.FeaturesUsed, &c.TotalFeatures, &c.DaysSinceLastLogin,
		&c.SupportTickets, &c.ARR, &onboardingStatus, &onboardingDay, &c.UpsellReady,
		&c.UpsellValue, &lastLogin, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.Tier = models.Tier(tier)
	if onboardingStatus.Valid {
		c.OnboardingStatus = onboardingStatus.String
	}
	if onboardingDay.Valid {
		day := int(onboardingDay.Int64)
		c.OnboardingDay = &day
	}
	if lastLogin.Valid {
		c.LastLogin = &lastLogin.Time
	}

	return &c, nil
}
