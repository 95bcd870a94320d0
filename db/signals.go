// ABOUTME: Churn signal records for Top-tier escalations
// ABOUTME: Append-only writes and filtered reads for the dashboard
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/harperreed/retainiq/models"
)

// SignalRepository stores churn signals.
type SignalRepository struct {
	db *sql.DB
}

// NewSignalRepository creates a new signal repository.
func NewSignalRepository(db *sql.DB) *SignalRepository {
	return &SignalRepository{db: db}
}

// RecordSignal appends a churn signal.
func (r *SignalRepository) RecordSignal(ctx context.Context, s *models.ChurnSignal) error {
	if s.ID == "" {
		s.ID = newID("churn")
	}
	if s.DetectedAt.IsZero() {
		s.DetectedAt = time.Now().UTC()
	}

	actions, err := json.Marshal(s.RecommendedActions)
	if err != nil {
		return fmt.Errorf("failed to encode recommended actions: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO churn_signals (id, customer_id, churn_score, severity, analysis, recommended_actions, detected_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, s.ID, s.CustomerID, s.ChurnScore, s.Severity, s.Analysis, string(actions), s.DetectedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to record churn signal: %w", err)
	}
	return nil
}

// ListSignals returns recent signals, optionally for a single customer.
func (r *SignalRepository) ListSignals(ctx context.Context, customerID string, limit int) ([]models.ChurnSignal, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT id, customer_id, churn_score, severity, analysis, recommended_actions, detected_at FROM churn_signals`
	var args []interface{}
	if customerID != "" {
		query += ` WHERE customer_id = ?`
		args = append(args, customerID)
	}
	query += ` ORDER BY detected_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query churn signals: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var signals []models.ChurnSignal
	for rows.Next() {
		var s models.ChurnSignal
		var actions string
		if err := rows.Scan(&s.ID, &s.CustomerID, &s.ChurnScore, &s.Severity, &s.Analysis, &actions, &s.DetectedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(actions), &s.RecommendedActions); err != nil {
			return nil, fmt.Errorf("failed to decode recommended actions: %w", err)
		}
		signals = append(signals, s)
	}

	return signals, rows.Err()
}

// Stats computes the dashboard overview relative to now.
func Stats(ctx context.Context, db *sql.DB, now time.Time) (*models.DashboardStats, error) {
	now = now.UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	weekAgo := now.AddDate(0, 0, -7)
	monthAgo := now.AddDate(0, 0, -30)

	var s models.DashboardStats
	err := db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM customers),
			(SELECT COUNT(*) FROM customers WHERE churn_risk > 50),
			(SELECT COALESCE(AVG(health_score), 0) FROM customers),
			(SELECT COUNT(*) FROM customers WHERE health_score < ?),
			(SELECT COUNT(*) FROM customers WHERE health_score >= ? AND health_score < ?),
			(SELECT COUNT(*) FROM customers WHERE health_score >= ?),
			(SELECT COUNT(*) FROM emails_sent WHERE sent_at >= ?),
			(SELECT COUNT(*) FROM emails_sent WHERE sent_at >= ?),
			(SELECT COUNT(*) FROM emails_sent WHERE sent_at >= ?),
			(SELECT COUNT(*) FROM churn_signals WHERE detected_at >= ?)
	`,
		models.HealthRedBelow, models.HealthRedBelow, models.HealthYellowBelow, models.HealthYellowBelow,
		dayStart, weekAgo, monthAgo, monthAgo,
	).Scan(
		&s.TotalCustomers, &s.AtRisk, &s.AvgHealth,
		&s.HealthDistribution.Red, &s.HealthDistribution.Yellow, &s.HealthDistribution.Green,
		&s.EmailsToday, &s.EmailsThisWeek, &s.EmailsThisMonth, &s.ChurnSignals30d,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to compute stats: %w", err)
	}

	s.TierDistribution, err = tierDistribution(ctx, db)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// tierDistribution returns one row per tier that has customers, in agent
// run order.
func tierDistribution(ctx context.Context, db *sql.DB) ([]models.TierStats, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT tier, COUNT(*), AVG(health_score), AVG(churn_risk), SUM(arr)
		FROM customers
		GROUP BY tier
		ORDER BY CASE tier WHEN 'entry' THEN 0 WHEN 'mid' THEN 1 ELSE 2 END
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to compute tier distribution: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []models.TierStats{}
	for rows.Next() {
		var (
			ts   models.TierStats
			tier string
		)
		if err := rows.Scan(&tier, &ts.Count, &ts.AvgHealth, &ts.AvgChurn, &ts.TotalARR); err != nil {
			return nil, fmt.Errorf("failed to scan tier distribution: %w", err)
		}
		ts.Tier = models.Tier(tier)
		out = append(out, ts)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read tier distribution: %w", err)
	}
	return out, nil
}
