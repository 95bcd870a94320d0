// ABOUTME: Append-only audit log, email log, run summaries, and FAQ log
// ABOUTME: Everything the agents record for the dashboard's activity feed
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/harperreed/retainiq/models"
)

// LogRepository appends audit entries. Rows are never updated.
type LogRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewLogRepository creates a new log repository.
func NewLogRepository(db *sql.DB) *LogRepository {
	return &LogRepository{db: db, now: time.Now}
}

// LogAction appends an agent action entry.
func (r *LogRepository) LogAction(ctx context.Context, entry *models.AgentLog) error {
	if entry.ID == "" {
		entry.ID = newID("log")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = r.now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO agent_logs (id, agent_type, action_type, customer_id, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.AgentType, entry.ActionType, entry.CustomerID, entry.Details, entry.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to log agent action: %w", err)
	}
	return nil
}

// LogEmail appends a delivered-email entry.
func (r *LogRepository) LogEmail(ctx context.Context, entry *models.EmailLog) error {
	if entry.ID == "" {
		entry.ID = newID("email")
	}
	if entry.SentAt.IsZero() {
		entry.SentAt = r.now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO emails_sent (id, agent_type, customer_id, to_email, subject, purpose, sent_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.AgentType, entry.CustomerID, entry.ToEmail, entry.Subject, entry.Purpose, entry.SentAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to log email: %w", err)
	}
	return nil
}

// RecordRun persists the run summary together with its audit feed entry in a
// single transaction, so a run is either fully recorded or not at all.
func (r *LogRepository) RecordRun(ctx context.Context, summary *models.RunSummary) error {
	counts, err := json.Marshal(summary.ActionCounts)
	if err != nil {
		return fmt.Errorf("failed to encode action counts: %w", err)
	}
	actions, err := json.Marshal(summary.Actions)
	if err != nil {
		return fmt.Errorf("failed to encode actions: %w", err)
	}

	var errMsg sql.NullString
	if summary.Error != "" {
		errMsg = sql.NullString{String: summary.Error, Valid: true}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO run_summaries (
			id, agent_type, tier, kind, status, processed, dispatched, failures,
			persistence_failures, action_counts, actions, error_message, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		summary.ID, summary.Agent, string(summary.Tier), summary.Kind, summary.Status,
		summary.Processed, summary.Dispatched, summary.Failures, summary.PersistenceFailures,
		string(counts), string(actions), errMsg, summary.StartedAt.UTC(), summary.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run summary: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO agent_logs (id, agent_type, action_type, customer_id, details, created_at)
		VALUES (?, ?, ?, NULL, ?, ?)
	`, newID("log"), summary.Agent, summary.Kind, summary.Detail(), summary.FinishedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert run log: %w", err)
	}

	return tx.Commit()
}

// RecentLogs returns the latest audit entries, optionally for one agent.
func (r *LogRepository) RecentLogs(ctx context.Context, agentType string, limit int) ([]models.AgentLog, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT id, agent_type, action_type, customer_id, details, created_at FROM agent_logs`
	var args []interface{}
	if agentType != "" {
		query += ` WHERE agent_type = ?`
		args = append(args, agentType)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query agent logs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var logs []models.AgentLog
	for rows.Next() {
		var l models.AgentLog
		var customerID sql.NullString
		if err := rows.Scan(&l.ID, &l.AgentType, &l.ActionType, &customerID, &l.Details, &l.CreatedAt); err != nil {
			return nil, err
		}
		if customerID.Valid {
			l.CustomerID = &customerID.String
		}
		logs = append(logs, l)
	}

	return logs, rows.Err()
}

// RecentRuns returns the latest run summaries.
func (r *LogRepository) RecentRuns(ctx context.Context, limit int) ([]models.RunSummary, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, agent_type, tier, kind, status, processed, dispatched, failures,
		       persistence_failures, action_counts, actions, error_message, started_at, finished_at
		FROM run_summaries
		ORDER BY finished_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query run summaries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []models.RunSummary
	for rows.Next() {
		var (
			s       models.RunSummary
			tier    string
			counts  string
			actions string
			errMsg  sql.NullString
		)
		err := rows.Scan(&s.ID, &s.Agent, &tier, &s.Kind, &s.Status, &s.Processed, &s.Dispatched,
			&s.Failures, &s.PersistenceFailures, &counts, &actions, &errMsg, &s.StartedAt, &s.FinishedAt)
		if err != nil {
			return nil, err
		}
		s.Tier = models.Tier(tier)
		s.Error = errMsg.String
		if err := json.Unmarshal([]byte(counts), &s.ActionCounts); err != nil {
			return nil, fmt.Errorf("failed to decode action counts: %w", err)
		}
		if err := json.Unmarshal([]byte(actions), &s.Actions); err != nil {
			return nil, fmt.Errorf("failed to decode actions: %w", err)
		}
		runs = append(runs, s)
	}

	return runs, rows.Err()
}

// LogFAQ records an answered FAQ question.
func (r *LogRepository) LogFAQ(ctx context.Context, q *models.FAQQuery) error {
	if q.ID == "" {
		q.ID = newID("faq")
	}
	if q.CreatedAt.IsZero() {
		q.CreatedAt = r.now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO faq_queries (id, customer_id, question, answer, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, q.ID, q.CustomerID, q.Question, q.Answer, q.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to log faq query: %w", err)
	}
	return nil
}
