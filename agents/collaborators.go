// ABOUTME: Interfaces for the engine's external collaborators and its error taxonomy
// ABOUTME: Store, scoring, generation, delivery, scheduling, reporting, and event stream
package agents

import (
	"context"
	"errors"

	"github.com/harperreed/retainiq/models"
)

var (
	// ErrDataUnavailable means selection or scoring failed; the run aborts
	// with zero progress.
	ErrDataUnavailable = errors.New("data unavailable")
	// ErrDeliveryFailed wraps notification and scheduling failures.
	ErrDeliveryFailed = errors.New("delivery failed")
	// ErrPersistenceFailed wraps audit and signal writes that failed after a retry.
	ErrPersistenceFailed = errors.New("persistence failed")
	// ErrEngineBusy is returned by TryRunAgent when another run is in progress.
	ErrEngineBusy = errors.New("another agent run is in progress")
)

// CustomerSource selects customer snapshots and writes back risk scores.
type CustomerSource interface {
	Select(ctx context.Context, tier models.Tier, filter models.CustomerFilter) ([]models.Customer, error)
	UpdateRiskScore(ctx context.Context, id string, score float64) error
}

// Scorer returns externally computed churn scores for a roster.
type Scorer interface {
	Score(ctx context.Context, customers []models.Customer) ([]models.Prediction, error)
}

// Notifier delivers an email.
type Notifier interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Scheduler creates calendar events and returns a reference to the event.
type Scheduler interface {
	ScheduleMeeting(ctx context.Context, m models.Meeting) (string, error)
}

// Reporter creates a tabular report and returns a reference to it.
type Reporter interface {
	CreateReport(ctx context.Context, title string, rows [][]string) (string, error)
}

// AuditStore is the append-only audit log.
type AuditStore interface {
	LogAction(ctx context.Context, entry *models.AgentLog) error
	LogEmail(ctx context.Context, entry *models.EmailLog) error
	RecordRun(ctx context.Context, summary *models.RunSummary) error
	LogFAQ(ctx context.Context, q *models.FAQQuery) error
}

// SignalStore is the append-only churn signal log.
type SignalStore interface {
	RecordSignal(ctx context.Context, s *models.ChurnSignal) error
}

// EventPublisher mirrors audit entries and signals to an event stream.
type EventPublisher interface {
	PublishAudit(ctx context.Context, entry models.AgentLog) error
	PublishSignal(ctx context.Context, signal models.ChurnSignal) error
}
