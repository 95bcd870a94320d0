// ABOUTME: Recorder: audit, email, and churn-signal writes with one local retry
// ABOUTME: Mirrors successful writes to the event stream when one is configured
package agents

import (
	"context"
	"fmt"

	"github.com/harperreed/retainiq/models"
)

// persist runs a write, retrying once. A second failure counts against the
// run and is returned wrapped in ErrPersistenceFailed.
func (e *Engine) persist(ctx context.Context, r *run, what string, write func(context.Context) error) error {
	attempt := func() error {
		_, err := callWithTimeout(ctx, e.opts.CallTimeout, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, write(ctx)
		})
		return err
	}

	err := attempt()
	if err == nil {
		return nil
	}
	e.logger.Warn("write failed, retrying", "agent", r.agent, "what", what, "err", err)

	if err = attempt(); err == nil {
		return nil
	}

	r.persistFail.Add(1)
	e.logger.Error("write failed after retry", "agent", r.agent, "what", what, "err", err)
	return fmt.Errorf("%w: %s: %v", ErrPersistenceFailed, what, err)
}

// notePersistFailure records a failed write on the candidate, or on the run
// when o is nil.
func notePersistFailure(r *run, o *models.ActionOutcome, step, subject string, err error) {
	msg := fmt.Sprintf("%s write failed for %s: %v", step, subject, err)
	if o == nil {
		r.summary.Actions = append(r.summary.Actions, msg)
		return
	}
	markFailed(o, step, err)
	o.Actions = append(o.Actions, msg)
}

// audit appends an agent_logs entry. customerID may be empty for run-level
// entries.
func (e *Engine) audit(ctx context.Context, r *run, o *models.ActionOutcome, actionType, customerID, details string) {
	entry := &models.AgentLog{
		AgentType:  r.agent,
		ActionType: actionType,
		Details:    details,
		CreatedAt:  e.now().UTC(),
	}
	if customerID != "" {
		id := customerID
		entry.CustomerID = &id
	}

	err := e.persist(ctx, r, "audit entry", func(ctx context.Context) error {
		return e.deps.Audit.LogAction(ctx, entry)
	})
	if err != nil {
		subject := "run"
		if o != nil {
			subject = o.Customer
		}
		notePersistFailure(r, o, "Audit", subject, err)
		return
	}
	e.publishAudit(ctx, *entry)
}

// logEmail appends an emails_sent entry for a delivered notification.
func (e *Engine) logEmail(ctx context.Context, r *run, o *models.ActionOutcome, customerID, to, subject, purpose string) {
	entry := &models.EmailLog{
		AgentType:  r.agent,
		CustomerID: customerID,
		ToEmail:    to,
		Subject:    subject,
		Purpose:    purpose,
		SentAt:     e.now().UTC(),
	}

	err := e.persist(ctx, r, "email log", func(ctx context.Context) error {
		return e.deps.Audit.LogEmail(ctx, entry)
	})
	if err != nil {
		name := "report"
		if o != nil {
			name = o.Customer
		}
		notePersistFailure(r, o, "Email log", name, err)
	}
}

// recordSignal appends a churn signal.
func (e *Engine) recordSignal(ctx context.Context, r *run, o *models.ActionOutcome, signal *models.ChurnSignal) {
	if signal.DetectedAt.IsZero() {
		signal.DetectedAt = e.now().UTC()
	}

	err := e.persist(ctx, r, "churn signal", func(ctx context.Context) error {
		return e.deps.Signals.RecordSignal(ctx, signal)
	})
	if err != nil {
		notePersistFailure(r, o, "Churn signal", o.Customer, err)
		return
	}
	markOK(o, "record_signal")

	if e.deps.Events != nil {
		if err := e.deps.Events.PublishSignal(ctx, *signal); err != nil {
			e.logger.Warn("failed to publish churn signal", "customer", signal.CustomerID, "err", err)
		}
	}
}

func (e *Engine) publishAudit(ctx context.Context, entry models.AgentLog) {
	if e.deps.Events == nil {
		return
	}
	if err := e.deps.Events.PublishAudit(ctx, entry); err != nil {
		e.logger.Warn("failed to publish audit entry", "agent", entry.AgentType, "action", entry.ActionType, "err", err)
	}
}
