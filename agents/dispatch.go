// ABOUTME: Action Dispatcher for email categories: generate, deliver, then record
// ABOUTME: Shared by the Entry and Mid sweeps and the monthly summary run
package agents

import (
	"context"
	"fmt"
	"strconv"

	"github.com/harperreed/retainiq/genai"
	"github.com/harperreed/retainiq/models"
)

// emailPlan is everything the dispatcher needs to send one customer email.
type emailPlan struct {
	actionType  string
	purpose     string
	context     string
	instruction string
	// auditDetail is stored with the email_sent audit entry.
	auditDetail string
	// success is appended to the run's action list once delivery succeeds.
	success string
	// auditFailures also records a failed candidate as an "error" audit entry.
	auditFailures bool
}

// emailSweep builds a sweep handler that classifies each customer and sends
// the planned email for non-nominal categories.
func (e *Engine) emailSweep(classify func(models.Customer) models.Category, plan func(models.Customer, models.Category) emailPlan) func(context.Context, *run, models.Customer) *models.ActionOutcome {
	return func(ctx context.Context, r *run, c models.Customer) *models.ActionOutcome {
		category := classify(c)
		if category.IsNominal() {
			return newOutcome(c.ID, c.DisplayName(), category, "")
		}

		p := plan(c, category)
		o := newOutcome(c.ID, c.DisplayName(), category, p.actionType)
		if err := e.sendCustomerEmail(ctx, r, o, c, p); err != nil {
			e.candidateFailed(r, o, err)
			if p.auditFailures {
				e.audit(ctx, r, o, "error", c.ID, fmt.Sprintf("Failed to process %s: %v", o.Customer, err))
			}
		}
		return o
	}
}

// sendCustomerEmail drafts, delivers, and records one email. An error means
// nothing was delivered.
func (e *Engine) sendCustomerEmail(ctx context.Context, r *run, o *models.ActionOutcome, c models.Customer, p emailPlan) error {
	email, err := e.draftEmail(ctx, o, genai.EmailRequest{
		Name:    c.Name,
		Email:   c.Email,
		Context: p.context,
		Purpose: p.instruction,
	})
	if err != nil {
		return err
	}

	if err := e.deliver(ctx, o, c.Email, email.Subject, email.Body); err != nil {
		return err
	}
	o.Dispatched = true
	o.Actions = append(o.Actions, p.success)

	e.logEmail(ctx, r, o, c.ID, c.Email, email.Subject, p.purpose)
	e.audit(ctx, r, o, "email_sent", c.ID, p.auditDetail)
	return nil
}

func (e *Engine) draftEmail(ctx context.Context, o *models.ActionOutcome, req genai.EmailRequest) (genai.Email, error) {
	email, err := callWithTimeout(ctx, e.opts.CallTimeout, func(ctx context.Context) (genai.Email, error) {
		return e.writer.Email(ctx, req)
	})
	if err != nil {
		markFailed(o, "generate_email", err)
		return genai.Email{}, fmt.Errorf("failed to generate email: %w", err)
	}
	if email.Degraded {
		e.logger.Warn("generated email was not valid JSON, using raw text", "customer", o.CustomerID)
	}
	markOK(o, "generate_email")
	return email, nil
}

func (e *Engine) deliver(ctx context.Context, o *models.ActionOutcome, to, subject, body string) error {
	_, err := callWithTimeout(ctx, e.opts.CallTimeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, e.deps.Notifier.Send(ctx, to, subject, body)
	})
	if err != nil {
		markFailed(o, "send_email", err)
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	markOK(o, "send_email")
	return nil
}

// formatScore renders a score without trailing zeros: 94, 81.5.
func formatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', -1, 64)
}
