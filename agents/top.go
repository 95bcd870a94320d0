// ABOUTME: Top tier agent and Escalation Engine: fresh churn scores drive alerts and QBRs
// ABOUTME: Scores are persisted per customer and passed explicitly into classification
package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/harperreed/retainiq/genai"
	"github.com/harperreed/retainiq/models"
)

// scored pairs a fresh prediction with its roster snapshot. found is false
// when the scorer returned an id outside the Top tier roster.
type scored struct {
	prediction models.Prediction
	customer   models.Customer
	found      bool
}

func (e *Engine) runTop(ctx context.Context, r *run) error {
	roster, err := e.selectCustomers(ctx, models.TierTop, models.CustomerFilter{})
	if err != nil {
		return err
	}

	predictions, err := callWithTimeout(ctx, e.opts.CallTimeout, func(ctx context.Context) ([]models.Prediction, error) {
		return e.deps.Scorer.Score(ctx, roster)
	})
	if err != nil {
		r.summary.Actions = append(r.summary.Actions, fmt.Sprintf("Churn prediction error: %v", err))
		return dataUnavailable("score top customers", err)
	}

	e.audit(ctx, r, nil, "churn_scan", "", fmt.Sprintf("Churn prediction ran for %d enterprise customers", len(predictions)))
	r.summary.Actions = append(r.summary.Actions, fmt.Sprintf("Churn scores updated for %d customers", len(predictions)))

	byID := make(map[string]models.Customer, len(roster))
	for _, c := range roster {
		byID[c.ID] = c
	}
	items := make([]scored, 0, len(predictions))
	for _, p := range predictions {
		c, ok := byID[p.CustomerID]
		items = append(items, scored{prediction: p, customer: c, found: ok})
	}

	sweep(ctx, e, r, items, e.escalate)

	r.summary.Processed = len(predictions)
	return nil
}

// escalate handles one scored customer: persist the score, classify it, and
// dispatch the Critical or High bundle.
func (e *Engine) escalate(ctx context.Context, r *run, item scored) *models.ActionOutcome {
	score := item.prediction.ChurnScore
	category := ClassifyEscalation(score)

	if !item.found {
		o := newOutcome(item.prediction.CustomerID, item.prediction.CustomerID, category, "")
		if category.IsNominal() {
			// Unknown ids count as failures whatever the score.
			o.Category = models.Category{Kind: "unknown_customer", Score: score}
		}
		err := fmt.Errorf("customer not in top tier roster")
		markFailed(o, "lookup", err)
		e.candidateFailed(r, o, err)
		return o
	}

	c := item.customer
	company := c.Company
	if company == "" {
		company = c.DisplayName()
	}

	actionType := ""
	switch category.Kind {
	case models.CategoryCritical:
		actionType = "critical_alert"
	case models.CategoryHigh:
		actionType = "high_risk"
	}
	o := newOutcome(c.ID, company, category, actionType)

	if err := e.persist(ctx, r, "risk score", func(ctx context.Context) error {
		return e.deps.Customers.UpdateRiskScore(ctx, c.ID, score)
	}); err != nil {
		markFailed(o, "persist_score", err)
		o.Actions = append(o.Actions, fmt.Sprintf("Risk score update failed for %s: %v", company, err))
	} else {
		markOK(o, "persist_score")
	}

	if category.IsNominal() {
		return o
	}

	analysis, err := callWithTimeout(ctx, e.opts.CallTimeout, func(ctx context.Context) (genai.ChurnAnalysis, error) {
		return e.writer.ChurnAnalysis(ctx, company, analysisInput(c, score))
	})
	if err != nil {
		markFailed(o, "analyze", err)
		e.candidateFailed(r, o, fmt.Errorf("failed to analyze churn risk: %w", err))
		return o
	}
	markOK(o, "analyze")

	severity := models.SeverityHigh
	if category.Kind == models.CategoryCritical {
		severity = models.SeverityCritical
	}
	e.recordSignal(ctx, r, o, &models.ChurnSignal{
		CustomerID:         c.ID,
		ChurnScore:         score,
		Severity:           severity,
		Analysis:           analysis.Analysis,
		RecommendedActions: analysis.Actions,
	})

	if category.Kind == models.CategoryHigh {
		o.Dispatched = true
		o.Actions = append(o.Actions, fmt.Sprintf("HIGH risk flagged: %s (%s%%)", company, formatScore(score)))
		e.audit(ctx, r, o, "high_risk", c.ID, fmt.Sprintf("HIGH risk: %s at %s%%", company, formatScore(score)))
		return o
	}

	subject := fmt.Sprintf("CRITICAL: %s churn risk at %s%%", company, formatScore(score))
	if err := e.deliver(ctx, o, e.opts.AlertRecipient, subject, alertBody(company, score, analysis)); err != nil {
		e.candidateFailed(r, o, err)
		return o
	}
	o.Dispatched = true
	e.logEmail(ctx, r, o, c.ID, e.opts.AlertRecipient, subject, models.PurposeChurnAlert)

	e.scheduleQBR(ctx, r, o, c, company, score, analysis.Analysis)

	o.Actions = append(o.Actions, fmt.Sprintf("CRITICAL alert: %s (%s%%)", company, formatScore(score)))
	e.audit(ctx, r, o, "critical_alert", c.ID, fmt.Sprintf("CRITICAL: %s at %s%% churn risk", company, formatScore(score)))
	return o
}

// scheduleQBR books the emergency review. Failure is recorded on the outcome
// but does not undo the alert.
func (e *Engine) scheduleQBR(ctx context.Context, r *run, o *models.ActionOutcome, c models.Customer, company string, score float64, analysis string) {
	if e.deps.Scheduler == nil {
		markFailed(o, "schedule_meeting", fmt.Errorf("no scheduler configured"))
		o.Actions = append(o.Actions, fmt.Sprintf("QBR scheduling skipped for %s", company))
		return
	}

	meeting := models.Meeting{
		Title:       "Emergency QBR: " + company,
		Description: fmt.Sprintf("Churn risk at %s%%. %s", formatScore(score), analysis),
		Start:       e.now().AddDate(0, 0, e.opts.MeetingLeadDays),
		Duration:    e.opts.MeetingDuration,
		Attendees:   []string{c.Email},
	}
	_, err := callWithTimeout(ctx, e.opts.CallTimeout, func(ctx context.Context) (string, error) {
		return e.deps.Scheduler.ScheduleMeeting(ctx, meeting)
	})
	if err != nil {
		e.logger.Warn("failed to schedule QBR", "customer", c.ID, "err", err)
		markFailed(o, "schedule_meeting", fmt.Errorf("%w: %v", ErrDeliveryFailed, err))
		o.Actions = append(o.Actions, fmt.Sprintf("QBR scheduling skipped for %s", company))
		return
	}
	markOK(o, "schedule_meeting")
	e.audit(ctx, r, o, "qbr_scheduled", c.ID, fmt.Sprintf("Emergency QBR scheduled for %s", company))
	o.Actions = append(o.Actions, fmt.Sprintf("QBR scheduled for %s", company))
}

func analysisInput(c models.Customer, score float64) map[string]any {
	return map[string]any{
		"churn_score":           score,
		"health_score":          c.HealthScore,
		"logins_per_week":       c.LoginsPerWeek,
		"features_used":         c.FeaturesUsed,
		"total_features":        c.TotalFeatures,
		"days_since_last_login": c.DaysSinceLastLogin,
		"support_tickets":       c.SupportTickets,
		"arr":                   c.ARR,
	}
}

func alertBody(company string, score float64, analysis genai.ChurnAnalysis) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CRITICAL CHURN ALERT: %s\n\nChurn Score: %s%%\n\nAnalysis:\n%s\n\nRecommended Actions:\n",
		company, formatScore(score), analysis.Analysis)
	for i, a := range analysis.Actions {
		fmt.Fprintf(&b, "%d. %s\n", i+1, a)
	}
	b.WriteString("\nRetainIQ Enterprise Agent\n")
	return b.String()
}
