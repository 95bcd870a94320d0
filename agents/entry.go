// ABOUTME: Entry tier agent: onboarding follow-ups for stuck customers and welcome emails
// ABOUTME: Two sweeps over snapshots selected before any email goes out
package agents

import (
	"context"
	"fmt"

	"github.com/harperreed/retainiq/models"
)

func (e *Engine) runEntry(ctx context.Context, r *run) error {
	stuck, err := e.selectCustomers(ctx, models.TierEntry, models.CustomerFilter{StuckOnly: true})
	if err != nil {
		return err
	}
	all, err := e.selectCustomers(ctx, models.TierEntry, models.CustomerFilter{})
	if err != nil {
		return err
	}

	var signups []models.Customer
	for _, c := range all {
		if !ClassifyWelcome(c).IsNominal() {
			signups = append(signups, c)
		}
	}

	sweep(ctx, e, r, stuck, e.emailSweep(ClassifyStuck, stuckPlan))
	sweep(ctx, e, r, signups, e.emailSweep(ClassifyWelcome, welcomePlan))

	r.summary.Processed = len(stuck) + len(signups)
	return nil
}

func stuckPlan(c models.Customer, _ models.Category) emailPlan {
	day := "unknown"
	if c.OnboardingDay != nil {
		day = fmt.Sprintf("%d", *c.OnboardingDay)
	}
	return emailPlan{
		actionType: models.PurposeOnboardingFollowup,
		purpose:    models.PurposeOnboardingFollowup,
		context: fmt.Sprintf("Starter tier customer stuck in onboarding at day %s. Health score: %s. Features used: %s.",
			day, formatScore(c.HealthScore), c.FeatureSummary()),
		instruction:   "Send a helpful follow-up email to get them unstuck in onboarding",
		auditDetail:   fmt.Sprintf("Follow-up email sent to %s (stuck at day %s)", c.Name, day),
		success:       fmt.Sprintf("Follow-up email sent to %s", c.Name),
		auditFailures: true,
	}
}

func welcomePlan(c models.Customer, _ models.Category) emailPlan {
	return emailPlan{
		actionType:  models.PurposeWelcome,
		purpose:     models.PurposeWelcome,
		context:     fmt.Sprintf("New starter customer at %s. Just signed up.", c.Company),
		instruction: "Send a warm welcome email with getting-started steps",
		auditDetail: fmt.Sprintf("Welcome email sent to %s", c.Name),
		success:     fmt.Sprintf("Welcome email sent to %s", c.Name),
	}
}
