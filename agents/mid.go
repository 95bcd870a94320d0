// ABOUTME: Mid tier agent: re-engagement for at-risk customers and upsell outreach
// ABOUTME: Also the monthly engagement summary run over the whole Mid tier
package agents

import (
	"context"
	"fmt"

	"github.com/harperreed/retainiq/models"
)

const combinedActionType = "re_engagement_upsell"

func (e *Engine) runMid(ctx context.Context, r *run) error {
	threshold := e.opts.AtRiskThreshold
	atRisk, err := e.selectCustomers(ctx, models.TierMid, models.CustomerFilter{MinChurnRisk: &threshold})
	if err != nil {
		return err
	}
	upsell, err := e.selectCustomers(ctx, models.TierMid, models.CustomerFilter{UpsellReady: true})
	if err != nil {
		return err
	}

	classifyAtRisk := func(c models.Customer) models.Category {
		return ClassifyAtRisk(c, threshold)
	}
	atRiskPlan := reEngagementPlan
	if e.opts.CombineMidEmails {
		atRiskPlan = func(c models.Customer, cat models.Category) emailPlan {
			if c.UpsellReady {
				return combinedPlan(c, cat)
			}
			return reEngagementPlan(c, cat)
		}

		// Customers already covered by a combined email are left out of the
		// upsell sweep.
		covered := make(map[string]bool, len(atRisk))
		for _, c := range atRisk {
			if c.UpsellReady {
				covered[c.ID] = true
			}
		}
		remaining := upsell[:0:0]
		for _, c := range upsell {
			if !covered[c.ID] {
				remaining = append(remaining, c)
			}
		}
		upsell = remaining
	}

	sweep(ctx, e, r, atRisk, e.emailSweep(classifyAtRisk, atRiskPlan))
	sweep(ctx, e, r, upsell, e.emailSweep(ClassifyUpsell, upsellPlan))

	r.summary.Processed = len(atRisk) + len(upsell)
	return nil
}

func reEngagementPlan(c models.Customer, cat models.Category) emailPlan {
	return emailPlan{
		actionType: models.PurposeReEngagement,
		purpose:    models.PurposeReEngagement,
		context: fmt.Sprintf("Professional customer at %s. Health score: %s. Churn risk: %s%%. Last login: %d days ago. Features used: %s.",
			c.Company, formatScore(c.HealthScore), formatScore(cat.Score), c.DaysSinceLastLogin, c.FeatureSummary()),
		instruction: "Send a re-engagement email to reduce churn risk",
		auditDetail: fmt.Sprintf("Re-engagement email sent to %s (%s%% risk)", c.Name, formatScore(cat.Score)),
		success:     fmt.Sprintf("Re-engagement email sent to %s", c.Name),
	}
}

func upsellPlan(c models.Customer, cat models.Category) emailPlan {
	return emailPlan{
		actionType: models.PurposeUpsell,
		purpose:    models.PurposeUpsell,
		context: fmt.Sprintf("Professional customer at %s. Using %s features. Health: %s. On plan for a while. Upsell value: $%.0f/yr.",
			c.Company, c.FeatureSummary(), formatScore(c.HealthScore), cat.Value),
		instruction: "Send an upsell email suggesting Enterprise tier upgrade",
		auditDetail: fmt.Sprintf("Upsell email sent to %s ($%.0f/yr potential)", c.Name, cat.Value),
		success:     fmt.Sprintf("Upsell email sent to %s", c.Name),
	}
}

func combinedPlan(c models.Customer, cat models.Category) emailPlan {
	return emailPlan{
		actionType: combinedActionType,
		purpose:    models.PurposeReEngagement,
		context: fmt.Sprintf("Professional customer at %s. Health score: %s. Churn risk: %s%%. Last login: %d days ago. Features used: %s. Qualifies for Enterprise upgrade worth $%.0f/yr.",
			c.Company, formatScore(c.HealthScore), formatScore(cat.Score), c.DaysSinceLastLogin, c.FeatureSummary(), c.UpsellValue),
		instruction: "Send one email that re-engages the customer and mentions the Enterprise tier upgrade as a way to get more value",
		auditDetail: fmt.Sprintf("Re-engagement and upsell email sent to %s (%s%% risk, $%.0f/yr potential)", c.Name, formatScore(cat.Score), c.UpsellValue),
		success:     fmt.Sprintf("Re-engagement and upsell email sent to %s", c.Name),
	}
}

// RunMonthlyEmails sends every Mid tier customer a monthly engagement summary.
func (e *Engine) RunMonthlyEmails(ctx context.Context) (*models.RunSummary, error) {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	r := e.newRun(models.TierMid, models.RunKindMonthlyEmails)
	return e.execute(ctx, r, func(ctx context.Context, r *run) error {
		customers, err := e.selectCustomers(ctx, models.TierMid, models.CustomerFilter{})
		if err != nil {
			return err
		}

		always := func(models.Customer) models.Category {
			return models.Category{Kind: models.CategoryMonthly}
		}
		sweep(ctx, e, r, customers, e.emailSweep(always, monthlyPlan))

		r.summary.Processed = len(customers)
		return nil
	})
}

func monthlyPlan(c models.Customer, _ models.Category) emailPlan {
	return emailPlan{
		actionType: models.PurposeMonthlySummary,
		purpose:    models.PurposeMonthlySummary,
		context: fmt.Sprintf("Monthly summary for %s. Health: %s%%. Logins/week: %s. Features: %s.",
			c.Company, formatScore(c.HealthScore), formatScore(c.LoginsPerWeek), c.FeatureSummary()),
		instruction: "Write a monthly engagement summary with tips for next month",
		auditDetail: fmt.Sprintf("Monthly summary sent to %s", c.Name),
		success:     fmt.Sprintf("Monthly summary sent to %s", c.Name),
	}
}
