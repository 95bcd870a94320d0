// ABOUTME: Pure classification functions, one per sweep
// ABOUTME: Map a customer snapshot or churn score to an action category via fixed thresholds
package agents

import "github.com/harperreed/retainiq/models"

const (
	// CriticalThreshold and HighThreshold are exclusive lower bounds on the
	// Top-tier churn score.
	CriticalThreshold = 80.0
	HighThreshold     = 60.0
	// MonitorThreshold is used for report labels only, never for dispatch.
	MonitorThreshold = 30.0

	// DefaultAtRiskThreshold is the Mid-tier churn risk above which a
	// re-engagement email is sent.
	DefaultAtRiskThreshold = 50.0
)

// ClassifyStuck is the Entry stuck sweep: StuckFollowUp when onboarding is stuck.
func ClassifyStuck(c models.Customer) models.Category {
	if c.OnboardingStatus == models.OnboardingStuck {
		return models.Category{Kind: models.CategoryStuckFollowUp}
	}
	return models.Nominal
}

// ClassifyWelcome is the Entry new-signup sweep: WelcomeNeeded at onboarding
// day 0 or 1 unless onboarding is done.
func ClassifyWelcome(c models.Customer) models.Category {
	if c.OnboardingDay != nil && *c.OnboardingDay <= 1 && c.OnboardingStatus != models.OnboardingDone {
		return models.Category{Kind: models.CategoryWelcomeNeeded}
	}
	return models.Nominal
}

// ClassifyAtRisk is the Mid at-risk sweep.
func ClassifyAtRisk(c models.Customer, threshold float64) models.Category {
	if c.ChurnRisk > threshold {
		return models.Category{Kind: models.CategoryAtRisk, Score: c.ChurnRisk}
	}
	return models.Nominal
}

// ClassifyUpsell is the Mid upsell sweep.
func ClassifyUpsell(c models.Customer) models.Category {
	if c.UpsellReady {
		return models.Category{Kind: models.CategoryUpsellReady, Value: c.UpsellValue}
	}
	return models.Nominal
}

// ClassifyEscalation is the Top-tier step function of a fresh churn score.
func ClassifyEscalation(score float64) models.Category {
	switch {
	case score > CriticalThreshold:
		return models.Category{Kind: models.CategoryCritical, Score: score}
	case score > HighThreshold:
		return models.Category{Kind: models.CategoryHigh, Score: score}
	default:
		return models.Nominal
	}
}

// ReportStatus labels a churn risk for the weekly report.
func ReportStatus(risk float64) string {
	switch {
	case risk > CriticalThreshold:
		return "CRITICAL"
	case risk > HighThreshold:
		return "HIGH RISK"
	case risk > MonitorThreshold:
		return "MONITOR"
	default:
		return "HEALTHY"
	}
}
