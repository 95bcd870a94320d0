// ABOUTME: Customer record and tier definitions for the health engine
// ABOUTME: Snapshots of store rows plus derived feature-adoption helpers
package models

import (
	"fmt"
	"strings"
	"time"
)

// Tier is a customer segment with its own classification thresholds and action set.
type Tier string

const (
	TierEntry Tier = "entry"
	TierMid   Tier = "mid"
	TierTop   Tier = "top"
)

// Tiers lists every tier in agent run order.
var Tiers = []Tier{TierEntry, TierMid, TierTop}

// ParseTier accepts tier names and the plan names used by the billing side
// (starter, professional, enterprise).
func ParseTier(s string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "entry", "starter":
		return TierEntry, nil
	case "mid", "professional":
		return TierMid, nil
	case "top", "enterprise":
		return TierTop, nil
	default:
		return "", fmt.Errorf("unknown tier: %q (valid: entry, mid, top)", s)
	}
}

// AgentName is the name the tier's agent uses in audit entries.
func (t Tier) AgentName() string {
	switch t {
	case TierEntry:
		return "starter"
	case TierMid:
		return "professional"
	case TierTop:
		return "enterprise"
	default:
		return string(t)
	}
}

// Onboarding status values maintained by the onboarding service.
const (
	OnboardingOnTrack = "on_track"
	OnboardingStuck   = "stuck"
	OnboardingDone    = "done"
)

// Customer is a read snapshot of a customer record. The engine only ever
// writes back ChurnRisk.
type Customer struct {
	ID                 string     `json:"id"`
	Name               string     `json:"name"`
	Email              string     `json:"email"`
	Company            string     `json:"company"`
	Tier               Tier       `json:"tier"`
	HealthScore        float64    `json:"health_score"`
	ChurnRisk          float64    `json:"churn_risk"`
	LoginsPerWeek      float64    `json:"logins_per_week"`
	FeaturesUsed       int        `json:"features_used"`
	TotalFeatures      int        `json:"total_features"`
	DaysSinceLastLogin int        `json:"days_since_last_login"`
	SupportTickets     int        `json:"support_tickets"`
	ARR                float64    `json:"arr,omitempty"`
	OnboardingStatus   string     `json:"onboarding_status,omitempty"`
	OnboardingDay      *int       `json:"onboarding_day,omitempty"`
	UpsellReady        bool       `json:"upsell_ready,omitempty"`
	UpsellValue        float64    `json:"upsell_value,omitempty"`
	LastLogin          *time.Time `json:"last_login,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

// FeatureAdoption returns features used over total features, 0 when unknown.
func (c *Customer) FeatureAdoption() float64 {
	if c.TotalFeatures <= 0 {
		return 0
	}
	return float64(c.FeaturesUsed) / float64(c.TotalFeatures)
}

// FeatureSummary renders adoption as "used/total".
func (c *Customer) FeatureSummary() string {
	return fmt.Sprintf("%d/%d", c.FeaturesUsed, c.TotalFeatures)
}

// DisplayName prefers the contact name and falls back to the company.
func (c *Customer) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	if c.Company != "" {
		return c.Company
	}
	return c.ID
}

// Prediction is an externally computed churn probability (0-100) for a customer.
type Prediction struct {
	CustomerID string  `json:"customer_id"`
	ChurnScore float64 `json:"churn_score"`
}

// CustomerFilter narrows a tier selection. The zero value selects the whole tier.
type CustomerFilter struct {
	MinChurnRisk *float64 // strictly greater than
	StuckOnly    bool
	UpsellReady  bool
}
