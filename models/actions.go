// ABOUTME: Action categories, per-candidate outcomes, and run summaries
// ABOUTME: Append-only audit, email, and churn-signal records written by the agents
package models

import (
	"fmt"
	"time"
)

// CategoryKind is the discrete action category assigned to a candidate in one sweep.
type CategoryKind string

const (
	CategoryNominal       CategoryKind = "nominal"
	CategoryWelcomeNeeded CategoryKind = "welcome_needed"
	CategoryStuckFollowUp CategoryKind = "stuck_follow_up"
	CategoryAtRisk        CategoryKind = "at_risk"
	CategoryUpsellReady   CategoryKind = "upsell_ready"
	CategoryCritical      CategoryKind = "critical"
	CategoryHigh          CategoryKind = "high"
	// CategoryMonthly is the unconditional monthly summary sweep.
	CategoryMonthly CategoryKind = "monthly_summary"
)

// Category is a tagged variant. Score is set for AtRisk, Critical, and High;
// Value is set for UpsellReady.
type Category struct {
	Kind  CategoryKind `json:"kind"`
	Score float64      `json:"score,omitempty"`
	Value float64      `json:"value,omitempty"`
}

// Nominal is the category that dispatches nothing.
var Nominal = Category{Kind: CategoryNominal}

// IsNominal reports whether the category dispatches nothing.
func (c Category) IsNominal() bool {
	return c.Kind == "" || c.Kind == CategoryNominal
}

func (c Category) String() string {
	switch c.Kind {
	case CategoryAtRisk, CategoryCritical, CategoryHigh:
		return fmt.Sprintf("%s(%.1f)", c.Kind, c.Score)
	case CategoryUpsellReady:
		return fmt.Sprintf("%s(%.0f)", c.Kind, c.Value)
	default:
		return string(c.Kind)
	}
}

// SubAction is one attempted side effect for a candidate.
type SubAction struct {
	Name  string `json:"name"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// ActionOutcome is the result of dispatching one category for one candidate.
type ActionOutcome struct {
	CustomerID string      `json:"customer_id"`
	Customer   string      `json:"customer"`
	Category   Category    `json:"category"`
	SubActions []SubAction `json:"sub_actions"`
	// Dispatched is true when the primary side effect of the category succeeded.
	Dispatched bool     `json:"dispatched"`
	ActionType string   `json:"action_type,omitempty"`
	Actions    []string `json:"actions"`
}

// Failed reports whether any sub-action failed.
func (o *ActionOutcome) Failed() bool {
	for _, s := range o.SubActions {
		if !s.OK {
			return true
		}
	}
	return false
}

// Run status values.
const (
	RunCompleted = "completed"
	RunAborted   = "aborted"
)

// Run kinds.
const (
	RunKindAgent         = "agent_run"
	RunKindWeeklyReport  = "weekly_report"
	RunKindMonthlyEmails = "monthly_emails"
)

// RunSummary aggregates one agent invocation. It is written once at the end of
// the run and never read back by the engine.
type RunSummary struct {
	ID                  string         `json:"id"`
	Agent               string         `json:"agent"`
	Tier                Tier           `json:"tier"`
	Kind                string         `json:"kind"`
	StartedAt           time.Time      `json:"started_at"`
	FinishedAt          time.Time      `json:"finished_at"`
	Processed           int            `json:"processed"`
	Dispatched          int            `json:"actions_dispatched"`
	Failures            int            `json:"failures"`
	PersistenceFailures int            `json:"persistence_failures"`
	ActionCounts        map[string]int `json:"action_counts"`
	Actions             []string       `json:"actions"`
	Status              string         `json:"status"`
	Error               string         `json:"error,omitempty"`

	// Outcomes is returned to callers but not stored with the summary; each
	// outcome already has its own audit entries.
	Outcomes []ActionOutcome `json:"outcomes,omitempty"`
}

// Detail renders the one-line description stored with the summary audit entry.
func (s *RunSummary) Detail() string {
	if s.Status == RunAborted {
		return fmt.Sprintf("%s %s aborted: %s", s.Agent, s.Kind, s.Error)
	}
	return fmt.Sprintf("%s %s completed. Processed %d candidates, dispatched %d actions, %d failures.",
		s.Agent, s.Kind, s.Processed, s.Dispatched, s.Failures)
}

// Churn signal severities.
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
)

// ChurnSignal is an append-only record of a detected Top-tier risk event.
type ChurnSignal struct {
	ID                 string    `json:"id"`
	CustomerID         string    `json:"customer_id"`
	ChurnScore         float64   `json:"churn_score"`
	Severity           string    `json:"severity"`
	Analysis           string    `json:"analysis"`
	RecommendedActions []string  `json:"recommended_actions"`
	DetectedAt         time.Time `json:"detected_at"`
}

// AgentLog is an audit entry for one dispatched action or one finished run.
type AgentLog struct {
	ID         string    `json:"id"`
	AgentType  string    `json:"agent_type"`
	ActionType string    `json:"action_type"`
	CustomerID *string   `json:"customer_id,omitempty"`
	Details    string    `json:"details"`
	CreatedAt  time.Time `json:"created_at"`
}

// Email purposes recorded in the email log.
const (
	PurposeOnboardingFollowup = "onboarding_followup"
	PurposeWelcome            = "welcome"
	PurposeReEngagement       = "re_engagement"
	PurposeUpsell             = "upsell"
	PurposeMonthlySummary     = "monthly_summary"
	PurposeChurnAlert         = "churn_alert"
	PurposeWeeklyReport       = "weekly_report"
)

// EmailLog records one delivered notification.
type EmailLog struct {
	ID         string    `json:"id"`
	AgentType  string    `json:"agent_type"`
	CustomerID string    `json:"customer_id"`
	ToEmail    string    `json:"to_email"`
	Subject    string    `json:"subject"`
	Purpose    string    `json:"purpose"`
	SentAt     time.Time `json:"sent_at"`
}

// FAQQuery records a question answered by the FAQ assistant.
type FAQQuery struct {
	ID         string    `json:"id"`
	CustomerID *string   `json:"customer_id,omitempty"`
	Question   string    `json:"question"`
	Answer     string    `json:"answer"`
	CreatedAt  time.Time `json:"created_at"`
}

// DashboardStats is the overview consumed by the dashboard.
type DashboardStats struct {
	TotalCustomers     int                `json:"total_customers"`
	AtRisk             int                `json:"at_risk"`
	AvgHealth          float64            `json:"avg_health"`
	EmailsToday        int                `json:"emails_today"`
	EmailsThisWeek     int                `json:"emails_this_week"`
	EmailsThisMonth    int                `json:"emails_this_month"`
	ChurnSignals30d    int                `json:"churn_signals_30d"`
	TierDistribution   []TierStats        `json:"tier_distribution"`
	HealthDistribution HealthDistribution `json:"health_distribution"`
}

// TierStats aggregates the customers of one tier.
type TierStats struct {
	Tier      Tier    `json:"tier"`
	Count     int     `json:"count"`
	AvgHealth float64 `json:"avg_health"`
	AvgChurn  float64 `json:"avg_churn"`
	TotalARR  float64 `json:"total_arr"`
}

// Health bands: red below HealthRedBelow, yellow below HealthYellowBelow,
// green otherwise.
const (
	HealthRedBelow    = 40
	HealthYellowBelow = 70
)

// HealthDistribution counts customers per health band.
type HealthDistribution struct {
	Red    int `json:"red"`
	Yellow int `json:"yellow"`
	Green  int `json:"green"`
}

// Meeting is a calendar invitation created for an escalated customer.
type Meeting struct {
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Start       time.Time     `json:"start"`
	Duration    time.Duration `json:"duration"`
	Attendees   []string      `json:"attendees"`
}
