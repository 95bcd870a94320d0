// ABOUTME: Activity MCP tool handlers
// ABOUTME: Implements recent_logs, list_churn_signals, and dashboard_stats tools
package handlers

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/harperreed/retainiq/db"
	"github.com/harperreed/retainiq/models"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type ActivityHandlers struct {
	db      *sql.DB
	logs    *db.LogRepository
	signals *db.SignalRepository
	now     func() time.Time
}

func NewActivityHandlers(database *sql.DB) *ActivityHandlers {
	return &ActivityHandlers{
		db:      database,
		logs:    db.NewLogRepository(database),
		signals: db.NewSignalRepository(database),
		now:     time.Now,
	}
}

type RecentLogsInput struct {
	Agent string `json:"agent,omitempty" jsonschema:"Filter by agent (starter, professional, enterprise) or tier"`
	Limit int    `json:"limit,omitempty" jsonschema:"Maximum number of entries (default 20)"`
}

type LogOutput struct {
	ID         string `json:"id"`
	Agent      string `json:"agent"`
	ActionType string `json:"action_type"`
	CustomerID string `json:"customer_id,omitempty"`
	Details    string `json:"details"`
	CreatedAt  string `json:"created_at"`
}

type RecentLogsOutput struct {
	Logs []LogOutput `json:"logs"`
}

func (h *ActivityHandlers) RecentLogs(ctx context.Context, _ *mcp.CallToolRequest, input RecentLogsInput) (*mcp.CallToolResult, RecentLogsOutput, error) {
	limit := input.Limit
	if limit == 0 {
		limit = 20
	}

	logs, err := h.logs.RecentLogs(ctx, agentName(input.Agent), limit)
	if err != nil {
		return nil, RecentLogsOutput{}, fmt.Errorf("failed to fetch logs: %w", err)
	}

	out := RecentLogsOutput{Logs: make([]LogOutput, 0, len(logs))}
	for _, l := range logs {
		out.Logs = append(out.Logs, logToOutput(l))
	}
	return nil, out, nil
}

type ListChurnSignalsInput struct {
	CustomerID string `json:"customer_id,omitempty" jsonschema:"Only signals for this customer"`
	Limit      int    `json:"limit,omitempty" jsonschema:"Maximum number of signals (default 20)"`
}

type SignalOutput struct {
	ID                 string   `json:"id"`
	CustomerID         string   `json:"customer_id"`
	ChurnScore         float64  `json:"churn_score"`
	Severity           string   `json:"severity"`
	Analysis           string   `json:"analysis"`
	RecommendedActions []string `json:"recommended_actions"`
	DetectedAt         string   `json:"detected_at"`
}

type ListChurnSignalsOutput struct {
	Signals []SignalOutput `json:"signals"`
}

func (h *ActivityHandlers) ListChurnSignals(ctx context.Context, _ *mcp.CallToolRequest, input ListChurnSignalsInput) (*mcp.CallToolResult, ListChurnSignalsOutput, error) {
	limit := input.Limit
	if limit == 0 {
		limit = 20
	}

	signals, err := h.signals.ListSignals(ctx, input.CustomerID, limit)
	if err != nil {
		return nil, ListChurnSignalsOutput{}, fmt.Errorf("failed to fetch churn signals: %w", err)
	}

	out := ListChurnSignalsOutput{Signals: make([]SignalOutput, 0, len(signals))}
	for _, s := range signals {
		out.Signals = append(out.Signals, SignalOutput{
			ID:                 s.ID,
			CustomerID:         s.CustomerID,
			ChurnScore:         s.ChurnScore,
			Severity:           s.Severity,
			Analysis:           s.Analysis,
			RecommendedActions: s.RecommendedActions,
			DetectedAt:         s.DetectedAt.Format(time.RFC3339),
		})
	}
	return nil, out, nil
}

type DashboardStatsInput struct {
	Agent string `json:"agent,omitempty" jsonschema:"Restrict recent activity to one agent"`
}

type DashboardStatsOutput struct {
	Stats          models.DashboardStats `json:"stats"`
	RecentActivity []LogOutput           `json:"recent_activity"`
}

func (h *ActivityHandlers) DashboardStats(ctx context.Context, _ *mcp.CallToolRequest, input DashboardStatsInput) (*mcp.CallToolResult, DashboardStatsOutput, error) {
	stats, err := db.Stats(ctx, h.db, h.now())
	if err != nil {
		return nil, DashboardStatsOutput{}, err
	}

	logs, err := h.logs.RecentLogs(ctx, agentName(input.Agent), 20)
	if err != nil {
		return nil, DashboardStatsOutput{}, fmt.Errorf("failed to fetch logs: %w", err)
	}

	out := DashboardStatsOutput{Stats: *stats, RecentActivity: make([]LogOutput, 0, len(logs))}
	for _, l := range logs {
		out.RecentActivity = append(out.RecentActivity, logToOutput(l))
	}
	return nil, out, nil
}

// agentName accepts an agent name or any tier spelling.
func agentName(s string) string {
	if s == "" {
		return ""
	}
	if tier, err := models.ParseTier(s); err == nil {
		return tier.AgentName()
	}
	return s
}

func logToOutput(l models.AgentLog) LogOutput {
	out := LogOutput{
		ID:         l.ID,
		Agent:      l.AgentType,
		ActionType: l.ActionType,
		Details:    l.Details,
		CreatedAt:  l.CreatedAt.Format(time.RFC3339),
	}
	if l.CustomerID != nil {
		out.CustomerID = *l.CustomerID
	}
	return out
}
