// ABOUTME: Agent MCP tool handlers
// ABOUTME: Implements run_agent, run_weekly_report, run_monthly_emails, and answer_faq tools
package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/harperreed/retainiq/agents"
	"github.com/harperreed/retainiq/models"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// AgentRunner is the engine surface the tools drive.
type AgentRunner interface {
	TryRunAgent(ctx context.Context, tier models.Tier) (*models.RunSummary, error)
	RunWeeklyReport(ctx context.Context) (*agents.ReportResult, error)
	RunMonthlyEmails(ctx context.Context) (*models.RunSummary, error)
	AnswerFAQ(ctx context.Context, question, tier, customerID string) (string, error)
}

type AgentHandlers struct {
	runner AgentRunner
}

func NewAgentHandlers(runner AgentRunner) *AgentHandlers {
	return &AgentHandlers{runner: runner}
}

type RunAgentInput struct {
	Tier string `json:"tier" jsonschema:"Customer tier to run: entry, mid, or top (starter, professional, enterprise also accepted)"`
}

type RunOutput struct {
	ID                  string         `json:"id"`
	Agent               string         `json:"agent"`
	Kind                string         `json:"kind"`
	Status              string         `json:"status"`
	Processed           int            `json:"processed"`
	Dispatched          int            `json:"actions_dispatched"`
	Failures            int            `json:"failures"`
	PersistenceFailures int            `json:"persistence_failures"`
	ActionCounts        map[string]int `json:"action_counts"`
	Actions             []string       `json:"actions"`
	Error               string         `json:"error,omitempty"`
	Duration            string         `json:"duration"`
}

func (h *AgentHandlers) RunAgent(ctx context.Context, _ *mcp.CallToolRequest, input RunAgentInput) (*mcp.CallToolResult, RunOutput, error) {
	if input.Tier == "" {
		return nil, RunOutput{}, fmt.Errorf("tier is required")
	}
	tier, err := models.ParseTier(input.Tier)
	if err != nil {
		return nil, RunOutput{}, err
	}

	summary, err := h.runner.TryRunAgent(ctx, tier)
	if summary == nil {
		return nil, RunOutput{}, fmt.Errorf("failed to run %s agent: %w", tier.AgentName(), err)
	}
	// Aborted runs still return their summary; the reason is in Error.
	return nil, runToOutput(summary), nil
}

type RunWeeklyReportInput struct{}

type WeeklyReportOutput struct {
	ReportRef string     `json:"report_ref"`
	Summary   string     `json:"summary"`
	Actions   []string   `json:"actions"`
	Rows      [][]string `json:"rows,omitempty"`
	Run       RunOutput  `json:"run"`
}

func (h *AgentHandlers) RunWeeklyReport(ctx context.Context, _ *mcp.CallToolRequest, _ RunWeeklyReportInput) (*mcp.CallToolResult, WeeklyReportOutput, error) {
	result, err := h.runner.RunWeeklyReport(ctx)
	if result == nil || result.Run == nil {
		return nil, WeeklyReportOutput{}, fmt.Errorf("failed to run weekly report: %w", err)
	}

	return nil, WeeklyReportOutput{
		ReportRef: result.ReportRef,
		Summary:   result.Summary,
		Actions:   result.Actions,
		Rows:      result.Rows,
		Run:       runToOutput(result.Run),
	}, nil
}

type RunMonthlyEmailsInput struct{}

func (h *AgentHandlers) RunMonthlyEmails(ctx context.Context, _ *mcp.CallToolRequest, _ RunMonthlyEmailsInput) (*mcp.CallToolResult, RunOutput, error) {
	summary, err := h.runner.RunMonthlyEmails(ctx)
	if summary == nil {
		return nil, RunOutput{}, fmt.Errorf("failed to run monthly emails: %w", err)
	}
	return nil, runToOutput(summary), nil
}

type AnswerFAQInput struct {
	Question   string `json:"question" jsonschema:"The customer's question (required)"`
	Tier       string `json:"tier,omitempty" jsonschema:"Customer tier, defaults to entry"`
	CustomerID string `json:"customer_id,omitempty" jsonschema:"Customer asking the question, recorded with the answer"`
}

type AnswerFAQOutput struct {
	Answer string `json:"answer"`
}

func (h *AgentHandlers) AnswerFAQ(ctx context.Context, _ *mcp.CallToolRequest, input AnswerFAQInput) (*mcp.CallToolResult, AnswerFAQOutput, error) {
	if input.Question == "" {
		return nil, AnswerFAQOutput{}, fmt.Errorf("question is required")
	}

	answer, err := h.runner.AnswerFAQ(ctx, input.Question, input.Tier, input.CustomerID)
	if err != nil {
		return nil, AnswerFAQOutput{}, err
	}
	return nil, AnswerFAQOutput{Answer: answer}, nil
}

func runToOutput(s *models.RunSummary) RunOutput {
	counts := s.ActionCounts
	if counts == nil {
		counts = map[string]int{}
	}
	return RunOutput{
		ID:                  s.ID,
		Agent:               s.Agent,
		Kind:                s.Kind,
		Status:              s.Status,
		Processed:           s.Processed,
		Dispatched:          s.Dispatched,
		Failures:            s.Failures,
		PersistenceFailures: s.PersistenceFailures,
		ActionCounts:        counts,
		Actions:             s.Actions,
		Error:               s.Error,
		Duration:            s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond).String(),
	}
}

