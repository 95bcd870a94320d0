// ABOUTME: MCP prompt handlers for reusable customer-success workflow templates
// ABOUTME: Provides churn-review and tier-health prompts built from live store data
package handlers

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/harperreed/retainiq/agents"
	"github.com/harperreed/retainiq/db"
	"github.com/harperreed/retainiq/models"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type PromptHandlers struct {
	customers *db.CustomerRepository
	signals   *db.SignalRepository
}

func NewPromptHandlers(database *sql.DB) *PromptHandlers {
	return &PromptHandlers{
		customers: db.NewCustomerRepository(database),
		signals:   db.NewSignalRepository(database),
	}
}

// Register adds every prompt to server.
func (h *PromptHandlers) Register(server *mcp.Server) {
	server.AddPrompt(&mcp.Prompt{
		Name:        "churn-review",
		Description: "Review one customer's churn risk and recent signals",
		Arguments: []*mcp.PromptArgument{
			{Name: "customer_id", Description: "Customer to review", Required: true},
		},
	}, h.GetPrompt)
	server.AddPrompt(&mcp.Prompt{
		Name:        "tier-health",
		Description: "Summarize the health of every customer in a tier",
		Arguments: []*mcp.PromptArgument{
			{Name: "tier", Description: "entry, mid, or top", Required: true},
		},
	}, h.GetPrompt)
}

// GetPrompt generates the prompt message based on the template
func (h *PromptHandlers) GetPrompt(ctx context.Context, request *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	name := request.Params.Name
	arguments := request.Params.Arguments
	switch name {
	case "churn-review":
		return h.getChurnReviewPrompt(ctx, arguments)
	case "tier-health":
		return h.getTierHealthPrompt(ctx, arguments)
	default:
		return nil, fmt.Errorf("unknown prompt: %s", name)
	}
}

func (h *PromptHandlers) getChurnReviewPrompt(ctx context.Context, args map[string]string) (*mcp.GetPromptResult, error) {
	customerID, ok := args["customer_id"]
	if !ok || customerID == "" {
		return nil, fmt.Errorf("customer_id is required")
	}

	customer, err := h.customers.Get(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch customer: %w", err)
	}

	signals, err := h.signals.ListSignals(ctx, customerID, 5)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch churn signals: %w", err)
	}

	var promptText strings.Builder
	promptText.WriteString("Please review the churn risk of this customer:\n\n")
	fmt.Fprintf(&promptText, "Company: %s\n", customer.Company)
	fmt.Fprintf(&promptText, "Contact: %s <%s>\n", customer.Name, customer.Email)
	fmt.Fprintf(&promptText, "Tier: %s\n", customer.Tier)
	fmt.Fprintf(&promptText, "Health Score: %.0f\n", customer.HealthScore)
	fmt.Fprintf(&promptText, "Churn Risk: %.1f%% (%s)\n", customer.ChurnRisk, agents.ReportStatus(customer.ChurnRisk))
	fmt.Fprintf(&promptText, "Logins/Week: %.1f\n", customer.LoginsPerWeek)
	fmt.Fprintf(&promptText, "Features Used: %s\n", customer.FeatureSummary())
	fmt.Fprintf(&promptText, "Days Since Last Login: %d\n", customer.DaysSinceLastLogin)
	fmt.Fprintf(&promptText, "Support Tickets: %d\n", customer.SupportTickets)

	if len(signals) > 0 {
		promptText.WriteString("\nRecent Churn Signals:\n")
		for _, s := range signals {
			fmt.Fprintf(&promptText, "  - %s %s at %.1f%%: %s\n",
				s.DetectedAt.Format("2006-01-02"), s.Severity, s.ChurnScore, s.Analysis)
		}
	}

	promptText.WriteString("\nPlease provide:")
	promptText.WriteString("\n1. The most likely reasons this account could churn")
	promptText.WriteString("\n2. A concrete retention plan for the next 30 days")

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Churn review for: %s", customer.Company),
		Messages: []*mcp.PromptMessage{
			{
				Role:    "user",
				Content: &mcp.TextContent{Text: promptText.String()},
			},
		},
	}, nil
}

func (h *PromptHandlers) getTierHealthPrompt(ctx context.Context, args map[string]string) (*mcp.GetPromptResult, error) {
	tier, err := models.ParseTier(args["tier"])
	if err != nil {
		return nil, err
	}

	customers, err := h.customers.Select(ctx, tier, models.CustomerFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch customers: %w", err)
	}

	statusCount := make(map[string]int)
	var promptText strings.Builder
	fmt.Fprintf(&promptText, "Please assess the health of the %s tier (%d customers):\n\n", tier, len(customers))
	for _, c := range customers {
		status := agents.ReportStatus(c.ChurnRisk)
		statusCount[status]++
		fmt.Fprintf(&promptText, "  - %s: health %.0f, churn risk %.1f%% (%s), features %s\n",
			c.Company, c.HealthScore, c.ChurnRisk, status, c.FeatureSummary())
	}

	promptText.WriteString("\nBy status:\n")
	for _, status := range []string{"CRITICAL", "HIGH RISK", "MONITOR", "HEALTHY"} {
		fmt.Fprintf(&promptText, "  - %s: %d\n", status, statusCount[status])
	}

	promptText.WriteString("\nPlease provide:")
	promptText.WriteString("\n1. Accounts that need attention this week and why")
	promptText.WriteString("\n2. Patterns shared by the at-risk accounts")

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Tier health for: %s", tier),
		Messages: []*mcp.PromptMessage{
			{
				Role:    "user",
				Content: &mcp.TextContent{Text: promptText.String()},
			},
		},
	}, nil
}
