// ABOUTME: MCP server subcommand
// ABOUTME: Serves the agent, activity, and FAQ tools plus resources and prompts on stdio
package cli

import (
	"context"
	"flag"

	"github.com/harperreed/retainiq/agents"
	"github.com/harperreed/retainiq/handlers"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// MCPCommand starts the MCP server on stdio
func MCPCommand(app *App, version string, args []string) error {
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)
	dryRun := fs.Bool("dry-run", false, "Log emails, meetings, and reports instead of sending them")
	_ = fs.Parse(args)

	app.Logger.Info("starting RetainIQ MCP server", "dry_run", *dryRun)

	ctx := context.Background()
	engine, cleanup, err := app.BuildEngine(ctx, *dryRun)
	if err != nil {
		return err
	}
	defer cleanup()

	server := NewMCPServer(app, engine, version)
	return server.Run(ctx, &mcp.StdioTransport{})
}

// NewMCPServer registers every tool, resource, and prompt.
func NewMCPServer(app *App, engine *agents.Engine, version string) *mcp.Server {
	agentHandlers := handlers.NewAgentHandlers(engine)
	activityHandlers := handlers.NewActivityHandlers(app.DB)

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "retainiq",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "run_agent",
		Description: "Run the customer success agent for a tier (entry, mid, top) and return the run summary",
	}, agentHandlers.RunAgent)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "run_weekly_report",
		Description: "Build the weekly enterprise health report and email it to the account manager",
	}, agentHandlers.RunWeeklyReport)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "run_monthly_emails",
		Description: "Send monthly summary emails to every mid tier customer",
	}, agentHandlers.RunMonthlyEmails)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "recent_logs",
		Description: "List recent agent audit entries, optionally filtered by agent",
	}, activityHandlers.RecentLogs)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_churn_signals",
		Description: "List recorded churn signals, optionally for one customer",
	}, activityHandlers.ListChurnSignals)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "dashboard_stats",
		Description: "Customer, at-risk, email, and churn signal counters plus recent activity",
	}, activityHandlers.DashboardStats)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "answer_faq",
		Description: "Answer a customer question using the tier's FAQ assistant",
	}, agentHandlers.AnswerFAQ)

	handlers.NewResourceHandlers(app.DB).Register(server)
	handlers.NewPromptHandlers(app.DB).Register(server)

	return server
}
