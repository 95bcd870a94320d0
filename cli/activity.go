// ABOUTME: Audit trail CLI commands
// ABOUTME: Shows agent logs, run history, churn signals, and dashboard stats
package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/harperreed/retainiq/db"
	"github.com/harperreed/retainiq/models"
)

// LogsCommand prints recent agent log entries.
func LogsCommand(app *App, args []string) error {
	fs := flag.NewFlagSet("logs", flag.ExitOnError)
	agent := fs.String("agent", "", "Filter by agent (starter, professional, enterprise) or tier")
	limit := fs.Int("limit", 20, "Maximum entries")
	_ = fs.Parse(args)

	logs, err := db.NewLogRepository(app.DB).RecentLogs(context.Background(), resolveAgent(*agent), *limit)
	if err != nil {
		return fmt.Errorf("failed to fetch logs: %w", err)
	}
	if len(logs) == 0 {
		fmt.Println("No agent activity yet")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "TIME\tAGENT\tACTION\tCUSTOMER\tDETAILS")
	_, _ = fmt.Fprintln(w, "----\t-----\t------\t--------\t-------")
	for _, l := range logs {
		customer := "-"
		if l.CustomerID != nil {
			customer = *l.CustomerID
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			l.CreatedAt.Local().Format("2006-01-02 15:04"), l.AgentType, l.ActionType, customer, truncate(l.Details, 80))
	}
	_ = w.Flush()
	return nil
}

// RunsCommand prints recent run summaries.
func RunsCommand(app *App, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	limit := fs.Int("limit", 10, "Maximum runs")
	_ = fs.Parse(args)

	runs, err := db.NewLogRepository(app.DB).RecentRuns(context.Background(), *limit)
	if err != nil {
		return fmt.Errorf("failed to fetch runs: %w", err)
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded yet")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "STARTED\tAGENT\tKIND\tSTATUS\tPROCESSED\tDISPATCHED\tFAILURES\tDURATION")
	_, _ = fmt.Fprintln(w, "-------\t-----\t----\t------\t---------\t----------\t--------\t--------")
	for _, r := range runs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			r.StartedAt.Local().Format("2006-01-02 15:04"), r.Agent, r.Kind, r.Status,
			r.Processed, r.Dispatched, r.Failures, r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	}
	_ = w.Flush()
	return nil
}

// SignalsCommand prints recorded churn signals.
func SignalsCommand(app *App, args []string) error {
	fs := flag.NewFlagSet("signals", flag.ExitOnError)
	customerID := fs.String("customer", "", "Only signals for this customer ID")
	limit := fs.Int("limit", 20, "Maximum signals")
	_ = fs.Parse(args)

	signals, err := db.NewSignalRepository(app.DB).ListSignals(context.Background(), *customerID, *limit)
	if err != nil {
		return fmt.Errorf("failed to fetch churn signals: %w", err)
	}
	if len(signals) == 0 {
		fmt.Println("No churn signals recorded")
		return nil
	}

	for _, s := range signals {
		severity := strings.ToUpper(s.Severity)
		if s.Severity == models.SeverityCritical {
			severity = criticalText.Render(severity)
		} else {
			severity = warnStyle.Render(severity)
		}
		fmt.Printf("%s %s %s at %.1f%%\n", dimStyle.Render(s.DetectedAt.Local().Format("2006-01-02 15:04")), severity, s.CustomerID, s.ChurnScore)
		if s.Analysis != "" {
			fmt.Printf("  %s\n", s.Analysis)
		}
		for _, a := range s.RecommendedActions {
			fmt.Printf("  • %s\n", a)
		}
		fmt.Println()
	}
	return nil
}

// StatsCommand prints dashboard counters.
func StatsCommand(app *App, args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	_ = fs.Parse(args)

	stats, err := db.Stats(context.Background(), app.DB, time.Now())
	if err != nil {
		return err
	}

	fmt.Println(titleStyle.Render("RetainIQ dashboard"))
	fmt.Printf("  Customers:          %d\n", stats.TotalCustomers)
	fmt.Printf("  At risk:            %s\n", warnStyle.Render(fmt.Sprint(stats.AtRisk)))
	fmt.Printf("  Avg health:         %.1f\n", stats.AvgHealth)
	fmt.Printf("  Health bands:       %s red, %d yellow, %s green\n",
		errStyle.Render(fmt.Sprint(stats.HealthDistribution.Red)),
		stats.HealthDistribution.Yellow,
		okStyle.Render(fmt.Sprint(stats.HealthDistribution.Green)))
	fmt.Printf("  Emails today:       %d\n", stats.EmailsToday)
	fmt.Printf("  Emails this week:   %d\n", stats.EmailsThisWeek)
	fmt.Printf("  Emails this month:  %d\n", stats.EmailsThisMonth)
	fmt.Printf("  Churn signals 30d:  %d\n", stats.ChurnSignals30d)

	if len(stats.TierDistribution) > 0 {
		fmt.Println()
		fmt.Println(titleStyle.Render("By tier"))
		for _, ts := range stats.TierDistribution {
			fmt.Printf("  %-12s %3d customers  health %5.1f  churn %5.1f%%  ARR $%.0f\n",
				ts.Tier.AgentName(), ts.Count, ts.AvgHealth, ts.AvgChurn, ts.TotalARR)
		}
	}
	return nil
}

// resolveAgent accepts an agent name or any tier spelling.
func resolveAgent(s string) string {
	if s == "" {
		return ""
	}
	if tier, err := models.ParseTier(s); err == nil {
		return tier.AgentName()
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
