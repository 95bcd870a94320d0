// ABOUTME: Agent CLI commands
// ABOUTME: Runs tier agents, the weekly report, and monthly summary emails on demand
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/harperreed/retainiq/models"
)

// AgentRunCommand runs one or more tier agents once.
func AgentRunCommand(app *App, args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	tierFlag := fs.String("tier", "all", "Tier to run: entry, mid, top, or all")
	dryRun := fs.Bool("dry-run", false, "Log emails, meetings, and reports instead of sending them")
	asJSON := fs.Bool("json", false, "Print run summaries as JSON")
	_ = fs.Parse(args)

	tiers, err := parseTiers(*tierFlag)
	if err != nil {
		return err
	}

	ctx := context.Background()
	engine, cleanup, err := app.BuildEngine(ctx, *dryRun)
	if err != nil {
		return err
	}
	defer cleanup()

	var errs []error
	for _, tier := range tiers {
		summary, err := engine.RunAgent(ctx, tier)
		if summary != nil {
			if rerr := renderSummary(os.Stdout, summary, *asJSON); rerr != nil {
				return rerr
			}
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s agent: %w", tier.AgentName(), err))
		}
	}
	return errors.Join(errs...)
}

// AgentReportCommand builds and emails the weekly Top-tier report.
func AgentReportCommand(app *App, args []string) error {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	dryRun := fs.Bool("dry-run", false, "Log the report and email instead of creating them")
	asJSON := fs.Bool("json", false, "Print the report result as JSON")
	_ = fs.Parse(args)

	ctx := context.Background()
	engine, cleanup, err := app.BuildEngine(ctx, *dryRun)
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := engine.RunWeeklyReport(ctx)
	if result == nil {
		return err
	}

	if *asJSON {
		if jerr := writeJSON(os.Stdout, result); jerr != nil {
			return jerr
		}
		return err
	}

	fmt.Println(titleStyle.Render("Weekly Enterprise Report"))
	if result.ReportRef != "" {
		fmt.Printf("  Report: %s\n", result.ReportRef)
	} else {
		fmt.Printf("  Report: %s\n", warnStyle.Render("not created"))
	}
	if result.Summary != "" {
		fmt.Printf("\n%s\n", result.Summary)
	}
	fmt.Println()
	if result.Run != nil {
		printSummary(os.Stdout, result.Run)
	}
	return err
}

// AgentMonthlyCommand sends monthly summary emails to every Mid-tier customer.
func AgentMonthlyCommand(app *App, args []string) error {
	fs := flag.NewFlagSet("monthly", flag.ExitOnError)
	dryRun := fs.Bool("dry-run", false, "Log emails instead of sending them")
	asJSON := fs.Bool("json", false, "Print the run summary as JSON")
	_ = fs.Parse(args)

	ctx := context.Background()
	engine, cleanup, err := app.BuildEngine(ctx, *dryRun)
	if err != nil {
		return err
	}
	defer cleanup()

	summary, err := engine.RunMonthlyEmails(ctx)
	if summary != nil {
		if rerr := renderSummary(os.Stdout, summary, *asJSON); rerr != nil {
			return rerr
		}
	}
	return err
}

// parseTiers turns "all" or a comma-separated list into tiers in run order.
func parseTiers(s string) ([]models.Tier, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "all") {
		return append([]models.Tier(nil), models.Tiers...), nil
	}

	wanted := make(map[models.Tier]bool)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		tier, err := models.ParseTier(part)
		if err != nil {
			return nil, err
		}
		wanted[tier] = true
	}
	if len(wanted) == 0 {
		return nil, fmt.Errorf("no tiers specified")
	}

	var tiers []models.Tier
	for _, tier := range models.Tiers {
		if wanted[tier] {
			tiers = append(tiers, tier)
		}
	}
	return tiers, nil
}

func renderSummary(w io.Writer, s *models.RunSummary, asJSON bool) error {
	if asJSON {
		return writeJSON(w, s)
	}
	printSummary(w, s)
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}
