// ABOUTME: Agent daemon command
// ABOUTME: Runs the selected tier agents on an interval until interrupted
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/harperreed/retainiq/agents"
	"github.com/harperreed/retainiq/models"
)

const minDaemonInterval = time.Minute

// tierRunner is the part of the engine the daemon drives.
type tierRunner interface {
	TryRunAgent(ctx context.Context, tier models.Tier) (*models.RunSummary, error)
}

// AgentDaemonCommand runs agents immediately and then on every tick.
func AgentDaemonCommand(app *App, args []string) error {
	fs := flag.NewFlagSet("daemon", flag.ExitOnError)
	interval := fs.Duration("interval", time.Hour, "Time between runs (minimum 1m)")
	tiersFlag := fs.String("tiers", "all", "Comma-separated tiers to run, or all")
	dryRun := fs.Bool("dry-run", false, "Log emails, meetings, and reports instead of sending them")
	_ = fs.Parse(args)

	if err := validateInterval(*interval); err != nil {
		return err
	}
	tiers, err := parseTiers(*tiersFlag)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engine, cleanup, err := app.BuildEngine(ctx, *dryRun)
	if err != nil {
		return err
	}
	defer cleanup()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case sig := <-sigChan:
			app.Logger.Info("shutting down", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	fmt.Println(titleStyle.Render("RetainIQ agent daemon"))
	fmt.Printf("  Tiers:    %v\n", tiers)
	fmt.Printf("  Interval: %s\n\n", *interval)

	return runDaemon(ctx, engine, tiers, *interval, os.Stdout, app.Logger)
}

func validateInterval(d time.Duration) error {
	if d < minDaemonInterval {
		return fmt.Errorf("interval must be at least %s, got %s", minDaemonInterval, d)
	}
	return nil
}

// runDaemon blocks until ctx is done. A run that is already in progress is
// allowed to finish; its context carries the cancellation.
func runDaemon(ctx context.Context, runner tierRunner, tiers []models.Tier, interval time.Duration, w io.Writer, logger *log.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastRun time.Time
	runAll := func() {
		for _, tier := range tiers {
			if ctx.Err() != nil {
				return
			}
			summary, err := runner.TryRunAgent(ctx, tier)
			switch {
			case errors.Is(err, agents.ErrEngineBusy):
				logger.Warn("skipping tier, another run is in progress", "tier", tier)
			case summary == nil:
				logger.Error("agent run failed", "tier", tier, "err", err)
			default:
				_, _ = fmt.Fprintln(w, daemonLine(summary))
			}
		}
		lastRun = time.Now()
	}

	runAll()
	for {
		select {
		case <-ctx.Done():
			_, _ = fmt.Fprintln(w, "Daemon stopped")
			return nil
		case <-ticker.C:
			_, _ = fmt.Fprintln(w, dimStyle.Render("previous run "+formatTimeSince(lastRun)))
			runAll()
		}
	}
}

func daemonLine(s *models.RunSummary) string {
	stamp := s.StartedAt.Local().Format("15:04:05")
	line := fmt.Sprintf("[%s] %s: %s, %d processed, %d dispatched, %d failures",
		stamp, s.Agent, s.Status, s.Processed, s.Dispatched, s.Failures)
	if s.Status == models.RunAborted {
		return errStyle.Render(line + " (" + s.Error + ")")
	}
	if s.Failures > 0 {
		return warnStyle.Render(line)
	}
	return okStyle.Render(line)
}

// formatTimeSince renders how long ago t was in coarse units.
func formatTimeSince(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return plural(int(d/time.Minute), "minute")
	case d < 24*time.Hour:
		return plural(int(d/time.Hour), "hour")
	default:
		return plural(int(d/(24*time.Hour)), "day")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}
