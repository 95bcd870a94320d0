// ABOUTME: Runtime wiring shared by CLI commands
// ABOUTME: Builds the agent engine and its collaborators from configuration
package cli

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/charmbracelet/log"
	"github.com/harperreed/retainiq/agents"
	"github.com/harperreed/retainiq/config"
	"github.com/harperreed/retainiq/db"
	"github.com/harperreed/retainiq/events"
	"github.com/harperreed/retainiq/genai"
	"github.com/harperreed/retainiq/scoring"
	"github.com/harperreed/retainiq/workspace"
)

// App carries what every command needs.
type App struct {
	Config *config.Config
	DB     *sql.DB
	Logger *log.Logger
}

// NewLogger creates the stderr logger at the configured level.
func NewLogger(level string) *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "retainiq",
	})
	if lvl, err := log.ParseLevel(level); err == nil {
		logger.SetLevel(lvl)
	}
	return logger
}

// EngineOptions maps the engine config section onto agent options.
func EngineOptions(cfg *config.Config) agents.Options {
	opts := agents.DefaultOptions()
	e := cfg.Engine
	opts.Concurrency = e.Concurrency
	opts.RunTimeout = e.RunTimeout
	opts.CallTimeout = e.CallTimeout
	opts.AtRiskThreshold = e.AtRiskThreshold
	opts.CombineMidEmails = e.CombineMidEmails
	opts.MeetingLeadDays = e.MeetingLeadDays
	opts.MeetingDuration = e.MeetingDuration
	if r := cfg.AlertRecipient(); r != "" {
		opts.AlertRecipient = r
	}
	return opts
}

// BuildEngine connects every collaborator. In dry-run mode email, calendar,
// and report calls are logged instead of sent. The returned cleanup closes
// scoring and event connections.
func (a *App) BuildEngine(ctx context.Context, dryRun bool) (*agents.Engine, func(), error) {
	cfg := a.Config
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := agents.Deps{
		Customers: db.NewCustomerRepository(a.DB),
		Audit:     db.NewLogRepository(a.DB),
		Signals:   db.NewSignalRepository(a.DB),
		Logger:    a.Logger,
	}

	switch cfg.Scoring.Source {
	case config.ScoringPostgres:
		source, err := scoring.Connect(ctx, cfg.Scoring.PostgresURL, scoring.Options{
			Table: cfg.Scoring.Table,
			Scale: cfg.Scoring.Scale,
		})
		if err != nil {
			return nil, cleanup, fmt.Errorf("failed to connect scoring source: %w", err)
		}
		closers = append(closers, source.Close)
		deps.Scorer = source
	default:
		deps.Scorer = db.NewPredictionRepository(a.DB)
	}

	client, err := genai.NewClient(genai.ClientConfig{
		APIKey:            cfg.Anthropic.APIKey,
		Model:             anthropic.Model(cfg.Anthropic.Model),
		MaxTokens:         cfg.Anthropic.MaxTokens,
		RequestsPerSecond: cfg.Anthropic.RequestsPerSecond,
		BaseURL:           cfg.Anthropic.BaseURL,
	})
	if err != nil {
		cleanup()
		return nil, func() {}, fmt.Errorf("failed to create text generator: %w", err)
	}
	deps.Generator = client
	closers = append(closers, func() {
		in, out := client.Usage().Total()
		a.Logger.Debug("generation usage", "calls", client.Usage().Calls(), "input_tokens", in, "output_tokens", out)
	})

	if dryRun {
		deps.Notifier = &dryRunNotifier{logger: a.Logger}
		deps.Scheduler = &dryRunScheduler{logger: a.Logger}
		deps.Reporter = &dryRunReporter{logger: a.Logger}
	} else if err := a.wireWorkspace(ctx, &deps); err != nil {
		cleanup()
		return nil, func() {}, err
	}

	if len(cfg.Kafka.Brokers) > 0 {
		publisher, err := events.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.AuditTopic, cfg.Kafka.SignalsTopic)
		if err != nil {
			cleanup()
			return nil, func() {}, fmt.Errorf("failed to create event publisher: %w", err)
		}
		closers = append(closers, func() {
			if err := publisher.Close(); err != nil {
				a.Logger.Warn("failed to close event publisher", "err", err)
			}
		})
		deps.Events = publisher
	}

	engine, err := agents.NewEngine(deps, EngineOptions(cfg))
	if err != nil {
		cleanup()
		return nil, func() {}, err
	}
	return engine, cleanup, nil
}

func (a *App) wireWorkspace(ctx context.Context, deps *agents.Deps) error {
	g := a.Config.Google
	opts, err := workspace.ClientOptions(ctx, workspace.AuthConfig{
		ServiceAccount: g.ServiceAccount,
		Subject:        g.SenderEmail,
		ClientID:       g.ClientID,
		ClientSecret:   g.ClientSecret,
		TokenPath:      g.TokenPath,
	})
	if err != nil {
		return fmt.Errorf("failed to authenticate with Google (use --dry-run to skip delivery): %w", err)
	}

	sender, err := workspace.NewGmailSender(ctx, g.SenderEmail, opts...)
	if err != nil {
		return err
	}
	deps.Notifier = sender

	scheduler, err := workspace.NewCalendarScheduler(ctx, g.CalendarID, g.TimeZone, opts...)
	if err != nil {
		return err
	}
	deps.Scheduler = scheduler

	reporter, err := workspace.NewSheetsReporter(ctx, g.DriveFolderID, a.Logger, opts...)
	if err != nil {
		return err
	}
	deps.Reporter = reporter

	return nil
}
