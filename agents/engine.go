// ABOUTME: Tier agent engine: wiring, run lifecycle, and summary finalization
// ABOUTME: One run at a time; candidates within a run are processed by a bounded pool
package agents

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/harperreed/retainiq/genai"
	"github.com/harperreed/retainiq/models"
)

// Deps are the engine's collaborators. Scheduler, Reporter, Events, and
// Logger are optional.
type Deps struct {
	Customers CustomerSource
	Scorer    Scorer
	Generator genai.Generator
	Notifier  Notifier
	Scheduler Scheduler
	Reporter  Reporter
	Audit     AuditStore
	Signals   SignalStore
	Events    EventPublisher
	Logger    *log.Logger
	Now       func() time.Time
}

// Options tune engine policy.
type Options struct {
	Concurrency     int
	RunTimeout      time.Duration
	CallTimeout     time.Duration
	AtRiskThreshold float64
	// CombineMidEmails sends one retention+expansion email to Mid customers
	// that are both at risk and upsell ready instead of two.
	CombineMidEmails bool
	MeetingLeadDays  int
	MeetingDuration  time.Duration
	// AlertRecipient receives churn alerts and weekly reports.
	AlertRecipient string
}

// DefaultOptions returns the engine defaults.
func DefaultOptions() Options {
	return Options{
		Concurrency:     5,
		RunTimeout:      10 * time.Minute,
		CallTimeout:     60 * time.Second,
		AtRiskThreshold: DefaultAtRiskThreshold,
		MeetingLeadDays: 7,
		MeetingDuration: 30 * time.Minute,
		AlertRecipient:  "team@retainiq.com",
	}
}

// Engine runs the tier agents.
type Engine struct {
	deps   Deps
	opts   Options
	writer *genai.Writer
	logger *log.Logger
	now    func() time.Time

	runMu sync.Mutex
}

// NewEngine validates deps and opts and creates an engine.
func NewEngine(deps Deps, opts Options) (*Engine, error) {
	switch {
	case deps.Customers == nil:
		return nil, fmt.Errorf("customer source is required")
	case deps.Scorer == nil:
		return nil, fmt.Errorf("scorer is required")
	case deps.Generator == nil:
		return nil, fmt.Errorf("text generator is required")
	case deps.Notifier == nil:
		return nil, fmt.Errorf("notifier is required")
	case deps.Audit == nil:
		return nil, fmt.Errorf("audit store is required")
	case deps.Signals == nil:
		return nil, fmt.Errorf("signal store is required")
	}
	if opts.Concurrency < 1 {
		return nil, fmt.Errorf("concurrency must be at least 1, got %d", opts.Concurrency)
	}
	if opts.RunTimeout <= 0 || opts.CallTimeout <= 0 {
		return nil, fmt.Errorf("timeouts must be positive")
	}
	if opts.MeetingDuration <= 0 {
		return nil, fmt.Errorf("meeting duration must be positive")
	}
	if opts.AlertRecipient == "" {
		return nil, fmt.Errorf("alert recipient is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	return &Engine{
		deps:   deps,
		opts:   opts,
		writer: genai.NewWriter(deps.Generator),
		logger: logger,
		now:    now,
	}, nil
}

// run is the mutable state of one invocation.
type run struct {
	summary     *models.RunSummary
	agent       string
	persistFail atomic.Int64
}

func (e *Engine) newRun(tier models.Tier, kind string) *run {
	return &run{
		agent: tier.AgentName(),
		summary: &models.RunSummary{
			ID:           uuid.NewString(),
			Agent:        tier.AgentName(),
			Tier:         tier,
			Kind:         kind,
			StartedAt:    e.now().UTC(),
			ActionCounts: map[string]int{},
			Actions:      []string{},
		},
	}
}

// RunAgent runs one tier's agent to completion. The returned summary is
// always non-nil and has been persisted; the error is non-nil only when the
// run aborted with ErrDataUnavailable.
func (e *Engine) RunAgent(ctx context.Context, tier models.Tier) (*models.RunSummary, error) {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	return e.runAgent(ctx, tier)
}

// TryRunAgent is RunAgent that returns ErrEngineBusy instead of waiting for
// an in-progress run.
func (e *Engine) TryRunAgent(ctx context.Context, tier models.Tier) (*models.RunSummary, error) {
	if !e.runMu.TryLock() {
		return nil, ErrEngineBusy
	}
	defer e.runMu.Unlock()
	return e.runAgent(ctx, tier)
}

func (e *Engine) runAgent(ctx context.Context, tier models.Tier) (*models.RunSummary, error) {
	var body func(context.Context, *run) error
	switch tier {
	case models.TierEntry:
		body = e.runEntry
	case models.TierMid:
		body = e.runMid
	case models.TierTop:
		body = e.runTop
	default:
		return nil, fmt.Errorf("unknown tier: %q", tier)
	}

	r := e.newRun(tier, models.RunKindAgent)
	return e.execute(ctx, r, body)
}

// execute applies the run timeout, runs body, and always finalizes.
func (e *Engine) execute(ctx context.Context, r *run, body func(context.Context, *run) error) (*models.RunSummary, error) {
	runCtx, cancel := context.WithTimeout(ctx, e.opts.RunTimeout)
	defer cancel()

	e.logger.Info("agent run started", "agent", r.agent, "kind", r.summary.Kind, "run", r.summary.ID)

	err := body(runCtx, r)
	e.finalize(ctx, r, err)

	if err != nil {
		return r.summary, err
	}
	return r.summary, nil
}

// finalize fills the terminal fields and writes the summary exactly once.
func (e *Engine) finalize(ctx context.Context, r *run, runErr error) {
	s := r.summary
	s.FinishedAt = e.now().UTC()
	s.Status = models.RunCompleted
	if runErr != nil {
		s.Status = models.RunAborted
		s.Error = runErr.Error()
		s.Processed = 0
		s.Dispatched = 0
	}

	s.PersistenceFailures = int(r.persistFail.Load())

	// The summary is written even when the caller's context is done.
	writeCtx := context.WithoutCancel(ctx)
	if err := e.persist(writeCtx, r, "run summary", func(ctx context.Context) error {
		return e.deps.Audit.RecordRun(ctx, s)
	}); err != nil {
		s.Actions = append(s.Actions, fmt.Sprintf("Run summary write failed: %v", err))
	} else {
		e.publishAudit(writeCtx, models.AgentLog{
			AgentType:  s.Agent,
			ActionType: s.Kind,
			Details:    s.Detail(),
			CreatedAt:  s.FinishedAt,
		})
	}
	s.PersistenceFailures = int(r.persistFail.Load())

	if runErr != nil {
		e.logger.Error("agent run aborted", "agent", r.agent, "kind", s.Kind, "err", runErr)
		return
	}
	e.logger.Info("agent run finished",
		"agent", r.agent, "kind", s.Kind, "processed", s.Processed,
		"dispatched", s.Dispatched, "failures", s.Failures,
		"duration", s.FinishedAt.Sub(s.StartedAt))
}

// dataUnavailable wraps a selection or scoring failure.
func dataUnavailable(what string, err error) error {
	if errors.Is(err, ErrDataUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", ErrDataUnavailable, what, err)
}

// selectCustomers runs the Selector with the per-call timeout.
func (e *Engine) selectCustomers(ctx context.Context, tier models.Tier, filter models.CustomerFilter) ([]models.Customer, error) {
	customers, err := callWithTimeout(ctx, e.opts.CallTimeout, func(ctx context.Context) ([]models.Customer, error) {
		return e.deps.Customers.Select(ctx, tier, filter)
	})
	if err != nil {
		return nil, dataUnavailable("select "+string(tier)+" customers", err)
	}
	return customers, nil
}

// callWithTimeout runs fn under its own deadline so one slow collaborator
// only affects the current candidate.
func callWithTimeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	callCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return fn(callCtx)
}
