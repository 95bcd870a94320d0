// ABOUTME: Unit tests for the agent daemon
// ABOUTME: Tests tier parsing, interval validation, time formatting, and the run loop
package cli

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/harperreed/retainiq/agents"
	"github.com/harperreed/retainiq/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTiers(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []models.Tier
		wantErr  bool
	}{
		{name: "all tiers", input: "all", expected: models.Tiers},
		{name: "empty means all", input: "", expected: models.Tiers},
		{name: "single tier", input: "top", expected: []models.Tier{models.TierTop}},
		{name: "plan names in run order", input: "enterprise,starter", expected: []models.Tier{models.TierEntry, models.TierTop}},
		{name: "spaces and duplicates", input: "mid, mid ,professional", expected: []models.Tier{models.TierMid}},
		{name: "unknown tier", input: "entry,gold", wantErr: true},
		{name: "only separators", input: " , ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := parseTiers(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestParseTiersDoesNotAliasDefaultOrder(t *testing.T) {
	result, err := parseTiers("all")
	require.NoError(t, err)
	result[0] = models.TierTop
	assert.Equal(t, models.TierEntry, models.Tiers[0])
}

func TestIntervalValidation(t *testing.T) {
	tests := []struct {
		interval time.Duration
		valid    bool
	}{
		{30 * time.Second, false},
		{59 * time.Second, false},
		{time.Minute, true},
		{15 * time.Minute, true},
		{24 * time.Hour, true},
	}

	for _, tt := range tests {
		t.Run(tt.interval.String(), func(t *testing.T) {
			err := validateInterval(tt.interval)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestFormatTimeSince(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name     string
		t        time.Time
		expected string
	}{
		{"never", time.Time{}, "never"},
		{"seconds", now.Add(-30 * time.Second), "just now"},
		{"one minute", now.Add(-61 * time.Second), "1 minute ago"},
		{"minutes", now.Add(-5*time.Minute - time.Second), "5 minutes ago"},
		{"one hour", now.Add(-61 * time.Minute), "1 hour ago"},
		{"hours", now.Add(-3*time.Hour - time.Minute), "3 hours ago"},
		{"one day", now.Add(-25 * time.Hour), "1 day ago"},
		{"days", now.Add(-5*24*time.Hour - time.Hour), "5 days ago"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatTimeSince(tt.t))
		})
	}
}

type countingRunner struct {
	mu     sync.Mutex
	calls  []models.Tier
	err    error
	onCall func(n int)
}

func (r *countingRunner) TryRunAgent(_ context.Context, tier models.Tier) (*models.RunSummary, error) {
	r.mu.Lock()
	r.calls = append(r.calls, tier)
	n := len(r.calls)
	r.mu.Unlock()

	if r.onCall != nil {
		r.onCall(n)
	}
	if r.err != nil {
		return nil, r.err
	}
	return &models.RunSummary{
		Agent:     tier.AgentName(),
		Tier:      tier,
		Kind:      models.RunKindAgent,
		Status:    models.RunCompleted,
		Processed: 2,
		StartedAt: time.Now(),
	}, nil
}

func (r *countingRunner) Calls() []models.Tier {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Tier(nil), r.calls...)
}

func quietLogger() *log.Logger {
	return log.New(io.Discard)
}

func TestRunDaemonRunsImmediately(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner := &countingRunner{onCall: func(n int) {
		if n == 2 {
			cancel()
		}
	}}
	var out bytes.Buffer

	err := runDaemon(ctx, runner, []models.Tier{models.TierEntry, models.TierTop}, time.Hour, &out, quietLogger())
	require.NoError(t, err)

	assert.Equal(t, []models.Tier{models.TierEntry, models.TierTop}, runner.Calls())
	assert.Contains(t, out.String(), "starter: completed, 2 processed")
	assert.Contains(t, out.String(), "enterprise: completed")
	assert.Contains(t, out.String(), "Daemon stopped")
}

func TestRunDaemonRepeatsOnTick(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner := &countingRunner{onCall: func(n int) {
		if n == 3 {
			cancel()
		}
	}}
	var out bytes.Buffer

	done := make(chan error, 1)
	go func() {
		done <- runDaemon(ctx, runner, []models.Tier{models.TierMid}, 10*time.Millisecond, &out, quietLogger())
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop")
	}

	assert.Len(t, runner.Calls(), 3)
	assert.Contains(t, out.String(), "previous run just now")
}

func TestRunDaemonStopsBetweenTiers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner := &countingRunner{onCall: func(int) { cancel() }}

	err := runDaemon(ctx, runner, models.Tiers, time.Hour, io.Discard, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, []models.Tier{models.TierEntry}, runner.Calls())
}

func TestRunDaemonSkipsBusyEngine(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner := &countingRunner{err: agents.ErrEngineBusy, onCall: func(n int) {
		if n == 2 {
			cancel()
		}
	}}
	var out bytes.Buffer

	err := runDaemon(ctx, runner, []models.Tier{models.TierEntry, models.TierMid}, time.Hour, &out, quietLogger())
	require.NoError(t, err)
	assert.Len(t, runner.Calls(), 2)
	assert.NotContains(t, out.String(), "completed")
}

func TestDaemonLineShowsAbortReason(t *testing.T) {
	line := daemonLine(&models.RunSummary{
		Agent:     "enterprise",
		Status:    models.RunAborted,
		Error:     "data unavailable: scoring down",
		StartedAt: time.Now(),
	})
	assert.Contains(t, line, "enterprise: aborted")
	assert.Contains(t, line, "scoring down")
}
