// ABOUTME: Bounded worker pool for one sweep and per-candidate outcome bookkeeping
// ABOUTME: Failures are isolated at the candidate boundary and merged in selection order
package agents

import (
	"context"
	"fmt"

	"github.com/harperreed/retainiq/models"
	"golang.org/x/sync/errgroup"
)

// sweep runs handle for every item with at most Concurrency in flight.
// Outcomes land in selection order regardless of completion order.
func sweep[T any](ctx context.Context, e *Engine, r *run, items []T, handle func(context.Context, *run, T) *models.ActionOutcome) {
	outcomes := make([]*models.ActionOutcome, len(items))

	var g errgroup.Group
	g.SetLimit(e.opts.Concurrency)
	for i, item := range items {
		g.Go(func() error {
			defer func() {
				if p := recover(); p != nil {
					e.logger.Error("candidate handler panicked", "agent", r.agent, "panic", p)
					o := &models.ActionOutcome{Category: models.Category{Kind: "error"}}
					markFailed(o, "handle", fmt.Errorf("panic: %v", p))
					o.Actions = append(o.Actions, fmt.Sprintf("Error processing candidate %d: panic: %v", i, p))
					outcomes[i] = o
				}
			}()
			outcomes[i] = handle(ctx, r, item)
			return nil
		})
	}
	_ = g.Wait()

	merge(r.summary, outcomes)
}

// merge folds outcomes into the summary. Nominal outcomes only contribute
// their action strings.
func merge(s *models.RunSummary, outcomes []*models.ActionOutcome) {
	for _, o := range outcomes {
		if o == nil {
			continue
		}
		s.Outcomes = append(s.Outcomes, *o)
		s.Actions = append(s.Actions, o.Actions...)
		if o.Category.IsNominal() {
			continue
		}
		if o.Dispatched {
			s.Dispatched++
			s.ActionCounts[o.ActionType]++
		} else {
			s.Failures++
		}
	}
}

func newOutcome(id, name string, category models.Category, actionType string) *models.ActionOutcome {
	return &models.ActionOutcome{
		CustomerID: id,
		Customer:   name,
		Category:   category,
		ActionType: actionType,
		SubActions: []models.SubAction{},
		Actions:    []string{},
	}
}

func markOK(o *models.ActionOutcome, step string) {
	o.SubActions = append(o.SubActions, models.SubAction{Name: step, OK: true})
}

func markFailed(o *models.ActionOutcome, step string, err error) {
	o.SubActions = append(o.SubActions, models.SubAction{Name: step, OK: false, Error: err.Error()})
}

// candidateFailed converts an error into the candidate's failure record.
func (e *Engine) candidateFailed(r *run, o *models.ActionOutcome, err error) {
	e.logger.Warn("candidate failed", "agent", r.agent, "customer", o.CustomerID, "err", err)
	o.Actions = append(o.Actions, fmt.Sprintf("Error processing %s: %v", o.Customer, err))
}
