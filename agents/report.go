// ABOUTME: Weekly Top tier health report: spreadsheet, executive summary, and delivery
// ABOUTME: Report and email steps degrade independently; only roster selection can abort
package agents

import (
	"context"
	"fmt"

	"github.com/harperreed/retainiq/models"
)

// ReportHeader is the first row of every weekly report.
var ReportHeader = []string{"Company", "Health Score", "Churn Risk", "Logins/Week", "Features Used", "Support Tickets", "Status"}

// ReportResult is returned by RunWeeklyReport. ReportRef is empty when the
// report could not be created.
type ReportResult struct {
	ReportRef string             `json:"report_ref"`
	Summary   string             `json:"summary"`
	Actions   []string           `json:"actions"`
	Rows      [][]string         `json:"rows"`
	Run       *models.RunSummary `json:"run"`
}

// RunWeeklyReport builds the Top tier health report, stores it with the
// Reporter, and emails the executive summary to the alert recipient.
func (e *Engine) RunWeeklyReport(ctx context.Context) (*ReportResult, error) {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	result := &ReportResult{}
	r := e.newRun(models.TierTop, models.RunKindWeeklyReport)
	summary, err := e.execute(ctx, r, func(ctx context.Context, r *run) error {
		return e.weeklyReport(ctx, r, result)
	})
	result.Run = summary
	result.Actions = summary.Actions
	return result, err
}

func (e *Engine) weeklyReport(ctx context.Context, r *run, result *ReportResult) error {
	roster, err := e.selectCustomers(ctx, models.TierTop, models.CustomerFilter{})
	if err != nil {
		return err
	}
	r.summary.Processed = len(roster)

	result.Rows = ReportRows(roster)
	date := e.now().Format("2006-01-02")
	s := r.summary

	lines := make([]string, 0, len(roster))
	for _, c := range roster {
		lines = append(lines, fmt.Sprintf("%s: Health %s%%, Churn Risk %s%%, Logins %s/wk, Features %s",
			c.Company, formatScore(c.HealthScore), formatScore(c.ChurnRisk), formatScore(c.LoginsPerWeek), c.FeatureSummary()))
	}
	text, err := callWithTimeout(ctx, e.opts.CallTimeout, func(ctx context.Context) (string, error) {
		return e.writer.ReportSummary(ctx, lines)
	})
	if err != nil {
		e.logger.Warn("failed to generate executive summary", "err", err)
		s.Actions = append(s.Actions, fmt.Sprintf("Executive summary unavailable: %v", err))
	}
	result.Summary = text

	if e.deps.Reporter == nil {
		s.Actions = append(s.Actions, "Report creation skipped")
	} else {
		ref, err := callWithTimeout(ctx, e.opts.CallTimeout, func(ctx context.Context) (string, error) {
			return e.deps.Reporter.CreateReport(ctx, "RetainIQ Weekly Report - "+date, result.Rows)
		})
		if err != nil {
			e.logger.Warn("failed to create weekly report", "err", err)
			s.Actions = append(s.Actions, "Report creation skipped")
			s.Failures++
		} else {
			result.ReportRef = ref
			s.Actions = append(s.Actions, "Report created: "+ref)
			s.Dispatched++
			s.ActionCounts["report_created"]++
		}
	}

	link := result.ReportRef
	if link == "" {
		link = "not available"
	}
	body := fmt.Sprintf("Weekly Enterprise Report\n\n%s\n\nView full report: %s\n\nRetainIQ Enterprise Agent\n", result.Summary, link)
	subject := "RetainIQ Weekly Report - " + date

	_, err = callWithTimeout(ctx, e.opts.CallTimeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, e.deps.Notifier.Send(ctx, e.opts.AlertRecipient, subject, body)
	})
	if err != nil {
		e.logger.Warn("failed to email weekly report", "err", err)
		s.Actions = append(s.Actions, "Report email skipped")
		s.Failures++
		return nil
	}
	s.Actions = append(s.Actions, "Report emailed to account manager")
	s.Dispatched++
	s.ActionCounts["report_emailed"]++
	e.logEmail(ctx, r, nil, "", e.opts.AlertRecipient, subject, models.PurposeWeeklyReport)
	return nil
}

// ReportRows renders the report table, header first.
func ReportRows(customers []models.Customer) [][]string {
	rows := make([][]string, 0, len(customers)+1)
	rows = append(rows, ReportHeader)
	for _, c := range customers {
		rows = append(rows, []string{
			c.Company,
			formatScore(c.HealthScore) + "%",
			formatScore(c.ChurnRisk) + "%",
			formatScore(c.LoginsPerWeek),
			c.FeatureSummary(),
			fmt.Sprintf("%d", c.SupportTickets),
			ReportStatus(c.ChurnRisk),
		})
	}
	return rows
}
