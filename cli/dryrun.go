// ABOUTME: Logging stand-ins for Gmail, Calendar, and Sheets
// ABOUTME: Used by --dry-run so agents can be exercised without Google credentials
package cli

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/harperreed/retainiq/models"
)

type dryRunNotifier struct {
	logger *log.Logger
}

func (n *dryRunNotifier) Send(_ context.Context, to, subject, body string) error {
	n.logger.Info("dry run: email not sent", "to", to, "subject", subject, "bytes", len(body))
	return nil
}

type dryRunScheduler struct {
	logger *log.Logger
	seq    atomic.Int64
}

func (s *dryRunScheduler) ScheduleMeeting(_ context.Context, m models.Meeting) (string, error) {
	s.logger.Info("dry run: meeting not scheduled", "title", m.Title, "start", m.Start, "attendees", m.Attendees)
	return fmt.Sprintf("dry-run-event-%d", s.seq.Add(1)), nil
}

type dryRunReporter struct {
	logger *log.Logger
}

func (r *dryRunReporter) CreateReport(_ context.Context, title string, rows [][]string) (string, error) {
	r.logger.Info("dry run: report not created", "title", title, "rows", len(rows))
	return "dry-run://" + title, nil
}
