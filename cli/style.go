// ABOUTME: Terminal styles and run summary rendering
// ABOUTME: Shared by agent, report, and daemon commands
package cli

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/harperreed/retainiq/models"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("170"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	criticalText = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
)

// statusStyle colors a report status label.
func statusStyle(status string) lipgloss.Style {
	switch status {
	case "CRITICAL":
		return criticalText
	case "HIGH RISK":
		return errStyle
	case "MONITOR":
		return warnStyle
	default:
		return okStyle
	}
}

// printSummary renders a run summary for humans.
func printSummary(w io.Writer, s *models.RunSummary) {
	header := fmt.Sprintf("%s %s", s.Agent, s.Kind)
	_, _ = fmt.Fprintln(w, titleStyle.Render(header))

	status := okStyle.Render(s.Status)
	if s.Status == models.RunAborted {
		status = errStyle.Render(s.Status)
	}
	_, _ = fmt.Fprintf(w, "  Status:     %s\n", status)
	_, _ = fmt.Fprintf(w, "  Processed:  %d\n", s.Processed)
	_, _ = fmt.Fprintf(w, "  Dispatched: %d\n", s.Dispatched)
	if s.Failures > 0 {
		_, _ = fmt.Fprintf(w, "  Failures:   %s\n", warnStyle.Render(fmt.Sprint(s.Failures)))
	}
	if s.PersistenceFailures > 0 {
		_, _ = fmt.Fprintf(w, "  Unsaved:    %s\n", warnStyle.Render(fmt.Sprint(s.PersistenceFailures)))
	}
	if !s.FinishedAt.IsZero() {
		_, _ = fmt.Fprintf(w, "  Duration:   %s\n", s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond))
	}
	if s.Error != "" {
		_, _ = fmt.Fprintf(w, "  Error:      %s\n", errStyle.Render(s.Error))
	}

	if len(s.ActionCounts) > 0 {
		keys := make([]string, 0, len(s.ActionCounts))
		for k := range s.ActionCounts {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		_, _ = fmt.Fprintln(w, "\n  By action:")
		for _, k := range keys {
			_, _ = fmt.Fprintf(w, "    %-22s %d\n", k, s.ActionCounts[k])
		}
	}

	if len(s.Actions) > 0 {
		_, _ = fmt.Fprintln(w, "\n  Actions:")
		for _, a := range s.Actions {
			_, _ = fmt.Fprintf(w, "    • %s\n", a)
		}
	}
	_, _ = fmt.Fprintln(w)
}
