// ABOUTME: Google Calendar meeting scheduler
// ABOUTME: Inserts review meetings with attendees into the configured calendar
package workspace

import (
	"context"
	"fmt"
	"time"

	"github.com/harperreed/retainiq/models"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// CalendarScheduler creates events on one calendar.
type CalendarScheduler struct {
	svc        *calendar.Service
	calendarID string
	timeZone   string
}

// NewCalendarScheduler creates a Calendar API scheduler. Empty calendarID
// means the authenticated user's primary calendar.
func NewCalendarScheduler(ctx context.Context, calendarID, timeZone string, opts ...option.ClientOption) (*CalendarScheduler, error) {
	if calendarID == "" {
		calendarID = "primary"
	}
	if timeZone == "" {
		timeZone = "UTC"
	}
	if _, err := time.LoadLocation(timeZone); err != nil {
		return nil, fmt.Errorf("invalid calendar time zone %q: %w", timeZone, err)
	}

	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}

	return &CalendarScheduler{svc: svc, calendarID: calendarID, timeZone: timeZone}, nil
}

// ScheduleMeeting inserts the event and returns its link.
func (s *CalendarScheduler) ScheduleMeeting(ctx context.Context, m models.Meeting) (string, error) {
	if m.Duration <= 0 {
		return "", fmt.Errorf("meeting duration must be positive")
	}

	attendees := make([]*calendar.EventAttendee, 0, len(m.Attendees))
	for _, email := range m.Attendees {
		if email == "" {
			continue
		}
		attendees = append(attendees, &calendar.EventAttendee{Email: email})
	}

	event := &calendar.Event{
		Summary:     m.Title,
		Description: m.Description,
		Start: &calendar.EventDateTime{
			DateTime: m.Start.Format(time.RFC3339),
			TimeZone: s.timeZone,
		},
		End: &calendar.EventDateTime{
			DateTime: m.Start.Add(m.Duration).Format(time.RFC3339),
			TimeZone: s.timeZone,
		},
		Attendees: attendees,
	}

	created, err := s.svc.Events.Insert(s.calendarID, event).SendUpdates("all").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to create calendar event: %w", err)
	}

	if created.HtmlLink != "" {
		return created.HtmlLink, nil
	}
	return created.Id, nil
}
