// ABOUTME: Google Calendar reads mapped into unified calendar events
// ABOUTME: Lists upcoming events and searches exam-like events for the next six months
package google

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/harperreed/schoolsync/logging"
	"github.com/harperreed/schoolsync/models"
)

const (
	primaryCalendar  = "primary"
	defaultMaxEvents = 50
	examQuery        = "exam OR test OR quiz OR examen"
	untitledEvent    = "Untitled Event"
)

type Calendar struct {
	service *calendar.Service
	now     func() time.Time
}

func NewCalendar(ctx context.Context, opts ...option.ClientOption) (*Calendar, error) {
	service, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}
	return &Calendar{service: service, now: time.Now}, nil
}

// ListEvents returns single (expanded) events from the primary calendar ordered by start time.
// Zero bounds are omitted from the query.
func (c *Calendar) ListEvents(ctx context.Context, timeMin, timeMax time.Time, maxResults int64) ([]models.CalendarEvent, error) {
	if maxResults <= 0 {
		maxResults = defaultMaxEvents
	}
	call := c.service.Events.List(primaryCalendar).
		MaxResults(maxResults).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx)
	if !timeMin.IsZero() {
		call = call.TimeMin(timeMin.Format(time.RFC3339))
	}
	if !timeMax.IsZero() {
		call = call.TimeMax(timeMax.Format(time.RFC3339))
	}

	resp, err := call.Do()
	if err != nil {
		logging.Error().Err(err).Msg("Failed to list Calendar events")
		return nil, fmt.Errorf("failed to list calendar events: %w", err)
	}

	events := make([]models.CalendarEvent, 0, len(resp.Items))
	for _, item := range resp.Items {
		events = append(events, mapGoogleEvent(item, c.now()))
	}
	logging.Debug().Int("count", len(events)).Msg("Listed Calendar events")
	return events, nil
}

// UpcomingEvents lists events between now and daysAhead days from now.
func (c *Calendar) UpcomingEvents(ctx context.Context, daysAhead int) ([]models.CalendarEvent, error) {
	now := c.now()
	return c.ListEvents(ctx, now, now.AddDate(0, 0, daysAhead), defaultMaxEvents)
}

// ExamEvents searches the next six months for exam-like events.
func (c *Calendar) ExamEvents(ctx context.Context) ([]models.CalendarEvent, error) {
	now := c.now()
	resp, err := c.service.Events.List(primaryCalendar).
		TimeMin(now.Format(time.RFC3339)).
		TimeMax(now.AddDate(0, 6, 0).Format(time.RFC3339)).
		Q(examQuery).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		logging.Error().Err(err).Msg("Failed to list exam events")
		return nil, fmt.Errorf("failed to list exam events: %w", err)
	}

	events := make([]models.CalendarEvent, 0, len(resp.Items))
	for _, item := range resp.Items {
		ev := mapGoogleEvent(item, now)
		ev.EventType = models.EventTypeExam
		events = append(events, ev)
	}
	logging.Debug().Int("count", len(events)).Msg("Listed exam events")
	return events, nil
}

func mapGoogleEvent(e *calendar.Event, now time.Time) models.CalendarEvent {
	sourceID := e.Id
	if sourceID == "" {
		sourceID = uuid.NewString()
	}
	title := e.Summary
	if title == "" {
		title = untitledEvent
	}

	meta := models.Metadata{
		"googleEventId": e.Id,
		"htmlLink":      e.HtmlLink,
		"status":        e.Status,
	}
	if e.HangoutLink != "" {
		meta["hangoutLink"] = e.HangoutLink
	}
	if e.Creator != nil {
		meta["creator"] = map[string]any{"email": e.Creator.Email, "displayName": e.Creator.DisplayName}
	}
	if e.Organizer != nil {
		meta["organizer"] = map[string]any{"email": e.Organizer.Email, "displayName": e.Organizer.DisplayName}
	}

	return models.CalendarEvent{
		Source:      models.SourceGoogleCalendar,
		SourceID:    sourceID,
		Title:       title,
		Description: optional(e.Description),
		StartTime:   eventTime(e.Start, now),
		EndTime:     eventTime(e.End, now),
		Location:    optional(e.Location),
		EventType:   models.EventTypeCalendar,
		Metadata:    meta,
	}
}

// eventTime prefers the timed start, then the all-day date, then now.
func eventTime(t *calendar.EventDateTime, now time.Time) time.Time {
	if t != nil {
		if t.DateTime != "" {
			if parsed, err := time.Parse(time.RFC3339, t.DateTime); err == nil {
				return parsed.UTC()
			}
		}
		if t.Date != "" {
			if parsed, err := time.Parse(time.DateOnly, t.Date); err == nil {
				return parsed
			}
		}
	}
	return now.UTC()
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
