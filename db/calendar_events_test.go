package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harperreed/schoolsync/models"
)

func calendarEvent(sourceID string, start time.Time, kind string) models.CalendarEvent {
	return models.CalendarEvent{
		Source:    models.SourceGoogleCalendar,
		SourceID:  sourceID,
		Title:     "Event " + sourceID,
		StartTime: start,
		EndTime:   start.Add(time.Hour),
		EventType: kind,
		Metadata:  models.Metadata{"googleEventId": sourceID},
	}
}

func TestCalendarUpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := NewCalendarEventRepository(setupTestDB(t))
	start := time.Now().Add(24 * time.Hour).UTC()

	n, err := repo.UpsertEvents(ctx, []models.CalendarEvent{calendarEvent("e1", start, models.EventTypeCalendar)})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	changed := calendarEvent("e1", start, models.EventTypeCalendar)
	changed.Title = "Renamed"
	changed.Location = strPtr("Room 4")
	_, err = repo.UpsertEvents(ctx, []models.CalendarEvent{changed})
	require.NoError(t, err)

	events, err := repo.GetAllEvents(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Renamed", events[0].Title)
	assert.Equal(t, "Room 4", *events[0].Location)
	assert.Equal(t, "e1", events[0].Metadata["googleEventId"])
}

func TestCalendarRangeAndExamQueries(t *testing.T) {
	ctx := context.Background()
	repo := NewCalendarEventRepository(setupTestDB(t))
	now := time.Now().UTC()

	_, err := repo.UpsertEvents(ctx, []models.CalendarEvent{
		calendarEvent("past-exam", now.Add(-48*time.Hour), models.EventTypeExam),
		calendarEvent("later", now.Add(72*time.Hour), models.EventTypeCalendar),
		calendarEvent("soon", now.Add(2*time.Hour), models.EventTypeCalendar),
		calendarEvent("exam", now.Add(96*time.Hour), models.EventTypeExam),
	})
	require.NoError(t, err)

	inRange, err := repo.GetEventsByDateRange(ctx, now, now.Add(80*time.Hour))
	require.NoError(t, err)
	require.Len(t, inRange, 2)
	assert.Equal(t, "soon", inRange[0].SourceID)
	assert.Equal(t, "later", inRange[1].SourceID)

	exams, err := repo.GetExamEvents(ctx)
	require.NoError(t, err)
	require.Len(t, exams, 1)
	assert.Equal(t, "exam", exams[0].SourceID)
}
