// ABOUTME: Merges imported calendar events with SIS lessons into one ordered timeline
// ABOUTME: Lessons are reshaped into calendar events tagged as lessons
package timeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/harperreed/schoolsync/models"
)

// DefaultWindow is the range used when a caller gives no end date.
const DefaultWindow = 30 * 24 * time.Hour

// Sources lists the provenance of every merged timeline.
var Sources = []string{models.SourceGoogleCalendar, models.SourcePronote}

type Merged struct {
	Data    []models.CalendarEvent `json:"data"`
	Sources []string               `json:"sources"`
}

type EventReader interface {
	GetEventsByDateRange(ctx context.Context, start, end time.Time) ([]models.CalendarEvent, error)
}

type LessonReader interface {
	GetLessonsBetween(ctx context.Context, start, end time.Time) ([]models.Lesson, error)
}

// LessonToEvent reshapes a lesson as a calendar event.
func LessonToEvent(l models.Lesson) models.CalendarEvent {
	title := l.Subject
	if l.Teacher != nil && *l.Teacher != "" {
		title = fmt.Sprintf("%s - %s", l.Subject, *l.Teacher)
	}
	var desc *string
	if l.Room != nil && *l.Room != "" {
		d := "Room: " + *l.Room
		desc = &d
	}
	return models.CalendarEvent{
		ID:          l.ID,
		Source:      l.Source,
		SourceID:    l.SourceID,
		Title:       title,
		Description: desc,
		StartTime:   l.StartTime,
		EndTime:     l.EndTime,
		Location:    l.Room,
		EventType:   models.EventTypeLesson,
		Metadata:    l.Metadata,
		CreatedAt:   l.CreatedAt,
		UpdatedAt:   l.UpdatedAt,
	}
}

// Merge combines events with lessons starting inside [start, end], ordered by start time.
// Ties keep calendar events ahead of lessons.
func Merge(events []models.CalendarEvent, lessons []models.Lesson, start, end time.Time) []models.CalendarEvent {
	merged := make([]models.CalendarEvent, 0, len(events)+len(lessons))
	merged = append(merged, events...)
	for _, l := range lessons {
		if l.StartTime.Before(start) || l.StartTime.After(end) {
			continue
		}
		merged = append(merged, LessonToEvent(l))
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].StartTime.Before(merged[j].StartTime)
	})
	return merged
}

type Builder struct {
	events  EventReader
	lessons LessonReader
}

func NewBuilder(events EventReader, lessons LessonReader) *Builder {
	return &Builder{events: events, lessons: lessons}
}

// Build loads both sources for [start, end] and merges them.
func (b *Builder) Build(ctx context.Context, start, end time.Time) (*Merged, error) {
	events, err := b.events.GetEventsByDateRange(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to load calendar events: %w", err)
	}
	lessons, err := b.lessons.GetLessonsBetween(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to load lessons: %w", err)
	}
	return &Merged{Data: Merge(events, lessons, start, end), Sources: Sources}, nil
}

// ParseWindow resolves optional start/end parameters. Empty start means now; empty end
// means start plus DefaultWindow. Accepts RFC 3339 timestamps or YYYY-MM-DD dates.
func ParseWindow(startParam, endParam string, now time.Time) (time.Time, time.Time, error) {
	start := now
	if startParam != "" {
		t, err := parseInstant(startParam)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid startDate: %w", err)
		}
		start = t
	}
	end := start.Add(DefaultWindow)
	if endParam != "" {
		t, err := parseInstant(endParam)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid endDate: %w", err)
		}
		end = t
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("endDate %s is before startDate %s", endParam, startParam)
	}
	return start, end, nil
}

func parseInstant(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, s)
}
