// ABOUTME: Storage for unified calendar events imported from the productivity suite
// ABOUTME: Upserts by (source, source_id) and serves range, exam and recent queries
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/harperreed/schoolsync/models"
)

type CalendarEventRepository struct {
	db *DB
}

func NewCalendarEventRepository(db *DB) *CalendarEventRepository {
	return &CalendarEventRepository{db: db}
}

// UpsertEvents writes events sequentially and returns how many were stored.
func (r *CalendarEventRepository) UpsertEvents(ctx context.Context, events []models.CalendarEvent) (int, error) {
	count := 0
	for i := range events {
		if err := r.UpsertEvent(ctx, &events[i]); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func (r *CalendarEventRepository) UpsertEvent(ctx context.Context, e *models.CalendarEvent) error {
	meta, err := encodeJSON(e.Metadata)
	if err != nil {
		return err
	}
	now := toDBTime(time.Now())

	err = r.db.QueryRowContext(ctx, `
		INSERT INTO calendar_events (id, source, source_id, title, description, start_time, end_time, location, event_type, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (source, source_id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			location = excluded.location,
			event_type = excluded.event_type,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at
		RETURNING id
	`, uuid.NewString(), e.Source, e.SourceID, e.Title, nullableString(e.Description),
		toDBTime(e.StartTime), toDBTime(e.EndTime), nullableString(e.Location), e.EventType, meta, now, now).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert calendar event %s/%s: %w", e.Source, e.SourceID, err)
	}
	e.UpdatedAt = now
	return nil
}

const eventColumns = `id, source, source_id, title, description, start_time, end_time, location, event_type, metadata, created_at, updated_at`

// GetEventsByDateRange returns events starting within [start, end], earliest first.
func (r *CalendarEventRepository) GetEventsByDateRange(ctx context.Context, start, end time.Time) ([]models.CalendarEvent, error) {
	return r.query(ctx, `SELECT `+eventColumns+` FROM calendar_events
		WHERE start_time >= ? AND start_time <= ? ORDER BY start_time`, toDBTime(start), toDBTime(end))
}

// GetExamEvents returns stored exam events that have not started yet.
func (r *CalendarEventRepository) GetExamEvents(ctx context.Context) ([]models.CalendarEvent, error) {
	return r.query(ctx, `SELECT `+eventColumns+` FROM calendar_events
		WHERE event_type = ? AND start_time >= ? ORDER BY start_time`, models.EventTypeExam, toDBTime(time.Now()))
}

// GetAllEvents returns the 100 latest events by start time.
func (r *CalendarEventRepository) GetAllEvents(ctx context.Context) ([]models.CalendarEvent, error) {
	return r.query(ctx, `SELECT `+eventColumns+` FROM calendar_events ORDER BY start_time DESC LIMIT 100`)
}

func (r *CalendarEventRepository) query(ctx context.Context, query string, args ...any) ([]models.CalendarEvent, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query calendar events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	events := []models.CalendarEvent{}
	for rows.Next() {
		var e models.CalendarEvent
		var description, location sql.NullString
		var meta string
		if err := rows.Scan(&e.ID, &e.Source, &e.SourceID, &e.Title, &description, &e.StartTime, &e.EndTime,
			&location, &e.EventType, &meta, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan calendar event: %w", err)
		}
		e.Description = stringPtr(description)
		e.Location = stringPtr(location)
		e.StartTime = e.StartTime.UTC()
		e.EndTime = e.EndTime.UTC()
		e.Metadata = decodeMetadata(meta)
		events = append(events, e)
	}
	return events, rows.Err()
}
