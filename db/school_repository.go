// ABOUTME: Idempotent persistence for records synchronized from the school information system
// ABOUTME: Upserts by (source, source_id) and returns ordered reads for the dashboard
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/harperreed/schoolsync/logging"
	"github.com/harperreed/schoolsync/models"
)

var ErrNotFound = errors.New("record not found")

// SchoolRepository reads and writes tasks, deadlines, grades, lessons and timetable entries.
type SchoolRepository struct {
	db  *DB
	now func() time.Time
}

func NewSchoolRepository(db *DB) *SchoolRepository {
	return &SchoolRepository{db: db, now: time.Now}
}

func encodeJSON(v any) (string, error) {
	if v == nil {
		return "{}", nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode metadata: %w", err)
	}
	return string(data), nil
}

// decodeMetadata never fails a read; unparseable payloads are kept under "raw".
func decodeMetadata(raw string) models.Metadata {
	meta := models.Metadata{}
	if raw == "" {
		return meta
	}
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return models.Metadata{"raw": raw, "error": err.Error()}
	}
	return meta
}

// UpsertTasks writes tasks one at a time. IDs of the stored rows are set on the slice.
func (r *SchoolRepository) UpsertTasks(ctx context.Context, tasks []models.Task) error {
	for i := range tasks {
		if err := r.UpsertTask(ctx, &tasks[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r *SchoolRepository) UpsertTask(ctx context.Context, t *models.Task) error {
	origin, err := encodeJSON(t.Origin)
	if err != nil {
		return err
	}
	meta, err := encodeJSON(t.Metadata)
	if err != nil {
		return err
	}
	now := toDBTime(r.now())

	err = r.db.QueryRowContext(ctx, `
		INSERT INTO tasks (id, source, source_id, title, description, due_date, estimated_minutes, origin, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (source, source_id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			due_date = excluded.due_date,
			estimated_minutes = excluded.estimated_minutes,
			origin = excluded.origin,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at
		RETURNING id
	`, uuid.NewString(), t.Source, t.SourceID, t.Title, nullableString(t.Description), nullableTime(t.DueDate),
		t.EstimatedMinutes, origin, meta, now, now).Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert task %s/%s: %w", t.Source, t.SourceID, err)
	}
	t.UpdatedAt = now
	return nil
}

func (r *SchoolRepository) UpsertDeadlines(ctx context.Context, deadlines []models.Deadline) error {
	for i := range deadlines {
		d := &deadlines[i]
		meta, err := encodeJSON(d.Metadata)
		if err != nil {
			return err
		}
		now := toDBTime(r.now())

		err = r.db.QueryRowContext(ctx, `
			INSERT INTO deadlines (id, source, source_id, label, due_date, metadata, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (source, source_id) DO UPDATE SET
				label = excluded.label,
				due_date = excluded.due_date,
				metadata = excluded.metadata,
				updated_at = excluded.updated_at
			RETURNING id
		`, uuid.NewString(), d.Source, d.SourceID, d.Label, toDBTime(d.DueDate), meta, now, now).Scan(&d.ID)
		if err != nil {
			return fmt.Errorf("failed to upsert deadline %s/%s: %w", d.Source, d.SourceID, err)
		}
		d.UpdatedAt = now
	}
	return nil
}

func (r *SchoolRepository) UpsertGrades(ctx context.Context, grades []models.Grade) error {
	for i := range grades {
		g := &grades[i]
		meta, err := encodeJSON(g.Metadata)
		if err != nil {
			return err
		}
		var average sql.NullFloat64
		if g.Average != nil {
			average = sql.NullFloat64{Float64: *g.Average, Valid: true}
		}
		now := toDBTime(r.now())

		err = r.db.QueryRowContext(ctx, `
			INSERT INTO grades (id, source, source_id, subject, score, out_of, average, recorded_at, metadata, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (source, source_id) DO UPDATE SET
				subject = excluded.subject,
				score = excluded.score,
				out_of = excluded.out_of,
				average = excluded.average,
				recorded_at = excluded.recorded_at,
				metadata = excluded.metadata,
				updated_at = excluded.updated_at
			RETURNING id
		`, uuid.NewString(), g.Source, g.SourceID, g.Subject, g.Score, g.OutOf, average,
			toDBTime(g.RecordedAt), meta, now, now).Scan(&g.ID)
		if err != nil {
			return fmt.Errorf("failed to upsert grade %s/%s: %w", g.Source, g.SourceID, err)
		}
		g.UpdatedAt = now
	}
	return nil
}

func (r *SchoolRepository) UpsertLessons(ctx context.Context, lessons []models.Lesson) error {
	for i := range lessons {
		l := &lessons[i]
		meta, err := encodeJSON(l.Metadata)
		if err != nil {
			return err
		}
		now := toDBTime(r.now())

		err = r.db.QueryRowContext(ctx, `
			INSERT INTO lessons (id, source, source_id, subject, teacher, room, start_time, end_time, metadata, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (source, source_id) DO UPDATE SET
				subject = excluded.subject,
				teacher = excluded.teacher,
				room = excluded.room,
				start_time = excluded.start_time,
				end_time = excluded.end_time,
				metadata = excluded.metadata,
				updated_at = excluded.updated_at
			RETURNING id
		`, uuid.NewString(), l.Source, l.SourceID, l.Subject, nullableString(l.Teacher), nullableString(l.Room),
			toDBTime(l.StartTime), toDBTime(l.EndTime), meta, now, now).Scan(&l.ID)
		if err != nil {
			return fmt.Errorf("failed to upsert lesson %s/%s: %w", l.Source, l.SourceID, err)
		}
		l.UpdatedAt = now
	}
	return nil
}

func (r *SchoolRepository) UpsertTimetableEntries(ctx context.Context, entries []models.TimetableEntry) error {
	for i := range entries {
		e := &entries[i]
		meta, err := encodeJSON(e.Metadata)
		if err != nil {
			return err
		}
		now := toDBTime(r.now())

		err = r.db.QueryRowContext(ctx, `
			INSERT INTO timetable_entries (id, source, source_id, title, day, start_time, end_time, metadata, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (source, source_id) DO UPDATE SET
				title = excluded.title,
				day = excluded.day,
				start_time = excluded.start_time,
				end_time = excluded.end_time,
				metadata = excluded.metadata,
				updated_at = excluded.updated_at
			RETURNING id
		`, uuid.NewString(), e.Source, e.SourceID, e.Title, e.Day, e.StartTime, e.EndTime, meta, now, now).Scan(&e.ID)
		if err != nil {
			return fmt.Errorf("failed to upsert timetable entry %s/%s: %w", e.Source, e.SourceID, err)
		}
		e.UpdatedAt = now
	}
	return nil
}

const taskColumns = `id, source, source_id, title, description, due_date, estimated_minutes, origin, metadata, created_at, updated_at`

func scanTask(row interface{ Scan(...any) error }) (models.Task, error) {
	var (
		t           models.Task
		description sql.NullString
		dueDate     sql.NullTime
		origin      string
		meta        string
	)
	if err := row.Scan(&t.ID, &t.Source, &t.SourceID, &t.Title, &description, &dueDate,
		&t.EstimatedMinutes, &origin, &meta, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return models.Task{}, err
	}
	t.Description = stringPtr(description)
	t.DueDate = timePtr(dueDate)
	t.Metadata = decodeMetadata(meta)
	if err := json.Unmarshal([]byte(origin), &t.Origin); err != nil {
		// Keep the row readable; the raw origin stays in metadata.
		logging.Warn().Err(err).Str("task_id", t.ID).Msg("Unparseable task origin")
		t.Origin = models.TaskOrigin{System: t.Source}
		t.Metadata["origin_raw"] = origin
	}
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return t, nil
}

// GetTasks returns tasks by due date with undated tasks last.
func (r *SchoolRepository) GetTasks(ctx context.Context) ([]models.Task, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks ORDER BY due_date IS NULL, due_date, created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	tasks := []models.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// GetTask fetches one task by id.
func (r *SchoolRepository) GetTask(ctx context.Context, id string) (*models.Task, error) {
	t, err := scanTask(r.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return &t, nil
}

func (r *SchoolRepository) GetDeadlines(ctx context.Context) ([]models.Deadline, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, source, source_id, label, due_date, metadata, created_at, updated_at
		FROM deadlines ORDER BY due_date
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query deadlines: %w", err)
	}
	defer func() { _ = rows.Close() }()

	deadlines := []models.Deadline{}
	for rows.Next() {
		var d models.Deadline
		var meta string
		if err := rows.Scan(&d.ID, &d.Source, &d.SourceID, &d.Label, &d.DueDate, &meta, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan deadline: %w", err)
		}
		d.DueDate = d.DueDate.UTC()
		d.Metadata = decodeMetadata(meta)
		deadlines = append(deadlines, d)
	}
	return deadlines, rows.Err()
}

// GetGrades returns the most recently recorded grades first.
func (r *SchoolRepository) GetGrades(ctx context.Context) ([]models.Grade, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, source, source_id, subject, score, out_of, average, recorded_at, metadata, created_at, updated_at
		FROM grades ORDER BY recorded_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query grades: %w", err)
	}
	defer func() { _ = rows.Close() }()

	grades := []models.Grade{}
	for rows.Next() {
		var g models.Grade
		var average sql.NullFloat64
		var meta string
		if err := rows.Scan(&g.ID, &g.Source, &g.SourceID, &g.Subject, &g.Score, &g.OutOf, &average,
			&g.RecordedAt, &meta, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan grade: %w", err)
		}
		if average.Valid {
			g.Average = &average.Float64
		}
		g.RecordedAt = g.RecordedAt.UTC()
		g.Metadata = decodeMetadata(meta)
		grades = append(grades, g)
	}
	return grades, rows.Err()
}

func (r *SchoolRepository) GetLessons(ctx context.Context) ([]models.Lesson, error) {
	return r.queryLessons(ctx, `
		SELECT id, source, source_id, subject, teacher, room, start_time, end_time, metadata, created_at, updated_at
		FROM lessons ORDER BY start_time
	`)
}

// GetLessonsBetween returns lessons starting within [start, end].
func (r *SchoolRepository) GetLessonsBetween(ctx context.Context, start, end time.Time) ([]models.Lesson, error) {
	return r.queryLessons(ctx, `
		SELECT id, source, source_id, subject, teacher, room, start_time, end_time, metadata, created_at, updated_at
		FROM lessons WHERE start_time >= ? AND start_time <= ? ORDER BY start_time
	`, toDBTime(start), toDBTime(end))
}

func (r *SchoolRepository) queryLessons(ctx context.Context, query string, args ...any) ([]models.Lesson, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query lessons: %w", err)
	}
	defer func() { _ = rows.Close() }()

	lessons := []models.Lesson{}
	for rows.Next() {
		var l models.Lesson
		var teacher, room sql.NullString
		var meta string
		if err := rows.Scan(&l.ID, &l.Source, &l.SourceID, &l.Subject, &teacher, &room,
			&l.StartTime, &l.EndTime, &meta, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan lesson: %w", err)
		}
		l.Teacher = stringPtr(teacher)
		l.Room = stringPtr(room)
		l.StartTime = l.StartTime.UTC()
		l.EndTime = l.EndTime.UTC()
		l.Metadata = decodeMetadata(meta)
		lessons = append(lessons, l)
	}
	return lessons, rows.Err()
}

func (r *SchoolRepository) GetTimetable(ctx context.Context) ([]models.TimetableEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, source, source_id, title, day, start_time, end_time, metadata, created_at, updated_at
		FROM timetable_entries ORDER BY day, start_time
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query timetable: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries := []models.TimetableEntry{}
	for rows.Next() {
		var e models.TimetableEntry
		var meta string
		if err := rows.Scan(&e.ID, &e.Source, &e.SourceID, &e.Title, &e.Day, &e.StartTime, &e.EndTime,
			&meta, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan timetable entry: %w", err)
		}
		e.Metadata = decodeMetadata(meta)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// GetDashboard reads every collection for the dashboard payload.
func (r *SchoolRepository) GetDashboard(ctx context.Context) (*models.DashboardSummary, error) {
	var (
		summary models.DashboardSummary
		err     error
	)
	if summary.Tasks, err = r.GetTasks(ctx); err != nil {
		return nil, err
	}
	if summary.Deadlines, err = r.GetDeadlines(ctx); err != nil {
		return nil, err
	}
	if summary.Grades, err = r.GetGrades(ctx); err != nil {
		return nil, err
	}
	if summary.Lessons, err = r.GetLessons(ctx); err != nil {
		return nil, err
	}
	if summary.Timetable, err = r.GetTimetable(ctx); err != nil {
		return nil, err
	}
	return &summary, nil
}
