// ABOUTME: Storage for per-task notes mirrored to external documents
// ABOUTME: Notes are created lazily on first sync and updated in place afterwards
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/harperreed/schoolsync/models"
)

type TaskNoteRepository struct {
	db *DB
}

func NewTaskNoteRepository(db *DB) *TaskNoteRepository {
	return &TaskNoteRepository{db: db}
}

// UpsertTaskNote creates the note for taskID or updates it in place.
// synced_at is stamped whenever a document id is present.
func (r *TaskNoteRepository) UpsertTaskNote(ctx context.Context, taskID string, docID, docURL *string, content string) (*models.TaskNote, error) {
	now := toDBTime(time.Now())
	var syncedAt sql.NullTime
	if docID != nil {
		syncedAt = sql.NullTime{Time: now, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO task_notes (id, task_id, google_doc_id, google_doc_url, content, synced_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (task_id) DO UPDATE SET
			google_doc_id = excluded.google_doc_id,
			google_doc_url = excluded.google_doc_url,
			content = excluded.content,
			synced_at = excluded.synced_at,
			updated_at = excluded.updated_at
	`, uuid.NewString(), taskID, nullableString(docID), nullableString(docURL), content, syncedAt, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert task note for %s: %w", taskID, err)
	}
	return r.GetTaskNoteByTaskID(ctx, taskID)
}

// GetTaskNoteByTaskID returns nil, nil when no note exists yet.
func (r *TaskNoteRepository) GetTaskNoteByTaskID(ctx context.Context, taskID string) (*models.TaskNote, error) {
	notes, err := r.query(ctx, `SELECT id, task_id, google_doc_id, google_doc_url, content, synced_at, created_at, updated_at
		FROM task_notes WHERE task_id = ?`, taskID)
	if err != nil {
		return nil, err
	}
	if len(notes) == 0 {
		return nil, nil
	}
	return &notes[0], nil
}

func (r *TaskNoteRepository) GetAllTaskNotes(ctx context.Context) ([]models.TaskNote, error) {
	return r.query(ctx, `SELECT id, task_id, google_doc_id, google_doc_url, content, synced_at, created_at, updated_at
		FROM task_notes ORDER BY created_at DESC`)
}

func (r *TaskNoteRepository) query(ctx context.Context, query string, args ...any) ([]models.TaskNote, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query task notes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	notes := []models.TaskNote{}
	for rows.Next() {
		var n models.TaskNote
		var docID, docURL sql.NullString
		var syncedAt sql.NullTime
		if err := rows.Scan(&n.ID, &n.TaskID, &docID, &docURL, &n.Content, &syncedAt, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan task note: %w", err)
		}
		n.GoogleDocID = stringPtr(docID)
		n.GoogleDocURL = stringPtr(docURL)
		n.SyncedAt = timePtr(syncedAt)
		notes = append(notes, n)
	}
	return notes, rows.Err()
}
