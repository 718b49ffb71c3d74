// ABOUTME: Database schema definitions for school records and productivity-suite data
// ABOUTME: One statement list rendered for either Postgres or SQLite timestamp types
package db

import (
	"context"
	"fmt"
	"strings"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		source_id TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT,
		due_date {{ts}},
		estimated_minutes INTEGER NOT NULL DEFAULT 45,
		origin TEXT NOT NULL,
		metadata TEXT NOT NULL DEFAULT '{}',
		created_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL,
		UNIQUE (source, source_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_due_date ON tasks(due_date)`,

	`CREATE TABLE IF NOT EXISTS deadlines (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		source_id TEXT NOT NULL,
		label TEXT NOT NULL,
		due_date {{ts}} NOT NULL,
		metadata TEXT NOT NULL DEFAULT '{}',
		created_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL,
		UNIQUE (source, source_id)
	)`,

	`CREATE TABLE IF NOT EXISTS grades (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		source_id TEXT NOT NULL,
		subject TEXT NOT NULL,
		score DOUBLE PRECISION NOT NULL,
		out_of DOUBLE PRECISION NOT NULL,
		average DOUBLE PRECISION,
		recorded_at {{ts}} NOT NULL,
		metadata TEXT NOT NULL DEFAULT '{}',
		created_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL,
		UNIQUE (source, source_id)
	)`,

	`CREATE TABLE IF NOT EXISTS lessons (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		source_id TEXT NOT NULL,
		subject TEXT NOT NULL,
		teacher TEXT,
		room TEXT,
		start_time {{ts}} NOT NULL,
		end_time {{ts}} NOT NULL,
		metadata TEXT NOT NULL DEFAULT '{}',
		created_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL,
		UNIQUE (source, source_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_lessons_start_time ON lessons(start_time)`,

	`CREATE TABLE IF NOT EXISTS timetable_entries (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		source_id TEXT NOT NULL,
		title TEXT NOT NULL,
		day TEXT NOT NULL,
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL,
		metadata TEXT NOT NULL DEFAULT '{}',
		created_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL,
		UNIQUE (source, source_id)
	)`,

	`CREATE TABLE IF NOT EXISTS google_oauth_tokens (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL UNIQUE,
		access_token TEXT NOT NULL,
		refresh_token TEXT NOT NULL,
		scope TEXT NOT NULL,
		token_type TEXT NOT NULL DEFAULT 'Bearer',
		expiry_date BIGINT NOT NULL,
		created_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS calendar_events (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		source_id TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT,
		start_time {{ts}} NOT NULL,
		end_time {{ts}} NOT NULL,
		location TEXT,
		event_type TEXT NOT NULL,
		metadata TEXT NOT NULL DEFAULT '{}',
		created_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL,
		UNIQUE (source, source_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_calendar_events_start_time ON calendar_events(start_time)`,
	`CREATE INDEX IF NOT EXISTS idx_calendar_events_type ON calendar_events(event_type)`,

	`CREATE TABLE IF NOT EXISTS task_notes (
		id TEXT PRIMARY KEY,
		task_id TEXT NOT NULL UNIQUE,
		google_doc_id TEXT,
		google_doc_url TEXT,
		content TEXT NOT NULL DEFAULT '',
		synced_at {{ts}},
		created_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS sync_state (
		service TEXT PRIMARY KEY,
		last_sync_time {{ts}},
		status TEXT NOT NULL DEFAULT 'idle',
		error_message TEXT,
		created_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL
	)`,
}

// InitSchema creates all tables if they don't exist.
func InitSchema(ctx context.Context, d *DB) error {
	tsType := "DATETIME"
	if d.driver == DriverPostgres {
		tsType = "TIMESTAMPTZ"
	}

	for _, stmt := range schemaStatements {
		if _, err := d.ExecContext(ctx, strings.ReplaceAll(stmt, "{{ts}}", tsType)); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return nil
}
