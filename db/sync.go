// ABOUTME: Database operations for the sync_state table
// ABOUTME: Tracks last run time, status and error per sync service
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Sync status values.
const (
	SyncStatusIdle    = "idle"
	SyncStatusSyncing = "syncing"
	SyncStatusError   = "error"
)

// SyncState represents the sync state for a service.
type SyncState struct {
	Service      string     `json:"service"`
	LastSyncTime *time.Time `json:"lastSyncTime,omitempty"`
	Status       string     `json:"status"`
	ErrorMessage *string    `json:"errorMessage,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// GetSyncState retrieves the sync state for a service, nil when never run.
func GetSyncState(ctx context.Context, d *DB, service string) (*SyncState, error) {
	var state SyncState
	var lastSyncTime sql.NullTime
	var errorMessage sql.NullString

	err := d.QueryRowContext(ctx, `
		SELECT service, last_sync_time, status, error_message, created_at, updated_at
		FROM sync_state
		WHERE service = ?
	`, service).Scan(&state.Service, &lastSyncTime, &state.Status, &errorMessage, &state.CreatedAt, &state.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sync state: %w", err)
	}

	state.LastSyncTime = timePtr(lastSyncTime)
	state.ErrorMessage = stringPtr(errorMessage)
	return &state, nil
}

// UpdateSyncStatus records status for a service. An idle status also stamps last_sync_time.
func UpdateSyncStatus(ctx context.Context, d *DB, service, status string, errorMsg *string) error {
	now := toDBTime(time.Now())
	var lastSync sql.NullTime
	if status == SyncStatusIdle {
		lastSync = sql.NullTime{Time: now, Valid: true}
	}

	_, err := d.ExecContext(ctx, `
		INSERT INTO sync_state (service, last_sync_time, status, error_message, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (service) DO UPDATE SET
			last_sync_time = COALESCE(excluded.last_sync_time, sync_state.last_sync_time),
			status = excluded.status,
			error_message = excluded.error_message,
			updated_at = excluded.updated_at
	`, service, lastSync, status, nullableString(errorMsg), now, now)
	if err != nil {
		return fmt.Errorf("failed to update sync status: %w", err)
	}
	return nil
}

// GetAllSyncStates returns every tracked service ordered by name.
func GetAllSyncStates(ctx context.Context, d *DB) ([]SyncState, error) {
	rows, err := d.QueryContext(ctx, `
		SELECT service, last_sync_time, status, error_message, created_at, updated_at
		FROM sync_state
		ORDER BY service
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync states: %w", err)
	}
	defer func() { _ = rows.Close() }()

	states := []SyncState{}
	for rows.Next() {
		var state SyncState
		var lastSyncTime sql.NullTime
		var errorMessage sql.NullString
		if err := rows.Scan(&state.Service, &lastSyncTime, &state.Status, &errorMessage, &state.CreatedAt, &state.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan sync state: %w", err)
		}
		state.LastSyncTime = timePtr(lastSyncTime)
		state.ErrorMessage = stringPtr(errorMessage)
		states = append(states, state)
	}
	return states, rows.Err()
}
