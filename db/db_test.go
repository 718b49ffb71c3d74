package db

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harperreed/schoolsync/config"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	d, err := Open(context.Background(), config.StorageConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestOpenInMemoryByDefault(t *testing.T) {
	d := setupTestDB(t)
	assert.Equal(t, DriverSQLite, d.Driver())

	var count int
	err := d.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table'").Scan(&count)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, count, 9)
}

func TestOpenInMemoryDatabasesAreIsolated(t *testing.T) {
	ctx := context.Background()
	a := setupTestDB(t)
	b := setupTestDB(t)

	_, err := a.ExecContext(ctx, `INSERT INTO sync_state (service, status, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		"pronote", "idle", "2026-01-01 00:00:00", "2026-01-01 00:00:00")
	require.NoError(t, err)

	var count int
	require.NoError(t, b.QueryRowContext(ctx, "SELECT COUNT(*) FROM sync_state").Scan(&count))
	assert.Zero(t, count)
}

func TestOpenSQLiteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "school.db")

	d, err := Open(context.Background(), config.StorageConfig{SQLitePath: path})
	require.NoError(t, err)
	defer func() { _ = d.Close() }()

	_, err = os.Stat(path)
	assert.NoError(t, err)

	var mode string
	require.NoError(t, d.QueryRowContext(context.Background(), "PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
}

func TestInitSchemaIsIdempotent(t *testing.T) {
	d := setupTestDB(t)
	require.NoError(t, InitSchema(context.Background(), d))
}

func TestRebindDollar(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"SELECT 1", "SELECT 1"},
		{"SELECT * FROM t WHERE a = ? AND b = ?", "SELECT * FROM t WHERE a = $1 AND b = $2"},
		{"INSERT INTO t VALUES (?, '?', ?)", "INSERT INTO t VALUES ($1, '?', $2)"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, rebindDollar(tt.in))
	}
}

func TestDefaultPath(t *testing.T) {
	path := DefaultPath()
	assert.True(t, strings.HasSuffix(path, filepath.Join("schoolsync", "schoolsync.db")))
}
