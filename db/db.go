// ABOUTME: Database connection management for Postgres and SQLite backends
// ABOUTME: Picks the driver from configuration and rebinds placeholders so callers write one SQL dialect
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/harperreed/schoolsync/config"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// DB wraps *sql.DB and rewrites ? placeholders for drivers that need $n.
type DB struct {
	*sql.DB
	driver string
}

// Driver reports the underlying driver name.
func (d *DB) Driver() string { return d.driver }

func (d *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return d.DB.ExecContext(ctx, d.rebind(query), args...)
}

func (d *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return d.DB.QueryContext(ctx, d.rebind(query), args...)
}

func (d *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return d.DB.QueryRowContext(ctx, d.rebind(query), args...)
}

func (d *DB) rebind(query string) string {
	if d.driver != DriverPostgres {
		return query
	}
	return rebindDollar(query)
}

// rebindDollar turns ? into $1, $2, ... outside quoted literals.
func rebindDollar(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inQuote := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			inQuote = !inQuote
			b.WriteByte(c)
		case c == '?' && !inQuote:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Open connects to Postgres when DatabaseURL is set, otherwise to SQLite
// (a file at SQLitePath, or a private in-memory database), and applies the schema.
func Open(ctx context.Context, cfg config.StorageConfig) (*DB, error) {
	var (
		d   *DB
		err error
	)
	switch {
	case cfg.DatabaseURL != "":
		d, err = openPostgres(cfg.DatabaseURL)
	case cfg.SQLitePath != "":
		d, err = OpenDatabase(cfg.SQLitePath)
	default:
		d, err = OpenMemory()
	}
	if err != nil {
		return nil, err
	}

	if err := d.PingContext(ctx); err != nil {
		_ = d.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err := InitSchema(ctx, d); err != nil {
		_ = d.Close()
		return nil, err
	}
	return d, nil
}

func openPostgres(url string) (*DB, error) {
	conn, err := sql.Open(DriverPostgres, url)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)
	return &DB{DB: conn, driver: DriverPostgres}, nil
}

// OpenDatabase opens a SQLite file with WAL mode, creating its directory.
func OpenDatabase(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	conn, err := sql.Open(DriverSQLite, path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	// Configure connection pool for SQLite (avoid database locked errors)
	conn.SetMaxOpenConns(1)
	return &DB{DB: conn, driver: DriverSQLite}, nil
}

// OpenMemory opens a private in-memory SQLite database. It lives as long as the pool.
func OpenMemory() (*DB, error) {
	dsn := fmt.Sprintf("file:schoolsync-%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := sql.Open(DriverSQLite, dsn)
	if err != nil {
		return nil, err
	}
	conn.SetMaxOpenConns(1)
	conn.SetConnMaxLifetime(0)
	conn.SetConnMaxIdleTime(0)
	return &DB{DB: conn, driver: DriverSQLite}, nil
}

// DefaultPath is the XDG data location used by CLI commands that need a durable store.
func DefaultPath() string {
	return filepath.Join(xdg.DataHome, "schoolsync", "schoolsync.db")
}

// toDBTime normalizes timestamps so both backends store and order them identically.
func toDBTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func nullableTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: toDBTime(*t), Valid: true}
}

func nullableString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}
