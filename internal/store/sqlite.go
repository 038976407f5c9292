// Package store provides storage backends for Parabola.
//
// This file implements an SQLite-backed history store.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/BTreeMap/Parabola/internal/models"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	// serialize writers; sqlite allows only one at a time
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		db.Close()
		return nil, err
	}

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully", "path", dsn)

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) AddSessionRecord(ctx context.Context, r models.SessionRecord) (models.SessionRecord, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO session_records (`+sessionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, string(r.Kind), r.Label, r.DurationSeconds, r.Cycles, r.Completed, r.StartedAt.UTC(), r.EndedAt.UTC())
	if err != nil {
		slog.Error("SQLiteStore AddSessionRecord failed", "error", err, "kind", r.Kind)
		return models.SessionRecord{}, fmt.Errorf("failed to insert session record: %w", err)
	}
	slog.Debug("SQLiteStore AddSessionRecord succeeded", "id", r.ID, "kind", r.Kind)
	return r, nil
}

func (s *SQLiteStore) GetSessionRecords(ctx context.Context) ([]models.SessionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sessionColumns+` FROM session_records ORDER BY started_at`)
	if err != nil {
		slog.Error("SQLiteStore GetSessionRecords query failed", "error", err)
		return nil, fmt.Errorf("failed to query session records: %w", err)
	}
	return scanSessionRecords(rows)
}

func (s *SQLiteStore) AddCompanionEntry(ctx context.Context, e models.CompanionEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO companion_entries (`+companionColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.Flow, e.Prompt, e.Text, e.Fallback, e.CreatedAt.UTC())
	if err != nil {
		slog.Error("SQLiteStore AddCompanionEntry failed", "error", err, "flow", e.Flow)
		return fmt.Errorf("failed to insert companion entry: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetCompanionEntries(ctx context.Context) ([]models.CompanionEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+companionColumns+` FROM companion_entries ORDER BY created_at`)
	if err != nil {
		slog.Error("SQLiteStore GetCompanionEntries query failed", "error", err)
		return nil, fmt.Errorf("failed to query companion entries: %w", err)
	}
	return scanCompanionEntries(rows)
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
