// Package store provides storage backends for Parabola.
//
// This file implements a PostgreSQL-backed history store.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/BTreeMap/Parabola/internal/models"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")
	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		db.Close()
		return nil, err
	}
	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) AddSessionRecord(ctx context.Context, r models.SessionRecord) (models.SessionRecord, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO session_records (`+sessionColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		r.ID, string(r.Kind), r.Label, r.DurationSeconds, r.Cycles, r.Completed, r.StartedAt, r.EndedAt)
	if err != nil {
		slog.Error("PostgresStore AddSessionRecord failed", "error", err, "kind", r.Kind)
		return models.SessionRecord{}, fmt.Errorf("failed to insert session record: %w", err)
	}
	slog.Debug("PostgresStore AddSessionRecord succeeded", "id", r.ID, "kind", r.Kind)
	return r, nil
}

func (s *PostgresStore) GetSessionRecords(ctx context.Context) ([]models.SessionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sessionColumns+` FROM session_records ORDER BY started_at`)
	if err != nil {
		slog.Error("PostgresStore GetSessionRecords query failed", "error", err)
		return nil, fmt.Errorf("failed to query session records: %w", err)
	}
	return scanSessionRecords(rows)
}

func (s *PostgresStore) AddCompanionEntry(ctx context.Context, e models.CompanionEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO companion_entries (`+companionColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.Flow, e.Prompt, e.Text, e.Fallback, e.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore AddCompanionEntry failed", "error", err, "flow", e.Flow)
		return fmt.Errorf("failed to insert companion entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetCompanionEntries(ctx context.Context) ([]models.CompanionEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+companionColumns+` FROM companion_entries ORDER BY created_at`)
	if err != nil {
		slog.Error("PostgresStore GetCompanionEntries query failed", "error", err)
		return nil, fmt.Errorf("failed to query companion entries: %w", err)
	}
	return scanCompanionEntries(rows)
}

// Close closes the PostgreSQL database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
