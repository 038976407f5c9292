// Package store provides storage backends for Parabola's session history.
//
// It includes an in-memory store plus SQLite and PostgreSQL stores that keep
// finished focus and breathing sessions and companion responses.
package store

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/BTreeMap/Parabola/internal/models"
)

// Store persists session history.
type Store interface {
	AddSessionRecord(ctx context.Context, r models.SessionRecord) (models.SessionRecord, error)
	GetSessionRecords(ctx context.Context) ([]models.SessionRecord, error)
	AddCompanionEntry(ctx context.Context, e models.CompanionEntry) error
	GetCompanionEntries(ctx context.Context) ([]models.CompanionEntry, error)
	Close() error
}

// DSN types returned by DetectDSNType.
const (
	DSNTypePostgres = "postgres"
	DSNTypeSQLite   = "sqlite"
)

// Opts holds configuration options for stores.
type Opts struct {
	DSN  string
	Type string
}

// Option defines a configuration option for stores.
type Option func(*Opts)

// WithSQLiteDSN selects a SQLite database file.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
		o.Type = DSNTypeSQLite
	}
}

// WithPostgresDSN selects a PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
		o.Type = DSNTypePostgres
	}
}

// DetectDSNType reports whether dsn looks like a PostgreSQL connection string
// or a SQLite file path.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return DSNTypePostgres
	}
	return DSNTypeSQLite
}

// New opens the store selected by opts. Without a DSN it returns an
// in-memory store.
func New(opts ...Option) (Store, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		slog.Debug("store.New: no DSN, using in-memory store")
		return NewInMemoryStore(), nil
	}
	kind := cfg.Type
	if kind == "" {
		kind = DetectDSNType(cfg.DSN)
	}
	if kind == DSNTypePostgres {
		return NewPostgresStore(opts...)
	}
	return NewSQLiteStore(opts...)
}

// InMemoryStore keeps history for the lifetime of the process.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions []models.SessionRecord
	entries  []models.CompanionEntry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) AddSessionRecord(ctx context.Context, r models.SessionRecord) (models.SessionRecord, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	s.mu.Lock()
	s.sessions = append(s.sessions, r)
	s.mu.Unlock()
	return r, nil
}

// GetSessionRecords returns records ordered by start time.
func (s *InMemoryStore) GetSessionRecords(ctx context.Context) ([]models.SessionRecord, error) {
	s.mu.RLock()
	out := make([]models.SessionRecord, len(s.sessions))
	copy(out, s.sessions)
	s.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

func (s *InMemoryStore) AddCompanionEntry(ctx context.Context, e models.CompanionEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	s.mu.Lock()
	s.entries = append(s.entries, e)
	s.mu.Unlock()
	return nil
}

// GetCompanionEntries returns entries ordered by creation time.
func (s *InMemoryStore) GetCompanionEntries(ctx context.Context) ([]models.CompanionEntry, error) {
	s.mu.RLock()
	out := make([]models.CompanionEntry, len(s.entries))
	copy(out, s.entries)
	s.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) Close() error {
	return nil
}
