// Package store provides submission ledger backends for IntakeRelay.
//
// The ledger is append-only: rows are added on commit and never deleted;
// the only mutation is flipping the processed column of one row. Backends
// exist for SQLite, PostgreSQL, and an in-memory store for tests and
// development. Append order equals scan order.
package store

import (
	"strings"
	"sync"

	"github.com/BTreeMap/IntakeRelay/internal/models"
)

// Store is the submission ledger interface shared by all backends.
type Store interface {
	// AddSubmission appends one submission row.
	AddSubmission(s models.Submission) error

	// GetSubmissions scans all rows in append order.
	GetSubmissions() ([]models.Submission, error)

	// SetProcessed sets the processed column of the row with the given key
	// to ДА. Setting an already-processed row is a no-op, not an error.
	SetProcessed(id int64) error

	// Close releases any backend resources.
	Close() error
}

// Opts holds configuration options for persistent store backends.
type Opts struct {
	DSN string
}

// Option defines a configuration option for a store backend.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType reports "postgres" for PostgreSQL-style DSNs and "sqlite"
// for everything else (file paths).
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}

// NewStore builds the backend matching the configured DSN: PostgreSQL or
// SQLite for persistent DSNs, in-memory when no DSN is set.
func NewStore(opts ...Option) (Store, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		return NewInMemoryStore(), nil
	}
	if DetectDSNType(cfg.DSN) == "postgres" {
		return NewPostgresStore(opts...)
	}
	return NewSQLiteStore(opts...)
}

// InMemoryStore is a simple in-memory ledger for tests and development.
type InMemoryStore struct {
	mu          sync.RWMutex
	submissions []models.Submission
	nextID      int64
}

// NewInMemoryStore creates an empty in-memory ledger.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{nextID: 1}
}

// AddSubmission appends one submission row.
func (s *InMemoryStore) AddSubmission(sub models.Submission) error {
	if err := sub.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sub.ID = s.nextID
	s.nextID++
	s.submissions = append(s.submissions, sub)
	return nil
}

// GetSubmissions scans all rows in append order.
func (s *InMemoryStore) GetSubmissions() ([]models.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Submission, len(s.submissions))
	copy(out, s.submissions)
	return out, nil
}

// SetProcessed sets the processed column of the row with the given key.
func (s *InMemoryStore) SetProcessed(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.submissions {
		if s.submissions[i].ID == id {
			s.submissions[i].Processed = models.MarkYes
			return nil
		}
	}
	return nil
}

// Close is a no-op for the in-memory ledger.
func (s *InMemoryStore) Close() error {
	return nil
}
