// Package store provides submission ledger backends for IntakeRelay.
//
// This file implements the PostgreSQL-backed ledger.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/BTreeMap/IntakeRelay/internal/models"
	_ "github.com/lib/pq"
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

// PostgresStore is the PostgreSQL-backed submission ledger.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres ledger based on provided options.
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
		return nil, err
	}

	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// AddSubmission appends one submission row.
func (s *PostgresStore) AddSubmission(sub models.Submission) error {
	if err := sub.Validate(); err != nil {
		return err
	}
	_, err := s.db.Exec(
		`INSERT INTO submissions (created_at, session_id, display_name, last_name, first_name, patronymic, birth_date, phone, message, consent, processed)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		sub.CreatedAt, sub.SessionID, sub.DisplayName, sub.LastName, sub.FirstName,
		sub.Patronymic, sub.BirthDate, sub.Phone, sub.Message, sub.Consent, sub.Processed)
	if err != nil {
		slog.Error("PostgresStore AddSubmission failed", "error", err, "session_id", sub.SessionID)
		return fmt.Errorf("failed to insert submission for %s: %w", sub.SessionID, err)
	}
	slog.Debug("PostgresStore AddSubmission succeeded", "session_id", sub.SessionID)
	return nil
}

// GetSubmissions scans all rows in append order.
func (s *PostgresStore) GetSubmissions() ([]models.Submission, error) {
	rows, err := s.db.Query(
		`SELECT id, created_at, session_id, display_name, last_name, first_name, patronymic, birth_date, phone, message, consent, processed
		 FROM submissions ORDER BY id`)
	if err != nil {
		slog.Error("PostgresStore GetSubmissions query failed", "error", err)
		return nil, fmt.Errorf("failed to query submissions: %w", err)
	}
	defer rows.Close()

	var subs []models.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			slog.Error("PostgresStore GetSubmissions scan failed", "error", err)
			return nil, err
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		slog.Error("PostgresStore GetSubmissions rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate submission rows: %w", err)
	}
	slog.Debug("PostgresStore GetSubmissions succeeded", "count", len(subs))
	return subs, nil
}

// SetProcessed sets the processed column of one row to ДА.
func (s *PostgresStore) SetProcessed(id int64) error {
	_, err := s.db.Exec(`UPDATE submissions SET processed = $1 WHERE id = $2`, models.MarkYes, id)
	if err != nil {
		slog.Error("PostgresStore SetProcessed failed", "error", err, "id", id)
		return fmt.Errorf("failed to mark submission %d processed: %w", id, err)
	}
	slog.Debug("PostgresStore SetProcessed succeeded", "id", id)
	return nil
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	return s.db.Close()
}
