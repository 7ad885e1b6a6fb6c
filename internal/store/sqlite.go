// Package store provides submission ledger backends for IntakeRelay.
//
// This file implements the SQLite-backed ledger.
package store

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"database/sql"

	_ "embed"

	"github.com/BTreeMap/IntakeRelay/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore is the SQLite-backed submission ledger.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite ledger with the given DSN.
// The DSN should be a file path to the SQLite database file; the directory
// is created when missing.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("SQLiteStore.NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

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
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// AddSubmission appends one submission row.
func (s *SQLiteStore) AddSubmission(sub models.Submission) error {
	if err := sub.Validate(); err != nil {
		return err
	}
	_, err := s.db.Exec(
		`INSERT INTO submissions (created_at, session_id, display_name, last_name, first_name, patronymic, birth_date, phone, message, consent, processed)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.CreatedAt, sub.SessionID, sub.DisplayName, sub.LastName, sub.FirstName,
		sub.Patronymic, sub.BirthDate, sub.Phone, sub.Message, sub.Consent, sub.Processed)
	if err != nil {
		slog.Error("SQLiteStore AddSubmission failed", "error", err, "session_id", sub.SessionID)
		return fmt.Errorf("failed to insert submission for %s: %w", sub.SessionID, err)
	}
	slog.Debug("SQLiteStore AddSubmission succeeded", "session_id", sub.SessionID)
	return nil
}

// GetSubmissions scans all rows in append order.
func (s *SQLiteStore) GetSubmissions() ([]models.Submission, error) {
	rows, err := s.db.Query(
		`SELECT id, created_at, session_id, display_name, last_name, first_name, patronymic, birth_date, phone, message, consent, processed
		 FROM submissions ORDER BY id`)
	if err != nil {
		slog.Error("SQLiteStore GetSubmissions query failed", "error", err)
		return nil, fmt.Errorf("failed to query submissions: %w", err)
	}
	defer rows.Close()

	var subs []models.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			slog.Error("SQLiteStore GetSubmissions scan failed", "error", err)
			return nil, err
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		slog.Error("SQLiteStore GetSubmissions rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate submission rows: %w", err)
	}
	slog.Debug("SQLiteStore GetSubmissions succeeded", "count", len(subs))
	return subs, nil
}

// SetProcessed sets the processed column of one row to ДА.
func (s *SQLiteStore) SetProcessed(id int64) error {
	_, err := s.db.Exec(`UPDATE submissions SET processed = ? WHERE id = ?`, models.MarkYes, id)
	if err != nil {
		slog.Error("SQLiteStore SetProcessed failed", "error", err, "id", id)
		return fmt.Errorf("failed to mark submission %d processed: %w", id, err)
	}
	slog.Debug("SQLiteStore SetProcessed succeeded", "id", id)
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	return s.db.Close()
}
