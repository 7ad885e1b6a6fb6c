// Package ledger provides the submission ledger adapter: it translates a
// completed dialogue's field map into a fixed-order ledger row and back,
// and implements the admin triage queries over the append-only store.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BTreeMap/IntakeRelay/internal/models"
	"github.com/BTreeMap/IntakeRelay/internal/store"
)

// Ledger wraps a store backend with submission semantics.
type Ledger struct {
	store store.Store
	now   func() time.Time
}

// New creates a ledger adapter over the given store backend.
func New(st store.Store) *Ledger {
	return &Ledger{store: st, now: time.Now}
}

// NewWithClock creates a ledger adapter with an injected clock, for tests.
func NewWithClock(st store.Store, now func() time.Time) *Ledger {
	return &Ledger{store: st, now: now}
}

// Commit builds the ledger row for a completed application and appends it.
// The row is timestamp first, then identity and display name, then the form
// fields in declared order, then the consent and processed markers.
func (l *Ledger) Commit(ctx context.Context, sessionID, displayName string, fields map[models.FieldKey]string) error {
	if sessionID == "" {
		return models.ErrEmptySessionID
	}

	consent := models.MarkNo
	if fields[models.FieldConsent] == models.MarkYes {
		consent = models.MarkYes
	}
	sub := models.Submission{
		CreatedAt:   l.now().Format(models.TimestampLayout),
		SessionID:   sessionID,
		DisplayName: displayName,
		LastName:    fields[models.FieldLastName],
		FirstName:   fields[models.FieldFirstName],
		Patronymic:  fields[models.FieldPatronymic],
		BirthDate:   fields[models.FieldBirthDate],
		Phone:       fields[models.FieldPhone],
		Message:     fields[models.FieldMessage],
		Consent:     consent,
		Processed:   models.MarkNo,
	}

	if err := l.store.AddSubmission(sub); err != nil {
		slog.Error("Ledger.Commit: append failed", "error", err, "session_id", sessionID)
		return fmt.Errorf("failed to append submission for %s: %w", sessionID, err)
	}
	slog.Info("Ledger.Commit: submission appended", "session_id", sessionID)
	return nil
}

// Unprocessed scans all rows and returns the unprocessed ones in append
// order.
func (l *Ledger) Unprocessed(ctx context.Context) ([]models.Submission, error) {
	subs, err := l.store.GetSubmissions()
	if err != nil {
		return nil, fmt.Errorf("failed to scan submissions: %w", err)
	}
	var out []models.Submission
	for _, sub := range subs {
		if !sub.IsProcessed() {
			out = append(out, sub)
		}
	}
	slog.Debug("Ledger.Unprocessed: scan complete", "total", len(subs), "unprocessed", len(out))
	return out, nil
}

// FirstUnprocessed returns the oldest unprocessed submission, and whether
// one exists.
func (l *Ledger) FirstUnprocessed(ctx context.Context) (models.Submission, bool, error) {
	unprocessed, err := l.Unprocessed(ctx)
	if err != nil {
		return models.Submission{}, false, err
	}
	if len(unprocessed) == 0 {
		return models.Submission{}, false, nil
	}
	return unprocessed[0], true, nil
}

// MarkProcessed scans for the first row matching the session identity and
// sets its processed flag. It reports whether a matching row was found.
// The operation is idempotent: marking an already-processed row still
// reports success because the postcondition already holds.
func (l *Ledger) MarkProcessed(ctx context.Context, sessionID string) (bool, error) {
	subs, err := l.store.GetSubmissions()
	if err != nil {
		return false, fmt.Errorf("failed to scan submissions: %w", err)
	}
	for _, sub := range subs {
		if sub.SessionID != sessionID {
			continue
		}
		if sub.IsProcessed() {
			slog.Debug("Ledger.MarkProcessed: already processed", "session_id", sessionID, "id", sub.ID)
			return true, nil
		}
		if err := l.store.SetProcessed(sub.ID); err != nil {
			return false, fmt.Errorf("failed to mark %s processed: %w", sessionID, err)
		}
		slog.Info("Ledger.MarkProcessed: marked", "session_id", sessionID, "id", sub.ID)
		return true, nil
	}
	slog.Debug("Ledger.MarkProcessed: no match", "session_id", sessionID)
	return false, nil
}
