package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/BTreeMap/IntakeRelay/internal/models"
	"github.com/BTreeMap/IntakeRelay/internal/store"
)

func testFields() map[models.FieldKey]string {
	return map[models.FieldKey]string{
		models.FieldConsent:    models.MarkYes,
		models.FieldLastName:   "Иванов",
		models.FieldFirstName:  "Иван",
		models.FieldPatronymic: "Иванович",
		models.FieldBirthDate:  "01.01.1995",
		models.FieldPhone:      "+79991234567",
		models.FieldMessage:    "тест",
	}
}

func fixedClock() time.Time {
	return time.Date(2024, 5, 17, 12, 30, 45, 0, time.UTC)
}

func TestCommitBuildsFixedRow(t *testing.T) {
	st := store.NewInMemoryStore()
	lg := NewWithClock(st, fixedClock)

	if err := lg.Commit(context.Background(), "12345", "ivan", testFields()); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	subs, _ := st.GetSubmissions()
	if len(subs) != 1 {
		t.Fatalf("expected exactly one row, got %d", len(subs))
	}
	sub := subs[0]
	if sub.CreatedAt != "2024-05-17 12:30:45" {
		t.Errorf("timestamp column = %q, want 2024-05-17 12:30:45", sub.CreatedAt)
	}
	if sub.SessionID != "12345" || sub.DisplayName != "ivan" {
		t.Errorf("identity columns wrong: %+v", sub)
	}
	if sub.LastName != "Иванов" || sub.FirstName != "Иван" || sub.Patronymic != "Иванович" {
		t.Errorf("name columns wrong: %+v", sub)
	}
	if sub.BirthDate != "01.01.1995" || sub.Phone != "+79991234567" || sub.Message != "тест" {
		t.Errorf("field columns wrong: %+v", sub)
	}
	if sub.Consent != models.MarkYes {
		t.Errorf("consent column = %q, want ДА", sub.Consent)
	}
	if sub.Processed != models.MarkNo {
		t.Errorf("new row must start unprocessed, got %q", sub.Processed)
	}
}

func TestCommitWithoutConsentField(t *testing.T) {
	st := store.NewInMemoryStore()
	lg := NewWithClock(st, fixedClock)

	fields := testFields()
	delete(fields, models.FieldConsent)
	if err := lg.Commit(context.Background(), "12345", "", fields); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	subs, _ := st.GetSubmissions()
	if subs[0].Consent != models.MarkNo {
		t.Errorf("missing consent must map to НЕТ, got %q", subs[0].Consent)
	}
}

func TestCommitRequiresSessionID(t *testing.T) {
	lg := New(store.NewInMemoryStore())
	if err := lg.Commit(context.Background(), "", "ivan", testFields()); err == nil {
		t.Error("expected error for empty session id")
	}
}

func TestUnprocessedFilterAndOrder(t *testing.T) {
	ctx := context.Background()
	st := store.NewInMemoryStore()
	lg := NewWithClock(st, fixedClock)

	for _, id := range []string{"1", "2", "3"} {
		if err := lg.Commit(ctx, id, "", testFields()); err != nil {
			t.Fatalf("Commit(%s): %v", id, err)
		}
	}
	if _, err := lg.MarkProcessed(ctx, "2"); err != nil {
		t.Fatalf("MarkProcessed: %v", err)
	}

	unprocessed, err := lg.Unprocessed(ctx)
	if err != nil {
		t.Fatalf("Unprocessed: %v", err)
	}
	if len(unprocessed) != 2 {
		t.Fatalf("expected 2 unprocessed, got %d", len(unprocessed))
	}
	if unprocessed[0].SessionID != "1" || unprocessed[1].SessionID != "3" {
		t.Errorf("unprocessed order wrong: %q, %q", unprocessed[0].SessionID, unprocessed[1].SessionID)
	}

	first, ok, err := lg.FirstUnprocessed(ctx)
	if err != nil || !ok {
		t.Fatalf("FirstUnprocessed: ok=%v err=%v", ok, err)
	}
	if first.SessionID != "1" {
		t.Errorf("oldest unprocessed = %q, want 1", first.SessionID)
	}
}

func TestMarkProcessedIdempotent(t *testing.T) {
	ctx := context.Background()
	st := store.NewInMemoryStore()
	lg := NewWithClock(st, fixedClock)

	if err := lg.Commit(ctx, "77", "", testFields()); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	for i := 0; i < 2; i++ {
		found, err := lg.MarkProcessed(ctx, "77")
		if err != nil {
			t.Fatalf("MarkProcessed call %d: %v", i+1, err)
		}
		if !found {
			t.Fatalf("MarkProcessed call %d: expected found", i+1)
		}
	}

	subs, _ := st.GetSubmissions()
	if len(subs) != 1 {
		t.Fatalf("idempotent marking must not duplicate rows, got %d", len(subs))
	}
	if !subs[0].IsProcessed() {
		t.Error("expected processed == ДА after both calls")
	}
}

func TestMarkProcessedNoMatch(t *testing.T) {
	lg := New(store.NewInMemoryStore())
	found, err := lg.MarkProcessed(context.Background(), "404")
	if err != nil {
		t.Fatalf("MarkProcessed: %v", err)
	}
	if found {
		t.Error("expected not found for unknown identity")
	}
}

func TestMarkProcessedFirstMatchOnly(t *testing.T) {
	ctx := context.Background()
	st := store.NewInMemoryStore()
	lg := NewWithClock(st, fixedClock)

	// Same identity submits twice; only the first row is marked.
	if err := lg.Commit(ctx, "9", "", testFields()); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := lg.Commit(ctx, "9", "", testFields()); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if _, err := lg.MarkProcessed(ctx, "9"); err != nil {
		t.Fatalf("MarkProcessed: %v", err)
	}

	subs, _ := st.GetSubmissions()
	if !subs[0].IsProcessed() {
		t.Error("first matching row must be marked")
	}
	if subs[1].IsProcessed() {
		t.Error("second row must stay unprocessed")
	}
}
