package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BTreeMap/IntakeRelay/internal/ledger"
	"github.com/BTreeMap/IntakeRelay/internal/models"
	"github.com/BTreeMap/IntakeRelay/internal/store"
)

func newTestServer(t *testing.T) (*Server, *store.InMemoryStore) {
	t.Helper()
	st := store.NewInMemoryStore()
	return NewServer(ledger.New(st)), st
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "OK" {
		t.Errorf("body = %q, want OK", rec.Body.String())
	}
}

func TestHealthRejectsPost(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestUnprocessedEndpointEmpty(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/submissions/unprocessed", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp models.APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if resp.Status != string(models.APIStatusOK) {
		t.Errorf("status = %q, want ok", resp.Status)
	}
	result, ok := resp.Result.([]interface{})
	if !ok || len(result) != 0 {
		t.Errorf("result = %v, want empty list", resp.Result)
	}
}

func TestUnprocessedEndpointFiltersProcessed(t *testing.T) {
	srv, st := newTestServer(t)

	add := func(sessionID, processed string) {
		t.Helper()
		err := st.AddSubmission(models.Submission{
			CreatedAt: "2024-05-17 12:30:45",
			SessionID: sessionID,
			LastName:  "Иванов",
			FirstName: "Иван",
			BirthDate: "01.01.1995",
			Phone:     "+79991234567",
			Consent:   models.MarkYes,
			Processed: processed,
		})
		if err != nil {
			t.Fatalf("AddSubmission: %v", err)
		}
	}
	add("11111", models.MarkNo)
	add("22222", models.MarkYes)
	add("33333", models.MarkNo)

	req := httptest.NewRequest(http.MethodGet, "/submissions/unprocessed", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	var resp struct {
		Status string              `json:"status"`
		Result []models.Submission `json:"result"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(resp.Result) != 2 {
		t.Fatalf("got %d submissions, want 2", len(resp.Result))
	}
	if resp.Result[0].SessionID != "11111" || resp.Result[1].SessionID != "33333" {
		t.Errorf("wrong rows or order: %+v", resp.Result)
	}
}

func TestMountWebhook(t *testing.T) {
	srv, _ := newTestServer(t)
	called := false
	srv.MountWebhook("/twilio/webhook", func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/twilio/webhook", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if !called {
		t.Error("mounted webhook was not invoked")
	}
}
