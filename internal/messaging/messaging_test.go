package messaging

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/BTreeMap/IntakeRelay/internal/models"
	"github.com/BTreeMap/IntakeRelay/internal/twiliowhatsapp"
	"github.com/BTreeMap/IntakeRelay/internal/whatsapp"
)

func TestCanonicalizeRecipient(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"+79991234567", "79991234567", false},
		{"79991234567", "79991234567", false},
		{"whatsapp:+7 (999) 123-45-67", "79991234567", false},
		{"", "", true},
		{"abc", "", true},
		{"12345", "", true},
	}
	for _, c := range cases {
		got, err := canonicalizeRecipient(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("canonicalizeRecipient(%q) expected error, got %q", c.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("canonicalizeRecipient(%q): %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("canonicalizeRecipient(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestRenderMenu(t *testing.T) {
	if got := renderMenu("привет", nil); got != "привет" {
		t.Errorf("no choices must leave body untouched, got %q", got)
	}
	got := renderMenu("Выберите:", []string{"Да", "Нет"})
	for _, want := range []string{"Выберите:", "• Да", "• Нет"} {
		if !strings.Contains(got, want) {
			t.Errorf("rendered menu missing %q:\n%s", want, got)
		}
	}
}

func TestWhatsAppServiceSendCanonicalizesRecipient(t *testing.T) {
	mock := whatsapp.NewMockClient()
	svc := NewWhatsAppService(mock)

	if err := svc.SendMessage(context.Background(), "+7 (999) 123-45-67", "привет"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if len(mock.Sent) != 1 || !strings.HasPrefix(mock.Sent[0], "79991234567:") {
		t.Errorf("mock sends = %v, want canonicalized recipient", mock.Sent)
	}

	select {
	case receipt := <-svc.Receipts():
		if receipt.To != "79991234567" || receipt.Status != models.MessageStatusSent {
			t.Errorf("receipt = %+v", receipt)
		}
	case <-time.After(time.Second):
		t.Error("no sent receipt emitted")
	}
}

func TestWhatsAppServiceSendAfterStop(t *testing.T) {
	svc := NewWhatsAppService(whatsapp.NewMockClient())
	if err := svc.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := svc.Stop(); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
	if err := svc.SendMessage(context.Background(), "79991234567", "привет"); err != ErrServiceStopped {
		t.Errorf("SendMessage after Stop = %v, want ErrServiceStopped", err)
	}

	// Event callbacks firing after shutdown must drop, not panic on a
	// closed channel. Wait out the close grace window first.
	time.Sleep(100 * time.Millisecond)
	svc.safeEmitResponse(models.Response{From: "79991234567", Body: "привет"})
	svc.safeEmitReceipt(models.Receipt{To: "79991234567", Status: models.MessageStatusDelivered})
}

func TestTwilioServiceSendAfterStop(t *testing.T) {
	svc := NewTwilioService(twiliowhatsapp.NewMockClient())
	if err := svc.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := svc.SendMessage(context.Background(), "79991234567", "привет"); err != ErrServiceStopped {
		t.Errorf("SendMessage after Stop = %v, want ErrServiceStopped", err)
	}
}

func TestTwilioWebhookEmitsResponse(t *testing.T) {
	svc := NewTwilioService(twiliowhatsapp.NewMockClient())

	form := url.Values{}
	form.Set("From", "whatsapp:+79991234567")
	form.Set("ProfileName", "Иван")
	form.Set("Body", "Оставить заявку")
	req := httptest.NewRequest(http.MethodPost, "/twilio/webhook", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	svc.WebhookHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	select {
	case resp := <-svc.Responses():
		if resp.From != "+79991234567" {
			t.Errorf("From = %q, want transport prefix stripped", resp.From)
		}
		if resp.DisplayName != "Иван" || resp.Body != "Оставить заявку" {
			t.Errorf("response = %+v", resp)
		}
	case <-time.After(time.Second):
		t.Error("no response emitted")
	}
}

func TestTwilioWebhookRejectsMissingFields(t *testing.T) {
	svc := NewTwilioService(twiliowhatsapp.NewMockClient())

	form := url.Values{}
	form.Set("From", "whatsapp:+79991234567")
	req := httptest.NewRequest(http.MethodPost, "/twilio/webhook", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	svc.WebhookHandler(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

// recordingHandler implements both dispatcher handler interfaces.
type recordingHandler struct {
	mu       sync.Mutex
	commands []models.Response
	messages []models.Response
	consume  bool
	done     chan struct{}
}

func (h *recordingHandler) HandleCommand(_ context.Context, from, body string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.commands = append(h.commands, models.Response{From: from, Body: body})
	if h.consume {
		h.signal()
		return true
	}
	return false
}

func (h *recordingHandler) HandleMessage(_ context.Context, resp models.Response) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, resp)
	h.signal()
}

func (h *recordingHandler) signal() {
	select {
	case h.done <- struct{}{}:
	default:
	}
}

func TestDispatcherRoutesCommandsBeforeDialogue(t *testing.T) {
	svc := NewTwilioService(twiliowhatsapp.NewMockClient())
	handler := &recordingHandler{done: make(chan struct{}, 1)}
	d := NewDispatcher(svc, handler, handler)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	svc.safeEmitResponse(models.Response{From: "whatsapp:+79991234567", Body: "привет"})

	select {
	case <-handler.done:
	case <-time.After(time.Second):
		t.Fatal("message never reached the dialogue handler")
	}

	handler.mu.Lock()
	defer handler.mu.Unlock()
	if len(handler.commands) != 1 || len(handler.messages) != 1 {
		t.Fatalf("commands=%d messages=%d, want 1/1", len(handler.commands), len(handler.messages))
	}
	if handler.messages[0].From != "79991234567" {
		t.Errorf("From = %q, want canonical digits", handler.messages[0].From)
	}
}

// orderRecorder blocks on the first dialogue step until released, so a
// second message from the same sender queues up behind it.
type orderRecorder struct {
	mu      sync.Mutex
	bodies  []string
	started chan struct{}
	gate    chan struct{}
	handled chan struct{}
}

func (h *orderRecorder) HandleMessage(_ context.Context, resp models.Response) {
	if resp.Body == "Иванов" {
		h.started <- struct{}{}
		<-h.gate
	}
	h.mu.Lock()
	h.bodies = append(h.bodies, resp.Body)
	h.mu.Unlock()
	h.handled <- struct{}{}
}

func TestDispatcherPreservesSenderOrder(t *testing.T) {
	svc := NewTwilioService(twiliowhatsapp.NewMockClient())
	handler := &orderRecorder{
		started: make(chan struct{}, 1),
		gate:    make(chan struct{}),
		handled: make(chan struct{}, 2),
	}
	d := NewDispatcher(svc, nil, handler)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	svc.safeEmitResponse(models.Response{From: "79991234567", Body: "Иванов"})
	select {
	case <-handler.started:
	case <-time.After(time.Second):
		t.Fatal("first message never reached the handler")
	}

	// The second message arrives while the first is still being handled.
	svc.safeEmitResponse(models.Response{From: "79991234567", Body: "Иван"})
	time.Sleep(50 * time.Millisecond)
	close(handler.gate)

	for i := 0; i < 2; i++ {
		select {
		case <-handler.handled:
		case <-time.After(time.Second):
			t.Fatal("not all messages were handled")
		}
	}

	handler.mu.Lock()
	defer handler.mu.Unlock()
	if len(handler.bodies) != 2 || handler.bodies[0] != "Иванов" || handler.bodies[1] != "Иван" {
		t.Errorf("handled order = %v, want [Иванов Иван]", handler.bodies)
	}
}

func TestDispatcherStopsAtConsumedCommand(t *testing.T) {
	svc := NewTwilioService(twiliowhatsapp.NewMockClient())
	handler := &recordingHandler{consume: true, done: make(chan struct{}, 1)}
	d := NewDispatcher(svc, handler, handler)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	svc.safeEmitResponse(models.Response{From: "79991234567", Body: "/check"})

	select {
	case <-handler.done:
	case <-time.After(time.Second):
		t.Fatal("command never reached the command handler")
	}

	handler.mu.Lock()
	defer handler.mu.Unlock()
	if len(handler.messages) != 0 {
		t.Errorf("consumed command leaked to the dialogue: %v", handler.messages)
	}
}
