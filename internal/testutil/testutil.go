// Package testutil provides in-memory doubles shared by package tests.
package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/BTreeMap/IntakeRelay/internal/models"
)

// Message is one recorded outbound send.
type Message struct {
	To      string
	Body    string
	Choices []string
}

// RecordingGateway captures outbound traffic instead of delivering it.
// It satisfies both the flow and admin messenger interfaces.
type RecordingGateway struct {
	mu      sync.Mutex
	sent    []Message
	failFor map[string]bool
}

func NewRecordingGateway() *RecordingGateway {
	return &RecordingGateway{failFor: make(map[string]bool)}
}

// FailFor makes every send addressed to the given recipient return an error.
func (g *RecordingGateway) FailFor(to string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failFor[to] = true
}

func (g *RecordingGateway) SendMessage(_ context.Context, to, body string) error {
	return g.record(Message{To: to, Body: body})
}

func (g *RecordingGateway) SendMenu(_ context.Context, to, body string, choices []string) error {
	return g.record(Message{To: to, Body: body, Choices: choices})
}

func (g *RecordingGateway) record(m Message) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failFor[m.To] {
		return errors.New("simulated delivery failure")
	}
	g.sent = append(g.sent, m)
	return nil
}

// Sent returns a copy of everything recorded so far, in send order.
func (g *RecordingGateway) Sent() []Message {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Message, len(g.sent))
	copy(out, g.sent)
	return out
}

// LastTo returns the most recent message sent to the given recipient,
// or the zero Message when there is none.
func (g *RecordingGateway) LastTo(to string) Message {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := len(g.sent) - 1; i >= 0; i-- {
		if g.sent[i].To == to {
			return g.sent[i]
		}
	}
	return Message{}
}

// FailingStore errors on every operation; it exercises the
// swallow-and-log path around ledger appends.
type FailingStore struct{}

var errStoreDown = errors.New("store unavailable")

func (FailingStore) AddSubmission(models.Submission) error        { return errStoreDown }
func (FailingStore) GetSubmissions() ([]models.Submission, error) { return nil, errStoreDown }
func (FailingStore) SetProcessed(int64) error                     { return errStoreDown }
func (FailingStore) Close() error                                 { return nil }
