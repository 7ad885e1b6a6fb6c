package messaging

import (
	"context"
	"log/slog"
	"sync"

	"github.com/BTreeMap/IntakeRelay/internal/models"
)

// DialogueHandler consumes inbound messages that are not operator commands.
type DialogueHandler interface {
	HandleMessage(ctx context.Context, resp models.Response)
}

// CommandHandler gets first refusal on every inbound message. A true
// return means the message was consumed and must not reach the dialogue.
type CommandHandler interface {
	HandleCommand(ctx context.Context, from, body string) bool
}

// Dispatcher pumps the service's inbound channels into the command and
// dialogue handlers. Messages are queued per sender and drained by one
// goroutine per active sender, so a sender's messages are handled in
// arrival order while distinct senders proceed in parallel.
type Dispatcher struct {
	svc      Service
	commands CommandHandler
	dialogue DialogueHandler
	mu       sync.Mutex
	queues   map[string][]models.Response
	wg       sync.WaitGroup
}

func NewDispatcher(svc Service, commands CommandHandler, dialogue DialogueHandler) *Dispatcher {
	return &Dispatcher{svc: svc, commands: commands, dialogue: dialogue, queues: make(map[string][]models.Response)}
}

// Run consumes the service channels until the context is cancelled or
// the channels close. It blocks; callers run it in its own goroutine.
func (d *Dispatcher) Run(ctx context.Context) {
	slog.Info("Dispatcher.Run: starting")
	responses := d.svc.Responses()
	receipts := d.svc.Receipts()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Dispatcher.Run: context cancelled, draining")
			d.wg.Wait()
			return
		case resp, ok := <-responses:
			if !ok {
				slog.Info("Dispatcher.Run: responses channel closed")
				d.wg.Wait()
				return
			}
			d.dispatch(ctx, resp)
		case receipt, ok := <-receipts:
			if !ok {
				receipts = nil
				continue
			}
			slog.Debug("Dispatcher.Run: receipt", "to", receipt.To, "status", receipt.Status)
		}
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, resp models.Response) {
	canonical, err := d.svc.ValidateAndCanonicalizeRecipient(resp.From)
	if err != nil {
		slog.Warn("Dispatcher.dispatch: dropping message with invalid sender", "from", resp.From, "error", err)
		return
	}
	resp.From = canonical

	d.mu.Lock()
	d.queues[resp.From] = append(d.queues[resp.From], resp)
	if len(d.queues[resp.From]) > 1 {
		// A drain goroutine for this sender is already running.
		d.mu.Unlock()
		return
	}
	d.mu.Unlock()

	d.wg.Add(1)
	go d.drain(ctx, resp.From)
}

// drain handles the sender's queued messages in order until the queue
// empties. The head is popped only after it has been handled, so the
// queue stays non-empty while a message is in flight and dispatch never
// starts a second drainer for the same sender.
func (d *Dispatcher) drain(ctx context.Context, from string) {
	defer d.wg.Done()
	for {
		d.mu.Lock()
		if len(d.queues[from]) == 0 {
			delete(d.queues, from)
			d.mu.Unlock()
			return
		}
		resp := d.queues[from][0]
		d.mu.Unlock()

		d.handle(ctx, resp)

		d.mu.Lock()
		d.queues[from] = d.queues[from][1:]
		d.mu.Unlock()
	}
}

func (d *Dispatcher) handle(ctx context.Context, resp models.Response) {
	if d.commands != nil && d.commands.HandleCommand(ctx, resp.From, resp.Body) {
		return
	}
	d.dialogue.HandleMessage(ctx, resp)
}
