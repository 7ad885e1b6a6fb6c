package flow

import (
	"context"
	"log/slog"

	"github.com/BTreeMap/IntakeRelay/internal/ledger"
	"github.com/BTreeMap/IntakeRelay/internal/models"
	"github.com/BTreeMap/IntakeRelay/internal/session"
	"github.com/BTreeMap/IntakeRelay/internal/validation"
)

// Controller drives intake dialogues. One Controller serves all sessions;
// per-session ordering is guaranteed by the session store's per-key lock.
type Controller struct {
	sessions *session.Store
	msg      Messenger
	ledger   *ledger.Ledger
	adminID  string // identity notified on commit; empty disables fan-out
	steps    []step
}

// NewController creates a conversation controller.
func NewController(sessions *session.Store, msg Messenger, lg *ledger.Ledger, adminID string, phoneRule validation.PhoneRule) *Controller {
	slog.Debug("flow.NewController: creating controller", "admin_set", adminID != "", "phone_lenient", phoneRule.Lenient)
	return &Controller{
		sessions: sessions,
		msg:      msg,
		ledger:   lg,
		adminID:  adminID,
		steps:    buildSteps(phoneRule),
	}
}

// HandleMessage processes one inbound message for its session. Messages
// for the same session are serialized by the session store; messages for
// different sessions proceed in parallel.
func (c *Controller) HandleMessage(ctx context.Context, resp models.Response) {
	c.sessions.Do(resp.From, func(sess *session.Session) {
		c.dispatch(ctx, sess, resp)
	})
}

// dispatch resolves one inbound message against the transition table.
// Trigger matching is exact and case-sensitive.
func (c *Controller) dispatch(ctx context.Context, sess *session.Session, resp models.Response) {
	body := resp.Body
	slog.Debug("flow.dispatch: processing message", "from", resp.From, "state", sess.State, "body_length", len(body))

	// Public commands work from any state and mutate nothing.
	switch body {
	case models.TriggerStart:
		c.send(ctx, resp.From, PromptGreeting, MainMenu)
		return
	case models.TriggerStatus:
		c.send(ctx, resp.From, MsgStatus, nil)
		return
	}

	// Global cancel has priority over validation in every non-idle state.
	if sess.State != models.StateIdle && body == models.TriggerCancel {
		sess.Clear()
		slog.Info("flow.dispatch: dialogue cancelled", "from", resp.From)
		c.send(ctx, resp.From, MsgCancelled, MainMenu)
		return
	}

	switch sess.State {
	case models.StateIdle:
		if body == models.TriggerBegin {
			c.begin(ctx, sess, resp.From)
			return
		}
		// No dialogue in progress; re-offer the main menu.
		c.send(ctx, resp.From, PromptGreeting, MainMenu)

	case models.StateAwaitConsent:
		// One-option gate: only the exact consent trigger advances.
		if body != models.TriggerConsent {
			c.send(ctx, resp.From, PromptConsent, ConsentMenu)
			return
		}
		sess.Fields[models.FieldConsent] = models.MarkYes
		sess.State = models.StateAwaitLastName
		c.send(ctx, resp.From, PromptLastName, CancelMenu)

	case models.StateAwaitConfirm:
		c.confirm(ctx, sess, resp, body)

	default:
		c.collect(ctx, sess, resp.From, body)
	}
}

// begin starts a fresh dialogue from the consent gate.
func (c *Controller) begin(ctx context.Context, sess *session.Session, from string) {
	sess.Clear()
	sess.State = models.StateAwaitConsent
	slog.Info("flow.begin: dialogue started", "from", from)
	c.send(ctx, from, PromptConsent, ConsentMenu)
}

// collect runs the current state's validator against the input. Invalid
// input re-emits the rejection and leaves state and fields untouched;
// valid input stores the value, advances, and emits the next prompt.
func (c *Controller) collect(ctx context.Context, sess *session.Session, from, body string) {
	st, ok := c.stepFor(sess.State)
	if !ok {
		slog.Error("flow.collect: no step for state", "state", sess.State, "from", from)
		sess.Clear()
		c.send(ctx, from, PromptGreeting, MainMenu)
		return
	}

	value, err := st.validate(body)
	if err != nil {
		slog.Debug("flow.collect: input rejected", "from", from, "state", sess.State, "error", err)
		c.send(ctx, from, st.reject, st.menu)
		return
	}

	sess.Fields[st.field] = value
	sess.State = st.next
	slog.Debug("flow.collect: field accepted", "from", from, "field", st.field, "next", st.next)

	if st.next == models.StateAwaitConfirm {
		c.send(ctx, from, confirmSummary(sess.Fields), ConfirmMenu)
		return
	}
	next, ok := c.stepFor(st.next)
	if !ok {
		slog.Error("flow.collect: successor step missing", "state", st.next)
		return
	}
	c.send(ctx, from, next.prompt, next.menu)
}

// confirm handles the two-option confirmation gate. Unrecognized input
// re-prompts without touching state or fields.
func (c *Controller) confirm(ctx context.Context, sess *session.Session, resp models.Response, body string) {
	switch body {
	case models.TriggerConfirmNo:
		// Restart the pipeline from its first state, not idle.
		sess.Clear()
		sess.State = models.StateAwaitConsent
		slog.Info("flow.confirm: restart requested", "from", resp.From)
		c.send(ctx, resp.From, MsgRestart+" "+PromptConsent, ConsentMenu)

	case models.TriggerConfirmYes:
		c.commit(ctx, sess, resp)

	default:
		c.send(ctx, resp.From, MsgPickOption, ConfirmMenu)
	}
}

// commit finalizes the session: append the ledger row, notify the
// administrator, clear the session, acknowledge the applicant.
//
// A ledger failure is deliberately not surfaced to the applicant: the
// acknowledgment is sent regardless and the failure goes to the
// operational log with the full field set.
func (c *Controller) commit(ctx context.Context, sess *session.Session, resp models.Response) {
	fields := sess.Fields
	if err := c.ledger.Commit(ctx, resp.From, resp.DisplayName, fields); err != nil {
		slog.Error("flow.commit: ledger append failed, submission lost unless recovered from log",
			"error", err, "from", resp.From, "fields", fields)
	}

	if c.adminID != "" {
		note := adminNotification(resp.From, resp.DisplayName, fields)
		if err := c.msg.SendMessage(ctx, c.adminID, note); err != nil {
			slog.Error("flow.commit: admin notification failed", "error", err, "admin", c.adminID)
		}
	}

	sess.Clear()
	slog.Info("flow.commit: submission committed", "from", resp.From)
	c.send(ctx, resp.From, MsgAccepted, MainMenu)
}

func (c *Controller) stepFor(state models.StateType) (step, bool) {
	for _, st := range c.steps {
		if st.state == state {
			return st, true
		}
	}
	return step{}, false
}

// send emits text with an optional choice set; delivery failures are
// logged and swallowed, the dialogue state is already settled.
func (c *Controller) send(ctx context.Context, to, body string, choices []string) {
	var err error
	if len(choices) > 0 {
		err = c.msg.SendMenu(ctx, to, body, choices)
	} else {
		err = c.msg.SendMessage(ctx, to, body)
	}
	if err != nil {
		slog.Error("flow.send: delivery failed", "error", err, "to", to)
	}
}
