// Package admin implements the operator command surface: triage of
// unprocessed submissions and direct replies to applicants.
package admin

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/BTreeMap/IntakeRelay/internal/ledger"
	"github.com/BTreeMap/IntakeRelay/internal/models"
)

// Messenger is the outbound surface the admin controller needs.
type Messenger interface {
	SendMessage(ctx context.Context, to, body string) error
}

// Operator replies, all in the applicants' language like the dialogue texts.
const (
	MsgNoPending   = "Нет необработанных заявок."
	MsgUsageDone   = "Использование: /done <id>"
	MsgUsageReply  = "Использование: /reply <id> <текст>"
	MsgDoneOK      = "Заявка отмечена как обработанная."
	MsgDoneMissing = "Заявка с таким id не найдена."
	MsgReplySent   = "Сообщение отправлено."
	MsgReplyFailed = "Не удалось доставить сообщение."
)

// Controller routes operator commands. Commands from any identity other
// than the configured administrator are swallowed without a reply.
type Controller struct {
	ledger  *ledger.Ledger
	msg     Messenger
	adminID string
}

func NewController(lg *ledger.Ledger, msg Messenger, adminID string) *Controller {
	return &Controller{ledger: lg, msg: msg, adminID: adminID}
}

// HandleCommand inspects one inbound message. It returns true when the
// message was an admin command (whether or not it was authorized) so the
// caller can stop routing; false hands the message back to the dialogue.
func (c *Controller) HandleCommand(ctx context.Context, from, body string) bool {
	cmd, rest := splitCommand(body)
	switch cmd {
	case models.CmdCheck, models.CmdDone, models.CmdReply:
	default:
		return false
	}

	if from != c.adminID {
		slog.Warn("Admin.HandleCommand: command from unauthorized identity", "from", from, "command", cmd)
		return true
	}

	switch cmd {
	case models.CmdCheck:
		c.check(ctx)
	case models.CmdDone:
		c.done(ctx, rest)
	case models.CmdReply:
		c.reply(ctx, rest)
	}
	return true
}

// check reports the oldest unprocessed submission.
func (c *Controller) check(ctx context.Context) {
	sub, found, err := c.ledger.FirstUnprocessed(ctx)
	if err != nil {
		slog.Error("Admin.check: failed to read ledger", "error", err)
		c.sendToAdmin(ctx, "Ошибка чтения заявок: "+err.Error())
		return
	}
	if !found {
		c.sendToAdmin(ctx, MsgNoPending)
		return
	}
	c.sendToAdmin(ctx, formatSubmission(sub))
}

// done marks a submission processed by the applicant's session id.
func (c *Controller) done(ctx context.Context, rest string) {
	id := strings.TrimSpace(rest)
	if !isNumericID(id) {
		c.sendToAdmin(ctx, MsgUsageDone)
		return
	}
	marked, err := c.ledger.MarkProcessed(ctx, id)
	if err != nil {
		slog.Error("Admin.done: failed to mark processed", "error", err, "id", id)
		c.sendToAdmin(ctx, "Ошибка: "+err.Error())
		return
	}
	if !marked {
		c.sendToAdmin(ctx, MsgDoneMissing)
		return
	}
	slog.Info("Admin.done: submission marked processed", "id", id)
	c.sendToAdmin(ctx, MsgDoneOK)
}

// reply forwards free text from the operator to an applicant.
func (c *Controller) reply(ctx context.Context, rest string) {
	parts := strings.SplitN(strings.TrimSpace(rest), " ", 2)
	if len(parts) < 2 || parts[0] == "" || strings.TrimSpace(parts[1]) == "" {
		c.sendToAdmin(ctx, MsgUsageReply)
		return
	}
	to, text := parts[0], strings.TrimSpace(parts[1])
	if err := c.msg.SendMessage(ctx, to, text); err != nil {
		slog.Error("Admin.reply: failed to deliver reply", "error", err, "to", to)
		c.sendToAdmin(ctx, MsgReplyFailed)
		return
	}
	slog.Info("Admin.reply: reply delivered", "to", to)
	c.sendToAdmin(ctx, MsgReplySent)
}

func (c *Controller) sendToAdmin(ctx context.Context, body string) {
	if err := c.msg.SendMessage(ctx, c.adminID, body); err != nil {
		slog.Error("Admin.sendToAdmin: delivery failed", "error", err)
	}
}

// isNumericID accepts the digit-only session identifiers the gateways
// produce.
func isNumericID(id string) bool {
	if id == "" {
		return false
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// splitCommand separates the leading slash command from its arguments.
func splitCommand(body string) (cmd, rest string) {
	trimmed := strings.TrimSpace(body)
	if !strings.HasPrefix(trimmed, "/") {
		return "", trimmed
	}
	parts := strings.SplitN(trimmed, " ", 2)
	if len(parts) == 2 {
		return parts[0], strings.TrimSpace(parts[1])
	}
	return parts[0], ""
}

// formatSubmission renders one ledger row for the operator, followed by
// the commands that act on it.
func formatSubmission(sub models.Submission) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Заявка #%d от %s\n", sub.ID, sub.CreatedAt)
	fmt.Fprintf(&b, "ФИО: %s\n", sub.FullName())
	fmt.Fprintf(&b, "Дата рождения: %s\n", sub.BirthDate)
	fmt.Fprintf(&b, "Телефон: %s\n", sub.Phone)
	if sub.Message != "" {
		fmt.Fprintf(&b, "Сообщение: %s\n", sub.Message)
	}
	fmt.Fprintf(&b, "Согласие: %s\n\n", sub.Consent)
	fmt.Fprintf(&b, "Ответить: /reply %s <текст>\n", sub.SessionID)
	fmt.Fprintf(&b, "Закрыть: /done %s", sub.SessionID)
	return b.String()
}
