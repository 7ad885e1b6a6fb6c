// Package scheduler provides cron-based scheduling for recurring
// operator digests.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/BTreeMap/IntakeRelay/internal/ledger"
)

// Scheduler provides cron-based job scheduling.
type Scheduler struct {
	cron *cron.Cron
}

// NewScheduler creates and starts a cron scheduler.
func NewScheduler() *Scheduler {
	// Standard 5-field cron parser (min, hour, dom, month, dow) with panic recovery.
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	c := cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger)))
	c.Start()
	return &Scheduler{cron: c}
}

// AddJob schedules a task using the provided cron expression.
// It returns an error if the expression is invalid.
func (s *Scheduler) AddJob(expr string, task func()) error {
	_, err := s.cron.AddFunc(expr, task)
	return err
}

// Stop stops the cron scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}

// Notifier is the outbound surface digest jobs need.
type Notifier interface {
	SendMessage(ctx context.Context, to, body string) error
}

// DigestJob builds a job that sends the administrator a summary of the
// unprocessed backlog. Failures are logged and swallowed; the next tick
// retries from scratch.
func DigestJob(lg *ledger.Ledger, msg Notifier, adminID string) func() {
	return func() {
		ctx := context.Background()
		subs, err := lg.Unprocessed(ctx)
		if err != nil {
			slog.Error("Scheduler.DigestJob: failed to read ledger", "error", err)
			return
		}
		if len(subs) == 0 {
			slog.Debug("Scheduler.DigestJob: no unprocessed submissions, skipping digest")
			return
		}

		oldest := subs[0]
		body := fmt.Sprintf("Необработанных заявок: %d\nСамая старая: %s от %s (/check)",
			len(subs), oldest.FullName(), oldest.CreatedAt)
		if err := msg.SendMessage(ctx, adminID, body); err != nil {
			slog.Error("Scheduler.DigestJob: failed to deliver digest", "error", err, "admin", adminID)
			return
		}
		slog.Info("Scheduler.DigestJob: digest delivered", "pending", len(subs))
	}
}
