// Package scheduler sends the recurring chat notifications: the daily summary
// of yesterday's expenses and the evening reminder to log expenses.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	DailySummarySchedule = "0 0 * * *"
	ReminderSchedule     = "0 23 * * *"

	ReminderMessage = "⏰ Reminder: don't forget to log today's expenses!\nSend them like \"lunch 25k\"."

	jobTimeout = 2 * time.Minute
)

// Sender delivers a chat message.
type Sender interface {
	SendText(ctx context.Context, to, body string) error
}

// Summarizer renders the daily summary.
type Summarizer interface {
	YesterdaySummary(ctx context.Context) (string, error)
}

type Scheduler struct {
	cron       *cron.Cron
	sender     Sender
	reports    Summarizer
	recipients []string

	mu      sync.Mutex
	started bool
}

// New registers the daily jobs in loc. Jobs run once Start is called.
func New(sender Sender, reports Summarizer, recipients []string, loc *time.Location) (*Scheduler, error) {
	if sender == nil {
		return nil, errors.New("scheduler: sender must not be nil")
	}
	if reports == nil {
		return nil, errors.New("scheduler: reports must not be nil")
	}
	if loc == nil {
		loc = time.UTC
	}
	s := &Scheduler{
		cron:       cron.New(cron.WithLocation(loc)),
		sender:     sender,
		reports:    reports,
		recipients: recipients,
	}
	if _, err := s.cron.AddFunc(DailySummarySchedule, s.job("daily_summary", s.SendDailySummary)); err != nil {
		return nil, fmt.Errorf("scheduler: add daily summary: %w", err)
	}
	if _, err := s.cron.AddFunc(ReminderSchedule, s.job("expense_reminder", s.SendReminder)); err != nil {
		return nil, fmt.Errorf("scheduler: add reminder: %w", err)
	}
	return s, nil
}

func (s *Scheduler) job(name string, fn func(context.Context) error) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		slog.Info("cron job started", "job", name)
		if err := fn(ctx); err != nil {
			slog.Error("cron job failed", "job", name, "err", err)
			return
		}
		slog.Info("cron job finished", "job", name)
	}
}

// Start begins running jobs. Calling it again has no effect.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		slog.Info("scheduler already started")
		return
	}
	s.cron.Start()
	s.started = true
	slog.Info("scheduler started", "daily_summary", DailySummarySchedule, "reminder", ReminderSchedule)
}

// Stop stops the schedule and waits for running jobs or ctx, whichever ends
// first.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	done := s.cron.Stop().Done()
	s.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler: stop: %w", ctx.Err())
	}
}

// SendDailySummary sends yesterday's expenses to every recipient.
func (s *Scheduler) SendDailySummary(ctx context.Context) error {
	if len(s.recipients) == 0 {
		return errors.New("scheduler: no recipients configured")
	}
	msg, err := s.reports.YesterdaySummary(ctx)
	if err != nil {
		return fmt.Errorf("scheduler: build daily summary: %w", err)
	}
	return s.broadcast(ctx, msg)
}

// SendReminder asks every recipient to log today's expenses.
func (s *Scheduler) SendReminder(ctx context.Context) error {
	if len(s.recipients) == 0 {
		return errors.New("scheduler: no recipients configured")
	}
	return s.broadcast(ctx, ReminderMessage)
}

// broadcast keeps going past failed recipients and reports them together.
func (s *Scheduler) broadcast(ctx context.Context, msg string) error {
	var errs []error
	for _, to := range s.recipients {
		if err := s.sender.SendText(ctx, to, msg); err != nil {
			errs = append(errs, fmt.Errorf("send to %s: %w", to, err))
			continue
		}
		slog.Info("notification sent", "to", to)
	}
	if len(errs) > 0 {
		return fmt.Errorf("scheduler: %w", errors.Join(errs...))
	}
	return nil
}
