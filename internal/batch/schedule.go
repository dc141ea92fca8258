// Package batch schedules repeated invocations of the (idempotently
// resumable) run loop. A scheduled batch picks up instances that failed or
// were interrupted last time; completed instances are skipped by the
// trajectory store.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Schedule wraps a standard five-field cron expression.
type Schedule struct {
	expr  string
	sched cron.Schedule
}

// Parse validates a cron expression.
func Parse(expr string) (*Schedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("parsing cron expression %q: %w", expr, err)
	}
	return &Schedule{expr: expr, sched: sched}, nil
}

// Next returns the first activation after t.
func (s *Schedule) Next(t time.Time) time.Time {
	return s.sched.Next(t)
}

// String returns the original expression.
func (s *Schedule) String() string {
	return s.expr
}

// Run invokes fn at every activation until the context is cancelled. A
// failing invocation is logged and the schedule keeps going; overlapping
// activations are impossible because fn runs to completion before the
// next wait begins.
func (s *Schedule) Run(ctx context.Context, log *slog.Logger, fn func(context.Context) error) error {
	for {
		next := s.Next(time.Now())
		log.Info("waiting for next scheduled batch", "cron", s.expr, "next", next)

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}

		if err := fn(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Error("scheduled batch failed", "cron", s.expr, "err", err)
		}
	}
}
