package report

import (
	"context"
	"log/slog"
	"time"
)

// NextRun returns the first hour:minute in zone strictly after now.
func NextRun(now time.Time, hour, minute int, zone *time.Location) time.Time {
	local := now.In(zone)
	next := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, zone)
	if !next.After(local) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Scheduler triggers the daily report once a day.
type Scheduler struct {
	generator *Generator
	hour      int
	minute    int
	logger    *slog.Logger
}

// NewScheduler runs generator at hour:minute in the generator's zone.
func NewScheduler(generator *Generator, hour, minute int, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{generator: generator, hour: hour, minute: minute, logger: logger}
}

// Run blocks until ctx is cancelled. A failed report is logged and retried the next day.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		now := s.generator.clock()
		next := NextRun(now, s.hour, s.minute, s.generator.Zone())
		s.logger.Info("daily report scheduled", "at", next.Format(time.RFC3339))

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}

		runCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		if _, err := s.generator.GenerateDaily(runCtx); err != nil {
			s.logger.Error("daily report failed", "error", err)
		}
		cancel()
	}
}
