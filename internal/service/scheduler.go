package service

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"
)

// Recalculator is the slice of the penalty engine the scheduler drives.
type Recalculator interface {
	Recalculate(ctx context.Context) error
}

// PenaltyScheduler runs penalty recalculation as a periodic single-flight
// background job. Manual triggers share the same flight, so at most one
// recompute is in progress at any time; a trigger arriving mid-run joins
// the running one.
type PenaltyScheduler struct {
	engine   Recalculator
	logger   *slog.Logger
	interval time.Duration
	group    singleflight.Group
}

// NewPenaltyScheduler constructs a scheduler. A non-positive interval
// disables the periodic loop; Trigger still works.
func NewPenaltyScheduler(engine Recalculator, logger *slog.Logger, interval time.Duration) *PenaltyScheduler {
	return &PenaltyScheduler{
		engine:   engine,
		logger:   logger,
		interval: interval,
	}
}

// Run executes the periodic loop until ctx is cancelled. The first
// recalculation happens immediately so a fresh deployment does not route on
// stale penalties for a full interval.
func (s *PenaltyScheduler) Run(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Info("penalty scheduler disabled")
		return
	}

	if err := s.Trigger(ctx); err != nil {
		s.logger.Error("initial penalty recalculation failed", "error", err)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("penalty scheduler stopped")
			return
		case <-ticker.C:
			if err := s.Trigger(ctx); err != nil {
				s.logger.Error("scheduled penalty recalculation failed", "error", err)
			}
		}
	}
}

// Trigger runs one recalculation, deduplicated with any run already in
// flight.
func (s *PenaltyScheduler) Trigger(ctx context.Context) error {
	_, err, _ := s.group.Do("recalculate", func() (any, error) {
		return nil, s.engine.Recalculate(ctx)
	})
	return err
}
