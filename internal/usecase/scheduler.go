package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"worldsentinel/internal/ports"
)

// Scheduler ties the interval driver to the pipeline use case.
type Scheduler struct {
	driver   ports.Scheduler
	pipeline *Pipeline
	logger   *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring runs.
func NewScheduler(driver ports.Scheduler, pipeline *Pipeline, logger *slog.Logger) *Scheduler {
	return &Scheduler{driver: driver, pipeline: pipeline, logger: logger}
}

// Start registers the pipeline with the provided driver. A run that fails or
// is still in progress is logged, never fatal.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.pipeline == nil {
		return nil
	}

	job := func(trigger time.Time) {
		inserted, err := s.pipeline.Run(ctx)
		switch {
		case errors.Is(err, ErrRunInProgress):
			s.logger.Warn("scheduled run skipped, previous run still active", "trigger", trigger)
		case err != nil:
			s.logger.Error("scheduled run failed", "trigger", trigger, "error", err)
		default:
			s.logger.Info("scheduled run finished", "trigger", trigger, "inserted", inserted)
		}
	}

	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying driver.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}
	return s.driver.Stop(ctx)
}
