// Package scheduler runs periodic maintenance jobs against the memory store.
package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/engramlab/engram/pkg/memory"
)

// Scheduler drives periodic reconciliation on a cron schedule.
type Scheduler struct {
	cron    *cron.Cron
	service *memory.Service
	logger  zerolog.Logger
}

// New creates a scheduler for the given service.
func New(service *memory.Service, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		service: service,
		logger:  logger.With().Str("component", "scheduler").Logger(),
	}
}

// AddReconcile registers a reconciliation job. The schedule accepts standard
// five-field cron expressions and descriptors like "@hourly".
func (s *Scheduler) AddReconcile(spec string) error {
	_, err := s.cron.AddFunc(spec, func() {
		report, err := s.service.Reconcile(context.Background())
		if err != nil {
			s.logger.Error().Err(err).Msg("scheduled reconcile failed")
			return
		}
		s.logger.Info().
			Int("added", len(report.Added)).
			Int("updated", len(report.Updated)).
			Int("removed", len(report.Removed)).
			Msg("scheduled reconcile complete")
	})
	if err != nil {
		return fmt.Errorf("invalid reconcile schedule %q: %w", spec, err)
	}
	return nil
}

// Start begins running scheduled jobs in their own goroutines.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
