// Package scheduler runs periodic background jobs on a gocron scheduler.
// A job never overlaps with a still-running run of itself.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"
)

// Job is one run of a periodic task. The context is cancelled by Stop.
type Job func(ctx context.Context) error

type Scheduler struct {
	cron   *gocron.Scheduler
	logger zerolog.Logger
	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	names []string
}

func New(logger zerolog.Logger) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{cron: s, logger: logger, ctx: ctx, cancel: cancel}
}

// Every registers job under name to run at interval, the first run as soon
// as the scheduler starts.
func (s *Scheduler) Every(name string, interval time.Duration, job Job) error {
	if interval <= 0 {
		return errors.New("interval must be positive")
	}
	if job == nil {
		return errors.New("job must not be nil")
	}

	log := s.logger.With().Str("job", name).Logger()
	run := func() {
		start := time.Now()
		if err := job(s.ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			log.Error().Err(err).Dur("took", time.Since(start)).Msg("job failed")
			return
		}
		log.Debug().Dur("took", time.Since(start)).Msg("job finished")
	}

	if _, err := s.cron.Every(interval).Name(name).Do(run); err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}

	s.mu.Lock()
	s.names = append(s.names, name)
	s.mu.Unlock()
	return nil
}

// Jobs lists the registered job names in registration order.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.names...)
}

func (s *Scheduler) Start() {
	s.cron.StartAsync()
	s.logger.Info().Strs("jobs", s.Jobs()).Msg("scheduler started")
}

// Stop cancels running jobs and waits for the scheduler to halt.
func (s *Scheduler) Stop() {
	s.cancel()
	s.cron.Stop()
	s.logger.Info().Msg("scheduler stopped")
}
