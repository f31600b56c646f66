// Package scheduler repeats the poll cycle at a fixed wall-clock
// interval. Ticks are anchored to start-of-previous-tick, not cycle end;
// a tick that fires while a cycle is still in flight is skipped rather
// than stacked.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
)

// CycleRunner runs one poll cycle to its terminal state.
type CycleRunner interface {
	RunCycle(ctx context.Context)
}

// Scheduler drives the poll cycle on a fixed interval.
type Scheduler struct {
	runner   CycleRunner
	interval time.Duration
	cron     *cron.Cron
	logger   arbor.ILogger

	mu        sync.Mutex
	inCycle   bool
	running   bool
	cancel    context.CancelFunc
	cycleDone chan struct{}
}

// New creates a scheduler that runs one cycle per interval.
func New(runner CycleRunner, interval time.Duration, logger arbor.ILogger) *Scheduler {
	return &Scheduler{
		runner:   runner,
		interval: interval,
		cron:     cron.New(),
		logger:   logger,
	}
}

// Start runs one cycle immediately, then repeats at the configured
// interval until Stop is called.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already running")
	}
	s.running = true
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.mu.Unlock()

	spec := fmt.Sprintf("@every %s", s.interval)
	if _, err := s.cron.AddFunc(spec, func() { s.tick(ctx) }); err != nil {
		return fmt.Errorf("failed to add cron entry: %w", err)
	}

	s.logger.Info().
		Dur("interval", s.interval).
		Msg("Scheduler started")

	// First cycle fires immediately; cron handles the rest.
	go s.tick(ctx)
	s.cron.Start()

	return nil
}

// tick runs one cycle unless one is already in flight, in which case the
// tick is logged and skipped.
func (s *Scheduler) tick(ctx context.Context) {
	s.mu.Lock()
	if s.inCycle {
		s.mu.Unlock()
		s.logger.Warn().
			Dur("interval", s.interval).
			Msg("Previous poll cycle still in flight, skipping tick")
		return
	}
	s.inCycle = true
	done := make(chan struct{})
	s.cycleDone = done
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inCycle = false
		s.cycleDone = nil
		s.mu.Unlock()
		close(done)
	}()

	if ctx.Err() != nil {
		return
	}

	s.runner.RunCycle(ctx)
}

// Stop halts the cron loop and waits for an in-flight cycle up to the
// context deadline.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	cancel := s.cancel
	done := s.cycleDone
	s.mu.Unlock()

	s.cron.Stop()
	if cancel != nil {
		cancel()
	}

	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			s.logger.Warn().Msg("Timed out waiting for in-flight poll cycle")
			return ctx.Err()
		}
	}

	s.logger.Info().Msg("Scheduler stopped")
	return nil
}
