package reminders

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrSweepInFlight is returned by RunNow while another sweep is running.
var ErrSweepInFlight = errors.New("a sweep is already in flight")

// SchedulerConfig holds configuration for the sweep scheduler.
type SchedulerConfig struct {
	// Interval between sweeps. Default: one minute.
	Interval time.Duration
}

// DefaultSchedulerConfig returns the default scheduler configuration.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{Interval: time.Minute}
}

// Scheduler drives the sweeper on a fixed interval. Sweeps never overlap:
// a tick that fires while the previous sweep is still running is skipped,
// the next tick retries independently. An optional SweepLock extends the
// same guarantee across process instances.
type Scheduler struct {
	config  SchedulerConfig
	sweeper *Sweeper
	lock    SweepLock
	logger  *zerolog.Logger

	mu       sync.Mutex
	running  bool
	sweeping bool
	stopCh   chan struct{}
}

// NewScheduler creates a scheduler. lock may be nil for single-instance
// deployments.
func NewScheduler(config SchedulerConfig, sweeper *Sweeper, lock SweepLock, logger *zerolog.Logger) *Scheduler {
	if config.Interval <= 0 {
		config.Interval = time.Minute
	}
	return &Scheduler{
		config:  config,
		sweeper: sweeper,
		lock:    lock,
		logger:  logger,
		stopCh:  make(chan struct{}),
	}
}

// Start begins the sweep loop and blocks until the context is cancelled
// or Stop is called. The first sweep runs immediately.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.logger.Info().Dur("interval", s.config.Interval).Msg("sweep scheduler started")

	s.tick(ctx)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("sweep scheduler stopped by context")
			return
		case <-s.stopCh:
			s.logger.Info().Msg("sweep scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// Stop stops the scheduler loop.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.running {
		s.running = false
		close(s.stopCh)
	}
	s.mu.Unlock()
}

// IsRunning reports whether the scheduler loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// RunNow runs one sweep synchronously, for the manual trigger endpoint.
// Returns ErrSweepInFlight if a scheduled sweep is currently running.
func (s *Scheduler) RunNow(ctx context.Context) (Summary, error) {
	if !s.beginSweep() {
		return Summary{}, ErrSweepInFlight
	}
	defer s.endSweep()

	s.logger.Info().Msg("manual sweep triggered")
	return s.runLocked(ctx)
}

func (s *Scheduler) tick(ctx context.Context) {
	if !s.beginSweep() {
		s.logger.Warn().Msg("previous sweep still in flight, skipping tick")
		return
	}
	defer s.endSweep()

	if _, err := s.runLocked(ctx); err != nil {
		s.logger.Error().Err(err).Msg("sweep failed")
	}
}

// runLocked runs one sweep under the in-process guard, taking the
// cross-instance lock first when one is configured.
func (s *Scheduler) runLocked(ctx context.Context) (Summary, error) {
	if s.lock != nil {
		acquired, err := s.lock.TryAcquire(ctx)
		if err != nil {
			return Summary{}, err
		}
		if !acquired {
			s.logger.Debug().Msg("sweep lock held by another instance, skipping")
			return Summary{}, nil
		}
		defer func() {
			if err := s.lock.Release(ctx); err != nil {
				s.logger.Error().Err(err).Msg("failed to release sweep lock")
			}
		}()
	}

	return s.sweeper.Run(ctx)
}

func (s *Scheduler) beginSweep() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sweeping {
		return false
	}
	s.sweeping = true
	return true
}

func (s *Scheduler) endSweep() {
	s.mu.Lock()
	s.sweeping = false
	s.mu.Unlock()
}
