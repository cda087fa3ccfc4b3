// Package scheduler triggers processing cycles on a fixed interval.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"soc-alert-relay-go/internal/metrics"
	"soc-alert-relay-go/internal/processor"
)

// CycleRunner runs one processing cycle.
type CycleRunner interface {
	ProcessCycle(ctx context.Context) (processor.CycleStats, error)
}

// Scheduler manages the periodic processing loop. Cycles never overlap:
// a tick that fires while the previous cycle is still running is skipped.
type Scheduler struct {
	cron     *cron.Cron
	entryID  cron.EntryID
	interval time.Duration
	runner   CycleRunner
	metrics  *metrics.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// cycleMu serializes scheduled ticks and manual RunOnce calls.
	cycleMu   sync.Mutex
	isRunning bool
	mu        sync.RWMutex
}

// New creates a scheduler around the given runner.
func New(interval time.Duration, runner CycleRunner, m *metrics.Metrics) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron:     cron.New(cron.WithSeconds()),
		interval: interval,
		runner:   runner,
		metrics:  m,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start starts the periodic loop.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}

	// Fresh context per start, so a stop/start cycle over the admin API
	// does not leave cycles running against a cancelled context.
	s.ctx, s.cancel = context.WithCancel(context.Background())

	schedule := fmt.Sprintf("@every %s", s.interval)
	entryID, err := s.cron.AddFunc(schedule, s.runCycle)
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.entryID = entryID
	s.cron.Start()
	s.isRunning = true
	s.metrics.SchedulerRunning.Set(1)

	logrus.Infof("Scheduler started with interval %s", s.interval)
	return nil
}

// Stop stops the loop and waits for an in-flight cycle to finish.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return nil
	}

	s.cancel()
	s.cron.Remove(s.entryID)

	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
		logrus.Info("Scheduler stopped gracefully")
	case <-time.After(30 * time.Second):
		logrus.Warn("Scheduler stop timeout, forcing shutdown")
	}

	s.isRunning = false
	s.metrics.SchedulerRunning.Set(0)
	return nil
}

// IsRunning returns whether the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// runCycle is the cron callback.
func (s *Scheduler) runCycle() {
	s.wg.Add(1)
	defer s.wg.Done()

	s.mu.RLock()
	running := s.isRunning
	ctx := s.ctx
	s.mu.RUnlock()
	if !running {
		return
	}

	if !s.cycleMu.TryLock() {
		logrus.Warn("Previous cycle still running, skipping this tick")
		return
	}
	defer s.cycleMu.Unlock()

	if _, err := s.runner.ProcessCycle(ctx); err != nil {
		logrus.Errorf("Processing cycle failed: %v", err)
	}
}

// RunOnce triggers a single cycle immediately, waiting for any scheduled
// cycle already in flight.
func (s *Scheduler) RunOnce(ctx context.Context) (processor.CycleStats, error) {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()
	return s.runner.ProcessCycle(ctx)
}

// GetNextRun returns the time of the next scheduled run.
func (s *Scheduler) GetNextRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Next
}

// GetLastRun returns the time of the last completed run.
func (s *Scheduler) GetLastRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Prev
}

// Wait blocks until all in-flight cycles have finished.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
