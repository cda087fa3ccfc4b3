package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"soc-alert-relay-go/internal/metrics"
	"soc-alert-relay-go/internal/processor"
)

var testMetrics = metrics.NewMetrics()

type stubRunner struct {
	mu      sync.Mutex
	calls   int
	ctxErrs []error
	block   chan struct{}
	stats   processor.CycleStats
}

func (s *stubRunner) ProcessCycle(ctx context.Context) (processor.CycleStats, error) {
	s.mu.Lock()
	s.calls++
	s.ctxErrs = append(s.ctxErrs, ctx.Err())
	s.mu.Unlock()
	if s.block != nil {
		<-s.block
	}
	return s.stats, nil
}

func (s *stubRunner) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestSchedulerStartStop(t *testing.T) {
	runner := &stubRunner{}
	s := New(time.Minute, runner, testMetrics)

	assert.False(t, s.IsRunning())
	assert.True(t, s.GetNextRun().IsZero())

	require.NoError(t, s.Start())
	assert.True(t, s.IsRunning())
	assert.False(t, s.GetNextRun().IsZero())

	err := s.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already running")

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())

	// Stopping twice is a no-op.
	require.NoError(t, s.Stop())
}

func TestSchedulerRestart(t *testing.T) {
	runner := &stubRunner{}
	s := New(time.Minute, runner, testMetrics)

	require.NoError(t, s.Start())
	require.NoError(t, s.Stop())
	require.NoError(t, s.Start())
	defer s.Stop()

	assert.True(t, s.IsRunning())
	assert.False(t, s.GetNextRun().IsZero())

	// Cycles after a restart must run against a live context.
	s.runCycle()
	require.Equal(t, 1, runner.callCount())
	assert.NoError(t, runner.ctxErrs[0])
}

func TestSchedulerRunOnce(t *testing.T) {
	runner := &stubRunner{stats: processor.CycleStats{Fetched: 3, Delivered: 2}}
	s := New(time.Minute, runner, testMetrics)

	stats, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Fetched)
	assert.Equal(t, 2, stats.Delivered)
	assert.Equal(t, 1, runner.callCount())
}

func TestSchedulerSkipsTickWhenNotRunning(t *testing.T) {
	runner := &stubRunner{}
	s := New(time.Minute, runner, testMetrics)

	s.runCycle()
	assert.Equal(t, 0, runner.callCount())
}

func TestSchedulerSkipsOverlappingTick(t *testing.T) {
	runner := &stubRunner{block: make(chan struct{})}
	s := New(time.Minute, runner, testMetrics)
	require.NoError(t, s.Start())
	defer s.Stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.runCycle()
	}()

	// Wait for the first cycle to take the lock.
	require.Eventually(t, func() bool { return runner.callCount() == 1 }, time.Second, 5*time.Millisecond)

	// A tick firing mid-cycle must return without running a second cycle.
	s.runCycle()
	assert.Equal(t, 1, runner.callCount())

	close(runner.block)
	wg.Wait()
}
