// internal/scheduler/scheduler_test.go
package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thesisflow/thesisflow-backend/internal/config"
	"github.com/thesisflow/thesisflow-backend/internal/services"
)

var schedulerNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

type stubRunner struct {
	mu      sync.Mutex
	calls   int
	summary *services.CleanupSummary
	err     error
	ran     chan struct{}
}

func newStubRunner() *stubRunner {
	return &stubRunner{
		summary: &services.CleanupSummary{Found: 2, FilesDeleted: 3},
		ran:     make(chan struct{}, 16),
	}
}

func (r *stubRunner) RunCleanup(context.Context) (*services.CleanupSummary, error) {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	r.ran <- struct{}{}
	return r.summary, r.err
}

func (r *stubRunner) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func waitForRun(t *testing.T, runner *stubRunner) {
	t.Helper()
	select {
	case <-runner.ran:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a scheduled run")
	}
}

func TestSchedulerRunsDaily(t *testing.T) {
	runner := newStubRunner()
	clock := clockwork.NewFakeClockAt(schedulerNow)
	cfg := config.CleanupConfig{Enabled: true, RunAt: "03:30", GraceDays: 90, BatchSize: 100}
	sched := New(runner, cfg, clock)

	done := make(chan struct{})
	go func() {
		defer close(done)
		sched.Start(context.Background())
	}()

	// The loop is parked on a timer armed for tomorrow 03:30.
	clock.BlockUntil(1)
	clock.Advance(16 * time.Hour)
	waitForRun(t, runner)

	clock.BlockUntil(1)
	clock.Advance(24 * time.Hour)
	waitForRun(t, runner)

	assert.Equal(t, 2, runner.callCount())

	sched.Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestSchedulerStatus(t *testing.T) {
	runner := newStubRunner()
	clock := clockwork.NewFakeClockAt(schedulerNow)
	cfg := config.CleanupConfig{Enabled: true, RunAt: "03:30", GraceDays: 90, BatchSize: 100}
	sched := New(runner, cfg, clock)

	go sched.Start(context.Background())
	defer sched.Stop()

	clock.BlockUntil(1)
	status := sched.Status()
	assert.True(t, status.Enabled)
	assert.False(t, status.Running)
	require.NotNil(t, status.NextRun)
	assert.Equal(t, time.Date(2025, 3, 11, 3, 30, 0, 0, time.UTC), *status.NextRun)
	assert.Nil(t, status.LastRun)

	clock.Advance(16 * time.Hour)
	waitForRun(t, runner)
	clock.BlockUntil(1)

	status = sched.Status()
	require.NotNil(t, status.LastRun)
	assert.Empty(t, status.LastError)
	require.NotNil(t, status.LastSummary)
	assert.Equal(t, 3, status.LastSummary.FilesDeleted)
}

func TestSchedulerRecordsRunFailure(t *testing.T) {
	runner := newStubRunner()
	runner.err = errors.New("database unreachable")
	clock := clockwork.NewFakeClockAt(schedulerNow)
	cfg := config.CleanupConfig{Enabled: true, RunAt: "03:30", GraceDays: 90, BatchSize: 100}
	sched := New(runner, cfg, clock)

	go sched.Start(context.Background())
	defer sched.Stop()

	clock.BlockUntil(1)
	clock.Advance(16 * time.Hour)
	waitForRun(t, runner)
	clock.BlockUntil(1)

	status := sched.Status()
	assert.Equal(t, "database unreachable", status.LastError)
	assert.Nil(t, status.LastSummary)
	require.NotNil(t, status.LastRun)
}

func TestSchedulerDisabled(t *testing.T) {
	runner := newStubRunner()
	clock := clockwork.NewFakeClockAt(schedulerNow)
	cfg := config.CleanupConfig{Enabled: false, RunAt: "03:30"}
	sched := New(runner, cfg, clock)

	done := make(chan struct{})
	go func() {
		defer close(done)
		sched.Start(context.Background())
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("disabled scheduler should return immediately")
	}
	assert.Equal(t, 0, runner.callCount())
	assert.False(t, sched.Status().Enabled)
}

func TestSchedulerStopsOnContextCancel(t *testing.T) {
	runner := newStubRunner()
	clock := clockwork.NewFakeClockAt(schedulerNow)
	cfg := config.CleanupConfig{Enabled: true, RunAt: "03:30"}
	sched := New(runner, cfg, clock)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		sched.Start(ctx)
	}()

	clock.BlockUntil(1)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop on context cancel")
	}
}

func TestNextRunAfter(t *testing.T) {
	cases := []struct {
		name  string
		now   time.Time
		runAt string
		want  time.Time
	}{
		{
			"later the same day",
			time.Date(2025, 3, 10, 1, 0, 0, 0, time.UTC), "03:30",
			time.Date(2025, 3, 10, 3, 30, 0, 0, time.UTC),
		},
		{
			"already passed today",
			time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC), "03:30",
			time.Date(2025, 3, 11, 3, 30, 0, 0, time.UTC),
		},
		{
			"exactly now goes to tomorrow",
			time.Date(2025, 3, 10, 3, 30, 0, 0, time.UTC), "03:30",
			time.Date(2025, 3, 11, 3, 30, 0, 0, time.UTC),
		},
		{
			"malformed falls back to default",
			time.Date(2025, 3, 10, 1, 0, 0, 0, time.UTC), "banana",
			time.Date(2025, 3, 10, 3, 30, 0, 0, time.UTC),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, nextRunAfter(tc.now, tc.runAt))
		})
	}
}
