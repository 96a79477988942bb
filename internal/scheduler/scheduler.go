// internal/scheduler/scheduler.go

// Package scheduler runs the file retention job once a day at a configured
// wall-clock time.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/thesisflow/thesisflow-backend/internal/config"
	"github.com/thesisflow/thesisflow-backend/internal/services"
)

// CleanupRunner is the piece of the cleanup service the scheduler drives.
// Runs triggered here and runs triggered through the maintenance endpoint
// collapse onto the same single-flight group inside the service.
type CleanupRunner interface {
	RunCleanup(ctx context.Context) (*services.CleanupSummary, error)
}

type Scheduler struct {
	runner CleanupRunner
	cfg    config.CleanupConfig
	clock  clockwork.Clock
	stopCh chan struct{}

	mu          sync.Mutex
	running     bool
	nextRun     time.Time
	lastRun     *time.Time
	lastError   string
	lastSummary *services.CleanupSummary
}

// Status is the answer to "is the retention job healthy", served on the
// maintenance surface.
type Status struct {
	Enabled     bool                     `json:"enabled"`
	RunAt       string                   `json:"run_at"`
	Running     bool                     `json:"running"`
	NextRun     *time.Time               `json:"next_run,omitempty"`
	LastRun     *time.Time               `json:"last_run,omitempty"`
	LastError   string                   `json:"last_error,omitempty"`
	LastSummary *services.CleanupSummary `json:"last_summary,omitempty"`
}

func New(runner CleanupRunner, cfg config.CleanupConfig, clock clockwork.Clock) *Scheduler {
	return &Scheduler{
		runner: runner,
		cfg:    cfg,
		clock:  clock,
		stopCh: make(chan struct{}),
	}
}

// Start blocks until Stop is called or the context ends. Each iteration arms
// a timer for the next configured wall-clock occurrence, so clock changes
// between runs do not accumulate drift.
func (s *Scheduler) Start(ctx context.Context) {
	if !s.cfg.Enabled {
		logrus.Info("Cleanup scheduler disabled by configuration")
		return
	}

	logrus.WithField("run_at", s.cfg.RunAt).Info("Cleanup scheduler started")
	for {
		next := nextRunAfter(s.clock.Now().UTC(), s.cfg.RunAt)
		s.mu.Lock()
		s.nextRun = next
		s.mu.Unlock()

		timer := s.clock.NewTimer(next.Sub(s.clock.Now().UTC()))
		select {
		case <-timer.Chan():
			s.runOnce(ctx)
		case <-s.stopCh:
			timer.Stop()
			logrus.Info("Cleanup scheduler stopped")
			return
		case <-ctx.Done():
			timer.Stop()
			logrus.Info("Cleanup scheduler context canceled")
			return
		}
	}
}

// Stop ends the scheduling loop. An in-flight run finishes on its own.
func (s *Scheduler) Stop() {
	close(s.stopCh)
}

// Status reports the scheduler's view of the retention job.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := Status{
		Enabled:     s.cfg.Enabled,
		RunAt:       s.cfg.RunAt,
		Running:     s.running,
		LastRun:     s.lastRun,
		LastError:   s.lastError,
		LastSummary: s.lastSummary,
	}
	if s.cfg.Enabled && !s.nextRun.IsZero() {
		next := s.nextRun
		status.NextRun = &next
	}
	return status
}

func (s *Scheduler) runOnce(ctx context.Context) {
	s.mu.Lock()
	s.running = true
	s.mu.Unlock()

	summary, err := s.runner.RunCleanup(ctx)
	finished := s.clock.Now().UTC()

	s.mu.Lock()
	s.running = false
	s.lastRun = &finished
	if err != nil {
		s.lastError = err.Error()
	} else {
		s.lastError = ""
		s.lastSummary = summary
	}
	s.mu.Unlock()

	if err != nil {
		logrus.WithError(err).Error("Scheduled cleanup run failed")
	}
}

// nextRunAfter returns the next occurrence of the "HH:MM" wall-clock time
// strictly after now, in UTC. A malformed value falls back to the default;
// config normalization warns about it at startup.
func nextRunAfter(now time.Time, runAt string) time.Time {
	at, err := time.Parse("15:04", runAt)
	if err != nil {
		at, _ = time.Parse("15:04", config.DefaultRunAt)
	}

	next := time.Date(now.Year(), now.Month(), now.Day(), at.Hour(), at.Minute(), 0, 0, time.UTC)
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next
}
