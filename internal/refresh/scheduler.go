package refresh

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultRefresher is the job the scheduler runs.
type DefaultRefresher interface {
	RefreshDefault(ctx context.Context) (*Result, error)
}

// Scheduler runs the default refresh on a fixed interval. At most one run is in flight at a time;
// a tick that finds a run still going is skipped.
type Scheduler struct {
	job        DefaultRefresher
	interval   time.Duration
	runOnStart bool
	log        *slog.Logger

	running atomic.Bool
	started atomic.Bool
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler. It does nothing until Start is called.
func NewScheduler(job DefaultRefresher, interval time.Duration, runOnStart bool, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{job: job, interval: interval, runOnStart: runOnStart, log: log}
}

// Start launches the timer loop. It returns immediately; the loop exits when ctx is cancelled.
// Calling Start more than once has no effect.
func (s *Scheduler) Start(ctx context.Context) {
	if !s.started.CompareAndSwap(false, true) {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop(ctx)
	}()
}

// Wait blocks until the loop and any in-flight run have returned.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// TriggerNow runs one guarded refresh synchronously. It reports false when a run was already in flight.
func (s *Scheduler) TriggerNow(ctx context.Context) bool {
	return s.runGuarded(ctx)
}

// Running reports whether a refresh is in flight.
func (s *Scheduler) Running() bool {
	return s.running.Load()
}

func (s *Scheduler) loop(ctx context.Context) {
	s.log.Info("Facts scheduler started", "interval", s.interval.String(), "run_on_start", s.runOnStart)

	if s.runOnStart {
		s.launch(ctx)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("Facts scheduler stopped")
			return
		case <-ticker.C:
			s.launch(ctx)
		}
	}
}

// launch runs the job in the background so a slow run never blocks the ticker.
func (s *Scheduler) launch(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runGuarded(ctx)
	}()
}

func (s *Scheduler) runGuarded(ctx context.Context) bool {
	if !s.running.CompareAndSwap(false, true) {
		s.log.Warn("Skipping scheduled facts refresh: previous run still in progress")
		return false
	}
	defer s.running.Store(false)

	if _, err := s.job.RefreshDefault(ctx); err != nil {
		s.log.Error("Scheduled facts refresh failed", "error", err)
	}
	return true
}
