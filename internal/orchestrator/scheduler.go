package orchestrator

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Scheduler is the orchestrator's cron/duration job runner. The
// collection tick and the periodic stats flush both register jobs
// here rather than running their own tickers.
type Scheduler struct {
	mu        sync.Mutex
	scheduler gocron.Scheduler
	jobs      map[string]gocron.Job
	now       func() time.Time
	logger    *slog.Logger
}

func newScheduler(logger *slog.Logger, maxConcurrent int, now func() time.Time) (*Scheduler, error) {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	s, err := gocron.NewScheduler(
		gocron.WithLimitConcurrentJobs(uint(maxConcurrent), gocron.LimitModeWait),
	)
	if err != nil {
		return nil, fmt.Errorf("create cron scheduler: %w", err)
	}
	sched := &Scheduler{
		scheduler: s,
		jobs:      make(map[string]gocron.Job),
		now:       now,
		logger:    logger,
	}
	s.Start()
	return sched, nil
}

// AddDurationJob registers a named job that runs every d, grounded on
// gocron.DurationJob rather than a cron expression — used for the
// collection tick and the stats flush, both of whose intervals are
// plain durations rather than cron schedules.
func (s *Scheduler) AddDurationJob(name string, d time.Duration, taskFn any, args ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("scheduled job already exists: %s", name)
	}

	j, err := s.scheduler.NewJob(
		gocron.DurationJob(d),
		gocron.NewTask(taskFn, args...),
		gocron.WithName(name),
	)
	if err != nil {
		return fmt.Errorf("create duration job %s: %w", name, err)
	}

	s.jobs[name] = j
	s.logger.Info("duration job added", "name", name, "interval", d)
	return nil
}

// UpdateDurationJob replaces a named duration job with a new interval.
// If the job doesn't exist, it is created. Used when the CMS changes
// the collection interval at runtime.
func (s *Scheduler) UpdateDurationJob(name string, d time.Duration, taskFn any, args ...any) error {
	s.RemoveJob(name)
	return s.AddDurationJob(name, d, taskFn, args...)
}

// RunAt schedules a one-time job to fire at a specific time, for
// schedule-document commands pegged to a date (collect-now, reboot).
func (s *Scheduler) RunAt(name string, at time.Time, taskFn any, args ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, err := s.scheduler.NewJob(
		gocron.OneTimeJob(gocron.OneTimeJobStartDateTime(at)),
		gocron.NewTask(taskFn, args...),
		gocron.WithName(name),
	)
	if err != nil {
		return fmt.Errorf("create pegged job %s: %w", name, err)
	}

	s.jobs[name] = j
	s.logger.Info("pegged job scheduled", "name", name, "at", at)
	return nil
}

// RemoveJob stops and removes a named job. No-op if the job doesn't exist.
func (s *Scheduler) RemoveJob(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[name]
	if !ok {
		return
	}
	if err := s.scheduler.RemoveJob(j.ID()); err != nil {
		s.logger.Warn("failed to remove scheduled job", "name", name, "error", err)
	}
	delete(s.jobs, name)
	s.logger.Info("scheduled job removed", "name", name)
}

// HasJob returns true if a job with the given name exists.
func (s *Scheduler) HasJob(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.jobs[name]
	return ok
}

// Stop shuts down the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() error {
	return s.scheduler.Shutdown()
}
