// Package scheduler runs the periodic background jobs of the tracker:
// voice XP accrual, record flushes and backups.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"sync"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// JOBS & SCHEDULES
// ══════════════════════════════════════════════════════════════════════════════

// Job is one unit of periodic work.
type Job interface {
	// Name identifies the job; it must be unique within a Scheduler.
	Name() string

	// Run performs one execution. ctx is cancelled when the scheduler stops.
	Run(ctx context.Context) error

	// Description is shown in job listings.
	Description() string
}

// Schedule decides when a job is next due.
type Schedule interface {
	Next(t time.Time) time.Time
	String() string
}

// JobResult is the outcome of one execution.
type JobResult struct {
	JobName   string
	StartedAt time.Time
	Duration  time.Duration
	Error     error
	Manual    bool

	// Panicked is set when Run panicked; Error then holds the panic value.
	Panicked bool
}

// Success reports whether the execution returned without error.
func (r JobResult) Success() bool {
	return r.Error == nil
}

// entry is the scheduler's bookkeeping for one registered job.
type entry struct {
	job      Job
	schedule Schedule

	// Guarded by Scheduler.mu.
	busy    bool
	nextRun time.Time
	lastRun time.Time
	runs    int64
	fails   int64
	skips   int64
	last    *JobResult
}

// ══════════════════════════════════════════════════════════════════════════════
// SCHEDULER
// ══════════════════════════════════════════════════════════════════════════════

// SchedulerConfig contains configuration for the Scheduler.
type SchedulerConfig struct {
	// Logger for structured logging.
	Logger *slog.Logger

	// PollInterval is how often due jobs are checked (default: 1s).
	PollInterval time.Duration
}

// Scheduler starts registered jobs when they are due. A job never overlaps
// with itself: a due time that finds the previous run still going is skipped,
// and a panicking run is reported as a failed run instead of taking the
// process down.
type Scheduler struct {
	logger *slog.Logger
	poll   time.Duration

	mu      sync.Mutex
	entries map[string]*entry
	stop    context.CancelFunc
	started time.Time

	// inflight tracks the loop and every running job, so Stop can wait.
	inflight sync.WaitGroup
}

// NewScheduler creates a Scheduler.
func NewScheduler(config SchedulerConfig) *Scheduler {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.PollInterval <= 0 {
		config.PollInterval = time.Second
	}
	return &Scheduler{
		logger:  config.Logger.With("component", "scheduler"),
		poll:    config.PollInterval,
		entries: make(map[string]*entry),
	}
}

// Register adds a job. Its first run is one schedule step from now.
func (s *Scheduler) Register(job Job, schedule Schedule) error {
	switch {
	case job == nil:
		return ErrNilJob
	case schedule == nil:
		return ErrNilSchedule
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	if _, dup := s.entries[name]; dup {
		return fmt.Errorf("%w: %s", ErrJobAlreadyExists, name)
	}
	e := &entry{job: job, schedule: schedule, nextRun: schedule.Next(time.Now())}
	s.entries[name] = e

	s.logger.Info("job registered", "job", name, "schedule", schedule.String(), "next_run", e.nextRun.Format(time.RFC3339))
	return nil
}

// Start launches the polling loop. Jobs run until ctx is cancelled or Stop
// is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.stop != nil {
		s.mu.Unlock()
		return ErrSchedulerAlreadyRunning
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.stop = cancel
	s.started = time.Now()
	count := len(s.entries)
	s.mu.Unlock()

	s.inflight.Add(1)
	go s.loop(loopCtx)

	s.logger.Info("scheduler started", "jobs_count", count)
	return nil
}

// Stop cancels the loop and waits for running jobs to return.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	cancel := s.stop
	s.stop = nil
	s.mu.Unlock()

	if cancel == nil {
		return ErrSchedulerNotRunning
	}
	cancel()
	s.inflight.Wait()

	s.logger.Info("scheduler stopped", "uptime", time.Since(s.started).String())
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.inflight.Done()

	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.dispatchDue(ctx, now)
		}
	}
}

// dispatchDue starts every job whose due time has passed.
func (s *Scheduler) dispatchDue(ctx context.Context, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for name, e := range s.entries {
		if now.Before(e.nextRun) {
			continue
		}
		e.nextRun = e.schedule.Next(now)

		if e.busy {
			e.skips++
			s.logger.Warn("job still running, tick skipped", "job", name)
			continue
		}
		e.busy = true
		s.inflight.Add(1)
		go func(e *entry) {
			defer s.inflight.Done()
			s.execute(ctx, e, false)
		}(e)
	}
}

// RunNow executes a job immediately, outside its schedule. It also works
// after Stop, which is how the final flush runs on shutdown.
func (s *Scheduler) RunNow(ctx context.Context, jobName string) (*JobResult, error) {
	s.mu.Lock()
	e, ok := s.entries[jobName]
	switch {
	case !ok:
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobName)
	case e.busy:
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrJobInFlight, jobName)
	}
	e.busy = true
	s.mu.Unlock()

	result := s.execute(ctx, e, true)
	return &result, result.Error
}

// execute runs a job the caller has marked busy and records the outcome.
func (s *Scheduler) execute(ctx context.Context, e *entry, manual bool) JobResult {
	name := e.job.Name()
	result := JobResult{JobName: name, StartedAt: time.Now(), Manual: manual}

	result.Panicked, result.Error = s.guardedRun(ctx, e.job)
	result.Duration = time.Since(result.StartedAt)

	s.mu.Lock()
	e.busy = false
	e.lastRun = result.StartedAt
	e.runs++
	if result.Error != nil {
		e.fails++
	}
	e.last = &result
	s.mu.Unlock()

	if result.Error != nil {
		s.logger.Warn("job failed", "job", name, "manual", manual, "duration", result.Duration.String(), "error", result.Error)
	} else {
		s.logger.Debug("job completed", "job", name, "manual", manual, "duration", result.Duration.String())
	}
	return result
}

// guardedRun calls job.Run, turning a panic into an error.
func (s *Scheduler) guardedRun(ctx context.Context, job Job) (panicked bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("job panic recovered", "job", job.Name(), "panic", r, "stack", string(debug.Stack()))
			panicked, err = true, fmt.Errorf("%w: %v", ErrJobPanicked, r)
		}
	}()
	return false, job.Run(ctx)
}

// ══════════════════════════════════════════════════════════════════════════════
// STATUS
// ══════════════════════════════════════════════════════════════════════════════

// JobInfo is a point-in-time view of a registered job.
type JobInfo struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Running     bool       `json:"running"`
	Schedule    string     `json:"schedule"`
	LastRun     time.Time  `json:"last_run"`
	NextRun     time.Time  `json:"next_run"`
	RunCount    int64      `json:"run_count"`
	FailCount   int64      `json:"fail_count"`
	SkipCount   int64      `json:"skip_count"`
	LastResult  *JobResult `json:"-"`
}

// ListJobs returns every registered job, sorted by name.
func (s *Scheduler) ListJobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos := make([]JobInfo, 0, len(s.entries))
	for name, e := range s.entries {
		infos = append(infos, JobInfo{
			Name:        name,
			Description: e.job.Description(),
			Running:     e.busy,
			Schedule:    e.schedule.String(),
			LastRun:     e.lastRun,
			NextRun:     e.nextRun,
			RunCount:    e.runs,
			FailCount:   e.fails,
			SkipCount:   e.skips,
			LastResult:  e.last,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	ErrNilJob                  = errors.New("job cannot be nil")
	ErrNilSchedule             = errors.New("schedule cannot be nil")
	ErrJobAlreadyExists        = errors.New("job already exists")
	ErrJobNotFound             = errors.New("job not found")
	ErrJobInFlight             = errors.New("job is already running")
	ErrJobPanicked             = errors.New("job panicked")
	ErrSchedulerAlreadyRunning = errors.New("scheduler is already running")
	ErrSchedulerNotRunning     = errors.New("scheduler is not running")
)
