// Package scheduler runs periodic background jobs on top of gocron.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/featherlingo/featherlingo-api/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// JOB INTERFACE
// ══════════════════════════════════════════════════════════════════════════════

// Job is a unit of periodic work.
type Job interface {
	// Name returns the unique name of the job.
	Name() string

	// Run executes the job. ctx is cancelled on timeout or when the
	// scheduler stops.
	Run(ctx context.Context) error
}

// Scheduler errors.
var (
	ErrNilJob           = errors.New("scheduler: job is nil")
	ErrJobExists        = errors.New("scheduler: job already registered")
	ErrJobNotFound      = errors.New("scheduler: job not found")
	ErrInvalidInterval  = errors.New("scheduler: interval must be positive")
	ErrSchedulerStopped = errors.New("scheduler: stopped")
)

// JobStats is the run history summary of one job.
type JobStats struct {
	Runs      int64         `json:"runs"`
	Failures  int64         `json:"failures"`
	LastRun   time.Time     `json:"last_run"`
	LastError string        `json:"last_error,omitempty"`
	Duration  time.Duration `json:"last_duration"`
}

// ══════════════════════════════════════════════════════════════════════════════
// SCHEDULER
// ══════════════════════════════════════════════════════════════════════════════

// Config configures the Scheduler.
type Config struct {
	Logger *logger.Logger

	// Location for calendar-based schedules (default: UTC).
	Location *time.Location

	// JobTimeout bounds a single run (0 = no limit).
	JobTimeout time.Duration
}

// Scheduler runs registered jobs, never overlapping two runs of the same job.
type Scheduler struct {
	cron    *gocron.Scheduler
	log     *logger.Logger
	timeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.RWMutex
	jobs  map[string]Job
	stats map[string]*JobStats
}

// New creates a Scheduler. Call Start to begin running jobs.
func New(cfg Config) *Scheduler {
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:    gocron.NewScheduler(cfg.Location),
		log:     cfg.Logger.WithComponent("scheduler"),
		timeout: cfg.JobTimeout,
		ctx:     ctx,
		cancel:  cancel,
		jobs:    make(map[string]Job),
		stats:   make(map[string]*JobStats),
	}
}

// Every registers job to run each interval. With immediate the first run
// happens on Start, otherwise after the first interval.
func (s *Scheduler) Every(interval time.Duration, job Job, immediate bool) error {
	if job == nil {
		return ErrNilJob
	}
	if interval <= 0 {
		return ErrInvalidInterval
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	if _, ok := s.jobs[name]; ok {
		return fmt.Errorf("%w: %s", ErrJobExists, name)
	}

	chain := s.cron.Every(interval).SingletonMode()
	if !immediate {
		chain = chain.WaitForSchedule()
	}
	if _, err := chain.Tag(name).Do(s.execute, job); err != nil {
		return fmt.Errorf("scheduler: register %s: %w", name, err)
	}

	s.jobs[name] = job
	s.stats[name] = &JobStats{}
	s.log.Info("job registered", logger.String("job", name), logger.Duration("interval", interval))
	return nil
}

// Start runs the scheduler in the background.
func (s *Scheduler) Start() {
	s.cron.StartAsync()
	s.log.Info("scheduler started", logger.Int("jobs", s.cron.Len()))
}

// Stop cancels running jobs and stops scheduling new ones.
func (s *Scheduler) Stop() {
	s.cancel()
	s.cron.Stop()
	s.log.Info("scheduler stopped")
}

// RunNow runs the named job synchronously, outside its schedule.
func (s *Scheduler) RunNow(name string) error {
	s.mu.RLock()
	job, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	if s.ctx.Err() != nil {
		return ErrSchedulerStopped
	}
	return s.execute(job)
}

// Stats returns a copy of the run statistics per job.
func (s *Scheduler) Stats() map[string]JobStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]JobStats, len(s.stats))
	for name, st := range s.stats {
		out[name] = *st
	}
	return out
}

func (s *Scheduler) execute(job Job) error {
	ctx := s.ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	name := job.Name()
	log := s.log.With(logger.String("job", name))
	ctx = logger.WithContext(ctx, log)

	start := time.Now()
	err := s.safeRun(ctx, job)
	elapsed := time.Since(start)

	s.mu.Lock()
	st := s.stats[name]
	if st == nil {
		st = &JobStats{}
		s.stats[name] = st
	}
	st.Runs++
	st.LastRun = start
	st.Duration = elapsed
	st.LastError = ""
	if err != nil {
		st.Failures++
		st.LastError = err.Error()
	}
	s.mu.Unlock()

	if err != nil {
		log.Error("job failed", logger.Err(err), logger.Latency(elapsed))
		return err
	}
	log.Info("job completed", logger.Latency(elapsed))
	return nil
}

// safeRun keeps a panicking job from killing the worker.
func (s *Scheduler) safeRun(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scheduler: job %s panicked: %v", job.Name(), r)
		}
	}()
	return job.Run(ctx)
}
