package sched

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"telegram-private-group/internal/domain/ports/adapter"
	"telegram-private-group/internal/infra/logging"
	"telegram-private-group/internal/infra/metrics"
)

// Job is one entry of the schedule table.
type Job struct {
	Name string
	Spec string
	Run  func(ctx context.Context) error
}

// Scheduler runs the job table on cron specs in a fixed timezone. Runs of the
// same job never overlap, neither in-process nor across replicas sharing the
// lock store.
type Scheduler struct {
	cron    *cron.Cron
	locker  adapter.JobLocker
	timeout time.Duration
	log     *zerolog.Logger

	mu   sync.Mutex
	jobs map[string]Job
	base context.Context
}

func New(loc *time.Location, locker adapter.JobLocker, runTimeout time.Duration, logger *zerolog.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	if runTimeout <= 0 {
		runTimeout = 5 * time.Minute
	}
	l := logger.With().Str("component", "Scheduler").Logger()
	cl := cronLogger{log: &l}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.SkipIfStillRunning(cl)),
		),
		locker:  locker,
		timeout: runTimeout,
		log:     &l,
		jobs:    make(map[string]Job),
		base:    context.Background(),
	}
}

// Add registers job. Names must be unique and specs must parse.
func (s *Scheduler) Add(job Job) error {
	if job.Name == "" || job.Run == nil {
		return errors.New("sched: job needs a name and a run func")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.jobs[job.Name]; dup {
		return fmt.Errorf("sched: duplicate job %q", job.Name)
	}
	if _, err := s.cron.AddFunc(job.Spec, func() { _ = s.runOnce(s.context(), job) }); err != nil {
		return fmt.Errorf("sched: job %q spec %q: %w", job.Name, job.Spec, err)
	}
	s.jobs[job.Name] = job
	s.log.Info().Str("job", job.Name).Str("spec", job.Spec).Msg("job scheduled")
	return nil
}

// Start begins firing jobs. ctx is the parent of every run context.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.base = ctx
	s.mu.Unlock()
	s.cron.Start()
	s.log.Info().Int("jobs", len(s.jobs)).Msg("scheduler started")
}

// Stop prevents new runs and waits for running ones until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.log.Info().Msg("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Trigger runs the named job once, outside the schedule, with the same
// locking, timeout and accounting as a scheduled run.
func (s *Scheduler) Trigger(ctx context.Context, name string) error {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("sched: unknown job %q", name)
	}
	return s.runOnce(ctx, job)
}

// ErrLocked is returned by Trigger when another holder runs the job.
var ErrLocked = errors.New("sched: job is running elsewhere")

func (s *Scheduler) runOnce(parent context.Context, job Job) (err error) {
	ctx := logging.WithJob(logging.WithTraceID(parent, uuid.NewString()), job.Name)
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	log := logging.With(ctx, s.log)

	unlock, ok, lerr := s.locker.TryLock(ctx, job.Name, s.timeout)
	if lerr != nil {
		metrics.IncJobRun(job.Name, "lock_error")
		log.Error().Err(lerr).Msg("job lock failed")
		return lerr
	}
	if !ok {
		metrics.IncJobRun(job.Name, "skipped")
		log.Debug().Msg("job locked by another runner")
		return ErrLocked
	}
	defer unlock()

	start := time.Now()
	defer func() {
		metrics.ObserveJobDuration(job.Name, time.Since(start))
		if r := recover(); r != nil {
			metrics.IncJobRun(job.Name, "panic")
			log.Error().Interface("panic", r).Msg("job panicked")
			err = fmt.Errorf("sched: job %q panicked: %v", job.Name, r)
		}
	}()

	if err = job.Run(ctx); err != nil {
		metrics.IncJobRun(job.Name, "error")
		log.Error().Err(err).Dur("took", time.Since(start)).Msg("job failed")
		return err
	}
	metrics.IncJobRun(job.Name, "ok")
	log.Debug().Dur("took", time.Since(start)).Msg("job finished")
	return nil
}

func (s *Scheduler) context() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.base
}

// cronLogger routes cron's own messages through zerolog.
type cronLogger struct{ log *zerolog.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
