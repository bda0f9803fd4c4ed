// Package scheduler runs the notifier jobs on cron schedules in UTC.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"shipmentportal/pkg/metrics"
)

const DefaultJobTimeout = 2 * time.Minute

var ErrUnknownJob = errors.New("scheduler: unknown job")

// Job is one named unit of periodic work.
type Job struct {
	Name     string
	Schedule string
	Run      func(ctx context.Context) error
	// RunOnStart also runs the job once when the scheduler starts.
	RunOnStart bool
}

// cronLogger adapts zap to cron.Logger. Cron's per-tick chatter goes to debug.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}

type Scheduler struct {
	cron    *cron.Cron
	timeout time.Duration
	logger  *zap.Logger

	mu      sync.Mutex
	jobs    map[string]Job
	entries map[string]cron.EntryID
	baseCtx context.Context
	cancel  context.CancelFunc

	// startup tracks run-on-start runs, which cron.Stop does not wait for.
	startup sync.WaitGroup
}

func New(timeout time.Duration, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = DefaultJobTimeout
	}
	cl := cronLogger{s: logger.Sugar()}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		timeout: timeout,
		logger:  logger,
		jobs:    make(map[string]Job),
		entries: make(map[string]cron.EntryID),
		baseCtx: ctx,
		cancel:  cancel,
	}
}

// Add registers a job. Each job gets its own cron entry so a slow run of one
// never delays another.
func (s *Scheduler) Add(job Job) error {
	if job.Name == "" || job.Run == nil {
		return errors.New("scheduler: job needs a name and a run func")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.jobs[job.Name]; dup {
		return fmt.Errorf("scheduler: duplicate job %q", job.Name)
	}

	id, err := s.cron.AddFunc(job.Schedule, func() {
		_ = s.run(s.baseCtx, job)
	})
	if err != nil {
		return fmt.Errorf("scheduler: job %q schedule %q: %w", job.Name, job.Schedule, err)
	}
	s.jobs[job.Name] = job
	s.entries[job.Name] = id
	return nil
}

// Start begins scheduling and kicks off the run-on-start jobs through the
// same chain as scheduled runs.
func (s *Scheduler) Start() {
	s.mu.Lock()
	for name, job := range s.jobs {
		if !job.RunOnStart {
			continue
		}
		entry := s.cron.Entry(s.entries[name])
		s.startup.Add(1)
		go func() {
			defer s.startup.Done()
			entry.WrappedJob.Run()
		}()
	}
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info("scheduler started", zap.Int("jobs", len(s.jobs)))
}

// Stop cancels running jobs and waits for them to return or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	done := s.cron.Stop()

	startup := make(chan struct{})
	go func() {
		s.startup.Wait()
		close(startup)
	}()

	for _, ch := range []<-chan struct{}{done.Done(), startup} {
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.logger.Info("scheduler stopped")
	return nil
}

// RunNow runs a registered job once in the caller's goroutine.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return s.run(ctx, job)
}

// Jobs returns the registered job names with their next run time.
func (s *Scheduler) Jobs() map[string]time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]time.Time, len(s.entries))
	for name, id := range s.entries {
		out[name] = s.cron.Entry(id).Next
	}
	return out
}

func (s *Scheduler) run(parent context.Context, job Job) error {
	ctx, cancel := context.WithTimeout(parent, s.timeout)
	defer cancel()

	start := time.Now()
	err := job.Run(ctx)
	elapsed := time.Since(start)

	if err != nil {
		metrics.RecordJobRun(job.Name, "error", elapsed)
		s.logger.Error("job failed",
			zap.String("job", job.Name),
			zap.Duration("duration", elapsed),
			zap.Error(err),
		)
		return err
	}
	metrics.RecordJobRun(job.Name, "ok", elapsed)
	s.logger.Info("job finished",
		zap.String("job", job.Name),
		zap.Duration("duration", elapsed),
	)
	return nil
}
