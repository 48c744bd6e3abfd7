// Package scheduler runs the reconciliation sweeps on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/diewo77/conventions/internal/config"
	"github.com/diewo77/conventions/internal/services"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Sweeper runs one named sweep. *services.Reconciler satisfies it.
type Sweeper interface {
	Run(ctx context.Context, name services.SweepName) (*services.SweepReport, error)
}

// Job binds a sweep to a cron spec.
type Job struct {
	Sweep services.SweepName
	Spec  string
}

// JobsFromConfig returns the four sweeps with their configured cadence.
// A job with an empty spec is disabled.
func JobsFromConfig(cfg config.SchedulerConfig) []Job {
	all := []Job{
		{Sweep: services.SweepDateTransitions, Spec: cfg.DateTransitions},
		{Sweep: services.SweepCompletions, Spec: cfg.Completions},
		{Sweep: services.SweepOverdueInvoices, Spec: cfg.OverdueInvoices},
		{Sweep: services.SweepComprehensive, Spec: cfg.Comprehensive},
	}
	jobs := all[:0]
	for _, j := range all {
		if j.Spec != "" {
			jobs = append(jobs, j)
		}
	}
	return jobs
}

// Scheduler owns a cron instance whose entries call a Sweeper.
type Scheduler struct {
	cron    *cron.Cron
	sweeper Sweeper
	timeout time.Duration
	log     zerolog.Logger
	entries map[services.SweepName]cron.EntryID
}

// Option customizes a Scheduler.
type Option func(*[]cron.Option)

// WithLocation evaluates cron specs in loc instead of time.Local.
func WithLocation(loc *time.Location) Option {
	return func(opts *[]cron.Option) { *opts = append(*opts, cron.WithLocation(loc)) }
}

// New registers jobs on a fresh cron. Overlapping runs of the same job are
// skipped and a panicking job is recovered and logged.
func New(sweeper Sweeper, jobs []Job, timeout time.Duration, log zerolog.Logger, opts ...Option) (*Scheduler, error) {
	cl := cronLogger{log: log}
	cronOpts := []cron.Option{
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	}
	for _, o := range opts {
		o(&cronOpts)
	}

	s := &Scheduler{
		cron:    cron.New(cronOpts...),
		sweeper: sweeper,
		timeout: timeout,
		log:     log,
		entries: make(map[services.SweepName]cron.EntryID, len(jobs)),
	}
	for _, j := range jobs {
		name := j.Sweep
		id, err := s.cron.AddFunc(j.Spec, func() { s.RunOnce(context.Background(), name) })
		if err != nil {
			return nil, fmt.Errorf("schedule %s (%q): %w", name, j.Spec, err)
		}
		s.entries[name] = id
		log.Info().Str("sweep", string(name)).Str("spec", j.Spec).Msg("sweep scheduled")
	}
	return s, nil
}

// RunOnce executes a sweep with the job timeout and logs its report.
func (s *Scheduler) RunOnce(parent context.Context, name services.SweepName) *services.SweepReport {
	ctx, cancel := context.WithTimeout(parent, s.timeout)
	defer cancel()

	report, err := s.sweeper.Run(ctx, name)
	if err != nil {
		s.log.Error().Err(err).Str("sweep", string(name)).Msg("sweep aborted")
		return report
	}
	ev := s.log.Info()
	if len(report.Failed) > 0 {
		ev = s.log.Warn()
	}
	ev.Str("sweep", string(name)).
		Str("run_id", report.RunID).
		Int("examined", report.Examined).
		Int("changed", report.Changed).
		Int("failed", len(report.Failed)).
		Dur("duration", report.Duration).
		Msg("sweep finished")
	return report
}

// Next reports when the named sweep fires next. ok is false for unscheduled sweeps.
func (s *Scheduler) Next(name services.SweepName) (next time.Time, ok bool) {
	id, ok := s.entries[name]
	if !ok {
		return time.Time{}, false
	}
	return s.cron.Entry(id).Next, true
}

// Start launches the cron loop in its own goroutine.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop prevents new runs and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
