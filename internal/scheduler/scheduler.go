// Package scheduler runs the monitoring sweeps on cron cadences.
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"finwatch/internal/config"
	apperrors "finwatch/internal/errors"
	"finwatch/internal/logger"
	"finwatch/internal/metrics"
	"finwatch/internal/services"
)

// Schedules maps each sweep kind to a five-field cron spec.
type Schedules map[services.SweepKind]string

// SchedulesFromConfig returns the sweep cadences configured in cfg.
func SchedulesFromConfig(cfg *config.Config) Schedules {
	return Schedules{
		services.SweepBudget:    cfg.BudgetScanSchedule,
		services.SweepGoal:      cfg.GoalScanSchedule,
		services.SweepRecurring: cfg.RecurringScanSchedule,
	}
}

// Scheduler owns one cron entry per sweep kind. Runs of the same kind never
// overlap; different kinds may run at the same time. A sweep that errors or
// panics ends that run only and the entry stays armed.
type Scheduler struct {
	cron    *cron.Cron
	monitor services.MonitorServicer
	log     *zap.SugaredLogger

	// ctx is handed to every sweep and cancelled by Stop.
	ctx    context.Context
	cancel context.CancelFunc

	// locks serializes a kind between cron and RunNow.
	locks map[services.SweepKind]*sync.Mutex
}

// New registers a job for every kind in schedules. Kinds with an empty spec
// are not scheduled but can still be run with RunNow.
func New(monitor services.MonitorServicer, schedules Schedules) (*Scheduler, error) {
	log := logger.Named("scheduler")
	c := cron.New(cron.WithChain(
		cron.Recover(cronLogger{log}),
	))

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:    c,
		monitor: monitor,
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
		locks:   make(map[services.SweepKind]*sync.Mutex, len(services.SweepKinds)),
	}
	for _, kind := range services.SweepKinds {
		s.locks[kind] = &sync.Mutex{}
	}

	for _, kind := range services.SweepKinds {
		spec := schedules[kind]
		if spec == "" {
			continue
		}
		job := cron.NewChain(cron.SkipIfStillRunning(cronLogger{log})).Then(s.job(kind))
		if _, err := c.AddJob(spec, job); err != nil {
			cancel()
			return nil, fmt.Errorf("schedule %s sweep %q: %w", kind, spec, err)
		}
		log.Infow("sweep scheduled", "kind", kind, "spec", spec)
	}
	return s, nil
}

// Start begins firing scheduled sweeps in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("scheduler started")
}

// Stop halts the schedule, cancels running sweeps and waits for them to
// return or for ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	s.cancel()
	select {
	case <-done.Done():
		s.log.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunNow runs one sweep synchronously. It waits for a scheduled run of the
// same kind to finish first.
func (s *Scheduler) RunNow(ctx context.Context, kind services.SweepKind) (*services.SweepResult, error) {
	lock, ok := s.locks[kind]
	if !ok {
		return nil, apperrors.WithMessage(apperrors.ErrUnknownSweep, fmt.Sprintf("Unknown sweep %q", kind))
	}
	lock.Lock()
	defer lock.Unlock()
	return s.run(ctx, kind)
}

func (s *Scheduler) job(kind services.SweepKind) cron.Job {
	return cron.FuncJob(func() {
		lock := s.locks[kind]
		if !lock.TryLock() {
			metrics.SweepsTotal.WithLabelValues(string(kind), metrics.SweepSkipped).Inc()
			s.log.Infow("sweep skipped, previous run still active", "kind", kind)
			return
		}
		defer lock.Unlock()
		_, _ = s.run(s.ctx, kind)
	})
}

// run calls the monitor and turns a panic into an error.
func (s *Scheduler) run(ctx context.Context, kind services.SweepKind) (result *services.SweepResult, err error) {
	defer func() {
		if p := recover(); p != nil {
			metrics.SweepsTotal.WithLabelValues(string(kind), metrics.SweepPanicked).Inc()
			s.log.Errorw("sweep panicked", "kind", kind, "panic", p)
			result, err = nil, apperrors.Wrap(apperrors.ErrInternalServer, fmt.Errorf("sweep %s panicked: %v", kind, p))
		}
	}()
	return s.monitor.Run(ctx, kind)
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
