package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"

	"finwatch/internal/config"
	"finwatch/internal/metrics"
	"finwatch/internal/services"
	"finwatch/internal/testutil"
)

// fakeMonitor records runs. A kind present in block waits on its channel
// before returning.
type fakeMonitor struct {
	mu      sync.Mutex
	runs    map[services.SweepKind]int
	block   map[services.SweepKind]chan struct{}
	entered chan services.SweepKind
	panicOn services.SweepKind
	err     error
}

func newFakeMonitor() *fakeMonitor {
	return &fakeMonitor{
		runs:    map[services.SweepKind]int{},
		block:   map[services.SweepKind]chan struct{}{},
		entered: make(chan services.SweepKind, 16),
	}
}

func (m *fakeMonitor) count(kind services.SweepKind) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runs[kind]
}

func (m *fakeMonitor) RunBudgetSweep(ctx context.Context) (*services.SweepResult, error) {
	return m.Run(ctx, services.SweepBudget)
}

func (m *fakeMonitor) RunGoalSweep(ctx context.Context) (*services.SweepResult, error) {
	return m.Run(ctx, services.SweepGoal)
}

func (m *fakeMonitor) RunRecurringSweep(ctx context.Context) (*services.SweepResult, error) {
	return m.Run(ctx, services.SweepRecurring)
}

func (m *fakeMonitor) Run(ctx context.Context, kind services.SweepKind) (*services.SweepResult, error) {
	m.mu.Lock()
	m.runs[kind]++
	wait := m.block[kind]
	m.mu.Unlock()

	select {
	case m.entered <- kind:
	default:
	}
	if kind == m.panicOn {
		panic("boom")
	}
	if wait != nil {
		select {
		case <-wait:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	return &services.SweepResult{Kind: kind, Evaluated: 1}, nil
}

func TestSchedulesFromConfig(t *testing.T) {
	cfg := &config.Config{
		BudgetScanSchedule:    "0 * * * *",
		GoalScanSchedule:      "0 9 * * *",
		RecurringScanSchedule: "",
	}
	s := SchedulesFromConfig(cfg)
	if s[services.SweepBudget] != "0 * * * *" || s[services.SweepGoal] != "0 9 * * *" {
		t.Errorf("unexpected schedules %v", s)
	}
	if s[services.SweepRecurring] != "" {
		t.Errorf("expected empty recurring schedule, got %q", s[services.SweepRecurring])
	}
}

func TestNew(t *testing.T) {
	t.Run("invalid_spec", func(t *testing.T) {
		_, err := New(newFakeMonitor(), Schedules{services.SweepBudget: "not a cron"})
		if err == nil {
			t.Fatal("expected error for invalid spec")
		}
	})

	t.Run("empty_spec_not_scheduled", func(t *testing.T) {
		s, err := New(newFakeMonitor(), Schedules{services.SweepGoal: "0 9 * * *"})
		testutil.AssertNoError(t, err)
		if n := len(s.cron.Entries()); n != 1 {
			t.Errorf("expected 1 entry, got %d", n)
		}
	})
}

func TestRunNow(t *testing.T) {
	t.Run("runs_sweep", func(t *testing.T) {
		monitor := newFakeMonitor()
		s, err := New(monitor, Schedules{})
		testutil.AssertNoError(t, err)

		result, err := s.RunNow(t.Context(), services.SweepGoal)
		testutil.AssertNoError(t, err)
		if result.Kind != services.SweepGoal || monitor.count(services.SweepGoal) != 1 {
			t.Errorf("unexpected result %+v", result)
		}
	})

	t.Run("unknown_kind", func(t *testing.T) {
		s, err := New(newFakeMonitor(), Schedules{})
		testutil.AssertNoError(t, err)

		_, err = s.RunNow(t.Context(), "weather")
		testutil.AssertAppError(t, err, "UNKNOWN_SWEEP")
	})

	t.Run("monitor_error", func(t *testing.T) {
		monitor := newFakeMonitor()
		monitor.err = errors.New("db down")
		s, err := New(monitor, Schedules{})
		testutil.AssertNoError(t, err)

		if _, err := s.RunNow(t.Context(), services.SweepBudget); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("panic_becomes_error", func(t *testing.T) {
		monitor := newFakeMonitor()
		monitor.panicOn = services.SweepRecurring
		s, err := New(monitor, Schedules{})
		testutil.AssertNoError(t, err)

		panicked := metrics.SweepsTotal.WithLabelValues(string(services.SweepRecurring), metrics.SweepPanicked)
		before := promtest.ToFloat64(panicked)

		_, err = s.RunNow(t.Context(), services.SweepRecurring)
		testutil.AssertAppError(t, err, "INTERNAL_ERROR")
		if got := promtest.ToFloat64(panicked) - before; got != 1 {
			t.Errorf("expected panicked counter +1, got %v", got)
		}

		// The lock is released after a panic.
		monitor.panicOn = ""
		_, err = s.RunNow(t.Context(), services.SweepRecurring)
		testutil.AssertNoError(t, err)
	})
}

func TestScheduledRuns(t *testing.T) {
	t.Run("fires_on_schedule", func(t *testing.T) {
		monitor := newFakeMonitor()
		s, err := New(monitor, Schedules{services.SweepBudget: "@every 1s"})
		testutil.AssertNoError(t, err)
		s.Start()
		defer func() { _ = s.Stop(context.Background()) }()

		select {
		case kind := <-monitor.entered:
			if kind != services.SweepBudget {
				t.Errorf("expected budget sweep, got %s", kind)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("scheduled sweep never ran")
		}
	})

	t.Run("skips_while_same_kind_running", func(t *testing.T) {
		monitor := newFakeMonitor()
		release := make(chan struct{})
		monitor.block[services.SweepGoal] = release
		s, err := New(monitor, Schedules{services.SweepGoal: "@every 1s"})
		testutil.AssertNoError(t, err)

		skipped := metrics.SweepsTotal.WithLabelValues(string(services.SweepGoal), metrics.SweepSkipped)
		before := promtest.ToFloat64(skipped)

		done := make(chan error, 1)
		go func() {
			_, err := s.RunNow(context.Background(), services.SweepGoal)
			done <- err
		}()
		<-monitor.entered

		s.Start()
		deadline := time.Now().Add(5 * time.Second)
		for promtest.ToFloat64(skipped) == before {
			if time.Now().After(deadline) {
				t.Fatal("expected a scheduled run to be skipped")
			}
			time.Sleep(50 * time.Millisecond)
		}

		close(release)
		testutil.AssertNoError(t, <-done)
		testutil.AssertNoError(t, s.Stop(context.Background()))
		if n := monitor.count(services.SweepGoal); n != 1 {
			t.Errorf("expected only the manual run to reach the monitor, got %d", n)
		}
	})

	t.Run("stop_cancels_running_sweep", func(t *testing.T) {
		monitor := newFakeMonitor()
		monitor.block[services.SweepRecurring] = make(chan struct{})
		s, err := New(monitor, Schedules{services.SweepRecurring: "@every 1s"})
		testutil.AssertNoError(t, err)
		s.Start()

		select {
		case <-monitor.entered:
		case <-time.After(5 * time.Second):
			t.Fatal("scheduled sweep never ran")
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		testutil.AssertNoError(t, s.Stop(ctx))
	})
}
