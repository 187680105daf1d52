package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	apperrors "finwatch/internal/errors"
	"finwatch/internal/logger"
	"finwatch/internal/metrics"
	"finwatch/internal/models"
)

// DefaultScanWorkers bounds per-entity concurrency when none is configured.
const DefaultScanWorkers = 4

// monitorService runs the budget, goal and recurring expense sweeps. Each
// sweep loads every active entity of its kind across all users and evaluates
// them on a bounded worker pool. A failing entity is logged and counted; it
// never stops the rest of the sweep.
type monitorService struct {
	db            *gorm.DB
	aggregator    MetricAggregator
	notifications NotificationServicer
	workers       int
	now           Clock
}

// NewMonitorService creates a new MonitorServicer.
func NewMonitorService(
	db *gorm.DB,
	aggregator MetricAggregator,
	notifications NotificationServicer,
	workers int,
	now Clock,
) MonitorServicer {
	if workers <= 0 {
		workers = DefaultScanWorkers
	}
	if now == nil {
		now = SystemClock
	}
	return &monitorService{
		db:            db,
		aggregator:    aggregator,
		notifications: notifications,
		workers:       workers,
		now:           now,
	}
}

// Run dispatches to the sweep named by kind.
func (s *monitorService) Run(ctx context.Context, kind SweepKind) (*SweepResult, error) {
	switch kind {
	case SweepBudget:
		return s.RunBudgetSweep(ctx)
	case SweepGoal:
		return s.RunGoalSweep(ctx)
	case SweepRecurring:
		return s.RunRecurringSweep(ctx)
	}
	return nil, apperrors.WithMessage(apperrors.ErrUnknownSweep, fmt.Sprintf("Unknown sweep %q", kind))
}

// RunBudgetSweep raises budget alerts for every active budget.
func (s *monitorService) RunBudgetSweep(ctx context.Context) (*SweepResult, error) {
	return s.sweep(ctx, SweepBudget, func(ctx context.Context, now time.Time, t *tally) error {
		var budgets []models.Budget
		if err := s.db.WithContext(ctx).Preload("User").
			Where("is_active = ?", true).Find(&budgets).Error; err != nil {
			return err
		}
		forEach(ctx, s.workers, budgets, func(ctx context.Context, b *models.Budget) error {
			return s.checkBudget(ctx, b, t)
		}, entityFailed(t, SweepBudget, func(b *models.Budget) (string, string) { return b.ID, b.UserID }))
		return nil
	})
}

func (s *monitorService) checkBudget(ctx context.Context, b *models.Budget, t *tally) error {
	if b.User.ID == "" {
		return apperrors.ErrUserNotFound
	}
	t.evaluated()

	m, err := s.aggregator.BudgetMetrics(ctx, b)
	if err != nil {
		return fmt.Errorf("aggregate spend: %w", err)
	}
	return t.deliver(ctx, s.notifications, b.UserID, EvaluateBudget(b, b.User.Notifications, m))
}

// RunGoalSweep raises goal reminders and completes goals that reached
// their target.
func (s *monitorService) RunGoalSweep(ctx context.Context) (*SweepResult, error) {
	return s.sweep(ctx, SweepGoal, func(ctx context.Context, now time.Time, t *tally) error {
		var goals []models.Goal
		if err := s.db.WithContext(ctx).Preload("User").
			Where("status = ?", models.GoalStatusActive).Find(&goals).Error; err != nil {
			return err
		}
		forEach(ctx, s.workers, goals, func(ctx context.Context, g *models.Goal) error {
			return s.checkGoal(ctx, g, now, t)
		}, entityFailed(t, SweepGoal, func(g *models.Goal) (string, string) { return g.ID, g.UserID }))
		return nil
	})
}

func (s *monitorService) checkGoal(ctx context.Context, g *models.Goal, now time.Time, t *tally) error {
	if g.User.ID == "" {
		return apperrors.ErrUserNotFound
	}
	t.evaluated()

	c, transition := EvaluateGoal(g, g.User.Notifications, s.aggregator.GoalMetrics(g, now))
	if transition.Changed() {
		completed, err := completeGoal(s.db.WithContext(ctx), g, now)
		if err != nil {
			return fmt.Errorf("complete goal: %w", err)
		}
		if !completed {
			// Completed elsewhere since it was loaded; that path owns the alert.
			return nil
		}
		t.add(func(r *SweepResult) { r.Completed++ })
	}
	return t.deliver(ctx, s.notifications, g.UserID, c)
}

// RunRecurringSweep raises due-soon reminders and rolls overdue expenses
// forward. Rollover happens whether or not a reminder fired.
func (s *monitorService) RunRecurringSweep(ctx context.Context) (*SweepResult, error) {
	return s.sweep(ctx, SweepRecurring, func(ctx context.Context, now time.Time, t *tally) error {
		var expenses []models.RecurringExpense
		if err := s.db.WithContext(ctx).Preload("User").Preload("Category").
			Where("is_active = ?", true).Find(&expenses).Error; err != nil {
			return err
		}
		forEach(ctx, s.workers, expenses, func(ctx context.Context, e *models.RecurringExpense) error {
			return s.checkRecurring(ctx, e, now, t)
		}, entityFailed(t, SweepRecurring, func(e *models.RecurringExpense) (string, string) { return e.ID, e.UserID }))
		return nil
	})
}

func (s *monitorService) checkRecurring(ctx context.Context, e *models.RecurringExpense, now time.Time, t *tally) error {
	if e.User.ID == "" {
		return apperrors.ErrUserNotFound
	}
	t.evaluated()

	c := EvaluateRecurring(e, e.User.Notifications, s.aggregator.RecurringMetrics(e, now))
	deliverErr := t.deliver(ctx, s.notifications, e.UserID, c)

	transition := AdvanceRecurrence(e, now)
	if !transition.Changed() {
		return deliverErr
	}
	err := persistTransition(s.db.WithContext(ctx), e, transition)
	switch {
	case errors.Is(err, errLostRace):
		return deliverErr
	case err != nil:
		return errors.Join(deliverErr, fmt.Errorf("advance due date: %w", err))
	}

	if transition.Deactivated() {
		metrics.RecurringTransitions.WithLabelValues("deactivated").Inc()
		t.add(func(r *SweepResult) { r.Deactivated++ })
	} else {
		metrics.RecurringTransitions.WithLabelValues("advanced").Inc()
		t.add(func(r *SweepResult) { r.Advanced++ })
	}
	return deliverErr
}

// sweep wraps one pass with timing, logging and metrics. load fetches the
// entities and fans them out.
func (s *monitorService) sweep(
	ctx context.Context,
	kind SweepKind,
	load func(ctx context.Context, now time.Time, t *tally) error,
) (*SweepResult, error) {
	log := logger.Named("sweep." + string(kind))
	start := time.Now()
	now := s.now().UTC()
	t := &tally{result: SweepResult{Kind: kind}}

	err := load(ctx, now, t)

	result := t.snapshot()
	result.Duration = time.Since(start)
	metrics.SweepDuration.WithLabelValues(string(kind)).Observe(result.Duration.Seconds())

	if err != nil {
		metrics.SweepsTotal.WithLabelValues(string(kind), metrics.SweepFailed).Inc()
		log.Errorw("sweep failed", "error", err)
		return &result, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	metrics.SweepsTotal.WithLabelValues(string(kind), metrics.SweepSucceeded).Inc()
	log.Infow("sweep finished",
		"evaluated", result.Evaluated,
		"notified", result.Notified,
		"suppressed", result.Suppressed,
		"advanced", result.Advanced,
		"deactivated", result.Deactivated,
		"completed", result.Completed,
		"failures", result.Failures,
		"duration", result.Duration,
	)
	return &result, nil
}

// completeGoal moves an active goal to completed. It reports false when the
// goal was no longer active.
func completeGoal(db *gorm.DB, g *models.Goal, now time.Time) (bool, error) {
	res := db.Model(&models.Goal{}).
		Where("id = ? AND status = ?", g.ID, models.GoalStatusActive).
		Updates(map[string]interface{}{
			"status":       models.GoalStatusCompleted,
			"completed_at": now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected != 1 {
		return false, nil
	}
	g.Status = models.GoalStatusCompleted
	g.CompletedAt = &now
	return true, nil
}

// forEach runs fn for every item on at most workers goroutines. Errors and
// panics are handed to onFail; they never cancel the other items.
func forEach[T any](
	ctx context.Context,
	workers int,
	items []T,
	fn func(context.Context, *T) error,
	onFail func(*T, error),
) {
	var g errgroup.Group
	g.SetLimit(workers)
	for i := range items {
		item := &items[i]
		g.Go(func() (err error) {
			defer func() {
				if p := recover(); p != nil {
					err = fmt.Errorf("panic: %v", p)
				}
				if err != nil {
					onFail(item, err)
				}
			}()
			if err := ctx.Err(); err != nil {
				return err
			}
			return fn(ctx, item)
		})
	}
	_ = g.Wait()
}

// tally accumulates a SweepResult from concurrent workers.
type tally struct {
	mu     sync.Mutex
	result SweepResult
}

func (t *tally) add(f func(r *SweepResult)) {
	t.mu.Lock()
	f(&t.result)
	t.mu.Unlock()
}

func (t *tally) evaluated() { t.add(func(r *SweepResult) { r.Evaluated++ }) }

func (t *tally) snapshot() SweepResult {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result
}

// deliver hands c to the notification service and records the outcome.
func (t *tally) deliver(ctx context.Context, notifications NotificationServicer, userID string, c *Candidate) error {
	if c == nil {
		return nil
	}
	_, outcome, err := notifications.Deliver(ctx, userID, c)
	if err != nil {
		return fmt.Errorf("deliver notification: %w", err)
	}
	switch outcome {
	case DeliveryCreated:
		t.add(func(r *SweepResult) { r.Notified++ })
	case DeliverySuppressed:
		t.add(func(r *SweepResult) { r.Suppressed++ })
	}
	return nil
}

// entityFailed returns an onFail callback that logs and counts entity failures.
func entityFailed[T any](t *tally, kind SweepKind, ids func(*T) (string, string)) func(*T, error) {
	log := logger.Named("sweep." + string(kind))
	return func(item *T, err error) {
		entityID, userID := ids(item)
		metrics.EntityFailures.WithLabelValues(string(kind)).Inc()
		t.add(func(r *SweepResult) { r.Failures++ })
		log.Errorw("entity evaluation failed",
			"error", err,
			"entity_id", entityID,
			"user_id", userID,
		)
	}
}
