package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	apperrors "finwatch/internal/errors"
	"finwatch/internal/logger"
	"finwatch/internal/metrics"
	"finwatch/internal/models"
)

// recurringExpenseService materializes due recurring expenses as transactions.
type recurringExpenseService struct {
	db  *gorm.DB
	now Clock
}

// NewRecurringExpenseService creates a new RecurringExpenseServicer.
func NewRecurringExpenseService(db *gorm.DB, now Clock) RecurringExpenseServicer {
	if now == nil {
		now = SystemClock
	}
	return &recurringExpenseService{db: db, now: now}
}

// ProcessDue materializes the user's expenses due on or before today.
func (s *recurringExpenseService) ProcessDue(ctx context.Context, userID string) (*ProcessDueResult, error) {
	return s.process(ctx, s.db.Where("user_id = ?", userID))
}

// ProcessAllDue materializes due expenses for every user.
func (s *recurringExpenseService) ProcessAllDue(ctx context.Context) (*ProcessDueResult, error) {
	return s.process(ctx, s.db)
}

func (s *recurringExpenseService) process(ctx context.Context, scope *gorm.DB) (*ProcessDueResult, error) {
	now := s.now().UTC()
	cutoff := endOfDay(now)

	var expenses []models.RecurringExpense
	if err := scope.WithContext(ctx).
		Where("is_active = ? AND next_due_date <= ?", true, cutoff).
		Order("next_due_date ASC").
		Find(&expenses).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := &ProcessDueResult{Transactions: []models.Transaction{}}
	for i := range expenses {
		e := &expenses[i]
		txn, transition, err := s.materialize(ctx, e)
		switch {
		case errors.Is(err, errLostRace):
			continue
		case err != nil:
			result.Failures++
			logger.Named("recurring").Errorw("failed to process due expense",
				"error", err,
				"expense_id", e.ID,
				"user_id", e.UserID,
			)
			continue
		}

		result.Processed++
		result.Transactions = append(result.Transactions, *txn)
		metrics.RecurringTransitions.WithLabelValues("materialized").Inc()
		if transition.Deactivated() {
			result.Deactivated++
			metrics.RecurringTransitions.WithLabelValues("deactivated").Inc()
		}
	}

	logger.Named("recurring").Infow("processed due expenses",
		"due", len(expenses),
		"processed", result.Processed,
		"deactivated", result.Deactivated,
		"failures", result.Failures,
	)
	return result, nil
}

// materialize creates the transaction for e's current due date and rolls e
// forward in one store transaction. Losing the compare-and-set rolls the
// transaction back, so a due date is never materialized twice.
func (s *recurringExpenseService) materialize(ctx context.Context, e *models.RecurringExpense) (*models.Transaction, RecurrenceTransition, error) {
	transition := RollForward(e)
	dueDate := e.NextDueDate
	expenseID := e.ID

	txn := &models.Transaction{
		UserID:             e.UserID,
		CategoryID:         e.CategoryID,
		Type:               models.TransactionTypeExpense,
		Amount:             e.Amount,
		Description:        fmt.Sprintf("%s (Recurring)", e.Name),
		Date:               dueDate,
		RecurringExpenseID: &expenseID,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := persistTransition(tx, e, transition); err != nil {
			return err
		}
		return tx.Create(txn).Error
	})
	if err != nil {
		return nil, transition, err
	}
	return txn, transition, nil
}

// endOfDay returns the last nanosecond of t's calendar day.
func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 999999999, t.Location())
}
