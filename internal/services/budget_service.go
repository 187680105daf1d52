package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	apperrors "finwatch/internal/errors"
	"finwatch/internal/models"
)

// budgetService exposes read-only budget progress and alert previews.
type budgetService struct {
	db         *gorm.DB
	aggregator MetricAggregator
}

// NewBudgetService creates a new BudgetServicer.
func NewBudgetService(db *gorm.DB, aggregator MetricAggregator) BudgetServicer {
	return &budgetService{db: db, aggregator: aggregator}
}

// GetBudgetByID returns a budget by ID if it belongs to the user.
func (s *budgetService) GetBudgetByID(ctx context.Context, userID, budgetID string) (*models.Budget, error) {
	var budget models.Budget
	if err := s.db.WithContext(ctx).Preload("Category").
		Where("id = ? AND user_id = ?", budgetID, userID).First(&budget).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrBudgetNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &budget, nil
}

// GetBudgetProgress calculates spending vs budget over the budget's window.
func (s *budgetService) GetBudgetProgress(ctx context.Context, userID, budgetID string) (*BudgetProgress, error) {
	budget, err := s.GetBudgetByID(ctx, userID, budgetID)
	if err != nil {
		return nil, err
	}

	m, err := s.aggregator.BudgetMetrics(ctx, budget)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return &BudgetProgress{
		BudgetID:   budget.ID,
		Budgeted:   budget.Amount,
		Spent:      m.Spent,
		Remaining:  budget.Amount - m.Spent,
		Percentage: m.Utilization.Round(2),
	}, nil
}

// GetBudgetAlerts evaluates the user's active budgets now and returns those
// at or above a notification tier. Nothing is persisted and notification
// preferences are not consulted.
func (s *budgetService) GetBudgetAlerts(ctx context.Context, userID string) ([]BudgetAlert, error) {
	var budgets []models.Budget
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("created_at ASC").
		Find(&budgets).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	alerts := []BudgetAlert{}
	for i := range budgets {
		b := &budgets[i]
		m, err := s.aggregator.BudgetMetrics(ctx, b)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		title, priority, ok := budgetTier(b, m.Utilization)
		if !ok {
			continue
		}
		alerts = append(alerts, BudgetAlert{
			BudgetID:   b.ID,
			BudgetName: b.Name,
			CategoryID: b.CategoryID,
			Spent:      m.Spent,
			Budget:     b.Amount,
			Percentage: m.Utilization.Round(1),
			Priority:   priority,
			Title:      title,
			Exceeded:   m.Utilization.GreaterThanOrEqual(budgetExceededTier),
		})
	}
	return alerts, nil
}
