package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"finwatch/internal/models"
)

var hundred = decimal.NewFromInt(100)

// metricAggregator derives budget, goal and recurring expense metrics.
type metricAggregator struct {
	db *gorm.DB
}

// NewMetricAggregator creates a new MetricAggregator.
func NewMetricAggregator(db *gorm.DB) MetricAggregator {
	return &metricAggregator{db: db}
}

// BudgetMetrics sums the owner's expense transactions in the budget's
// category with a date inside [StartDate, EndDate].
func (a *metricAggregator) BudgetMetrics(ctx context.Context, budget *models.Budget) (BudgetMetrics, error) {
	spent, err := budgetSpent(a.db.WithContext(ctx), budget)
	if err != nil {
		return BudgetMetrics{}, err
	}
	return BudgetMetrics{Spent: spent, Utilization: BudgetUtilization(spent, budget.Amount)}, nil
}

func (a *metricAggregator) GoalMetrics(goal *models.Goal, now time.Time) GoalMetrics {
	return GoalMetrics{
		Progress: GoalProgress(goal.CurrentAmount, goal.TargetAmount),
		DaysLeft: DaysUntil(goal.Deadline, now),
	}
}

func (a *metricAggregator) RecurringMetrics(expense *models.RecurringExpense, now time.Time) RecurringMetrics {
	return RecurringMetrics{DaysUntilDue: DaysUntil(expense.NextDueDate, now)}
}

func budgetSpent(db *gorm.DB, budget *models.Budget) (int64, error) {
	var spent int64
	err := db.Model(&models.Transaction{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("user_id = ? AND category_id = ? AND type = ? AND date BETWEEN ? AND ?",
			budget.UserID, budget.CategoryID, models.TransactionTypeExpense,
			budget.StartDate.UTC(), budget.EndDate.UTC()).
		Scan(&spent).Error
	return spent, err
}

// BudgetUtilization returns spent as a percentage of amount. A non-positive
// amount yields zero.
func BudgetUtilization(spent, amount int64) decimal.Decimal {
	if amount <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(spent).Mul(hundred).Div(decimal.NewFromInt(amount))
}

// GoalProgress returns min(current/target, 1) * 100. A non-positive target
// counts as fully reached.
func GoalProgress(current, target int64) decimal.Decimal {
	if target <= 0 {
		return hundred
	}
	p := decimal.NewFromInt(current).Mul(hundred).Div(decimal.NewFromInt(target))
	return decimal.Min(p, hundred)
}

// DaysUntil returns the number of days from now to t, rounded up. Past
// instants give zero or negative values.
func DaysUntil(t, now time.Time) int {
	const day = 24 * time.Hour
	d := t.Sub(now)
	days := int(d / day)
	if d%day > 0 {
		days++
	}
	return days
}
