package services

import (
	"fmt"

	"github.com/shopspring/decimal"

	"finwatch/internal/models"
)

// Budget tiers, in percent of the budgeted amount.
var (
	budgetExceededTier = decimal.NewFromInt(100)
	budgetHighTier     = decimal.NewFromInt(90)
)

// Goal and recurring rule limits.
const (
	goalUrgentDays    = 7
	goalCheckDays     = 30
	recurringLeadDays = 3
)

var (
	goalUrgentProgress = decimal.NewFromInt(90)
	goalCheckProgress  = decimal.NewFromInt(50)
)

// Candidate is a notification the rules want to emit, before dedup.
type Candidate struct {
	Type     models.NotificationType
	Title    string
	Message  string
	Payload  models.NotificationPayload
	Priority models.NotificationPriority
}

// SubjectID is the id of the entity the candidate is about.
func (c *Candidate) SubjectID() string {
	if c.Payload == nil {
		return ""
	}
	return c.Payload.Subject()
}

// GoalTransition is the status change a goal evaluation asks for.
type GoalTransition struct {
	From models.GoalStatus
	To   models.GoalStatus
}

// Changed reports whether the transition moves the goal to a new status.
func (t GoalTransition) Changed() bool { return t.From != t.To }

// EvaluateBudget applies the budget tiers to m. The highest matching tier
// wins and each tier boundary belongs to the higher tier.
func EvaluateBudget(budget *models.Budget, prefs models.NotificationPreferences, m BudgetMetrics) *Candidate {
	if !budget.IsActive || !prefs.BudgetAlerts {
		return nil
	}

	title, priority, ok := budgetTier(budget, m.Utilization)
	if !ok {
		return nil
	}

	var message string
	if m.Utilization.GreaterThanOrEqual(budgetExceededTier) {
		message = fmt.Sprintf("You have exceeded your %s budget by %s%%",
			budget.Name, m.Utilization.Sub(budgetExceededTier).StringFixed(1))
	} else {
		message = fmt.Sprintf("You have used %s%% of your %s budget",
			m.Utilization.StringFixed(1), budget.Name)
	}

	return &Candidate{
		Type:     models.NotificationTypeBudgetAlert,
		Title:    title,
		Message:  message,
		Priority: priority,
		Payload: models.BudgetAlertPayload{
			BudgetID:        budget.ID,
			BudgetName:      budget.Name,
			BudgetAmount:    budget.Amount,
			Spent:           m.Spent,
			UtilizationRate: m.Utilization,
		},
	}
}

func budgetTier(budget *models.Budget, utilization decimal.Decimal) (string, models.NotificationPriority, bool) {
	threshold := decimal.NewFromFloat(budget.AlertThreshold)
	if budget.AlertThreshold <= 0 {
		threshold = decimal.NewFromInt(models.DefaultAlertThreshold)
	}

	switch {
	case utilization.GreaterThanOrEqual(budgetExceededTier):
		return "Budget Exceeded!", models.PriorityHigh, true
	case utilization.GreaterThanOrEqual(budgetHighTier):
		return "Budget Almost Exceeded", models.PriorityHigh, true
	case utilization.GreaterThanOrEqual(threshold):
		return "Budget Alert", models.PriorityMedium, true
	}
	return "", "", false
}

// EvaluateGoal applies the goal rules top-down, first match wins. Reaching
// the target also asks for the goal to move to completed.
func EvaluateGoal(goal *models.Goal, prefs models.NotificationPreferences, m GoalMetrics) (*Candidate, GoalTransition) {
	stay := GoalTransition{From: goal.Status, To: goal.Status}
	if goal.Status != models.GoalStatusActive || !prefs.GoalReminders {
		return nil, stay
	}

	c := goalCandidate(goal, m)
	progress := m.Progress.StringFixed(1)

	switch {
	case m.DaysLeft <= goalUrgentDays && m.Progress.LessThan(goalUrgentProgress):
		c.Title = "Goal Deadline Approaching"
		c.Message = fmt.Sprintf("Your goal %q is due in %s and is %s%% complete",
			goal.Name, pluralDays(m.DaysLeft), progress)
		c.Priority = models.PriorityHigh
		return c, stay
	case m.DaysLeft <= goalCheckDays && m.Progress.LessThan(goalCheckProgress):
		c.Title = "Goal Progress Check"
		c.Message = fmt.Sprintf("Your goal %q is %s%% complete with %s remaining",
			goal.Name, progress, pluralDays(m.DaysLeft))
		c.Priority = models.PriorityMedium
		return c, stay
	case m.Progress.GreaterThanOrEqual(hundred):
		return goalAchieved(goal, m), GoalTransition{From: goal.Status, To: models.GoalStatusCompleted}
	}
	return nil, stay
}

func goalCandidate(goal *models.Goal, m GoalMetrics) *Candidate {
	return &Candidate{
		Type: models.NotificationTypeGoalReminder,
		Payload: models.GoalReminderPayload{
			GoalID:            goal.ID,
			GoalName:          goal.Name,
			TargetAmount:      goal.TargetAmount,
			CurrentAmount:     goal.CurrentAmount,
			Progress:          m.Progress,
			DaysUntilDeadline: m.DaysLeft,
		},
	}
}

// goalAchieved builds the completion alert. Contributions reuse it when they
// push a goal over its target.
func goalAchieved(goal *models.Goal, m GoalMetrics) *Candidate {
	c := goalCandidate(goal, m)
	c.Title = "Goal Achieved!"
	c.Message = fmt.Sprintf("Congratulations! You've achieved your goal %q", goal.Name)
	c.Priority = models.PriorityHigh
	return c
}

// EvaluateRecurring fires for active expenses due within the next three
// days. Overdue expenses are left to the recurrence advancer.
func EvaluateRecurring(expense *models.RecurringExpense, prefs models.NotificationPreferences, m RecurringMetrics) *Candidate {
	if !expense.IsActive || !prefs.RecurringExpenses {
		return nil
	}
	days := m.DaysUntilDue
	if days < 0 || days > recurringLeadDays {
		return nil
	}

	title := "Recurring Expense Due Today"
	when := "today"
	priority := models.PriorityHigh
	if days > 0 {
		title = fmt.Sprintf("Recurring Expense Due in %d Days", days)
		if days == 1 {
			title = "Recurring Expense Due in 1 Day"
		}
		when = "in " + pluralDays(days)
		priority = models.PriorityMedium
	}

	message := fmt.Sprintf("%s (%s) - %s is due %s",
		expense.Name, expense.CategoryName(), FormatCents(expense.Amount), when)

	return &Candidate{
		Type:     models.NotificationTypeRecurringExpense,
		Title:    title,
		Message:  message,
		Priority: priority,
		Payload: models.RecurringExpensePayload{
			ExpenseID:    expense.ID,
			ExpenseName:  expense.Name,
			Amount:       expense.Amount,
			CategoryID:   expense.CategoryID,
			DueDate:      expense.NextDueDate,
			DaysUntilDue: days,
		},
	}
}

// FormatCents renders an amount in minor units as dollars, e.g. "$15.00".
func FormatCents(cents int64) string {
	return "$" + decimal.New(cents, -2).StringFixed(2)
}

func pluralDays(n int) string {
	if n == 1 || n == -1 {
		return fmt.Sprintf("%d day", n)
	}
	return fmt.Sprintf("%d days", n)
}
