package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"finwatch/internal/models"
	"finwatch/internal/pagination"
)

// Clock returns the current time. Services take one so tests can pin "now".
type Clock func() time.Time

// SystemClock is the wall clock in UTC.
func SystemClock() time.Time { return time.Now().UTC() }

// BudgetMetrics is the derived spend state of a budget.
type BudgetMetrics struct {
	Spent       int64
	Utilization decimal.Decimal
}

// GoalMetrics is the derived progress state of a goal.
type GoalMetrics struct {
	Progress decimal.Decimal
	DaysLeft int
}

// RecurringMetrics is the derived due state of a recurring expense.
type RecurringMetrics struct {
	DaysUntilDue int
}

// MetricAggregator computes derived quantities from stored entities. It only
// reads, and never aggregates across users.
type MetricAggregator interface {
	BudgetMetrics(ctx context.Context, budget *models.Budget) (BudgetMetrics, error)
	GoalMetrics(goal *models.Goal, now time.Time) GoalMetrics
	RecurringMetrics(expense *models.RecurringExpense, now time.Time) RecurringMetrics
}

// NotificationFilter narrows a notification listing.
type NotificationFilter struct {
	UnreadOnly bool
	Type       *models.NotificationType
}

// NotificationPage is one page of notifications plus the user's total unread count.
type NotificationPage struct {
	pagination.PageResponse[models.Notification]
	UnreadCount int64 `json:"unread_count"`
}

// DeliveryOutcome is what happened to a candidate notification.
type DeliveryOutcome string

const (
	DeliveryCreated    DeliveryOutcome = "created"
	DeliverySuppressed DeliveryOutcome = "suppressed"
	DeliverySkipped    DeliveryOutcome = "skipped"
)

// NotificationServicer persists notifications and exposes them to their owner.
type NotificationServicer interface {
	// CreateNotification persists a notification. It never fails the caller:
	// errors are logged and nil is returned.
	CreateNotification(ctx context.Context, userID string, notificationType models.NotificationType, title, message string, payload models.NotificationPayload, priority models.NotificationPriority) *models.Notification
	// Deliver persists c unless an equivalent notification exists inside the
	// dedup window. The check and the insert share one transaction.
	Deliver(ctx context.Context, userID string, c *Candidate) (*models.Notification, DeliveryOutcome, error)
	ListNotifications(ctx context.Context, userID string, page pagination.PageRequest, filter NotificationFilter) (*NotificationPage, error)
	MarkRead(ctx context.Context, userID, notificationID string) (*models.Notification, error)
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	DeleteNotification(ctx context.Context, userID, notificationID string) error
}

// BudgetProgress contains spending vs budget data for a budget's period.
type BudgetProgress struct {
	BudgetID   string          `json:"budget_id"`
	Budgeted   int64           `json:"budgeted"`
	Spent      int64           `json:"spent"`
	Remaining  int64           `json:"remaining"`
	Percentage decimal.Decimal `json:"percentage"`
}

// BudgetAlert is a budget whose utilization currently meets a notification
// tier. It is computed on read and never stored.
type BudgetAlert struct {
	BudgetID   string                      `json:"budget_id"`
	BudgetName string                      `json:"budget_name"`
	CategoryID string                      `json:"category_id"`
	Spent      int64                       `json:"spent"`
	Budget     int64                       `json:"budget"`
	Percentage decimal.Decimal             `json:"percentage"`
	Priority   models.NotificationPriority `json:"priority"`
	Title      string                      `json:"title"`
	Exceeded   bool                        `json:"exceeded"`
}

// BudgetServicer defines the contract for budget-related business logic.
type BudgetServicer interface {
	GetBudgetByID(ctx context.Context, userID, budgetID string) (*models.Budget, error)
	GetBudgetProgress(ctx context.Context, userID, budgetID string) (*BudgetProgress, error)
	GetBudgetAlerts(ctx context.Context, userID string) ([]BudgetAlert, error)
}

// GoalServicer defines the contract for goal-related business logic.
type GoalServicer interface {
	GetGoalByID(ctx context.Context, userID, goalID string) (*models.Goal, error)
	AddContribution(ctx context.Context, userID, goalID string, amount int64) (*models.Goal, error)
}

// ProcessDueResult summarizes one process-due batch.
type ProcessDueResult struct {
	Processed    int                  `json:"processed"`
	Deactivated  int                  `json:"deactivated"`
	Failures     int                  `json:"failures"`
	Transactions []models.Transaction `json:"transactions"`
}

// RecurringExpenseServicer materializes due recurring expenses.
type RecurringExpenseServicer interface {
	ProcessDue(ctx context.Context, userID string) (*ProcessDueResult, error)
	ProcessAllDue(ctx context.Context) (*ProcessDueResult, error)
}

// SweepKind names one of the scheduled scans.
type SweepKind string

const (
	SweepBudget    SweepKind = "budget"
	SweepGoal      SweepKind = "goal"
	SweepRecurring SweepKind = "recurring"
)

// SweepKinds lists every sweep in a stable order.
var SweepKinds = []SweepKind{SweepBudget, SweepGoal, SweepRecurring}

// Valid reports whether k names a known sweep.
func (k SweepKind) Valid() bool {
	switch k {
	case SweepBudget, SweepGoal, SweepRecurring:
		return true
	}
	return false
}

// SweepResult summarizes one full pass over every entity of a kind.
type SweepResult struct {
	Kind        SweepKind     `json:"kind"`
	Evaluated   int           `json:"evaluated"`
	Notified    int           `json:"notified"`
	Suppressed  int           `json:"suppressed"`
	Advanced    int           `json:"advanced"`
	Deactivated int           `json:"deactivated"`
	Completed   int           `json:"completed"`
	Failures    int           `json:"failures"`
	Duration    time.Duration `json:"duration"`
}

// MonitorServicer runs the monitoring sweeps.
type MonitorServicer interface {
	RunBudgetSweep(ctx context.Context) (*SweepResult, error)
	RunGoalSweep(ctx context.Context) (*SweepResult, error)
	RunRecurringSweep(ctx context.Context) (*SweepResult, error)
	Run(ctx context.Context, kind SweepKind) (*SweepResult, error)
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(userID, action, resourceType, resourceID, ipAddress string, changes map[string]interface{})
}
