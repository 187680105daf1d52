package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// NotificationPayload is the structured snapshot attached to a notification.
// Each notification type has exactly one payload variant.
type NotificationPayload interface {
	// NotificationType is the type this payload belongs to.
	NotificationType() NotificationType
	// Subject is the id of the entity the notification is about. It is the
	// dedup key, never the message text.
	Subject() string
}

// BudgetAlertPayload accompanies budget_alert notifications.
type BudgetAlertPayload struct {
	BudgetID        string          `json:"budget_id"`
	BudgetName      string          `json:"budget_name"`
	BudgetAmount    int64           `json:"budget_amount"`
	Spent           int64           `json:"spent"`
	UtilizationRate decimal.Decimal `json:"utilization_rate"`
}

func (BudgetAlertPayload) NotificationType() NotificationType { return NotificationTypeBudgetAlert }
func (p BudgetAlertPayload) Subject() string                  { return p.BudgetID }

// GoalReminderPayload accompanies goal_reminder notifications.
type GoalReminderPayload struct {
	GoalID            string          `json:"goal_id"`
	GoalName          string          `json:"goal_name"`
	TargetAmount      int64           `json:"target_amount"`
	CurrentAmount     int64           `json:"current_amount"`
	Progress          decimal.Decimal `json:"progress"`
	DaysUntilDeadline int             `json:"days_until_deadline"`
}

func (GoalReminderPayload) NotificationType() NotificationType { return NotificationTypeGoalReminder }
func (p GoalReminderPayload) Subject() string                  { return p.GoalID }

// RecurringExpensePayload accompanies recurring_expense notifications.
type RecurringExpensePayload struct {
	ExpenseID    string    `json:"expense_id"`
	ExpenseName  string    `json:"expense_name"`
	Amount       int64     `json:"amount"`
	CategoryID   *string   `json:"category_id,omitempty"`
	DueDate      time.Time `json:"due_date"`
	DaysUntilDue int       `json:"days_until_due"`
}

func (RecurringExpensePayload) NotificationType() NotificationType {
	return NotificationTypeRecurringExpense
}
func (p RecurringExpensePayload) Subject() string { return p.ExpenseID }

// EncodePayload serializes a payload for storage.
func EncodePayload(p NotificationPayload) (RawPayload, error) {
	if p == nil {
		return nil, nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return RawPayload(data), nil
}

// DecodePayload parses raw into the payload variant for t.
func DecodePayload(t NotificationType, raw RawPayload) (NotificationPayload, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	switch t {
	case NotificationTypeBudgetAlert:
		var p BudgetAlertPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case NotificationTypeGoalReminder:
		var p GoalReminderPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case NotificationTypeRecurringExpense:
		var p RecurringExpensePayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	}
	return nil, fmt.Errorf("unknown notification type %q", t)
}
