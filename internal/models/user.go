package models

// NotificationPreferences holds the per-user switches consulted before any
// alert is raised. All channels default to enabled.
type NotificationPreferences struct {
	Email             bool `gorm:"default:true" json:"email"`
	BudgetAlerts      bool `gorm:"default:true" json:"budget_alerts"`
	GoalReminders     bool `gorm:"default:true" json:"goal_reminders"`
	RecurringExpenses bool `gorm:"default:true" json:"recurring_expenses"`
}

// Allows reports whether the user wants notifications of the given type.
func (p NotificationPreferences) Allows(t NotificationType) bool {
	switch t {
	case NotificationTypeBudgetAlert:
		return p.BudgetAlerts
	case NotificationTypeGoalReminder:
		return p.GoalReminders
	case NotificationTypeRecurringExpense:
		return p.RecurringExpenses
	}
	return false
}

// User represents the user model in the database
type User struct {
	Base
	Email         string                  `gorm:"uniqueIndex;not null" json:"email"`
	Password      string                  `gorm:"not null" json:"-"`
	FirstName     string                  `json:"first_name"`
	LastName      string                  `json:"last_name"`
	IsActive      bool                    `gorm:"default:true" json:"is_active"`
	Notifications NotificationPreferences `gorm:"embedded;embeddedPrefix:notify_" json:"notifications"`
}

// DisplayName returns the first name when set, falling back to the email.
func (u *User) DisplayName() string {
	if u.FirstName != "" {
		return u.FirstName
	}
	return u.Email
}
