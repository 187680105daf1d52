package models

import "time"

// Frequency is the calendar step between two occurrences of a recurring expense.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
	FrequencyYearly  Frequency = "yearly"
)

// Valid reports whether f is one of the supported frequencies.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyYearly:
		return true
	}
	return false
}

// RecurringExpense is a bill that repeats on a fixed calendar cadence.
// NextDueDate is the next point at which a transaction is materialized.
type RecurringExpense struct {
	Base
	UserID      string     `gorm:"type:uuid;not null;index" json:"user_id"`
	Name        string     `gorm:"not null" json:"name"`
	Description string     `json:"description"`
	Amount      int64      `gorm:"type:bigint;not null" json:"amount"`
	CategoryID  *string    `gorm:"type:uuid" json:"category_id,omitempty"`
	Frequency   Frequency  `gorm:"not null" json:"frequency"`
	StartDate   time.Time  `gorm:"not null" json:"start_date"`
	EndDate     *time.Time `json:"end_date,omitempty"`
	NextDueDate time.Time  `gorm:"not null;index" json:"next_due_date"`
	IsActive    bool       `gorm:"default:true" json:"is_active"`

	User     User      `gorm:"foreignKey:UserID" json:"-"`
	Category *Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
}

// CategoryName returns the linked category's name or "Uncategorized".
func (e *RecurringExpense) CategoryName() string {
	if e.Category != nil && e.Category.Name != "" {
		return e.Category.Name
	}
	return "Uncategorized"
}
