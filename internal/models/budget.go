package models

import (
	"time"

	"gorm.io/gorm"
)

// BudgetPeriod represents the period type for a budget
type BudgetPeriod string

const (
	BudgetPeriodMonthly BudgetPeriod = "monthly"
	BudgetPeriodYearly  BudgetPeriod = "yearly"
)

// DefaultAlertThreshold is the utilization percentage at which a budget
// starts raising medium priority alerts.
const DefaultAlertThreshold = 80

// Budget represents a spending cap for one category over a fixed period.
// Spent is never stored; it is recomputed from transactions on demand.
type Budget struct {
	Base
	UserID         string       `gorm:"type:uuid;not null;index" json:"user_id"`
	CategoryID     string       `gorm:"type:uuid;not null" json:"category_id"`
	Name           string       `gorm:"not null" json:"name"`
	Amount         int64        `gorm:"type:bigint;not null" json:"amount"`
	Period         BudgetPeriod `gorm:"not null" json:"period"`
	StartDate      time.Time    `gorm:"not null" json:"start_date"`
	EndDate        time.Time    `gorm:"not null" json:"end_date"`
	AlertThreshold float64      `gorm:"not null;default:80" json:"alert_threshold"`
	IsActive       bool         `gorm:"default:true" json:"is_active"`

	// Relationships
	User     User     `gorm:"foreignKey:UserID" json:"-"`
	Category Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
}

// BeforeCreate fills the period window and alert threshold when the caller
// left them unset.
func (b *Budget) BeforeCreate(tx *gorm.DB) error {
	if err := b.Base.BeforeCreate(tx); err != nil {
		return err
	}
	if b.StartDate.IsZero() || b.EndDate.IsZero() {
		at := b.CreatedAt
		if at.IsZero() {
			at = time.Now().UTC()
		}
		b.StartDate, b.EndDate = PeriodWindow(b.Period, at)
	}
	if b.AlertThreshold <= 0 {
		b.AlertThreshold = DefaultAlertThreshold
	}
	return nil
}

// PeriodWindow returns the inclusive [start, end] range of the calendar month
// or year containing at. End is the last nanosecond of the final day.
func PeriodWindow(period BudgetPeriod, at time.Time) (time.Time, time.Time) {
	loc := at.Location()
	switch period {
	case BudgetPeriodYearly:
		start := time.Date(at.Year(), time.January, 1, 0, 0, 0, 0, loc)
		end := time.Date(at.Year(), time.December, 31, 23, 59, 59, 999999999, loc)
		return start, end
	default:
		start := time.Date(at.Year(), at.Month(), 1, 0, 0, 0, 0, loc)
		last := start.AddDate(0, 1, -1)
		end := time.Date(last.Year(), last.Month(), last.Day(), 23, 59, 59, 999999999, loc)
		return start, end
	}
}
