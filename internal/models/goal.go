package models

import "time"

// GoalStatus represents the lifecycle state of a savings goal.
type GoalStatus string

const (
	GoalStatusActive    GoalStatus = "active"
	GoalStatusCompleted GoalStatus = "completed"
	GoalStatusPaused    GoalStatus = "paused"
	GoalStatusCancelled GoalStatus = "cancelled"
)

// Goal represents a savings target with a deadline.
type Goal struct {
	Base
	UserID              string     `gorm:"type:uuid;not null;index" json:"user_id"`
	Name                string     `gorm:"not null" json:"name"`
	Description         string     `json:"description"`
	TargetAmount        int64      `gorm:"type:bigint;not null" json:"target_amount"`
	CurrentAmount       int64      `gorm:"type:bigint;not null;default:0" json:"current_amount"`
	Deadline            time.Time  `gorm:"not null" json:"deadline"`
	Status              GoalStatus `gorm:"not null;default:'active';index" json:"status"`
	MonthlyContribution int64      `gorm:"type:bigint;not null;default:0" json:"monthly_contribution"`
	CompletedAt         *time.Time `json:"completed_at,omitempty"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}

// Reached reports whether the saved amount meets the target.
func (g *Goal) Reached() bool {
	return g.CurrentAmount >= g.TargetAmount
}
