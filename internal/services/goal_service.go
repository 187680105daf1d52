package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "finwatch/internal/errors"
	"finwatch/internal/logger"
	"finwatch/internal/models"
)

// goalService handles goal contributions.
type goalService struct {
	db            *gorm.DB
	notifications NotificationServicer
	now           Clock
}

// NewGoalService creates a new GoalServicer. notifications may be nil, in
// which case completing a goal raises no alert.
func NewGoalService(db *gorm.DB, notifications NotificationServicer, now Clock) GoalServicer {
	if now == nil {
		now = SystemClock
	}
	return &goalService{db: db, notifications: notifications, now: now}
}

// GetGoalByID returns a goal by ID if it belongs to the user.
func (s *goalService) GetGoalByID(ctx context.Context, userID, goalID string) (*models.Goal, error) {
	var goal models.Goal
	if err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", goalID, userID).First(&goal).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrGoalNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &goal, nil
}

// AddContribution adds amount to an active goal. Reaching the target
// completes the goal in the same update and raises a "Goal Achieved!"
// notification through the regular dedup path.
func (s *goalService) AddContribution(ctx context.Context, userID, goalID string, amount int64) (*models.Goal, error) {
	if amount <= 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Contribution must be positive")
	}

	now := s.now().UTC()
	var goal models.Goal
	var completed bool

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND user_id = ?", goalID, userID).First(&goal).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrGoalNotFound
			}
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if goal.Status != models.GoalStatusActive {
			return apperrors.ErrGoalNotActive
		}

		updates := map[string]interface{}{
			"current_amount": gorm.Expr("current_amount + ?", amount),
		}
		goal.CurrentAmount += amount
		if goal.Reached() {
			updates["status"] = models.GoalStatusCompleted
			updates["completed_at"] = now
			completed = true
		}

		res := tx.Model(&models.Goal{}).
			Where("id = ? AND status = ?", goal.ID, models.GoalStatusActive).
			Updates(updates)
		if res.Error != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, res.Error)
		}
		if res.RowsAffected != 1 {
			return apperrors.ErrGoalNotActive
		}
		if completed {
			goal.Status = models.GoalStatusCompleted
			goal.CompletedAt = &now
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if completed && s.notifications != nil {
		s.notifyCompleted(ctx, userID, &goal, now)
	}
	return &goal, nil
}

func (s *goalService) notifyCompleted(ctx context.Context, userID string, goal *models.Goal, now time.Time) {
	log := logger.Named("goals")

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		log.Warnw("goal completed for missing user", "error", err, "goal_id", goal.ID)
		return
	}
	if !user.Notifications.GoalReminders {
		return
	}

	c := goalAchieved(goal, GoalMetrics{
		Progress: GoalProgress(goal.CurrentAmount, goal.TargetAmount),
		DaysLeft: DaysUntil(goal.Deadline, now),
	})
	if _, _, err := s.notifications.Deliver(ctx, userID, c); err != nil {
		log.Errorw("failed to notify goal completion", "error", err, "goal_id", goal.ID)
	}
}
