package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"finwatch/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// Date returns midnight UTC of the given calendar day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// CreateTestUser creates a user with a hashed password, unique email and all
// notification preferences enabled.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	email := fmt.Sprintf("user%d@test.com", nextID())
	return CreateTestUserWithEmail(t, db, email)
}

// CreateTestUserWithEmail creates a user with the given email.
func CreateTestUserWithEmail(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Email:     email,
		Password:  string(hash),
		FirstName: "Test",
		IsActive:  true,
		Notifications: models.NotificationPreferences{
			Email:             true,
			BudgetAlerts:      true,
			GoalReminders:     true,
			RecurringExpenses: true,
		},
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// SetNotificationPreferences overwrites the user's preferences. GORM skips
// false values for columns with a default on create, so this runs as an update.
func SetNotificationPreferences(t *testing.T, db *gorm.DB, user *models.User, prefs models.NotificationPreferences) {
	t.Helper()

	err := db.Model(user).Updates(map[string]interface{}{
		"notify_email":              prefs.Email,
		"notify_budget_alerts":      prefs.BudgetAlerts,
		"notify_goal_reminders":     prefs.GoalReminders,
		"notify_recurring_expenses": prefs.RecurringExpenses,
	}).Error
	if err != nil {
		t.Fatalf("failed to update notification preferences: %v", err)
	}
	user.Notifications = prefs
}

// CreateTestCategory creates a category of the given type.
func CreateTestCategory(t *testing.T, db *gorm.DB, userID string, categoryType models.CategoryType) *models.Category {
	t.Helper()

	category := &models.Category{
		UserID: userID,
		Name:   fmt.Sprintf("Test Category %d", nextID()),
		Type:   categoryType,
	}
	if err := db.Create(category).Error; err != nil {
		t.Fatalf("failed to create test category: %v", err)
	}
	return category
}

// CreateTestTransaction creates a transaction in the given category.
func CreateTestTransaction(t *testing.T, db *gorm.DB, userID, categoryID string, txType models.TransactionType, amount int64, date time.Time) *models.Transaction {
	t.Helper()

	tx := &models.Transaction{
		UserID:      userID,
		CategoryID:  &categoryID,
		Type:        txType,
		Amount:      amount,
		Description: fmt.Sprintf("Test Transaction %d", nextID()),
		Date:        date.UTC(),
	}
	if err := db.Create(tx).Error; err != nil {
		t.Fatalf("failed to create test transaction: %v", err)
	}
	return tx
}

// CreateTestBudget creates an active monthly budget covering the month of at.
func CreateTestBudget(t *testing.T, db *gorm.DB, userID, categoryID string, amount int64, at time.Time) *models.Budget {
	t.Helper()

	start, end := models.PeriodWindow(models.BudgetPeriodMonthly, at.UTC())
	budget := &models.Budget{
		UserID:         userID,
		CategoryID:     categoryID,
		Name:           fmt.Sprintf("Test Budget %d", nextID()),
		Amount:         amount,
		Period:         models.BudgetPeriodMonthly,
		StartDate:      start,
		EndDate:        end,
		AlertThreshold: models.DefaultAlertThreshold,
		IsActive:       true,
	}
	if err := db.Create(budget).Error; err != nil {
		t.Fatalf("failed to create test budget: %v", err)
	}
	return budget
}

// CreateTestGoal creates an active goal.
func CreateTestGoal(t *testing.T, db *gorm.DB, userID string, target, current int64, deadline time.Time) *models.Goal {
	t.Helper()

	goal := &models.Goal{
		UserID:        userID,
		Name:          fmt.Sprintf("Test Goal %d", nextID()),
		TargetAmount:  target,
		CurrentAmount: current,
		Deadline:      deadline.UTC(),
		Status:        models.GoalStatusActive,
	}
	if err := db.Create(goal).Error; err != nil {
		t.Fatalf("failed to create test goal: %v", err)
	}
	return goal
}

// CreateTestRecurringExpense creates an active recurring expense whose
// next due date is nextDue. The start date is nextDue as well.
func CreateTestRecurringExpense(t *testing.T, db *gorm.DB, userID string, frequency models.Frequency, nextDue time.Time, endDate *time.Time) *models.RecurringExpense {
	t.Helper()

	expense := &models.RecurringExpense{
		UserID:      userID,
		Name:        fmt.Sprintf("Test Recurring %d", nextID()),
		Amount:      1500,
		Frequency:   frequency,
		StartDate:   nextDue.UTC(),
		EndDate:     endDate,
		NextDueDate: nextDue.UTC(),
		IsActive:    true,
	}
	if err := db.Create(expense).Error; err != nil {
		t.Fatalf("failed to create test recurring expense: %v", err)
	}
	return expense
}
