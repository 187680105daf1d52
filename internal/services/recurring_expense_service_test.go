package services

import (
	"testing"
	"time"

	"finwatch/internal/models"
	"finwatch/internal/testutil"
)

func TestProcessDue(t *testing.T) {
	t.Run("materializes_due_and_overdue", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewRecurringExpenseService(db, fixedClock(testNow))
		user := testutil.CreateTestUser(t, db)
		overdue := testutil.CreateTestRecurringExpense(t, db, user.ID, models.FrequencyMonthly, testutil.Date(2025, time.March, 1), nil)
		today := testutil.CreateTestRecurringExpense(t, db, user.ID, models.FrequencyWeekly, time.Date(2025, time.March, 15, 20, 0, 0, 0, time.UTC), nil)
		testutil.CreateTestRecurringExpense(t, db, user.ID, models.FrequencyWeekly, testutil.Date(2025, time.March, 16), nil)

		result, err := svc.ProcessDue(t.Context(), user.ID)
		testutil.AssertNoError(t, err)
		if result.Processed != 2 || result.Failures != 0 {
			t.Fatalf("unexpected result %+v", result)
		}

		first := result.Transactions[0]
		if first.Description != overdue.Name+" (Recurring)" {
			t.Errorf("unexpected description %q", first.Description)
		}
		if first.Type != models.TransactionTypeExpense || first.Amount != 1500 {
			t.Errorf("unexpected transaction %+v", first)
		}
		if !first.Date.Equal(testutil.Date(2025, time.March, 1)) {
			t.Errorf("expected transaction dated at the due date, got %s", first.Date)
		}
		if first.RecurringExpenseID == nil || *first.RecurringExpenseID != overdue.ID {
			t.Errorf("expected link to expense %s", overdue.ID)
		}

		var storedOverdue models.RecurringExpense
		testutil.AssertNoError(t, db.First(&storedOverdue, "id = ?", overdue.ID).Error)
		if !storedOverdue.NextDueDate.Equal(testutil.Date(2025, time.April, 1)) {
			t.Errorf("expected overdue expense rolled to Apr 1, got %s", storedOverdue.NextDueDate)
		}
		var storedToday models.RecurringExpense
		testutil.AssertNoError(t, db.First(&storedToday, "id = ?", today.ID).Error)
		if !storedToday.NextDueDate.Equal(time.Date(2025, time.March, 22, 20, 0, 0, 0, time.UTC)) {
			t.Errorf("expected today's expense rolled to Mar 22, got %s", storedToday.NextDueDate)
		}
	})

	t.Run("idempotent_per_due_date", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewRecurringExpenseService(db, fixedClock(testNow))
		user := testutil.CreateTestUser(t, db)
		expense := testutil.CreateTestRecurringExpense(t, db, user.ID, models.FrequencyMonthly, testutil.Date(2025, time.March, 10), nil)

		result, err := svc.ProcessDue(t.Context(), user.ID)
		testutil.AssertNoError(t, err)
		if result.Processed != 1 {
			t.Fatalf("expected 1 processed, got %+v", result)
		}

		result, err = svc.ProcessDue(t.Context(), user.ID)
		testutil.AssertNoError(t, err)
		if result.Processed != 0 {
			t.Fatalf("expected nothing left to process, got %+v", result)
		}

		var count int64
		testutil.AssertNoError(t, db.Model(&models.Transaction{}).
			Where("recurring_expense_id = ?", expense.ID).Count(&count).Error)
		if count != 1 {
			t.Errorf("expected exactly 1 transaction, got %d", count)
		}
	})

	t.Run("duplicate_due_date_rolls_back", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewRecurringExpenseService(db, fixedClock(testNow))
		user := testutil.CreateTestUser(t, db)
		due := testutil.Date(2025, time.March, 10)
		expense := testutil.CreateTestRecurringExpense(t, db, user.ID, models.FrequencyMonthly, due, nil)
		expenseID := expense.ID
		testutil.AssertNoError(t, db.Create(&models.Transaction{
			UserID:             user.ID,
			Type:               models.TransactionTypeExpense,
			Amount:             1500,
			Date:               due,
			RecurringExpenseID: &expenseID,
		}).Error)

		result, err := svc.ProcessDue(t.Context(), user.ID)
		testutil.AssertNoError(t, err)
		if result.Processed != 0 || result.Failures != 1 {
			t.Fatalf("expected a failure, got %+v", result)
		}

		var stored models.RecurringExpense
		testutil.AssertNoError(t, db.First(&stored, "id = ?", expense.ID).Error)
		if !stored.NextDueDate.Equal(due) {
			t.Errorf("expected due date rolled back to %s, got %s", due, stored.NextDueDate)
		}
	})

	t.Run("last_occurrence_deactivates", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewRecurringExpenseService(db, fixedClock(testNow))
		user := testutil.CreateTestUser(t, db)
		end := testutil.Date(2025, time.March, 20)
		expense := testutil.CreateTestRecurringExpense(t, db, user.ID, models.FrequencyMonthly, testutil.Date(2025, time.March, 15), &end)

		result, err := svc.ProcessDue(t.Context(), user.ID)
		testutil.AssertNoError(t, err)
		if result.Processed != 1 || result.Deactivated != 1 {
			t.Fatalf("unexpected result %+v", result)
		}

		var stored models.RecurringExpense
		testutil.AssertNoError(t, db.First(&stored, "id = ?", expense.ID).Error)
		if stored.IsActive {
			t.Error("expected expense to be inactive")
		}
	})

	t.Run("scoped_to_user", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewRecurringExpenseService(db, fixedClock(testNow))
		user := testutil.CreateTestUser(t, db)
		other := testutil.CreateTestUser(t, db)
		testutil.CreateTestRecurringExpense(t, db, other.ID, models.FrequencyWeekly, testutil.Date(2025, time.March, 10), nil)

		result, err := svc.ProcessDue(t.Context(), user.ID)
		testutil.AssertNoError(t, err)
		if result.Processed != 0 {
			t.Errorf("expected other user's expense untouched, got %+v", result)
		}
	})
}

func TestProcessAllDue(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewRecurringExpenseService(db, fixedClock(testNow))
	u1 := testutil.CreateTestUser(t, db)
	u2 := testutil.CreateTestUser(t, db)
	testutil.CreateTestRecurringExpense(t, db, u1.ID, models.FrequencyWeekly, testutil.Date(2025, time.March, 10), nil)
	testutil.CreateTestRecurringExpense(t, db, u2.ID, models.FrequencyDaily, testutil.Date(2025, time.March, 15), nil)
	inactive := testutil.CreateTestRecurringExpense(t, db, u2.ID, models.FrequencyDaily, testutil.Date(2025, time.March, 1), nil)
	testutil.AssertNoError(t, db.Model(inactive).Update("is_active", false).Error)

	result, err := svc.ProcessAllDue(t.Context())
	testutil.AssertNoError(t, err)
	if result.Processed != 2 {
		t.Errorf("expected 2 processed across users, got %+v", result)
	}
}
