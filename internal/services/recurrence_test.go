package services

import (
	"errors"
	"testing"
	"time"

	"finwatch/internal/models"
	"finwatch/internal/testutil"
)

func TestNextOccurrence(t *testing.T) {
	d := testutil.Date

	tests := []struct {
		name      string
		from      time.Time
		frequency models.Frequency
		anchor    int
		want      time.Time
	}{
		{"daily", d(2025, time.March, 15), models.FrequencyDaily, 15, d(2025, time.March, 16)},
		{"daily_month_end", d(2025, time.January, 31), models.FrequencyDaily, 31, d(2025, time.February, 1)},
		{"weekly", d(2025, time.March, 15), models.FrequencyWeekly, 15, d(2025, time.March, 22)},
		{"weekly_year_end", d(2024, time.December, 28), models.FrequencyWeekly, 28, d(2025, time.January, 4)},
		{"monthly", d(2025, time.March, 15), models.FrequencyMonthly, 15, d(2025, time.April, 15)},
		{"monthly_jan31_to_feb", d(2025, time.January, 31), models.FrequencyMonthly, 31, d(2025, time.February, 28)},
		{"monthly_jan31_leap_year", d(2024, time.January, 31), models.FrequencyMonthly, 31, d(2024, time.February, 29)},
		{"monthly_feb_back_to_anchor", d(2025, time.February, 28), models.FrequencyMonthly, 31, d(2025, time.March, 31)},
		{"monthly_to_30_day_month", d(2025, time.March, 31), models.FrequencyMonthly, 31, d(2025, time.April, 30)},
		{"monthly_december", d(2025, time.December, 15), models.FrequencyMonthly, 15, d(2026, time.January, 15)},
		{"yearly", d(2025, time.March, 15), models.FrequencyYearly, 15, d(2026, time.March, 15)},
		{"yearly_leap_day", d(2024, time.February, 29), models.FrequencyYearly, 29, d(2025, time.February, 28)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextOccurrence(tt.from, tt.frequency, tt.anchor)
			if !got.Equal(tt.want) {
				t.Errorf("expected %s, got %s", tt.want.Format(time.DateOnly), got.Format(time.DateOnly))
			}
		})
	}

	t.Run("keeps_time_of_day", func(t *testing.T) {
		from := time.Date(2025, time.January, 31, 9, 30, 0, 0, time.UTC)
		got := NextOccurrence(from, models.FrequencyMonthly, 31)
		want := time.Date(2025, time.February, 28, 9, 30, 0, 0, time.UTC)
		if !got.Equal(want) {
			t.Errorf("expected %s, got %s", want, got)
		}
	})
}

func TestRollForward_MonthEndSeries(t *testing.T) {
	e := &models.RecurringExpense{
		Frequency:   models.FrequencyMonthly,
		StartDate:   testutil.Date(2025, time.January, 31),
		NextDueDate: testutil.Date(2025, time.January, 31),
		IsActive:    true,
	}

	want := []time.Time{
		testutil.Date(2025, time.February, 28),
		testutil.Date(2025, time.March, 31),
		testutil.Date(2025, time.April, 30),
		testutil.Date(2025, time.May, 31),
	}
	for _, w := range want {
		transition := RollForward(e)
		if !transition.Advanced() {
			t.Fatalf("expected advance, got %+v", transition)
		}
		if !transition.NextDueDate.Equal(w) {
			t.Fatalf("expected %s, got %s", w.Format(time.DateOnly), transition.NextDueDate.Format(time.DateOnly))
		}
		e.NextDueDate = transition.NextDueDate
	}
}

func TestAdvanceRecurrence(t *testing.T) {
	now := testNow // 2025-03-15 12:00 UTC

	t.Run("overdue_rolls_forward_one_step", func(t *testing.T) {
		e := &models.RecurringExpense{
			Frequency:   models.FrequencyWeekly,
			NextDueDate: testutil.Date(2025, time.March, 1),
			IsActive:    true,
		}
		transition := AdvanceRecurrence(e, now)
		if !transition.Advanced() || transition.Deactivated() {
			t.Fatalf("expected advance, got %+v", transition)
		}
		if !transition.NextDueDate.Equal(testutil.Date(2025, time.March, 8)) {
			t.Errorf("expected Mar 8, got %s", transition.NextDueDate)
		}
		if !e.NextDueDate.Equal(testutil.Date(2025, time.March, 1)) {
			t.Error("AdvanceRecurrence must not mutate the expense")
		}
	})

	t.Run("due_yesterday_moves", func(t *testing.T) {
		e := &models.RecurringExpense{
			Frequency:   models.FrequencyDaily,
			NextDueDate: time.Date(2025, time.March, 14, 23, 59, 0, 0, time.UTC),
			IsActive:    true,
		}
		if !AdvanceRecurrence(e, now).Advanced() {
			t.Error("expected due date before today to advance")
		}
	})

	t.Run("due_today_untouched", func(t *testing.T) {
		for _, due := range []time.Time{testutil.Date(2025, time.March, 15), now, now.Add(6 * time.Hour)} {
			e := &models.RecurringExpense{Frequency: models.FrequencyDaily, NextDueDate: due, IsActive: true}
			if transition := AdvanceRecurrence(e, now); transition.Changed() {
				t.Errorf("due %s: expected no change, got %+v", due, transition)
			}
		}
	})

	t.Run("due_at_midnight_kept_until_next_day", func(t *testing.T) {
		e := &models.RecurringExpense{
			Frequency:   models.FrequencyDaily,
			NextDueDate: testutil.Date(2025, time.March, 15),
			IsActive:    true,
		}
		if AdvanceRecurrence(e, time.Date(2025, time.March, 15, 23, 59, 59, 0, time.UTC)).Changed() {
			t.Error("expected expense due at midnight to stay for the rest of its day")
		}
		transition := AdvanceRecurrence(e, time.Date(2025, time.March, 16, 0, 0, 1, 0, time.UTC))
		if !transition.NextDueDate.Equal(testutil.Date(2025, time.March, 16)) {
			t.Errorf("expected Mar 16 on the next day, got %s", transition.NextDueDate)
		}
	})

	t.Run("future_untouched", func(t *testing.T) {
		e := &models.RecurringExpense{
			Frequency:   models.FrequencyWeekly,
			NextDueDate: testutil.Date(2025, time.March, 17),
			IsActive:    true,
		}
		if transition := AdvanceRecurrence(e, now); transition.Changed() {
			t.Errorf("expected no change, got %+v", transition)
		}
	})

	t.Run("end_date_freezes_and_deactivates", func(t *testing.T) {
		end := testutil.Date(2025, time.March, 5)
		e := &models.RecurringExpense{
			Frequency:   models.FrequencyWeekly,
			NextDueDate: testutil.Date(2025, time.March, 1),
			EndDate:     &end,
			IsActive:    true,
		}
		transition := AdvanceRecurrence(e, now)
		if !transition.Deactivated() {
			t.Fatalf("expected deactivation, got %+v", transition)
		}
		if transition.Advanced() {
			t.Error("deactivation must not advance")
		}
		if !transition.NextDueDate.Equal(testutil.Date(2025, time.March, 1)) {
			t.Errorf("expected frozen due date, got %s", transition.NextDueDate)
		}
	})

	t.Run("end_date_equal_to_candidate_still_advances", func(t *testing.T) {
		end := testutil.Date(2025, time.March, 8)
		e := &models.RecurringExpense{
			Frequency:   models.FrequencyWeekly,
			NextDueDate: testutil.Date(2025, time.March, 1),
			EndDate:     &end,
			IsActive:    true,
		}
		if transition := AdvanceRecurrence(e, now); !transition.Advanced() {
			t.Errorf("expected advance onto the end date, got %+v", transition)
		}
	})

	t.Run("inactive_is_terminal", func(t *testing.T) {
		e := &models.RecurringExpense{
			Frequency:   models.FrequencyWeekly,
			NextDueDate: testutil.Date(2025, time.January, 1),
			IsActive:    false,
		}
		if transition := AdvanceRecurrence(e, now); transition.Changed() || transition.From != RecurrenceInactive {
			t.Errorf("expected inactive to stay, got %+v", transition)
		}
		if transition := RollForward(e); transition.Changed() {
			t.Errorf("RollForward on inactive expense changed it: %+v", transition)
		}
	})
}

func TestPersistTransition(t *testing.T) {
	t.Run("writes_and_updates_expense", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		user := testutil.CreateTestUser(t, db)
		e := testutil.CreateTestRecurringExpense(t, db, user.ID, models.FrequencyWeekly, testutil.Date(2025, time.March, 1), nil)

		transition := RollForward(e)
		testutil.AssertNoError(t, persistTransition(db, e, transition))

		var stored models.RecurringExpense
		testutil.AssertNoError(t, db.First(&stored, "id = ?", e.ID).Error)
		if !stored.NextDueDate.Equal(testutil.Date(2025, time.March, 8)) || !stored.IsActive {
			t.Errorf("unexpected stored expense %+v", stored)
		}
		if !e.NextDueDate.Equal(stored.NextDueDate) {
			t.Error("expected in-memory expense to be updated")
		}
	})

	t.Run("stale_read_loses_race", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		user := testutil.CreateTestUser(t, db)
		e := testutil.CreateTestRecurringExpense(t, db, user.ID, models.FrequencyWeekly, testutil.Date(2025, time.March, 1), nil)
		stale := *e

		testutil.AssertNoError(t, persistTransition(db, e, RollForward(e)))

		err := persistTransition(db, &stale, RollForward(&stale))
		if !errors.Is(err, errLostRace) {
			t.Fatalf("expected errLostRace, got %v", err)
		}

		var stored models.RecurringExpense
		testutil.AssertNoError(t, db.First(&stored, "id = ?", e.ID).Error)
		if !stored.NextDueDate.Equal(testutil.Date(2025, time.March, 8)) {
			t.Errorf("expected due date advanced once, got %s", stored.NextDueDate)
		}
	})
}
