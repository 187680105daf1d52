package services

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"finwatch/internal/models"
)

// RecurrenceState is the lifecycle state of a recurring expense. Inactive is
// terminal.
type RecurrenceState string

const (
	RecurrenceActive   RecurrenceState = "active"
	RecurrenceInactive RecurrenceState = "inactive"
)

// StateOf returns the recurrence state of e.
func StateOf(e *models.RecurringExpense) RecurrenceState {
	if e.IsActive {
		return RecurrenceActive
	}
	return RecurrenceInactive
}

// RecurrenceTransition describes one step of the rollover state machine.
// NextDueDate equals PreviousDueDate whenever the due date did not move.
type RecurrenceTransition struct {
	From            RecurrenceState
	To              RecurrenceState
	PreviousDueDate time.Time
	NextDueDate     time.Time
}

// Changed reports whether the transition needs to be persisted.
func (t RecurrenceTransition) Changed() bool {
	return t.From != t.To || !t.NextDueDate.Equal(t.PreviousDueDate)
}

// Advanced reports whether the due date rolled forward.
func (t RecurrenceTransition) Advanced() bool {
	return t.To == RecurrenceActive && !t.NextDueDate.Equal(t.PreviousDueDate)
}

// Deactivated reports whether the expense hit its end date.
func (t RecurrenceTransition) Deactivated() bool {
	return t.From == RecurrenceActive && t.To == RecurrenceInactive
}

// AdvanceRecurrence returns the transition for one scan at now. Only active
// expenses whose due date lies before the start of now's day move; anything
// due today or later is left for process-due. An expense due at 00:00 today
// is kept until tomorrow's first scan even though now is already past it.
func AdvanceRecurrence(e *models.RecurringExpense, now time.Time) RecurrenceTransition {
	if StateOf(e) != RecurrenceActive || !e.NextDueDate.Before(startOfDay(now)) {
		return stay(e)
	}
	return RollForward(e)
}

// RollForward steps an active expense by one frequency unit, or deactivates
// it when the next occurrence would fall after its end date. The due date is
// frozen in that case.
func RollForward(e *models.RecurringExpense) RecurrenceTransition {
	if StateOf(e) != RecurrenceActive {
		return stay(e)
	}
	next := NextOccurrence(e.NextDueDate, e.Frequency, anchorDay(e))
	if e.EndDate != nil && next.After(*e.EndDate) {
		return RecurrenceTransition{
			From:            RecurrenceActive,
			To:              RecurrenceInactive,
			PreviousDueDate: e.NextDueDate,
			NextDueDate:     e.NextDueDate,
		}
	}
	return RecurrenceTransition{
		From:            RecurrenceActive,
		To:              RecurrenceActive,
		PreviousDueDate: e.NextDueDate,
		NextDueDate:     next,
	}
}

func stay(e *models.RecurringExpense) RecurrenceTransition {
	s := StateOf(e)
	return RecurrenceTransition{From: s, To: s, PreviousDueDate: e.NextDueDate, NextDueDate: e.NextDueDate}
}

func anchorDay(e *models.RecurringExpense) int {
	if e.StartDate.IsZero() {
		return e.NextDueDate.Day()
	}
	return e.StartDate.Day()
}

// NextOccurrence returns the occurrence after from. Monthly and yearly steps
// land on anchor (the day of month the series started on), clamped to the
// last day of shorter months, so Jan 31 goes to Feb 28 and then Mar 31.
func NextOccurrence(from time.Time, frequency models.Frequency, anchor int) time.Time {
	switch frequency {
	case models.FrequencyDaily:
		return from.AddDate(0, 0, 1)
	case models.FrequencyWeekly:
		return from.AddDate(0, 0, 7)
	case models.FrequencyMonthly:
		return onDay(from.Year(), from.Month()+1, anchor, from)
	case models.FrequencyYearly:
		return onDay(from.Year()+1, from.Month(), anchor, from)
	}
	return from
}

// onDay builds year/month/day with the clock of ref, clamping day to the
// length of the month. Month overflow (13) normalizes into the next year.
func onDay(year int, month time.Month, day int, ref time.Time) time.Time {
	first := time.Date(year, month, 1, ref.Hour(), ref.Minute(), ref.Second(), ref.Nanosecond(), ref.Location())
	if last := daysIn(first.Year(), first.Month()); day > last {
		day = last
	}
	return first.AddDate(0, 0, day-1)
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// errLostRace means another writer advanced the expense first.
var errLostRace = errors.New("recurring expense changed concurrently")

// persistTransition writes t with a compare-and-set on the due date and
// active flag read earlier, so a concurrent advance is never overwritten.
// It returns errLostRace when no row matched.
func persistTransition(tx *gorm.DB, e *models.RecurringExpense, t RecurrenceTransition) error {
	res := tx.Model(&models.RecurringExpense{}).
		Where("id = ? AND next_due_date = ? AND is_active = ?", e.ID, t.PreviousDueDate, t.From == RecurrenceActive).
		Updates(map[string]interface{}{
			"next_due_date": t.NextDueDate,
			"is_active":     t.To == RecurrenceActive,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return errLostRace
	}
	e.NextDueDate = t.NextDueDate
	e.IsActive = t.To == RecurrenceActive
	return nil
}
