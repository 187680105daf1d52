package models

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// NotificationType identifies which rule produced a notification.
type NotificationType string

const (
	NotificationTypeBudgetAlert      NotificationType = "budget_alert"
	NotificationTypeGoalReminder     NotificationType = "goal_reminder"
	NotificationTypeRecurringExpense NotificationType = "recurring_expense"
)

// DedupWindow is how long a notification of this type suppresses repeats
// for the same subject.
func (t NotificationType) DedupWindow() time.Duration {
	switch t {
	case NotificationTypeGoalReminder:
		return 7 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// Valid reports whether t is a known notification type.
func (t NotificationType) Valid() bool {
	switch t {
	case NotificationTypeBudgetAlert, NotificationTypeGoalReminder, NotificationTypeRecurringExpense:
		return true
	}
	return false
}

// NotificationPriority ranks how prominently a notification is shown.
type NotificationPriority string

const (
	PriorityLow    NotificationPriority = "low"
	PriorityMedium NotificationPriority = "medium"
	PriorityHigh   NotificationPriority = "high"
)

// Notification is an alert delivered to a user. Everything except Read is
// immutable after creation.
type Notification struct {
	Base
	UserID    string               `gorm:"type:uuid;not null;index:idx_notifications_subject,priority:1" json:"user_id"`
	Type      NotificationType     `gorm:"not null;index:idx_notifications_subject,priority:2" json:"type"`
	SubjectID string               `gorm:"not null;index:idx_notifications_subject,priority:3" json:"subject_id"`
	Title     string               `gorm:"not null" json:"title"`
	Message   string               `gorm:"not null" json:"message"`
	Data      RawPayload           `gorm:"type:text" json:"data"`
	Priority  NotificationPriority `gorm:"not null;default:'medium'" json:"priority"`
	Read      bool                 `gorm:"not null;default:false" json:"read"`
}

// Payload decodes Data into the variant matching the notification's type.
func (n *Notification) Payload() (NotificationPayload, error) {
	return DecodePayload(n.Type, n.Data)
}

// RawPayload is the stored JSON encoding of a NotificationPayload.
type RawPayload []byte

// Value implements driver.Valuer.
func (r RawPayload) Value() (driver.Value, error) {
	if len(r) == 0 {
		return nil, nil
	}
	return string(r), nil
}

// Scan implements sql.Scanner.
func (r *RawPayload) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*r = nil
	case string:
		*r = RawPayload(v)
	case []byte:
		*r = append(RawPayload(nil), v...)
	default:
		return fmt.Errorf("unsupported payload column type %T", src)
	}
	return nil
}

// MarshalJSON emits the stored document as-is.
func (r RawPayload) MarshalJSON() ([]byte, error) {
	if len(r) == 0 {
		return []byte("null"), nil
	}
	return r, nil
}

// UnmarshalJSON keeps a copy of the raw document.
func (r *RawPayload) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*r = nil
		return nil
	}
	*r = append(RawPayload(nil), b...)
	return nil
}
