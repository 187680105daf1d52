package services

import (
	"strings"
	"time"

	"gorm.io/gorm"

	"finwatch/internal/models"
)

// DedupGuard suppresses a notification when one with the same user, type and
// subject was created inside the type's window. Callers run Lock, Allow and
// the insert that follows on the same transaction.
type DedupGuard struct{}

// Lock serializes deliveries for one (user, type, subject) until tx ends.
// Postgres takes a transaction-scoped advisory lock; SQLite already runs one
// writer at a time, so other dialects skip it.
func (DedupGuard) Lock(tx *gorm.DB, userID string, notificationType models.NotificationType, subjectID string) error {
	if tx.Dialector.Name() != "postgres" {
		return nil
	}
	return tx.Exec("SELECT pg_advisory_xact_lock(hashtextextended(?, 0))",
		dedupLockKey(userID, notificationType, subjectID)).Error
}

func dedupLockKey(userID string, notificationType models.NotificationType, subjectID string) string {
	return strings.Join([]string{"notification", userID, string(notificationType), subjectID}, ":")
}

// Allow reports whether a new notification may be written at now.
func (DedupGuard) Allow(tx *gorm.DB, userID string, notificationType models.NotificationType, subjectID string, now time.Time) (bool, error) {
	since := now.Add(-notificationType.DedupWindow())

	var count int64
	err := tx.Model(&models.Notification{}).
		Where("user_id = ? AND type = ? AND subject_id = ? AND created_at >= ?",
			userID, notificationType, subjectID, since.UTC()).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count == 0, nil
}
