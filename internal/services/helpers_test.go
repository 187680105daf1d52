package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	"finwatch/internal/mailer"
	"finwatch/internal/models"
)

// testNow is the pinned "now" shared by the service tests.
var testNow = time.Date(2025, time.March, 15, 12, 0, 0, 0, time.UTC)

// clockAt returns a Clock that reads *now, so a test can move time forward.
func clockAt(now *time.Time) Clock {
	return func() time.Time { return *now }
}

func fixedClock(now time.Time) Clock {
	return func() time.Time { return now }
}

// recordingSender captures emails instead of sending them.
type recordingSender struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (r *recordingSender) Send(_ context.Context, msg mailer.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
	return r.err
}

func (r *recordingSender) messages() []mailer.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]mailer.Message(nil), r.sent...)
}

func countNotifications(t *testing.T, db *gorm.DB, userID string, notificationType models.NotificationType) int64 {
	t.Helper()
	var count int64
	if err := db.Model(&models.Notification{}).
		Where("user_id = ? AND type = ?", userID, notificationType).
		Count(&count).Error; err != nil {
		t.Fatalf("failed to count notifications: %v", err)
	}
	return count
}

func latestNotification(t *testing.T, db *gorm.DB, userID string) models.Notification {
	t.Helper()
	var n models.Notification
	if err := db.Where("user_id = ?", userID).Order("created_at DESC").First(&n).Error; err != nil {
		t.Fatalf("failed to load notification: %v", err)
	}
	return n
}
