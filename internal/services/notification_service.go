package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	apperrors "finwatch/internal/errors"
	"finwatch/internal/logger"
	"finwatch/internal/mailer"
	"finwatch/internal/metrics"
	"finwatch/internal/models"
	"finwatch/internal/pagination"
)

// notificationService persists notifications and, for high priority ones,
// emails users who opted in.
type notificationService struct {
	db     *gorm.DB
	mailer mailer.Sender
	now    Clock
	guard  DedupGuard
}

// NewNotificationService creates a new NotificationServicer. A nil sender
// disables email and a nil clock uses the system clock.
func NewNotificationService(db *gorm.DB, sender mailer.Sender, now Clock) NotificationServicer {
	if sender == nil {
		sender = mailer.Nop{}
	}
	if now == nil {
		now = SystemClock
	}
	return &notificationService{db: db, mailer: sender, now: now}
}

// CreateNotification writes a notification without dedup.
func (s *notificationService) CreateNotification(
	ctx context.Context,
	userID string,
	notificationType models.NotificationType,
	title, message string,
	payload models.NotificationPayload,
	priority models.NotificationPriority,
) *models.Notification {
	log := logger.Named("notifications")

	n, err := s.build(userID, notificationType, title, message, payload, priority)
	if err == nil {
		err = s.db.WithContext(ctx).Create(n).Error
	}
	if err != nil {
		metrics.NotificationsTotal.WithLabelValues(string(notificationType), metrics.OutcomeFailed).Inc()
		log.Errorw("failed to create notification",
			"error", err,
			"user_id", userID,
			"type", notificationType,
			"title", title,
		)
		return nil
	}

	metrics.NotificationsTotal.WithLabelValues(string(notificationType), metrics.OutcomeCreated).Inc()
	s.email(ctx, n)
	return n
}

// Deliver writes c for userID unless the dedup guard rejects it.
func (s *notificationService) Deliver(ctx context.Context, userID string, c *Candidate) (*models.Notification, DeliveryOutcome, error) {
	if c == nil {
		return nil, DeliverySkipped, nil
	}

	n, err := s.build(userID, c.Type, c.Title, c.Message, c.Payload, c.Priority)
	if err != nil {
		metrics.NotificationsTotal.WithLabelValues(string(c.Type), metrics.OutcomeFailed).Inc()
		return nil, "", err
	}

	outcome := DeliveryCreated
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.guard.Lock(tx, userID, c.Type, n.SubjectID); err != nil {
			return err
		}
		ok, err := s.guard.Allow(tx, userID, c.Type, n.SubjectID, n.CreatedAt)
		if err != nil {
			return err
		}
		if !ok {
			outcome = DeliverySuppressed
			return nil
		}
		return tx.Create(n).Error
	})
	if err != nil {
		metrics.NotificationsTotal.WithLabelValues(string(c.Type), metrics.OutcomeFailed).Inc()
		return nil, "", err
	}

	if outcome == DeliverySuppressed {
		metrics.NotificationsTotal.WithLabelValues(string(c.Type), metrics.OutcomeSuppressed).Inc()
		logger.Named("notifications").Debugw("notification suppressed",
			"user_id", userID,
			"type", c.Type,
			"subject_id", n.SubjectID,
		)
		return nil, outcome, nil
	}

	metrics.NotificationsTotal.WithLabelValues(string(c.Type), metrics.OutcomeCreated).Inc()
	s.email(ctx, n)
	return n, outcome, nil
}

func (s *notificationService) build(
	userID string,
	notificationType models.NotificationType,
	title, message string,
	payload models.NotificationPayload,
	priority models.NotificationPriority,
) (*models.Notification, error) {
	if !notificationType.Valid() {
		return nil, fmt.Errorf("unknown notification type %q", notificationType)
	}
	if payload != nil && payload.NotificationType() != notificationType {
		return nil, fmt.Errorf("payload for %q attached to %q notification", payload.NotificationType(), notificationType)
	}
	data, err := models.EncodePayload(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	if priority == "" {
		priority = models.PriorityMedium
	}

	n := &models.Notification{
		UserID:   userID,
		Type:     notificationType,
		Title:    title,
		Message:  message,
		Data:     data,
		Priority: priority,
	}
	if payload != nil {
		n.SubjectID = payload.Subject()
	}
	n.CreatedAt = s.now().UTC()
	return n, nil
}

// email sends high priority notifications to users with email enabled.
// Failures are logged only.
func (s *notificationService) email(ctx context.Context, n *models.Notification) {
	if n.Priority != models.PriorityHigh {
		return
	}
	if _, nop := s.mailer.(mailer.Nop); nop {
		return
	}

	var user models.User
	if err := s.db.WithContext(ctx).Select("id", "email", "first_name", "notify_email").
		First(&user, "id = ?", n.UserID).Error; err != nil {
		logger.Named("notifications").Warnw("notification email skipped", "error", err, "user_id", n.UserID)
		return
	}
	if !user.Notifications.Email {
		return
	}

	msg := mailer.Message{
		To:      user.Email,
		Subject: n.Title,
		Body:    fmt.Sprintf("Hi %s,\n\n%s\n\nfinwatch", user.DisplayName(), n.Message),
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		logger.Named("notifications").Errorw("failed to email notification",
			"error", err,
			"user_id", n.UserID,
			"notification_id", n.ID,
		)
	}
}

// ListNotifications returns the user's notifications, newest first.
func (s *notificationService) ListNotifications(
	ctx context.Context,
	userID string,
	page pagination.PageRequest,
	filter NotificationFilter,
) (*NotificationPage, error) {
	page.Defaults()
	db := s.db.WithContext(ctx)

	base := db.Model(&models.Notification{}).Where("user_id = ?", userID)
	if filter.UnreadOnly {
		base = base.Where("read = ?", false)
	}
	if filter.Type != nil {
		base = base.Where("type = ?", *filter.Type)
	}

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var notifications []models.Notification
	if err := base.Order("created_at DESC").Order("id DESC").
		Scopes(pagination.Paginate(page)).Find(&notifications).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var unread int64
	if err := db.Model(&models.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Count(&unread).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return &NotificationPage{
		PageResponse: pagination.NewPageResponse(notifications, page.Page, page.PageSize, totalItems),
		UnreadCount:  unread,
	}, nil
}

// MarkRead flags one of the user's notifications as read.
func (s *notificationService) MarkRead(ctx context.Context, userID, notificationID string) (*models.Notification, error) {
	db := s.db.WithContext(ctx)

	var n models.Notification
	if err := db.Where("id = ? AND user_id = ?", notificationID, userID).First(&n).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotificationNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if !n.Read {
		if err := db.Model(&n).Update("read", true).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		n.Read = true
	}
	return &n, nil
}

// MarkAllRead flags every unread notification of the user and returns how
// many changed.
func (s *notificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Update("read", true)
	if res.Error != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, res.Error)
	}
	return res.RowsAffected, nil
}

// DeleteNotification soft-deletes one of the user's notifications.
func (s *notificationService) DeleteNotification(ctx context.Context, userID, notificationID string) error {
	res := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Delete(&models.Notification{})
	if res.Error != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrNotificationNotFound
	}
	return nil
}
