package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "finwatch/internal/errors"
	"finwatch/internal/models"
	"finwatch/internal/pagination"
	"finwatch/internal/services"
)

// NotificationHandler serves the user's notification inbox.
type NotificationHandler struct {
	notificationService services.NotificationServicer
	auditService        services.AuditServicer
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(notificationService services.NotificationServicer, auditService services.AuditServicer) *NotificationHandler {
	return &NotificationHandler{notificationService: notificationService, auditService: auditService}
}

// ListNotificationsQuery holds the query parameters for listing notifications.
type ListNotificationsQuery struct {
	pagination.PageRequest
	UnreadOnly bool   `form:"unread_only"`
	Type       string `form:"type" binding:"omitempty,notification_type"`
}

// MarkAllReadResponse reports how many notifications were flagged read.
type MarkAllReadResponse struct {
	Message string `json:"message"`
	Updated int64  `json:"updated"`
}

// ListNotifications returns the user's notifications, newest first.
// @Summary     List notifications
// @Description Paginated notifications with the total unread count
// @Tags        notifications
// @Produce     json
// @Security    BearerAuth
// @Param       page        query int    false "Page number"
// @Param       page_size   query int    false "Items per page (max 100)"
// @Param       unread_only query bool   false "Only unread notifications"
// @Param       type        query string false "Notification type"
// @Success     200 {object} services.NotificationPage
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /notifications [get]
func (h *NotificationHandler) ListNotifications(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var q ListNotificationsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	filter := services.NotificationFilter{UnreadOnly: q.UnreadOnly}
	if q.Type != "" {
		t := models.NotificationType(q.Type)
		filter.Type = &t
	}

	page, err := h.notificationService.ListNotifications(c.Request.Context(), userID, q.PageRequest, filter)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// MarkRead flags one notification as read.
// @Summary     Mark a notification read
// @Tags        notifications
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Notification ID"
// @Success     200 {object} models.Notification
// @Failure     400 {object} ErrorResponse "Invalid ID"
// @Failure     404 {object} ErrorResponse "Notification not found"
// @Router      /notifications/{id}/read [put]
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	n, err := h.notificationService.MarkRead(c.Request.Context(), userID, id)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, n)
}

// MarkAllRead flags every unread notification of the user as read.
// @Summary     Mark all notifications read
// @Tags        notifications
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} MarkAllReadResponse
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /notifications/read-all [put]
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	updated, err := h.notificationService.MarkAllRead(c.Request.Context(), userID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, MarkAllReadResponse{Message: "All notifications marked as read", Updated: updated})
}

// DeleteNotification removes one notification.
// @Summary     Delete a notification
// @Tags        notifications
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Notification ID"
// @Success     200 {object} MessageResponse
// @Failure     404 {object} ErrorResponse "Notification not found"
// @Router      /notifications/{id} [delete]
func (h *NotificationHandler) DeleteNotification(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.notificationService.DeleteNotification(c.Request.Context(), userID, id); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "DELETE_NOTIFICATION", "notification", id, c.ClientIP(), nil)
	c.JSON(http.StatusOK, MessageResponse{Message: "Notification deleted"})
}
