package handlers

import (
	"net/http"
	"strconv"

	"realtime-chat/internal/api/middleware"
	"realtime-chat/internal/models"
	"realtime-chat/internal/services"

	"github.com/gin-gonic/gin"
)

type NotificationHandler struct {
	notifications *services.NotificationService
}

func NewNotificationHandler(notifications *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// ListNotifications godoc
// @Summary List notifications
// @Description List the caller's notifications, newest first
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Param is_read query bool false "Filter by read state"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size (max 100)"
// @Success 200 {object} models.NotificationListResponse
// @Failure 400 {object} models.ErrorResponse "Invalid query"
// @Router /notifications [get]
func (h *NotificationHandler) ListNotifications(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	var isRead *bool
	if raw := c.Query("is_read"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			badRequest(c, "Invalid is_read value")
			return
		}
		isRead = &v
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	resp, err := h.notifications.List(c.Request.Context(), userID, isRead, page, pageSize)
	if err != nil {
		respondError(c, err, "Failed to list notifications")
		return
	}
	c.JSON(http.StatusOK, resp)
}

// MarkRead godoc
// @Summary Mark notifications as read
// @Description Mark the given notifications, or all of them, as read and push the new unread count
// @Tags notifications
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.MarkReadRequest true "IDs or all"
// @Success 200 {object} models.MarkReadResponse
// @Failure 400 {object} models.ErrorResponse "Invalid body"
// @Router /notifications/mark-read [post]
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	var req models.MarkReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	if !req.All && len(req.IDs) == 0 {
		badRequest(c, "ids or all is required")
		return
	}

	resp, err := h.notifications.MarkRead(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, err, "Failed to mark notifications as read")
		return
	}
	c.JSON(http.StatusOK, resp)
}
