package handlers

import (
	"net/http"

	"realtime-chat/internal/api/middleware"
	"realtime-chat/internal/models"
	"realtime-chat/internal/services"

	"github.com/gin-gonic/gin"
)

type SubscriptionHandler struct {
	subs *services.SubscriptionService
}

func NewSubscriptionHandler(subs *services.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{subs: subs}
}

// RegisterRoutes maps the group chat subscription endpoints under /rooms/:id.
func (h *SubscriptionHandler) RegisterRoutes(r *gin.RouterGroup) {
	rooms := r.Group("/rooms/:id")
	{
		rooms.GET("/subscription", h.GetStatus)
		rooms.POST("/subscription", h.Subscribe)
		rooms.POST("/subscribe", h.Subscribe)
		rooms.POST("/unsubscribe", h.Unsubscribe)
		rooms.POST("/mute", h.Mute)
	}
}

// GetStatus godoc
// @Summary Group chat subscription status
// @Tags subscriptions
// @Produce json
// @Security BearerAuth
// @Param id path int true "Room ID"
// @Success 200 {object} models.SubscriptionStatus
// @Failure 403 {object} models.ErrorResponse "Private room"
// @Failure 404 {object} models.ErrorResponse "Room not found"
// @Router /rooms/{id}/subscription [get]
func (h *SubscriptionHandler) GetStatus(c *gin.Context) {
	h.run(c, func(userID, roomID uint) (*models.SubscriptionStatus, error) {
		return h.subs.Status(c.Request.Context(), userID, roomID)
	})
}

// Subscribe godoc
// @Summary Subscribe to group chat notifications
// @Tags subscriptions
// @Produce json
// @Security BearerAuth
// @Param id path int true "Room ID"
// @Success 200 {object} models.SubscriptionStatus
// @Router /rooms/{id}/subscribe [post]
func (h *SubscriptionHandler) Subscribe(c *gin.Context) {
	h.run(c, func(userID, roomID uint) (*models.SubscriptionStatus, error) {
		return h.subs.Subscribe(c.Request.Context(), userID, roomID)
	})
}

// Unsubscribe godoc
// @Summary Unsubscribe from group chat notifications
// @Tags subscriptions
// @Produce json
// @Security BearerAuth
// @Param id path int true "Room ID"
// @Success 200 {object} models.SubscriptionStatus
// @Router /rooms/{id}/unsubscribe [post]
func (h *SubscriptionHandler) Unsubscribe(c *gin.Context) {
	h.run(c, func(userID, roomID uint) (*models.SubscriptionStatus, error) {
		return h.subs.Unsubscribe(c.Request.Context(), userID, roomID)
	})
}

// Mute godoc
// @Summary Mute or unmute a group chat subscription
// @Tags subscriptions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Room ID"
// @Param request body models.MuteRequest true "Mute flag"
// @Success 200 {object} models.SubscriptionStatus
// @Failure 404 {object} models.ErrorResponse "Not subscribed"
// @Router /rooms/{id}/mute [post]
func (h *SubscriptionHandler) Mute(c *gin.Context) {
	var req models.MuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	h.run(c, func(userID, roomID uint) (*models.SubscriptionStatus, error) {
		return h.subs.SetMuted(c.Request.Context(), userID, roomID, req.Muted)
	})
}

func (h *SubscriptionHandler) run(c *gin.Context, op func(userID, roomID uint) (*models.SubscriptionStatus, error)) {
	userID, _ := middleware.UserID(c)
	roomID, ok := uintParam(c, "id")
	if !ok {
		badRequest(c, "Invalid room ID")
		return
	}
	status, err := op(userID, roomID)
	if err != nil {
		respondError(c, err, "Subscription request failed")
		return
	}
	c.JSON(http.StatusOK, status)
}
