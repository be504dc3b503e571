package handlers

import (
	"realtime-chat/internal/api/middleware"
	"realtime-chat/internal/websocket"

	"github.com/gin-gonic/gin"
)

type WSHandler struct {
	rooms         *websocket.RoomHandler
	notifications *websocket.NotificationHandler
}

func NewWSHandler(rooms *websocket.RoomHandler, notifications *websocket.NotificationHandler) *WSHandler {
	return &WSHandler{rooms: rooms, notifications: notifications}
}

// RegisterRoutes maps the websocket endpoints. Both need the Identify middleware.
func (h *WSHandler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/ws/chat", h.HandleChat)
	r.GET("/ws/chat/:room_id", h.HandleChat)
	r.GET("/ws/notifications", h.HandleNotifications)
}

// HandleChat godoc
// @Summary Room channel
// @Description Join a room's realtime channel. Anonymous connections may join group rooms.
// @Tags websocket
// @Param room_id path int true "Room ID"
// @Param token query string false "JWT"
// @Success 101 "Switching Protocols"
// @Router /ws/chat/{room_id} [get]
func (h *WSHandler) HandleChat(c *gin.Context) {
	h.rooms.Serve(c.Writer, c.Request, c.Param("room_id"), middleware.IdentityFrom(c))
}

// HandleNotifications godoc
// @Summary Notification channel
// @Description Per-user notification stream. Requires a valid token.
// @Tags websocket
// @Param token query string true "JWT"
// @Success 101 "Switching Protocols"
// @Router /ws/notifications [get]
func (h *WSHandler) HandleNotifications(c *gin.Context) {
	h.notifications.Serve(c.Writer, c.Request, middleware.IdentityFrom(c))
}
