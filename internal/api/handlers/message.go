package handlers

import (
	"net/http"

	"realtime-chat/internal/api/middleware"
	"realtime-chat/internal/services"

	"github.com/gin-gonic/gin"
)

type MessageHandler struct {
	rooms *services.RoomService
}

func NewMessageHandler(rooms *services.RoomService) *MessageHandler {
	return &MessageHandler{rooms: rooms}
}

// DeleteMessage godoc
// @Summary Delete a message
// @Description Hard delete a message authored by the caller and announce message:delete to the room
// @Tags messages
// @Security BearerAuth
// @Param id path string true "Message ID"
// @Success 204 "Message deleted"
// @Failure 401 {object} models.ErrorResponse "Unauthorized"
// @Failure 403 {object} models.ErrorResponse "Not the author"
// @Failure 404 {object} models.ErrorResponse "Message not found"
// @Router /messages/{id} [delete]
func (h *MessageHandler) DeleteMessage(c *gin.Context) {
	userID, _ := middleware.UserID(c)
	messageID := c.Param("id")
	if messageID == "" {
		badRequest(c, "Invalid message ID")
		return
	}

	if err := h.rooms.DeleteMessage(c.Request.Context(), messageID, userID); err != nil {
		respondError(c, err, "Failed to delete message")
		return
	}
	c.Status(http.StatusNoContent)
}
