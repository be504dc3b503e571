package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"realtime-chat/internal/broadcast"
	"realtime-chat/internal/models"
	"realtime-chat/internal/services"

	"github.com/gin-gonic/gin"
)

// respondError maps service errors onto HTTP status codes.
func respondError(c *gin.Context, err error, message string) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, services.ErrUnauthenticated):
		status = http.StatusUnauthorized
	case errors.Is(err, broadcast.ErrBackboneUnavailable):
		status = http.StatusServiceUnavailable
	}
	if status >= 500 {
		_ = c.Error(err)
	}
	c.JSON(status, models.ErrorResponse{
		Code:    status,
		Message: message,
		Details: err.Error(),
	})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Code:    http.StatusBadRequest,
		Message: message,
	})
}

func uintParam(c *gin.Context, name string) (uint, bool) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || v == 0 {
		return 0, false
	}
	return uint(v), true
}
