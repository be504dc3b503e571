package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"realtime-chat/internal/models"
	"realtime-chat/internal/services"

	"github.com/gin-gonic/gin"
)

type RateLimitMiddleware struct {
	limiter services.RateLimiter
	logger  *slog.Logger
}

func NewRateLimitMiddleware(limiter services.RateLimiter, logger *slog.Logger) *RateLimitMiddleware {
	if logger == nil {
		logger = slog.Default()
	}
	return &RateLimitMiddleware{
		limiter: limiter,
		logger:  logger.With("component", "ratelimit"),
	}
}

// RateLimit limits requests per user on authenticated routes, per client IP
// anywhere else.
func (rm *RateLimitMiddleware) RateLimit(requests int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		var key string
		if userID, ok := UserID(c); ok {
			key = fmt.Sprintf("rate_limit:%d:%s", userID, c.FullPath())
		} else {
			key = fmt.Sprintf("rate_limit_ip:%s:%s", c.ClientIP(), c.FullPath())
		}

		allowed, err := rm.limiter.CheckRateLimit(c.Request.Context(), key, requests, window)
		if err != nil {
			rm.logger.Error("Rate limit check failed", "key", key, "error", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, models.ErrorResponse{
				Code:    http.StatusInternalServerError,
				Message: "Rate limit check failed",
			})
			return
		}

		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, models.ErrorResponse{
				Code:    http.StatusTooManyRequests,
				Message: "Rate limit exceeded",
				Details: fmt.Sprintf("Too many requests. Limit: %d per %v", requests, window),
			})
			return
		}

		c.Next()
	}
}
