package routes

import (
	"log/slog"
	"time"

	"realtime-chat/internal/api/handlers"
	"realtime-chat/internal/api/middleware"
	_ "realtime-chat/internal/docs"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handlers groups everything the router dispatches to.
type Handlers struct {
	WS            *handlers.WSHandler
	Messages      *handlers.MessageHandler
	Notifications *handlers.NotificationHandler
	Subscriptions *handlers.SubscriptionHandler
	Health        *handlers.HealthHandler
}

type Options struct {
	AllowedOrigins []string
	// Requests allowed per RateWindow on each REST route
	RateRequests int
	RateWindow   time.Duration
}

type Router struct {
	engine      *gin.Engine
	handlers    Handlers
	authMW      *middleware.AuthMiddleware
	rateLimitMW *middleware.RateLimitMiddleware
	opts        Options
}

func NewRouter(h Handlers, authMW *middleware.AuthMiddleware, rateLimitMW *middleware.RateLimitMiddleware, opts Options, logger *slog.Logger) *Router {
	engine := gin.New()

	// Add middlewares
	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS(opts.AllowedOrigins))
	engine.Use(middleware.LogApi(logger))

	return &Router{
		engine:      engine,
		handlers:    h,
		authMW:      authMW,
		rateLimitMW: rateLimitMW,
		opts:        opts,
	}
}

func (r *Router) SetupRoutes() {
	r.engine.GET("/healthz", r.handlers.Health.Health)
	r.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Websocket endpoints resolve the token themselves and close with 4401
	// where it is required.
	ws := r.engine.Group("/")
	ws.Use(r.authMW.Identify())
	r.handlers.WS.RegisterRoutes(ws)

	api := r.engine.Group("/api/v1")
	api.Use(r.authMW.RequireAuth())
	if r.opts.RateRequests > 0 {
		api.Use(r.rateLimitMW.RateLimit(r.opts.RateRequests, r.opts.RateWindow))
	}
	{
		api.DELETE("/messages/:id", r.handlers.Messages.DeleteMessage)

		notifications := api.Group("/notifications")
		{
			notifications.GET("", r.handlers.Notifications.ListNotifications)
			notifications.POST("/mark-read", r.handlers.Notifications.MarkRead)
		}

		r.handlers.Subscriptions.RegisterRoutes(api)
	}
}

func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
