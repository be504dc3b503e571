package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"realtime-chat/internal/api/handlers"
	"realtime-chat/internal/api/middleware"
	"realtime-chat/internal/api/routes"
	"realtime-chat/internal/auth"
	"realtime-chat/internal/broadcast"
	"realtime-chat/internal/config"
	"realtime-chat/internal/database"
	"realtime-chat/internal/presence"
	"realtime-chat/internal/repositories/postgres"
	"realtime-chat/internal/services"
	"realtime-chat/internal/websocket"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// App owns every long-lived component of the process.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	db       *gorm.DB
	redis    *database.RedisClient
	backbone broadcast.Backbone
	tracker  *presence.Tracker
	hub      *websocket.Hub
	http     *http.Server
}

// NewApp connects the storage collaborators and wires the broadcast backbone,
// the presence tracker and the HTTP surface.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{cfg: cfg, logger: logger}

	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		return nil, err
	}
	a.db = db

	if cfg.Broadcast.Backend == config.BackendRedis {
		rc, err := database.NewRedisConnection(cfg.Redis)
		if err != nil {
			return nil, err
		}
		a.redis = rc
		a.backbone = broadcast.NewRedisBackbone(rc.GetClient(), broadcast.BreakerConfig{
			FailureThreshold: cfg.Broadcast.BreakerFailures,
			Timeout:          cfg.Broadcast.BreakerTimeout,
		}, logger)
	} else {
		a.backbone = broadcast.NewMemoryBackbone()
	}
	logger.Info("Broadcast backbone ready", "backend", cfg.Broadcast.Backend)

	// Repositories
	roomRepo := postgres.NewRoomRepository(db)
	messageRepo := postgres.NewMessageRepository(db)
	userRepo := postgres.NewUserRepository(db)
	friendRepo := postgres.NewFriendRepository(db)
	notificationRepo := postgres.NewNotificationRepository(db)
	subscriptionRepo := postgres.NewSubscriptionRepository(db)

	// Services
	var (
		limiter  services.RateLimiter = services.NewLocalRateLimiter()
		registry services.OnlineRegistry
	)
	if a.redis != nil {
		redisService := services.NewRedisService(a.redis)
		limiter = redisService
		registry = redisService
	}

	notifier := services.NewNotificationService(notificationRepo, userRepo, subscriptionRepo, a.backbone, logger)
	rooms := services.NewRoomService(roomRepo, messageRepo, userRepo, a.backbone, notifier, logger)
	subs := services.NewSubscriptionService(subscriptionRepo, roomRepo, logger)
	presenceFanout := services.NewPresenceService(userRepo, friendRepo, notifier, registry, logger)

	a.tracker = presence.NewTracker(presenceFanout,
		presence.WithOfflineDelay(cfg.Presence.OfflineDelay),
		presence.WithLogger(logger),
	)
	a.hub = websocket.NewHub()

	// Websocket sessions
	upgrader := websocket.NewUpgrader(cfg.WebSocket.AllowedOrigins)
	wsOpts := websocket.Options{
		SendQueue:       cfg.WebSocket.SendQueue,
		MaxMessageBytes: cfg.WebSocket.MaxMessageBytes,
		FrameRate:       cfg.WebSocket.FrameRate,
		FrameBurst:      cfg.WebSocket.FrameBurst,
	}
	roomWS := websocket.NewRoomHandler(rooms, a.tracker, a.backbone, a.hub, upgrader, wsOpts, logger)
	notificationWS := websocket.NewNotificationHandler(notifier, a.tracker, a.backbone, a.hub, upgrader, wsOpts, logger)

	checks := map[string]handlers.Pinger{
		"database": handlers.PingFunc(func(ctx context.Context) error { return database.Ping(ctx, db) }),
	}
	if a.redis != nil {
		checks["redis"] = a.redis
	}

	gin.SetMode(gin.ReleaseMode)
	router := routes.NewRouter(routes.Handlers{
		WS:            handlers.NewWSHandler(roomWS, notificationWS),
		Messages:      handlers.NewMessageHandler(rooms),
		Notifications: handlers.NewNotificationHandler(notifier),
		Subscriptions: handlers.NewSubscriptionHandler(subs),
		Health:        handlers.NewHealthHandler(checks),
	},
		middleware.NewAuthMiddleware(auth.NewResolver(cfg.JWT.Secret)),
		middleware.NewRateLimitMiddleware(limiter, logger),
		routes.Options{
			AllowedOrigins: cfg.WebSocket.AllowedOrigins,
			RateRequests:   cfg.RateLimit.Requests,
			RateWindow:     cfg.RateLimit.Window,
		},
		logger,
	)
	router.SetupRoutes()

	a.http = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router.GetEngine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	return a, nil
}

// Run serves until ctx is cancelled, then shuts down.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("Server starting", "address", a.http.Addr)
		if err := a.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server failed: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			a.close()
			return err
		}
	case <-ctx.Done():
	}

	a.logger.Info("Server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	return a.Shutdown(shutdownCtx)
}

// Shutdown stops accepting connections, closes live sockets (each one runs
// its leave cleanup), flushes presence so friends see the offline transition
// and releases the backbone and storage handles.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	if err := a.http.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := a.hub.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close websockets: %w", err))
	}
	a.tracker.Shutdown(ctx)
	if err := a.close(); err != nil {
		errs = append(errs, err)
	}
	a.logger.Info("Server stopped")
	return errors.Join(errs...)
}

func (a *App) close() error {
	var errs []error
	if err := a.backbone.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close backbone: %w", err))
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if sqlDB, err := a.db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	return errors.Join(errs...)
}
