package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"realtime-chat/internal/config"
	"realtime-chat/internal/database"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	logger := config.NewLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	logger.Info("Starting database migration...", "driver", cfg.Database.Driver)

	// NewConnection runs the auto-migration
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Error("Failed to migrate database", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := database.Ping(ctx, db); err != nil {
		logger.Error("Failed to ping database", "error", err)
		os.Exit(1)
	}

	logger.Info("Database migration completed successfully!")
}
