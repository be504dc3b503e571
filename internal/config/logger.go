package config

import (
	"log/slog"
	"os"
	"strings"
)

// NewLogger builds the process logger: JSON on stdout at the configured level.
// "text" as a suffix (e.g. "debug,text") switches to the text handler.
func NewLogger(level string) *slog.Logger {
	name, format, _ := strings.Cut(strings.ToLower(level), ",")

	var lvl slog.Level
	switch strings.TrimSpace(name) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	if strings.TrimSpace(format) == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
