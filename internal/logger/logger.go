package logger

import (
	"log/slog"
	"os"
	"sync"
)

var (
	Logger   *slog.Logger
	initOnce sync.Once
)

// Init initializes the logger to output JSON to stdout.
func Init() {
	initOnce.Do(func() {
		level := slog.LevelInfo
		if os.Getenv("LOG_LEVEL") == "debug" {
			level = slog.LevelDebug
		}
		Logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level:     level,
			AddSource: true,
		}))
	})
}

// LogError logs an error with a message and optional key-value pairs
func LogError(msg string, err error, args ...any) {
	Init()
	attrs := []any{"error", err}
	attrs = append(attrs, args...)
	Logger.Error(msg, attrs...)
}

// LogInfo logs an informational message with optional key-value pairs
func LogInfo(msg string, args ...any) {
	Init()
	Logger.Info(msg, args...)
}

// LogWarn logs a warning message with optional key-value pairs
func LogWarn(msg string, args ...any) {
	Init()
	Logger.Warn(msg, args...)
}

// LogDebug logs a debug message with optional key-value pairs
func LogDebug(msg string, args ...any) {
	Init()
	Logger.Debug(msg, args...)
}
