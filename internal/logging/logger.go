package logging

import (
	"log/slog"
	"os"
)

// Init installs the process-wide default logger.
// level: "debug", "info", "warn", "error" (defaults to "info")
// format: "json" or "text" (defaults to "text")
func Init(level, format string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}

// WithChannel returns the default logger with a channel field.
func WithChannel(channel string) *slog.Logger {
	return slog.Default().With("channel", channel)
}

// WithClient returns the default logger with a client_id field.
func WithClient(clientID string) *slog.Logger {
	return slog.Default().With("client_id", clientID)
}
