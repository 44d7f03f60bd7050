package logging

import (
	"io"
	"log/slog"
	"strings"
)

// LoggerConfig holds the logger settings, typically filled from a CLI
// flag or an option.
type LoggerConfig struct {
	Level string
}

// NewLogger builds a JSON slog.Logger writing to w. The level string is
// case-insensitive; unknown or empty levels fall back to INFO.
func NewLogger(config LoggerConfig, w io.Writer) *slog.Logger {
	level := parseLevel(config.Level)
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		AddSource:   false,
		Level:       level,
		ReplaceAttr: nil,
	})

	return slog.New(handler)
}

// Component tags a logger with the subsystem it serves, so composition
// and source log lines stay attributable in mixed output.
func Component(logger *slog.Logger, name string) *slog.Logger {
	return logger.With(slog.String("component", name))
}

// Discard returns a logger that drops everything. Library types use it
// as their default so composing stays silent unless the caller opts in.
func Discard() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
