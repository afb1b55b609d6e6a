package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"pdf-annotator/internal/domain"
)

// AppLogger implements the domain.Logger interface on top of log/slog.
type AppLogger struct {
	level  *slog.LevelVar
	logger *slog.Logger
}

// NewLogger creates a new logger instance writing to stdout
func NewLogger(levelStr string) domain.Logger {
	return NewLoggerWithOutput(levelStr, os.Stdout)
}

// NewLoggerWithOutput creates a logger writing to the given writer.
func NewLoggerWithOutput(levelStr string, output io.Writer) *AppLogger {
	if output == nil {
		output = io.Discard
	}
	level := new(slog.LevelVar)
	level.Set(parseLogLevel(levelStr))

	handler := slog.NewTextHandler(output, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Value = slog.StringValue(a.Value.Time().Format(time.DateTime))
			}
			return a
		},
	})

	return &AppLogger{
		level:  level,
		logger: slog.New(handler),
	}
}

// Info logs an info message
func (l *AppLogger) Info(msg string, fields ...interface{}) {
	l.log(slog.LevelInfo, msg, fields...)
}

// Error logs an error message
func (l *AppLogger) Error(msg string, err error, fields ...interface{}) {
	allFields := append([]interface{}{"error", err}, fields...)
	l.log(slog.LevelError, msg, allFields...)
}

// Debug logs a debug message
func (l *AppLogger) Debug(msg string, fields ...interface{}) {
	l.log(slog.LevelDebug, msg, fields...)
}

// Warn logs a warning message
func (l *AppLogger) Warn(msg string, fields ...interface{}) {
	l.log(slog.LevelWarn, msg, fields...)
}

// SetLevel changes the minimum level at runtime.
func (l *AppLogger) SetLevel(levelStr string) {
	l.level.Set(parseLogLevel(levelStr))
}

// Slog exposes the underlying slog logger.
func (l *AppLogger) Slog() *slog.Logger {
	return l.logger
}

func (l *AppLogger) log(level slog.Level, msg string, fields ...interface{}) {
	ctx := context.Background()
	if !l.logger.Enabled(ctx, level) {
		return
	}
	// Drop a dangling key so slog does not print !BADKEY.
	if len(fields)%2 != 0 {
		fields = fields[:len(fields)-1]
	}
	l.logger.Log(ctx, level, msg, fields...)
}

// parseLogLevel converts string log level to a slog level
func parseLogLevel(levelStr string) slog.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
