// Package logger configures zerolog for subwatch and carries the configured
// logger through contexts so services never log through a bare global.
package logger

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

type contextKey struct{}

var loggerKey contextKey

// New builds the process logger: console output, RFC3339 timestamps, and a
// level taken from LOG_LEVEL (debug/info/warn/error, default info).
func New() zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	return zerolog.New(output).
		Level(levelFromEnv()).
		With().Timestamp().Caller().Logger()
}

// NewWithWriter builds a logger writing raw JSON to w. Tests use it to
// capture output.
func NewWithWriter(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Caller().Logger()
}

func levelFromEnv() zerolog.Level {
	lvl, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// WithContext returns a context carrying log.
func WithContext(ctx context.Context, log zerolog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, log)
}

// FromContext returns the logger carried by ctx, or a fresh default when the
// context has none.
func FromContext(ctx context.Context) zerolog.Logger {
	if log, ok := ctx.Value(loggerKey).(zerolog.Logger); ok {
		return log
	}
	return New()
}

// ForUser annotates log with the user a detection, ingest or forecast run is
// operating on.
func ForUser(log zerolog.Logger, userID string) zerolog.Logger {
	return log.With().Str("user_id", userID).Logger()
}
