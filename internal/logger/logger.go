// Package logger configures structured logging with log/slog. Binaries call
// Init once; pipeline packages keep using the stdlib log with their
// [component] prefixes, which ends up on stderr alongside the JSON stream.
package logger

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// Init creates a JSON logger tagged with the binary name and installs it as
// the slog default.
func Init(service string, level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})

	logger := slog.New(handler).With(
		slog.String("service", service),
	)
	slog.SetDefault(logger)
	return logger
}

// ParseLevel maps a level name (debug, info, warn, error) to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}
