// Package logging configures the process-wide zerolog logger.
package logging

import (
	"os"
	"strings"

	"github.com/rs/zerolog"

	"mgbridge/internal/config"
)

// New builds the root logger from config. The level names keep the
// original plugin's vocabulary (normal/debug/verbose) alongside the
// usual zerolog ones.
func New(cfg config.LoggingConfig) zerolog.Logger {
	level := parseLevel(cfg.Level)

	logger := zerolog.New(os.Stdout)
	if strings.EqualFold(cfg.Format, "console") {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	return logger.Level(level).With().
		Timestamp().
		Str("service", "mgbridge").
		Logger()
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "verbose", "trace":
		return zerolog.TraceLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default: // "normal"
		return zerolog.InfoLevel
	}
}
