package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/edvin/subadmin/internal/config"
)

// NewLogger creates a JSON zerolog.Logger on stdout tagged with the service
// name and filtered at the configured level.
func NewLogger(cfg *config.Config) zerolog.Logger {
	return newLogger(os.Stdout, cfg)
}

// NewConsoleLogger writes human-readable logs to stderr, for the interactive console.
func NewConsoleLogger(cfg *config.Config) zerolog.Logger {
	return newLogger(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}, cfg)
}

func newLogger(w io.Writer, cfg *config.Config) zerolog.Logger {
	ctx := zerolog.New(w).With().Timestamp()

	if cfg.ServiceName != "" {
		ctx = ctx.Str("service", cfg.ServiceName)
	}
	if cfg.Backend != "" {
		ctx = ctx.Str("backend", cfg.Backend)
	}

	logger := ctx.Logger()

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}

	return logger.Level(level)
}
