// Package logging builds the zerolog logger shared by the CLI and HTTP server.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ssargent/rbxdom/pkg/config"
)

// New builds a logger from cfg writing to stderr and installs it as the
// global log.Logger.
func New(app string, cfg config.Logging) zerolog.Logger {
	return NewWithWriter(app, cfg, os.Stderr)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(app string, cfg config.Logging, out io.Writer) zerolog.Logger {
	if !strings.EqualFold(cfg.Format, "json") {
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		}
	}

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	logger := zerolog.New(out).Level(level).With().Timestamp().Str("app", app).Logger()
	log.Logger = logger
	return logger
}
