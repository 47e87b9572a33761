// Package logging configures the process-wide zerolog logger.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup builds the root logger and installs it as log.Logger. Development
// gets a human-readable console writer; everything else logs JSON.
func Setup(level string, env string) zerolog.Logger {
	return setup(os.Stdout, level, env)
}

func setup(out io.Writer, level string, env string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		parsed = zerolog.InfoLevel
	}

	writer := out
	if env == "development" {
		writer = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}

	logger := zerolog.New(writer).Level(parsed).With().Timestamp().Str("service", "coachmarket").Logger()
	log.Logger = logger
	return logger
}
