package library

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// NewLogger builds the process logger: human-readable console output when
// stderr is attached to a terminal, JSON otherwise. An unrecognized level
// falls back to info.
func NewLogger(level string) zerolog.Logger {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil || parsed == zerolog.NoLevel {
		parsed = zerolog.InfoLevel
	}

	logger := zerolog.New(os.Stderr)
	if term.IsTerminal(int(os.Stderr.Fd())) {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
	return logger.Level(parsed).With().Timestamp().Logger()
}
