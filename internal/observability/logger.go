// Package observability sets up logging and run metrics.
package observability

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger builds the process logger writing to stderr, so that command
// output on stdout stays machine readable. format is "console" or "json".
func InitLogger(level, format string) (zerolog.Logger, error) {
	return NewLogger(os.Stderr, level, format)
}

// NewLogger builds a logger writing to w and installs it as the global
// zerolog logger.
func NewLogger(w io.Writer, level, format string) (zerolog.Logger, error) {
	lvl := zerolog.InfoLevel
	if level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(level))
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", level, err)
		}
		lvl = parsed
	}

	var output io.Writer
	switch strings.ToLower(format) {
	case "", "console", "text":
		output = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	case "json":
		output = w
	default:
		return zerolog.Nop(), fmt.Errorf("invalid log format %q (want console or json)", format)
	}

	logger := zerolog.New(output).Level(lvl).With().Timestamp().Str("app", "confluence-sync").Logger()
	log.Logger = logger
	return logger, nil
}
