// Package log configures the diagnostic logger. User-facing output does not
// go through here, see package notify.
package log

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config captures options for configuring the global logger.
type Config struct {
	Level   string    // optional log level ("debug", "info", etc.)
	Output  io.Writer // optional writer (defaults to os.Stderr)
	Console bool      // human-readable output instead of JSON lines
}

var (
	mu   sync.RWMutex
	base = zerolog.New(os.Stderr).Level(zerolog.WarnLevel).With().Timestamp().Logger()
)

// Configure replaces the global logger.
func Configure(cfg Config) {
	level := zerolog.WarnLevel
	if cfg.Level != "" {
		if parsed, err := zerolog.ParseLevel(cfg.Level); err == nil {
			level = parsed
		}
	} else if env := os.Getenv("LOG_LEVEL"); env != "" {
		if parsed, err := zerolog.ParseLevel(env); err == nil {
			level = parsed
		}
	}

	writer := cfg.Output
	if writer == nil {
		writer = os.Stderr
	}
	if cfg.Console {
		writer = zerolog.ConsoleWriter{Out: writer, TimeFormat: time.Kitchen, NoColor: true}
	}

	mu.Lock()
	base = zerolog.New(writer).Level(level).With().Timestamp().Logger()
	mu.Unlock()
}

// Base returns the configured logger.
func Base() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// WithComponent returns a child logger annotated with the given component name.
func WithComponent(component string) zerolog.Logger {
	return Base().With().Str("component", component).Logger()
}
