package logging

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// Name is the name of the application that the logger is for.
type Name string

// Config is the configuration for a logger.
type Config struct {
	// name is the application name. It is attached to every record.
	name Name

	// level is the minimum level that will be logged.
	level slog.Level
}

// NewConfig creates a new logger configuration. The level is taken from the
// LOG_LEVEL environment variable, defaulting to info.
func NewConfig(name Name) *Config {
	level := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	return &Config{
		name:  name,
		level: level,
	}
}

// CommonLogger creates the logger used across the application. When stdout is
// a terminal a tint handler is used; otherwise records are emitted as JSON.
func CommonLogger(c *Config) (*slog.Logger, error) {
	var handler slog.Handler
	if fi, err := os.Stdout.Stat(); err == nil && fi.Mode()&os.ModeCharDevice != 0 {
		handler = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      c.level,
			TimeFormat: time.DateTime,
		})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: c.level,
		})
	}

	l := slog.New(handler).With(slog.String("app", string(c.name)))
	slog.SetDefault(l)
	return l, nil
}
