package slogobs

import (
	"io"
	"log/slog"
	"os"

	"github.com/leofalp/planner/providers/observability"
)

// Option is a functional option for configuring the Observer.
type Option func(*config)

// config holds the configuration for creating an Observer.
type config struct {
	format  Format
	level   slog.Level
	output  io.Writer
	logger  *slog.Logger // If provided, use this logger directly (bypass custom handler)
	metrics observability.Metrics
}

// WithFormat sets the log output format.
func WithFormat(format Format) Option {
	return func(c *config) {
		c.format = format
	}
}

// WithLevel sets the minimum log level.
func WithLevel(level slog.Level) Option {
	return func(c *config) {
		c.level = level
	}
}

// WithOutput sets the output writer for logs.
func WithOutput(output io.Writer) Option {
	return func(c *config) {
		c.output = output
	}
}

// WithLogger uses an existing slog.Logger instead of creating a handler.
// This option takes precedence over format/level/output options.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithMetrics forwards counters and histograms to metrics in addition to the
// debug log events.
func WithMetrics(metrics observability.Metrics) Option {
	return func(c *config) {
		c.metrics = metrics
	}
}

// defaultConfig returns the default configuration.
func defaultConfig() *config {
	return &config{
		format: FormatFromEnv(),
		level:  LevelFromEnv(),
		output: os.Stderr,
	}
}

// applyOptions applies the given options to the config.
func applyOptions(opts ...Option) *config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
