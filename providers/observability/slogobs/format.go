package slogobs

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// Format represents the output format for logs.
type Format string

const (
	// FormatCompact is a single-line format with JSON attributes (default).
	// Example: 2026-10-15 10:40:35  INFO node execution completed {"graph.node.id":"objective_interpreter"}
	FormatCompact Format = "compact"

	// FormatText is the standard slog key=value format.
	FormatText Format = "text"

	// FormatJSON is standard JSON format (for production/log aggregation).
	FormatJSON Format = "json"
)

// LevelTrace is more verbose than slog.LevelDebug and filtered out unless
// explicitly enabled.
const LevelTrace = slog.LevelDebug - 4

// Environment variables read by FormatFromEnv and LevelFromEnv. The LOG_*
// variants are fallbacks.
const (
	envLogFormat         = "PLANNER_LOG_FORMAT"
	envLogLevel          = "PLANNER_LOG_LEVEL"
	envLogFormatFallback = "LOG_FORMAT"
	envLogLevelFallback  = "LOG_LEVEL"
)

// ParseFormat parses a format string and returns the corresponding Format.
// Unknown values yield FormatCompact.
func ParseFormat(s string) Format {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "text":
		return FormatText
	case "json":
		return FormatJSON
	default:
		return FormatCompact
	}
}

// FormatFromEnv returns the format named by PLANNER_LOG_FORMAT, then
// LOG_FORMAT, defaulting to FormatCompact.
func FormatFromEnv() Format {
	if format := os.Getenv(envLogFormat); format != "" {
		return ParseFormat(format)
	}
	if format := os.Getenv(envLogFormatFallback); format != "" {
		return ParseFormat(format)
	}
	return FormatCompact
}

// String returns the string representation of the Format.
func (f Format) String() string {
	return string(f)
}

// ParseLevel parses TRACE, DEBUG, INFO, WARN/WARNING or ERROR
// (case-insensitive). Unknown values yield an error and slog.LevelInfo.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "TRACE":
		return LevelTrace, nil
	case "DEBUG":
		return slog.LevelDebug, nil
	case "", "INFO":
		return slog.LevelInfo, nil
	case "WARN", "WARNING":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
}

// LevelFromEnv returns the level named by PLANNER_LOG_LEVEL, then LOG_LEVEL,
// defaulting to INFO. An unknown value falls back to INFO.
func LevelFromEnv() slog.Level {
	value := os.Getenv(envLogLevel)
	if value == "" {
		value = os.Getenv(envLogLevelFallback)
	}

	level, err := ParseLevel(value)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

// levelString maps a slog.Level to its display name, including TRACE.
func levelString(level slog.Level) string {
	switch {
	case level < slog.LevelDebug:
		return "TRACE"
	case level < slog.LevelInfo:
		return "DEBUG"
	case level < slog.LevelWarn:
		return "INFO"
	case level < slog.LevelError:
		return "WARN"
	default:
		return "ERROR"
	}
}
