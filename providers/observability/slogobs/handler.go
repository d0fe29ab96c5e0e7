package slogobs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
)

// HandlerOptions configures NewHandler.
type HandlerOptions struct {
	// Format specifies the output format (compact, text, json).
	Format Format
	// Level is the minimum log level to output.
	Level slog.Level
	// Output is where logs are written (defaults to os.Stderr).
	Output io.Writer
}

// NewHandler returns a slog.Handler for the requested format. Text and JSON
// use the standard library handlers with TRACE rendered by name; compact is a
// single line per record with attributes encoded as one JSON object.
func NewHandler(opts *HandlerOptions) slog.Handler {
	if opts == nil {
		opts = &HandlerOptions{}
	}

	output := opts.Output
	if output == nil {
		output = os.Stderr
	}

	standardOptions := &slog.HandlerOptions{
		Level:       opts.Level,
		ReplaceAttr: replaceLevelName,
	}

	switch opts.Format {
	case FormatJSON:
		return slog.NewJSONHandler(output, standardOptions)
	case FormatText:
		return slog.NewTextHandler(output, standardOptions)
	default:
		return &compactHandler{
			level:  opts.Level,
			output: output,
			mutex:  &sync.Mutex{},
		}
	}
}

// replaceLevelName prints levels below DEBUG as TRACE.
func replaceLevelName(groups []string, attr slog.Attr) slog.Attr {
	if len(groups) == 0 && attr.Key == slog.LevelKey {
		if level, isLevel := attr.Value.Any().(slog.Level); isLevel {
			attr.Value = slog.StringValue(levelString(level))
		}
	}
	return attr
}

// compactHandler writes "2006-01-02 15:04:05 LEVEL message {json attrs}".
type compactHandler struct {
	level  slog.Level
	output io.Writer

	// mutex is shared by handlers derived with WithAttrs/WithGroup so that
	// lines written to the same output never interleave.
	mutex  *sync.Mutex
	attrs  []slog.Attr
	groups []string
}

// Enabled reports whether the handler handles records at the given level.
func (handler *compactHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= handler.level
}

// Handle formats and writes a log record.
func (handler *compactHandler) Handle(_ context.Context, record slog.Record) error {
	buf := make([]byte, 0, 256)

	buf = append(buf, record.Time.Format("2006-01-02 15:04:05")...)
	buf = append(buf, fmt.Sprintf(" %5s ", levelString(record.Level))...)
	buf = append(buf, record.Message...)

	attrs := handler.collectAttrs(record)
	if len(attrs) > 0 {
		var encoded bytes.Buffer
		encoder := json.NewEncoder(&encoded)
		encoder.SetEscapeHTML(false)
		if err := encoder.Encode(attrs); err != nil {
			buf = append(buf, " [json-error]"...)
		} else {
			buf = append(buf, ' ')
			buf = append(buf, bytes.TrimRight(encoded.Bytes(), "\n")...)
		}
	}

	buf = append(buf, '\n')

	handler.mutex.Lock()
	defer handler.mutex.Unlock()
	_, err := handler.output.Write(buf)
	return err
}

// WithAttrs returns a new handler with additional attributes.
func (handler *compactHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	derived := *handler
	derived.attrs = append(append([]slog.Attr{}, handler.attrs...), handler.qualify(attrs)...)
	return &derived
}

// WithGroup returns a new handler that prefixes later keys with name.
func (handler *compactHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return handler
	}
	derived := *handler
	derived.groups = append(append([]string{}, handler.groups...), name)
	return &derived
}

// qualify prefixes attribute keys with the current group path.
func (handler *compactHandler) qualify(attrs []slog.Attr) []slog.Attr {
	if len(handler.groups) == 0 {
		return attrs
	}

	prefix := ""
	for _, group := range handler.groups {
		prefix += group + "."
	}

	qualified := make([]slog.Attr, 0, len(attrs))
	for _, attr := range attrs {
		qualified = append(qualified, slog.Attr{Key: prefix + attr.Key, Value: attr.Value})
	}
	return qualified
}

// collectAttrs gathers handler and record attributes into one map.
func (handler *compactHandler) collectAttrs(record slog.Record) map[string]any {
	attrs := make(map[string]any, len(handler.attrs)+record.NumAttrs())

	for _, attr := range handler.attrs {
		attrs[attr.Key] = attr.Value.Resolve().Any()
	}

	recordAttrs := make([]slog.Attr, 0, record.NumAttrs())
	record.Attrs(func(attr slog.Attr) bool {
		recordAttrs = append(recordAttrs, attr)
		return true
	})

	for _, attr := range handler.qualify(recordAttrs) {
		attrs[attr.Key] = attr.Value.Resolve().Any()
	}

	return attrs
}
