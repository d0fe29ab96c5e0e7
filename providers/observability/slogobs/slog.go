package slogobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/leofalp/planner/providers/observability"
)

// Observer implements observability.Provider using Go's standard library slog.
// It routes tracing, metrics, and log events through a structured slog.Logger,
// making it suitable for lightweight observability without external dependencies.
type Observer struct {
	logger  *slog.Logger
	metrics *metricsStore

	// forward receives counters and histograms too when set by WithMetrics.
	forward observability.Metrics
}

// New creates a new slog-based observer with functional options.
// If no options are provided, it uses environment variables for configuration
// (PLANNER_LOG_FORMAT and PLANNER_LOG_LEVEL), defaulting to compact format and INFO level.
//
// Example usage:
//
//	// Use defaults from environment
//	observer := slogobs.New()
//
//	// Explicit configuration
//	observer := slogobs.New(
//	    slogobs.WithFormat(slogobs.FormatCompact),
//	    slogobs.WithLevel(slog.LevelDebug),
//	)
//
//	// Forward metrics to Prometheus
//	observer := slogobs.New(slogobs.WithMetrics(promobs.New(registry)))
func New(opts ...Option) *Observer {
	cfg := applyOptions(opts...)

	var logger *slog.Logger
	if cfg.logger != nil {
		// Use provided logger
		logger = cfg.logger
	} else {
		// Create custom handler with specified format
		handler := NewHandler(&HandlerOptions{
			Format: cfg.format,
			Level:  cfg.level,
			Output: cfg.output,
		})
		logger = slog.New(handler)
	}

	return &Observer{
		logger:  logger,
		metrics: newMetricsStore(),
		forward: cfg.metrics,
	}
}

// Logger returns the underlying slog.Logger, for components such as HTTP
// middleware that log through slog directly.
func (observer *Observer) Logger() *slog.Logger {
	return observer.logger
}

// Ensure Observer implements observability.Provider
var _ observability.Provider = (*Observer)(nil)

// --- TRACING ---

// StartSpan begins a new named span and emits a debug log event at its start.
// It attaches the provided attributes to the span for the duration of its lifetime.
// The returned context is unchanged; the returned Span's End method logs the
// elapsed duration. Use SetAttributes, SetStatus, RecordError, and AddEvent on
// the Span to enrich it before calling End.
func (observer *Observer) StartSpan(ctx context.Context, name string, attrs ...observability.Attribute) (context.Context, observability.Span) {
	span := &slogSpan{
		name:      name,
		startTime: time.Now(),
		logger:    observer.logger,
		attrs:     attrs,
	}

	// Log span start
	logAttrs := []slog.Attr{
		slog.String("span", name),
		slog.String("event", "span.start"),
	}
	for _, attr := range attrs {
		logAttrs = append(logAttrs, slog.Any(attr.Key, attr.Value))
	}
	observer.logger.LogAttrs(ctx, slog.LevelDebug, "Span started", logAttrs...)

	return ctx, span
}

type slogSpan struct {
	name      string
	startTime time.Time
	logger    *slog.Logger
	attrs     []observability.Attribute
	mu        sync.Mutex
}

// End completes the span by recording the elapsed time and any accumulated attributes,
// then logging the span end event at debug level.
func (span *slogSpan) End() {
	span.mu.Lock()
	defer span.mu.Unlock()

	duration := time.Since(span.startTime)
	logAttrs := []slog.Attr{
		slog.String("span", span.name),
		slog.String("event", "span.end"),
		slog.Duration("duration", duration),
	}
	for _, attr := range span.attrs {
		logAttrs = append(logAttrs, slog.Any(attr.Key, attr.Value))
	}
	// Use Debug level for span end to reduce log verbosity
	span.logger.LogAttrs(context.Background(), slog.LevelDebug, "Span ended", logAttrs...)
}

// SetAttributes appends the provided attributes to the span's attribute list.
func (span *slogSpan) SetAttributes(attrs ...observability.Attribute) {
	span.mu.Lock()
	defer span.mu.Unlock()
	span.attrs = append(span.attrs, attrs...)
}

// SetStatus records the final status of the span using the provided code and optional description.
func (span *slogSpan) SetStatus(code observability.StatusCode, description string) {
	span.mu.Lock()
	defer span.mu.Unlock()

	var statusStr string
	switch code {
	case observability.StatusOK:
		statusStr = "ok"
	case observability.StatusError:
		statusStr = "error"
	default:
		statusStr = "unset"
	}

	span.attrs = append(span.attrs, observability.String(observability.AttrStatus, statusStr))
	if description != "" {
		span.attrs = append(span.attrs, observability.String("status_description", description))
	}
}

// RecordError records the provided error as an exception event on the span and logs it at error level.
func (span *slogSpan) RecordError(err error) {
	if err == nil {
		return
	}
	span.mu.Lock()
	defer span.mu.Unlock()

	span.attrs = append(span.attrs, observability.Error(err))

	logAttrs := []slog.Attr{
		slog.String("span", span.name),
		slog.String("event", "error"),
		slog.String("error", err.Error()),
	}
	span.logger.LogAttrs(context.Background(), slog.LevelError, "Span error", logAttrs...)
}

// AddEvent appends a named event with optional attributes to the span's timeline by logging it at debug level.
func (span *slogSpan) AddEvent(name string, attrs ...observability.Attribute) {
	span.mu.Lock()
	defer span.mu.Unlock()

	logAttrs := []slog.Attr{
		slog.String("span", span.name),
		slog.String("event", name),
	}
	for _, attr := range attrs {
		logAttrs = append(logAttrs, slog.Any(attr.Key, attr.Value))
	}
	span.logger.LogAttrs(context.Background(), slog.LevelDebug, "Span event", logAttrs...)
}

// --- METRICS ---

// Counter returns a named observability.Counter backed by the in-memory metrics
// store. Multiple calls with the same name return the same counter instance,
// so callers can safely fetch it on every use without caching.
// Each Add call emits a debug log entry reporting the delta and cumulative value.
func (observer *Observer) Counter(name string) observability.Counter {
	counter := observer.metrics.getCounter(name, observer.logger)
	if observer.forward == nil {
		return counter
	}
	return fanoutCounter{counter, observer.forward.Counter(name)}
}

// Histogram returns a named observability.Histogram backed by the in-memory
// metrics store. Multiple calls with the same name return the same histogram
// instance. Each Record call emits a debug log entry with the observed value.
func (observer *Observer) Histogram(name string) observability.Histogram {
	histogram := observer.metrics.getHistogram(name, observer.logger)
	if observer.forward == nil {
		return histogram
	}
	return fanoutHistogram{histogram, observer.forward.Histogram(name)}
}

// fanoutCounter adds to every non-nil counter it holds.
type fanoutCounter []observability.Counter

func (counters fanoutCounter) Add(ctx context.Context, value int64, attrs ...observability.Attribute) {
	for _, counter := range counters {
		if counter != nil {
			counter.Add(ctx, value, attrs...)
		}
	}
}

// fanoutHistogram records into every non-nil histogram it holds.
type fanoutHistogram []observability.Histogram

func (histograms fanoutHistogram) Record(ctx context.Context, value float64, attrs ...observability.Attribute) {
	for _, histogram := range histograms {
		if histogram != nil {
			histogram.Record(ctx, value, attrs...)
		}
	}
}

// metricsStore holds metrics in memory (thread-safe)
type metricsStore struct {
	mu         sync.RWMutex
	counters   map[string]*slogCounter
	histograms map[string]*slogHistogram
}

func newMetricsStore() *metricsStore {
	return &metricsStore{
		counters:   make(map[string]*slogCounter),
		histograms: make(map[string]*slogHistogram),
	}
}

func (store *metricsStore) getCounter(name string, logger *slog.Logger) *slogCounter {
	store.mu.RLock()
	counter, exists := store.counters[name]
	store.mu.RUnlock()

	if exists {
		return counter
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	// Double-check after acquiring write lock
	if counter, exists := store.counters[name]; exists {
		return counter
	}

	counter = &slogCounter{name: name, logger: logger}
	store.counters[name] = counter
	return counter
}

func (store *metricsStore) getHistogram(name string, logger *slog.Logger) *slogHistogram {
	store.mu.RLock()
	histogram, exists := store.histograms[name]
	store.mu.RUnlock()

	if exists {
		return histogram
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	// Double-check after acquiring write lock
	if histogram, exists := store.histograms[name]; exists {
		return histogram
	}

	histogram = &slogHistogram{name: name, logger: logger}
	store.histograms[name] = histogram
	return histogram
}

type slogCounter struct {
	name   string
	logger *slog.Logger
	mu     sync.Mutex
	value  int64
}

// Add increments the counter by value and logs the updated total at DEBUG level.
// It implements [observability.Counter].
func (counter *slogCounter) Add(ctx context.Context, value int64, attrs ...observability.Attribute) {
	counter.mu.Lock()
	counter.value += value
	currentValue := counter.value
	counter.mu.Unlock()

	logAttrs := []slog.Attr{
		slog.String("metric", counter.name),
		slog.String("type", "counter"),
		slog.Int64("value", currentValue),
		slog.Int64("delta", value),
	}
	for _, attr := range attrs {
		logAttrs = append(logAttrs, slog.Any(attr.Key, attr.Value))
	}
	counter.logger.LogAttrs(ctx, slog.LevelDebug, "Counter", logAttrs...)
}

type slogHistogram struct {
	name   string
	logger *slog.Logger
	mu     sync.Mutex
}

// Record logs a histogram observation at DEBUG level.
// It implements [observability.Histogram].
func (histogram *slogHistogram) Record(ctx context.Context, value float64, attrs ...observability.Attribute) {
	histogram.mu.Lock()
	defer histogram.mu.Unlock()

	logAttrs := []slog.Attr{
		slog.String("metric", histogram.name),
		slog.String("type", "histogram"),
		slog.Float64("value", value),
	}
	for _, attr := range attrs {
		logAttrs = append(logAttrs, slog.Any(attr.Key, attr.Value))
	}
	histogram.logger.LogAttrs(ctx, slog.LevelDebug, "Histogram", logAttrs...)
}

// --- LOGGING ---

// Trace logs a message at TRACE level (below DEBUG) with optional structured attributes.
// TRACE is the most granular level; it is typically filtered out unless the log
// level is explicitly set to TRACE via [WithLevel] or the PLANNER_LOG_LEVEL env var.
func (observer *Observer) Trace(ctx context.Context, msg string, attrs ...observability.Attribute) {
	observer.log(ctx, LevelTrace, msg, attrs...)
}

// Debug logs a message at DEBUG level with optional structured attributes.
// Use this for detailed diagnostic information useful during development.
func (observer *Observer) Debug(ctx context.Context, msg string, attrs ...observability.Attribute) {
	observer.log(ctx, slog.LevelDebug, msg, attrs...)
}

// Info logs a message at INFO level with optional structured attributes.
// Use this for general operational events that confirm normal behavior.
func (observer *Observer) Info(ctx context.Context, msg string, attrs ...observability.Attribute) {
	observer.log(ctx, slog.LevelInfo, msg, attrs...)
}

// Warn logs a message at WARN level with optional structured attributes.
// Use this for unexpected situations that are recoverable but worth investigating.
func (observer *Observer) Warn(ctx context.Context, msg string, attrs ...observability.Attribute) {
	observer.log(ctx, slog.LevelWarn, msg, attrs...)
}

// Error logs a message at ERROR level with optional structured attributes.
// Use this for failures that affect the current operation and require attention.
func (observer *Observer) Error(ctx context.Context, msg string, attrs ...observability.Attribute) {
	observer.log(ctx, slog.LevelError, msg, attrs...)
}

func (observer *Observer) log(ctx context.Context, level slog.Level, msg string, attrs ...observability.Attribute) {
	logAttrs := make([]slog.Attr, 0, len(attrs))
	for _, attr := range attrs {
		logAttrs = append(logAttrs, slog.Any(attr.Key, attr.Value))
	}
	observer.logger.LogAttrs(ctx, level, msg, logAttrs...)
}
