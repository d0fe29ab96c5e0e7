package slogobs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leofalp/planner/providers/observability"
)

func TestParseFormat(testCase *testing.T) {
	assert.Equal(testCase, FormatJSON, ParseFormat(" JSON "))
	assert.Equal(testCase, FormatText, ParseFormat("text"))
	assert.Equal(testCase, FormatCompact, ParseFormat("compact"))
	assert.Equal(testCase, FormatCompact, ParseFormat("unknown"))
}

func TestParseLevel(testCase *testing.T) {
	testCases := []struct {
		input    string
		expected slog.Level
		wantErr  bool
	}{
		{input: "trace", expected: LevelTrace},
		{input: "DEBUG", expected: slog.LevelDebug},
		{input: "", expected: slog.LevelInfo},
		{input: "info", expected: slog.LevelInfo},
		{input: "warning", expected: slog.LevelWarn},
		{input: "Error", expected: slog.LevelError},
		{input: "loud", expected: slog.LevelInfo, wantErr: true},
	}

	for _, tc := range testCases {
		testCase.Run(tc.input, func(subTest *testing.T) {
			level, err := ParseLevel(tc.input)
			if tc.wantErr {
				require.Error(subTest, err)
			} else {
				require.NoError(subTest, err)
			}
			assert.Equal(subTest, tc.expected, level)
		})
	}
}

func TestFromEnv(testCase *testing.T) {
	testCase.Setenv(envLogFormat, "json")
	testCase.Setenv(envLogLevel, "debug")
	assert.Equal(testCase, FormatJSON, FormatFromEnv())
	assert.Equal(testCase, slog.LevelDebug, LevelFromEnv())

	testCase.Setenv(envLogFormat, "")
	testCase.Setenv(envLogLevel, "")
	testCase.Setenv(envLogFormatFallback, "text")
	testCase.Setenv(envLogLevelFallback, "nonsense")
	assert.Equal(testCase, FormatText, FormatFromEnv())
	assert.Equal(testCase, slog.LevelInfo, LevelFromEnv())
}

func TestHandler_Compact(testCase *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&HandlerOptions{Format: FormatCompact, Level: slog.LevelDebug, Output: &buf}))

	logger.With("run.id", "r1").WithGroup("graph").Info("node done", "node", "objective_interpreter", "topic", "phân số <b>")

	line := buf.String()
	assert.Contains(testCase, line, " INFO node done ")
	assert.Contains(testCase, line, `"run.id":"r1"`)
	assert.Contains(testCase, line, `"graph.node":"objective_interpreter"`)
	assert.Contains(testCase, line, "phân số <b>")
	assert.True(testCase, strings.HasSuffix(line, "}\n"))
}

func TestHandler_LevelFilter(testCase *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&HandlerOptions{Format: FormatCompact, Level: slog.LevelWarn, Output: &buf}))

	logger.Info("hidden")
	logger.Warn("shown")

	assert.NotContains(testCase, buf.String(), "hidden")
	assert.Contains(testCase, buf.String(), "shown")
}

func TestHandler_JSONRendersTrace(testCase *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&HandlerOptions{Format: FormatJSON, Level: LevelTrace, Output: &buf}))

	logger.Log(context.Background(), LevelTrace, "fine grained", "k", 1)

	var record map[string]any
	require.NoError(testCase, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(testCase, "TRACE", record["level"])
	assert.Equal(testCase, "fine grained", record["msg"])
}

func TestObserver_Logging(testCase *testing.T) {
	var buf bytes.Buffer
	observer := New(WithOutput(&buf), WithLevel(slog.LevelDebug), WithFormat(FormatJSON))
	ctx := context.Background()

	observer.Info(ctx, "hello", observability.String("who", "world"))
	observer.Error(ctx, "failed", observability.Error(errors.New("boom")))
	observer.Trace(ctx, "invisible")

	output := buf.String()
	assert.Contains(testCase, output, `"who":"world"`)
	assert.Contains(testCase, output, `"error":"boom"`)
	assert.NotContains(testCase, output, "invisible")
}

func TestObserver_WithLoggerTakesPrecedence(testCase *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	observer := New(WithLogger(logger), WithFormat(FormatJSON))
	observer.Info(context.Background(), "plain")

	assert.Same(testCase, logger, observer.Logger())
	assert.Contains(testCase, buf.String(), "msg=plain")
}

func TestObserver_Span(testCase *testing.T) {
	var buf bytes.Buffer
	observer := New(WithOutput(&buf), WithLevel(slog.LevelDebug), WithFormat(FormatJSON))

	ctx, span := observer.StartSpan(context.Background(), "graph.execute", observability.Int("graph.total_nodes", 1))
	span.SetAttributes(observability.String("graph.entry_point", "objective_interpreter"))
	span.AddEvent("checkpoint")
	span.RecordError(errors.New("node failed"))
	span.SetStatus(observability.StatusError, "graph execution failed")
	span.End()

	require.NotNil(testCase, ctx)
	output := buf.String()
	assert.Contains(testCase, output, "span.start")
	assert.Contains(testCase, output, "checkpoint")
	assert.Contains(testCase, output, "node failed")
	assert.Contains(testCase, output, `"status":"error"`)
	assert.Contains(testCase, output, "span.end")
}

// recordingMetrics captures forwarded metric values.
type recordingMetrics struct {
	mutex      sync.Mutex
	counters   map[string]int64
	histograms map[string][]float64
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{counters: map[string]int64{}, histograms: map[string][]float64{}}
}

func (metrics *recordingMetrics) Counter(name string) observability.Counter {
	return recordingCounter{metrics: metrics, name: name}
}

func (metrics *recordingMetrics) Histogram(name string) observability.Histogram {
	return recordingHistogram{metrics: metrics, name: name}
}

type recordingCounter struct {
	metrics *recordingMetrics
	name    string
}

func (counter recordingCounter) Add(_ context.Context, value int64, _ ...observability.Attribute) {
	counter.metrics.mutex.Lock()
	defer counter.metrics.mutex.Unlock()
	counter.metrics.counters[counter.name] += value
}

type recordingHistogram struct {
	metrics *recordingMetrics
	name    string
}

func (histogram recordingHistogram) Record(_ context.Context, value float64, _ ...observability.Attribute) {
	histogram.metrics.mutex.Lock()
	defer histogram.metrics.mutex.Unlock()
	histogram.metrics.histograms[histogram.name] = append(histogram.metrics.histograms[histogram.name], value)
}

func TestObserver_MetricsForwarding(testCase *testing.T) {
	var buf bytes.Buffer
	forward := newRecordingMetrics()
	observer := New(WithOutput(&buf), WithLevel(slog.LevelDebug), WithMetrics(forward))
	ctx := context.Background()

	observer.Counter("planner.graph.node.count").Add(ctx, 2)
	observer.Counter("planner.graph.node.count").Add(ctx, 3)
	observer.Histogram("planner.graph.node.duration").Record(ctx, 0.25)

	assert.Equal(testCase, int64(5), forward.counters["planner.graph.node.count"])
	assert.Equal(testCase, []float64{0.25}, forward.histograms["planner.graph.node.duration"])
	assert.Contains(testCase, buf.String(), `"value":5`)
}

func TestObserver_CounterIsShared(testCase *testing.T) {
	observer := New(WithOutput(&bytes.Buffer{}))

	first := observer.Counter("requests")
	second := observer.Counter("requests")

	assert.Same(testCase, first, second)
}
