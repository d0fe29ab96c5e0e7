package graph

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/leofalp/planner/providers/observability"
)

// testState is a small state with one field per reducer.
type testState struct {
	Trail   []string
	Status  *string
	Outputs map[string]any
}

type testPatch struct {
	Trail   Update[[]string]
	Status  Update[*string]
	Outputs Update[map[string]any]
}

func newTestSchema(testCase *testing.T) *Schema[testState, testPatch] {
	testCase.Helper()

	schema, err := NewSchema(
		NewChannel("trail", ReducerAppend,
			func(state *testState) *[]string { return &state.Trail },
			func(patch *testPatch) Update[[]string] { return patch.Trail },
		),
		NewChannel("status", ReducerReplace,
			func(state *testState) **string { return &state.Status },
			func(patch *testPatch) Update[*string] { return patch.Status },
		),
		NewChannel("outputs", ReducerDeepMerge,
			func(state *testState) *map[string]any { return &state.Outputs },
			func(patch *testPatch) Update[map[string]any] { return patch.Outputs },
		),
	)
	require.NoError(testCase, err)

	return schema
}

// trailNode appends its own name to the trail and records itself in outputs.
func trailNode(name string) Node[testState, testPatch] {
	return NodeFunc[testState, testPatch](func(_ context.Context, _ testState) (testPatch, error) {
		return testPatch{
			Trail:   Set([]string{name}),
			Outputs: Set(map[string]any{name: map[string]any{"status": "done"}}),
		}, nil
	})
}

func strPtr(value string) *string {
	return &value
}

// recordingProvider is a hand-written observability.Provider that keeps the
// span names, counter totals and log messages it receives.
type recordingProvider struct {
	mutex    sync.Mutex
	spans    []string
	counters map[string]int64
	messages map[string][]string
}

func newRecordingProvider() *recordingProvider {
	return &recordingProvider{
		counters: make(map[string]int64),
		messages: make(map[string][]string),
	}
}

func (provider *recordingProvider) StartSpan(ctx context.Context, name string, _ ...observability.Attribute) (context.Context, observability.Span) {
	provider.mutex.Lock()
	defer provider.mutex.Unlock()
	provider.spans = append(provider.spans, name)
	return ctx, noopSpan{}
}

func (provider *recordingProvider) Counter(name string) observability.Counter {
	return recordingCounter{provider: provider, name: name}
}

func (provider *recordingProvider) Histogram(string) observability.Histogram {
	return noopHistogram{}
}

func (provider *recordingProvider) log(level, msg string) {
	provider.mutex.Lock()
	defer provider.mutex.Unlock()
	provider.messages[level] = append(provider.messages[level], msg)
}

func (provider *recordingProvider) Trace(_ context.Context, msg string, _ ...observability.Attribute) {
	provider.log("trace", msg)
}

func (provider *recordingProvider) Debug(_ context.Context, msg string, _ ...observability.Attribute) {
	provider.log("debug", msg)
}

func (provider *recordingProvider) Info(_ context.Context, msg string, _ ...observability.Attribute) {
	provider.log("info", msg)
}

func (provider *recordingProvider) Warn(_ context.Context, msg string, _ ...observability.Attribute) {
	provider.log("warn", msg)
}

func (provider *recordingProvider) Error(_ context.Context, msg string, _ ...observability.Attribute) {
	provider.log("error", msg)
}

func (provider *recordingProvider) counter(name string) int64 {
	provider.mutex.Lock()
	defer provider.mutex.Unlock()
	return provider.counters[name]
}

func (provider *recordingProvider) logged(level string) []string {
	provider.mutex.Lock()
	defer provider.mutex.Unlock()
	return append([]string(nil), provider.messages[level]...)
}

type recordingCounter struct {
	provider *recordingProvider
	name     string
}

func (counter recordingCounter) Add(_ context.Context, value int64, _ ...observability.Attribute) {
	counter.provider.mutex.Lock()
	defer counter.provider.mutex.Unlock()
	counter.provider.counters[counter.name] += value
}

type noopSpan struct{}

func (noopSpan) End()                                        {}
func (noopSpan) SetAttributes(...observability.Attribute)    {}
func (noopSpan) SetStatus(observability.StatusCode, string)  {}
func (noopSpan) RecordError(error)                           {}
func (noopSpan) AddEvent(string, ...observability.Attribute) {}

type noopHistogram struct{}

func (noopHistogram) Record(context.Context, float64, ...observability.Attribute) {}
