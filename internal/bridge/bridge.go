// Package bridge lets a blocking caller, such as an HTTP handler, run one
// context-aware task to completion.
//
// RunSync starts the task on its own goroutine and waits for it. The context
// handed to the task is marked, and RunSync refuses to start from a marked
// context: a task that tries to bridge again fails fast with ErrNestedBridge
// instead of waiting on itself.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
)

// ErrNestedBridge is returned when RunSync is called from inside a task that
// is already running under RunSync.
var ErrNestedBridge = errors.New("bridge: RunSync called from inside a bridged task")

// PanicError wraps a panic raised by a bridged task.
type PanicError struct {
	Value any
	Stack []byte
}

// Error implements the error interface.
func (panicErr *PanicError) Error() string {
	return fmt.Sprintf("bridge: task panicked: %v", panicErr.Value)
}

type bridgeKey struct{}

// Active reports whether ctx belongs to a bridged task.
func Active(ctx context.Context) bool {
	active, _ := ctx.Value(bridgeKey{}).(bool)
	return active
}

type result[T any] struct {
	value T
	err   error
}

// RunSync runs task on a dedicated goroutine and blocks until it returns or
// ctx is done. When ctx is done first, RunSync returns ctx.Err() right away;
// the task sees the same cancellation and its result is discarded.
func RunSync[T any](ctx context.Context, task func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	if Active(ctx) {
		return zero, ErrNestedBridge
	}
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	taskContext := context.WithValue(ctx, bridgeKey{}, true)
	done := make(chan result[T], 1)

	go func() {
		defer func() {
			if recovered := recover(); recovered != nil {
				done <- result[T]{err: &PanicError{Value: recovered, Stack: debug.Stack()}}
			}
		}()

		value, err := task(taskContext)
		done <- result[T]{value: value, err: err}
	}()

	select {
	case outcome := <-done:
		return outcome.value, outcome.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
