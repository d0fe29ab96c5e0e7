package bridge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunSync_ReturnsResult(testCase *testing.T) {
	value, err := RunSync(context.Background(), func(ctx context.Context) (string, error) {
		assert.True(testCase, Active(ctx))
		return "done", nil
	})

	require.NoError(testCase, err)
	assert.Equal(testCase, "done", value)
}

func TestRunSync_ReturnsTaskError(testCase *testing.T) {
	taskErr := errors.New("task failed")

	_, err := RunSync(context.Background(), func(context.Context) (int, error) {
		return 0, taskErr
	})

	require.ErrorIs(testCase, err, taskErr)
}

func TestRunSync_NestedFailsFast(testCase *testing.T) {
	finished := make(chan error, 1)

	go func() {
		_, err := RunSync(context.Background(), func(ctx context.Context) (int, error) {
			return RunSync(ctx, func(context.Context) (int, error) {
				return 1, nil
			})
		})
		finished <- err
	}()

	select {
	case err := <-finished:
		require.ErrorIs(testCase, err, ErrNestedBridge)
	case <-time.After(2 * time.Second):
		testCase.Fatal("nested RunSync did not return")
	}
}

func TestRunSync_PanicBecomesError(testCase *testing.T) {
	_, err := RunSync(context.Background(), func(context.Context) (int, error) {
		panic("boom")
	})

	var panicErr *PanicError
	require.True(testCase, errors.As(err, &panicErr))
	assert.Equal(testCase, "boom", panicErr.Value)
	assert.NotEmpty(testCase, panicErr.Stack)
	assert.Contains(testCase, panicErr.Error(), "boom")
}

func TestRunSync_ContextCanceledWhileRunning(testCase *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	release := make(chan struct{})
	defer close(release)

	_, err := RunSync(ctx, func(context.Context) (int, error) {
		<-release
		return 1, nil
	})

	require.ErrorIs(testCase, err, context.DeadlineExceeded)
}

func TestRunSync_ContextAlreadyDone(testCase *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	_, err := RunSync(ctx, func(context.Context) (int, error) {
		called = true
		return 1, nil
	})

	require.ErrorIs(testCase, err, context.Canceled)
	assert.False(testCase, called)
}

func TestActive_PlainContext(testCase *testing.T) {
	assert.False(testCase, Active(context.Background()))
}
