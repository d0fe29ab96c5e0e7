package graph

import "sync"

// Lazy builds a value on first use and returns the same value afterwards.
// It is meant for compiled graphs that are shared by every request of a
// process: the build runs at most once even when the first calls race.
//
// A failed build is not cached. The error is returned to the caller and the
// next Get tries again.
//
// Example:
//
//	var workflow = graph.NewLazy(func() (*graph.Compiled[State, Patch], error) {
//	    return buildWorkflow()
//	})
//
//	compiled, err := workflow.Get()
type Lazy[T any] struct {
	build func() (T, error)

	mutex sync.RWMutex
	value T
	built bool
}

// NewLazy returns a Lazy that calls build on first use.
func NewLazy[T any](build func() (T, error)) *Lazy[T] {
	return &Lazy[T]{build: build}
}

// Get returns the cached value, building it first if needed.
func (lazy *Lazy[T]) Get() (T, error) {
	// Fast path: read lock for the common case where the value exists.
	lazy.mutex.RLock()
	if lazy.built {
		value := lazy.value
		lazy.mutex.RUnlock()
		return value, nil
	}
	lazy.mutex.RUnlock()

	// Slow path: write lock to build. Double-check because another goroutine
	// may have built the value between the two locks.
	lazy.mutex.Lock()
	defer lazy.mutex.Unlock()

	if lazy.built {
		return lazy.value, nil
	}

	value, err := lazy.build()
	if err != nil {
		var zero T
		return zero, err
	}

	lazy.value = value
	lazy.built = true

	return value, nil
}

// Built reports whether a value has been cached.
func (lazy *Lazy[T]) Built() bool {
	lazy.mutex.RLock()
	defer lazy.mutex.RUnlock()
	return lazy.built
}
