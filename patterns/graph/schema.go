package graph

import (
	"fmt"
	"reflect"

	"github.com/leofalp/planner/core/merge"
)

// Update is a sparse per-field patch value. The zero Update leaves the field
// untouched; Set marks it as written, including when the written value is
// nil.
type Update[T any] struct {
	value   T
	written bool
}

// Set returns an Update that writes value.
func Set[T any](value T) Update[T] {
	return Update[T]{value: value, written: true}
}

// Get returns the written value and whether the field was written at all.
func (update Update[T]) Get() (T, bool) {
	return update.value, update.written
}

// Written reports whether the field was written.
func (update Update[T]) Written() bool {
	return update.written
}

// Channel declares one field of the shared state: its name, its reducer and
// how to reach it on both the state and the patch struct. Create channels with
// NewChannel.
type Channel[S, P any] struct {
	name      string
	reducer   Reducer
	valueType reflect.Type

	load   func(state *S) any
	store  func(state *S, value any) error
	lookup func(patch *P) (any, bool)
}

// NewChannel declares a state field of type V. stateField returns a pointer
// to the field inside a state value; patchField returns the matching Update
// from a patch value.
//
// Example:
//
//	graph.NewChannel("conversation", graph.ReducerAppend,
//	    func(state *State) *[]Message { return &state.Conversation },
//	    func(patch *Patch) graph.Update[[]Message] { return patch.Conversation },
//	)
func NewChannel[S, P, V any](name string, reducer Reducer, stateField func(*S) *V, patchField func(*P) Update[V]) Channel[S, P] {
	return Channel[S, P]{
		name:      name,
		reducer:   reducer,
		valueType: reflect.TypeOf((*V)(nil)).Elem(),
		load: func(state *S) any {
			return *stateField(state)
		},
		store: func(state *S, value any) error {
			if value == nil {
				var zero V
				*stateField(state) = zero
				return nil
			}

			typed, isType := value.(V)
			if !isType {
				return fmt.Errorf("field %q expects %T, got %T", name, *new(V), value)
			}

			*stateField(state) = typed
			return nil
		},
		lookup: func(patch *P) (any, bool) {
			value, written := patchField(patch).Get()
			if !written {
				return nil, false
			}
			return value, true
		},
	}
}

// Name returns the field name.
func (channel Channel[S, P]) Name() string {
	return channel.name
}

// Reducer returns the reducer tag of the field.
func (channel Channel[S, P]) Reducer() Reducer {
	return channel.reducer
}

// FieldInfo describes one entry of a Schema.
type FieldInfo struct {
	Name    string
	Reducer Reducer
	Type    string
}

// FieldChange describes a field written by a patch during Fold. For deep
// merged fields, Overwritten lists the dotted paths of existing leaves that
// the patch replaced with a different value.
type FieldChange struct {
	Field       string
	Overwritten []string
}

// stringMapType is the only value type accepted by ReducerDeepMerge.
var stringMapType = reflect.TypeOf(map[string]any(nil))

// Schema is the explicit field to reducer table of a state type S with its
// patch type P. It is immutable once created and safe for concurrent use.
type Schema[S, P any] struct {
	channels []Channel[S, P]
}

// NewSchema validates and returns a schema. It returns a ConfigurationError
// when a name is empty or repeated, or when a reducer does not fit the field
// type.
func NewSchema[S, P any](channels ...Channel[S, P]) (*Schema[S, P], error) {
	if len(channels) == 0 {
		return nil, &ConfigurationError{Reason: "schema must declare at least one field"}
	}

	seen := make(map[string]bool, len(channels))
	for _, channel := range channels {
		if channel.name == "" {
			return nil, &ConfigurationError{Reason: "schema field name must not be empty"}
		}
		if seen[channel.name] {
			return nil, &ConfigurationError{Subject: "field " + channel.name, Reason: "declared more than once"}
		}
		seen[channel.name] = true

		switch channel.reducer {
		case ReducerReplace:
		case ReducerAppend:
			if channel.valueType.Kind() != reflect.Slice {
				return nil, &ConfigurationError{
					Subject: "field " + channel.name,
					Reason:  fmt.Sprintf("append reducer requires a slice, got %s", channel.valueType),
				}
			}
		case ReducerDeepMerge:
			if channel.valueType != stringMapType {
				return nil, &ConfigurationError{
					Subject: "field " + channel.name,
					Reason:  fmt.Sprintf("deep merge reducer requires map[string]any, got %s", channel.valueType),
				}
			}
		default:
			return nil, &ConfigurationError{Subject: "field " + channel.name, Reason: "unknown reducer " + channel.reducer.String()}
		}
	}

	return &Schema[S, P]{channels: append([]Channel[S, P](nil), channels...)}, nil
}

// Fields describes the table in declaration order.
func (schema *Schema[S, P]) Fields() []FieldInfo {
	fields := make([]FieldInfo, 0, len(schema.channels))
	for _, channel := range schema.channels {
		fields = append(fields, FieldInfo{
			Name:    channel.name,
			Reducer: channel.reducer,
			Type:    channel.valueType.String(),
		})
	}
	return fields
}

// Fold applies every written field of patch to a copy of state, in table
// order, and returns the new state with the list of written fields. The state
// value passed in is not modified: replaced fields are reassigned on the copy,
// appended slices and merged maps are freshly allocated.
func (schema *Schema[S, P]) Fold(state S, patch P) (S, []FieldChange, error) {
	next := state
	changes := make([]FieldChange, 0)

	for _, channel := range schema.channels {
		update, written := channel.lookup(&patch)
		if !written {
			continue
		}

		current := channel.load(&next)

		change := FieldChange{Field: channel.name}
		if channel.reducer == ReducerDeepMerge {
			currentMap, _ := current.(map[string]any)
			updateMap, _ := update.(map[string]any)
			change.Overwritten = merge.Conflicts(currentMap, updateMap)
		}

		combined, err := channel.reducer.Apply(current, update)
		if err != nil {
			return state, nil, fmt.Errorf("field %q: %w", channel.name, err)
		}

		if err := channel.store(&next, combined); err != nil {
			return state, nil, err
		}

		changes = append(changes, change)
	}

	return next, changes, nil
}
