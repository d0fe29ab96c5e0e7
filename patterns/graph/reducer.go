package graph

import (
	"fmt"
	"reflect"

	"github.com/leofalp/planner/core/merge"
)

// Reducer tags how a state field combines its current value with a value
// written by a node.
type Reducer int

const (
	// ReducerReplace overwrites the current value with the written one. A
	// written nil is kept as nil, which is how nodes record an explicit
	// absence.
	ReducerReplace Reducer = iota

	// ReducerAppend concatenates the written slice after the current one,
	// preserving order. Both values must share the same slice type.
	ReducerAppend

	// ReducerDeepMerge folds the written map[string]any into the current one
	// with merge.DeepMerge.
	ReducerDeepMerge
)

// String returns the reducer name used in logs and error messages.
func (reducer Reducer) String() string {
	switch reducer {
	case ReducerReplace:
		return "replace"
	case ReducerAppend:
		return "append"
	case ReducerDeepMerge:
		return "deep_merge"
	default:
		return fmt.Sprintf("reducer(%d)", int(reducer))
	}
}

// Apply combines current and update according to the reducer tag. Neither
// input is modified; Append and DeepMerge always return fresh containers.
func (reducer Reducer) Apply(current, update any) (any, error) {
	switch reducer {
	case ReducerReplace:
		return update, nil
	case ReducerAppend:
		return appendSlices(current, update)
	case ReducerDeepMerge:
		return deepMergeMaps(current, update)
	default:
		return nil, fmt.Errorf("unknown reducer %s", reducer)
	}
}

// appendSlices returns current ++ update in a new backing array.
func appendSlices(current, update any) (any, error) {
	if update == nil {
		return current, nil
	}

	updateValue := reflect.ValueOf(update)
	if updateValue.Kind() != reflect.Slice {
		return nil, fmt.Errorf("append reducer expects a slice update, got %T", update)
	}

	if current == nil {
		current = reflect.Zero(updateValue.Type()).Interface()
	}

	currentValue := reflect.ValueOf(current)
	if currentValue.Kind() != reflect.Slice {
		return nil, fmt.Errorf("append reducer expects a slice state value, got %T", current)
	}

	if currentValue.Type() != updateValue.Type() {
		return nil, fmt.Errorf("append reducer cannot combine %T with %T", current, update)
	}

	combined := reflect.MakeSlice(currentValue.Type(), 0, currentValue.Len()+updateValue.Len())
	combined = reflect.AppendSlice(combined, currentValue)
	combined = reflect.AppendSlice(combined, updateValue)

	return combined.Interface(), nil
}

// deepMergeMaps merges two map[string]any values.
func deepMergeMaps(current, update any) (any, error) {
	currentMap, err := asStringMap(current)
	if err != nil {
		return nil, fmt.Errorf("deep merge reducer state value: %w", err)
	}

	updateMap, err := asStringMap(update)
	if err != nil {
		return nil, fmt.Errorf("deep merge reducer update: %w", err)
	}

	return merge.DeepMerge(currentMap, updateMap), nil
}

func asStringMap(value any) (map[string]any, error) {
	if value == nil {
		return nil, nil
	}

	typed, isMap := value.(map[string]any)
	if !isMap {
		return nil, fmt.Errorf("expected map[string]any, got %T", value)
	}

	return typed, nil
}
