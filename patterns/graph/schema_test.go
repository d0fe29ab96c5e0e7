package graph

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdate_ZeroIsUntouched(testCase *testing.T) {
	var update Update[*string]
	_, written := update.Get()
	assert.False(testCase, written)
	assert.False(testCase, update.Written())

	update = Set[*string](nil)
	value, written := update.Get()
	assert.True(testCase, written)
	assert.Nil(testCase, value)
}

func TestNewSchema_Validation(testCase *testing.T) {
	trail := NewChannel("trail", ReducerAppend,
		func(state *testState) *[]string { return &state.Trail },
		func(patch *testPatch) Update[[]string] { return patch.Trail },
	)

	tests := []struct {
		name     string
		channels []Channel[testState, testPatch]
	}{
		{"no channels", nil},
		{"duplicate name", []Channel[testState, testPatch]{trail, trail}},
		{"empty name", []Channel[testState, testPatch]{NewChannel("", ReducerReplace,
			func(state *testState) **string { return &state.Status },
			func(patch *testPatch) Update[*string] { return patch.Status },
		)}},
		{"append on non slice", []Channel[testState, testPatch]{NewChannel("status", ReducerAppend,
			func(state *testState) **string { return &state.Status },
			func(patch *testPatch) Update[*string] { return patch.Status },
		)}},
		{"deep merge on slice", []Channel[testState, testPatch]{NewChannel("trail", ReducerDeepMerge,
			func(state *testState) *[]string { return &state.Trail },
			func(patch *testPatch) Update[[]string] { return patch.Trail },
		)}},
	}

	for _, test := range tests {
		testCase.Run(test.name, func(testCase *testing.T) {
			schema, err := NewSchema(test.channels...)
			assert.Nil(testCase, schema)

			var configErr *ConfigurationError
			assert.True(testCase, errors.As(err, &configErr))
		})
	}
}

func TestSchema_Fields(testCase *testing.T) {
	fields := newTestSchema(testCase).Fields()

	require.Len(testCase, fields, 3)
	assert.Equal(testCase, FieldInfo{Name: "trail", Reducer: ReducerAppend, Type: "[]string"}, fields[0])
	assert.Equal(testCase, FieldInfo{Name: "status", Reducer: ReducerReplace, Type: "*string"}, fields[1])
	assert.Equal(testCase, FieldInfo{Name: "outputs", Reducer: ReducerDeepMerge, Type: "map[string]interface {}"}, fields[2])
}

func TestSchema_FoldAppliesOnlyWrittenFields(testCase *testing.T) {
	schema := newTestSchema(testCase)
	state := testState{
		Trail:   []string{"start"},
		Status:  strPtr("pending"),
		Outputs: map[string]any{"keep": true},
	}

	next, changes, err := schema.Fold(state, testPatch{Trail: Set([]string{"one"})})
	require.NoError(testCase, err)

	assert.Equal(testCase, []string{"start", "one"}, next.Trail)
	assert.Equal(testCase, "pending", *next.Status)
	assert.Equal(testCase, map[string]any{"keep": true}, next.Outputs)
	assert.Equal(testCase, []FieldChange{{Field: "trail"}}, changes)

	// The input state is left as it was.
	assert.Equal(testCase, []string{"start"}, state.Trail)
}

func TestSchema_FoldExplicitAbsence(testCase *testing.T) {
	schema := newTestSchema(testCase)

	next, changes, err := schema.Fold(testState{Status: strPtr("parsed")}, testPatch{Status: Set[*string](nil)})
	require.NoError(testCase, err)

	assert.Nil(testCase, next.Status)
	assert.Equal(testCase, []FieldChange{{Field: "status"}}, changes)
}

func TestSchema_FoldReportsOverwrittenLeaves(testCase *testing.T) {
	schema := newTestSchema(testCase)
	state := testState{Outputs: map[string]any{
		"interpreter": map[string]any{"status": "parsed", "model": "a"},
	}}

	next, changes, err := schema.Fold(state, testPatch{Outputs: Set(map[string]any{
		"interpreter": map[string]any{"status": "malformed"},
		"planner":     map[string]any{"status": "done"},
	})})
	require.NoError(testCase, err)

	assert.Equal(testCase, map[string]any{
		"interpreter": map[string]any{"status": "malformed", "model": "a"},
		"planner":     map[string]any{"status": "done"},
	}, next.Outputs)
	require.Len(testCase, changes, 1)
	assert.Equal(testCase, "outputs", changes[0].Field)
	assert.Equal(testCase, []string{"interpreter.status"}, changes[0].Overwritten)

	// No key is ever removed from the input map.
	assert.Equal(testCase, "parsed", state.Outputs["interpreter"].(map[string]any)["status"])
}

func TestSchema_FoldEmptyPatch(testCase *testing.T) {
	schema := newTestSchema(testCase)
	state := testState{Trail: []string{"x"}}

	next, changes, err := schema.Fold(state, testPatch{})
	require.NoError(testCase, err)

	assert.Equal(testCase, state, next)
	assert.Empty(testCase, changes)
}
