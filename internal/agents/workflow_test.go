package agents

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leofalp/planner/patterns/graph"
)

func newTestService(testCase *testing.T, provider *mockProvider) *Service {
	testCase.Helper()
	interpreter, err := NewObjectiveInterpreter(provider)
	require.NoError(testCase, err)
	return NewService(interpreter)
}

func TestService_PlanSingleNode(testCase *testing.T) {
	provider := answering(validObjectiveJSON)
	service := newTestService(testCase, provider)

	final, err := service.Plan(context.Background(), "Soạn bài về phương trình bậc hai, lớp 9")
	require.NoError(testCase, err)

	assert.Equal(testCase, 1, provider.calls())
	assert.Equal(testCase, []Message{{Role: RoleUser, Content: "Soạn bài về phương trình bậc hai, lớp 9"}}, final.Conversation)
	require.NotNil(testCase, final.AnalyzedObjective)
	assert.NoError(testCase, final.AnalyzedObjective.Validate())
	assert.Contains(testCase, final.AgentOutputs, ObjectiveInterpreterName)
	assert.Nil(testCase, final.FinalOutput)
}

func TestService_PlanRecordsAbsentObjective(testCase *testing.T) {
	service := newTestService(testCase, answering(`{"action_verb": "giải"}`))

	final, err := service.Plan(context.Background(), "Soạn bài")
	require.NoError(testCase, err)

	assert.Nil(testCase, final.AnalyzedObjective)
	text, err := MarshalTransport(final)
	require.NoError(testCase, err)
	assert.Contains(testCase, text, `"analyzed_objective": null`)
	assert.Contains(testCase, text, `"status": "malformed"`)
}

func TestService_GraphIsBuiltOnce(testCase *testing.T) {
	service := newTestService(testCase, answering(validObjectiveJSON))

	var waitGroup sync.WaitGroup
	workflows := make([]*Workflow, 16)
	for index := range workflows {
		waitGroup.Add(1)
		go func(index int) {
			defer waitGroup.Done()
			workflow, err := service.Graph()
			assert.NoError(testCase, err)
			workflows[index] = workflow
		}(index)
	}
	waitGroup.Wait()

	for _, workflow := range workflows {
		assert.Same(testCase, workflows[0], workflow)
	}
	assert.Equal(testCase, int32(1), service.builds.Load())

	_, err := service.Plan(context.Background(), "Soạn bài")
	require.NoError(testCase, err)
	assert.Equal(testCase, int32(1), service.builds.Load())
}

func TestService_IndependentInstances(testCase *testing.T) {
	first, err := newTestService(testCase, answering(validObjectiveJSON)).Graph()
	require.NoError(testCase, err)
	second, err := newTestService(testCase, answering(validObjectiveJSON)).Graph()
	require.NoError(testCase, err)

	assert.NotSame(testCase, first, second)
}

func TestService_NodeErrorPropagates(testCase *testing.T) {
	failing := graph.NodeFunc[SharedState, Patch](func(context.Context, SharedState) (Patch, error) {
		return Patch{}, errors.New("boom")
	})
	service := NewService(failing)

	_, err := service.Plan(context.Background(), "Soạn bài")

	var nodeErr *graph.NodeError
	require.True(testCase, errors.As(err, &nodeErr))
	assert.Equal(testCase, ObjectiveInterpreterName, nodeErr.Node)

	// The cached workflow survives the failure.
	assert.Equal(testCase, int32(1), service.builds.Load())
}

func TestService_BuildErrorIsReturned(testCase *testing.T) {
	service := NewService(nil)

	_, err := service.Plan(context.Background(), "Soạn bài")
	require.Error(testCase, err)

	var configErr *graph.ConfigurationError
	assert.True(testCase, errors.As(err, &configErr))
}

func TestBuildWorkflow_Shape(testCase *testing.T) {
	interpreter, err := NewObjectiveInterpreter(answering(validObjectiveJSON))
	require.NoError(testCase, err)

	workflow, err := BuildWorkflow(interpreter, 0)
	require.NoError(testCase, err)

	assert.Equal(testCase, []string{ObjectiveInterpreterName}, workflow.Nodes())
	assert.Equal(testCase, ObjectiveInterpreterName, workflow.EntryPoint())
	assert.Equal(testCase, []graph.EdgeInfo{{From: ObjectiveInterpreterName, To: graph.End}}, workflow.Edges())
}
