package agents

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/leofalp/planner/patterns/graph"
)

// Workflow is the compiled planning graph.
type Workflow = graph.Compiled[SharedState, Patch]

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithGraphOptions passes graph options (timeout, observer) to the workflow
// builder.
func WithGraphOptions(opts ...graph.Option) ServiceOption {
	return func(service *Service) {
		service.graphOptions = append(service.graphOptions, opts...)
	}
}

// WithNodeTimeout bounds each run of the objective interpreter, which is
// where the model is called.
func WithNodeTimeout(timeout time.Duration) ServiceOption {
	return func(service *Service) {
		service.nodeTimeout = timeout
	}
}

// Service owns the compiled workflow of a process. The workflow is built on
// first use and shared read-only by every request; each Service has its own
// handle, so tests can create independent instances.
type Service struct {
	interpreter  graph.Node[SharedState, Patch]
	graphOptions []graph.Option
	nodeTimeout  time.Duration

	workflow *graph.Lazy[*Workflow]
	builds   atomic.Int32
}

// NewService creates a Service whose workflow runs interpreter as the
// objective interpreter node.
func NewService(interpreter graph.Node[SharedState, Patch], opts ...ServiceOption) *Service {
	service := &Service{interpreter: interpreter}
	for _, opt := range opts {
		opt(service)
	}

	service.workflow = graph.NewLazy(func() (*Workflow, error) {
		service.builds.Add(1)
		return BuildWorkflow(service.interpreter, service.nodeTimeout, service.graphOptions...)
	})

	return service
}

// Graph returns the compiled workflow, building it on the first call. Every
// later call returns the same pointer.
func (service *Service) Graph() (*Workflow, error) {
	return service.workflow.Get()
}

// Plan runs the workflow once for request and returns the final state. An
// error is an execution-level failure (a *graph.NodeError or a build
// error); recoverable model failures are part of the returned state.
func (service *Service) Plan(ctx context.Context, request string) (SharedState, error) {
	workflow, err := service.Graph()
	if err != nil {
		return SharedState{}, fmt.Errorf("build workflow: %w", err)
	}

	return workflow.Execute(ctx, NewState(request))
}

// BuildWorkflow wires the planning graph: the objective interpreter is the
// entry point and its only edge leads to the end.
func BuildWorkflow(interpreter graph.Node[SharedState, Patch], nodeTimeout time.Duration, opts ...graph.Option) (*Workflow, error) {
	schema, err := StateSchema()
	if err != nil {
		return nil, err
	}

	return graph.NewBuilder(schema, opts...).
		AddNode(ObjectiveInterpreterName, interpreter, graph.WithNodeTimeout(nodeTimeout)).
		SetEntryPoint(ObjectiveInterpreterName).
		AddEdge(ObjectiveInterpreterName, graph.End).
		Compile()
}
