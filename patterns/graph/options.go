package graph

import (
	"time"

	"github.com/leofalp/planner/providers/observability"
)

// Option is a functional option for configuring graph behavior.
// Options are applied by NewBuilder.
type Option func(*graphConfig)

// NodeOption is a functional option for configuring a single node.
// Node options are applied by Builder.AddNode.
type NodeOption func(*nodeConfig)

// EdgeOption is a functional option for configuring a single edge.
// Edge options are applied by Builder.AddEdge.
type EdgeOption[S any] func(*edge[S])

// nodeConfig collects node options before the node is registered.
type nodeConfig struct {
	timeout time.Duration
}

// --- Graph Options ---

// WithExecutionTimeout sets the maximum duration of a whole Execute call.
// When it expires, the running node sees a canceled context and the next node
// is never started. A value of 0 (default) means no timeout.
//
// Example:
//
//	graph.NewBuilder(schema,
//	    graph.WithExecutionTimeout(2 * time.Minute),
//	)
func WithExecutionTimeout(timeout time.Duration) Option {
	return func(config *graphConfig) {
		config.executionTimeout = timeout
	}
}

// WithObserver sets the observability provider used for spans, metrics and
// logs. Without it, Execute falls back to the provider stored in its context
// by observability.ContextWithObserver, and records nothing if there is none.
func WithObserver(observer observability.Provider) Option {
	return func(config *graphConfig) {
		config.observer = observer
	}
}

// --- Node Options ---

// WithNodeTimeout bounds a single run of the node. The node receives a
// context that is canceled when the timeout expires; nodes calling remote
// models should pass it through so the call is abandoned.
//
// Example:
//
//	builder.AddNode("interpret", interpreter,
//	    graph.WithNodeTimeout(30 * time.Second),
//	)
func WithNodeTimeout(timeout time.Duration) NodeOption {
	return func(config *nodeConfig) {
		config.timeout = timeout
	}
}

// --- Edge Options ---

// WithEdgeCondition makes the edge conditional. Outgoing edges of a node are
// evaluated in declaration order after the node's patch is folded; the first
// edge whose condition returns true (or which has no condition) is taken.
//
// Example:
//
//	builder.AddEdge("classify", "roadmap",
//	    graph.WithEdgeCondition(func(ctx context.Context, state State) bool {
//	        return state.Kind == "roadmap"
//	    }),
//	)
func WithEdgeCondition[S any](condition EdgeCondition[S]) EdgeOption[S] {
	return func(edgeConfig *edge[S]) {
		edgeConfig.condition = condition
	}
}
