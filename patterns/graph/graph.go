package graph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/leofalp/planner/providers/observability"
)

// End is the reserved terminal marker. An edge pointing to End finishes the
// execution; End can never be registered as a node or used as an edge source.
const End = "__end__"

// ErrNoRoute is wrapped in a NodeError when none of the outgoing edges of a
// node accepts the state produced by that node.
var ErrNoRoute = errors.New("no outgoing edge matched")

// Node is the contract every graph step implements. Run receives a snapshot
// of the shared state and returns a patch containing only the fields the node
// owns.
//
// Implementations must treat the slices and maps reachable from state as
// read-only. Recoverable failures (for example a malformed model answer)
// belong in the patch; a returned error aborts the whole execution.
type Node[S, P any] interface {
	Run(ctx context.Context, state S) (P, error)
}

// NodeFunc is an adapter that allows using an ordinary function as a Node.
type NodeFunc[S, P any] func(ctx context.Context, state S) (P, error)

// Run calls the underlying function, satisfying the Node interface.
func (nodeFunc NodeFunc[S, P]) Run(ctx context.Context, state S) (P, error) {
	return nodeFunc(ctx, state)
}

// EdgeCondition decides whether an edge is taken. It receives the state
// produced by the source node, after its patch has been folded in.
//
// A nil EdgeCondition means the edge is unconditional.
type EdgeCondition[S any] func(ctx context.Context, state S) bool

// ConfigurationError reports a graph that cannot be compiled. Subject names
// the offending node or edge.
type ConfigurationError struct {
	Subject string
	Reason  string
}

// Error implements the error interface.
func (configErr *ConfigurationError) Error() string {
	if configErr.Subject == "" {
		return "graph configuration: " + configErr.Reason
	}
	return fmt.Sprintf("graph configuration: %s: %s", configErr.Subject, configErr.Reason)
}

// NodeError reports an execution-level failure attributed to a node: an
// error returned by the node, a recovered panic, a state fold failure, a
// missing route or a context cancellation observed before the node started.
type NodeError struct {
	Node string
	Err  error
}

// Error implements the error interface.
func (nodeErr *NodeError) Error() string {
	return fmt.Sprintf("node %q failed: %v", nodeErr.Node, nodeErr.Err)
}

// Unwrap returns the underlying cause.
func (nodeErr *NodeError) Unwrap() error {
	return nodeErr.Err
}

// node represents a single registered step.
type node[S, P any] struct {
	// name is the unique identifier of this node within the graph.
	name string

	// runner contains the processing logic.
	runner Node[S, P]

	// timeout bounds a single run of this node. Zero means no node timeout.
	timeout time.Duration
}

// edge represents a directed connection between two nodes.
type edge[S any] struct {
	from string
	to   string

	// condition is nil for unconditional edges.
	condition EdgeCondition[S]
}

// graphConfig holds the configuration populated by Options.
type graphConfig struct {
	// executionTimeout bounds a whole Execute call. Zero means no timeout.
	executionTimeout time.Duration

	// observer receives spans, metrics and logs. When nil, the observer found
	// in the Execute context is used, if any.
	observer observability.Provider
}

// EdgeInfo describes a compiled edge for introspection.
type EdgeInfo struct {
	From        string
	To          string
	Conditional bool
}

// Compiled is a validated, executable graph. It is immutable after
// Builder.Compile returns it and safe for concurrent Execute calls: all
// per-run data lives inside Execute.
type Compiled[S, P any] struct {
	schema *Schema[S, P]

	// nodes maps node names to their definitions.
	nodes map[string]*node[S, P]

	// nodeOrder preserves registration order for introspection.
	nodeOrder []string

	// outgoing maps a node name to its edges in declaration order.
	outgoing map[string][]*edge[S]

	// edges contains all edges in declaration order.
	edges []*edge[S]

	entryPoint string

	config graphConfig
}

// Nodes returns the registered node names in registration order.
func (compiled *Compiled[S, P]) Nodes() []string {
	return append([]string(nil), compiled.nodeOrder...)
}

// EntryPoint returns the name of the first node executed.
func (compiled *Compiled[S, P]) EntryPoint() string {
	return compiled.entryPoint
}

// Edges returns the compiled edges in declaration order.
func (compiled *Compiled[S, P]) Edges() []EdgeInfo {
	infos := make([]EdgeInfo, 0, len(compiled.edges))
	for _, graphEdge := range compiled.edges {
		infos = append(infos, EdgeInfo{
			From:        graphEdge.from,
			To:          graphEdge.to,
			Conditional: graphEdge.condition != nil,
		})
	}
	return infos
}

// Schema returns the reducer table the graph folds patches with.
func (compiled *Compiled[S, P]) Schema() *Schema[S, P] {
	return compiled.schema
}
