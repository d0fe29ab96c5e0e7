package graph

import (
	"errors"
	"fmt"
	"sort"
)

// Builder constructs a validated Compiled graph using a fluent API. Nodes and
// edges are added incrementally; misuse is recorded and reported by Compile,
// which also performs structural validation including cycle detection via
// Kahn's algorithm.
//
// The builder enforces the following constraints:
//   - Node names are unique, non-empty and never equal to End
//   - The entry point names a registered node
//   - Edge sources are registered nodes, edge targets are registered nodes or End
//   - No duplicate edges and no self-loops
//   - Every node has at least one outgoing edge, at most one of them
//     unconditional, and the unconditional edge is declared last
//   - Every node is reachable from the entry point
//   - The graph is acyclic, so every execution terminates
//
// Example:
//
//	compiled, err := graph.NewBuilder(schema).
//	    AddNode("interpret", interpreter).
//	    AddNode("plan", planner).
//	    SetEntryPoint("interpret").
//	    AddEdge("interpret", "plan").
//	    AddEdge("plan", graph.End).
//	    Compile()
type Builder[S, P any] struct {
	// schema folds node patches into the state.
	schema *Schema[S, P]

	// config holds the graph-level configuration populated from Options.
	config graphConfig

	// nodes stores all registered nodes keyed by their name.
	nodes map[string]*node[S, P]

	// nodeOrder preserves the registration order of nodes for deterministic
	// error messages and introspection.
	nodeOrder []string

	// edges stores all registered edges in declaration order.
	edges []*edge[S]

	// entryPoint is the first node executed.
	entryPoint string

	// buildErrors accumulates errors encountered during AddNode/AddEdge and
	// is reported when Compile is called.
	buildErrors []error
}

// NewBuilder creates a Builder whose nodes produce patches folded through
// schema. Graph-level options (WithExecutionTimeout, WithObserver) are applied
// here. Node and edge options are applied by AddNode and AddEdge.
func NewBuilder[S, P any](schema *Schema[S, P], opts ...Option) *Builder[S, P] {
	builder := &Builder[S, P]{
		schema:      schema,
		nodes:       make(map[string]*node[S, P]),
		nodeOrder:   make([]string, 0),
		edges:       make([]*edge[S], 0),
		buildErrors: make([]error, 0),
	}

	for _, opt := range opts {
		opt(&builder.config)
	}

	return builder
}

// AddNode registers a node under a unique name.
//
// Returns the builder for method chaining. An empty, reserved or repeated name
// and a nil node are recorded as build errors and reported by Compile.
func (builder *Builder[S, P]) AddNode(name string, runner Node[S, P], opts ...NodeOption) *Builder[S, P] {
	if name == "" {
		builder.buildErrors = append(builder.buildErrors, &ConfigurationError{Reason: "node name must not be empty"})
		return builder
	}

	if name == End {
		builder.buildErrors = append(builder.buildErrors, &ConfigurationError{Subject: "node " + name, Reason: "name is reserved for the terminal marker"})
		return builder
	}

	if runner == nil {
		builder.buildErrors = append(builder.buildErrors, &ConfigurationError{Subject: "node " + name, Reason: "node must not be nil"})
		return builder
	}

	if _, exists := builder.nodes[name]; exists {
		builder.buildErrors = append(builder.buildErrors, &ConfigurationError{Subject: "node " + name, Reason: "registered more than once"})
		return builder
	}

	config := nodeConfig{}
	for _, opt := range opts {
		opt(&config)
	}

	builder.nodes[name] = &node[S, P]{
		name:    name,
		runner:  runner,
		timeout: config.timeout,
	}
	builder.nodeOrder = append(builder.nodeOrder, name)

	return builder
}

// SetEntryPoint names the first node executed. Calling it again replaces the
// previous entry point.
func (builder *Builder[S, P]) SetEntryPoint(name string) *Builder[S, P] {
	builder.entryPoint = name
	return builder
}

// AddEdge declares a transition from one node to another node or to End.
// Edge options (WithEdgeCondition) can make the edge conditional.
//
// Returns the builder for method chaining. Endpoint problems are detected
// by Compile, so edges may be declared before their nodes.
func (builder *Builder[S, P]) AddEdge(from, to string, opts ...EdgeOption[S]) *Builder[S, P] {
	if from == "" || to == "" {
		builder.buildErrors = append(builder.buildErrors, &ConfigurationError{
			Subject: edgeSubject(from, to),
			Reason:  "edge endpoints must not be empty",
		})
		return builder
	}

	if from == to {
		builder.buildErrors = append(builder.buildErrors, &ConfigurationError{
			Subject: edgeSubject(from, to),
			Reason:  "self-loop",
		})
		return builder
	}

	graphEdge := &edge[S]{
		from: from,
		to:   to,
	}

	for _, opt := range opts {
		opt(graphEdge)
	}

	builder.edges = append(builder.edges, graphEdge)

	return builder
}

// Compile validates the graph and produces an immutable Compiled graph.
// Every problem found is reported: the returned error joins one
// *ConfigurationError per problem, so errors.As retrieves the first one.
//
// Validation steps:
//
//  1. Errors accumulated by AddNode/AddEdge
//  2. Schema present, at least one node, entry point registered
//  3. Edge endpoints registered, no duplicate edges
//  4. Routing: every node has an outgoing edge, one unconditional edge at most,
//     declared last
//  5. Reachability from the entry point
//  6. Acyclicity via Kahn's algorithm
func (builder *Builder[S, P]) Compile() (*Compiled[S, P], error) {
	problems := append([]error(nil), builder.buildErrors...)

	if builder.schema == nil {
		problems = append(problems, &ConfigurationError{Reason: "schema must not be nil"})
	}

	if len(builder.nodes) == 0 {
		problems = append(problems, &ConfigurationError{Reason: "graph must contain at least one node"})
	}

	switch {
	case builder.entryPoint == "":
		problems = append(problems, &ConfigurationError{Reason: "entry point is not set"})
	case builder.nodes[builder.entryPoint] == nil:
		problems = append(problems, &ConfigurationError{
			Subject: "entry point " + builder.entryPoint,
			Reason:  "not a registered node",
		})
	}

	validEdges, edgeProblems := builder.validateEdges()
	problems = append(problems, edgeProblems...)

	outgoing := groupOutgoing(validEdges)
	problems = append(problems, builder.validateRouting(outgoing)...)

	if builder.nodes[builder.entryPoint] != nil {
		problems = append(problems, builder.validateReachability(outgoing)...)
	}

	inDegree, adjacency := builder.buildAdjacency(validEdges)
	if err := kahnTopologicalSort(inDegree, adjacency, builder.nodeOrder); err != nil {
		problems = append(problems, err)
	}

	if len(problems) > 0 {
		return nil, errors.Join(problems...)
	}

	return &Compiled[S, P]{
		schema:     builder.schema,
		nodes:      copyNodes(builder.nodes),
		nodeOrder:  append([]string(nil), builder.nodeOrder...),
		outgoing:   outgoing,
		edges:      validEdges,
		entryPoint: builder.entryPoint,
		config:     builder.config,
	}, nil
}

// validateEdges checks edge endpoints and duplicates. It returns the edges
// that passed, in declaration order.
func (builder *Builder[S, P]) validateEdges() ([]*edge[S], []error) {
	valid := make([]*edge[S], 0, len(builder.edges))
	problems := make([]error, 0)
	edgeSet := make(map[string]bool, len(builder.edges))

	for _, graphEdge := range builder.edges {
		subject := edgeSubject(graphEdge.from, graphEdge.to)

		if graphEdge.from == End {
			problems = append(problems, &ConfigurationError{Subject: subject, Reason: "the terminal marker cannot have outgoing edges"})
			continue
		}

		if _, exists := builder.nodes[graphEdge.from]; !exists {
			problems = append(problems, &ConfigurationError{Subject: subject, Reason: fmt.Sprintf("source node %q is not registered", graphEdge.from)})
			continue
		}

		if _, exists := builder.nodes[graphEdge.to]; !exists && graphEdge.to != End {
			problems = append(problems, &ConfigurationError{Subject: subject, Reason: fmt.Sprintf("target node %q is not registered", graphEdge.to)})
			continue
		}

		if edgeSet[subject] {
			problems = append(problems, &ConfigurationError{Subject: subject, Reason: "declared more than once"})
			continue
		}
		edgeSet[subject] = true

		valid = append(valid, graphEdge)
	}

	return valid, problems
}

// validateRouting checks that every node can always leave: it needs at least
// one outgoing edge, and an unconditional edge, if any, must be unique and
// declared last so that later edges are never shadowed.
func (builder *Builder[S, P]) validateRouting(outgoing map[string][]*edge[S]) []error {
	problems := make([]error, 0)

	for _, nodeName := range builder.nodeOrder {
		nodeEdges := outgoing[nodeName]
		if len(nodeEdges) == 0 {
			problems = append(problems, &ConfigurationError{
				Subject: "node " + nodeName,
				Reason:  "has no outgoing edge; add an edge to End to finish there",
			})
			continue
		}

		unconditional := 0
		for index, graphEdge := range nodeEdges {
			if graphEdge.condition != nil {
				continue
			}
			unconditional++
			if index != len(nodeEdges)-1 {
				problems = append(problems, &ConfigurationError{
					Subject: edgeSubject(graphEdge.from, graphEdge.to),
					Reason:  "unconditional edge must be declared after the conditional edges of its node",
				})
			}
		}

		if unconditional > 1 {
			problems = append(problems, &ConfigurationError{
				Subject: "node " + nodeName,
				Reason:  fmt.Sprintf("has %d unconditional outgoing edges", unconditional),
			})
		}
	}

	return problems
}

// validateReachability walks the edges from the entry point and reports
// every registered node it never reaches.
func (builder *Builder[S, P]) validateReachability(outgoing map[string][]*edge[S]) []error {
	visited := map[string]bool{builder.entryPoint: true}
	queue := []string{builder.entryPoint}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, graphEdge := range outgoing[current] {
			if graphEdge.to == End || visited[graphEdge.to] {
				continue
			}
			visited[graphEdge.to] = true
			queue = append(queue, graphEdge.to)
		}
	}

	problems := make([]error, 0)
	for _, nodeName := range builder.nodeOrder {
		if !visited[nodeName] {
			problems = append(problems, &ConfigurationError{
				Subject: "node " + nodeName,
				Reason:  "unreachable from entry point " + builder.entryPoint,
			})
		}
	}

	return problems
}

// buildAdjacency constructs the in-degree map and adjacency list over the
// registered nodes. Edges to End do not take part in cycle detection.
func (builder *Builder[S, P]) buildAdjacency(validEdges []*edge[S]) (map[string]int, map[string][]string) {
	inDegree := make(map[string]int, len(builder.nodes))
	adjacency := make(map[string][]string, len(builder.nodes))

	for nodeName := range builder.nodes {
		inDegree[nodeName] = 0
		adjacency[nodeName] = make([]string, 0)
	}

	for _, graphEdge := range validEdges {
		if graphEdge.to == End {
			continue
		}
		adjacency[graphEdge.from] = append(adjacency[graphEdge.from], graphEdge.to)
		inDegree[graphEdge.to]++
	}

	return inDegree, adjacency
}

// kahnTopologicalSort runs Kahn's algorithm and reports a cycle when some
// nodes never reach in-degree zero. Roots are processed in registration
// order so that the outcome is deterministic.
func kahnTopologicalSort(inDegree map[string]int, adjacency map[string][]string, nodeOrder []string) error {
	queue := make([]string, 0)
	for _, nodeName := range nodeOrder {
		if inDegree[nodeName] == 0 {
			queue = append(queue, nodeName)
		}
	}

	processedCount := 0
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		processedCount++

		for _, neighbor := range adjacency[current] {
			inDegree[neighbor]--
			if inDegree[neighbor] == 0 {
				queue = append(queue, neighbor)
			}
		}
	}

	if processedCount == len(inDegree) {
		return nil
	}

	cycleNodes := make([]string, 0)
	for nodeName, degree := range inDegree {
		if degree > 0 {
			cycleNodes = append(cycleNodes, nodeName)
		}
	}
	sort.Strings(cycleNodes)

	return &ConfigurationError{
		Subject: fmt.Sprintf("nodes %v", cycleNodes),
		Reason:  "cycle detected",
	}
}

// groupOutgoing indexes edges by source node, keeping declaration order.
func groupOutgoing[S any](edges []*edge[S]) map[string][]*edge[S] {
	outgoing := make(map[string][]*edge[S])
	for _, graphEdge := range edges {
		outgoing[graphEdge.from] = append(outgoing[graphEdge.from], graphEdge)
	}
	return outgoing
}

func copyNodes[S, P any](nodes map[string]*node[S, P]) map[string]*node[S, P] {
	copied := make(map[string]*node[S, P], len(nodes))
	for name, graphNode := range nodes {
		copied[name] = graphNode
	}
	return copied
}

func edgeSubject(from, to string) string {
	return "edge " + from + "->" + to
}
