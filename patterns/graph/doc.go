// Package graph implements a typed state graph for orchestrating agent
// workflows. Every node reads an immutable snapshot of the shared state S and
// returns a sparse patch P; the executor folds each patch into the state
// through a [Schema] that declares, per field, how concurrent or successive
// writes combine (see [Reducer]).
//
// The main entry points are [NewSchema] and [NewChannel] to declare the state
// fields, [NewBuilder] to register nodes and edges, [Builder.Compile] to
// validate the topology, and [Compiled.Execute] to run it. [Lazy] holds a
// compiled graph that is built at most once per process.
//
// Key features:
//   - Per-field reducers: replace, append and deep merge
//   - Sparse patches via [Update] with an explicit "written" marker
//   - Compile-time validation (unknown nodes, duplicate edges, unreachable
//     nodes, cycles via Kahn's algorithm, ambiguous routing)
//   - Conditional edges evaluated in declaration order
//   - Graph-level and node-level timeouts
//   - Observability integration (spans, counters, histograms, logs)
//
// Example:
//
//	type State struct {
//	    Notes []string
//	    Title *string
//	}
//
//	type Patch struct {
//	    Notes graph.Update[[]string]
//	    Title graph.Update[*string]
//	}
//
//	schema, err := graph.NewSchema(
//	    graph.NewChannel("notes", graph.ReducerAppend,
//	        func(state *State) *[]string { return &state.Notes },
//	        func(patch *Patch) graph.Update[[]string] { return patch.Notes }),
//	    graph.NewChannel("title", graph.ReducerReplace,
//	        func(state *State) **string { return &state.Title },
//	        func(patch *Patch) graph.Update[*string] { return patch.Title }),
//	)
//
//	compiled, err := graph.NewBuilder(schema).
//	    AddNode("draft", draftNode).
//	    SetEntryPoint("draft").
//	    AddEdge("draft", graph.End).
//	    Compile()
//
//	final, err := compiled.Execute(ctx, State{})
package graph
