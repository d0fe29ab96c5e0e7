package graph

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"
)

// Execute runs the graph once, starting from the entry point with initial as
// the state.
//
// The execution proceeds as follows:
//  1. Start the observability root span and apply the execution timeout
//  2. Run the current node on the current state
//  3. Fold the returned patch into the state through the schema
//  4. Pick the first outgoing edge (in declaration order) whose condition
//     holds, or the unconditional one
//  5. Repeat from 2 until the chosen edge points to End
//
// Nodes run strictly one after another. Any failure stops the walk and is
// returned as a *NodeError naming the node; no partial state is returned.
// The Compiled graph itself is never modified, so Execute may be called
// concurrently and retried after a failure.
func (compiled *Compiled[S, P]) Execute(ctx context.Context, initial S) (S, error) {
	executionStart := time.Now()

	observer := compiled.newRunObserver(ctx)
	observer.graphStart(&ctx, compiled)

	if compiled.config.executionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, compiled.config.executionTimeout)
		defer cancel()
	}

	state := initial
	current := compiled.entryPoint
	step := 0

	for current != End {
		nextState, next, err := compiled.executeNode(ctx, observer, current, step, state)
		if err != nil {
			observer.graphFailed(ctx, err, time.Since(executionStart))
			var zero S
			return zero, err
		}

		state = nextState
		current = next
		step++
	}

	observer.graphCompleted(ctx, step, time.Since(executionStart))

	return state, nil
}

// executeNode runs one node, folds its patch and resolves the next node.
func (compiled *Compiled[S, P]) executeNode(ctx context.Context, observer *runObserver, nodeName string, step int, state S) (S, string, error) {
	graphNode := compiled.nodes[nodeName]

	if err := ctx.Err(); err != nil {
		return state, "", &NodeError{Node: nodeName, Err: fmt.Errorf("context done before node started: %w", err)}
	}

	nodeContext := ctx
	observer.nodeStart(&nodeContext, nodeName, step)

	if graphNode.timeout > 0 {
		var cancel context.CancelFunc
		nodeContext, cancel = context.WithTimeout(nodeContext, graphNode.timeout)
		defer cancel()
	}

	nodeStart := time.Now()
	patch, runError := runNode(nodeContext, graphNode.runner, state)
	duration := time.Since(nodeStart)

	if runError != nil {
		nodeErr := &NodeError{Node: nodeName, Err: runError}
		observer.nodeFailed(nodeContext, nodeName, nodeErr, duration)
		return state, "", nodeErr
	}

	nextState, changes, foldError := compiled.schema.Fold(state, patch)
	if foldError != nil {
		nodeErr := &NodeError{Node: nodeName, Err: fmt.Errorf("fold patch: %w", foldError)}
		observer.nodeFailed(nodeContext, nodeName, nodeErr, duration)
		return state, "", nodeErr
	}

	observer.stateFolded(nodeContext, nodeName, changes)

	next, routeFound := compiled.route(nodeContext, nodeName, nextState)
	if !routeFound {
		nodeErr := &NodeError{Node: nodeName, Err: ErrNoRoute}
		observer.nodeFailed(nodeContext, nodeName, nodeErr, duration)
		return state, "", nodeErr
	}

	observer.nodeCompleted(nodeContext, nodeName, next, changes, duration)

	return nextState, next, nil
}

// route returns the target of the first outgoing edge that accepts state.
func (compiled *Compiled[S, P]) route(ctx context.Context, nodeName string, state S) (string, bool) {
	for _, graphEdge := range compiled.outgoing[nodeName] {
		if graphEdge.condition == nil || graphEdge.condition(ctx, state) {
			return graphEdge.to, true
		}
	}
	return "", false
}

// runNode calls the node and converts a panic into an error so that a
// faulty node fails its execution instead of the whole process.
func runNode[S, P any](ctx context.Context, runner Node[S, P], state S) (patch P, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("panic: %v\n%s", recovered, debug.Stack())
		}
	}()

	return runner.Run(ctx, state)
}
