package graph

import (
	"context"
	"time"

	"github.com/leofalp/planner/providers/observability"
)

// Semantic conventions for graph observability attributes.
const (
	// spanGraphExecute is the span name for the entire graph execution.
	spanGraphExecute = "graph.execute"

	// spanGraphNodeExecute is the span name for individual node execution.
	spanGraphNodeExecute = "graph.node.execute"

	// attrGraphNodeID identifies the node within the graph.
	attrGraphNodeID = "graph.node.id"

	// attrGraphNodeStep is the 0-based position of the node in the walk.
	attrGraphNodeStep = "graph.node.step"

	// attrGraphNodeStatus is the execution status of a node.
	attrGraphNodeStatus = "graph.node.status"

	// attrGraphNodeNext is the node chosen after the current one.
	attrGraphNodeNext = "graph.node.next"

	// attrGraphNodeFields lists the state fields written by a node.
	attrGraphNodeFields = "graph.node.fields"

	// attrGraphTotalNodes is the total number of nodes in the graph.
	attrGraphTotalNodes = "graph.total_nodes"

	// attrGraphEntryPoint is the first node of the walk.
	attrGraphEntryPoint = "graph.entry_point"

	// attrGraphSteps is the number of nodes executed.
	attrGraphSteps = "graph.steps"

	// attrGraphField names a state field.
	attrGraphField = "graph.field"

	// attrGraphOverwritten lists the overwritten leaves of a deep merged field.
	attrGraphOverwritten = "graph.field.overwritten"

	// metricGraphNodeDuration is the histogram for individual node execution duration.
	metricGraphNodeDuration = "planner.graph.node.duration"

	// metricGraphNodeCount is the counter for node executions by status.
	metricGraphNodeCount = "planner.graph.node.count"

	// metricGraphExecutionDuration is the histogram for total graph execution duration.
	metricGraphExecutionDuration = "planner.graph.execution.duration"

	// metricGraphOverwriteCount counts deep merged leaves replaced by a later write.
	metricGraphOverwriteCount = "planner.graph.field.overwrite.count"

	nodeStatusCompleted = "completed"
	nodeStatusFailed    = "failed"
)

// runObserver holds the observability provider and the root span for one
// Execute call. It lives on the stack of Execute, never on the Compiled graph.
type runObserver struct {
	// provider is nil when observability is disabled (zero overhead).
	provider observability.Provider

	// rootSpan is the top-level span for the execution.
	rootSpan observability.Span
}

// newRunObserver resolves the provider from the graph options, falling back
// to the one carried by ctx.
func (compiled *Compiled[S, P]) newRunObserver(ctx context.Context) *runObserver {
	provider := compiled.config.observer
	if provider == nil {
		provider = observability.ObserverFromContext(ctx)
	}
	return &runObserver{provider: provider}
}

// graphStart creates the root span and attaches span and provider to ctx.
func (observer *runObserver) graphStart(ctx *context.Context, compiled graphDescriptor) {
	if observer.provider == nil {
		return
	}

	var rootSpan observability.Span
	*ctx, rootSpan = observer.provider.StartSpan(*ctx, spanGraphExecute,
		observability.Int(attrGraphTotalNodes, len(compiled.Nodes())),
		observability.String(attrGraphEntryPoint, compiled.EntryPoint()),
	)
	observer.rootSpan = rootSpan

	*ctx = observability.ContextWithSpan(*ctx, rootSpan)
	*ctx = observability.ContextWithObserver(*ctx, observer.provider)

	observer.provider.Debug(*ctx, "graph execution started",
		observability.Int(attrGraphTotalNodes, len(compiled.Nodes())),
		observability.String(attrGraphEntryPoint, compiled.EntryPoint()),
	)
}

// graphDescriptor is the part of Compiled the observer reads.
type graphDescriptor interface {
	Nodes() []string
	EntryPoint() string
}

// graphCompleted records the successful completion of the execution.
func (observer *runObserver) graphCompleted(ctx context.Context, steps int, totalDuration time.Duration) {
	if observer.provider == nil {
		return
	}

	observer.provider.Histogram(metricGraphExecutionDuration).Record(ctx, totalDuration.Seconds())

	observer.provider.Info(ctx, "graph execution completed",
		observability.Int(attrGraphSteps, steps),
		observability.Duration(observability.AttrDuration, totalDuration),
	)

	if observer.rootSpan != nil {
		observer.rootSpan.SetAttributes(observability.Int(attrGraphSteps, steps))
		observer.rootSpan.SetStatus(observability.StatusOK, "graph execution completed")
		observer.rootSpan.End()
	}
}

// graphFailed records the failure of the execution.
func (observer *runObserver) graphFailed(ctx context.Context, executionError error, totalDuration time.Duration) {
	if observer.provider == nil {
		return
	}

	observer.provider.Histogram(metricGraphExecutionDuration).Record(ctx, totalDuration.Seconds())

	observer.provider.Error(ctx, "graph execution failed",
		observability.Error(executionError),
		observability.Duration(observability.AttrDuration, totalDuration),
	)

	if observer.rootSpan != nil {
		observer.rootSpan.RecordError(executionError)
		observer.rootSpan.SetStatus(observability.StatusError, "graph execution failed")
		observer.rootSpan.End()
	}
}

// nodeStart creates a child span for the node and attaches it to ctx.
func (observer *runObserver) nodeStart(ctx *context.Context, nodeName string, step int) {
	if observer.provider == nil {
		return
	}

	var nodeSpan observability.Span
	*ctx, nodeSpan = observer.provider.StartSpan(*ctx, spanGraphNodeExecute,
		observability.String(attrGraphNodeID, nodeName),
		observability.Int(attrGraphNodeStep, step),
	)

	*ctx = observability.ContextWithSpan(*ctx, nodeSpan)

	observer.provider.Debug(*ctx, "node execution started",
		observability.String(attrGraphNodeID, nodeName),
		observability.Int(attrGraphNodeStep, step),
	)
}

// stateFolded reports deep merged leaves that the node overwrote. Same-leaf
// writes keep the last value; the warning is the only trace of the old one.
func (observer *runObserver) stateFolded(ctx context.Context, nodeName string, changes []FieldChange) {
	if observer.provider == nil {
		return
	}

	for _, change := range changes {
		if len(change.Overwritten) == 0 {
			continue
		}

		observer.provider.Counter(metricGraphOverwriteCount).Add(ctx, int64(len(change.Overwritten)),
			observability.String(attrGraphNodeID, nodeName),
			observability.String(attrGraphField, change.Field),
		)

		observer.provider.Warn(ctx, "node overwrote existing state leaves",
			observability.String(attrGraphNodeID, nodeName),
			observability.String(attrGraphField, change.Field),
			observability.StringSlice(attrGraphOverwritten, change.Overwritten),
		)
	}
}

// nodeCompleted records the successful completion of a node and closes its span.
func (observer *runObserver) nodeCompleted(ctx context.Context, nodeName, next string, changes []FieldChange, duration time.Duration) {
	if observer.provider == nil {
		return
	}

	observer.provider.Histogram(metricGraphNodeDuration).Record(ctx, duration.Seconds(),
		observability.String(attrGraphNodeID, nodeName),
	)

	observer.provider.Counter(metricGraphNodeCount).Add(ctx, 1,
		observability.String(attrGraphNodeStatus, nodeStatusCompleted),
		observability.String(attrGraphNodeID, nodeName),
	)

	fields := make([]string, 0, len(changes))
	for _, change := range changes {
		fields = append(fields, change.Field)
	}

	observer.provider.Info(ctx, "node execution completed",
		observability.String(attrGraphNodeID, nodeName),
		observability.String(attrGraphNodeNext, next),
		observability.StringSlice(attrGraphNodeFields, fields),
		observability.Duration(observability.AttrDuration, duration),
	)

	nodeSpan := observability.SpanFromContext(ctx)
	if nodeSpan != nil {
		nodeSpan.SetAttributes(
			observability.String(attrGraphNodeStatus, nodeStatusCompleted),
			observability.String(attrGraphNodeNext, next),
			observability.Duration(observability.AttrDuration, duration),
		)
		nodeSpan.SetStatus(observability.StatusOK, "node completed")
		nodeSpan.End()
	}
}

// nodeFailed records the failure of a node and closes its span.
func (observer *runObserver) nodeFailed(ctx context.Context, nodeName string, nodeError error, duration time.Duration) {
	if observer.provider == nil {
		return
	}

	observer.provider.Histogram(metricGraphNodeDuration).Record(ctx, duration.Seconds(),
		observability.String(attrGraphNodeID, nodeName),
	)

	observer.provider.Counter(metricGraphNodeCount).Add(ctx, 1,
		observability.String(attrGraphNodeStatus, nodeStatusFailed),
		observability.String(attrGraphNodeID, nodeName),
	)

	observer.provider.Error(ctx, "node execution failed",
		observability.String(attrGraphNodeID, nodeName),
		observability.Error(nodeError),
		observability.Duration(observability.AttrDuration, duration),
	)

	nodeSpan := observability.SpanFromContext(ctx)
	if nodeSpan != nil {
		nodeSpan.RecordError(nodeError)
		nodeSpan.SetAttributes(
			observability.String(attrGraphNodeStatus, nodeStatusFailed),
			observability.Duration(observability.AttrDuration, duration),
		)
		nodeSpan.SetStatus(observability.StatusError, "node failed")
		nodeSpan.End()
	}
}
