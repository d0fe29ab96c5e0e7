// Package agents holds the lesson planner domain: the shared state threaded
// through every planning run, its reducer table, the agent nodes and the
// workflow that wires them into a compiled graph.
//
// A run starts from [NewState] with the teacher's request as the only
// conversation message. The [Service] owns the compiled workflow, builds it
// on first use and executes it once per request. [MarshalTransport] renders
// the final state for display.
package agents
