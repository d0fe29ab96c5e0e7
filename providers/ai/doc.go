// Package ai defines the provider-agnostic chat types and the [Provider]
// interface used by the model-call boundary. Each provider's conversion
// layer maps these types to its own wire format, keeping the agents
// decoupled from provider-specific details.
//
// Request data flows through [ChatRequest] and responses are returned as
// [ChatResponse]. Structured output is requested through [ResponseFormat].
package ai
