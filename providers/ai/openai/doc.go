// Package openai implements the [ai.Provider] interface for OpenAI-compatible
// chat-completions endpoints. The default configuration targets Groq, which
// exposes the same wire format under https://api.groq.com/openai/v1.
//
// The main entry point is [New], which reads GROQ_API_KEY from the
// environment. Use the functional options or [OpenAIProvider.WithAPIKey] and
// [OpenAIProvider.WithBaseURL] to override these values programmatically.
//
// Every request is traced through the observability provider carried by
// the context: an llm.request span plus request, duration and token metrics.
package openai
