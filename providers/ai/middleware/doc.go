// Package middleware wraps an [ai.Provider] with cross-cutting behavior.
//
// A [Middleware] receives the next [SendFunc] in the chain and returns a new
// one. [Wrap] applies a list of middlewares to a provider, the first entry
// being the outermost:
//
//	provider := middleware.Wrap(openai.New(),
//	    middleware.Retry(middleware.RetryConfig{MaxRetries: 2}),
//	)
//
// The wrapped value is itself an ai.Provider, so it can be handed to anything
// that calls a model, such as a structured extractor.
package middleware
