package middleware

import (
	"context"
	"net/http"

	"github.com/leofalp/planner/providers/ai"
)

// SendFunc sends one chat request.
type SendFunc func(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error)

// Middleware intercepts SendMessage calls.
type Middleware func(next SendFunc) SendFunc

// wrapped is an ai.Provider whose SendMessage runs through a chain.
type wrapped struct {
	provider    ai.Provider
	middlewares []Middleware
	chain       SendFunc
}

// Wrap returns provider with middlewares applied to SendMessage. Nil
// middlewares are skipped. The builder methods (WithAPIKey, ...) configure
// the wrapped provider and keep the chain.
func Wrap(provider ai.Provider, middlewares ...Middleware) ai.Provider {
	result := &wrapped{provider: provider}
	for _, middleware := range middlewares {
		if middleware != nil {
			result.middlewares = append(result.middlewares, middleware)
		}
	}
	result.rebuild()
	return result
}

// rebuild applies the middlewares in reverse so that the first one is the
// outermost wrapper.
func (provider *wrapped) rebuild() {
	chain := SendFunc(provider.provider.SendMessage)
	for index := len(provider.middlewares) - 1; index >= 0; index-- {
		chain = provider.middlewares[index](chain)
	}
	provider.chain = chain
}

// SendMessage implements ai.Provider.
func (provider *wrapped) SendMessage(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
	return provider.chain(ctx, request)
}

// IsStopMessage implements ai.Provider.
func (provider *wrapped) IsStopMessage(message *ai.ChatResponse) bool {
	return provider.provider.IsStopMessage(message)
}

// WithAPIKey implements ai.Provider.
func (provider *wrapped) WithAPIKey(apiKey string) ai.Provider {
	provider.provider = provider.provider.WithAPIKey(apiKey)
	provider.rebuild()
	return provider
}

// WithBaseURL implements ai.Provider.
func (provider *wrapped) WithBaseURL(baseURL string) ai.Provider {
	provider.provider = provider.provider.WithBaseURL(baseURL)
	provider.rebuild()
	return provider
}

// WithHttpClient implements ai.Provider.
func (provider *wrapped) WithHttpClient(httpClient *http.Client) ai.Provider {
	provider.provider = provider.provider.WithHttpClient(httpClient)
	provider.rebuild()
	return provider
}
