package agents

import (
	"context"
	"net/http"
	"sync"

	"github.com/leofalp/planner/providers/ai"
)

// mockProvider is a hand-written ai.Provider returning canned answers.
type mockProvider struct {
	mutex           sync.Mutex
	sendMessageFunc func(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error)
	requests        []ai.ChatRequest
}

func (provider *mockProvider) SendMessage(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
	provider.mutex.Lock()
	provider.requests = append(provider.requests, request)
	provider.mutex.Unlock()
	return provider.sendMessageFunc(ctx, request)
}

func (provider *mockProvider) IsStopMessage(*ai.ChatResponse) bool     { return true }
func (provider *mockProvider) WithAPIKey(string) ai.Provider           { return provider }
func (provider *mockProvider) WithBaseURL(string) ai.Provider          { return provider }
func (provider *mockProvider) WithHttpClient(*http.Client) ai.Provider { return provider }

func (provider *mockProvider) calls() int {
	provider.mutex.Lock()
	defer provider.mutex.Unlock()
	return len(provider.requests)
}

func answering(content string) *mockProvider {
	return &mockProvider{sendMessageFunc: func(context.Context, ai.ChatRequest) (*ai.ChatResponse, error) {
		return &ai.ChatResponse{Model: "llama3-70b-8192", Content: content, FinishReason: "stop"}, nil
	}}
}

const validObjectiveJSON = `{"action_verb": "giải", "bloom_level": 3, "topic": "Phương trình bậc hai", "grade_level": "Lớp 9"}`
