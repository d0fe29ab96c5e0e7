package structured

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leofalp/planner/providers/ai"
)

// mockProvider is a hand-written ai.Provider driven by a function.
type mockProvider struct {
	sendMessageFunc func(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error)
	requests        []ai.ChatRequest
}

func (provider *mockProvider) SendMessage(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
	provider.requests = append(provider.requests, request)
	return provider.sendMessageFunc(ctx, request)
}

func (provider *mockProvider) IsStopMessage(response *ai.ChatResponse) bool {
	return response.FinishReason == "" || response.FinishReason == "stop"
}

func (provider *mockProvider) WithAPIKey(string) ai.Provider           { return provider }
func (provider *mockProvider) WithBaseURL(string) ai.Provider          { return provider }
func (provider *mockProvider) WithHttpClient(*http.Client) ai.Provider { return provider }

func answering(content string) *mockProvider {
	return &mockProvider{sendMessageFunc: func(context.Context, ai.ChatRequest) (*ai.ChatResponse, error) {
		return &ai.ChatResponse{Content: content, FinishReason: "stop"}, nil
	}}
}

type review struct {
	Product string `json:"product" jsonschema:"the reviewed product"`
	Rating  int    `json:"rating" jsonschema:"rating from 1 to 5"`
}

func TestNew_BuildsSchemaPrompt(testCase *testing.T) {
	extractor, err := New[review](answering("{}"), WithInstructions("Extract the review."))
	require.NoError(testCase, err)

	assert.Equal(testCase, "review", extractor.Name())
	require.NotNil(testCase, extractor.Schema())
	assert.Contains(testCase, extractor.Schema().Properties, "product")
	assert.Contains(testCase, extractor.Schema().Properties, "rating")
	assert.Contains(testCase, extractor.systemPrompt, "Extract the review.")
	assert.Contains(testCase, extractor.systemPrompt, `"rating"`)
}

func TestNew_NilProvider(testCase *testing.T) {
	_, err := New[review](nil)
	require.Error(testCase, err)
}

func TestExtract_Parsed(testCase *testing.T) {
	provider := answering("```json\n{\"product\": \"phone\", \"rating\": 5}\n```")
	extractor, err := New[review](provider, WithModel("test-model"))
	require.NoError(testCase, err)

	outcome := extractor.Extract(context.Background(), "Great phone, 5 stars")

	parsed, isParsed := outcome.(Parsed[review])
	require.True(testCase, isParsed, "got %T", outcome)
	assert.Equal(testCase, review{Product: "phone", Rating: 5}, parsed.Value)
	assert.Equal(testCase, StatusParsed, outcome.Status())

	require.Len(testCase, provider.requests, 1)
	request := provider.requests[0]
	assert.Equal(testCase, "test-model", request.Model)
	assert.Equal(testCase, []ai.Message{ai.NewUserMessage("Great phone, 5 stars")}, request.Messages)
	require.NotNil(testCase, request.ResponseFormat)
	assert.Equal(testCase, ai.ResponseFormatJSONObject, request.ResponseFormat.Type)
	assert.Same(testCase, extractor.Schema(), request.ResponseFormat.OutputSchema)
}

func TestExtract_Malformed(testCase *testing.T) {
	tests := []struct {
		name     string
		response *ai.ChatResponse
	}{
		{"not json", &ai.ChatResponse{Content: "I cannot answer that"}},
		{"empty", &ai.ChatResponse{Content: ""}},
		{"wrong field type", &ai.ChatResponse{Content: `{"product": "phone", "rating": "five"}`}},
		{"refusal", &ai.ChatResponse{Refusal: "policy"}},
	}

	for _, test := range tests {
		testCase.Run(test.name, func(testCase *testing.T) {
			provider := &mockProvider{sendMessageFunc: func(context.Context, ai.ChatRequest) (*ai.ChatResponse, error) {
				return test.response, nil
			}}
			extractor, err := New[review](provider)
			require.NoError(testCase, err)

			outcome := extractor.Extract(context.Background(), "x")

			malformed, isMalformed := outcome.(Malformed)
			require.True(testCase, isMalformed, "got %T", outcome)
			assert.Error(testCase, malformed.Err)
			assert.Equal(testCase, StatusMalformed, outcome.Status())
		})
	}
}

func TestExtract_IncompleteAnswer(testCase *testing.T) {
	provider := &mockProvider{sendMessageFunc: func(context.Context, ai.ChatRequest) (*ai.ChatResponse, error) {
		return &ai.ChatResponse{Content: `{"product": "phone", "rating": 5}`, FinishReason: "length"}, nil
	}}
	extractor, err := New[review](provider)
	require.NoError(testCase, err)

	outcome := extractor.Extract(context.Background(), "x")

	malformed, isMalformed := outcome.(Malformed)
	require.True(testCase, isMalformed, "got %T", outcome)
	assert.ErrorIs(testCase, malformed.Err, ErrIncompleteAnswer)
	assert.Contains(testCase, malformed.Error(), `"length"`)
	assert.Equal(testCase, `{"product": "phone", "rating": 5}`, malformed.Raw)
}

func TestExtract_ValidatorRejects(testCase *testing.T) {
	extractor, err := New[review](answering(`{"product": "phone", "rating": 9}`))
	require.NoError(testCase, err)
	extractor.WithValidator(func(record review) error {
		if record.Rating < 1 || record.Rating > 5 {
			return errors.New("rating out of range")
		}
		return nil
	})

	outcome := extractor.Extract(context.Background(), "x")

	malformed, isMalformed := outcome.(Malformed)
	require.True(testCase, isMalformed, "got %T", outcome)
	assert.Equal(testCase, `{"product": "phone", "rating": 9}`, malformed.Raw)
	assert.Contains(testCase, malformed.Error(), "rating out of range")
}

func TestExtract_TransportFailure(testCase *testing.T) {
	callErr := errors.New("connection refused")
	provider := &mockProvider{sendMessageFunc: func(context.Context, ai.ChatRequest) (*ai.ChatResponse, error) {
		return nil, callErr
	}}
	extractor, err := New[review](provider)
	require.NoError(testCase, err)

	outcome := extractor.Extract(context.Background(), "x")

	failure, isFailure := outcome.(TransportFailure)
	require.True(testCase, isFailure, "got %T", outcome)
	assert.ErrorIs(testCase, failure.Err, callErr)
	assert.Equal(testCase, StatusTransportError, outcome.Status())
}

func TestOutcome_ErrorMessagesWithoutCause(testCase *testing.T) {
	assert.Equal(testCase, "malformed model answer", Malformed{}.Error())
	assert.Equal(testCase, "model call failed", TransportFailure{}.Error())
}
