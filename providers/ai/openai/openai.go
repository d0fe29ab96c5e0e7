package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/leofalp/planner/internal/utils"
	"github.com/leofalp/planner/providers/ai"
	"github.com/leofalp/planner/providers/observability"
)

const (
	// DefaultBaseURL is the Groq OpenAI-compatible endpoint.
	DefaultBaseURL = "https://api.groq.com/openai/v1"

	// DefaultModel is the model used when a request does not name one.
	DefaultModel = "llama3-70b-8192"

	// DefaultTemperature keeps extraction close to deterministic.
	DefaultTemperature float32 = 0.1

	// DefaultMaxTokens bounds the completion length.
	DefaultMaxTokens = 2048

	// DefaultTimeout bounds a single HTTP round trip.
	DefaultTimeout = 60 * time.Second

	// EnvAPIKey is read by New when no key is configured.
	EnvAPIKey = "GROQ_API_KEY" // #nosec G101 -- environment variable name, not a credential

	chatCompletionsEndpoint = "/chat/completions"
	providerName            = "openai-compatible"
)

// ErrMissingAPIKey is returned by SendMessage when no API key is configured.
var ErrMissingAPIKey = errors.New("openai: API key is not set")

// OpenAIProvider implements ai.Provider for OpenAI-compatible chat completions.
type OpenAIProvider struct {
	apiKey             string
	baseURL            string
	model              string
	temperature        float32
	maxTokens          int
	supportsJSONSchema bool
	client             *http.Client
}

// Option configures an OpenAIProvider.
type Option func(*OpenAIProvider)

// WithModel sets the default model used when a request does not name one.
func WithModel(model string) Option {
	return func(provider *OpenAIProvider) {
		if model != "" {
			provider.model = model
		}
	}
}

// WithTemperature sets the default sampling temperature.
func WithTemperature(temperature float32) Option {
	return func(provider *OpenAIProvider) {
		provider.temperature = temperature
	}
}

// WithMaxTokens sets the default completion token budget.
func WithMaxTokens(maxTokens int) Option {
	return func(provider *OpenAIProvider) {
		if maxTokens > 0 {
			provider.maxTokens = maxTokens
		}
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(provider *OpenAIProvider) {
		if timeout > 0 {
			provider.client = &http.Client{Timeout: timeout}
		}
	}
}

// WithJSONSchemaSupport enables the json_schema response format. Endpoints
// without it receive json_object and the schema travels in the prompt.
func WithJSONSchemaSupport(enabled bool) Option {
	return func(provider *OpenAIProvider) {
		provider.supportsJSONSchema = enabled
	}
}

// New creates a provider with Groq defaults. The API key is read from
// GROQ_API_KEY and can be replaced with WithAPIKey.
func New(opts ...Option) *OpenAIProvider {
	provider := &OpenAIProvider{
		apiKey:      os.Getenv(EnvAPIKey),
		baseURL:     DefaultBaseURL,
		model:       DefaultModel,
		temperature: DefaultTemperature,
		maxTokens:   DefaultMaxTokens,
		client:      &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(provider)
	}
	return provider
}

// WithAPIKey sets the API key for the provider
func (provider *OpenAIProvider) WithAPIKey(apiKey string) ai.Provider {
	provider.apiKey = apiKey
	return provider
}

// WithBaseURL sets the base URL for the API
func (provider *OpenAIProvider) WithBaseURL(baseURL string) ai.Provider {
	if baseURL != "" {
		provider.baseURL = strings.TrimRight(baseURL, "/")
	}
	return provider
}

// WithHttpClient sets a custom HTTP client
func (provider *OpenAIProvider) WithHttpClient(httpClient *http.Client) ai.Provider {
	if httpClient != nil {
		provider.client = httpClient
	}
	return provider
}

// Model returns the default model name.
func (provider *OpenAIProvider) Model() string {
	return provider.model
}

// SendMessage implements the Provider interface
func (provider *OpenAIProvider) SendMessage(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
	if provider.apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	request = provider.withDefaults(request)
	endpoint := provider.baseURL + chatCompletionsEndpoint

	observer := observability.ObserverFromContext(ctx)
	var span observability.Span
	if observer != nil {
		ctx, span = observer.StartSpan(ctx, observability.SpanLLMRequest,
			observability.String(observability.AttrLLMProvider, providerName),
			observability.String(observability.AttrLLMModel, request.Model),
			observability.String(observability.AttrLLMEndpoint, endpoint),
			observability.Int(observability.AttrRequestMessagesCount, len(request.Messages)),
		)
		defer span.End()
		ctx = observability.ContextWithSpan(ctx, span)
		span.AddEvent(observability.EventLLMRequestStart)
	}

	body := requestToChatCompletion(request, provider.supportsJSONSchema)
	if observer != nil {
		observer.Trace(ctx, "chat completion request",
			observability.String("request.body", observability.TruncateStringDefault(utils.JSONToString(body))),
		)
	}

	start := time.Now()
	_, resp, err := utils.DoPostSync[chatCompletionResponse](ctx, provider.client, endpoint, provider.apiKey, body)
	elapsed := time.Since(start)

	if err != nil {
		provider.recordFailure(ctx, observer, span, request.Model, elapsed, err)
		return nil, fmt.Errorf("chat completion request: %w", err)
	}
	if resp == nil {
		err = errors.New("empty response body")
		provider.recordFailure(ctx, observer, span, request.Model, elapsed, err)
		return nil, fmt.Errorf("chat completion request: %w", err)
	}

	response := chatCompletionToGeneric(*resp)
	if len(resp.Choices) == 0 {
		err = errors.New("no choices in response")
		provider.recordFailure(ctx, observer, span, request.Model, elapsed, err)
		return nil, fmt.Errorf("chat completion request: %w", err)
	}

	if observer != nil {
		attrs := []observability.Attribute{
			observability.String(observability.AttrLLMModel, request.Model),
			observability.String(observability.AttrStatus, "success"),
		}
		observer.Counter(observability.MetricLLMRequestCount).Add(ctx, 1, attrs...)
		observer.Histogram(observability.MetricLLMRequestDuration).Record(ctx, elapsed.Seconds(), attrs[:1]...)
		if response.Usage != nil {
			observer.Counter(observability.MetricLLMTokensTotal).Add(ctx, int64(response.Usage.TotalTokens), attrs[:1]...)
		}

		span.AddEvent(observability.EventLLMRequestEnd,
			observability.String(observability.AttrLLMResponseID, response.Id),
			observability.String(observability.AttrLLMFinishReason, response.FinishReason),
			observability.Duration(observability.AttrDuration, elapsed),
		)
		if response.Usage != nil {
			span.SetAttributes(
				observability.Int(observability.AttrLLMTokensPrompt, response.Usage.PromptTokens),
				observability.Int(observability.AttrLLMTokensCompletion, response.Usage.CompletionTokens),
				observability.Int(observability.AttrLLMTokensTotal, response.Usage.TotalTokens),
			)
		}
		span.SetStatus(observability.StatusOK, "")

		observer.Debug(ctx, "chat completion received",
			observability.String(observability.AttrLLMModel, response.Model),
			observability.String(observability.AttrLLMFinishReason, response.FinishReason),
			observability.String(observability.AttrResponseContent, observability.TruncateStringDefault(response.Content)),
		)
	}

	return response, nil
}

// IsStopMessage reports whether the model ended its answer on its own. An
// omitted finish reason is accepted for compatible servers that leave it out.
func (provider *OpenAIProvider) IsStopMessage(message *ai.ChatResponse) bool {
	if message == nil {
		return false
	}
	switch message.FinishReason {
	case "stop", "":
		return true
	}
	return false
}

// withDefaults fills the model and generation settings a request left empty.
func (provider *OpenAIProvider) withDefaults(request ai.ChatRequest) ai.ChatRequest {
	if request.Model == "" {
		request.Model = provider.model
	}

	cfg := ai.GenerationConfig{}
	if request.GenerationConfig != nil {
		cfg = *request.GenerationConfig
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = provider.temperature
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = provider.maxTokens
	}
	request.GenerationConfig = &cfg

	return request
}

// recordFailure reports a failed request on the span, the metrics and the log.
func (provider *OpenAIProvider) recordFailure(ctx context.Context, observer observability.Provider, span observability.Span, model string, elapsed time.Duration, err error) {
	if observer == nil {
		return
	}

	observer.Counter(observability.MetricLLMRequestCount).Add(ctx, 1,
		observability.String(observability.AttrLLMModel, model),
		observability.String(observability.AttrStatus, "error"),
	)
	observer.Histogram(observability.MetricLLMRequestDuration).Record(ctx, elapsed.Seconds(),
		observability.String(observability.AttrLLMModel, model),
	)

	span.RecordError(err)
	span.SetStatus(observability.StatusError, err.Error())

	var statusErr *utils.HTTPStatusError
	if errors.As(err, &statusErr) {
		span.SetAttributes(observability.Int(observability.AttrHTTPStatusCode, statusErr.StatusCode))
	}

	observer.Error(ctx, "chat completion failed",
		observability.String(observability.AttrLLMModel, model),
		observability.Duration(observability.AttrDuration, elapsed),
		observability.Error(err),
	)
}
