package observability

// Semantic conventions for observability attributes.
// These constants define standard attribute names to ensure consistency
// across the planner components.

// --- LLM Provider Attributes ---

const (
	// AttrLLMProvider is the name of the LLM provider (e.g., "groq", "openai")
	AttrLLMProvider = "llm.provider"

	// AttrLLMModel is the model identifier (e.g., "llama3-70b-8192")
	AttrLLMModel = "llm.model"

	// AttrLLMEndpoint is the API endpoint URL
	AttrLLMEndpoint = "llm.endpoint"

	// AttrLLMResponseID is the unique response identifier from the provider
	AttrLLMResponseID = "llm.response.id"

	// AttrLLMFinishReason is the reason the generation finished
	AttrLLMFinishReason = "llm.finish_reason"

	// AttrLLMTemperature is the sampling temperature used
	AttrLLMTemperature = "llm.temperature"

	// AttrLLMMaxTokens is the maximum tokens allowed
	AttrLLMMaxTokens = "llm.max_tokens" // #nosec G101 -- Not a credential, token refers to LLM tokens
)

// --- Token Usage Attributes ---

const (
	// AttrLLMTokensPrompt is the number of prompt tokens
	AttrLLMTokensPrompt = "llm.tokens.prompt" // #nosec G101 -- Not a credential, token refers to LLM tokens

	// AttrLLMTokensCompletion is the number of completion tokens
	AttrLLMTokensCompletion = "llm.tokens.completion" // #nosec G101 -- Not a credential, token refers to LLM tokens

	// AttrLLMTokensTotal is the total number of tokens
	AttrLLMTokensTotal = "llm.tokens.total" // #nosec G101 -- Not a credential, token refers to LLM tokens
)

// --- Extraction Attributes ---

const (
	// AttrExtractionTarget is the name of the record type being extracted
	AttrExtractionTarget = "extraction.target"

	// AttrExtractionOutcome is "parsed", "malformed" or "transport_error"
	AttrExtractionOutcome = "extraction.outcome"

	// AttrRequestMessagesCount is the number of messages in the request
	AttrRequestMessagesCount = "request.messages_count"

	// AttrResponseContent is the response content from LLM
	AttrResponseContent = "response.content"
)

// --- HTTP Attributes ---

const (
	// AttrHTTPMethod is the HTTP method (GET, POST, etc.)
	AttrHTTPMethod = "http.method"

	// AttrHTTPStatusCode is the HTTP response status code
	AttrHTTPStatusCode = "http.status_code"

	// AttrHTTPURL is the full request URL
	AttrHTTPURL = "http.url"

	// AttrHTTPPath is the request path served by the web boundary
	AttrHTTPPath = "http.path"

	// AttrHTTPRequestID is the request identifier assigned by the router
	AttrHTTPRequestID = "http.request_id"

	// AttrHTTPRequestBodySize is the request body size in bytes
	AttrHTTPRequestBodySize = "http.request.body.size"

	// AttrHTTPResponseBodySize is the response body size in bytes
	AttrHTTPResponseBodySize = "http.response.body.size"
)

// --- Knowledge Base Attributes ---

const (
	// AttrKnowledgeSource is the source document path
	AttrKnowledgeSource = "knowledge.source"

	// AttrKnowledgeStore is the vector store directory
	AttrKnowledgeStore = "knowledge.store"

	// AttrKnowledgePage is the 1-based page number being recognized
	AttrKnowledgePage = "knowledge.page"

	// AttrKnowledgePages is the number of rendered pages
	AttrKnowledgePages = "knowledge.pages"

	// AttrKnowledgeChunks is the number of chunks produced
	AttrKnowledgeChunks = "knowledge.chunks"
)

// --- General Attributes ---

const (
	// AttrError is the error message
	AttrError = "error"

	// AttrErrorType is the error type/class
	AttrErrorType = "error.type"

	// AttrDuration is the operation duration
	AttrDuration = "duration"

	// AttrStatus is the operation status
	AttrStatus = "status"

	// AttrRunID identifies one planning run across logs
	AttrRunID = "run.id"
)

// --- Span Names ---

const (
	// SpanLLMRequest is the span name for LLM API requests
	SpanLLMRequest = "llm.request"

	// SpanExtraction is the span name for structured extraction
	SpanExtraction = "extraction.extract"

	// SpanKnowledgeBuild is the span name for a knowledge base build
	SpanKnowledgeBuild = "knowledge.build"
)

// --- Event Names ---

const (
	// EventLLMRequestStart marks the start of an LLM request
	EventLLMRequestStart = "llm.request.start"

	// EventLLMRequestEnd marks the end of an LLM request
	EventLLMRequestEnd = "llm.request.end"
)

// --- Metric Names ---

const (
	// MetricLLMRequestCount is the counter for LLM requests
	MetricLLMRequestCount = "planner.llm.request.count"

	// MetricLLMRequestDuration is the histogram for LLM request duration
	MetricLLMRequestDuration = "planner.llm.request.duration"

	// MetricLLMTokensTotal is the counter for total tokens
	MetricLLMTokensTotal = "planner.llm.tokens.total"

	// MetricExtractionCount is the counter for extraction outcomes
	MetricExtractionCount = "planner.extraction.count"

	// MetricHTTPRequestCount is the counter for requests served by the web boundary
	MetricHTTPRequestCount = "planner.http.request.count"

	// MetricHTTPRequestDuration is the histogram for web request duration
	MetricHTTPRequestDuration = "planner.http.request.duration"

	// MetricKnowledgePageFailures counts pages whose recognition failed
	MetricKnowledgePageFailures = "planner.knowledge.page.failures"
)
