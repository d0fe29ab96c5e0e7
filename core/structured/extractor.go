package structured

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/leofalp/planner/core/parse"
	"github.com/leofalp/planner/providers/ai"
	"github.com/leofalp/planner/providers/observability"
)

// schemaInstructions precedes the JSON schema in the system prompt.
const schemaInstructions = `Your response must be a single JSON object.
Do not include any explanations, only provide a RFC8259 compliant JSON response following this format without deviation.
Do not include markdown code blocks in your response.
Here is the JSON Schema instance your output must adhere to:
`

// Validator rejects records that decode but are semantically invalid. A
// rejected record becomes a Malformed outcome.
type Validator[T any] func(record T) error

// Option configures an Extractor.
type Option func(*options)

type options struct {
	name         string
	model        string
	instructions string
}

// WithName sets the record name used in logs and metrics. It defaults to
// the Go type name of the record.
func WithName(name string) Option {
	return func(opts *options) {
		opts.name = name
	}
}

// WithModel sets the model requested from the provider. Empty keeps the
// provider default.
func WithModel(model string) Option {
	return func(opts *options) {
		opts.model = model
	}
}

// WithInstructions adds text to the system prompt, before the schema.
func WithInstructions(instructions string) Option {
	return func(opts *options) {
		opts.instructions = instructions
	}
}

// Extractor is a single-shot structured extractor for records of type T.
// The schema is generated once at creation time and reused for every call.
// An Extractor is safe for concurrent use once configured.
//
// Example:
//
//	type Review struct {
//	    Product string `json:"product" jsonschema:"the reviewed product"`
//	    Rating  int    `json:"rating" jsonschema:"rating from 1 to 5"`
//	}
//
//	extractor, _ := structured.New[Review](provider)
//	switch outcome := extractor.Extract(ctx, "Great phone, 5 stars").(type) {
//	case structured.Parsed[Review]:
//	    fmt.Println(outcome.Value.Rating)
//	case structured.Malformed:
//	    log.Println("bad answer:", outcome.Raw)
//	case structured.TransportFailure:
//	    log.Println("call failed:", outcome.Err)
//	}
type Extractor[T any] struct {
	provider     ai.Provider
	schema       *jsonschema.Schema
	systemPrompt string
	opts         options
	validate     Validator[T]
}

// New creates an Extractor for T. It fails only when no JSON schema can be
// derived from T.
func New[T any](provider ai.Provider, opts ...Option) (*Extractor[T], error) {
	if provider == nil {
		return nil, errors.New("structured: provider must not be nil")
	}

	schema, err := jsonschema.For[T](nil)
	if err != nil {
		return nil, fmt.Errorf("structured: derive schema: %w", err)
	}

	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("structured: marshal schema: %w", err)
	}

	config := options{name: typeName[T]()}
	for _, opt := range opts {
		opt(&config)
	}

	var prompt strings.Builder
	if config.instructions != "" {
		prompt.WriteString(config.instructions)
		prompt.WriteString("\n\n")
	}
	prompt.WriteString(schemaInstructions)
	prompt.Write(schemaJSON)

	return &Extractor[T]{
		provider:     provider,
		schema:       schema,
		systemPrompt: prompt.String(),
		opts:         config,
	}, nil
}

// WithValidator sets the semantic validator and returns the extractor for
// chaining. It must be called before the extractor is shared.
func (extractor *Extractor[T]) WithValidator(validate Validator[T]) *Extractor[T] {
	extractor.validate = validate
	return extractor
}

// Schema returns the JSON schema sent to the model.
func (extractor *Extractor[T]) Schema() *jsonschema.Schema {
	return extractor.schema
}

// Name returns the record name used in logs and metrics.
func (extractor *Extractor[T]) Name() string {
	return extractor.opts.name
}

// Extract sends prompt as the user message and classifies the answer.
func (extractor *Extractor[T]) Extract(ctx context.Context, prompt string) Outcome {
	observer := observability.ObserverFromContext(ctx)
	var span observability.Span
	if observer != nil {
		ctx, span = observer.StartSpan(ctx, observability.SpanExtraction,
			observability.String(observability.AttrExtractionTarget, extractor.opts.name),
		)
		defer span.End()
		ctx = observability.ContextWithSpan(ctx, span)
	}

	outcome := extractor.extract(ctx, prompt)

	if observer != nil {
		extractor.record(ctx, observer, span, outcome)
	}

	return outcome
}

func (extractor *Extractor[T]) extract(ctx context.Context, prompt string) Outcome {
	response, err := extractor.provider.SendMessage(ctx, ai.ChatRequest{
		Model:        extractor.opts.model,
		SystemPrompt: extractor.systemPrompt,
		Messages:     []ai.Message{ai.NewUserMessage(prompt)},
		ResponseFormat: &ai.ResponseFormat{
			OutputSchema: extractor.schema,
			Type:         ai.ResponseFormatJSONObject,
		},
	})
	if err != nil {
		return TransportFailure{Err: err}
	}
	if response == nil {
		return TransportFailure{Err: errors.New("provider returned no response")}
	}

	if response.Refusal != "" {
		return Malformed{Raw: response.Refusal, Err: fmt.Errorf("model refused: %s", response.Refusal)}
	}

	if !extractor.provider.IsStopMessage(response) {
		return Malformed{Raw: response.Content, Err: fmt.Errorf("%w: finish reason %q", ErrIncompleteAnswer, response.FinishReason)}
	}

	record, err := parse.ParseStringAs[T](response.Content)
	if err != nil {
		return Malformed{Raw: response.Content, Err: fmt.Errorf("decode %s: %w", extractor.opts.name, err)}
	}

	if extractor.validate != nil {
		if err := extractor.validate(record); err != nil {
			return Malformed{Raw: response.Content, Err: fmt.Errorf("validate %s: %w", extractor.opts.name, err)}
		}
	}

	return Parsed[T]{Value: record, Response: response}
}

// record reports the outcome on the span, the metrics and the log.
func (extractor *Extractor[T]) record(ctx context.Context, observer observability.Provider, span observability.Span, outcome Outcome) {
	observer.Counter(observability.MetricExtractionCount).Add(ctx, 1,
		observability.String(observability.AttrExtractionTarget, extractor.opts.name),
		observability.String(observability.AttrExtractionOutcome, outcome.Status()),
	)
	span.SetAttributes(observability.String(observability.AttrExtractionOutcome, outcome.Status()))

	switch typed := outcome.(type) {
	case Parsed[T]:
		span.SetStatus(observability.StatusOK, "")
		observer.Debug(ctx, "structured record extracted",
			observability.String(observability.AttrExtractionTarget, extractor.opts.name),
		)
	case Malformed:
		span.RecordError(typed)
		span.SetStatus(observability.StatusError, typed.Status())
		observer.Warn(ctx, "model answer could not be used",
			observability.String(observability.AttrExtractionTarget, extractor.opts.name),
			observability.String(observability.AttrResponseContent, observability.TruncateStringDefault(typed.Raw)),
			observability.Error(typed),
		)
	case TransportFailure:
		span.RecordError(typed)
		span.SetStatus(observability.StatusError, typed.Status())
		observer.Error(ctx, "model call failed",
			observability.String(observability.AttrExtractionTarget, extractor.opts.name),
			observability.Error(typed),
		)
	}
}

func typeName[T any]() string {
	recordType := reflect.TypeOf((*T)(nil)).Elem()
	if recordType.Name() != "" {
		return recordType.Name()
	}
	return recordType.String()
}
