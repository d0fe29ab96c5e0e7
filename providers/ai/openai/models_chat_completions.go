package openai

import (
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/leofalp/planner/providers/ai"
)

/*
	CHAT COMPLETIONS API - INPUT
*/

type chatCompletionRequest struct {
	Model          string              `json:"model"`
	Messages       []chatMessage       `json:"messages"`
	Temperature    *float64            `json:"temperature,omitempty"`
	TopP           *float64            `json:"top_p,omitempty"`
	MaxTokens      *int                `json:"max_tokens,omitempty"`
	ResponseFormat *chatResponseFormat `json:"response_format,omitempty"`
	Stream         bool                `json:"stream,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponseFormat struct {
	Type       string          `json:"type"` // "text", "json_object", "json_schema"
	JSONSchema *chatJSONSchema `json:"json_schema,omitempty"`
}

type chatJSONSchema struct {
	Name   string             `json:"name"`
	Schema *jsonschema.Schema `json:"schema"`
	Strict bool               `json:"strict,omitempty"`
}

/*
	CHAT COMPLETIONS API - OUTPUT
*/

type chatCompletionResponse struct {
	ID                string       `json:"id"`
	Object            string       `json:"object"` // "chat.completion"
	Created           int64        `json:"created"`
	Model             string       `json:"model"`
	SystemFingerprint string       `json:"system_fingerprint,omitempty"`
	Choices           []chatChoice `json:"choices"`
	Usage             *chatUsage   `json:"usage,omitempty"`
}

type chatChoice struct {
	Index        int                 `json:"index"`
	Message      chatResponseMessage `json:"message"`
	FinishReason string              `json:"finish_reason"` // "stop", "length", "content_filter"
}

type chatResponseMessage struct {
	Role    string `json:"role"` // "assistant"
	Content string `json:"content,omitempty"`
	Refusal string `json:"refusal,omitempty"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

/*
	CONVERSION FUNCTIONS
*/

// requestToChatCompletion converts ai.ChatRequest to chat completions format.
// Structured output falls back to json_object unless the endpoint supports
// json_schema, since Groq only guarantees the former.
func requestToChatCompletion(request ai.ChatRequest, supportsJSONSchema bool) chatCompletionRequest {
	req := chatCompletionRequest{
		Model: request.Model,
	}

	if request.SystemPrompt != "" {
		req.Messages = append(req.Messages, chatMessage{
			Role:    string(ai.RoleSystem),
			Content: request.SystemPrompt,
		})
	}

	for _, msg := range request.Messages {
		req.Messages = append(req.Messages, chatMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}

	if request.GenerationConfig != nil {
		cfg := request.GenerationConfig

		if cfg.Temperature > 0 {
			temp := float64(cfg.Temperature)
			req.Temperature = &temp
		}

		if cfg.TopP > 0 {
			topP := float64(cfg.TopP)
			req.TopP = &topP
		}

		if cfg.MaxTokens > 0 {
			maxTokens := cfg.MaxTokens
			req.MaxTokens = &maxTokens
		}
	}

	if request.ResponseFormat != nil {
		switch {
		case request.ResponseFormat.OutputSchema != nil && supportsJSONSchema:
			req.ResponseFormat = &chatResponseFormat{
				Type: ai.ResponseFormatJSONSchema,
				JSONSchema: &chatJSONSchema{
					Name:   "response_schema",
					Schema: request.ResponseFormat.OutputSchema,
					Strict: request.ResponseFormat.Strict,
				},
			}
		case request.ResponseFormat.OutputSchema != nil:
			req.ResponseFormat = &chatResponseFormat{Type: ai.ResponseFormatJSONObject}
		case request.ResponseFormat.Type == ai.ResponseFormatJSONSchema && !supportsJSONSchema:
			req.ResponseFormat = &chatResponseFormat{Type: ai.ResponseFormatJSONObject}
		case request.ResponseFormat.Type != "":
			req.ResponseFormat = &chatResponseFormat{Type: request.ResponseFormat.Type}
		}
	}

	return req
}

// chatCompletionToGeneric converts chat completion response to ai.ChatResponse
func chatCompletionToGeneric(resp chatCompletionResponse) *ai.ChatResponse {
	chatResp := &ai.ChatResponse{
		Id:      resp.ID,
		Model:   resp.Model,
		Object:  resp.Object,
		Created: resp.Created,
	}

	if resp.Usage != nil {
		chatResp.Usage = &ai.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}

	if len(resp.Choices) == 0 {
		chatResp.FinishReason = "error"
		return chatResp
	}

	choice := resp.Choices[0]
	chatResp.Content = cleanThinkTags(strings.TrimSpace(choice.Message.Content))
	chatResp.Refusal = choice.Message.Refusal
	chatResp.FinishReason = choice.FinishReason

	return chatResp
}

// cleanThinkTags removes a leading <think>...</think> block emitted by
// reasoning models, leaving only the final answer.
func cleanThinkTags(content string) string {
	const (
		startTag = "<think>"
		endTag   = "</think>"
	)

	start := strings.Index(content, startTag)
	if start == -1 {
		start = 0
	}

	end := strings.Index(content, endTag)
	if end == -1 || end < start {
		return content
	}

	return strings.TrimSpace(content[:start] + content[end+len(endTag):])
}
