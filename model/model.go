package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/toolflow/core"
)

// ToolCall is a tool request as surfaced by a model provider, before its
// arguments are decoded. Unified across vendors so downstream logic does not
// need per-provider branching.
type ToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"` // "function"
	Function ToolCallFunction `json:"function"`
}

// ToolCallFunction describes the concrete function target of a tool call.
type ToolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // JSON text of arguments
}

// ToolDefinition declaratively exposes a callable tool to the model.
// Parameters is a JSON Schema object.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Request captures the normalized model input for one turn.
type Request struct {
	Instructions           string           `json:"instructions,omitempty"`
	History                []core.Message   `json:"history"`
	Tools                  []ToolDefinition `json:"tools,omitempty"`
	AllowParallelToolCalls bool             `json:"allow_parallel_tool_calls"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the model's reply to one turn. ToolCalls is empty when the
// model answered directly.
type Response struct {
	ID           string      `json:"id"`
	Content      string      `json:"content"`
	ToolCalls    []ToolCall  `json:"tool_calls,omitempty"`
	FinishReason string      `json:"finish_reason"` // "stop", "length", "tool_calls", etc.
	Usage        *TokenUsage `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "scripted", etc.
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the adapter contract the workflow uses to drive a reasoning model.
// Implementations translate Request into a provider call and the provider's
// reply into Response. They must honour ctx cancellation.
type Model interface {
	ChatWithTools(ctx context.Context, req Request) (*Response, error)

	// Info returns information about the model implementation.
	Info() Info
}

// ErrMalformedToolCall reports tool call data that cannot be turned into
// core.ToolCall values.
var ErrMalformedToolCall = errors.New("malformed tool call")

// ParseToolCalls decodes provider tool calls into core.ToolCall values.
//
// Empty argument text decodes to an empty object and a missing ID is
// replaced by a fresh one. Invalid JSON, non-object arguments, an empty
// name or a repeated ID make the whole batch malformed.
func ParseToolCalls(raw []ToolCall) ([]core.ToolCall, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	calls := make([]core.ToolCall, 0, len(raw))
	seen := make(map[string]bool, len(raw))

	for i, tc := range raw {
		name := strings.TrimSpace(tc.Function.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: call %d has no name", ErrMalformedToolCall, i)
		}

		id := tc.ID
		if id == "" {
			id = core.NewID()
		}

		if seen[id] {
			return nil, fmt.Errorf("%w: duplicate id %q", ErrMalformedToolCall, id)
		}
		seen[id] = true

		args := map[string]any{}
		if text := strings.TrimSpace(tc.Function.Arguments); text != "" {
			var decoded any
			if err := json.Unmarshal([]byte(text), &decoded); err != nil {
				return nil, fmt.Errorf("%w: %s arguments: %v", ErrMalformedToolCall, name, err)
			}

			switch v := decoded.(type) {
			case map[string]any:
				args = v
			case nil:
			default:
				return nil, fmt.Errorf("%w: %s arguments are not an object", ErrMalformedToolCall, name)
			}
		}

		calls = append(calls, core.ToolCall{ID: id, Name: name, Arguments: args})
	}

	return calls, nil
}
