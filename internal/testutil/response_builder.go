package testutil

import (
	"encoding/json"

	"github.com/hupe1980/toolflow/model"
)

// ResponseBuilder provides a fluent helper for constructing scripted model
// replies in tests.
// Example:
//
//	resp := NewResponseBuilder().ToolCall("c1", "member_lookup", map[string]any{"name": "Jane"}).Build()
//
// Chain only the parts you need.
type ResponseBuilder struct {
	id     string
	text   string
	calls  []model.ToolCall
	usage  *model.TokenUsage
	reason string
}

// NewResponseBuilder creates an empty builder.
func NewResponseBuilder() *ResponseBuilder { return &ResponseBuilder{} }

// ID sets the provider response id (chainable).
func (b *ResponseBuilder) ID(id string) *ResponseBuilder { b.id = id; return b }

// Text sets the reply text (chainable).
func (b *ResponseBuilder) Text(t string) *ResponseBuilder { b.text = t; return b }

// ToolCall appends a tool call whose arguments are encoded as JSON (chainable).
func (b *ResponseBuilder) ToolCall(id, name string, args map[string]any) *ResponseBuilder {
	raw := "{}"
	if args != nil {
		if data, err := json.Marshal(args); err == nil {
			raw = string(data)
		}
	}
	return b.RawToolCall(id, name, raw)
}

// RawToolCall appends a tool call with verbatim argument text, which may be
// malformed on purpose (chainable).
func (b *ResponseBuilder) RawToolCall(id, name, args string) *ResponseBuilder {
	b.calls = append(b.calls, model.ToolCall{
		ID:       id,
		Type:     "function",
		Function: model.ToolCallFunction{Name: name, Arguments: args},
	})
	return b
}

// Usage sets token usage (chainable).
func (b *ResponseBuilder) Usage(prompt, completion int) *ResponseBuilder {
	b.usage = &model.TokenUsage{PromptTokens: prompt, CompletionTokens: completion, TotalTokens: prompt + completion}
	return b
}

// Build returns the model.Response.
func (b *ResponseBuilder) Build() model.Response {
	reason := b.reason
	if reason == "" {
		reason = "stop"
		if len(b.calls) > 0 {
			reason = "tool_calls"
		}
	}

	return model.Response{
		ID:           b.id,
		Content:      b.text,
		ToolCalls:    append([]model.ToolCall(nil), b.calls...),
		FinishReason: reason,
		Usage:        b.usage,
	}
}
