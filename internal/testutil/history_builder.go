package testutil

import (
	"github.com/hupe1980/toolflow/core"
)

// HistoryBuilder helps construct conversations with fluent chaining for tests.
// Example:
//
//	h := NewHistoryBuilder().User("hi").Model("hello").Build()
type HistoryBuilder struct {
	msgs []core.Message
}

// NewHistoryBuilder creates an empty builder.
func NewHistoryBuilder() *HistoryBuilder { return &HistoryBuilder{} }

// User appends a user message (chainable).
func (b *HistoryBuilder) User(content string) *HistoryBuilder {
	b.msgs = append(b.msgs, core.NewUserMessage(content))
	return b
}

// Model appends a model message with optional tool calls (chainable).
func (b *HistoryBuilder) Model(content string, calls ...core.ToolCall) *HistoryBuilder {
	b.msgs = append(b.msgs, core.NewModelMessage(content, calls...))
	return b
}

// Tool appends a tool result answering callID (chainable).
func (b *HistoryBuilder) Tool(name, callID, content string) *HistoryBuilder {
	b.msgs = append(b.msgs, core.NewToolMessage(name, callID, content))
	return b
}

// Messages returns the accumulated messages.
func (b *HistoryBuilder) Messages() []core.Message {
	return append([]core.Message(nil), b.msgs...)
}

// Build returns a *core.ChatHistory seeded with the accumulated messages.
func (b *HistoryBuilder) Build() *core.ChatHistory {
	return core.NewChatHistory(b.msgs...)
}

// Roles returns the role sequence of msgs, handy for asserting history shape.
func Roles(msgs []core.Message) []core.Role {
	out := make([]core.Role, len(msgs))
	for i, m := range msgs {
		out[i] = m.Role
	}
	return out
}
