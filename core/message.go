package core

import "maps"

// Role identifies the author of a Message.
type Role string

const (
	// RoleSystem marks workflow-supplied instructions.
	RoleSystem Role = "system"
	// RoleUser marks messages typed by the user.
	RoleUser Role = "user"
	// RoleModel marks messages produced by the reasoning model.
	RoleModel Role = "model"
	// RoleTool marks the output of a tool invocation.
	RoleTool Role = "tool"
)

// ToolCall is a single request from the model to invoke a tool.
// Arguments are already decoded from the provider's JSON text.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Message is one entry of the conversation. Model messages keep the tool
// calls they requested so adapters can replay them; tool messages reference
// the call they answer via ToolCallID.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolName   string     `json:"tool_name,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
}

// NewUserMessage creates a user-role message.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// NewModelMessage creates a model-role message with the tool calls it requested.
func NewModelMessage(content string, calls ...ToolCall) Message {
	return Message{Role: RoleModel, Content: content, ToolCalls: calls}
}

// NewToolMessage creates a tool-role message answering callID.
func NewToolMessage(toolName, callID, content string) Message {
	return Message{Role: RoleTool, Content: content, ToolName: toolName, ToolCallID: callID}
}

// Clone returns a copy that shares no mutable state with m.
func (m Message) Clone() Message {
	if len(m.ToolCalls) == 0 {
		return m
	}

	calls := make([]ToolCall, len(m.ToolCalls))
	for i, tc := range m.ToolCalls {
		calls[i] = tc
		if tc.Arguments != nil {
			calls[i].Arguments = maps.Clone(tc.Arguments)
		}
	}

	m.ToolCalls = calls

	return m
}
