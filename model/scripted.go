package model

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/toolflow/core"
)

// ScriptedModel is a deterministic in-memory Model useful for tests and
// examples. It replays queued responses in order and records every request.
// When the script is exhausted it answers with a fallback text.
type ScriptedModel struct {
	info      Info
	responses []Response
	errs      map[int]error
	requests  []Request
	fallback  string
	mu        sync.Mutex
}

// NewScriptedModel constructs a ScriptedModel with tool support enabled.
func NewScriptedModel(responses ...Response) *ScriptedModel {
	return &ScriptedModel{
		info: Info{
			Name:          "scripted",
			Provider:      "scripted",
			SupportsTools: true,
		},
		responses: responses,
		errs:      map[int]error{},
	}
}

// AddResponse appends a response to the script.
func (m *ScriptedModel) AddResponse(resp Response) *ScriptedModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, resp)
	return m
}

// AddText appends a plain text answer to the script.
func (m *ScriptedModel) AddText(text string) *ScriptedModel {
	return m.AddResponse(Response{Content: text, FinishReason: "stop"})
}

// AddToolCalls appends a response requesting the given tool calls.
func (m *ScriptedModel) AddToolCalls(calls ...ToolCall) *ScriptedModel {
	return m.AddResponse(Response{ToolCalls: calls, FinishReason: "tool_calls"})
}

// FailOn makes the n-th call (zero based) return err.
func (m *ScriptedModel) FailOn(n int, err error) *ScriptedModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[n] = err
	return m
}

// WithFallback sets the answer used once the script is exhausted.
func (m *ScriptedModel) WithFallback(text string) *ScriptedModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = text
	return m
}

// ChatWithTools implements Model.
func (m *ScriptedModel) ChatWithTools(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Copy the history so later appends by the caller do not alter the record.
	recorded := req
	recorded.History = make([]core.Message, len(req.History))
	for i, msg := range req.History {
		recorded.History[i] = msg.Clone()
	}

	n := len(m.requests)
	m.requests = append(m.requests, recorded)

	if err, ok := m.errs[n]; ok {
		return nil, err
	}

	if n < len(m.responses) {
		resp := m.responses[n]
		return &resp, nil
	}

	text := m.fallback
	if text == "" {
		text = fmt.Sprintf("scripted model: no response queued for call %d", n)
	}

	return &Response{Content: text, FinishReason: "stop"}, nil
}

// Requests returns the recorded requests.
func (m *ScriptedModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}

// Calls returns the number of ChatWithTools calls made so far.
func (m *ScriptedModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Info implements Model.
func (m *ScriptedModel) Info() Info { return m.info }
