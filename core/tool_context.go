package core

import (
	"context"

	"github.com/hupe1980/toolflow/logging"
)

// ToolContext provides a constrained surface for tool implementations. It
// exposes the cancellation context, correlation identifiers and a logger,
// but never the conversation history: tools see only their own arguments.
type ToolContext struct {
	ctx            context.Context
	runID          string
	toolName       string
	functionCallID string

	*scope
}

// NewToolContext constructs a tool context for a single call within run rc.
func NewToolContext(ctx context.Context, rc *RunContext, call ToolCall) *ToolContext {
	var (
		runID  string
		logger logging.Logger
	)

	if rc != nil {
		runID = rc.RunID
		logger = rc.Logger()
	}

	return &ToolContext{
		ctx:            ctx,
		runID:          runID,
		toolName:       call.Name,
		functionCallID: call.ID,
		scope:          newScope(logger, "tool_name", call.Name, "function_call_id", call.ID),
	}
}

// Context returns the context associated with the tool invocation. It is
// cancelled when the run times out.
func (tc *ToolContext) Context() context.Context {
	if tc.ctx == nil {
		return context.Background()
	}
	return tc.ctx
}

// RunID returns the run ID associated with the tool invocation.
func (tc *ToolContext) RunID() string { return tc.runID }

// ToolName returns the name of the invoked tool.
func (tc *ToolContext) ToolName() string { return tc.toolName }

// FunctionCallID returns the function call ID associated with the tool invocation.
func (tc *ToolContext) FunctionCallID() string { return tc.functionCallID }
