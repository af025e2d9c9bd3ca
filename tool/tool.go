// Package tool implements the tool calling subsystem: the Tool contract, a
// FunctionTool adapter for plain Go functions, and the Registry that maps
// model-requested names to implementations and validates their arguments.
package tool

import (
	"encoding/json"
	"fmt"

	"github.com/hupe1980/toolflow/core"
)

// Tool defines the interface for capabilities the model may invoke.
//
// Tool implementations should:
//   - Provide clear, descriptive names and descriptions
//   - Define a JSON schema for their parameters
//   - Honour cancellation of toolCtx.Context()
//   - Be safe for concurrent use; several calls may run at once
type Tool interface {
	// Name returns the unique identifier for this tool (snake_case recommended).
	Name() string

	// Description is shown to the model to help it decide when to call the tool.
	Description() string

	// Parameters returns a JSON schema describing the accepted arguments.
	Parameters() map[string]any

	// Call executes the tool with already validated arguments.
	Call(toolCtx *core.ToolContext, args map[string]any) (any, error)
}

// AsyncTool is implemented by tools whose work should run on a separate
// goroutine. The registry awaits them with cancellation, so a run timeout
// abandons the call instead of waiting for it.
type AsyncTool interface {
	Tool
	IsAsync() bool
}

// Stringify converts a tool result to the text stored in the conversation.
// Strings are used verbatim, fmt.Stringer values via String, everything else
// is encoded as JSON.
func Stringify(result any) string {
	switch v := result.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case fmt.Stringer:
		return v.String()
	case error:
		return v.Error()
	}

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Sprintf("%v", result)
	}

	return string(data)
}
