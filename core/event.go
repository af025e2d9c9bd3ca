package core

import (
	"github.com/google/uuid"
)

// EventKind identifies the variant of an Event. The scheduler dispatches on
// the kind alone, so each kind maps to the steps that accept it.
type EventKind int

const (
	// KindStart begins a run and carries the user message.
	KindStart EventKind = iota
	// KindInput asks the model for its next turn.
	KindInput
	// KindGatherTools carries the tool calls requested by one model turn.
	KindGatherTools
	// KindToolCall carries a single tool call to execute.
	KindToolCall
	// KindToolCallResult carries the message produced by one tool call.
	KindToolCallResult
	// KindStop ends a run with its final result.
	KindStop
)

// String returns the snake_case name of the kind.
func (k EventKind) String() string {
	switch k {
	case KindStart:
		return "start"
	case KindInput:
		return "input"
	case KindGatherTools:
		return "gather_tools"
	case KindToolCall:
		return "tool_call"
	case KindToolCallResult:
		return "tool_call_result"
	case KindStop:
		return "stop"
	default:
		return "unknown"
	}
}

// Event is the closed set of signals exchanged between steps. Only the
// variants declared in this package satisfy it.
type Event interface {
	Kind() EventKind
	isEvent()
}

// StartEvent begins a run.
type StartEvent struct {
	Message string
}

// InputEvent signals that the history is ready for the next model turn.
type InputEvent struct{}

// GatherToolsEvent carries every tool call from a single model response.
type GatherToolsEvent struct {
	ToolCalls []ToolCall
}

// ToolCallEvent dispatches exactly one tool call.
type ToolCallEvent struct {
	ToolCall ToolCall
}

// ToolCallResultEvent carries the tool-role message produced by one call.
type ToolCallResultEvent struct {
	Message Message
}

// StopEvent terminates the run. Result is the model's final text.
type StopEvent struct {
	Result string
}

func (StartEvent) Kind() EventKind          { return KindStart }
func (InputEvent) Kind() EventKind          { return KindInput }
func (GatherToolsEvent) Kind() EventKind    { return KindGatherTools }
func (ToolCallEvent) Kind() EventKind       { return KindToolCall }
func (ToolCallResultEvent) Kind() EventKind { return KindToolCallResult }
func (StopEvent) Kind() EventKind           { return KindStop }

func (StartEvent) isEvent()          {}
func (InputEvent) isEvent()          {}
func (GatherToolsEvent) isEvent()    {}
func (ToolCallEvent) isEvent()       {}
func (ToolCallResultEvent) isEvent() {}
func (StopEvent) isEvent()           {}

// NewID returns a new random UUID string used for run and tool call IDs.
func NewID() string {
	return uuid.NewString()
}
