package core

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnhandledEvent reports an event kind that no registered step accepts.
	// It indicates a wiring mistake rather than a runtime condition.
	ErrUnhandledEvent = errors.New("no step accepts event")
	// ErrStalled reports a run with no queued events, nothing in flight and no Stop.
	ErrStalled = errors.New("workflow stalled without producing a result")
	// ErrMaxModelCalls reports that a run exceeded its model call budget.
	ErrMaxModelCalls = errors.New("exceeded max model calls")
	// ErrQueueOverflow reports that the scheduler's event queue is full.
	ErrQueueOverflow = errors.New("event queue overflow")
)

// Tool error codes carried by ToolInvocationError.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeExecution  = "EXECUTION_ERROR"
	CodePanic      = "PANIC"
)

// ValidationError reports invalid run input, such as an empty message.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// ToolNotFoundError reports a tool call naming a tool absent from the registry.
type ToolNotFoundError struct {
	Name string
}

func (e *ToolNotFoundError) Error() string {
	return fmt.Sprintf("tool %q not found", e.Name)
}

// ToolInvocationError reports a failed tool call. Code is one of
// CodeValidation, CodeExecution or CodePanic.
type ToolInvocationError struct {
	Tool    string
	CallID  string
	Code    string
	Message string
	Err     error
}

func (e *ToolInvocationError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("tool %s (%s): %s", e.Tool, e.Code, msg)
}

// Unwrap returns the underlying cause.
func (e *ToolInvocationError) Unwrap() error { return e.Err }

// TimeoutError reports a run that exceeded its overall deadline.
type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("workflow timed out after %s", e.Timeout)
}

// Is lets callers match a TimeoutError with context.DeadlineExceeded.
func (e *TimeoutError) Is(target error) bool {
	return target == context.DeadlineExceeded
}
