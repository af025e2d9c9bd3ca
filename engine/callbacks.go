package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/toolflow/core"
	"github.com/hupe1980/toolflow/logging"
)

// CallbackType defines the lifecycle points where callbacks can be executed.
//
// Callbacks hook into the scheduler without modifying step handlers. They run
// synchronously on whichever goroutine executes the step, so callbacks
// attached to concurrent steps must be safe for concurrent use.
type CallbackType string

const (
	// CallbackBeforeStep is triggered before a step handles an event.
	CallbackBeforeStep CallbackType = "before_step"

	// CallbackAfterStep is triggered after a step returned successfully.
	CallbackAfterStep CallbackType = "after_step"

	// CallbackOnError is triggered when a step fails.
	CallbackOnError CallbackType = "on_error"
)

// CallbackContext carries what a callback may inspect about a step execution.
type CallbackContext struct {
	// Run is the per-run scope shared by all steps.
	Run *core.RunContext

	// Step is the name of the executing step.
	Step string

	// Event is the input event. For join steps it is the event that released
	// the barrier.
	Event core.Event

	// Emitted holds the step's output events (after_step only).
	Emitted []core.Event

	// Err holds the step error (on_error only).
	Err error

	// CallbackType indicates which lifecycle point triggered this execution.
	CallbackType CallbackType
}

// Callback is a lifecycle hook. Returning an error from a before_step or
// after_step callback fails the run; on_error callback errors are only logged.
type Callback interface {
	Type() CallbackType
	Execute(ctx context.Context, callbackCtx *CallbackContext) error
}

// CallbackFunc is the function form of a callback.
type CallbackFunc func(ctx context.Context, callbackCtx *CallbackContext) error

// FunctionCallback runs a CallbackFunc, optionally only for some steps.
//
// Example:
//
//	cb := engine.NewFunctionCallback(engine.CallbackAfterStep, func(ctx context.Context, c *engine.CallbackContext) error {
//	    metrics.ToolBatches.Inc()
//	    return nil
//	}).ForSteps("gather")
type FunctionCallback struct {
	callbackType CallbackType
	fn           CallbackFunc
	steps        map[string]bool
}

// NewFunctionCallback returns a callback that runs fn at callbackType.
func NewFunctionCallback(callbackType CallbackType, fn CallbackFunc) *FunctionCallback {
	return &FunctionCallback{callbackType: callbackType, fn: fn}
}

// ForSteps restricts the callback to the named steps.
func (c *FunctionCallback) ForSteps(names ...string) *FunctionCallback {
	if c.steps == nil {
		c.steps = make(map[string]bool, len(names))
	}
	for _, n := range names {
		c.steps[n] = true
	}
	return c
}

// Type implements Callback.
func (c *FunctionCallback) Type() CallbackType { return c.callbackType }

// Execute implements Callback.
func (c *FunctionCallback) Execute(ctx context.Context, callbackCtx *CallbackContext) error {
	if c.steps != nil && !c.steps[callbackCtx.Step] {
		return nil
	}
	return c.fn(ctx, callbackCtx)
}

// CallbackManager holds callbacks by type and runs them in registration order.
// A nil manager runs nothing.
type CallbackManager struct {
	callbacks map[CallbackType][]Callback
	mu        sync.RWMutex
}

// NewCallbackManager returns an empty manager.
func NewCallbackManager() *CallbackManager {
	return &CallbackManager{callbacks: map[CallbackType][]Callback{}}
}

// RegisterCallback adds cb under its type.
func (cm *CallbackManager) RegisterCallback(cb Callback) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.callbacks[cb.Type()] = append(cm.callbacks[cb.Type()], cb)
}

// ExecuteCallbacks runs the callbacks registered for callbackType and stops
// at the first error.
func (cm *CallbackManager) ExecuteCallbacks(ctx context.Context, callbackType CallbackType, callbackCtx *CallbackContext) error {
	if cm == nil {
		return nil
	}

	cm.mu.RLock()
	cbs := cm.callbacks[callbackType]
	cm.mu.RUnlock()

	callbackCtx.CallbackType = callbackType

	for _, cb := range cbs {
		if err := cb.Execute(ctx, callbackCtx); err != nil {
			return fmt.Errorf("%s callback: %w", callbackType, err)
		}
	}

	return nil
}

// LoggingCallback writes one debug entry per step lifecycle point. The
// engine itself reports a failed run at error level.
type LoggingCallback struct {
	callbackType CallbackType
	logger       logging.Logger
}

// NewLoggingCallback returns a callback logging to logger at callbackType.
func NewLoggingCallback(callbackType CallbackType, logger logging.Logger) *LoggingCallback {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &LoggingCallback{callbackType: callbackType, logger: logger}
}

// Type implements Callback.
func (c *LoggingCallback) Type() CallbackType { return c.callbackType }

// Execute implements Callback.
func (c *LoggingCallback) Execute(_ context.Context, callbackCtx *CallbackContext) error {
	args := []any{"callback", string(c.callbackType), "step", callbackCtx.Step}

	if callbackCtx.Run != nil {
		args = append(args, "run_id", callbackCtx.Run.RunID)
	}
	if callbackCtx.Event != nil {
		args = append(args, "event", callbackCtx.Event.Kind().String())
	}
	if len(callbackCtx.Emitted) > 0 {
		args = append(args, "emitted", kinds(callbackCtx.Emitted))
	}

	if callbackCtx.Err != nil {
		c.logger.Debug("engine.callback.step_failed", append(args, "error", callbackCtx.Err.Error())...)
		return nil
	}

	c.logger.Debug("engine.callback.step", args...)

	return nil
}
