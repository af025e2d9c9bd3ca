package core

import (
	"sync"

	"github.com/hupe1980/toolflow/logging"
)

// KeyPendingToolCalls is the RunContext key holding the number of tool
// results the fan-in step waits for.
const KeyPendingToolCalls = "pending_tool_calls"

// RunContext carries the mutable, per-run scope shared by all steps of one
// workflow run. It aggregates:
//   - The RunID used for correlation in logs and spans
//   - The run's ChatHistory
//   - A ModelLimiter guarding against unbounded model turns
//   - A string keyed state map for coordination values
//   - Join barriers, one per fan-in step
//
// Steps that run on the scheduler loop may mutate History and state freely.
// Concurrent steps must only read state and must never touch History.
type RunContext struct {
	RunID   string
	History *ChatHistory
	Limiter *ModelLimiter

	state    map[string]any
	barriers map[string]*Barrier
	mu       sync.RWMutex

	*scope
}

// NewRunContext constructs a RunContext. A nil history is replaced by an
// empty one; maxModelCalls of 0 means unlimited.
func NewRunContext(runID string, history *ChatHistory, maxModelCalls int, logger logging.Logger) *RunContext {
	if runID == "" {
		runID = NewID()
	}

	if history == nil {
		history = NewChatHistory()
	}

	return &RunContext{
		RunID:    runID,
		History:  history,
		Limiter:  NewModelLimiter(maxModelCalls),
		state:    map[string]any{},
		barriers: map[string]*Barrier{},
		scope:    newScope(logger, "run_id", runID),
	}
}

// Get returns the value stored under k.
func (rc *RunContext) Get(k string) (any, bool) {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	v, ok := rc.state[k]
	return v, ok
}

// Set stores v under k.
func (rc *RunContext) Set(k string, v any) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.state[k] = v
}

// Delete removes k.
func (rc *RunContext) Delete(k string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	delete(rc.state, k)
}

// Int returns the integer stored under k. Missing or non-integer values
// report false.
func (rc *RunContext) Int(k string) (int, bool) {
	v, ok := rc.Get(k)
	if !ok {
		return 0, false
	}

	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case int32:
		return int(n), true
	default:
		return 0, false
	}
}

// Barrier returns the join barrier registered under name, creating it on
// first use.
func (rc *RunContext) Barrier(name string) *Barrier {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	b, ok := rc.barriers[name]
	if !ok {
		b = &Barrier{}
		rc.barriers[name] = b
	}

	return b
}
