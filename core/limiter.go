package core

import (
	"fmt"
	"sync/atomic"
)

// ModelLimiter is the per-run model turn budget. The chat step charges one
// unit before every model call; a limit of 0 disables the budget.
type ModelLimiter struct {
	limit int64
	calls atomic.Int64
}

// NewModelLimiter returns a budget of limit model calls.
func NewModelLimiter(limit int) *ModelLimiter {
	return &ModelLimiter{limit: int64(limit)}
}

// Increment charges one model call and fails with ErrMaxModelCalls when the
// call exceeds the budget. The failed call is still counted.
func (l *ModelLimiter) Increment() error {
	n := l.calls.Add(1)
	if l.limit > 0 && n > l.limit {
		return fmt.Errorf("%w: budget of %d spent", ErrMaxModelCalls, l.limit)
	}
	return nil
}

// Count reports the model calls charged so far.
func (l *ModelLimiter) Count() int { return int(l.calls.Load()) }

// Remaining reports the calls left in the budget, or -1 when unlimited.
func (l *ModelLimiter) Remaining() int {
	if l.limit <= 0 {
		return -1
	}
	return int(max(l.limit-l.calls.Load(), 0))
}
