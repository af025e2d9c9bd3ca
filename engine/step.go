package engine

import (
	"context"
	"fmt"
	"slices"

	"github.com/hupe1980/toolflow/core"
)

// HandlerFunc processes one event. Returning no events means the step
// produced nothing for this input.
type HandlerFunc func(ctx context.Context, rc *core.RunContext, ev core.Event) ([]core.Event, error)

// JoinFunc processes a batch released by a join barrier, in arrival order.
type JoinFunc func(ctx context.Context, rc *core.RunContext, batch []core.Event) ([]core.Event, error)

// Join declares a fan-in: events of Kind are buffered until the number
// stored in the RunContext under CountKey have arrived.
type Join struct {
	Kind     core.EventKind
	CountKey string
}

// Step is a named handler bound to the event kinds it accepts. Emits
// documents the kinds it may produce; it drives validation and the flow
// diagram but is not enforced at runtime.
//
// Concurrent steps run in their own goroutine per event and must not touch
// the run's ChatHistory. All other steps run on the scheduler goroutine.
type Step struct {
	Name       string
	Accepts    []core.EventKind
	Emits      []core.EventKind
	Concurrent bool
	Join       *Join
	Handle     HandlerFunc
	HandleJoin JoinFunc
}

func (s Step) accepts(k core.EventKind) bool {
	return slices.Contains(s.Accepts, k)
}

func (s Step) validate() error {
	if s.Name == "" {
		return fmt.Errorf("step name is required")
	}

	if len(s.Accepts) == 0 {
		return fmt.Errorf("step %s: accepts no events", s.Name)
	}

	if s.Join != nil {
		if s.HandleJoin == nil {
			return fmt.Errorf("step %s: join step requires HandleJoin", s.Name)
		}
		if s.Join.CountKey == "" {
			return fmt.Errorf("step %s: join requires a count key", s.Name)
		}
		if !s.accepts(s.Join.Kind) {
			return fmt.Errorf("step %s: join kind %s is not accepted", s.Name, s.Join.Kind)
		}
		if s.Concurrent {
			return fmt.Errorf("step %s: join steps cannot be concurrent", s.Name)
		}
		return nil
	}

	if s.Handle == nil {
		return fmt.Errorf("step %s: handler is required", s.Name)
	}

	return nil
}
