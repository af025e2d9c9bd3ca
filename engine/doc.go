// Package engine implements the step scheduler that drives toolflow workflows.
//
// A workflow is a set of named steps, each bound to the event kinds it
// accepts. The Engine owns the dispatch table and runs an explicit loop:
// pop an event from a bounded FIFO queue, hand it to every accepting step,
// enqueue what the steps return, and stop at the first Stop event.
//
// # Key Components
//
// Step:
//   - Accepts / Emits declare the step's edges in the event graph
//   - Concurrent steps run in their own goroutine per event
//   - Join steps buffer events in a core.Barrier until the count stored in
//     the RunContext has arrived, then handle the whole batch once
//
// Engine:
//   - AddStep registers steps; Validate checks the graph before a run
//   - Run executes one run under Config.Timeout
//   - DOT renders all possible flows for documentation and debugging
//
// Callbacks:
//   - before_step, after_step and on_error hooks via CallbackManager
//
// # Usage
//
//	e := engine.New(func(o *engine.Options) { o.Config.Timeout = 30 * time.Second })
//	_ = e.AddStep(engine.Step{
//	    Name:    "echo",
//	    Accepts: []core.EventKind{core.KindStart},
//	    Emits:   []core.EventKind{core.KindStop},
//	    Handle: func(ctx context.Context, rc *core.RunContext, ev core.Event) ([]core.Event, error) {
//	        return []core.Event{core.StopEvent{Result: ev.(core.StartEvent).Message}}, nil
//	    },
//	})
//	out, err := e.Run(ctx, core.NewRunContext("", nil, 0, nil), core.StartEvent{Message: "hi"})
//
// # Concurrency Model
//
// Only the loop goroutine executes non-concurrent steps, which makes it the
// single writer of the run's ChatHistory. Concurrent step results travel
// back to the loop over a channel. On timeout or cancellation the loop
// returns immediately and cancels the run context; in-flight steps observe
// the cancellation and their results are discarded.
//
// # Observability
//
// Each run and each step execution is an OpenTelemetry span. Step
// transitions are logged at debug level, or info level with Config.Verbose.
package engine
