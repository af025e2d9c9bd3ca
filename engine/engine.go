package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/toolflow/core"
	"github.com/hupe1980/toolflow/logging"
)

const tracerName = "github.com/hupe1980/toolflow/engine"

// Config defines tuning parameters for the Engine's operational behavior.
//
// Example:
//
//	cfg := Config{
//	    Timeout:   30 * time.Second,
//	    Verbose:   true,
//	    QueueSize: 256,
//	}
type Config struct {
	// Timeout bounds the wall-clock duration of a whole run. When it elapses
	// the run fails with *core.TimeoutError and in-flight concurrent steps are
	// abandoned. Zero disables the engine deadline; the caller's context
	// still applies.
	Timeout time.Duration

	// Verbose logs every step transition at info level instead of debug.
	Verbose bool

	// QueueSize bounds the number of pending events. A run that exceeds it
	// fails with core.ErrQueueOverflow.
	QueueSize int

	// DisableValidation skips the graph check performed at the start of Run.
	DisableValidation bool
}

// DefaultConfig provides default configuration values.
//
// Configuration values:
//   - Timeout: 120s
//   - Verbose: false
//   - QueueSize: 1024
var DefaultConfig = Config{
	Timeout:   120 * time.Second,
	QueueSize: 1024,
}

// Options configures an Engine instance using the functional options pattern.
//
// Example:
//
//	e := New(func(o *Options) {
//	    o.Config.Timeout = 10 * time.Second
//	    o.Logger = logger
//	})
type Options struct {
	// Config contains operational parameters for the engine behavior.
	// Defaults to DefaultConfig if not specified.
	Config Config

	// Logger provides structured logging for debugging and monitoring.
	// Defaults to NoOp logger if nil.
	Logger logging.Logger

	// Tracer creates one span per run and one per step execution.
	// Defaults to the global OpenTelemetry tracer provider, which is a
	// no-op until the application installs one.
	Tracer trace.Tracer

	// Callbacks are executed around every step. Optional.
	Callbacks *CallbackManager
}

// Engine is the step scheduler. It owns a dispatch table from event kind to
// the steps that accept it and drives runs through an explicit loop.
//
// Concurrency Model:
//   - The run loop is a single goroutine. Non-concurrent steps execute on it,
//     so they may mutate the run's ChatHistory and state without races.
//   - Concurrent steps execute in their own goroutine per event; their
//     output events are handed back to the loop over a channel.
//   - Fan-in steps buffer events in the run's Barrier until the expected
//     count has arrived and then execute once with the whole batch.
//
// Termination:
//   - A Stop event ends the run with its result.
//   - The deadline, caller cancellation, a step error, an unhandled event
//     or a stalled graph end the run with an error and no partial result.
//
// Steps are registered once with AddStep; an Engine may execute any number of
// runs concurrently because all per-run state lives in core.RunContext.
type Engine struct {
	config    Config
	logger    logging.Logger
	tracer    trace.Tracer
	callbacks *CallbackManager

	steps    []Step
	dispatch map[core.EventKind][]Step
	mu       sync.RWMutex
}

// New creates a new Engine with sensible defaults and optional configuration.
func New(optFns ...func(o *Options)) *Engine {
	opts := Options{
		Config: DefaultConfig,
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(tracerName)
	}

	if opts.Config.QueueSize <= 0 {
		opts.Config.QueueSize = DefaultConfig.QueueSize
	}

	return &Engine{
		config:    opts.Config,
		logger:    opts.Logger,
		tracer:    opts.Tracer,
		callbacks: opts.Callbacks,
		dispatch:  make(map[core.EventKind][]Step),
	}
}

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.config }

// AddStep registers a step. Names must be unique.
func (e *Engine) AddStep(s Step) error {
	if err := s.validate(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, existing := range e.steps {
		if existing.Name == s.Name {
			return fmt.Errorf("step %s already registered", s.Name)
		}
	}

	e.steps = append(e.steps, s)
	for _, k := range s.Accepts {
		e.dispatch[k] = append(e.dispatch[k], s)
	}

	return nil
}

// Steps returns the registered step names in registration order.
func (e *Engine) Steps() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	names := make([]string, 0, len(e.steps))
	for _, s := range e.steps {
		names = append(names, s.Name)
	}

	return names
}

// stepResult carries the outcome of a concurrent step back to the loop.
type stepResult struct {
	step   string
	events []core.Event
	err    error
}

// Run executes a workflow run starting from start and returns the result
// carried by the first Stop event.
//
// Errors:
//   - *core.TimeoutError when Config.Timeout elapses
//   - the caller's ctx.Err() when ctx is cancelled or expires first
//   - core.ErrUnhandledEvent when an event has no accepting step
//   - core.ErrStalled when nothing is queued or in flight and no Stop arrived
//   - core.ErrQueueOverflow when the queue bound is exceeded
//   - any error returned by a step handler, wrapped with the step name
func (e *Engine) Run(ctx context.Context, rc *core.RunContext, start core.Event) (string, error) {
	if rc == nil {
		return "", fmt.Errorf("run context is required")
	}

	if start == nil {
		return "", fmt.Errorf("start event is required")
	}

	if !e.config.DisableValidation {
		if err := e.Validate(); err != nil {
			return "", err
		}
	}

	dispatch := e.snapshot()

	var (
		runCtx context.Context
		cancel context.CancelFunc
	)

	if e.config.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, e.config.Timeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	// Cancelling on every exit path releases abandoned concurrent steps.
	defer cancel()

	runCtx, span := e.tracer.Start(runCtx, "workflow.run", trace.WithAttributes(
		attribute.String("toolflow.run_id", rc.RunID),
	))
	defer span.End()

	started := time.Now()
	e.logTransition("engine.run.start", "run_id", rc.RunID, "start_event", start.Kind().String())

	result, err := e.loop(ctx, runCtx, rc, dispatch, start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.logger.Error("engine.run.failed", "run_id", rc.RunID, "duration_ms", time.Since(started).Milliseconds(), "error", err)
		return "", err
	}

	e.logTransition("engine.run.done", "run_id", rc.RunID, "duration_ms", time.Since(started).Milliseconds())

	return result, nil
}

func (e *Engine) loop(
	parent, ctx context.Context,
	rc *core.RunContext,
	dispatch map[core.EventKind][]Step,
	start core.Event,
) (string, error) {
	queue := newEventQueue(e.config.QueueSize)
	if err := queue.push(start); err != nil {
		return "", err
	}

	// Unbuffered: a concurrent step blocks until the loop receives its result
	// or the run context is cancelled, so abandoned steps never leak.
	results := make(chan stepResult)
	inFlight := 0

	for {
		for queue.len() > 0 {
			if ctx.Err() != nil {
				return "", e.contextError(parent, ctx)
			}

			ev := queue.pop()

			if stop, ok := ev.(core.StopEvent); ok {
				return stop.Result, nil
			}

			steps := dispatch[ev.Kind()]
			if len(steps) == 0 {
				return "", fmt.Errorf("%w: %s", core.ErrUnhandledEvent, ev.Kind())
			}

			for _, s := range steps {
				if s.Concurrent {
					inFlight++
					go e.runConcurrent(ctx, rc, s, ev, results)
					continue
				}

				out, err := e.runInline(ctx, rc, s, ev)
				if err != nil {
					if ctx.Err() != nil {
						return "", e.contextError(parent, ctx)
					}
					return "", err
				}

				if err := queue.push(out...); err != nil {
					return "", err
				}
			}
		}

		if inFlight == 0 {
			return "", core.ErrStalled
		}

		select {
		case <-ctx.Done():
			e.logger.Warn("engine.run.abandoned", "run_id", rc.RunID, "in_flight", inFlight)
			return "", e.contextError(parent, ctx)
		case r := <-results:
			inFlight--
			if r.err != nil {
				if ctx.Err() != nil {
					return "", e.contextError(parent, ctx)
				}
				return "", r.err
			}
			if err := queue.push(r.events...); err != nil {
				return "", err
			}
		}
	}
}

// runInline executes a non-concurrent step, applying join buffering first.
func (e *Engine) runInline(ctx context.Context, rc *core.RunContext, s Step, ev core.Event) ([]core.Event, error) {
	if s.Join != nil && ev.Kind() == s.Join.Kind {
		expected, ok := rc.Int(s.Join.CountKey)
		if !ok || expected <= 0 {
			return nil, fmt.Errorf("step %s: join count %q not set", s.Name, s.Join.CountKey)
		}

		batch, ready := rc.Barrier(s.Name).Add(ev, expected)
		if !ready {
			e.logger.Debug("engine.join.waiting", "run_id", rc.RunID, "step", s.Name, "collected", rc.Barrier(s.Name).Pending(), "expected", expected)
			return nil, nil
		}

		return e.execute(ctx, rc, s, ev, func(ctx context.Context) ([]core.Event, error) {
			return s.HandleJoin(ctx, rc, batch)
		})
	}

	return e.execute(ctx, rc, s, ev, func(ctx context.Context) ([]core.Event, error) {
		return s.Handle(ctx, rc, ev)
	})
}

func (e *Engine) runConcurrent(ctx context.Context, rc *core.RunContext, s Step, ev core.Event, results chan<- stepResult) {
	out, err := e.execute(ctx, rc, s, ev, func(ctx context.Context) ([]core.Event, error) {
		return s.Handle(ctx, rc, ev)
	})

	select {
	case results <- stepResult{step: s.Name, events: out, err: err}:
	case <-ctx.Done():
		e.logger.Debug("engine.step.discarded", "run_id", rc.RunID, "step", s.Name)
	}
}

// execute wraps a handler invocation with tracing, callbacks, logging and
// panic recovery.
func (e *Engine) execute(
	ctx context.Context,
	rc *core.RunContext,
	s Step,
	ev core.Event,
	fn func(ctx context.Context) ([]core.Event, error),
) (out []core.Event, err error) {
	ctx, span := e.tracer.Start(ctx, "step."+s.Name, trace.WithAttributes(
		attribute.String("toolflow.step", s.Name),
		attribute.String("toolflow.event", ev.Kind().String()),
		attribute.String("toolflow.run_id", rc.RunID),
		attribute.Bool("toolflow.concurrent", s.Concurrent),
	))
	started := time.Now()

	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("step %s panicked: %v", s.Name, r)
		}

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			cbErr := e.callbacks.ExecuteCallbacks(ctx, CallbackOnError, &CallbackContext{Run: rc, Step: s.Name, Event: ev, Err: err})
			if cbErr != nil {
				e.logger.Warn("engine.callback.failed", "run_id", rc.RunID, "step", s.Name, "error", cbErr)
			}
		} else {
			span.SetAttributes(attribute.Int("toolflow.emitted", len(out)))
		}

		span.End()
	}()

	e.logTransition("engine.step.start", "run_id", rc.RunID, "step", s.Name, "event", ev.Kind().String())

	if err := e.callbacks.ExecuteCallbacks(ctx, CallbackBeforeStep, &CallbackContext{Run: rc, Step: s.Name, Event: ev}); err != nil {
		return nil, fmt.Errorf("step %s: %w", s.Name, err)
	}

	out, err = fn(ctx)
	if err != nil {
		return nil, fmt.Errorf("step %s: %w", s.Name, err)
	}

	if err := e.callbacks.ExecuteCallbacks(ctx, CallbackAfterStep, &CallbackContext{Run: rc, Step: s.Name, Event: ev, Emitted: out}); err != nil {
		return nil, fmt.Errorf("step %s: %w", s.Name, err)
	}

	e.logTransition("engine.step.done", "run_id", rc.RunID, "step", s.Name, "emitted", kinds(out), "duration_ms", time.Since(started).Milliseconds())

	return out, nil
}

// contextError maps a finished run context to the error reported by Run.
// The engine's own deadline becomes *core.TimeoutError; a cancelled or
// expired caller context is reported as is.
func (e *Engine) contextError(parent, ctx context.Context) error {
	if err := parent.Err(); err != nil {
		return err
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &core.TimeoutError{Timeout: e.config.Timeout}
	}

	return ctx.Err()
}

func (e *Engine) logTransition(msg string, args ...any) {
	if e.config.Verbose {
		e.logger.Info(msg, args...)
		return
	}
	e.logger.Debug(msg, args...)
}

func (e *Engine) snapshot() map[core.EventKind][]Step {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make(map[core.EventKind][]Step, len(e.dispatch))
	for k, steps := range e.dispatch {
		out[k] = append([]Step(nil), steps...)
	}

	return out
}

func kinds(evs []core.Event) []string {
	out := make([]string, 0, len(evs))
	for _, ev := range evs {
		out = append(out, ev.Kind().String())
	}
	return out
}
