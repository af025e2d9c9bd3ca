package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/toolflow/core"
	"github.com/hupe1980/toolflow/engine"
	"github.com/hupe1980/toolflow/logging"
	"github.com/hupe1980/toolflow/model"
	"github.com/hupe1980/toolflow/tool"
)

// Step names, in the order they are registered.
const (
	StepPrepareChat   = "prepare_chat"
	StepChat          = "chat"
	StepDispatchCalls = "dispatch_calls"
	StepCallTool      = "call_tool"
	StepGather        = "gather"
)

// Options configures a Workflow.
type Options struct {
	// Timeout bounds a whole run. Defaults to 120s; zero disables it.
	Timeout time.Duration

	// Verbose logs every step transition at info level.
	Verbose bool

	// History seeds the conversation. The messages are copied.
	History []core.Message

	// Instructions are sent to the model as system instructions on every turn.
	Instructions Instruction

	// MaxModelCalls caps the model turns of a single run. Zero, the default,
	// leaves runs bounded by Timeout alone.
	MaxModelCalls int

	// QueueSize bounds the scheduler's pending events.
	QueueSize int

	// Logger defaults to a no-op logger.
	Logger logging.Logger

	// Tracer defaults to the global OpenTelemetry tracer.
	Tracer trace.Tracer

	// Callbacks run around every step.
	Callbacks *engine.CallbackManager

	// DisableValidation skips the step graph check at the start of each run.
	DisableValidation bool
}

// Workflow routes a user message through a model that may call tools, runs
// requested tools concurrently and feeds their results back until the model
// answers directly.
//
// A Workflow keeps one conversation. Each Run works on a copy of it and
// commits the copy only when the run succeeds, so a failed run leaves the
// conversation untouched. Runs on the same Workflow are serialized.
type Workflow struct {
	model        model.Model
	tools        *tool.Registry
	instructions Instruction
	opts         Options
	logger       logging.Logger
	engine       *engine.Engine

	history *core.ChatHistory
	mu      sync.Mutex
}

// New creates a Workflow around m and the tools in registry. A nil registry
// is treated as an empty one.
//
// Example:
//
//	wf, err := workflow.New(llm, registry, func(o *workflow.Options) {
//	    o.Timeout = 30 * time.Second
//	    o.Instructions = workflow.NewInstructionFromText("You route insurance questions.")
//	})
func New(m model.Model, registry *tool.Registry, optFns ...func(o *Options)) (*Workflow, error) {
	if m == nil {
		return nil, fmt.Errorf("model is required")
	}

	opts := Options{
		Timeout:   engine.DefaultConfig.Timeout,
		QueueSize: engine.DefaultConfig.QueueSize,
		Logger:    logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	if opts.MaxModelCalls < 0 {
		return nil, &core.ValidationError{Field: "max_model_calls", Message: "must not be negative"}
	}

	if registry == nil {
		registry = tool.MustRegistry()
	}

	w := &Workflow{
		model:        m,
		tools:        registry,
		instructions: opts.Instructions,
		opts:         opts,
		logger:       logging.With(opts.Logger, "component", "workflow"),
		history:      core.NewChatHistory(opts.History...),
	}

	w.engine = engine.New(func(o *engine.Options) {
		o.Config = engine.Config{
			Timeout:           opts.Timeout,
			Verbose:           opts.Verbose,
			QueueSize:         opts.QueueSize,
			DisableValidation: opts.DisableValidation,
		}
		o.Logger = opts.Logger
		o.Tracer = opts.Tracer
		o.Callbacks = opts.Callbacks
	})

	for _, s := range w.steps() {
		if err := w.engine.AddStep(s); err != nil {
			return nil, err
		}
	}

	if err := w.engine.Validate(); err != nil {
		return nil, err
	}

	return w, nil
}

// Run sends message through the workflow and returns the model's final answer.
//
// Errors:
//   - *core.ValidationError for an empty message
//   - *core.TimeoutError when the run exceeds Options.Timeout
//   - *core.ToolNotFoundError when the model names an unregistered tool
//   - *core.ToolInvocationError when a tool fails
//   - core.ErrMaxModelCalls when Options.MaxModelCalls is set and spent
//   - the model adapter's error, or ctx.Err() on cancellation
func (w *Workflow) Run(ctx context.Context, message string) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	rc := core.NewRunContext("", w.history.Clone(), w.opts.MaxModelCalls, w.logger)

	result, err := w.engine.Run(ctx, rc, core.StartEvent{Message: message})
	if err != nil {
		return "", err
	}

	w.history = rc.History

	return result, nil
}

// History returns a copy of the committed conversation.
func (w *Workflow) History() []core.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.history.Messages()
}

// Reset clears the conversation, including any seeded History.
func (w *Workflow) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.history = core.NewChatHistory()
}

// Tools returns the registry the workflow dispatches to.
func (w *Workflow) Tools() *tool.Registry { return w.tools }

// Steps returns the registered step names.
func (w *Workflow) Steps() []string { return w.engine.Steps() }

// Graph renders the step graph in Graphviz DOT format.
func (w *Workflow) Graph() string { return w.engine.DOT() }
