// Package toolflow provides a high-level façade over the workflow, tool and
// model packages for building tool-calling assistants. Most applications
// interact with this package by:
//  1. Loading a config.Config (or starting from config.Default())
//  2. Creating a model with NewModel, or supplying their own model.Model
//  3. Building the assistant with New or NewFromConfig and calling Run
//
// The façade delegates orchestration to workflow.Workflow while keeping setup
// concise. Defaults are safe for local development: an in-memory member
// table and an empty keyword policy index. Configuring an embedder switches
// the policy index to vector search.
package toolflow

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/toolflow/config"
	"github.com/hupe1980/toolflow/core"
	"github.com/hupe1980/toolflow/engine"
	"github.com/hupe1980/toolflow/logging"
	"github.com/hupe1980/toolflow/members"
	"github.com/hupe1980/toolflow/model"
	"github.com/hupe1980/toolflow/model/anthropic"
	"github.com/hupe1980/toolflow/model/openai"
	"github.com/hupe1980/toolflow/policy"
	"github.com/hupe1980/toolflow/tool"
	"github.com/hupe1980/toolflow/workflow"
)

// DefaultInstructions is the system prompt used when none is configured.
const DefaultInstructions = "You are an insurance assistant. Use the available tools to look up " +
	"member records and policy documents, call several tools at once when a question needs " +
	"more than one source, and answer from the tool results."

// Options configures a Toolflow instance.
type Options struct {
	// Tools are registered in order. Names must be unique.
	Tools []tool.Tool

	// Workflow options (timeout, verbosity, instructions, model budget).
	Workflow []func(o *workflow.Options)

	// RateLimit caps model requests per second; zero disables limiting.
	RateLimit float64
	Burst     int

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger

	// Embedder overrides the policy embedder selected by the config.
	// Only NewFromConfig reads it.
	Embedder policy.Embedder
}

// Toolflow is the high-level façade around a single workflow.
type Toolflow struct {
	wf      *workflow.Workflow
	logger  logging.Logger
	closers []func()
}

// Result is the outcome of an asynchronous run.
type Result struct {
	Answer string
	Err    error
}

// New creates a Toolflow around m.
func New(m model.Model, optFns ...func(o *Options)) (*Toolflow, error) {
	opts := Options{
		Burst:  1,
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	if m == nil {
		return nil, fmt.Errorf("model is required")
	}

	registry, err := tool.NewRegistry(opts.Tools...)
	if err != nil {
		return nil, err
	}

	m = model.WithRateLimit(m, model.NewRateLimiter(opts.RateLimit, opts.Burst))

	callbacks := engine.NewCallbackManager()
	callbacks.RegisterCallback(engine.NewLoggingCallback(engine.CallbackOnError, opts.Logger))

	wfOpts := append([]func(o *workflow.Options){
		func(o *workflow.Options) {
			o.Logger = opts.Logger
			o.Instructions = workflow.NewInstructionFromText(DefaultInstructions)
			o.Callbacks = callbacks
		},
	}, opts.Workflow...)

	wf, err := workflow.New(m, registry, wfOpts...)
	if err != nil {
		return nil, err
	}

	return &Toolflow{wf: wf, logger: opts.Logger}, nil
}

// NewFromConfig wires the member store, the policy index and the workflow
// described by cfg around m. A Postgres DSN selects the Postgres member
// store, which is seeded when cfg.Members.Seed is set. Without an embedder
// the policy index ranks by keyword overlap. optFns are applied after the
// config.
func NewFromConfig(ctx context.Context, cfg config.Config, m model.Model, logger logging.Logger, optFns ...func(o *Options)) (*Toolflow, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if logger == nil {
		logger = logging.NoOpLogger{}
	}

	var override Options
	for _, fn := range optFns {
		fn(&override)
	}

	embedder := override.Embedder
	if embedder == nil {
		e, err := NewEmbedder(cfg.Policy)
		if err != nil {
			return nil, err
		}
		embedder = e
	}

	var (
		store   members.Store
		closers []func()
	)

	if cfg.Members.DSN != "" {
		pg, err := members.NewPostgresStore(ctx, cfg.Members.DSN)
		if err != nil {
			return nil, err
		}
		closers = append(closers, pg.Close)

		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return nil, err
		}

		if cfg.Members.Seed {
			if err := pg.Seed(ctx); err != nil {
				pg.Close()
				return nil, err
			}
		}

		store = pg
	} else {
		store = members.NewInMemoryStore()
	}

	var index policy.DocumentIndex
	if embedder != nil {
		index = policy.NewVectorIndex(embedder, func(o *policy.VectorIndexOptions) {
			o.ChunkSize = cfg.Policy.ChunkSize
		})
	} else {
		index = policy.NewInMemoryIndex(cfg.Policy.ChunkSize)
	}

	if cfg.Policy.DocsDir != "" {
		files, err := index.LoadDir(ctx, cfg.Policy.DocsDir)
		if err != nil {
			for _, c := range closers {
				c()
			}
			return nil, err
		}
		logger.Info("toolflow.policy.loaded", "dir", cfg.Policy.DocsDir, "files", files, "chunks", index.Len(), "vector", embedder != nil)
	}

	instructions := DefaultInstructions
	if cfg.Instructions != "" {
		instructions = cfg.Instructions
	}

	fromConfig := func(o *Options) {
		o.Tools = []tool.Tool{
			members.NewLookupTool(store),
			policy.NewQueryTool(index, cfg.Policy.TopK),
		}
		o.RateLimit = cfg.Model.RequestsPerSecond
		o.Burst = cfg.Model.Burst
		o.Logger = logger
		o.Workflow = append(o.Workflow, func(wo *workflow.Options) {
			wo.Timeout = cfg.Timeout()
			wo.Verbose = cfg.Verbose
			wo.MaxModelCalls = cfg.MaxModelCalls
			wo.Instructions = workflow.NewInstructionFromText(instructions)
		})
	}

	tf, err := New(m, append([]func(o *Options){fromConfig}, optFns...)...)
	if err != nil {
		for _, c := range closers {
			c()
		}
		return nil, err
	}

	tf.closers = closers

	return tf, nil
}

// NewModel creates the model adapter selected by cfg. API keys are read from
// the provider's usual environment variable.
func NewModel(cfg config.ModelConfig) (model.Model, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return openai.NewModel(func(o *openai.Options) {
			if cfg.Name != "" {
				o.Model = cfg.Name
			}
			o.Temperature = cfg.Temperature
		}), nil
	case config.ProviderAnthropic:
		return anthropic.NewModel(func(o *anthropic.Options) {
			if cfg.Name != "" {
				o.Model = cfg.Name
			}
			o.Temperature = cfg.Temperature
		}), nil
	case config.ProviderScripted:
		return model.NewScriptedModel().WithFallback("No model provider is configured."), nil
	default:
		return nil, &core.ValidationError{Field: "model.provider", Message: fmt.Sprintf("unknown provider %q", cfg.Provider)}
	}
}

// NewEmbedder creates the policy embedder selected by cfg. It returns nil
// when no embedder is configured.
func NewEmbedder(cfg config.PolicyConfig) (policy.Embedder, error) {
	switch cfg.Embedder {
	case "":
		return nil, nil
	case config.EmbedderOpenAI:
		return openai.NewEmbedder(func(o *openai.EmbedderOptions) {
			if cfg.EmbeddingModel != "" {
				o.Model = cfg.EmbeddingModel
			}
		}), nil
	default:
		return nil, &core.ValidationError{Field: "policy.embedder", Message: fmt.Sprintf("unknown embedder %q", cfg.Embedder)}
	}
}

// Run sends message through the workflow and returns the final answer.
func (t *Toolflow) Run(ctx context.Context, message string) (string, error) {
	started := time.Now()

	answer, err := t.wf.Run(ctx, message)
	if err != nil {
		t.logger.Debug("toolflow.run.failed", "duration_ms", time.Since(started).Milliseconds(), "error", err)
		return "", err
	}

	t.logger.Info("toolflow.run.done", "duration_ms", time.Since(started).Milliseconds())

	return answer, nil
}

// RunAsync starts a run and delivers its outcome on the returned channel,
// which is closed after the single result.
func (t *Toolflow) RunAsync(ctx context.Context, message string) <-chan Result {
	out := make(chan Result, 1)

	go func() {
		defer close(out)
		answer, err := t.Run(ctx, message)
		out <- Result{Answer: answer, Err: err}
	}()

	return out
}

// Workflow returns the underlying workflow.
func (t *Toolflow) Workflow() *workflow.Workflow { return t.wf }

// History returns a copy of the conversation so far.
func (t *Toolflow) History() []core.Message { return t.wf.History() }

// Reset clears the conversation.
func (t *Toolflow) Reset() { t.wf.Reset() }

// Close releases backend connections.
func (t *Toolflow) Close() {
	for _, c := range t.closers {
		c()
	}
	t.closers = nil
}
