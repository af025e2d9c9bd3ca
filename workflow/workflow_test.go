package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/toolflow/core"
	"github.com/hupe1980/toolflow/engine"
	"github.com/hupe1980/toolflow/internal/testutil"
	"github.com/hupe1980/toolflow/model"
	"github.com/hupe1980/toolflow/tool"
)

var nameSchema = map[string]any{
	"type":       "object",
	"properties": map[string]any{"name": map[string]any{"type": "string"}},
	"required":   []any{"name"},
}

var querySchema = map[string]any{
	"type":       "object",
	"properties": map[string]any{"query": map[string]any{"type": "string"}},
	"required":   []any{"query"},
}

func memberTool(fn func(tc *core.ToolContext, args map[string]any) (any, error)) tool.Tool {
	if fn == nil {
		fn = func(_ *core.ToolContext, args map[string]any) (any, error) {
			return map[string]any{"name": args["name"], "policy_type": "Health", "coverage_amount": 5000}, nil
		}
	}
	return tool.NewFunctionTool("member_lookup", "Look up insurance members", nameSchema, fn)
}

func policyTool(fn func(tc *core.ToolContext, args map[string]any) (any, error)) tool.Tool {
	if fn == nil {
		fn = func(_ *core.ToolContext, _ map[string]any) (any, error) {
			return "Claims must be filed within 30 days.", nil
		}
	}
	return tool.NewFunctionTool("policy_query", "Answer questions about policies", querySchema, fn)
}

func newWorkflow(t *testing.T, m model.Model, tools []tool.Tool, optFns ...func(o *Options)) *Workflow {
	t.Helper()

	wf, err := New(m, tool.MustRegistry(tools...), optFns...)
	require.NoError(t, err)

	return wf
}

// -------------------- Construction Tests --------------------

func TestNew(t *testing.T) {
	t.Run("requires model", func(t *testing.T) {
		_, err := New(nil, nil)
		require.Error(t, err)
	})

	t.Run("rejects negative model budget", func(t *testing.T) {
		_, err := New(model.NewScriptedModel(), nil, func(o *Options) { o.MaxModelCalls = -1 })

		var vErr *core.ValidationError
		assert.ErrorAs(t, err, &vErr)
	})

	t.Run("registers steps", func(t *testing.T) {
		wf := newWorkflow(t, model.NewScriptedModel(), nil)
		assert.Equal(t, []string{StepPrepareChat, StepChat, StepDispatchCalls, StepCallTool, StepGather}, wf.Steps())
		assert.Equal(t, 0, wf.Tools().Len())
	})
}

func TestWorkflow_Graph(t *testing.T) {
	wf := newWorkflow(t, model.NewScriptedModel(), nil)

	dot := wf.Graph()
	assert.True(t, strings.HasPrefix(dot, "digraph workflow {"))
	assert.Contains(t, dot, `"event:start" -> "step:prepare_chat"`)
	assert.Contains(t, dot, `"step:chat" -> "event:gather_tools"`)
	assert.Contains(t, dot, `"step:gather" -> "event:input"`)
}

// -------------------- Scenario Tests --------------------

func TestWorkflow_SingleToolRound(t *testing.T) {
	m := model.NewScriptedModel(
		testutil.NewResponseBuilder().ToolCall("c1", "member_lookup", map[string]any{"name": "John Doe"}).Build(),
		testutil.NewResponseBuilder().Text("John Doe holds a Health policy with 5000 coverage.").Build(),
	)
	wf := newWorkflow(t, m, []tool.Tool{memberTool(nil), policyTool(nil)})

	result, err := wf.Run(context.Background(), "Show me member details for member with name John Doe?")
	require.NoError(t, err)
	assert.Contains(t, result, "John Doe")
	assert.Equal(t, 2, m.Calls())

	history := wf.History()
	assert.Equal(t, []core.Role{core.RoleUser, core.RoleModel, core.RoleTool, core.RoleModel}, testutil.Roles(history))

	toolMsg := history[2]
	assert.Equal(t, "member_lookup", toolMsg.ToolName)
	assert.Equal(t, "c1", toolMsg.ToolCallID)
	assert.Contains(t, toolMsg.Content, `"name":"John Doe"`)

	require.Len(t, history[1].ToolCalls, 1)
	assert.Equal(t, map[string]any{"name": "John Doe"}, history[1].ToolCalls[0].Arguments)

	reqs := m.Requests()
	require.Len(t, reqs, 2)
	assert.True(t, reqs[0].AllowParallelToolCalls)
	require.Len(t, reqs[0].Tools, 2)
	assert.Equal(t, "member_lookup", reqs[0].Tools[0].Name)
	assert.Len(t, reqs[0].History, 1)
	assert.Len(t, reqs[1].History, 3)
}

func TestWorkflow_DirectAnswer(t *testing.T) {
	var ran []string
	var toolSteps atomic.Int32

	callbacks := engine.NewCallbackManager()
	callbacks.RegisterCallback(engine.NewFunctionCallback(engine.CallbackAfterStep, func(_ context.Context, c *engine.CallbackContext) error {
		ran = append(ran, c.Step)
		return nil
	}))
	for _, cbType := range []engine.CallbackType{engine.CallbackBeforeStep, engine.CallbackAfterStep} {
		callbacks.RegisterCallback(engine.NewFunctionCallback(cbType, func(context.Context, *engine.CallbackContext) error {
			toolSteps.Add(1)
			return nil
		}).ForSteps(StepDispatchCalls, StepCallTool, StepGather))
	}

	m := model.NewScriptedModel().AddText("Hello! How can I help?")
	wf := newWorkflow(t, m, []tool.Tool{memberTool(nil)}, func(o *Options) { o.Callbacks = callbacks })

	result, err := wf.Run(context.Background(), "Hi there")
	require.NoError(t, err)
	assert.Equal(t, "Hello! How can I help?", result)
	assert.Equal(t, 1, m.Calls())
	assert.Len(t, wf.History(), 2)

	assert.Equal(t, []string{StepPrepareChat, StepChat}, ran)
	assert.Zero(t, toolSteps.Load(), "no tool step may run when the model requests no tools")
}

func TestWorkflow_ParallelToolCalls(t *testing.T) {
	var started sync.WaitGroup
	started.Add(2)

	allStarted := make(chan struct{})
	go func() {
		started.Wait()
		close(allStarted)
	}()

	// Each tool only returns once both are running, which proves they execute concurrently.
	rendezvous := func(result string) func(*core.ToolContext, map[string]any) (any, error) {
		return func(tc *core.ToolContext, _ map[string]any) (any, error) {
			started.Done()
			select {
			case <-allStarted:
				return result, nil
			case <-time.After(time.Second):
				return nil, errors.New("sibling tool never started")
			case <-tc.Context().Done():
				return nil, tc.Context().Err()
			}
		}
	}

	m := model.NewScriptedModel(
		testutil.NewResponseBuilder().
			ToolCall("c1", "member_lookup", map[string]any{"name": "Jane Smith"}).
			ToolCall("c2", "policy_query", map[string]any{"query": "life insurance claims"}).
			Build(),
		testutil.NewResponseBuilder().Text("Jane Smith holds Life cover; claims within 30 days.").Build(),
	)

	var gatherBatch int
	callbacks := engine.NewCallbackManager()
	callbacks.RegisterCallback(engine.NewFunctionCallback(engine.CallbackAfterStep, func(context.Context, *engine.CallbackContext) error {
		gatherBatch++
		return nil
	}).ForSteps(StepGather))

	wf := newWorkflow(t, m,
		[]tool.Tool{memberTool(rendezvous("Life")), policyTool(rendezvous("30 days"))},
		func(o *Options) { o.Callbacks = callbacks },
	)

	result, err := wf.Run(context.Background(), "What policy does Jane Smith hold and how do I claim?")
	require.NoError(t, err)
	assert.Contains(t, result, "Jane Smith")
	assert.Equal(t, 1, gatherBatch)

	history := wf.History()
	require.Len(t, history, 5)
	assert.ElementsMatch(t, []string{"c1", "c2"}, []string{history[2].ToolCallID, history[3].ToolCallID})
	assert.Len(t, m.Requests()[1].History, 4)
}

func TestWorkflow_ResultsInArrivalOrder(t *testing.T) {
	slow := memberTool(func(_ *core.ToolContext, _ map[string]any) (any, error) {
		time.Sleep(80 * time.Millisecond)
		return "slow", nil
	})
	fast := policyTool(func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return "fast", nil
	})

	m := model.NewScriptedModel(
		testutil.NewResponseBuilder().
			ToolCall("c1", "member_lookup", map[string]any{"name": "Bob Brown"}).
			ToolCall("c2", "policy_query", map[string]any{"query": "fire"}).
			Build(),
	).WithFallback("done")

	wf := newWorkflow(t, m, []tool.Tool{slow, fast})

	_, err := wf.Run(context.Background(), "Bob Brown fire cover")
	require.NoError(t, err)

	history := wf.History()
	require.Len(t, history, 5)
	assert.Equal(t, "c2", history[2].ToolCallID)
	assert.Equal(t, "fast", history[2].Content)
	assert.Equal(t, "c1", history[3].ToolCallID)
	assert.Equal(t, "slow", history[3].Content)
}

func TestWorkflow_EmptyMessage(t *testing.T) {
	m := model.NewScriptedModel().AddText("unused")
	wf := newWorkflow(t, m, nil)

	for _, msg := range []string{"", "   \n\t"} {
		_, err := wf.Run(context.Background(), msg)

		var vErr *core.ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "message", vErr.Field)
	}

	assert.Equal(t, 0, m.Calls())
	assert.Empty(t, wf.History())
}

// -------------------- Multi-round & History Tests --------------------

func TestWorkflow_MultipleToolRounds(t *testing.T) {
	var calls atomic.Int32
	lookup := memberTool(func(_ *core.ToolContext, args map[string]any) (any, error) {
		calls.Add(1)
		return args["name"], nil
	})

	m := model.NewScriptedModel(
		testutil.NewResponseBuilder().ToolCall("r1", "member_lookup", map[string]any{"name": "Alice Johnson"}).Build(),
		testutil.NewResponseBuilder().
			ToolCall("r2a", "member_lookup", map[string]any{"name": "Charlie Davis"}).
			ToolCall("r2b", "member_lookup", map[string]any{"name": "Bob Brown"}).
			Build(),
		testutil.NewResponseBuilder().Text("Alice, Charlie and Bob are members.").Build(),
	)

	wf := newWorkflow(t, m, []tool.Tool{lookup})

	result, err := wf.Run(context.Background(), "Which of these are members?")
	require.NoError(t, err)
	assert.Equal(t, "Alice, Charlie and Bob are members.", result)
	assert.Equal(t, int32(3), calls.Load())

	// user, model, tool, model, tool, tool, model
	reqs := m.Requests()
	require.Len(t, reqs, 3)
	assert.Len(t, reqs[0].History, 1)
	assert.Len(t, reqs[1].History, 3)
	assert.Len(t, reqs[2].History, 6)
	assert.Len(t, wf.History(), 7)
}

func TestWorkflow_ConversationPersistsAcrossRuns(t *testing.T) {
	m := model.NewScriptedModel().AddText("first").AddText("second")
	wf := newWorkflow(t, m, nil)

	_, err := wf.Run(context.Background(), "one")
	require.NoError(t, err)

	_, err = wf.Run(context.Background(), "two")
	require.NoError(t, err)

	assert.Len(t, m.Requests()[1].History, 3)
	assert.Len(t, wf.History(), 4)

	wf.Reset()
	assert.Empty(t, wf.History())
}

func TestWorkflow_FailedRunLeavesHistoryUntouched(t *testing.T) {
	m := model.NewScriptedModel().AddText("ok").FailOn(1, errors.New("provider unavailable"))
	wf := newWorkflow(t, m, nil)

	_, err := wf.Run(context.Background(), "first")
	require.NoError(t, err)

	before := wf.History()

	_, err = wf.Run(context.Background(), "second")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider unavailable")

	assert.Equal(t, before, wf.History())
}

// -------------------- Error Tests --------------------

func TestWorkflow_ToolNotFound(t *testing.T) {
	m := model.NewScriptedModel(
		testutil.NewResponseBuilder().ToolCall("c1", "sql_query", map[string]any{"q": "x"}).Build(),
	).WithFallback("unreachable")

	wf := newWorkflow(t, m, []tool.Tool{memberTool(nil)})

	result, err := wf.Run(context.Background(), "Query the members table")

	var notFound *core.ToolNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "sql_query", notFound.Name)
	assert.Empty(t, result)
	assert.Equal(t, 1, m.Calls())
}

func TestWorkflow_ToolFailureFailsRun(t *testing.T) {
	var policyRan atomic.Bool

	failing := memberTool(func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return nil, errors.New("members database offline")
	})
	ok := policyTool(func(_ *core.ToolContext, _ map[string]any) (any, error) {
		policyRan.Store(true)
		return "fine", nil
	})

	m := model.NewScriptedModel(
		testutil.NewResponseBuilder().
			ToolCall("c1", "member_lookup", map[string]any{"name": "John Doe"}).
			ToolCall("c2", "policy_query", map[string]any{"query": "accident"}).
			Build(),
	).WithFallback("unreachable")

	wf := newWorkflow(t, m, []tool.Tool{failing, ok})

	_, err := wf.Run(context.Background(), "John Doe accident cover")

	var invErr *core.ToolInvocationError
	require.ErrorAs(t, err, &invErr)
	assert.Equal(t, core.CodeExecution, invErr.Code)
	assert.Equal(t, "member_lookup", invErr.Tool)
	assert.Equal(t, 1, m.Calls())
	assert.Empty(t, wf.History())

	assert.Eventually(t, policyRan.Load, time.Second, 5*time.Millisecond)
}

func TestWorkflow_InvalidToolArguments(t *testing.T) {
	m := model.NewScriptedModel(
		testutil.NewResponseBuilder().ToolCall("c1", "member_lookup", map[string]any{"id": 7}).Build(),
	).WithFallback("unreachable")

	wf := newWorkflow(t, m, []tool.Tool{memberTool(nil)})

	_, err := wf.Run(context.Background(), "lookup")

	var invErr *core.ToolInvocationError
	require.ErrorAs(t, err, &invErr)
	assert.Equal(t, core.CodeValidation, invErr.Code)
}

func TestWorkflow_TimeoutAbandonsTools(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	blocking := memberTool(func(_ *core.ToolContext, _ map[string]any) (any, error) {
		<-release
		return "late", nil
	})

	m := model.NewScriptedModel(
		testutil.NewResponseBuilder().ToolCall("c1", "member_lookup", map[string]any{"name": "John Doe"}).Build(),
	).WithFallback("unreachable")

	wf := newWorkflow(t, m, []tool.Tool{blocking}, func(o *Options) { o.Timeout = 50 * time.Millisecond })

	start := time.Now()
	result, err := wf.Run(context.Background(), "John Doe")
	require.Error(t, err)

	var timeoutErr *core.TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, result)
	assert.Less(t, time.Since(start), time.Second)
	assert.Empty(t, wf.History())
}

func TestWorkflow_MalformedToolCallsEndRun(t *testing.T) {
	m := model.NewScriptedModel(
		testutil.NewResponseBuilder().
			Text("I think you want member details.").
			RawToolCall("c1", "member_lookup", `{"name": "John`).
			Build(),
	)

	var toolRan atomic.Bool
	wf := newWorkflow(t, m, []tool.Tool{memberTool(func(_ *core.ToolContext, _ map[string]any) (any, error) {
		toolRan.Store(true)
		return nil, nil
	})})

	result, err := wf.Run(context.Background(), "John Doe details")
	require.NoError(t, err)
	assert.Equal(t, "I think you want member details.", result)
	assert.False(t, toolRan.Load())
	assert.Equal(t, 1, m.Calls())

	history := wf.History()
	require.Len(t, history, 2)
	assert.Empty(t, history[1].ToolCalls)
}

func TestWorkflow_SeededHistory(t *testing.T) {
	seed := testutil.NewHistoryBuilder().
		User("Who is member M002?").
		Model("Jane Smith.").
		Messages()

	m := model.NewScriptedModel().AddText("She holds a Life policy.")
	wf := newWorkflow(t, m, nil, func(o *Options) { o.History = seed })

	seed[0].Content = "mutated"

	result, err := wf.Run(context.Background(), "What policy does she hold?")
	require.NoError(t, err)
	assert.Equal(t, "She holds a Life policy.", result)

	req := m.Requests()[0]
	require.Len(t, req.History, 3)
	assert.Equal(t, "Who is member M002?", req.History[0].Content)
	assert.Equal(t, []core.Role{core.RoleUser, core.RoleModel, core.RoleUser}, testutil.Roles(req.History))
	assert.Len(t, wf.History(), 4)

	wf.Reset()
	assert.Empty(t, wf.History())
}

func TestWorkflow_ManyToolRoundsWithDefaults(t *testing.T) {
	const rounds = 25

	m := model.NewScriptedModel()
	for i := 0; i < rounds; i++ {
		m.AddResponse(testutil.NewResponseBuilder().ToolCall(fmt.Sprintf("c%d", i), "member_lookup", map[string]any{"name": "Jane"}).Build())
	}
	m.AddText("final answer")

	wf := newWorkflow(t, m, []tool.Tool{memberTool(nil)})

	result, err := wf.Run(context.Background(), "keep looking")
	require.NoError(t, err)
	assert.Equal(t, "final answer", result)
	assert.Equal(t, rounds+1, m.Calls())
	assert.Len(t, wf.History(), 1+2*rounds+1)
}

func TestWorkflow_MaxModelCalls(t *testing.T) {
	m := model.NewScriptedModel()
	for i := 0; i < 5; i++ {
		m.AddResponse(testutil.NewResponseBuilder().ToolCall(core.NewID(), "member_lookup", map[string]any{"name": "loop"}).Build())
	}

	wf := newWorkflow(t, m, []tool.Tool{memberTool(nil)}, func(o *Options) { o.MaxModelCalls = 2 })

	_, err := wf.Run(context.Background(), "loop forever")
	require.ErrorIs(t, err, core.ErrMaxModelCalls)
	assert.Equal(t, 2, m.Calls())
}

func TestWorkflow_CallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	wf := newWorkflow(t, model.NewScriptedModel().AddText("unused"), nil)

	_, err := wf.Run(ctx, "hello")
	assert.ErrorIs(t, err, context.Canceled)
}

// -------------------- Instruction Tests --------------------

func TestWorkflow_Instructions(t *testing.T) {
	m := model.NewScriptedModel().AddText("ok")
	wf := newWorkflow(t, m, []tool.Tool{memberTool(nil), policyTool(nil)}, func(o *Options) {
		o.Instructions = NewInstructionFromText(`Use {{ join ", " .tools }} (turn {{ .model_calls }}).`)
	})

	_, err := wf.Run(context.Background(), "hi")
	require.NoError(t, err)

	assert.Equal(t, "Use member_lookup, policy_query (turn 1).", m.Requests()[0].Instructions)
}

func TestInstruction(t *testing.T) {
	rc := core.NewRunContext("run-7", nil, 0, nil)

	static := NewInstructionFromText("plain")
	assert.True(t, static.IsStatic())
	assert.False(t, static.IsZero())

	got, err := static.Resolve(rc, nil)
	require.NoError(t, err)
	assert.Equal(t, "plain", got)

	dynamic := NewInstructionFromFunc(func(rc *core.RunContext) (string, error) { return "run " + rc.RunID, nil })
	assert.False(t, dynamic.IsStatic())

	got, err = dynamic.Resolve(rc, nil)
	require.NoError(t, err)
	assert.Equal(t, "run run-7", got)

	assert.True(t, Instruction{}.IsZero())

	_, err = NewInstructionFromText("{{ .broken").Resolve(rc, nil)
	assert.Error(t, err)
}
