package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/toolflow/core"
	"github.com/hupe1980/toolflow/engine"
	"github.com/hupe1980/toolflow/logging"
	"github.com/hupe1980/toolflow/model"
	"github.com/hupe1980/toolflow/tool"
)

func (w *Workflow) steps() []engine.Step {
	return []engine.Step{
		{
			Name:    StepPrepareChat,
			Accepts: []core.EventKind{core.KindStart},
			Emits:   []core.EventKind{core.KindInput},
			Handle:  w.prepareChat,
		},
		{
			Name:    StepChat,
			Accepts: []core.EventKind{core.KindInput},
			Emits:   []core.EventKind{core.KindGatherTools, core.KindStop},
			Handle:  w.chat,
		},
		{
			Name:    StepDispatchCalls,
			Accepts: []core.EventKind{core.KindGatherTools},
			Emits:   []core.EventKind{core.KindToolCall},
			Handle:  w.dispatchCalls,
		},
		{
			Name:       StepCallTool,
			Accepts:    []core.EventKind{core.KindToolCall},
			Emits:      []core.EventKind{core.KindToolCallResult},
			Concurrent: true,
			Handle:     w.callTool,
		},
		{
			Name:       StepGather,
			Accepts:    []core.EventKind{core.KindToolCallResult},
			Emits:      []core.EventKind{core.KindInput},
			Join:       &engine.Join{Kind: core.KindToolCallResult, CountKey: core.KeyPendingToolCalls},
			HandleJoin: w.gather,
		},
	}
}

// prepareChat records the user's message.
func (w *Workflow) prepareChat(_ context.Context, rc *core.RunContext, ev core.Event) ([]core.Event, error) {
	start, ok := ev.(core.StartEvent)
	if !ok {
		return nil, fmt.Errorf("unexpected event %s", ev.Kind())
	}

	if strings.TrimSpace(start.Message) == "" {
		return nil, &core.ValidationError{Field: "message", Message: "'message' field is required"}
	}

	rc.History.Append(core.NewUserMessage(start.Message))

	return []core.Event{core.InputEvent{}}, nil
}

// chat asks the model for the next turn. A reply without tool calls ends the
// run with its text.
func (w *Workflow) chat(ctx context.Context, rc *core.RunContext, _ core.Event) ([]core.Event, error) {
	if err := rc.Limiter.Increment(); err != nil {
		return nil, err
	}

	instructions, err := w.instructions.Resolve(rc, w.tools.Names())
	if err != nil {
		return nil, fmt.Errorf("resolve instructions: %w", err)
	}

	req := model.Request{
		Instructions:           instructions,
		History:                rc.History.Messages(),
		Tools:                  w.tools.Definitions(),
		AllowParallelToolCalls: true,
	}

	started := time.Now()
	resp, err := w.model.ChatWithTools(ctx, req)

	tokens := 0
	if resp != nil && resp.Usage != nil {
		tokens = resp.Usage.TotalTokens
	}

	logging.LogModelCall(rc.Logger(), w.model.Info().Name, tokens, time.Since(started), err)

	if err != nil {
		return nil, err
	}

	if resp == nil {
		return nil, fmt.Errorf("model returned no response")
	}

	calls, err := model.ParseToolCalls(resp.ToolCalls)
	if err != nil {
		rc.LogWarn("workflow.chat.malformed_tool_calls", "error", err.Error())
		calls = nil
	}

	rc.History.Append(core.NewModelMessage(resp.Content, calls...))

	if len(calls) == 0 {
		return []core.Event{core.StopEvent{Result: resp.Content}}, nil
	}

	if w.opts.Verbose {
		names := make([]string, len(calls))
		for i, c := range calls {
			names[i] = c.Name
		}
		rc.LogInfo("workflow.chat.tool_calls", "count", len(calls), "tools", strings.Join(names, ","))
	}

	return []core.Event{core.GatherToolsEvent{ToolCalls: calls}}, nil
}

// dispatchCalls records how many results gather must wait for and fans the
// calls out.
func (w *Workflow) dispatchCalls(_ context.Context, rc *core.RunContext, ev core.Event) ([]core.Event, error) {
	gather, ok := ev.(core.GatherToolsEvent)
	if !ok {
		return nil, fmt.Errorf("unexpected event %s", ev.Kind())
	}

	rc.Barrier(StepGather).Reset()
	rc.Set(core.KeyPendingToolCalls, len(gather.ToolCalls))

	out := make([]core.Event, len(gather.ToolCalls))
	for i, call := range gather.ToolCalls {
		out[i] = core.ToolCallEvent{ToolCall: call}
	}

	return out, nil
}

// callTool runs one tool. It executes concurrently with its siblings and
// must not touch the history.
func (w *Workflow) callTool(ctx context.Context, rc *core.RunContext, ev core.Event) ([]core.Event, error) {
	tce, ok := ev.(core.ToolCallEvent)
	if !ok {
		return nil, fmt.Errorf("unexpected event %s", ev.Kind())
	}

	call := tce.ToolCall

	if _, err := w.tools.Lookup(call.Name); err != nil {
		return nil, err
	}

	tc := core.NewToolContext(ctx, rc, call)

	started := time.Now()
	result, err := w.tools.Invoke(tc, call)

	logging.LogToolCall(tc.Logger(), call.Name, time.Since(started), err)

	if err != nil {
		return nil, err
	}

	msg := core.NewToolMessage(call.Name, call.ID, tool.Stringify(result))

	return []core.Event{core.ToolCallResultEvent{Message: msg}}, nil
}

// gather appends a completed batch of tool results in arrival order and
// hands control back to chat.
func (w *Workflow) gather(_ context.Context, rc *core.RunContext, batch []core.Event) ([]core.Event, error) {
	msgs := make([]core.Message, 0, len(batch))
	for _, ev := range batch {
		res, ok := ev.(core.ToolCallResultEvent)
		if !ok {
			return nil, fmt.Errorf("unexpected event %s", ev.Kind())
		}
		msgs = append(msgs, res.Message)
	}

	rc.History.Append(msgs...)
	rc.Delete(core.KeyPendingToolCalls)

	return []core.Event{core.InputEvent{}}, nil
}
