// Package workflow wires the tool-calling conversation loop on top of the
// engine package.
//
// A run flows through five steps:
//
//	prepare_chat   Start -> Input            records the user message
//	chat           Input -> GatherTools|Stop asks the model for the next turn
//	dispatch_calls GatherTools -> ToolCall*  fans out one event per tool call
//	call_tool      ToolCall -> ToolCallResult runs one tool, concurrently
//	gather         ToolCallResult* -> Input  joins all results, loops to chat
//
// The loop ends when the model answers without requesting tools. Tool
// results are appended in the order they complete, not the order they were
// requested.
//
// Example:
//
//	registry := tool.MustRegistry(members.NewLookupTool(store), policy.NewQueryTool(index, 3))
//
//	wf, err := workflow.New(llm, registry, func(o *workflow.Options) {
//	    o.Timeout = 2 * time.Minute
//	    o.Logger = logger
//	})
//	if err != nil {
//	    return err
//	}
//
//	answer, err := wf.Run(ctx, "What policy does Jane Smith hold?")
package workflow
