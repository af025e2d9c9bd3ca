package tool

import (
	"github.com/hupe1980/toolflow/core"
	"github.com/hupe1980/toolflow/internal/util"
)

// Func is the signature of a function backed tool. args have already been
// validated against the tool's parameter schema by the Registry.
type Func func(tc *core.ToolContext, args map[string]any) (any, error)

// FunctionOptions configures a FunctionTool.
type FunctionOptions struct {
	// Async runs the function on its own goroutine when invoked through a
	// Registry, so a run timeout abandons it instead of waiting.
	Async bool
}

// FunctionTool exposes a plain Go function as a Tool. It holds no mutable
// state and is safe for concurrent use.
type FunctionTool struct {
	name        string
	description string
	parameters  map[string]any
	fn          Func
	async       bool
}

// NewFunctionTool builds a tool from an explicit JSON schema. A nil schema
// accepts an empty object.
//
// Example:
//
//	claimTool := tool.NewFunctionTool(
//	  "claim_status",
//	  "Look up the status of a claim",
//	  map[string]any{
//	    "type":       "object",
//	    "properties": map[string]any{"claim_id": map[string]any{"type": "string"}},
//	    "required":   []string{"claim_id"},
//	  },
//	  func(tc *core.ToolContext, args map[string]any) (any, error) {
//	    return claims.Status(tc.Context(), args["claim_id"].(string))
//	  },
//	)
func NewFunctionTool(name, description string, parameters map[string]any, fn Func, optFns ...func(o *FunctionOptions)) *FunctionTool {
	var opts FunctionOptions
	for _, f := range optFns {
		f(&opts)
	}

	if parameters == nil {
		parameters = util.CreateSchema(nil)
	}

	return &FunctionTool{
		name:        name,
		description: description,
		parameters:  parameters,
		fn:          fn,
		async:       opts.Async,
	}
}

// NewFunctionToolFromStruct derives the parameter schema from the fields of
// structType (see util.CreateSchema for the supported tags).
func NewFunctionToolFromStruct(name, description string, structType any, fn Func, optFns ...func(o *FunctionOptions)) *FunctionTool {
	return NewFunctionTool(name, description, util.CreateSchema(structType), fn, optFns...)
}

// NewTypedTool derives the schema from T and decodes the arguments into a T
// before calling fn.
//
//	type lookupArgs struct {
//	  MemberID string `json:"member_id" description:"Member id such as M001"`
//	}
//
//	lookup := tool.NewTypedTool("member_lookup", "Find a member",
//	  func(tc *core.ToolContext, in lookupArgs) (any, error) {
//	    return store.FindByID(tc.Context(), in.MemberID)
//	  })
func NewTypedTool[T any](name, description string, fn func(tc *core.ToolContext, in T) (any, error), optFns ...func(o *FunctionOptions)) *FunctionTool {
	var zero T

	return NewFunctionToolFromStruct(name, description, zero, func(tc *core.ToolContext, args map[string]any) (any, error) {
		var in T
		if err := util.DecodeArgs(args, &in); err != nil {
			return nil, err
		}
		return fn(tc, in)
	}, optFns...)
}

// Name returns the tool name models use to request it.
func (t *FunctionTool) Name() string { return t.name }

// Description returns the text shown to models.
func (t *FunctionTool) Description() string { return t.description }

// Parameters returns the JSON schema of the arguments.
func (t *FunctionTool) Parameters() map[string]any { return t.parameters }

// IsAsync reports whether the Registry runs the tool on its own goroutine.
func (t *FunctionTool) IsAsync() bool { return t.async }

// Call invokes the wrapped function.
func (t *FunctionTool) Call(tc *core.ToolContext, args map[string]any) (any, error) {
	return t.fn(tc, args)
}
