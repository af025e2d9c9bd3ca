package tool

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/hupe1980/toolflow/core"
	"github.com/hupe1980/toolflow/model"
)

type entry struct {
	tool   Tool
	schema *jsonschema.Schema
}

// Registry maps tool names to implementations. It is built once and is
// read-only afterwards, so lookups and invocations are safe for concurrent use
// and always resolve the same name to the same tool.
type Registry struct {
	order   []string
	entries map[string]entry
}

// NewRegistry registers tools in the given order. Empty or duplicate names
// and parameter schemas that fail to compile are rejected.
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{entries: make(map[string]entry, len(tools))}

	for _, t := range tools {
		if t == nil {
			return nil, fmt.Errorf("nil tool")
		}

		name := t.Name()
		if name == "" {
			return nil, fmt.Errorf("tool name is required")
		}

		if _, exists := r.entries[name]; exists {
			return nil, fmt.Errorf("tool %s registered twice", name)
		}

		schema, err := compileSchema(name, t.Parameters())
		if err != nil {
			return nil, err
		}

		r.entries[name] = entry{tool: t, schema: schema}
		r.order = append(r.order, name)
	}

	return r, nil
}

// MustRegistry is like NewRegistry but panics on error.
func MustRegistry(tools ...Tool) *Registry {
	r, err := NewRegistry(tools...)
	if err != nil {
		panic(err)
	}
	return r
}

// Lookup returns the tool registered under name. Matching is exact; an unknown
// name yields *core.ToolNotFoundError.
func (r *Registry) Lookup(name string) (Tool, error) {
	e, ok := r.entries[name]
	if !ok {
		return nil, &core.ToolNotFoundError{Name: name}
	}
	return e.tool, nil
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Len returns the number of registered tools.
func (r *Registry) Len() int { return len(r.order) }

// Definitions returns the model-facing declarations of all tools in
// registration order.
func (r *Registry) Definitions() []model.ToolDefinition {
	defs := make([]model.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		t := r.entries[name].tool
		defs = append(defs, model.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	return defs
}

// Invoke resolves call.Name, validates the arguments against the tool's
// schema and executes it.
//
// Error Semantics:
//
//	unknown tool                 -> *core.ToolNotFoundError
//	schema violation             -> *core.ToolInvocationError{Code: VALIDATION_ERROR}
//	tool returned an error       -> *core.ToolInvocationError{Code: EXECUTION_ERROR}
//	tool panicked                -> *core.ToolInvocationError{Code: PANIC}
//	context done (async tools)   -> the context error, wrapped
//
// Tools returning a *core.ToolInvocationError have it forwarded unchanged.
func (r *Registry) Invoke(tc *core.ToolContext, call core.ToolCall) (any, error) {
	e, ok := r.entries[call.Name]
	if !ok {
		return nil, &core.ToolNotFoundError{Name: call.Name}
	}

	logger := tc.Logger()
	start := time.Now()

	logger.Debug("tool.call.start", "tool", call.Name, "fc_id", call.ID)

	args := call.Arguments
	if args == nil {
		args = map[string]any{}
	}

	if err := validateArgs(e.schema, args); err != nil {
		logger.Warn("tool.call.validation_failed", "tool", call.Name, "error", err.Error())

		return nil, &core.ToolInvocationError{
			Tool:    call.Name,
			CallID:  call.ID,
			Code:    core.CodeValidation,
			Message: fmt.Sprintf("parameter validation failed: %v", err),
			Err:     err,
		}
	}

	var (
		result any
		err    error
	)

	if a, ok := e.tool.(AsyncTool); ok && a.IsAsync() {
		result, err = callAsync(tc, e.tool, call, args)
	} else {
		result, err = callSafe(tc, e.tool, call, args)
	}

	if err != nil {
		logger.Debug("tool.call.error", "tool", call.Name, "fc_id", call.ID, "error", err.Error())
		return nil, err
	}

	logger.Info("tool.call.success", "tool", call.Name, "fc_id", call.ID, "duration_ms", time.Since(start).Milliseconds())

	return result, nil
}

type callResult struct {
	value any
	err   error
}

func callAsync(tc *core.ToolContext, t Tool, call core.ToolCall, args map[string]any) (any, error) {
	ctx := tc.Context()
	done := make(chan callResult, 1)

	go func() {
		v, err := callSafe(tc, t, call, args)
		done <- callResult{value: v, err: err}
	}()

	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		return nil, fmt.Errorf("tool %s abandoned: %w", call.Name, ctx.Err())
	}
}

func callSafe(tc *core.ToolContext, t Tool, call core.ToolCall, args map[string]any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = &core.ToolInvocationError{
				Tool:    call.Name,
				CallID:  call.ID,
				Code:    core.CodePanic,
				Message: fmt.Sprintf("panic: %v", r),
			}
		}
	}()

	result, err = t.Call(tc, args)
	if err == nil {
		return result, nil
	}

	var invErr *core.ToolInvocationError
	if errors.As(err, &invErr) {
		return nil, err
	}

	return nil, &core.ToolInvocationError{
		Tool:   call.Name,
		CallID: call.ID,
		Code:   core.CodeExecution,
		Err:    err,
	}
}

// compileSchema compiles a tool's parameter schema. The schema is round
// tripped through JSON so Go typed values ([]string, nested structs) reach
// the compiler in their decoded form.
func compileSchema(name string, params map[string]any) (*jsonschema.Schema, error) {
	if len(params) == 0 {
		return nil, nil
	}

	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("tool %s: marshal schema: %w", name, err)
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("tool %s: unmarshal schema: %w", name, err)
	}

	url := name + ".schema.json"

	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("tool %s: add schema resource: %w", name, err)
	}

	schema, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("tool %s: compile schema: %w", name, err)
	}

	return schema, nil
}

func validateArgs(schema *jsonschema.Schema, args map[string]any) error {
	if schema == nil {
		return nil
	}

	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("marshal arguments: %w", err)
	}

	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("unmarshal arguments: %w", err)
	}

	return schema.Validate(payload)
}
