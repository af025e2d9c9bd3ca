package workflow

import (
	"github.com/hupe1980/toolflow/core"
	"github.com/hupe1980/toolflow/internal/util"
)

// Provider supplies dynamic instruction text at runtime.
type Provider interface {
	Instruction(rc *core.RunContext) (string, error)
}

// Func is a functional adapter to allow ordinary functions to be used as Providers.
type Func func(rc *core.RunContext) (string, error)

// Instruction implements Provider.
func (f Func) Instruction(rc *core.RunContext) (string, error) { return f(rc) }

// Instruction is either a static template or a dynamic provider. Static text
// may use text/template markers; it is rendered per model turn with the data
// documented on Resolve.
type Instruction struct {
	text     string
	provider Provider
}

// NewInstructionFromText creates an Instruction from a static string.
func NewInstructionFromText(text string) Instruction { return Instruction{text: text} }

// NewInstructionFromProvider creates an Instruction from a dynamic provider.
func NewInstructionFromProvider(p Provider) Instruction { return Instruction{provider: p} }

// NewInstructionFromFunc creates an Instruction from a function.
func NewInstructionFromFunc(f func(rc *core.RunContext) (string, error)) Instruction {
	return Instruction{provider: Func(f)}
}

// IsStatic returns true if the instruction is backed by a static string.
func (i Instruction) IsStatic() bool { return i.provider == nil }

// IsZero reports whether no instruction was configured.
func (i Instruction) IsZero() bool { return i.provider == nil && i.text == "" }

// Resolve returns the instruction text for the current turn. Static text is
// rendered with these template fields:
//
//	.run_id       the run identifier
//	.tools        registered tool names
//	.model_calls  model turns taken so far, including the current one
func (i Instruction) Resolve(rc *core.RunContext, tools []string) (string, error) {
	if i.provider != nil {
		return i.provider.Instruction(rc)
	}

	return util.RenderTemplate(i.text, map[string]any{
		"run_id":      rc.RunID,
		"tools":       tools,
		"model_calls": rc.Limiter.Count(),
	})
}
