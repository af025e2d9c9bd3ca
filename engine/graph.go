package engine

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/hupe1980/toolflow/core"
)

// Validate checks the registered step graph:
//   - some step accepts the Start event
//   - some step may emit Stop
//   - every emitted kind other than Stop has at least one accepting step
//
// All problems are reported together.
func (e *Engine) Validate() error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var errs []error

	if len(e.dispatch[core.KindStart]) == 0 {
		errs = append(errs, fmt.Errorf("no step accepts %s", core.KindStart))
	}

	emitsStop := false

	for _, s := range e.steps {
		for _, k := range s.Emits {
			if k == core.KindStop {
				emitsStop = true
				continue
			}
			if len(e.dispatch[k]) == 0 {
				errs = append(errs, fmt.Errorf("step %s emits %s: %w", s.Name, k, core.ErrUnhandledEvent))
			}
		}
	}

	if !emitsStop {
		errs = append(errs, fmt.Errorf("no step emits %s", core.KindStop))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid workflow: %w", errors.Join(errs...))
	}

	return nil
}

// DOT renders every possible flow through the registered steps as a Graphviz
// digraph. Events are drawn as ellipses and steps as boxes; concurrent steps
// are dashed and join steps are double-bordered.
func (e *Engine) DOT() string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	seen := map[core.EventKind]bool{}
	for _, s := range e.steps {
		for _, k := range s.Accepts {
			seen[k] = true
		}
		for _, k := range s.Emits {
			seen[k] = true
		}
	}

	kinds := make([]core.EventKind, 0, len(seen))
	for k := range seen {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

	var b strings.Builder

	b.WriteString("digraph workflow {\n")
	b.WriteString("  rankdir=TB;\n")

	for _, k := range kinds {
		fmt.Fprintf(&b, "  %q [shape=ellipse];\n", eventNode(k))
	}

	for _, s := range e.steps {
		attrs := "shape=box"
		if s.Concurrent {
			attrs += ", style=dashed"
		}
		if s.Join != nil {
			attrs += ", peripheries=2"
		}
		fmt.Fprintf(&b, "  %q [%s];\n", stepNode(s.Name), attrs)
	}

	for _, s := range e.steps {
		for _, k := range s.Accepts {
			fmt.Fprintf(&b, "  %q -> %q;\n", eventNode(k), stepNode(s.Name))
		}
		for _, k := range s.Emits {
			fmt.Fprintf(&b, "  %q -> %q;\n", stepNode(s.Name), eventNode(k))
		}
	}

	b.WriteString("}\n")

	return b.String()
}

func eventNode(k core.EventKind) string { return "event:" + k.String() }

func stepNode(name string) string { return "step:" + name }
