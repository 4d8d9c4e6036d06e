// Package eval dispatches node evaluation.
//
// Three evaluator shapes exist:
//
//   - PureFunc maps one set of per-index arguments to one value per output.
//     Input loops are lengthened to the longest input and the function runs
//     once per index.
//   - LoopFunc sees whole input loops unmodified and returns whole output
//     loops. Loop builders and selectors need this.
//   - Impure steps once per frame with lengthened inputs, the node's
//     previous outputs, its ephemeral state and the simulated time. It
//     returns new state and may ask to run again next frame.
//
// The Dispatcher owns ephemeral state. Evaluators never mutate it in place;
// they return the next state and the dispatcher commits it.
package eval

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/StitchDesign/Stitch-sub007/internal/graph"
	"github.com/StitchDesign/Stitch-sub007/internal/value"
)

// Context carries what an evaluator may read besides its inputs.
type Context struct {
	Node      graph.NodeID
	Frame     int64
	Time      float64 // simulated seconds at Frame
	FrameRate float64
	Policy    value.Policy
	Logger    *slog.Logger
}

// Log returns the context logger, or the default logger.
func (c Context) Log() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// PureFunc computes one value per output from one value per input.
type PureFunc func(ctx Context, args []value.PortValue) []value.PortValue

// LoopFunc computes whole output loops from whole input loops.
type LoopFunc func(ctx Context, inputs []value.Loop) []value.Loop

// State is a node's ephemeral state. Its concrete type belongs to the
// evaluator.
type State any

// Frame is the input to an impure step.
type Frame struct {
	// Inputs are lengthened to Length.
	Inputs []value.Loop

	// Outputs are the node's previous outputs adjusted to Length.
	Outputs []value.Loop

	Length int
	State  State
}

// Result is the output of an evaluation.
type Result struct {
	Outputs  []value.Loop
	State    State
	RunAgain bool
}

// Impure is a time or state dependent evaluator.
type Impure interface {
	Step(ctx Context, f Frame) Result
}

// ImpureFunc adapts a function to Impure.
type ImpureFunc func(ctx Context, f Frame) Result

func (fn ImpureFunc) Step(ctx Context, f Frame) Result { return fn(ctx, f) }

// Definition describes a node kind.
type Definition struct {
	Kind        string
	Description string

	// Ports declared with value.KindAny take the node's type.
	Inputs  []graph.PortSpec
	Outputs []graph.PortSpec

	// DefaultType is the node type when none is requested. Types lists the
	// allowed node types; empty means only DefaultType.
	DefaultType value.Kind
	Types       []value.Kind

	// Variadic nodes repeat their last input to reach a requested count.
	Variadic bool

	// Exactly one evaluator is set.
	Pure   PureFunc
	Loop   LoopFunc
	Impure Impure
}

// EvalKind reports whether nodes of this kind are pure or impure.
func (d Definition) EvalKind() graph.EvalKind {
	if d.Impure != nil {
		return graph.Impure
	}
	return graph.Pure
}

// Validate checks the definition is usable.
func (d Definition) Validate() error {
	if d.Kind == "" {
		return fmt.Errorf("definition has no kind")
	}
	set := 0
	for _, ok := range []bool{d.Pure != nil, d.Loop != nil, d.Impure != nil} {
		if ok {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("definition %q must set exactly one evaluator, has %d", d.Kind, set)
	}
	if len(d.Outputs) == 0 {
		return fmt.Errorf("definition %q has no outputs", d.Kind)
	}
	if d.Variadic && len(d.Inputs) == 0 {
		return fmt.Errorf("definition %q is variadic without inputs", d.Kind)
	}
	return nil
}

// Spec builds the graph declaration for a node of this kind. typ
// value.KindAny selects DefaultType; inputs below the declared count are
// raised to it.
func (d Definition) Spec(typ value.Kind, inputs int) (graph.NodeSpec, error) {
	if typ == value.KindAny {
		typ = d.DefaultType
	}
	if typ != d.DefaultType && !slices.Contains(d.Types, typ) {
		return graph.NodeSpec{}, fmt.Errorf("node kind %q does not support type %s", d.Kind, typ)
	}
	if inputs > len(d.Inputs) && !d.Variadic {
		return graph.NodeSpec{}, fmt.Errorf("node kind %q has a fixed %d inputs", d.Kind, len(d.Inputs))
	}

	spec := graph.NodeSpec{Kind: d.Kind, Eval: d.EvalKind()}
	for _, p := range d.Inputs {
		spec.Inputs = append(spec.Inputs, resolvePort(p, typ))
	}
	for len(spec.Inputs) < inputs {
		spec.Inputs = append(spec.Inputs, resolvePort(d.Inputs[len(d.Inputs)-1], typ))
	}
	for _, p := range d.Outputs {
		spec.Outputs = append(spec.Outputs, resolvePort(p, typ))
	}
	return spec, nil
}

func resolvePort(p graph.PortSpec, typ value.Kind) graph.PortSpec {
	if p.Kind == value.KindAny {
		p.Kind = typ
	}
	p.Default = p.Default.Clone()
	return p
}
