// Package nodes declares the built-in node kinds.
package nodes

import (
	"github.com/StitchDesign/Stitch-sub007/internal/eval"
	"github.com/StitchDesign/Stitch-sub007/internal/graph"
	"github.com/StitchDesign/Stitch-sub007/internal/scroll"
	"github.com/StitchDesign/Stitch-sub007/internal/value"
)

// Kind names of the built-in nodes.
const (
	KindValue          = "value"
	KindAdd            = "add"
	KindSubtract       = "subtract"
	KindMultiply       = "multiply"
	KindDivide         = "divide"
	KindMax            = "max"
	KindMin            = "min"
	KindMod            = "mod"
	KindPackPosition   = "packPosition"
	KindUnpackPosition = "unpackPosition"
	KindLoopBuilder    = "loopBuilder"
	KindLoopSelect     = "loopSelect"
	KindOptionPicker   = "optionPicker"
	KindCounter        = "counter"
	KindPulseOnChange  = "pulseOnChange"
)

var vectorTypes = []value.Kind{
	value.KindPosition,
	value.KindPoint3D,
	value.KindPoint4D,
	value.KindSize,
	value.KindColor,
}

// Registry returns a registry holding every built-in kind, including the
// scroll interaction node.
func Registry() *eval.Registry {
	return eval.NewRegistry().MustRegister(
		Value(),
		Arithmetic(KindAdd, value.OpAdd),
		Arithmetic(KindSubtract, value.OpSubtract),
		Arithmetic(KindMultiply, value.OpMultiply),
		Arithmetic(KindDivide, value.OpDivide),
		NumberOp(KindMax, value.OpMax, true),
		NumberOp(KindMin, value.OpMin, true),
		NumberOp(KindMod, value.OpMod, false),
		PackPosition(),
		UnpackPosition(),
		LoopBuilder(),
		LoopSelect(),
		OptionPicker(),
		Counter(),
		PulseOnChange(),
		scroll.Definition(),
	)
}

func in(label string, k value.Kind) graph.PortSpec  { return graph.PortSpec{Label: label, Kind: k} }
func out(label string, k value.Kind) graph.PortSpec { return graph.PortSpec{Label: label, Kind: k} }

// Value passes its input through unchanged.
func Value() eval.Definition {
	return eval.Definition{
		Kind:        KindValue,
		Description: "passes its input through",
		Inputs:      []graph.PortSpec{in("value", value.KindAny)},
		Outputs:     []graph.PortSpec{out("value", value.KindAny)},
		DefaultType: value.KindNumber,
		Types: append([]value.Kind{
			value.KindBool, value.KindText, value.KindMedia, value.KindPulse,
			value.KindScrollMode, value.KindJumpStyle, value.KindDecelerationRate, value.KindLayer,
		}, vectorTypes...),
		Pure: func(_ eval.Context, args []value.PortValue) []value.PortValue {
			return []value.PortValue{args[0]}
		},
	}
}

// Arithmetic folds any number of inputs with op, component-wise for vector
// types. Addition also concatenates text.
func Arithmetic(kind string, op value.Op) eval.Definition {
	types := append([]value.Kind(nil), vectorTypes...)
	if op == value.OpAdd {
		types = append(types, value.KindText)
	}
	return eval.Definition{
		Kind:        kind,
		Description: op.String() + " inputs",
		Inputs:      []graph.PortSpec{in("a", value.KindAny), in("b", value.KindAny)},
		Outputs:     []graph.PortSpec{out("result", value.KindAny)},
		DefaultType: value.KindNumber,
		Types:       types,
		Variadic:    true,
		Pure: func(_ eval.Context, args []value.PortValue) []value.PortValue {
			return []value.PortValue{value.Reduce(op, args[0].Kind(), args)}
		},
	}
}

// NumberOp folds number inputs with op.
func NumberOp(kind string, op value.Op, variadic bool) eval.Definition {
	return eval.Definition{
		Kind:        kind,
		Description: op.String() + " of numbers",
		Inputs:      []graph.PortSpec{in("a", value.KindNumber), in("b", value.KindNumber)},
		Outputs:     []graph.PortSpec{out("result", value.KindNumber)},
		DefaultType: value.KindNumber,
		Variadic:    variadic,
		Pure: func(_ eval.Context, args []value.PortValue) []value.PortValue {
			return []value.PortValue{value.Reduce(op, value.KindNumber, args)}
		},
	}
}

// PackPosition builds a position from x and y.
func PackPosition() eval.Definition {
	return eval.Definition{
		Kind:        KindPackPosition,
		Description: "builds a position from x and y",
		Inputs:      []graph.PortSpec{in("x", value.KindNumber), in("y", value.KindNumber)},
		Outputs:     []graph.PortSpec{out("position", value.KindPosition)},
		DefaultType: value.KindPosition,
		Pure: func(ctx eval.Context, args []value.PortValue) []value.PortValue {
			return []value.PortValue{value.Position{
				X: ctx.Policy.Number(args[0]),
				Y: ctx.Policy.Number(args[1]),
			}}
		},
	}
}

// UnpackPosition splits a position into x and y.
func UnpackPosition() eval.Definition {
	return eval.Definition{
		Kind:        KindUnpackPosition,
		Description: "splits a position into x and y",
		Inputs:      []graph.PortSpec{in("position", value.KindPosition)},
		Outputs:     []graph.PortSpec{out("x", value.KindNumber), out("y", value.KindNumber)},
		DefaultType: value.KindPosition,
		Pure: func(ctx eval.Context, args []value.PortValue) []value.PortValue {
			p := ctx.Policy.Position(args[0])
			return []value.PortValue{value.Number(p.X), value.Number(p.Y)}
		},
	}
}
