package nodes

import (
	"math"

	"github.com/StitchDesign/Stitch-sub007/internal/eval"
	"github.com/StitchDesign/Stitch-sub007/internal/graph"
	"github.com/StitchDesign/Stitch-sub007/internal/value"
)

var allTypes = append([]value.Kind{value.KindBool, value.KindText}, vectorTypes...)

// LoopBuilder turns the first value of each input into one loop. The
// index output numbers the entries from 0.
func LoopBuilder() eval.Definition {
	return eval.Definition{
		Kind:        KindLoopBuilder,
		Description: "builds a loop from its inputs",
		Inputs:      []graph.PortSpec{in("value", value.KindAny), in("value", value.KindAny)},
		Outputs:     []graph.PortSpec{out("index", value.KindNumber), out("values", value.KindAny)},
		DefaultType: value.KindNumber,
		Types:       allTypes,
		Variadic:    true,
		Loop: func(_ eval.Context, inputs []value.Loop) []value.Loop {
			index := make(value.Loop, len(inputs))
			values := make(value.Loop, len(inputs))
			for i, l := range inputs {
				index[i] = value.Number(float64(i))
				values[i] = l.Primary()
			}
			return []value.Loop{index, values}
		},
	}
}

// LoopSelect picks entries of a loop by index. Indices wrap, so -1 selects
// the last entry.
func LoopSelect() eval.Definition {
	return eval.Definition{
		Kind:        KindLoopSelect,
		Description: "selects loop entries by index",
		Inputs:      []graph.PortSpec{in("loop", value.KindAny), in("index", value.KindNumber)},
		Outputs:     []graph.PortSpec{out("selected", value.KindAny), out("index", value.KindNumber)},
		DefaultType: value.KindNumber,
		Types:       allTypes,
		Loop: func(ctx eval.Context, inputs []value.Loop) []value.Loop {
			loop, indices := inputs[0], inputs[1]
			selected := make(value.Loop, len(indices))
			wrapped := make(value.Loop, len(indices))
			for i, raw := range indices {
				idx := value.AdjustedIndex(int(math.Floor(ctx.Policy.Number(raw))), len(loop))
				selected[i] = loop.At(idx)
				wrapped[i] = value.Number(float64(idx))
			}
			return []value.Loop{selected, wrapped}
		},
	}
}

// OptionPicker outputs the option chosen by its first input. The choice
// wraps around the number of options.
func OptionPicker() eval.Definition {
	return eval.Definition{
		Kind:        KindOptionPicker,
		Description: "picks one of its options",
		Inputs: []graph.PortSpec{
			in("option", value.KindNumber),
			in("option", value.KindAny),
			in("option", value.KindAny),
		},
		Outputs:     []graph.PortSpec{out("value", value.KindAny)},
		DefaultType: value.KindNumber,
		Types:       allTypes,
		Variadic:    true,
		Pure: func(ctx eval.Context, args []value.PortValue) []value.PortValue {
			options := args[1:]
			idx := value.AdjustedIndex(int(math.Floor(ctx.Policy.Number(args[0]))), len(options))
			return []value.PortValue{options[idx]}
		},
	}
}
