package nodes

import (
	"github.com/StitchDesign/Stitch-sub007/internal/eval"
	"github.com/StitchDesign/Stitch-sub007/internal/graph"
	"github.com/StitchDesign/Stitch-sub007/internal/value"
)

// Counter input ports.
const (
	CounterIncrease = iota
	CounterDecrease
	CounterJump
	CounterJumpTo
	CounterMax
)

// Counter counts pulses. Increase and decrease step by one, jump sets the
// count to the jump value. A positive max wraps the count back to zero
// once it exceeds max.
func Counter() eval.Definition {
	return eval.Definition{
		Kind:        KindCounter,
		Description: "counts pulses",
		Inputs: []graph.PortSpec{
			in("increase", value.KindPulse),
			in("decrease", value.KindPulse),
			in("jump", value.KindPulse),
			in("jump to", value.KindNumber),
			in("max count", value.KindNumber),
		},
		Outputs:     []graph.PortSpec{out("count", value.KindNumber)},
		DefaultType: value.KindNumber,
		Impure: eval.ImpureFunc(func(ctx eval.Context, f eval.Frame) eval.Result {
			return eval.StepEach(ctx, f, func() struct{} { return struct{}{} }, stepCounter)
		}),
	}
}

func stepCounter(ctx eval.Context, _ int, args, prev []value.PortValue, s struct{}) (struct{}, []value.PortValue, bool) {
	p := ctx.Policy
	count := p.Number(prev[0])
	if p.Pulse(args[CounterIncrease]).FiresAt(ctx.Time) {
		count++
	}
	if p.Pulse(args[CounterDecrease]).FiresAt(ctx.Time) {
		count--
	}
	if p.Pulse(args[CounterJump]).FiresAt(ctx.Time) {
		count = p.Number(args[CounterJumpTo])
	}
	if limit := p.Number(args[CounterMax]); limit > 0 && count > limit {
		count = 0
	}
	return s, []value.PortValue{value.Number(count)}, false
}

type changeState struct {
	seen        bool
	fingerprint uint64
}

// PulseOnChange fires a pulse in the frame its input changes. The first
// value seen only primes the node.
func PulseOnChange() eval.Definition {
	return eval.Definition{
		Kind:        KindPulseOnChange,
		Description: "pulses when its input changes",
		Inputs:      []graph.PortSpec{in("value", value.KindAny)},
		Outputs:     []graph.PortSpec{out("pulse", value.KindPulse)},
		DefaultType: value.KindNumber,
		Types:       allTypes,
		Impure: eval.ImpureFunc(func(ctx eval.Context, f eval.Frame) eval.Result {
			return eval.StepEach(ctx, f, func() changeState { return changeState{} }, stepPulseOnChange)
		}),
	}
}

func stepPulseOnChange(ctx eval.Context, _ int, args, prev []value.PortValue, s changeState) (changeState, []value.PortValue, bool) {
	fp := value.Loop{args[0]}.Fingerprint()
	out := prev[0]
	if s.seen && fp != s.fingerprint {
		out = value.Pulse(ctx.Time)
	}
	return changeState{seen: true, fingerprint: fp}, []value.PortValue{out}, false
}
