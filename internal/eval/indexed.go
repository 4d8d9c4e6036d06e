package eval

import "github.com/StitchDesign/Stitch-sub007/internal/value"

// Indexed holds one state per loop index. Interaction nodes driven by a
// loop behave as independent copies, one per index.
type Indexed[S any] []S

// IndexStep advances the state for one loop index. args and prev hold the
// inputs and previous outputs at that index.
type IndexStep[S any] func(ctx Context, i int, args, prev []value.PortValue, s S) (S, []value.PortValue, bool)

// StepEach runs step once per loop index, growing or shrinking the
// per-index states to the frame length. New indices start from init. The
// result asks to run again if any index does.
func StepEach[S any](ctx Context, f Frame, init func() S, step IndexStep[S]) Result {
	states, _ := f.State.(Indexed[S])
	if len(states) > f.Length {
		states = states[:f.Length]
	}
	for len(states) < f.Length {
		states = append(states, init())
	}
	next := make(Indexed[S], f.Length)

	outs := make([]value.Loop, len(f.Outputs))
	for o := range outs {
		outs[o] = make(value.Loop, f.Length)
	}
	args := make([]value.PortValue, len(f.Inputs))
	prev := make([]value.PortValue, len(f.Outputs))

	runAgain := false
	for i := 0; i < f.Length; i++ {
		for k := range f.Inputs {
			args[k] = f.Inputs[k].At(i)
		}
		for o := range f.Outputs {
			prev[o] = f.Outputs[o].At(i)
		}
		s, vals, again := step(ctx, i, args, prev, states[i])
		next[i] = s
		for o := range outs {
			if o < len(vals) {
				outs[o][i] = vals[o]
			}
		}
		runAgain = runAgain || again
	}
	return Result{Outputs: outs, State: next, RunAgain: runAgain}
}
