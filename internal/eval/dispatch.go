package eval

import (
	"github.com/StitchDesign/Stitch-sub007/internal/graph"
	"github.com/StitchDesign/Stitch-sub007/internal/value"
)

// Dispatcher evaluates nodes and owns their ephemeral state.
//
// Not safe for concurrent use; the engine confines it to its evaluation
// actor.
type Dispatcher struct {
	states map[graph.NodeID]State
}

// NewDispatcher creates a dispatcher with no state.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{states: make(map[graph.NodeID]State)}
}

// Evaluate runs def against node's current inputs. It does not write to
// the graph; the caller commits the returned outputs. For impure nodes the
// returned state is committed here.
func (d *Dispatcher) Evaluate(ctx Context, node *graph.Node, def Definition) Result {
	ctx.Node = node.ID()
	inputs := node.Inputs()

	var res Result
	switch {
	case def.Pure != nil:
		res.Outputs = evaluatePure(ctx, def.Pure, inputs, node.NumOutputs())
	case def.Loop != nil:
		res.Outputs = def.Loop(ctx, inputs)
	case def.Impure != nil:
		n, lengthened := value.LengthenAll(inputs)
		prev := node.Outputs()
		for i := range prev {
			prev[i] = prev[i].Adjust(n)
		}
		res = def.Impure.Step(ctx, Frame{
			Inputs:  lengthened,
			Outputs: prev,
			Length:  n,
			State:   d.states[node.ID()],
		})
		d.states[node.ID()] = res.State
	}

	res.Outputs = conform(ctx, node, res.Outputs)
	return res
}

// evaluatePure maps fn over the reconciled input loops.
func evaluatePure(ctx Context, fn PureFunc, inputs []value.Loop, numOutputs int) []value.Loop {
	n, lengthened := value.LengthenAll(inputs)
	outs := make([]value.Loop, numOutputs)
	for o := range outs {
		outs[o] = make(value.Loop, 0, n)
	}
	args := make([]value.PortValue, len(lengthened))
	for i := 0; i < n; i++ {
		for k := range lengthened {
			args[k] = lengthened[k].At(i)
		}
		res := fn(ctx, args)
		for o := range outs {
			var v value.PortValue
			if o < len(res) {
				v = res[o]
			}
			outs[o] = append(outs[o], v)
		}
	}
	return outs
}

// conform repairs evaluator results that break the port contract: wrong
// output count, empty loops or nil values. Repairs fall back to the
// node's previous output and are logged as invariant violations.
func conform(ctx Context, node *graph.Node, outs []value.Loop) []value.Loop {
	if len(outs) != node.NumOutputs() {
		ctx.Log().Warn("evaluator returned wrong output count",
			"node_id", node.ID(),
			"kind", node.Kind(),
			"want", node.NumOutputs(),
			"got", len(outs))
	}
	fixed := make([]value.Loop, node.NumOutputs())
	for o := range fixed {
		prev := node.Output(o)
		if o >= len(outs) || len(outs[o]) == 0 {
			fixed[o] = prev
			continue
		}
		loop := outs[o]
		for i, v := range loop {
			if v == nil {
				ctx.Log().Warn("evaluator returned nil value",
					"node_id", node.ID(),
					"kind", node.Kind(),
					"output", o,
					"index", i)
				loop[i] = prev.At(i)
			}
		}
		fixed[o] = loop
	}
	return fixed
}

// State returns the ephemeral state of a node.
func (d *Dispatcher) State(id graph.NodeID) (State, bool) {
	s, ok := d.states[id]
	return s, ok
}

// Update replaces a node's state with fn(current). Gesture input reaches
// interaction nodes this way.
func (d *Dispatcher) Update(id graph.NodeID, fn func(State) State) {
	d.states[id] = fn(d.states[id])
}

// Reset discards a node's state; its next step starts fresh.
func (d *Dispatcher) Reset(id graph.NodeID) {
	delete(d.states, id)
}

// ResetAll discards all ephemeral state. Calling it twice is the same as
// calling it once.
func (d *Dispatcher) ResetAll() {
	clear(d.states)
}
