package nodes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StitchDesign/Stitch-sub007/internal/eval"
	"github.com/StitchDesign/Stitch-sub007/internal/graph"
	"github.com/StitchDesign/Stitch-sub007/internal/scroll"
	"github.com/StitchDesign/Stitch-sub007/internal/testutil"
	"github.com/StitchDesign/Stitch-sub007/internal/value"
)

// bench evaluates one node per test through a dispatcher.
type bench struct {
	t     *testing.T
	g     *graph.Graph
	def   eval.Definition
	node  *graph.Node
	d     *eval.Dispatcher
	frame int64
}

func newBench(t *testing.T, def eval.Definition, typ value.Kind, inputs int) *bench {
	t.Helper()
	g := graph.New(graph.WithIDGenerator(testutil.NewSequentialIDs("n")))
	spec, err := def.Spec(typ, inputs)
	require.NoError(t, err)
	id, err := g.AddNode(spec)
	require.NoError(t, err)
	n, _ := g.Node(id)
	return &bench{t: t, g: g, def: def, node: n, d: eval.NewDispatcher()}
}

func (b *bench) set(port int, l value.Loop) *bench {
	b.t.Helper()
	require.NoError(b.t, b.g.SetLiteral(graph.InputRef{Node: b.node.ID(), Index: port}, l))
	return b
}

// now is the simulated time of the next step.
func (b *bench) now() float64 { return float64(b.frame+1) / 60 }

func (b *bench) step() []value.Loop {
	b.t.Helper()
	b.frame++
	ctx := eval.Context{Frame: b.frame, Time: float64(b.frame) / 60, FrameRate: 60}
	res := b.d.Evaluate(ctx, b.node, b.def)
	for o, l := range res.Outputs {
		_, err := b.g.SetOutput(graph.OutputRef{Node: b.node.ID(), Index: o}, l)
		require.NoError(b.t, err)
	}
	return res.Outputs
}

func text(ss ...string) value.Loop {
	l := make(value.Loop, len(ss))
	for i, s := range ss {
		l[i] = value.Text(s)
	}
	return l
}

// =============================================================================
// Registry
// =============================================================================

func TestRegistry_RegistersBuiltins(t *testing.T) {
	r := Registry()
	for _, k := range []string{
		KindValue, KindAdd, KindSubtract, KindMultiply, KindDivide,
		KindMax, KindMin, KindMod, KindPackPosition, KindUnpackPosition,
		KindLoopBuilder, KindLoopSelect, KindOptionPicker, KindCounter,
		KindPulseOnChange, scroll.Kind,
	} {
		def, ok := r.Lookup(k)
		require.True(t, ok, k)
		assert.NoError(t, def.Validate(), k)
	}
	assert.Len(t, r.Kinds(), 16)
}

// =============================================================================
// Arithmetic
// =============================================================================

func TestArithmetic(t *testing.T) {
	tests := []struct {
		name   string
		kind   string
		op     value.Op
		typ    value.Kind
		inputs []value.Loop
		want   value.Loop
	}{
		{
			name:   "add broadcasts shorter loop",
			kind:   KindAdd,
			op:     value.OpAdd,
			inputs: []value.Loop{value.Numbers(1), value.Numbers(1, 2, 3)},
			want:   value.Numbers(2, 3, 4),
		},
		{
			name:   "subtract folds from first input",
			kind:   KindSubtract,
			op:     value.OpSubtract,
			inputs: []value.Loop{value.Numbers(10), value.Numbers(3), value.Numbers(2)},
			want:   value.Numbers(5),
		},
		{
			name:   "divide by zero is zero",
			kind:   KindDivide,
			op:     value.OpDivide,
			inputs: []value.Loop{value.Numbers(4, 9), value.Numbers(0, 3)},
			want:   value.Numbers(0, 3),
		},
		{
			name:   "multiply three inputs",
			kind:   KindMultiply,
			op:     value.OpMultiply,
			inputs: []value.Loop{value.Numbers(2), value.Numbers(3), value.Numbers(4)},
			want:   value.Numbers(24),
		},
		{
			name:   "add concatenates text",
			kind:   KindAdd,
			op:     value.OpAdd,
			typ:    value.KindText,
			inputs: []value.Loop{text("a", "b"), text("c")},
			want:   text("ac", "bc"),
		},
		{
			name: "add positions component-wise",
			kind: KindAdd,
			op:   value.OpAdd,
			typ:  value.KindPosition,
			inputs: []value.Loop{
				value.NewLoop(value.Position{X: 1, Y: 2}),
				value.NewLoop(value.Position{X: 10, Y: 20}),
			},
			want: value.NewLoop(value.Position{X: 11, Y: 22}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBench(t, Arithmetic(tt.kind, tt.op), tt.typ, len(tt.inputs))
			for i, l := range tt.inputs {
				b.set(i, l)
			}
			out := b.step()
			require.Len(t, out, 1)
			assert.Equal(t, tt.want, out[0])
		})
	}
}

func TestNumberOp(t *testing.T) {
	b := newBench(t, NumberOp(KindMax, value.OpMax, true), value.KindAny, 3)
	b.set(0, value.Numbers(1, 8)).set(1, value.Numbers(5)).set(2, value.Numbers(3))
	assert.Equal(t, value.Numbers(5, 8), b.step()[0])

	b = newBench(t, NumberOp(KindMod, value.OpMod, false), value.KindAny, 0)
	b.set(0, value.Numbers(7, 7)).set(1, value.Numbers(3, 0))
	assert.Equal(t, value.Numbers(1, 0), b.step()[0])

	_, err := NumberOp(KindMod, value.OpMod, false).Spec(value.KindAny, 3)
	assert.Error(t, err)
}

func TestPackUnpackPosition(t *testing.T) {
	pack := newBench(t, PackPosition(), value.KindAny, 0)
	pack.set(0, value.Numbers(1, 2)).set(1, value.Numbers(5))
	assert.Equal(t, value.NewLoop(value.Position{X: 1, Y: 5}, value.Position{X: 2, Y: 5}), pack.step()[0])

	unpack := newBench(t, UnpackPosition(), value.KindAny, 0)
	unpack.set(0, value.NewLoop(value.Position{X: 3, Y: 4}))
	out := unpack.step()
	assert.Equal(t, value.Numbers(3), out[0])
	assert.Equal(t, value.Numbers(4), out[1])
}

// =============================================================================
// Loops
// =============================================================================

func TestLoopBuilder(t *testing.T) {
	b := newBench(t, LoopBuilder(), value.KindAny, 3)
	b.set(0, value.Numbers(5)).set(1, value.Numbers(6, 60)).set(2, value.Numbers(7))
	out := b.step()
	assert.Equal(t, value.Numbers(0, 1, 2), out[0])
	assert.Equal(t, value.Numbers(5, 6, 7), out[1])
}

func TestLoopSelect_WrapsIndices(t *testing.T) {
	b := newBench(t, LoopSelect(), value.KindAny, 0)
	b.set(0, value.Numbers(10, 20, 30)).set(1, value.Numbers(-1, 4, 0.9))
	out := b.step()
	assert.Equal(t, value.Numbers(30, 20, 10), out[0])
	assert.Equal(t, value.Numbers(2, 1, 0), out[1])
}

func TestOptionPicker(t *testing.T) {
	b := newBench(t, OptionPicker(), value.KindText, 0)
	b.set(0, value.Numbers(1, 2)).set(1, text("x")).set(2, text("y"))
	assert.Equal(t, text("y", "x"), b.step()[0])
}

func TestValue_PassesThrough(t *testing.T) {
	b := newBench(t, Value(), value.KindColor, 0)
	c := value.NewLoop(value.Color{R: 1, A: 1})
	b.set(0, c)
	assert.Equal(t, c, b.step()[0])
}

// =============================================================================
// Impure
// =============================================================================

func TestCounter(t *testing.T) {
	b := newBench(t, Counter(), value.KindAny, 0)

	b.set(CounterIncrease, value.NewLoop(value.Pulse(b.now())))
	assert.Equal(t, value.Numbers(1), b.step()[0])
	// The pulse has passed; the count holds.
	assert.Equal(t, value.Numbers(1), b.step()[0])

	b.set(CounterDecrease, value.NewLoop(value.Pulse(b.now())))
	assert.Equal(t, value.Numbers(0), b.step()[0])

	b.set(CounterJumpTo, value.Numbers(7))
	b.set(CounterJump, value.NewLoop(value.Pulse(b.now())))
	assert.Equal(t, value.Numbers(7), b.step()[0])
}

func TestCounter_WrapsPastMax(t *testing.T) {
	b := newBench(t, Counter(), value.KindAny, 0)
	b.set(CounterMax, value.Numbers(2))

	var got []float64
	for i := 0; i < 3; i++ {
		b.set(CounterIncrease, value.NewLoop(value.Pulse(b.now())))
		n, _ := value.AsNumber(b.step()[0].Primary())
		got = append(got, n)
	}
	assert.Equal(t, []float64{1, 2, 0}, got)
}

func TestPulseOnChange(t *testing.T) {
	b := newBench(t, PulseOnChange(), value.KindAny, 0)
	b.set(0, value.Numbers(1))
	assert.Equal(t, value.NewLoop(value.Pulse(0)), b.step()[0])

	fired := b.now()
	b.set(0, value.Numbers(2))
	assert.Equal(t, value.NewLoop(value.Pulse(fired)), b.step()[0])

	// Unchanged input keeps the last pulse, which no longer fires.
	out := b.step()[0]
	assert.Equal(t, value.NewLoop(value.Pulse(fired)), out)
	p, _ := value.AsPulse(out.Primary())
	assert.False(t, p.FiresAt(b.now()))
}
