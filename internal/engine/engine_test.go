package engine

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StitchDesign/Stitch-sub007/internal/eval"
	"github.com/StitchDesign/Stitch-sub007/internal/graph"
	"github.com/StitchDesign/Stitch-sub007/internal/nodes"
	"github.com/StitchDesign/Stitch-sub007/internal/store"
	"github.com/StitchDesign/Stitch-sub007/internal/testutil"
	"github.com/StitchDesign/Stitch-sub007/internal/value"
)

const (
	kindSpin   = "spin"
	kindTicker = "ticker"
	kindStrict = "strictNumber"
)

// testKinds extends the built-in registry with kinds that exercise the
// scheduler.
func testKinds() *eval.Registry {
	num := graph.PortSpec{Label: "n", Kind: value.KindNumber}
	return nodes.Registry().MustRegister(
		eval.Definition{
			Kind:        kindSpin,
			Inputs:      []graph.PortSpec{num},
			Outputs:     []graph.PortSpec{num},
			DefaultType: value.KindNumber,
			Impure: eval.ImpureFunc(func(ctx eval.Context, f eval.Frame) eval.Result {
				return eval.Result{Outputs: []value.Loop{value.Numbers(float64(ctx.Frame))}, RunAgain: true}
			}),
		},
		eval.Definition{
			Kind:        kindTicker,
			Inputs:      []graph.PortSpec{num},
			Outputs:     []graph.PortSpec{num},
			DefaultType: value.KindNumber,
			Impure: eval.ImpureFunc(func(ctx eval.Context, f eval.Frame) eval.Result {
				n, _ := f.State.(int)
				n++
				return eval.Result{Outputs: []value.Loop{value.Numbers(float64(n))}, State: n}
			}),
		},
		eval.Definition{
			Kind:        kindStrict,
			Inputs:      []graph.PortSpec{{Label: "text", Kind: value.KindText}},
			Outputs:     []graph.PortSpec{num},
			DefaultType: value.KindNumber,
			Pure: func(ctx eval.Context, args []value.PortValue) []value.PortValue {
				return []value.PortValue{value.Number(ctx.Policy.Number(args[0]) + 1)}
			},
		},
	)
}

type rig struct {
	t    *testing.T
	eng  *Engine
	logs *testutil.LogRecorder
}

func newRig(t *testing.T, opts ...Option) *rig {
	t.Helper()
	logs := testutil.NewLogRecorder()
	g := graph.New(graph.WithIDGenerator(testutil.NewSequentialIDs("n")))
	opts = append([]Option{WithLogger(logs.Logger())}, opts...)
	return &rig{t: t, eng: New(g, testKinds(), opts...), logs: logs}
}

func (r *rig) add(kind string) graph.NodeID {
	r.t.Helper()
	id, err := r.eng.AddNode(kind, value.KindAny, 0)
	require.NoError(r.t, err)
	return id
}

func (r *rig) connect(from graph.NodeID, to graph.NodeID, port int) {
	r.t.Helper()
	require.NoError(r.t, r.eng.Connect(graph.OutputRef{Node: from}, graph.InputRef{Node: to, Index: port}))
}

func (r *rig) set(id graph.NodeID, port int, l value.Loop) {
	r.t.Helper()
	require.NoError(r.t, r.eng.SetInput(graph.InputRef{Node: id, Index: port}, l))
}

func (r *rig) out(id graph.NodeID) value.Loop {
	r.t.Helper()
	l, err := r.eng.Output(id, 0)
	require.NoError(r.t, err)
	return l
}

// chain builds value -> add(+2) -> value.
func (r *rig) chain() (a, b, c graph.NodeID) {
	a, b, c = r.add(nodes.KindValue), r.add(nodes.KindAdd), r.add(nodes.KindValue)
	r.set(a, 0, value.Numbers(1))
	r.set(b, 1, value.Numbers(2))
	r.connect(a, b, 0)
	r.connect(b, c, 0)
	return a, b, c
}

func codes(errs []*RuntimeError) []RuntimeErrorCode {
	var out []RuntimeErrorCode
	for _, e := range errs {
		out = append(out, e.Code)
	}
	return out
}

// =============================================================================
// Scheduling
// =============================================================================

func TestEngine_Step_PropagatesInOneStep(t *testing.T) {
	r := newRig(t)
	a, b, c := r.chain()

	report := r.eng.Step()
	assert.Equal(t, []graph.NodeID{a, b, c}, report.Evaluated)
	assert.Equal(t, value.Numbers(3), r.out(c))

	r.set(a, 0, value.Numbers(5, 6))
	report = r.eng.Step()
	assert.Equal(t, []graph.NodeID{a, b, c}, report.Evaluated)
	if diff := cmp.Diff(value.Numbers(7, 8), r.out(c)); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
	assert.False(t, r.eng.HasWork())
}

func TestEngine_Step_UnchangedOutputStopsPropagation(t *testing.T) {
	r := newRig(t)
	a, _, _ := r.chain()
	r.eng.Step()

	r.set(a, 0, value.Numbers(1))
	report := r.eng.Step()
	assert.Equal(t, []graph.NodeID{a}, report.Evaluated)
}

func TestEngine_Step_FanInEvaluatesOnce(t *testing.T) {
	r := newRig(t)
	a, b := r.add(nodes.KindValue), r.add(nodes.KindAdd)
	r.connect(a, b, 0)
	r.connect(a, b, 1)
	r.eng.Step()

	r.set(a, 0, value.Numbers(4))
	report := r.eng.Step()
	assert.Equal(t, []graph.NodeID{a, b}, report.Evaluated)
	assert.Equal(t, value.Numbers(8), r.out(b))
}

func TestEngine_Step_IndependentNodesKeepCreationOrder(t *testing.T) {
	r := newRig(t)
	ids := []graph.NodeID{r.add(nodes.KindValue), r.add(nodes.KindValue), r.add(nodes.KindValue)}
	r.eng.MarkDirty(ids[2])
	r.eng.MarkDirty(ids[0])
	report := r.eng.Step()
	assert.Equal(t, ids, report.Evaluated)
}

func TestEngine_Step_FrameTime(t *testing.T) {
	r := newRig(t, WithFrameRate(30))
	assert.InDelta(t, 1.0/30, r.eng.NextFrameTime(), 1e-12)

	report := r.eng.Step()
	assert.Equal(t, int64(1), report.Frame)
	assert.InDelta(t, 1.0/30, report.Time, 1e-12)
	assert.Equal(t, int64(1), r.eng.Frame())
	assert.Empty(t, report.Evaluated)
}

func TestEngine_Step_CounterPulse(t *testing.T) {
	r := newRig(t)
	c := r.add(nodes.KindCounter)
	r.eng.Step()

	r.set(c, nodes.CounterIncrease, value.NewLoop(value.Pulse(r.eng.NextFrameTime())))
	report := r.eng.Step()
	assert.Equal(t, value.Numbers(1), r.out(c))
	assert.Empty(t, report.Rescheduled)
}

// =============================================================================
// Cycles
// =============================================================================

func TestEngine_Step_SkipsCycleAndRetries(t *testing.T) {
	r := newRig(t)
	a, b, c := r.add(nodes.KindAdd), r.add(nodes.KindAdd), r.add(nodes.KindValue)
	r.connect(a, b, 0)
	r.connect(b, a, 0)
	r.connect(b, c, 0)
	r.set(a, 1, value.Numbers(1))

	report := r.eng.Step()
	assert.Equal(t, []graph.NodeID{c}, report.Evaluated)
	assert.Equal(t, []RuntimeErrorCode{ErrCodeCycleDetected, ErrCodeCycleDetected}, codes(report.Skipped))
	assert.True(t, IsCycleError(report.Skipped[0]))
	assert.Equal(t, []graph.NodeID{a, b}, r.eng.Dirty())

	rec, ok := r.logs.Find("node skipped")
	require.True(t, ok)
	assert.Equal(t, string(ErrCodeCycleDetected), rec.Attrs["code"])

	require.NoError(t, r.eng.Disconnect(graph.InputRef{Node: a, Index: 0}))
	report = r.eng.Step()
	assert.Equal(t, []graph.NodeID{a, b, c}, report.Evaluated)
	assert.Empty(t, report.Skipped)
	assert.Equal(t, value.Numbers(1), r.out(c))
}

func TestEngine_Step_WarnsOnStarvation(t *testing.T) {
	r := newRig(t)
	a := r.add(nodes.KindAdd)
	r.connect(a, a, 0)

	for i := 0; i < DefaultStarvationThreshold; i++ {
		r.eng.Step()
	}
	rec, ok := r.logs.Find("node starved by cycle")
	require.True(t, ok)
	assert.Equal(t, string(a), rec.Attrs["node_id"])
}

// =============================================================================
// Missing references and unknown kinds
// =============================================================================

func TestEngine_Step_MissingDirtyNode(t *testing.T) {
	r := newRig(t)
	r.eng.MarkDirty("ghost")

	report := r.eng.Step()
	require.Len(t, report.Skipped, 1)
	assert.True(t, IsMissingReference(report.Skipped[0]))
	assert.Equal(t, graph.NodeID("ghost"), report.Skipped[0].Node)
	assert.False(t, r.eng.HasWork())
}

func TestEngine_RemoveNode_DownstreamKeepsLastValue(t *testing.T) {
	r := newRig(t)
	a, b, c := r.chain()
	r.eng.Step()

	require.NoError(t, r.eng.RemoveNode(b))
	in, err := r.eng.Input(c, 0)
	require.NoError(t, err)
	assert.Equal(t, value.Numbers(3), in)

	rec, ok := r.logs.Find("upstream removed; input keeps last value")
	require.True(t, ok)
	assert.Equal(t, string(c), rec.Attrs["node_id"])
	assert.Equal(t, string(b), rec.Attrs["upstream"])

	// The rest of the graph keeps evaluating.
	r.set(a, 0, value.Numbers(9))
	report := r.eng.Step()
	assert.Equal(t, []graph.NodeID{a}, report.Evaluated)
	assert.Equal(t, value.Numbers(3), r.out(c))

	err = r.eng.RemoveNode(b)
	assert.True(t, IsMissingReference(err))
	_, err = r.eng.Output(b, 0)
	assert.True(t, IsMissingReference(err))
}

func TestEngine_AddNode_UnknownKind(t *testing.T) {
	r := newRig(t)
	_, err := r.eng.AddNode("warp", value.KindAny, 0)
	assert.True(t, IsUnknownKind(err))
}

func TestEngine_Step_UnregisteredKindIsSkipped(t *testing.T) {
	r := newRig(t)
	id, err := r.eng.Graph().AddNode(graph.NodeSpec{
		Kind:    "warp",
		Outputs: []graph.PortSpec{{Label: "out", Kind: value.KindNumber}},
	})
	require.NoError(t, err)
	r.eng.MarkDirty(id)

	report := r.eng.Step()
	assert.Empty(t, report.Evaluated)
	assert.Equal(t, []RuntimeErrorCode{ErrCodeUnknownKind}, codes(report.Skipped))
}

func TestEngine_UpdateState_MissingNode(t *testing.T) {
	r := newRig(t)
	err := r.eng.UpdateState("ghost", func(s eval.State) eval.State { return s })
	assert.True(t, IsMissingReference(err))
}

// =============================================================================
// Run again and budget
// =============================================================================

func TestEngine_Step_RunAgainReschedules(t *testing.T) {
	r := newRig(t)
	s := r.add(kindSpin)

	for frame := int64(1); frame <= 3; frame++ {
		report := r.eng.Step()
		assert.Equal(t, []graph.NodeID{s}, report.Rescheduled)
		assert.Equal(t, value.Numbers(float64(frame)), r.out(s))
	}
}

func TestEngine_Step_BudgetExceeded(t *testing.T) {
	r := newRig(t, WithRunAgainBudget(3))
	s := r.add(kindSpin)

	for i := 0; i < 3; i++ {
		report := r.eng.Step()
		require.Equal(t, []graph.NodeID{s}, report.Rescheduled)
	}
	report := r.eng.Step()
	assert.Empty(t, report.Rescheduled)
	require.Len(t, report.Skipped, 1)
	assert.True(t, IsBudgetError(report.Skipped[0]))
	assert.False(t, r.eng.HasWork())

	// A fresh request starts a fresh budget.
	r.eng.MarkDirty(s)
	report = r.eng.Step()
	assert.Equal(t, []graph.NodeID{s}, report.Rescheduled)
}

func TestEngine_Step_DirtyTwiceEvaluatesOnce(t *testing.T) {
	r := newRig(t)
	tk := r.add(kindTicker)
	r.eng.MarkDirty(tk, tk)
	r.eng.MarkDirty(tk)

	report := r.eng.Step()
	assert.Equal(t, []graph.NodeID{tk}, report.Evaluated)
	assert.Equal(t, value.Numbers(1), r.out(tk))
	assert.False(t, r.eng.HasWork())
}

// =============================================================================
// Restart
// =============================================================================

func TestEngine_Restart_ResetsStateOnly(t *testing.T) {
	r := newRig(t)
	tk := r.add(kindTicker)
	r.eng.Step()
	r.eng.MarkDirty(tk)
	r.eng.Step()
	assert.Equal(t, value.Numbers(2), r.out(tk))

	r.eng.Restart()
	r.eng.Restart()
	assert.Equal(t, []graph.NodeID{tk}, r.eng.Dirty())
	_, ok := r.eng.State(tk)
	assert.False(t, ok)

	report := r.eng.Step()
	assert.Equal(t, int64(3), report.Frame)
	assert.Equal(t, value.Numbers(1), r.out(tk))
}

// =============================================================================
// Value policy
// =============================================================================

func TestEngine_Step_LenientMismatchUsesDefault(t *testing.T) {
	r := newRig(t)
	id := r.add(kindStrict)
	r.eng.Step()
	assert.Equal(t, value.Numbers(1), r.out(id))
}

func TestEngine_Step_StrictMismatchPanics(t *testing.T) {
	r := newRig(t, WithStrictValues())
	r.add(kindStrict)

	assert.PanicsWithError(t,
		"VARIANT_MISMATCH: variant mismatch: want number, got text (node=n-1, kind=strictNumber)",
		func() { r.eng.Step() })
}

// =============================================================================
// Trace
// =============================================================================

func TestEngine_Step_RecordsTrace(t *testing.T) {
	trace := store.NewTrace()
	r := newRig(t, WithTraceSink(trace))
	_, b, _ := r.chain()
	r.eng.MarkDirty("ghost")
	r.eng.Step()

	evs := trace.Evaluations()
	require.Len(t, evs, 3)
	for i, ev := range evs {
		assert.Equal(t, int64(i+1), ev.Seq)
		assert.Equal(t, int64(1), ev.Frame)
	}
	assert.Equal(t, string(b), evs[1].NodeID)
	assert.Equal(t, nodes.KindAdd, evs[1].Kind)
	assert.Equal(t, "[[3]]", evs[1].Outputs)

	skips := trace.Skips()
	require.Len(t, skips, 1)
	assert.Equal(t, store.Skip{
		Frame:  1,
		NodeID: "ghost",
		Code:   string(ErrCodeMissingReference),
		Detail: "dirty node does not exist",
	}, skips[0])
}

type failingSink struct{}

func (failingSink) RecordEvaluation(store.Evaluation) error { return errors.New("disk full") }
func (failingSink) RecordSkip(store.Skip) error             { return errors.New("disk full") }

func TestEngine_Step_TraceErrorsAreLogged(t *testing.T) {
	r := newRig(t, WithTraceSink(failingSink{}))
	r.add(nodes.KindValue)

	report := r.eng.Step()
	assert.Len(t, report.Evaluated, 1)
	rec, ok := r.logs.Find("trace write failed")
	require.True(t, ok)
	assert.Equal(t, slog.LevelError, rec.Level)
}

// =============================================================================
// Actor loop
// =============================================================================

func TestEngine_Apply(t *testing.T) {
	r := newRig(t)
	a := r.add(nodes.KindValue)
	r.eng.Step()

	require.NoError(t, r.eng.Apply(Request{Type: RequestSetInput, Node: a, Value: value.Numbers(8)}))
	assert.Equal(t, []graph.NodeID{a}, r.eng.Dirty())

	assert.Error(t, r.eng.Apply(Request{Type: RequestGesture, Node: a}))
	assert.Error(t, r.eng.Apply(Request{Type: RequestType(99)}))

	require.NoError(t, r.eng.Apply(Request{Type: RequestRestart}))
	require.NoError(t, r.eng.Apply(Request{
		Type:   RequestGesture,
		Node:   a,
		Update: func(s eval.State) eval.State { return 1 },
	}))
	st, ok := r.eng.State(a)
	require.True(t, ok)
	assert.Equal(t, 1, st)
}

func TestEngine_Run_AppliesRequestsAndSteps(t *testing.T) {
	trace := store.NewTrace()
	r := newRig(t, WithTraceSink(trace), WithFrameRate(240))
	a := r.add(nodes.KindValue)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.eng.Run(ctx) }()

	require.True(t, r.eng.Enqueue(Request{Type: RequestSetInput, Node: a, Value: value.Numbers(5)}))
	require.Eventually(t, func() bool {
		for _, ev := range trace.ForNode(string(a)) {
			if ev.Outputs == "[[5]]" {
				return true
			}
		}
		return false
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
	assert.False(t, r.eng.Enqueue(Request{Type: RequestMarkDirty, Node: a}))
}

func TestEngine_Run_StopReturnsNil(t *testing.T) {
	r := newRig(t)
	done := make(chan error, 1)
	go func() { done <- r.eng.Run(context.Background()) }()

	r.eng.Stop()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestEngine_SingleActorCheck(t *testing.T) {
	r := newRig(t, WithSingleActorCheck())
	r.eng.Step()

	panicked := make(chan any, 1)
	go func() {
		defer func() { panicked <- recover() }()
		r.eng.Step()
	}()
	assert.NotNil(t, <-panicked)

	assert.NotPanics(t, func() { r.eng.Step() })
}
