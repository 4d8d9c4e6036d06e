package harness

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StitchDesign/Stitch-sub007/internal/eval"
	"github.com/StitchDesign/Stitch-sub007/internal/graph"
	"github.com/StitchDesign/Stitch-sub007/internal/nodes"
	"github.com/StitchDesign/Stitch-sub007/internal/store"
	"github.com/StitchDesign/Stitch-sub007/internal/testutil"
	"github.com/StitchDesign/Stitch-sub007/internal/value"
)

// testRegistry adds a node that always asks to run again and one that
// reads its text input as a number.
func testRegistry() *eval.Registry {
	num := graph.PortSpec{Label: "n", Kind: value.KindNumber}
	return nodes.Registry().MustRegister(
		eval.Definition{
			Kind:        "spin",
			Outputs:     []graph.PortSpec{num},
			DefaultType: value.KindNumber,
			Impure: eval.ImpureFunc(func(ctx eval.Context, f eval.Frame) eval.Result {
				return eval.Result{Outputs: []value.Loop{value.Numbers(float64(ctx.Frame))}, RunAgain: true}
			}),
		},
		eval.Definition{
			Kind:        "strictNumber",
			Inputs:      []graph.PortSpec{{Label: "text", Kind: value.KindText}},
			Outputs:     []graph.PortSpec{num},
			DefaultType: value.KindNumber,
			Pure: func(ctx eval.Context, args []value.PortValue) []value.PortValue {
				return []value.PortValue{value.Number(ctx.Policy.Number(args[0]) + 1)}
			},
		},
	)
}

func loadTestScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", name))
	require.NoError(t, err)
	return s
}

func TestRun_Scenarios(t *testing.T) {
	files, err := filepath.Glob(filepath.Join("testdata", "scenarios", "*"))
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, f := range files {
		t.Run(filepath.Base(f), func(t *testing.T) {
			s, err := LoadScenario(f)
			require.NoError(t, err)

			result, err := Run(s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors:\n%s", strings.Join(result.Errors, "\n"))
		})
	}
}

func TestRun_Deterministic(t *testing.T) {
	s := loadTestScenario(t, "scroll_free.yaml")

	first, err := Run(s)
	require.NoError(t, err)
	second, err := Run(s)
	require.NoError(t, err)

	assert.Nil(t, store.Compare(first.Trace.Evaluations(), second.Trace.Evaluations()))
	assert.Equal(t, Snapshot(first), Snapshot(second))
}

func TestRun_SequentialNames(t *testing.T) {
	result, err := Run(loadTestScenario(t, "chain.yaml"))
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"n-1": "a", "n-2": "b"}, result.Names)
	assert.Equal(t, "a", result.Name("n-1"))
	assert.Equal(t, "ghost", result.Name("ghost"))
	assert.Equal(t, 3, result.Steps)
}

func TestRun_FailedExpectation(t *testing.T) {
	s := &Scenario{
		Name:  "wrong",
		Nodes: []NodeDecl{{ID: "a", Kind: nodes.KindValue, Set: map[int]any{0: 1}}},
		Frames: []Frame{{Expect: &Expect{
			Outputs:   []ExpectOutput{{Port: "a.0", Value: 2}},
			Evaluated: []string{"b"},
		}}},
	}

	result, err := Run(s)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, "frame 0: output a.0: expected [2], got [1]", result.Errors[0])
	assert.Equal(t, "frame 0: evaluated: expected [b], got [a]", result.Errors[1])
}

func TestRun_Tolerance(t *testing.T) {
	s := &Scenario{
		Name:  "approx",
		Nodes: []NodeDecl{{ID: "a", Kind: nodes.KindDivide, Set: map[int]any{0: 1, 1: 3}}},
		Frames: []Frame{{Expect: &Expect{Outputs: []ExpectOutput{
			{Port: "a.0", Value: 0.333, Tolerance: 0.01},
		}}}},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
}

func TestRun_UnknownKindIsSetupError(t *testing.T) {
	s := &Scenario{
		Name:   "unknown",
		Nodes:  []NodeDecl{{ID: "a", Kind: "warp"}, {ID: "b", Kind: "teleport"}},
		Frames: []Frame{{}},
	}

	_, err := Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `node a: UNKNOWN_KIND`)
	assert.Contains(t, err.Error(), `node b: UNKNOWN_KIND`)
}

func TestRun_BadLiteralIsSetupError(t *testing.T) {
	s := &Scenario{
		Name:   "literal",
		Nodes:  []NodeDecl{{ID: "a", Kind: nodes.KindValue, Set: map[int]any{3: 1}}},
		Frames: []Frame{{}},
	}

	_, err := Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "node a input 3")
}

func TestRun_RemoveLeavesMissingReference(t *testing.T) {
	idle := true
	s := &Scenario{
		Name: "remove",
		Nodes: []NodeDecl{
			{ID: "a", Kind: nodes.KindValue, Set: map[int]any{0: 4}},
			{ID: "b", Kind: nodes.KindAdd, Set: map[int]any{1: 1}},
		},
		Edges: []EdgeDecl{{From: "a.0", To: "b.0"}},
		Frames: []Frame{
			{},
			{Remove: []string{"a"}, Dirty: []string{"a", "b"}, Expect: &Expect{
				Evaluated: []string{"b"},
				Skipped:   []ExpectSkip{{Node: "a", Code: "MISSING_REFERENCE"}},
				Outputs:   []ExpectOutput{{Port: "b.0", Value: 5}},
				Idle:      &idle,
			}},
		},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
}

func TestRun_EditFailureIsReported(t *testing.T) {
	s := &Scenario{
		Name:  "edit",
		Nodes: []NodeDecl{{ID: "a", Kind: nodes.KindValue}},
		Frames: []Frame{
			{Remove: []string{"a"}},
			{Set: []SetInput{{Port: "a.0", Value: 1}}},
		},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.True(t, strings.HasPrefix(result.Errors[0], "frame 1: edit: expected set a.0"), result.Errors[0])
}

func TestRun_Budget(t *testing.T) {
	idle := true
	s := &Scenario{
		Name:   "budget",
		Budget: 3,
		Nodes:  []NodeDecl{{ID: "s", Kind: "spin"}},
		Frames: []Frame{{Settle: true, Expect: &Expect{
			Skipped: []ExpectSkip{{Node: "s", Code: "RUN_AGAIN_BUDGET_EXCEEDED"}},
			Outputs: []ExpectOutput{{Port: "s.0", Value: 4}},
			Idle:    &idle,
		}}},
	}

	result, err := Run(s, WithRegistry(testRegistry()))
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
	assert.Equal(t, 4, result.Steps)
}

func TestRun_SettleLimit(t *testing.T) {
	s := &Scenario{
		Name:   "forever",
		Budget: -1,
		Nodes:  []NodeDecl{{ID: "s", Kind: "spin"}},
		Frames: []Frame{{Settle: true}},
	}

	result, err := Run(s, WithRegistry(testRegistry()))
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Equal(t, MaxSettleSteps, result.Steps)
	assert.Contains(t, result.Errors[0], "settle: expected idle within 2000 steps")
}

func TestRun_StrictMismatchAborts(t *testing.T) {
	s := &Scenario{
		Name:   "strict",
		Strict: true,
		Nodes:  []NodeDecl{{ID: "s", Kind: "strictNumber", Set: map[int]any{0: "hello"}}},
		Frames: []Frame{
			{},
			{Dirty: []string{"s"}},
		},
	}

	result, err := Run(s, WithRegistry(testRegistry()))
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "frame 0: step: expected no variant mismatch")
	assert.Contains(t, result.Errors[0], "VARIANT_MISMATCH")
	assert.Equal(t, 0, result.Steps)
}

func TestRun_LogsThroughLogger(t *testing.T) {
	rec := testutil.NewLogRecorder()
	_, err := Run(loadTestScenario(t, "cycle.yaml"), WithLogger(rec.Logger()))
	require.NoError(t, err)

	assert.Contains(t, rec.Messages(slog.LevelWarn), "node skipped")
}

func TestRun_TeesToRunSink(t *testing.T) {
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	sink, err := store.NewRunSink(ctx, st, store.Run{ID: "run-1", Name: "cycle", FrameRate: 60})
	require.NoError(t, err)

	result, err := Run(loadTestScenario(t, "cycle.yaml"), WithTraceSink(sink))
	require.NoError(t, err)

	recorded, err := st.ReadTrace(ctx, "run-1")
	require.NoError(t, err)
	assert.Nil(t, store.Compare(result.Trace.Evaluations(), recorded.Evaluations()))
	assert.Equal(t, result.Trace.Skips(), recorded.Skips())
}

func TestReplay(t *testing.T) {
	s := loadTestScenario(t, "counter.yaml")
	recorded, err := Run(s)
	require.NoError(t, err)

	div, _, err := Replay(s, recorded.Trace.Evaluations())
	require.NoError(t, err)
	assert.Nil(t, div)

	tampered := recorded.Trace.Evaluations()
	tampered[2].Outputs = "[[7]]"
	div, _, err = Replay(s, tampered)
	require.NoError(t, err)
	require.NotNil(t, div)
	assert.Equal(t, 2, div.Index)
	assert.Equal(t, "evaluation 2: want n-1@3 [[7]], got n-1@3 [[2]]", div.String())
}
