package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestStore opens a fresh file-backed store.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "trace.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testRun(id string) Run {
	return Run{ID: id, Name: "chain", FrameRate: 60, GraphHash: "abc123"}
}

func testEvaluation(seq, frame int64, node string) Evaluation {
	return Evaluation{
		Seq:     seq,
		Frame:   frame,
		Time:    float64(frame) / 60,
		NodeID:  node,
		Kind:    "add",
		Outputs: "[[1]]",
	}
}

// =============================================================================
// Open
// =============================================================================

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.db")
	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.WriteRun(ctx, testRun("r1")))
	require.NoError(t, s.Close())

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		require.NoError(t, err)
		runs, err := s.ListRuns(ctx)
		require.NoError(t, err)
		assert.Len(t, runs, 1)
		require.NoError(t, s.Close())
	}
}

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)
	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma("foreign_keys", "1"))
	assert.NoError(t, s.verifyPragma("busy_timeout", "5000"))
	assert.NoError(t, s.verifyPragma("user_version", "1"))
}

func TestOpen_InMemory(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()
	assert.NoError(t, s.verifyPragma("user_version", "1"))
}

func TestOpen_MigrationCreatesNodeIndex(t *testing.T) {
	s := createTestStore(t)
	var name string
	err := s.DB().QueryRow(`
		SELECT name FROM sqlite_master WHERE type = 'index' AND name = 'idx_evaluations_node'
	`).Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, "idx_evaluations_node", name)
}

// =============================================================================
// Runs
// =============================================================================

func TestStore_WriteRun_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WriteRun(ctx, testRun("r1")))
	require.NoError(t, s.WriteRun(ctx, testRun("r1")))

	got, err := s.ReadRun(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, testRun("r1"), got)
}

func TestStore_ReadRun_NotFound(t *testing.T) {
	s := createTestStore(t)
	_, err := s.ReadRun(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestStore_ListRuns_Ordered(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	assert.NotNil(t, runs)
	assert.Empty(t, runs)

	for _, id := range []string{"b", "c", "a"} {
		require.NoError(t, s.WriteRun(ctx, testRun(id)))
	}
	runs, err = s.ListRuns(ctx)
	require.NoError(t, err)
	var ids []string
	for _, r := range runs {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

// =============================================================================
// Evaluations and skips
// =============================================================================

func TestStore_WriteEvaluation_RequiresRun(t *testing.T) {
	s := createTestStore(t)
	err := s.WriteEvaluation(context.Background(), "missing", testEvaluation(1, 1, "n-1"))
	assert.Error(t, err)
}

func TestStore_WriteEvaluation_DuplicateSeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.WriteRun(ctx, testRun("r1")))
	require.NoError(t, s.WriteEvaluation(ctx, "r1", testEvaluation(1, 1, "n-1")))
	assert.Error(t, s.WriteEvaluation(ctx, "r1", testEvaluation(1, 2, "n-2")))
}

func TestStore_ReadEvaluations_OrderedBySeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.WriteRun(ctx, testRun("r1")))

	want := []Evaluation{
		testEvaluation(1, 1, "n-1"),
		testEvaluation(2, 1, "n-2"),
		testEvaluation(3, 2, "n-1"),
	}
	want[2].RunAgain = true
	for _, i := range []int{2, 0, 1} {
		require.NoError(t, s.WriteEvaluation(ctx, "r1", want[i]))
	}

	got, err := s.ReadEvaluations(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	history, err := s.ReadNodeHistory(ctx, "r1", "n-1")
	require.NoError(t, err)
	assert.Equal(t, []Evaluation{want[0], want[2]}, history)
}

func TestStore_ReadSkips_InsertionOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.WriteRun(ctx, testRun("r1")))

	want := []Skip{
		{Frame: 2, NodeID: "n-2", Code: "CYCLE_DETECTED", Detail: "cycle: n-2 -> n-3 -> n-2"},
		{Frame: 1, NodeID: "ghost", Code: "MISSING_REFERENCE", Detail: "dirty node does not exist"},
	}
	for _, sk := range want {
		require.NoError(t, s.WriteSkip(ctx, "r1", sk))
	}
	got, err := s.ReadSkips(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestRunSink_RoundTripsTrace(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	sink, err := NewRunSink(ctx, s, testRun("r1"))
	require.NoError(t, err)
	assert.Equal(t, "r1", sink.Run().ID)

	mem := NewTrace()
	for _, rec := range []interface {
		RecordEvaluation(Evaluation) error
		RecordSkip(Skip) error
	}{sink, mem} {
		require.NoError(t, rec.RecordEvaluation(testEvaluation(1, 1, "n-1")))
		require.NoError(t, rec.RecordSkip(Skip{Frame: 1, NodeID: "ghost", Code: "MISSING_REFERENCE"}))
		require.NoError(t, rec.RecordEvaluation(testEvaluation(2, 2, "n-1")))
	}

	loaded, err := s.ReadTrace(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, mem.Evaluations(), loaded.Evaluations())
	assert.Equal(t, mem.Skips(), loaded.Skips())
	assert.Nil(t, Compare(mem.Evaluations(), loaded.Evaluations()))
}

func TestNewRunSink_EmptyID(t *testing.T) {
	s := createTestStore(t)
	_, err := NewRunSink(context.Background(), s, Run{})
	assert.Error(t, err)
}

func TestStore_ReadTrace_UnknownRun(t *testing.T) {
	s := createTestStore(t)
	_, err := s.ReadTrace(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrRunNotFound)
}
