package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chainScenario = `name: chain
nodes:
  - id: a
    kind: value
    set: {0: 1}
  - id: b
    kind: add
    set: {1: 2}
edges:
  - from: a.0
    to: b.0
frames:
  - expect:
      outputs:
        - port: b.0
          value: 3
  - set:
      - port: a.0
        value: 5
    settle: true
  - set:
      - port: a.0
        value: 5
`

const chainGolden = `scenario: chain
evaluations:
  1 a value [[1]]
  1 b add [[3]]
  2 a value [[5]]
  2 b add [[7]]
  3 a value [[5]]
`

const brokenScenario = `name: broken
nodes:
  - id: a
    kind: value
    set: {0: 1}
frames:
  - expect:
      outputs:
        - port: a.0
          value: 2
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// recordChain runs the chain scenario into a fresh database and returns
// the database path, scenario path and run id.
func recordChain(t *testing.T) (db, scenario, runID string) {
	t.Helper()
	dir := t.TempDir()
	scenario = writeFile(t, dir, "chain.yaml", chainScenario)
	db = filepath.Join(dir, "runs.db")

	out, err := execute(t, "--format", "json", "run", "--db", db, scenario)
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   RunSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotEmpty(t, resp.Data.RunID)
	return db, scenario, resp.Data.RunID
}

// =============================================================================
// run
// =============================================================================

func TestRun_Text(t *testing.T) {
	path := writeFile(t, t.TempDir(), "chain.yaml", chainScenario)

	out, err := execute(t, "run", path)
	require.NoError(t, err)
	assert.Equal(t, "✓ chain: 3 steps, 5 evaluations, 0 skips\n", out)
}

func TestRun_Failure(t *testing.T) {
	path := writeFile(t, t.TempDir(), "broken.yaml", brokenScenario)

	out, err := execute(t, "run", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ broken")
	assert.Contains(t, out, "frame 0: output a.0: expected [2], got [1]")
}

func TestRun_JSONFailure(t *testing.T) {
	path := writeFile(t, t.TempDir(), "broken.yaml", brokenScenario)

	out, err := execute(t, "--format", "json", "run", path)
	require.Error(t, err)

	var resp Response
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_SCENARIO_FAILED", resp.Error.Code)
}

func TestRun_MissingFile(t *testing.T) {
	_, err := execute(t, "run", filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

// =============================================================================
// trace and replay
// =============================================================================

func TestTrace_ListRuns(t *testing.T) {
	db, _, runID := recordChain(t)

	out, err := execute(t, "trace", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, runID)
	assert.Contains(t, out, "chain")
}

func TestTrace_ShowRun(t *testing.T) {
	db, _, runID := recordChain(t)

	out, err := execute(t, "--format", "json", "trace", "--db", db, runID)
	require.NoError(t, err)

	var resp struct {
		Data TraceOutput `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, runID, resp.Data.Run.ID)
	require.Len(t, resp.Data.Evaluations, 5)
	assert.Equal(t, "[[3]]", resp.Data.Evaluations[1].Outputs)
	assert.Empty(t, resp.Data.Skips)
}

func TestTrace_NodeFilter(t *testing.T) {
	db, _, runID := recordChain(t)

	out, err := execute(t, "trace", "--db", db, runID, "--node", "n-2")
	require.NoError(t, err)
	assert.Contains(t, out, "n-2")
	assert.NotContains(t, out, "n-1")
}

func TestTrace_UnknownRun(t *testing.T) {
	db, _, _ := recordChain(t)

	_, err := execute(t, "trace", "--db", db, "missing")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "run not found")
}

func TestReplay_Matches(t *testing.T) {
	db, scenario, runID := recordChain(t)

	out, err := execute(t, "replay", "--db", db, runID, scenario)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ replay of "+runID+" matches (5 evaluations)")
}

func TestReplay_Diverges(t *testing.T) {
	db, scenario, runID := recordChain(t)
	changed := strings.Replace(chainScenario, "set: {1: 2}", "set: {1: 3}", 1)
	require.NoError(t, os.WriteFile(scenario, []byte(changed), 0o644))

	out, err := execute(t, "--format", "json", "replay", "--db", db, runID, scenario)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Data ReplayResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.False(t, resp.Data.Deterministic)
	assert.False(t, resp.Data.HashMatch)
	assert.Equal(t, "evaluation 1: want n-2@1 [[3]], got n-2@1 [[4]]", resp.Data.Divergence)
}

// =============================================================================
// test
// =============================================================================

func TestTestCommand_Golden(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "chain.yaml", chainScenario)
	writeFile(t, dir, filepath.Join("golden", "chain.golden"), chainGolden)

	out, err := execute(t, "test", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ chain")
	assert.Contains(t, out, "Test Summary: 1 passed, 0 failed, 1 total")
}

func TestTestCommand_GoldenMismatch(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "chain.yaml", chainScenario)
	writeFile(t, dir, filepath.Join("golden", "chain.golden"), "scenario: chain\n")

	out, err := execute(t, "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "trace does not match golden file")
}

func TestTestCommand_Update(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "chain.yaml", chainScenario)

	_, err := execute(t, "test", dir, "--update")
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(dir, "golden", "chain.golden"))
	require.NoError(t, err)
	assert.Equal(t, chainGolden, string(got))
}

func TestTestCommand_Filter(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "chain.yaml", chainScenario)
	writeFile(t, dir, "broken.yaml", brokenScenario)

	out, err := execute(t, "test", dir, "--filter", "ch*")
	require.NoError(t, err)
	assert.Contains(t, out, "1 total")

	out, err = execute(t, "--format", "json", "test", dir)
	require.Error(t, err)
	var resp struct {
		Data TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, 1, resp.Data.Passed)
	assert.Equal(t, 1, resp.Data.Failed)
	assert.Equal(t, "broken", resp.Data.Scenarios[0].Name)
}

func TestTestCommand_MissingDir(t *testing.T) {
	_, err := execute(t, "test", filepath.Join(t.TempDir(), "absent"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

// =============================================================================
// validate, bench, kinds
// =============================================================================

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "chain.yaml", chainScenario)
	bad := writeFile(t, dir, "bad.yaml", `name: bad
nodes:
  - id: a
    kind: warp
  - id: b
    kind: value
    set: {7: 1}
  - id: c
    kind: counter
    inputs: 9
frames: [{}]
`)

	out, err := execute(t, "validate", good)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ "+good+" (chain): 2 nodes, 3 frames")

	out, err = execute(t, "validate", good, bad)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ "+bad)
	assert.Contains(t, out, `node a: unknown kind "warp"`)
	assert.Contains(t, out, "node b: input 7 does not exist")
	assert.Contains(t, out, `node kind "counter" has a fixed 5 inputs`)
}

func TestBench(t *testing.T) {
	path := writeFile(t, t.TempDir(), "chain.yaml", chainScenario)

	out, err := execute(t, "--format", "json", "bench", path, "-n", "3")
	require.NoError(t, err)

	var resp struct {
		Data []BenchResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "chain", resp.Data[0].Scenario)
	assert.Equal(t, 3, resp.Data[0].Iterations)
	assert.Equal(t, 3, resp.Data[0].Steps)
	assert.LessOrEqual(t, resp.Data[0].Min, resp.Data[0].Max)
}

func TestBench_FailingScenario(t *testing.T) {
	path := writeFile(t, t.TempDir(), "broken.yaml", brokenScenario)

	_, err := execute(t, "bench", path, "-n", "2")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestKinds(t *testing.T) {
	out, err := execute(t, "kinds")
	require.NoError(t, err)
	for _, kind := range []string{"value", "add", "counter", "scrollInteraction"} {
		assert.Contains(t, out, kind)
	}
}

func TestValidate_CycleWarning(t *testing.T) {
	path := writeFile(t, t.TempDir(), "loop.yaml", `name: loop
nodes:
  - id: a
    kind: add
  - id: b
    kind: add
edges:
  - from: a.0
    to: b.0
  - from: b.0
    to: a.0
frames: [{}]
`)

	out, err := execute(t, "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "warning: cycle detected: a -> b -> a")
}

func TestValidate_BadEdge(t *testing.T) {
	path := writeFile(t, t.TempDir(), "edge.yaml", `name: edge
nodes:
  - id: a
    kind: value
  - id: b
    kind: value
edges:
  - from: a.3
    to: b.0
frames: [{}]
`)

	out, err := execute(t, "validate", path)
	require.Error(t, err)
	assert.Contains(t, out, "edges[0]:")
}
