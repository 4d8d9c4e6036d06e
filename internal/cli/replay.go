package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/StitchDesign/Stitch-sub007/internal/harness"
	"github.com/StitchDesign/Stitch-sub007/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
}

// ReplayResult is the replay command's result.
type ReplayResult struct {
	RunID         string `json:"run_id"`
	Scenario      string `json:"scenario"`
	Evaluations   int    `json:"evaluations"`
	Deterministic bool   `json:"deterministic"`
	HashMatch     bool   `json:"hash_match"`
	Divergence    string `json:"divergence,omitempty"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <run-id> <scenario>",
		Short: "Rerun a scenario and compare it with a recorded run",
		Long: `Run a scenario again and compare its evaluations with a recorded run.

The run is deterministic: node ids are sequential and time follows the
frame counter, so a recording of the same scenario replays identically.
The first diverging evaluation is reported.

Exit codes:
  0 - Replay matches the recording
  1 - Replay diverged
  2 - Command error

Examples:
  patchgraph replay --db ./runs.db 0192f6c4-... ./scenarios/chain.yaml`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return runReplay(ctx, opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "trace database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runReplay(ctx context.Context, opts *ReplayOptions, runID, path string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	scenario, hash, err := loadScenario(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}
	st, err := openStore(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	run, err := st.ReadRun(ctx, runID)
	if errors.Is(err, store.ErrRunNotFound) {
		return NewExitError(ExitCommandError, fmt.Sprintf("run not found: %s", runID))
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}
	recorded, err := st.ReadEvaluations(ctx, runID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read evaluations", err)
	}

	logger := f.Logger()
	result := ReplayResult{
		RunID:       runID,
		Scenario:    scenario.Name,
		Evaluations: len(recorded),
		HashMatch:   run.GraphHash == hash,
	}
	if !result.HashMatch {
		logger.Warn("scenario changed since recording",
			"run_id", runID,
			"recorded_hash", run.GraphHash,
			"current_hash", hash)
	}

	div, _, err := harness.Replay(scenario, recorded, harness.WithLogger(logger))
	if err != nil {
		return WrapExitError(ExitCommandError, "replay failed", err)
	}
	result.Deterministic = div == nil
	if div != nil {
		result.Divergence = div.String()
	}

	if f.JSON() {
		if div != nil {
			if err := f.Failure("E_REPLAY_DIVERGED", "replay diverged", result, nil); err != nil {
				return err
			}
			return NewExitError(ExitFailure, "replay diverged")
		}
		return f.Success(result)
	}

	w := cmd.OutOrStdout()
	if div != nil {
		fmt.Fprintf(w, "✗ replay of %s diverged\n  %s\n", runID, result.Divergence)
		return NewExitError(ExitFailure, "replay diverged")
	}
	fmt.Fprintf(w, "✓ replay of %s matches (%d evaluations)\n", runID, result.Evaluations)
	return nil
}
