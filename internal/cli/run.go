package cli

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/StitchDesign/Stitch-sub007/internal/engine"
	"github.com/StitchDesign/Stitch-sub007/internal/graph"
	"github.com/StitchDesign/Stitch-sub007/internal/harness"
	"github.com/StitchDesign/Stitch-sub007/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	Name     string

	// RunIDs overrides the run id source (for testing). Defaults to UUIDv7.
	RunIDs graph.IDGenerator
}

// RunSummary is the run command's result.
type RunSummary struct {
	Scenario    string   `json:"scenario"`
	RunID       string   `json:"run_id,omitempty"`
	Pass        bool     `json:"pass"`
	Steps       int      `json:"steps"`
	Evaluations int      `json:"evaluations"`
	Skips       int      `json:"skips"`
	Errors      []string `json:"errors,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario>",
		Short: "Run one scenario",
		Long: `Run a scenario file and check its expectations.

With --db the run is recorded: every evaluation and skip is appended to
the SQLite trace database under a new run id, for later use with the
trace and replay commands.

Examples:
  patchgraph run ./scenarios/chain.yaml
  patchgraph run --db ./runs.db ./scenarios/scroll.cue --verbose`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarioCommand(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "record the run to this SQLite database")
	cmd.Flags().StringVar(&opts.Name, "name", "", "run name (defaults to the scenario name)")

	return cmd
}

func runScenarioCommand(ctx context.Context, opts *RunOptions, path string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	scenario, hash, err := loadScenario(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	runOpts := []harness.Option{harness.WithLogger(f.Logger())}
	summary := RunSummary{Scenario: scenario.Name}

	if opts.Database != "" {
		st, err := store.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer st.Close()

		ids := opts.RunIDs
		if ids == nil {
			ids = graph.UUIDv7Generator{}
		}
		run := store.Run{
			ID:        ids.Generate(),
			Name:      opts.Name,
			FrameRate: scenario.FrameRate,
			GraphHash: hash,
		}
		if run.Name == "" {
			run.Name = scenario.Name
		}
		if run.FrameRate <= 0 {
			run.FrameRate = engine.DefaultFrameRate
		}
		sink, err := store.NewRunSink(ctx, st, run)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to record run", err)
		}
		runOpts = append(runOpts, harness.WithTraceSink(sink))
		summary.RunID = run.ID
		f.VerboseLog("recording run %s to %s", run.ID, opts.Database)
	}

	result, err := harness.Run(scenario, runOpts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to run scenario", err)
	}

	summary.Pass = result.Pass
	summary.Steps = result.Steps
	summary.Evaluations = len(result.Trace.Evaluations())
	summary.Skips = len(result.Trace.Skips())
	summary.Errors = result.Errors

	if f.JSON() {
		if !result.Pass {
			if err := f.Failure("E_SCENARIO_FAILED", "scenario failed", summary, nil); err != nil {
				return err
			}
			return NewExitError(ExitFailure, "scenario failed")
		}
		return f.Success(summary)
	}

	w := cmd.OutOrStdout()
	mark := "✓"
	if !result.Pass {
		mark = "✗"
	}
	fmt.Fprintf(w, "%s %s: %s steps, %s evaluations, %s skips\n", mark, scenario.Name,
		humanize.Comma(int64(summary.Steps)),
		humanize.Comma(int64(summary.Evaluations)),
		humanize.Comma(int64(summary.Skips)))
	if summary.RunID != "" {
		fmt.Fprintf(w, "  run %s\n", summary.RunID)
	}
	for _, e := range result.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
	if !result.Pass {
		return NewExitError(ExitFailure, "scenario failed")
	}
	return nil
}
