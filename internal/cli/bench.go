package cli

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jamiealquiza/tachymeter"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/StitchDesign/Stitch-sub007/internal/harness"
)

// BenchOptions holds flags for the bench command.
type BenchOptions struct {
	*RootOptions
	Iterations int
}

// BenchResult holds timing statistics for one scenario.
type BenchResult struct {
	Scenario   string        `json:"scenario"`
	Iterations int           `json:"iterations"`
	Steps      int           `json:"steps"`
	Avg        time.Duration `json:"avg_ns"`
	Min        time.Duration `json:"min_ns"`
	P75        time.Duration `json:"p75_ns"`
	P99        time.Duration `json:"p99_ns"`
	Max        time.Duration `json:"max_ns"`
}

// NewBenchCommand creates the bench command.
func NewBenchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BenchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "bench <scenario>...",
		Short: "Time repeated scenario runs",
		Long: `Run each scenario repeatedly and report wall-clock latency percentiles.

Each iteration builds a fresh engine and plays every frame. Expectations
are still checked; a scenario that fails is reported as an error.

Examples:
  patchgraph bench ./scenarios/scroll_free.yaml
  patchgraph bench ./scenarios/*.yaml --iterations 500`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBench(opts, args, cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Iterations, "iterations", "n", 100, "runs per scenario")

	return cmd
}

func runBench(opts *BenchOptions, files []string, cmd *cobra.Command) error {
	if opts.Iterations < 1 {
		return NewExitError(ExitCommandError, "iterations must be at least 1")
	}
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))

	results := make([]BenchResult, 0, len(files))
	for _, file := range files {
		scenario, _, err := loadScenario(file)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load scenario", err)
		}
		f.VerboseLog("benchmarking %s (%d iterations)", scenario.Name, opts.Iterations)

		tach := tachymeter.New(&tachymeter.Config{Size: opts.Iterations})
		steps := 0
		for i := 0; i < opts.Iterations; i++ {
			start := time.Now()
			result, err := harness.Run(scenario, harness.WithLogger(quiet))
			tach.AddTime(time.Since(start))
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to run scenario", err)
			}
			if !result.Pass {
				return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed: %s", scenario.Name, result.Errors[0]))
			}
			steps = result.Steps
		}

		calc := tach.Calc()
		results = append(results, BenchResult{
			Scenario:   scenario.Name,
			Iterations: opts.Iterations,
			Steps:      steps,
			Avg:        calc.Time.Avg,
			Min:        calc.Time.Min,
			P75:        calc.Time.P75,
			P99:        calc.Time.P99,
			Max:        calc.Time.Max,
		})
	}

	if f.JSON() {
		return f.Success(results)
	}
	t := f.Table("Scenario runs", table.Row{"scenario", "steps", "avg", "min", "p75", "p99", "max"})
	for _, r := range results {
		t.AppendRow(table.Row{r.Scenario, r.Steps, r.Avg, r.Min, r.P75, r.P99, r.Max})
	}
	t.Render()
	return nil
}
