package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/StitchDesign/Stitch-sub007/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Node     string
}

// RunListing is one row of the run list.
type RunListing struct {
	store.Run
	Evaluations int `json:"evaluations"`
	Skips       int `json:"skips"`
}

// TraceOutput is a single run's recorded trace.
type TraceOutput struct {
	Run         store.Run          `json:"run"`
	Evaluations []store.Evaluation `json:"evaluations"`
	Skips       []store.Skip       `json:"skips"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace [run-id]",
		Short: "Inspect recorded runs",
		Long: `List recorded runs, or show the evaluations and skips of one run.

Examples:
  patchgraph trace --db ./runs.db
  patchgraph trace --db ./runs.db 0192f6c4-...
  patchgraph trace --db ./runs.db 0192f6c4-... --node n-2`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if len(args) == 0 {
				return runListRuns(ctx, opts, cmd)
			}
			return runShowTrace(ctx, opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "trace database (required)")
	cmd.Flags().StringVar(&opts.Node, "node", "", "only show evaluations of this node id")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func openStore(path string) (*store.Store, error) {
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

func runListRuns(ctx context.Context, opts *TraceOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	st, err := openStore(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.ListRuns(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}
	listing := make([]RunListing, 0, len(runs))
	for _, r := range runs {
		tr, err := st.ReadTrace(ctx, r.ID)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read trace", err)
		}
		listing = append(listing, RunListing{Run: r, Evaluations: len(tr.Evaluations()), Skips: len(tr.Skips())})
	}

	if f.JSON() {
		return f.Success(listing)
	}
	if len(listing) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
		return nil
	}
	t := f.Table("", table.Row{"Run", "Name", "Frame Rate", "Evaluations", "Skips"})
	for _, l := range listing {
		t.AppendRow(table.Row{
			l.ID, l.Name,
			humanize.FtoaWithDigits(l.FrameRate, 2),
			humanize.Comma(int64(l.Evaluations)),
			humanize.Comma(int64(l.Skips)),
		})
	}
	t.Render()
	return nil
}

func runShowTrace(ctx context.Context, opts *TraceOptions, runID string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	st, err := openStore(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	run, err := st.ReadRun(ctx, runID)
	if errors.Is(err, store.ErrRunNotFound) {
		return NewExitError(ExitFailure, fmt.Sprintf("run not found: %s", runID))
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	out := TraceOutput{Run: run}
	if opts.Node != "" {
		out.Evaluations, err = st.ReadNodeHistory(ctx, runID, opts.Node)
	} else {
		out.Evaluations, err = st.ReadEvaluations(ctx, runID)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read evaluations", err)
	}
	skips, err := st.ReadSkips(ctx, runID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read skips", err)
	}
	out.Skips = make([]store.Skip, 0, len(skips))
	for _, s := range skips {
		if opts.Node == "" || s.NodeID == opts.Node {
			out.Skips = append(out.Skips, s)
		}
	}

	if f.JSON() {
		return f.Success(out)
	}

	title := fmt.Sprintf("%s (%s, %s fps)", run.ID, run.Name, humanize.FtoaWithDigits(run.FrameRate, 2))
	t := f.Table(title, table.Row{"Seq", "Frame", "Time", "Node", "Kind", "Outputs", "Again"})
	for _, ev := range out.Evaluations {
		again := ""
		if ev.RunAgain {
			again = "yes"
		}
		t.AppendRow(table.Row{ev.Seq, ev.Frame, humanize.FtoaWithDigits(ev.Time, 4), ev.NodeID, ev.Kind, ev.Outputs, again})
	}
	t.Render()

	if len(out.Skips) > 0 {
		fmt.Fprintln(cmd.OutOrStdout())
		skipTable := f.Table("Skips", table.Row{"Frame", "Node", "Code", "Detail"})
		for _, s := range out.Skips {
			skipTable.AppendRow(table.Row{s.Frame, s.NodeID, s.Code, s.Detail})
		}
		skipTable.Render()
	}
	return nil
}
