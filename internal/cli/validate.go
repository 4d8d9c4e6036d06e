package cli

import (
	"fmt"
	"slices"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"github.com/StitchDesign/Stitch-sub007/internal/eval"
	"github.com/StitchDesign/Stitch-sub007/internal/graph"
	"github.com/StitchDesign/Stitch-sub007/internal/harness"
	"github.com/StitchDesign/Stitch-sub007/internal/nodes"
	"github.com/StitchDesign/Stitch-sub007/internal/value"
)

// ValidationResult is the validate command's result for one file.
type ValidationResult struct {
	File     string   `json:"file"`
	Scenario string   `json:"scenario,omitempty"`
	Valid    bool     `json:"valid"`
	Nodes    int      `json:"nodes"`
	Frames   int      `json:"frames"`
	Warnings []string `json:"warnings,omitempty"`
	Errors   []string `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <scenario>...",
		Short: "Check scenario files without running them",
		Long: `Parse each scenario file and check it against the node registry.

Beyond the document checks done on load, every node kind must be
registered and support the requested value type and input count, and
every edge must join existing ports. Cycles in the declared edges are
reported as warnings: the engine skips cyclic nodes rather than failing.

Examples:
  patchgraph validate ./scenarios/chain.yaml
  patchgraph validate ./scenarios/*.cue --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, files []string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
	registry := nodes.Registry()

	results := make([]ValidationResult, 0, len(files))
	invalid := 0
	for _, file := range files {
		r := validateFile(registry, file)
		if !r.Valid {
			invalid++
		}
		results = append(results, r)
	}

	if f.JSON() {
		if invalid > 0 {
			if err := f.Failure("E_VALIDATION_FAILED", fmt.Sprintf("%d file(s) invalid", invalid), results, nil); err != nil {
				return err
			}
			return NewExitError(ExitFailure, "validation failed")
		}
		return f.Success(results)
	}

	w := cmd.OutOrStdout()
	for _, r := range results {
		if r.Valid {
			fmt.Fprintf(w, "✓ %s (%s): %d nodes, %d frames\n", r.File, r.Scenario, r.Nodes, r.Frames)
			for _, warn := range r.Warnings {
				fmt.Fprintf(w, "  warning: %s\n", warn)
			}
			continue
		}
		fmt.Fprintf(w, "✗ %s\n", r.File)
		for _, e := range r.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}
	if invalid > 0 {
		return NewExitError(ExitFailure, "validation failed")
	}
	return nil
}

func validateFile(registry *eval.Registry, file string) ValidationResult {
	r := ValidationResult{File: file}
	s, _, err := loadScenario(file)
	if err != nil {
		r.Errors = []string{err.Error()}
		return r
	}
	r.Scenario = s.Name
	r.Nodes = len(s.Nodes)
	r.Frames = len(s.Frames)

	warnings, err := checkGraph(registry, s)
	r.Warnings = warnings
	if err != nil {
		if merr, ok := err.(*multierror.Error); ok {
			for _, e := range merr.Errors {
				r.Errors = append(r.Errors, e.Error())
			}
		} else {
			r.Errors = []string{err.Error()}
		}
		return r
	}
	r.Valid = true
	return r
}

// checkGraph builds the declared graph against the registry without
// evaluating it. Node ids are the scenario's own, so cycle warnings name
// declared nodes.
func checkGraph(registry *eval.Registry, s *harness.Scenario) ([]string, error) {
	ids := make([]string, len(s.Nodes))
	for i, n := range s.Nodes {
		ids[i] = n.ID
	}
	g := graph.New(graph.WithIDGenerator(graph.NewFixedGenerator(ids...)))

	var errs *multierror.Error
	for _, n := range s.Nodes {
		spec, err := nodeSpec(registry, n)
		if err == nil {
			_, err = g.AddNode(spec)
		}
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("node %s: %w", n.ID, err))
			continue
		}
		ports := make([]int, 0, len(n.Set))
		for p := range n.Set {
			ports = append(ports, p)
		}
		slices.Sort(ports)
		for _, p := range ports {
			if p < 0 || p >= len(spec.Inputs) {
				errs = multierror.Append(errs, fmt.Errorf("node %s: input %d does not exist (%d inputs)", n.ID, p, len(spec.Inputs)))
			}
		}
	}
	if errs.ErrorOrNil() != nil {
		return nil, errs
	}

	for i, e := range s.Edges {
		from, err := harness.ParsePortRef(e.From)
		if err == nil {
			var to harness.PortRef
			to, err = harness.ParsePortRef(e.To)
			if err == nil {
				err = g.Connect(
					graph.OutputRef{Node: graph.NodeID(from.Node), Index: from.Index},
					graph.InputRef{Node: graph.NodeID(to.Node), Index: to.Index},
				)
			}
		}
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("edges[%d]: %w", i, err))
		}
	}

	var warnings []string
	for _, c := range g.Cycles() {
		warnings = append(warnings, c.Message)
	}
	return warnings, errs.ErrorOrNil()
}

func nodeSpec(registry *eval.Registry, n harness.NodeDecl) (graph.NodeSpec, error) {
	def, ok := registry.Lookup(n.Kind)
	if !ok {
		return graph.NodeSpec{}, fmt.Errorf("unknown kind %q", n.Kind)
	}
	typ := value.KindAny
	if n.Type != "" {
		// Load already rejected unknown type names.
		typ, _ = value.ParseKind(n.Type)
	}
	return def.Spec(typ, n.Inputs)
}
