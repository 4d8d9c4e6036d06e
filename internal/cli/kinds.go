package cli

import (
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/StitchDesign/Stitch-sub007/internal/nodes"
)

// KindInfo describes one registered node kind.
type KindInfo struct {
	Kind        string   `json:"kind"`
	Eval        string   `json:"eval"`
	Type        string   `json:"type"`
	Inputs      []string `json:"inputs"`
	Outputs     []string `json:"outputs"`
	Variadic    bool     `json:"variadic,omitempty"`
	Description string   `json:"description,omitempty"`
}

// NewKindsCommand creates the kinds command.
func NewKindsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "kinds",
		Short:         "List node kinds available to scenarios",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKinds(rootOpts, cmd)
		},
	}
}

func runKinds(opts *RootOptions, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
	registry := nodes.Registry()

	var infos []KindInfo
	for _, kind := range registry.Kinds() {
		def, _ := registry.Lookup(kind)
		info := KindInfo{
			Kind:        def.Kind,
			Eval:        def.EvalKind().String(),
			Type:        def.DefaultType.String(),
			Variadic:    def.Variadic,
			Description: def.Description,
		}
		for _, p := range def.Inputs {
			info.Inputs = append(info.Inputs, p.Label)
		}
		for _, p := range def.Outputs {
			info.Outputs = append(info.Outputs, p.Label)
		}
		infos = append(infos, info)
	}

	if f.JSON() {
		return f.Success(infos)
	}
	t := f.Table("", table.Row{"Kind", "Eval", "Type", "Inputs", "Outputs", "Description"})
	for _, i := range infos {
		inputs := strings.Join(i.Inputs, ", ")
		if i.Variadic {
			inputs += ", ..."
		}
		t.AppendRow(table.Row{i.Kind, i.Eval, i.Type, inputs, strings.Join(i.Outputs, ", "), i.Description})
	}
	t.Render()
	return nil
}
