package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ls-1801/VMLauncher/pkg/launcher"
	"github.com/ls-1801/VMLauncher/pkg/netalloc"
	"github.com/ls-1801/VMLauncher/pkg/nodeconfig"
	"github.com/ls-1801/VMLauncher/pkg/topology"
)

var renderOutDir string

var renderCmd = &cobra.Command{
	Use:   "render <topology.yaml>",
	Short: "Render node configurations without launching anything",
	Long: `Render allocates identities for the topology and renders every node's
configuration. Without --out the documents are printed to stdout as a YAML
stream; with --out they are written to <dir>/<node>.yaml.

MAC addresses are random, so every render produces different ones.

Example:
  vmlauncher render fleet.yaml
  vmlauncher render fleet.yaml --out ./configs
`,
	Args: cobra.ExactArgs(1),
	RunE: runRender,
}

func init() {
	rootCmd.AddCommand(renderCmd)
	renderCmd.Flags().StringVarP(&renderOutDir, "out", "o", "", "Write configs to this directory instead of stdout")
}

func runRender(cmd *cobra.Command, args []string) error {
	topo, err := topology.Load(args[0])
	if err != nil {
		return launcher.ErrInvalidTopology(err)
	}

	tmpl, err := loadTemplate()
	if err != nil {
		return launcher.ErrTemplate("*", err).WithContext("template", cfg.Run.Template)
	}

	dir := renderOutDir
	if dir == "" {
		dir = "."
	}
	specs, err := launcher.Plan(topo, netalloc.NewAllocator(), dir)
	if err != nil {
		return err
	}

	if renderOutDir == "" {
		out := cmd.OutOrStdout()
		for i, spec := range specs {
			rc, err := nodeconfig.Render(spec, tmpl)
			if err != nil {
				return launcher.ErrTemplate(spec.Name, err)
			}
			if i > 0 {
				fmt.Fprintln(out, "---")
			}
			fmt.Fprintf(out, "# %s\n%s", spec.Name, rc.Content)
		}
		return nil
	}

	deliverer := nodeconfig.FileDeliverer{}
	for _, spec := range specs {
		if _, err := nodeconfig.RenderAndDeliver(cmd.Context(), spec, tmpl, deliverer); err != nil {
			var tmplErr *nodeconfig.TemplateError
			if errors.As(err, &tmplErr) {
				return launcher.ErrTemplate(spec.Name, err)
			}
			return launcher.ErrRenderIO(spec.Name, deliverer.Path(spec.Destination), err)
		}
		logger.Debug("rendered node config", "node", spec.Name, "path", spec.Destination)
	}

	uiInstance.RenderPlan(topo.CIDR, specs)
	uiInstance.Println("")
	uiInstance.Success(fmt.Sprintf("Rendered %d configs to %s", len(specs), renderOutDir))
	return nil
}
