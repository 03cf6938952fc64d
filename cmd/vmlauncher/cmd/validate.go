package cmd

import (
	"fmt"
	"net/netip"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ls-1801/VMLauncher/pkg/launcher"
	"github.com/ls-1801/VMLauncher/pkg/netalloc"
	"github.com/ls-1801/VMLauncher/pkg/nodeconfig"
	"github.com/ls-1801/VMLauncher/pkg/topology"
)

var validateCmd = &cobra.Command{
	Use:   "validate <topology.yaml>",
	Short: "Check a topology and the node template without launching",
	Long: `Validate parses the topology, checks that the address block can hold every
node, allocates a trial set of identities and renders every node's config
in memory. Nothing is written and nothing is started.

Example:
  vmlauncher validate fleet.yaml
`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	topo, err := topology.Load(args[0])
	if err != nil {
		return launcher.ErrInvalidTopology(err)
	}

	reserved, err := topo.ReservedAddrs()
	if err != nil {
		return launcher.ErrInvalidTopology(err)
	}
	pool, err := netalloc.NewAddressPool(topo.CIDR, netalloc.WithReserved(reserved...))
	if err != nil {
		return launcher.ErrInvalidTopology(err)
	}
	if err := pool.CheckCapacity(topo.NodeCount()); err != nil {
		return launcher.ErrAddressSpaceExhausted(topo.CIDR, topo.NodeCount(), err).
			WithContext("capacity", pool.Capacity())
	}

	tmpl, err := loadTemplate()
	if err != nil {
		return launcher.ErrTemplate("*", err).WithContext("template", cfg.Run.Template)
	}

	specs, err := launcher.Plan(topo, netalloc.NewAllocator(), cfg.Run.ConfigDir)
	if err != nil {
		return err
	}
	for _, spec := range specs {
		if _, err := nodeconfig.Render(spec, tmpl); err != nil {
			return launcher.ErrTemplate(spec.Name, err)
		}
	}

	uiInstance.RenderPlan(topo.CIDR, specs)
	uiInstance.Println("")
	uiInstance.KeyValue("Capacity", strconv.Itoa(pool.Capacity()))
	uiInstance.KeyValue("Headroom", strconv.Itoa(pool.Capacity()-topo.NodeCount()))
	uiInstance.KeyValue("Ports", fmt.Sprintf("data %d, rpc %d, coordinator %d",
		nodeconfig.DataPort, nodeconfig.RPCPort, nodeconfig.CoordinatorPort))
	uiInstance.Println("")

	for _, w := range sourceHostWarnings(topo, specs) {
		uiInstance.Warning(w)
	}
	uiInstance.Success(fmt.Sprintf("Topology is valid: %d nodes", topo.NodeCount()))
	return nil
}

// sourceHostWarnings flags tcp sources reading from an unreserved address in
// the fleet's block, which a node may be assigned (the default socket host
// 10.0.0.1 is the first address handed out from 10.0.0.0/24)
func sourceHostWarnings(topo *topology.Topology, specs []nodeconfig.NodeSpec) []string {
	prefix, err := netip.ParsePrefix(topo.CIDR)
	if err != nil {
		return nil
	}
	reserved := map[string]bool{}
	for _, r := range topo.Reserved {
		reserved[r] = true
	}

	var warnings []string
	for _, spec := range specs {
		for _, src := range spec.Sources {
			for _, item := range src.Config {
				if item.Key != "socketHost" || reserved[item.Value] {
					continue
				}
				addr, err := netip.ParseAddr(item.Value)
				if err != nil || !prefix.Contains(addr) {
					continue
				}
				warnings = append(warnings, fmt.Sprintf(
					"%s: source %s reads from %s, which is inside %s and not reserved",
					spec.Name, src.PhysicalName, item.Value, topo.CIDR))
			}
		}
	}
	return warnings
}
