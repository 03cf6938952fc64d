package launcher

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/ls-1801/VMLauncher/pkg/netalloc"
	"github.com/ls-1801/VMLauncher/pkg/nodeconfig"
	"github.com/ls-1801/VMLauncher/pkg/topology"
)

// Plan validates topo and allocates an identity for every node, the
// coordinator first and then the workers in declaration order. The
// returned specs are in start order with destinations <dir>/<node>.yaml.
//
// Allocation stops at the first node the pool cannot satisfy; identities
// already handed out are dropped with the pool.
func Plan(topo *topology.Topology, alloc *netalloc.Allocator, dir string) ([]nodeconfig.NodeSpec, error) {
	if topo == nil {
		return nil, ErrInvalidTopology(errors.New("no topology"))
	}
	if err := topo.Validate(); err != nil {
		return nil, ErrInvalidTopology(err)
	}
	if alloc == nil {
		alloc = netalloc.NewAllocator()
	}

	reserved, err := topo.ReservedAddrs()
	if err != nil {
		return nil, ErrInvalidTopology(err)
	}
	pool, err := netalloc.NewAddressPool(topo.CIDR, netalloc.WithReserved(reserved...))
	if err != nil {
		return nil, ErrInvalidTopology(err)
	}

	allocFailed := func(name string, err error) error {
		return ErrAddressSpaceExhausted(topo.CIDR, topo.NodeCount(),
			fmt.Errorf("allocate %s: %w", name, err)).
			WithContext("capacity", pool.Capacity())
	}

	coordID, err := alloc.Allocate(pool)
	if err != nil {
		return nil, allocFailed(topo.Coordinator.Name, err)
	}
	coord, err := nodeSpec(topo, topo.Coordinator, nodeconfig.RoleCoordinator, coordID, netalloc.NodeIdentity{}, dir)
	if err != nil {
		return nil, err
	}

	specs := make([]nodeconfig.NodeSpec, 0, topo.NodeCount())
	specs = append(specs, coord)

	for _, w := range topo.Workers {
		id, err := alloc.AllocateChild(pool, coordID)
		if err != nil {
			return nil, allocFailed(w.Name, err)
		}
		spec, err := nodeSpec(topo, w, nodeconfig.RoleWorker, id, coordID, dir)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// ConfigPath returns where a node's rendered config lives under dir
func ConfigPath(dir, node string) string {
	return filepath.Join(dir, node+".yaml")
}

func nodeSpec(topo *topology.Topology, decl topology.NodeDecl, role nodeconfig.Role, id, parent netalloc.NodeIdentity, dir string) (nodeconfig.NodeSpec, error) {
	sources, err := decl.PhysicalSources()
	if err != nil {
		return nodeconfig.NodeSpec{}, ErrInvalidTopology(fmt.Errorf("node %q: %w", decl.Name, err))
	}
	return nodeconfig.NodeSpec{
		Name:        decl.Name,
		Role:        role,
		Identity:    id,
		Parent:      parent,
		LogLevel:    topo.EffectiveLogLevel(decl),
		Sources:     sources,
		Extra:       decl.ExtraItems(),
		Destination: ConfigPath(dir, decl.Name),
	}, nil
}
