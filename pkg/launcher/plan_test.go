package launcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ls-1801/VMLauncher/pkg/netalloc"
	"github.com/ls-1801/VMLauncher/pkg/nodeconfig"
	"github.com/ls-1801/VMLauncher/pkg/topology"
)

func TestPlan(t *testing.T) {
	topo, err := topology.Parse([]byte(`
cidr: 10.0.0.0/29
reserved: [10.0.0.1]
logLevel: LOG_WARNING
coordinator:
  name: coordinator
workers:
  - name: worker-1
    logLevel: LOG_DEBUG
    extra: {numWorkerThreads: 2}
    queryProcessing: {bufferSize: 4096}
  - name: worker-2
`))
	require.NoError(t, err)

	specs, err := Plan(topo, netalloc.NewAllocator(), "/run/fleet")
	require.NoError(t, err)
	require.Len(t, specs, 3)

	coord := specs[0]
	assert.Equal(t, "coordinator", coord.Name)
	assert.Equal(t, nodeconfig.RoleCoordinator, coord.Role)
	assert.Equal(t, "10.0.0.2", coord.Identity.IP().String(), "reserved address skipped")
	assert.False(t, coord.HasParent())
	assert.Equal(t, "LOG_WARNING", coord.LogLevel)
	assert.Equal(t, "/run/fleet/coordinator.yaml", coord.Destination)

	w1 := specs[1]
	assert.Equal(t, nodeconfig.RoleWorker, w1.Role)
	assert.Equal(t, "10.0.0.3", w1.Identity.IP().String())
	assert.True(t, w1.HasParent())
	assert.Equal(t, coord.Identity, w1.Parent)
	assert.Equal(t, "LOG_DEBUG", w1.LogLevel)
	assert.Equal(t, []nodeconfig.ConfigItem{
		{Key: "numWorkerThreads", Value: "2"},
		{Key: "bufferSizeInBytes", Value: "4096"},
	}, w1.Extra)

	assert.Equal(t, "10.0.0.4", specs[2].Identity.IP().String())
	assert.Equal(t, netalloc.WorkerID(2), specs[2].Identity.WorkerID())

	assert.True(t, w1.Identity.MAC().IsLocallyAdministered())
	assert.NotEqual(t, coord.Identity.MAC(), w1.Identity.MAC())
}

func TestPlan_Errors(t *testing.T) {
	_, err := Plan(nil, nil, "")
	assert.True(t, IsErrorCode(err, ErrorCodeInvalidTopology))

	topo := &topology.Topology{CIDR: "10.0.0.0/24"}
	_, err = Plan(topo, nil, "")
	assert.True(t, IsErrorCode(err, ErrorCodeInvalidTopology))

	topo = &topology.Topology{
		CIDR:        "10.0.0.0/30",
		Coordinator: topology.NodeDecl{Name: "coordinator"},
		Workers:     []topology.NodeDecl{{Name: "worker-1"}, {Name: "worker-2"}},
	}
	_, err = Plan(topo, nil, "")
	require.Error(t, err)
	assert.True(t, IsErrorCode(err, ErrorCodeAddressSpaceExhausted))
	assert.ErrorIs(t, err, netalloc.ErrAddressSpaceExhausted)
	assert.Equal(t, 2, err.(*LauncherError).Context["capacity"])
}

func TestConfigPath(t *testing.T) {
	assert.Equal(t, "out/worker-1.yaml", ConfigPath("out", "worker-1"))
}
