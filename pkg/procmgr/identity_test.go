package procmgr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ls-1801/VMLauncher/pkg/netalloc"
)

// allocateWorker returns the identity of the first worker of 10.0.0.0/24
func allocateWorker(t *testing.T) netalloc.NodeIdentity {
	t.Helper()
	pool, err := netalloc.NewAddressPool("10.0.0.0/24")
	require.NoError(t, err)
	alloc := netalloc.NewAllocator()

	coord, err := alloc.Allocate(pool)
	require.NoError(t, err)
	worker, err := alloc.AllocateChild(pool, coord)
	require.NoError(t, err)
	return worker
}

func TestLaunchRequest_NodeEnv(t *testing.T) {
	id := allocateWorker(t)
	req := LaunchRequest{Name: "worker-1", Role: "worker", ConfigPath: "/run/w.yaml", Identity: id}

	assert.Equal(t, []string{
		"VMLAUNCHER_NODE_NAME=worker-1",
		"VMLAUNCHER_NODE_ROLE=worker",
		"VMLAUNCHER_CONFIG_PATH=/run/w.yaml",
		"VMLAUNCHER_NODE_IP=10.0.0.2",
		"VMLAUNCHER_NODE_MAC=" + id.MAC().String(),
		"VMLAUNCHER_WORKER_ID=1",
		"VMLAUNCHER_PARENT_ID=0",
	}, req.NodeEnv())

	bare := LaunchRequest{Name: "worker-1", Role: "worker"}
	assert.Equal(t, []string{
		"VMLAUNCHER_NODE_NAME=worker-1",
		"VMLAUNCHER_NODE_ROLE=worker",
	}, bare.NodeEnv())
}

func TestLaunchRequest_ExpandArgs(t *testing.T) {
	id := allocateWorker(t)
	req := LaunchRequest{Name: "worker-1", Role: "worker", ConfigPath: "/run/w.yaml", Identity: id}

	args := []string{
		"-device", "virtio-net-pci,netdev=n0,mac={mac}",
		"-append", "ip={ip} id={worker_id} cfg={config_path}",
		"{unknown}",
	}
	assert.Equal(t, []string{
		"-device", "virtio-net-pci,netdev=n0,mac=" + id.MAC().String(),
		"-append", "ip=10.0.0.2 id=1 cfg=/run/w.yaml",
		"{unknown}",
	}, req.ExpandArgs(args))

	assert.Equal(t, []string{"mac={mac}"}, LaunchRequest{}.ExpandArgs([]string{"mac={mac}"}))
}
