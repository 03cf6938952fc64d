package launcher

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ls-1801/VMLauncher/pkg/nodeconfig"
)

func names(members []*Member) []string {
	out := make([]string, 0, len(members))
	for _, m := range members {
		out = append(out, m.Name)
	}
	return out
}

func TestFleet_ShutdownOrder(t *testing.T) {
	f := NewFleet()
	require.NoError(t, f.Add(&Member{Name: "coordinator", Role: nodeconfig.RoleCoordinator}))
	require.NoError(t, f.Add(&Member{Name: "worker-1", Role: nodeconfig.RoleWorker, Parent: "coordinator"}))
	require.NoError(t, f.Add(&Member{Name: "worker-2", Role: nodeconfig.RoleWorker, Parent: "coordinator"}))
	// deeper trees are ordered too
	require.NoError(t, f.Add(&Member{Name: "leaf", Role: nodeconfig.RoleWorker, Parent: "worker-1"}))

	order := f.ShutdownOrder()
	require.Len(t, order, 3)
	assert.Equal(t, []string{"leaf"}, names(order[0]))
	assert.Equal(t, []string{"worker-1", "worker-2"}, names(order[1]))
	assert.Equal(t, []string{"coordinator"}, names(order[2]))

	assert.Equal(t, "coordinator", f.Coordinator().Name)
	assert.Equal(t, []string{"worker-1", "worker-2", "leaf"}, names(f.Workers()))
	assert.Equal(t, 4, f.Len())
}

func TestFleet_Add(t *testing.T) {
	f := NewFleet()
	assert.Nil(t, f.Coordinator())
	assert.Empty(t, f.ShutdownOrder())

	require.NoError(t, f.Add(&Member{Name: "coordinator", Role: nodeconfig.RoleCoordinator}))
	assert.Error(t, f.Add(&Member{Name: "coordinator"}), "duplicate name")
	assert.Error(t, f.Add(&Member{Name: "worker-1", Parent: "missing"}), "unknown parent")

	m, ok := f.Get("coordinator")
	require.True(t, ok)
	assert.Equal(t, nodeconfig.RoleCoordinator, m.Role)
	_, ok = f.Get("worker-1")
	assert.False(t, ok)

	// snapshots are copies
	members := f.Members()
	members[0] = nil
	assert.NotNil(t, f.Members()[0])
}

func TestFleet_Errors(t *testing.T) {
	f := NewFleet()
	f.RecordError("worker-1", nil)
	assert.Empty(t, f.Errors("worker-1"))

	first := errors.New("first")
	f.RecordError("worker-1", first)
	f.RecordError("worker-1", errors.New("second"))

	errs := f.Errors("worker-1")
	require.Len(t, errs, 2)
	assert.Equal(t, first, errs[0])
	assert.Empty(t, f.Errors("worker-2"))
}
