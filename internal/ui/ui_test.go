package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ls-1801/VMLauncher/pkg/launcher"
	"github.com/ls-1801/VMLauncher/pkg/netalloc"
	"github.com/ls-1801/VMLauncher/pkg/nodeconfig"
	"github.com/ls-1801/VMLauncher/pkg/procmgr"
)

func TestUI_PlainOutput(t *testing.T) {
	var buf bytes.Buffer
	u := NewUIWithWriter(&buf)

	u.Success("started")
	u.Error("failed")
	u.Warning("careful")
	u.KeyValue("Network", "10.0.0.0/24")
	u.Suggestion("first\nsecond")
	u.Suggestion("")

	out := buf.String()
	assert.NotContains(t, out, "\x1b[", "no escape codes on a non-terminal writer")
	assert.Contains(t, out, "✓ started\n")
	assert.Contains(t, out, "✗ failed\n")
	assert.Contains(t, out, "⚠ careful\n")
	assert.Contains(t, out, "  Network: 10.0.0.0/24\n")
	assert.Contains(t, out, "    first\n    second\n")
}

func TestTable_Render(t *testing.T) {
	var buf bytes.Buffer
	u := NewUIWithWriter(&buf)

	table := u.NewTable("NODE", "IP")
	table.AddRow("coordinator", "10.0.0.1")
	table.AddRow("w1")
	table.Render()

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "NODE        | IP      ", lines[0])
	assert.Equal(t, "coordinator │ 10.0.0.1", lines[2])
	assert.Equal(t, "w1          │         ", lines[3])
}

func TestTable_NoHeaders(t *testing.T) {
	var buf bytes.Buffer
	NewUIWithWriter(&buf).NewTable().Render()
	assert.Empty(t, buf.String())
}

func identities(t *testing.T) (netalloc.NodeIdentity, netalloc.NodeIdentity) {
	t.Helper()
	pool, err := netalloc.NewAddressPool("10.0.0.0/24")
	require.NoError(t, err)
	alloc := netalloc.NewAllocator()
	coord, err := alloc.Allocate(pool)
	require.NoError(t, err)
	worker, err := alloc.AllocateChild(pool, coord)
	require.NoError(t, err)
	return coord, worker
}

func TestRenderReport_Success(t *testing.T) {
	coord, worker := identities(t)
	start := time.Now()

	var buf bytes.Buffer
	NewUIWithWriter(&buf).RenderReport(&launcher.Report{
		RunID:      "run-1",
		CIDR:       "10.0.0.0/24",
		StartedAt:  start,
		FinishedAt: start.Add(1500 * time.Millisecond),
		Nodes: []launcher.NodeReport{
			{Name: "coordinator", Role: "coordinator", Identity: coord, State: procmgr.ProcessStateStopped, PID: 100, Started: true, Exited: true},
			{Name: "worker-1", Role: "worker", Identity: worker, State: procmgr.ProcessStateStopped, PID: 101, Started: true, Exited: true, ExitCode: 0},
		},
		ShutdownRequested: true,
		Success:           true,
	})

	out := buf.String()
	assert.Contains(t, out, "Fleet run-1")
	assert.Contains(t, out, "1.5s")
	assert.Contains(t, out, "10.0.0.1")
	assert.Contains(t, out, "10.0.0.2")
	assert.Contains(t, out, worker.MAC().String())
	assert.Contains(t, out, "✓ All 2 nodes stopped cleanly")
	assert.NotContains(t, out, "✗")
}

func TestRenderReport_Failures(t *testing.T) {
	coord, worker := identities(t)
	runErr := launcher.ErrCoordinatorExited("coordinator", 3, errors.New("exit status 3"))
	killErr := launcher.ErrTerminationFailed("worker-1", 101, procmgr.ErrKillTimeout)

	var buf bytes.Buffer
	NewUIWithWriter(&buf).RenderReport(&launcher.Report{
		RunID: "run-2",
		Nodes: []launcher.NodeReport{
			{Name: "coordinator", Role: "coordinator", Identity: coord, State: procmgr.ProcessStateFailed, Started: true, Exited: true, ExitCode: 3, Errors: []error{runErr}},
			{Name: "worker-1", Role: "worker", Identity: worker, State: procmgr.ProcessStateFailed, Started: true, ForcedKill: true, Errors: []error{killErr}},
		},
		RunError: runErr,
	})

	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, "[COORDINATOR_EXITED]"), "run error is printed once")
	assert.Contains(t, out, "[TERMINATION_FAILED]")
	assert.Contains(t, out, "Failed (killed)")
	assert.Contains(t, out, "sudo kill -9 -- -101")
	assert.Contains(t, out, "✗ Fleet run failed")
}

func TestRenderReport_NotStarted(t *testing.T) {
	coord, worker := identities(t)

	var buf bytes.Buffer
	NewUIWithWriter(&buf).RenderReport(&launcher.Report{
		RunID: "run-3",
		Nodes: []launcher.NodeReport{
			{Name: "coordinator", Role: "coordinator", Identity: coord, State: procmgr.ProcessStateStopped, Started: true, Exited: true},
			{Name: "worker-1", Role: "worker", Identity: worker, State: procmgr.ProcessStateFailed, Errors: []error{errors.New("boom")}},
			{Name: "worker-2", Role: "worker", State: procmgr.ProcessStateStopped},
		},
		ShutdownRequested: true,
	})

	out := buf.String()
	assert.Contains(t, out, "not started")
	assert.Contains(t, out, "✗ boom")
	assert.Contains(t, out, "1 of 3 nodes did not stop cleanly")
}

func TestRenderPlan(t *testing.T) {
	coord, worker := identities(t)

	var buf bytes.Buffer
	NewUIWithWriter(&buf).RenderPlan("10.0.0.0/24", []nodeconfig.NodeSpec{
		{Name: "coordinator", Role: nodeconfig.RoleCoordinator, Identity: coord, Destination: "/tmp/coordinator.yaml"},
		{Name: "worker-1", Role: nodeconfig.RoleWorker, Identity: worker, Parent: coord, Destination: "/tmp/worker-1.yaml"},
	})

	out := buf.String()
	assert.Contains(t, out, "  Nodes: 2")
	assert.Contains(t, out, "/tmp/worker-1.yaml")

	lines := strings.Split(out, "\n")
	var workerLine string
	for _, l := range lines {
		if strings.HasPrefix(l, "worker-1") {
			workerLine = l
		}
	}
	require.NotEmpty(t, workerLine)
	assert.Contains(t, workerLine, "worker")
	assert.Contains(t, workerLine, " │ 0 ")
}
