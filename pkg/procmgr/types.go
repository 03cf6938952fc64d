package procmgr

import (
	"context"
	"time"

	"github.com/ls-1801/VMLauncher/pkg/netalloc"
)

// ProcessState represents the lifecycle state of a managed process
type ProcessState int

const (
	// ProcessStatePending - handle created, nothing spawned yet
	ProcessStatePending ProcessState = iota
	// ProcessStateStarting - spawn requested, readiness not yet observed
	ProcessStateStarting
	// ProcessStateRunning - process is up and ready
	ProcessStateRunning
	// ProcessStateStopping - termination requested, waiting for exit
	ProcessStateStopping
	// ProcessStateStopped - process exited after a requested stop
	ProcessStateStopped
	// ProcessStateFailed - launch failed, process exited on its own, or
	// could not be terminated
	ProcessStateFailed
)

// String returns the string representation of a ProcessState
func (ps ProcessState) String() string {
	switch ps {
	case ProcessStatePending:
		return "Pending"
	case ProcessStateStarting:
		return "Starting"
	case ProcessStateRunning:
		return "Running"
	case ProcessStateStopping:
		return "Stopping"
	case ProcessStateStopped:
		return "Stopped"
	case ProcessStateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// IsTerminal returns true for states a handle never leaves
func (ps ProcessState) IsTerminal() bool {
	return ps == ProcessStateStopped || ps == ProcessStateFailed
}

// ProcessID uniquely identifies a managed process
type ProcessID string

// LaunchRequest describes what to spawn for one node
type LaunchRequest struct {
	// Node name, used for logging and the process id
	Name string

	// "coordinator" or "worker"
	Role string

	// argv; Command[0] is resolved on PATH
	Command []string

	// Rendered configuration handed to the process
	ConfigPath string

	// Network identity allocated to the node. A launcher that boots a VM
	// attaches the guest NIC with this MAC and address.
	Identity netalloc.NodeIdentity

	// Extra environment in KEY=VALUE form
	Env []string
}

// ProcessStatus tracks runtime state of a process
type ProcessStatus struct {
	State     ProcessState
	PID       int
	StartedAt time.Time
	ExitedAt  time.Time

	// ExitCode is only meaningful once Exited is true; -1 means the
	// process was terminated by a signal.
	Exited   bool
	ExitCode int

	ForcedKill bool
	LastError  error
}

// Process is a running node as seen by its Handle. Implementations must
// allow Interrupt and Kill to be called concurrently with Wait.
type Process interface {
	// PID returns the operating system process id (or a fake one)
	PID() int

	// Interrupt asks the whole process group to shut down gracefully
	Interrupt() error

	// Kill forcefully terminates the whole process group
	Kill() error

	// Wait blocks until the process exits and returns its exit code.
	// It is called exactly once.
	Wait() (exitCode int, err error)

	// Close releases anything held on behalf of the process
	Close() error
}

// Launcher spawns node processes. Privilege elevation, remote execution or
// test fakes are all just Launchers.
type Launcher interface {
	Launch(ctx context.Context, req LaunchRequest) (Process, error)
}

// LauncherFunc adapts a function to the Launcher interface
type LauncherFunc func(ctx context.Context, req LaunchRequest) (Process, error)

// Launch calls f
func (f LauncherFunc) Launch(ctx context.Context, req LaunchRequest) (Process, error) {
	return f(ctx, req)
}
