package launcher

import (
	"errors"
	"time"

	"github.com/ls-1801/VMLauncher/pkg/netalloc"
	"github.com/ls-1801/VMLauncher/pkg/procmgr"
)

// Report is the outcome of one Run
type Report struct {
	RunID      string
	CIDR       string
	StartedAt  time.Time
	FinishedAt time.Time

	Nodes []NodeReport

	// ShutdownRequested is true when the run ended because its context was
	// cancelled rather than because of a failure
	ShutdownRequested bool

	// Success is true only if the shutdown was requested, nothing failed
	// and every node reached Stopped
	Success bool

	// RunError is the run fatal error, if any
	RunError error
}

// NodeReport is the final state of one node
type NodeReport struct {
	Name       string
	Role       string
	Identity   netalloc.NodeIdentity
	ConfigPath string

	State      procmgr.ProcessState
	PID        int
	Started    bool
	ExitCode   int
	Exited     bool
	ForcedKill bool

	Errors []error
}

// Failed reports whether the node ended in a bad state
func (n NodeReport) Failed() bool {
	return len(n.Errors) > 0 || n.State != procmgr.ProcessStateStopped
}

// Err joins the run error and every node error, nil if there were none
func (r *Report) Err() error {
	var errs []error
	if r.RunError != nil {
		errs = append(errs, r.RunError)
	}
	for _, n := range r.Nodes {
		for _, err := range n.Errors {
			if err != r.RunError {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// FailedNodes returns the nodes that did not stop cleanly
func (r *Report) FailedNodes() []NodeReport {
	var out []NodeReport
	for _, n := range r.Nodes {
		if n.Failed() {
			out = append(out, n)
		}
	}
	return out
}

// Duration returns how long the run took
func (r *Report) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

func buildReport(r *Report, fleet *Fleet) {
	if fleet == nil {
		return
	}
	for _, m := range fleet.Members() {
		status := m.Handle.Status()
		n := NodeReport{
			Name:       m.Name,
			Role:       m.Role.String(),
			Identity:   m.Identity,
			ConfigPath: m.ConfigPath,
			State:      status.State,
			PID:        status.PID,
			Started:    !status.StartedAt.IsZero(),
			ExitCode:   status.ExitCode,
			Exited:     status.Exited,
			ForcedKill: status.ForcedKill,
			Errors:     fleet.Errors(m.Name),
		}
		r.Nodes = append(r.Nodes, n)
	}

	r.Success = r.ShutdownRequested && r.RunError == nil
	for _, n := range r.Nodes {
		if n.Failed() {
			r.Success = false
		}
	}
}
