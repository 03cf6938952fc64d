package ui

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ls-1801/VMLauncher/pkg/launcher"
	"github.com/ls-1801/VMLauncher/pkg/netalloc"
	"github.com/ls-1801/VMLauncher/pkg/nodeconfig"
	"github.com/ls-1801/VMLauncher/pkg/procmgr"
)

// RenderPlan prints the identities a topology would receive
func (ui *UI) RenderPlan(cidr string, specs []nodeconfig.NodeSpec) {
	ui.Header("Fleet plan")
	ui.KeyValue("Network", cidr)
	ui.KeyValue("Nodes", strconv.Itoa(len(specs)))
	ui.Println("")

	table := ui.NewTable("NODE", "ROLE", "IP", "MAC", "ID", "PARENT", "CONFIG")
	for _, spec := range specs {
		parent := "-"
		if spec.HasParent() {
			parent = spec.Parent.WorkerID().String()
		}
		table.AddRow(
			spec.Name,
			spec.Role.String(),
			spec.Identity.IP().String(),
			spec.Identity.MAC().String(),
			spec.Identity.WorkerID().String(),
			parent,
			spec.Destination,
		)
	}
	table.Render()
}

// RenderReport prints the outcome of a run: one row per node, then every
// error with its suggestion, then a verdict
func (ui *UI) RenderReport(r *launcher.Report) {
	ui.Header("Fleet " + r.RunID)
	if r.CIDR != "" {
		ui.KeyValue("Network", r.CIDR)
	}
	ui.KeyValue("Duration", r.Duration().Round(time.Millisecond).String())
	ui.Println("")

	table := ui.NewTable("NODE", "ROLE", "IP", "MAC", "ID", "PARENT", "PID", "STATE", "EXIT")
	for _, n := range r.Nodes {
		table.AddRow(
			n.Name,
			n.Role,
			addr(n.Identity),
			n.Identity.MAC().String(),
			n.Identity.WorkerID().String(),
			parentOf(n.Identity),
			pid(n),
			state(n),
			exitCode(n),
		)
	}
	table.Render()

	if errs := reportErrors(r); len(errs) > 0 {
		ui.Println("")
		for _, err := range errs {
			ui.Failure(err)
		}
	}

	ui.Println("")
	switch {
	case r.Success:
		ui.Success(fmt.Sprintf("All %d nodes stopped cleanly", len(r.Nodes)))
	case r.ShutdownRequested:
		ui.Error(fmt.Sprintf("%d of %d nodes did not stop cleanly", len(r.FailedNodes()), len(r.Nodes)))
	default:
		ui.Error("Fleet run failed")
	}
}

// Failure prints err and, for launcher errors, its suggestion
func (ui *UI) Failure(err error) {
	ui.Error(errorLine(err))
	ui.Suggestion(launcher.GetSuggestion(err))
}

func reportErrors(r *launcher.Report) []error {
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
	return errs
}

// errorLine keeps the headline of a launcher error; the suggestion is
// printed separately
func errorLine(err error) string {
	var lerr *launcher.LauncherError
	if !errors.As(err, &lerr) {
		return err.Error()
	}
	msg := fmt.Sprintf("[%s] %s", lerr.Code, lerr.Message)
	if lerr.Cause != nil {
		msg += ": " + lerr.Cause.Error()
	}
	return msg
}

func addr(id netalloc.NodeIdentity) string {
	if id.IsZero() {
		return "-"
	}
	return id.IP().String()
}

func parentOf(id netalloc.NodeIdentity) string {
	if p, ok := id.Parent(); ok {
		return p.String()
	}
	return "-"
}

func pid(n launcher.NodeReport) string {
	if n.PID == 0 {
		return "-"
	}
	return strconv.Itoa(n.PID)
}

func state(n launcher.NodeReport) string {
	if !n.Started && n.State == procmgr.ProcessStateStopped {
		return "not started"
	}
	s := n.State.String()
	if n.ForcedKill {
		s += " (killed)"
	}
	return s
}

func exitCode(n launcher.NodeReport) string {
	if !n.Exited {
		return "-"
	}
	return strconv.Itoa(n.ExitCode)
}
