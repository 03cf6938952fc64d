package procmgr

import (
	"time"
)

// MetricsCollector defines the interface for collecting node process metrics
type MetricsCollector interface {
	// ProcessStateTransition records a state transition for a process
	ProcessStateTransition(id ProcessID, fromState, toState ProcessState)

	// ProcessLaunchDuration records how long the launcher took to spawn
	ProcessLaunchDuration(id ProcessID, duration time.Duration, err error)

	// ProcessReadyDuration records how long a process took to become ready
	ProcessReadyDuration(id ProcessID, duration time.Duration, err error)

	// ProcessTerminationDuration records the duration of termination
	ProcessTerminationDuration(id ProcessID, duration time.Duration)

	// ProcessForcedKill records an escalation to kill
	ProcessForcedKill(id ProcessID)

	// ProcessError records an error for a process
	ProcessError(id ProcessID, errorType string)
}

// noopMetricsCollector is a no-op implementation of MetricsCollector
type noopMetricsCollector struct{}

func (n *noopMetricsCollector) ProcessStateTransition(id ProcessID, fromState, toState ProcessState) {}
func (n *noopMetricsCollector) ProcessLaunchDuration(id ProcessID, duration time.Duration, err error) {
}
func (n *noopMetricsCollector) ProcessReadyDuration(id ProcessID, duration time.Duration, err error) {
}
func (n *noopMetricsCollector) ProcessTerminationDuration(id ProcessID, duration time.Duration) {}
func (n *noopMetricsCollector) ProcessForcedKill(id ProcessID)                                  {}
func (n *noopMetricsCollector) ProcessError(id ProcessID, errorType string)                     {}

// NewNoopMetricsCollector creates a no-op metrics collector
func NewNoopMetricsCollector() MetricsCollector {
	return &noopMetricsCollector{}
}
