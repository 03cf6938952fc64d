package procmgr

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetricsCollector implements MetricsCollector using Prometheus metrics
type PrometheusMetricsCollector struct {
	stateTransitions *prometheus.CounterVec
	processes        *prometheus.GaugeVec

	launchDuration      *prometheus.HistogramVec
	readyDuration       *prometheus.HistogramVec
	terminationDuration *prometheus.HistogramVec

	forcedKills *prometheus.CounterVec
	errors      *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewPrometheusMetricsCollector creates a collector with its own registry
func NewPrometheusMetricsCollector(namespace string) *PrometheusMetricsCollector {
	if namespace == "" {
		namespace = "vmlauncher"
	}

	pmc := &PrometheusMetricsCollector{
		registry: prometheus.NewRegistry(),
	}

	pmc.stateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "process_state_transitions_total",
			Help:      "Total number of node process state transitions",
		},
		[]string{"process_id", "from_state", "to_state"},
	)

	pmc.processes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "processes",
			Help:      "Number of node processes per lifecycle state",
		},
		[]string{"state"},
	)

	pmc.launchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "process_launch_duration_seconds",
			Help:      "Time taken to spawn a node process",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"process_id", "status"},
	)

	pmc.readyDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "process_ready_duration_seconds",
			Help:      "Time from spawn until a node process was observed ready",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"process_id", "status"},
	)

	pmc.terminationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "process_termination_duration_seconds",
			Help:      "Duration of node process termination",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"process_id"},
	)

	pmc.forcedKills = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "process_forced_kills_total",
			Help:      "Total number of terminations escalated to kill",
		},
		[]string{"process_id"},
	)

	pmc.errors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "process_errors_total",
			Help:      "Total number of node process errors",
		},
		[]string{"process_id", "error_type"},
	)

	pmc.registry.MustRegister(
		pmc.stateTransitions,
		pmc.processes,
		pmc.launchDuration,
		pmc.readyDuration,
		pmc.terminationDuration,
		pmc.forcedKills,
		pmc.errors,
	)

	return pmc
}

// ProcessStateTransition records a state transition and moves the process
// between the per-state gauges
func (pmc *PrometheusMetricsCollector) ProcessStateTransition(id ProcessID, fromState, toState ProcessState) {
	pmc.stateTransitions.WithLabelValues(
		string(id),
		fromState.String(),
		toState.String(),
	).Inc()

	if fromState != ProcessStatePending {
		pmc.processes.WithLabelValues(fromState.String()).Dec()
	}
	pmc.processes.WithLabelValues(toState.String()).Inc()
}

// ProcessLaunchDuration records how long a spawn took
func (pmc *PrometheusMetricsCollector) ProcessLaunchDuration(id ProcessID, duration time.Duration, err error) {
	pmc.launchDuration.WithLabelValues(string(id), status(err)).Observe(duration.Seconds())
}

// ProcessReadyDuration records how long a node took to become ready
func (pmc *PrometheusMetricsCollector) ProcessReadyDuration(id ProcessID, duration time.Duration, err error) {
	pmc.readyDuration.WithLabelValues(string(id), status(err)).Observe(duration.Seconds())
}

// ProcessTerminationDuration records the duration of a termination
func (pmc *PrometheusMetricsCollector) ProcessTerminationDuration(id ProcessID, duration time.Duration) {
	pmc.terminationDuration.WithLabelValues(string(id)).Observe(duration.Seconds())
}

// ProcessForcedKill records an escalation to kill
func (pmc *PrometheusMetricsCollector) ProcessForcedKill(id ProcessID) {
	pmc.forcedKills.WithLabelValues(string(id)).Inc()
}

// ProcessError records a process error
func (pmc *PrometheusMetricsCollector) ProcessError(id ProcessID, errorType string) {
	pmc.errors.WithLabelValues(string(id), errorType).Inc()
}

// Registry returns the Prometheus registry for HTTP handler setup
func (pmc *PrometheusMetricsCollector) Registry() *prometheus.Registry {
	return pmc.registry
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// Compile-time interface compliance check
var _ MetricsCollector = (*PrometheusMetricsCollector)(nil)
