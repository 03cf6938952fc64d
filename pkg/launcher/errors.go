package launcher

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// LauncherError represents an error with additional context for troubleshooting.
type LauncherError struct {
	// Code identifies the error type
	Code ErrorCode

	// Message is the primary error message
	Message string

	// Context provides additional details
	Context map[string]interface{}

	// Cause is the underlying error (if any)
	Cause error

	// Suggestion provides actionable guidance for resolving the error
	Suggestion string
}

// ErrorCode identifies categories of errors
type ErrorCode string

const (
	// Input errors, nothing was started
	ErrorCodeInvalidTopology       ErrorCode = "INVALID_TOPOLOGY"
	ErrorCodeAddressSpaceExhausted ErrorCode = "ADDRESS_SPACE_EXHAUSTED"

	// Configuration rendering errors
	ErrorCodeTemplateError ErrorCode = "TEMPLATE_ERROR"
	ErrorCodeRenderIOError ErrorCode = "RENDER_IO_ERROR"

	// Process lifecycle errors
	ErrorCodeLaunchFailed      ErrorCode = "LAUNCH_FAILED"
	ErrorCodeStartupTimeout    ErrorCode = "STARTUP_TIMEOUT"
	ErrorCodeCoordinatorExited ErrorCode = "COORDINATOR_EXITED"
	ErrorCodeTerminationFailed ErrorCode = "TERMINATION_FAILED"
	ErrorCodeNodeExited        ErrorCode = "NODE_EXITED"
)

// Error implements the error interface
func (e *LauncherError) Error() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		contextParts := make([]string, 0, len(keys))
		for _, k := range keys {
			contextParts = append(contextParts, fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		parts = append(parts, fmt.Sprintf("Context: %s", strings.Join(contextParts, ", ")))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("Cause: %v", e.Cause))
	}

	if e.Suggestion != "" {
		parts = append(parts, fmt.Sprintf("Suggestion: %s", e.Suggestion))
	}

	return strings.Join(parts, "; ")
}

// Unwrap returns the underlying error for errors.Is/As compatibility
func (e *LauncherError) Unwrap() error {
	return e.Cause
}

// NewError creates a new LauncherError with the given code and message
func NewError(code ErrorCode, message string) *LauncherError {
	return &LauncherError{
		Code:    code,
		Message: message,
		Context: make(map[string]interface{}),
	}
}

// WithContext adds context information to the error
func (e *LauncherError) WithContext(key string, value interface{}) *LauncherError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithCause adds the underlying cause to the error
func (e *LauncherError) WithCause(cause error) *LauncherError {
	e.Cause = cause
	return e
}

// WithSuggestion adds an actionable suggestion to the error
func (e *LauncherError) WithSuggestion(suggestion string) *LauncherError {
	e.Suggestion = suggestion
	return e
}

// Common error constructors with helpful suggestions

// ErrInvalidTopology creates an error for a topology that failed validation
func ErrInvalidTopology(cause error) *LauncherError {
	return NewError(ErrorCodeInvalidTopology, "Topology is invalid").
		WithCause(cause).
		WithSuggestion(
			"Check the topology file:\n" +
				"  - cidr is an IPv4 block, e.g. 10.0.0.0/24\n" +
				"  - coordinator.name is set\n" +
				"  - worker names are unique and every parent is the coordinator\n" +
				"Run 'vmlauncher validate <file>' to check it without launching")
}

// ErrAddressSpaceExhausted creates an error for a pool that ran out of addresses
func ErrAddressSpaceExhausted(cidr string, nodes int, cause error) *LauncherError {
	return NewError(ErrorCodeAddressSpaceExhausted,
		fmt.Sprintf("Cannot allocate %d nodes from %s", nodes, cidr)).
		WithContext("cidr", cidr).
		WithContext("nodes", nodes).
		WithCause(cause).
		WithSuggestion(
			"Use a larger block (a /24 holds 254 nodes) or remove reserved addresses")
}

// ErrTemplate creates an error for a node whose config could not be rendered
func ErrTemplate(node string, cause error) *LauncherError {
	return NewError(ErrorCodeTemplateError,
		fmt.Sprintf("Cannot render configuration for '%s'", node)).
		WithContext("node", node).
		WithCause(cause).
		WithSuggestion(
			"Custom templates may only reference: LogLevel, LocalWorkerIP, CoordinatorIP,\n" +
				"NumberOfSlots, Extra, WorkerID, ParentID, HasParent, DataPort, RPCPort,\n" +
				"CoordinatorPort, Sources. CoordinatorIP and ParentID are absent for the\n" +
				"coordinator; guard them with {{ if .HasParent }}")
}

// ErrRenderIO creates an error for a config that could not be written
func ErrRenderIO(node, path string, cause error) *LauncherError {
	return NewError(ErrorCodeRenderIOError,
		fmt.Sprintf("Cannot write configuration for '%s'", node)).
		WithContext("node", node).
		WithContext("path", path).
		WithCause(cause).
		WithSuggestion(fmt.Sprintf(
			"Verify the config directory is writable:\n"+
				"  mkdir -p %s && touch %s",
			dirOf(path), path))
}

// ErrLaunchFailed creates an error for a node that could not be spawned
func ErrLaunchFailed(node string, cause error) *LauncherError {
	return NewError(ErrorCodeLaunchFailed,
		fmt.Sprintf("Failed to launch '%s'", node)).
		WithContext("node", node).
		WithCause(cause).
		WithSuggestion(
			"Common causes:\n" +
				"  1. Node binary not on PATH (see launch.coordinator_command / launch.worker_command)\n" +
				"  2. sudo requires a password (launch.sudo needs passwordless sudo)\n" +
				"  3. Node exited during startup, check its output in the log")
}

// ErrStartupTimeout creates an error for a node that never became ready
func ErrStartupTimeout(node string, timeout time.Duration) *LauncherError {
	return NewError(ErrorCodeStartupTimeout,
		fmt.Sprintf("'%s' did not become ready within %s", node, timeout)).
		WithContext("node", node).
		WithContext("timeout", timeout.String()).
		WithSuggestion(
			"Increase run.ready_timeout / run.worker_ready_timeout, or switch\n" +
				"readiness.mode to 'settle' if the node does not open its RPC port")
}

// ErrCoordinatorExited creates an error for a coordinator that went away
func ErrCoordinatorExited(node string, exitCode int, cause error) *LauncherError {
	return NewError(ErrorCodeCoordinatorExited,
		fmt.Sprintf("Coordinator '%s' exited", node)).
		WithContext("node", node).
		WithContext("exit_code", exitCode).
		WithCause(cause).
		WithSuggestion("Check the coordinator output in the log; the fleet was torn down")
}

// ErrNodeExited creates an error for a worker that exited on its own
func ErrNodeExited(node string, exitCode int, cause error) *LauncherError {
	return NewError(ErrorCodeNodeExited,
		fmt.Sprintf("'%s' exited unexpectedly", node)).
		WithContext("node", node).
		WithContext("exit_code", exitCode).
		WithCause(cause)
}

// ErrTerminationFailed creates an error for a node that could not be stopped
func ErrTerminationFailed(node string, pid int, cause error) *LauncherError {
	return NewError(ErrorCodeTerminationFailed,
		fmt.Sprintf("Failed to terminate '%s'", node)).
		WithContext("node", node).
		WithContext("pid", pid).
		WithCause(cause).
		WithSuggestion(fmt.Sprintf(
			"The process group may still be running:\n"+
				"  1. Inspect it: ps -o pid,stat,cmd -g %d\n"+
				"  2. Force kill: sudo kill -9 -- -%d",
			pid, pid))
}

func dirOf(path string) string {
	if i := strings.LastIndex(path, "/"); i > 0 {
		return path[:i]
	}
	return "."
}

// IsErrorCode checks if an error has the specified error code
func IsErrorCode(err error, code ErrorCode) bool {
	var launcherErr *LauncherError
	if errors.As(err, &launcherErr) {
		return launcherErr.Code == code
	}
	return false
}

// GetErrorCode returns the error code from an error, or empty string if not a LauncherError
func GetErrorCode(err error) ErrorCode {
	var launcherErr *LauncherError
	if errors.As(err, &launcherErr) {
		return launcherErr.Code
	}
	return ""
}

// GetSuggestion returns the suggestion from an error, or empty string if not available
func GetSuggestion(err error) string {
	var launcherErr *LauncherError
	if errors.As(err, &launcherErr) {
		return launcherErr.Suggestion
	}
	return ""
}
