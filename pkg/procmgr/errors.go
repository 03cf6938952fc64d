package procmgr

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition is returned when an operation does not apply to
	// the handle's current state
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrBinaryNotFound is returned when the node executable is not on PATH
	ErrBinaryNotFound = errors.New("binary not found")

	// ErrEmptyCommand is returned for a launch request without argv
	ErrEmptyCommand = errors.New("empty command")

	// ErrKillTimeout is returned when a killed process group did not exit
	ErrKillTimeout = errors.New("process did not exit after kill")
)

// LaunchError is returned by Start when the launcher could not spawn the node
type LaunchError struct {
	ID  ProcessID
	Err error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launch %s: %v", e.ID, e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

// ExitError records an exit nobody asked for
type ExitError struct {
	ID       ProcessID
	ExitCode int
	Err      error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s exited unexpectedly (code %d): %v", e.ID, e.ExitCode, e.Err)
	}
	return fmt.Sprintf("%s exited unexpectedly (code %d)", e.ID, e.ExitCode)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// TerminationError is returned when a process could not be brought down
type TerminationError struct {
	ID  ProcessID
	PID int
	Err error
}

func (e *TerminationError) Error() string {
	return fmt.Sprintf("terminate %s (pid %d): %v", e.ID, e.PID, e.Err)
}

func (e *TerminationError) Unwrap() error {
	return e.Err
}
