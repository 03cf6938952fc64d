package procmgr

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Handle owns one node process for the duration of a run: it spawns it,
// watches for exit and brings it down on request. All methods are safe for
// concurrent use.
type Handle struct {
	id       ProcessID
	req      LaunchRequest
	launcher Launcher

	metrics     MetricsCollector
	logger      *slog.Logger
	killTimeout time.Duration

	mu            sync.Mutex
	state         ProcessState
	proc          Process
	status        ProcessStatus
	stopRequested bool
	termErr       error

	// closed once Start has returned, success or not
	launched chan struct{}
	// closed once the process has exited
	exited chan struct{}
	// closed once the handle reached Stopped or Failed
	done chan struct{}

	launchOnce  sync.Once
	doneOnce    sync.Once
	releaseOnce sync.Once
}

// NewHandle creates a Pending handle for req
func NewHandle(id ProcessID, req LaunchRequest, launcher Launcher, opts ...Option) *Handle {
	h := &Handle{
		id:          id,
		req:         req,
		launcher:    launcher,
		metrics:     NewNoopMetricsCollector(),
		logger:      slog.Default(),
		killTimeout: DefaultKillTimeout,
		state:       ProcessStatePending,
		launched:    make(chan struct{}),
		exited:      make(chan struct{}),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With("node", req.Name, "role", req.Role)
	return h
}

// ID returns the handle's process id
func (h *Handle) ID() ProcessID {
	return h.id
}

// Request returns what the handle launches
func (h *Handle) Request() LaunchRequest {
	return h.req
}

// State returns the current lifecycle state
func (h *Handle) State() ProcessState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Status returns a snapshot of the runtime status
func (h *Handle) Status() ProcessStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := h.status
	s.State = h.state
	return s
}

// Exited is closed when the spawned process has exited
func (h *Handle) Exited() <-chan struct{} {
	return h.exited
}

// Done is closed when the handle reached Stopped or Failed
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Start spawns the process. The launcher receives ctx; once it returns the
// spawn is not undone by cancellation, a later Terminate is needed.
func (h *Handle) Start(ctx context.Context) error {
	h.mu.Lock()
	if h.state != ProcessStatePending {
		state := h.state
		h.mu.Unlock()
		return fmt.Errorf("start %s in state %s: %w", h.id, state, ErrInvalidTransition)
	}
	h.transition(ProcessStateStarting)
	h.mu.Unlock()

	h.logger.Info("starting node", "config", h.req.ConfigPath)

	start := time.Now()
	proc, err := h.launcher.Launch(ctx, h.req)
	h.metrics.ProcessLaunchDuration(h.id, time.Since(start), err)

	h.mu.Lock()
	defer h.launchOnce.Do(func() { close(h.launched) })
	defer h.mu.Unlock()

	if err != nil {
		launchErr := &LaunchError{ID: h.id, Err: err}
		h.status.LastError = launchErr
		h.metrics.ProcessError(h.id, "launch_error")
		h.transition(ProcessStateFailed)
		h.finishLocked()
		h.logger.Error("node launch failed", "error", err)
		return launchErr
	}

	h.proc = proc
	h.status.PID = proc.PID()
	h.status.StartedAt = time.Now()
	h.logger.Info("node started", "pid", h.status.PID)

	go h.monitor(proc)
	return nil
}

// MarkRunning records that the process was observed ready
func (h *Handle) MarkRunning() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state != ProcessStateStarting || h.proc == nil {
		return fmt.Errorf("mark %s running in state %s: %w", h.id, h.state, ErrInvalidTransition)
	}
	h.transition(ProcessStateRunning)
	return nil
}

// Wait blocks until the handle reached Stopped or Failed
func (h *Handle) Wait(ctx context.Context) (ProcessStatus, error) {
	select {
	case <-h.done:
		return h.Status(), nil
	case <-ctx.Done():
		return h.Status(), ctx.Err()
	}
}

// Kill forcefully terminates the process group without a grace period.
// The resulting exit counts as a requested stop.
func (h *Handle) Kill() error {
	h.mu.Lock()
	proc := h.proc
	h.stopRequested = true
	if proc != nil && !h.status.Exited {
		h.status.ForcedKill = true
	}
	h.mu.Unlock()

	if proc == nil {
		return nil
	}
	h.metrics.ProcessForcedKill(h.id)
	return proc.Kill()
}

// Terminate stops the process: interrupt, wait up to grace for exit, then
// kill and wait up to the kill timeout. Cancelling ctx skips the rest of
// the grace period and kills immediately. A Pending handle is moved
// straight to Stopped. Calling Terminate again returns the outcome of the
// first call.
func (h *Handle) Terminate(ctx context.Context, grace time.Duration) error {
	h.mu.Lock()
	h.stopRequested = true
	switch {
	case h.state == ProcessStatePending:
		h.transition(ProcessStateStopped)
		h.finishLocked()
		h.mu.Unlock()
		return nil
	case h.state == ProcessStateStarting && h.proc == nil:
		// launch in flight; the spawned process is targeted once it returns
		h.mu.Unlock()
		<-h.launched
		h.mu.Lock()
	}

	switch h.state {
	case ProcessStateStopped, ProcessStateFailed:
		h.mu.Unlock()
		return nil
	case ProcessStateStopping:
		h.mu.Unlock()
		<-h.done
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.termErr
	}

	h.transition(ProcessStateStopping)
	proc := h.proc
	h.mu.Unlock()

	start := time.Now()
	err := h.stop(ctx, proc, grace)
	h.metrics.ProcessTerminationDuration(h.id, time.Since(start))
	return err
}

func (h *Handle) stop(ctx context.Context, proc Process, grace time.Duration) error {
	h.logger.Info("stopping node", "grace_period", grace)

	if err := proc.Interrupt(); err != nil {
		h.logger.Warn("interrupt failed, escalating", "error", err)
		return h.kill(proc)
	}

	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-h.exited:
		<-h.done
		return nil
	case <-timer.C:
		h.logger.Warn("grace period expired, killing node")
	case <-ctx.Done():
		h.logger.Warn("termination escalated, killing node")
	}

	return h.kill(proc)
}

func (h *Handle) kill(proc Process) error {
	h.mu.Lock()
	if !h.status.Exited {
		h.status.ForcedKill = true
	}
	h.mu.Unlock()
	h.metrics.ProcessForcedKill(h.id)

	if err := proc.Kill(); err != nil {
		h.logger.Warn("kill failed", "error", err)
	}

	timer := time.NewTimer(h.killTimeout)
	defer timer.Stop()

	select {
	case <-h.exited:
		<-h.done
		return nil
	case <-timer.C:
	}

	h.mu.Lock()
	termErr := &TerminationError{ID: h.id, PID: h.status.PID, Err: ErrKillTimeout}
	h.termErr = termErr
	h.status.LastError = termErr
	h.metrics.ProcessError(h.id, "termination_error")
	h.transition(ProcessStateFailed)
	h.finishLocked()
	h.mu.Unlock()

	h.release(proc)
	h.logger.Error("node did not exit after kill", "timeout", h.killTimeout)
	return termErr
}

// monitor waits for the process to exit and settles the final state
func (h *Handle) monitor(proc Process) {
	code, err := proc.Wait()

	h.mu.Lock()
	h.status.Exited = true
	h.status.ExitCode = code
	h.status.ExitedAt = time.Now()

	if !h.state.IsTerminal() {
		if h.stopRequested {
			h.transition(ProcessStateStopped)
			h.logger.Info("node stopped", "exit_code", code)
		} else {
			exitErr := &ExitError{ID: h.id, ExitCode: code, Err: err}
			h.status.LastError = exitErr
			h.metrics.ProcessError(h.id, "unexpected_exit")
			h.transition(ProcessStateFailed)
			h.logger.Error("node exited unexpectedly", "exit_code", code, "error", err)
		}
	}
	close(h.exited)
	h.finishLocked()
	h.mu.Unlock()

	h.release(proc)
}

// transition must be called with h.mu held
func (h *Handle) transition(to ProcessState) {
	from := h.state
	if from == to {
		return
	}
	h.state = to
	h.metrics.ProcessStateTransition(h.id, from, to)
	h.logger.Debug("state transition", "from", from.String(), "to", to.String())
}

// finishLocked must be called with h.mu held
func (h *Handle) finishLocked() {
	h.doneOnce.Do(func() { close(h.done) })
}

func (h *Handle) release(proc Process) {
	h.releaseOnce.Do(func() {
		if err := proc.Close(); err != nil {
			h.logger.Warn("release process resources", "error", err)
		}
	})
}
