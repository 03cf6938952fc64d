package launcher

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/ls-1801/VMLauncher/pkg/netalloc"
	"github.com/ls-1801/VMLauncher/pkg/nodeconfig"
	"github.com/ls-1801/VMLauncher/pkg/procmgr"
	"github.com/ls-1801/VMLauncher/pkg/topology"
)

const tracerName = "github.com/ls-1801/VMLauncher/pkg/launcher"

// Supervisor launches a fleet, keeps it up until shutdown is requested or
// the coordinator goes away, and tears it down.
type Supervisor struct {
	launcher procmgr.Launcher
	config   Config

	allocator        *netalloc.Allocator
	template         *nodeconfig.Template
	deliverer        nodeconfig.Deliverer
	coordinatorProbe ReadinessProbe
	workerProbe      ReadinessProbe
	limiter          *rate.Limiter

	metrics procmgr.MetricsCollector
	logger  *slog.Logger
	tracer  trace.Tracer

	kill     chan struct{}
	killOnce sync.Once
}

// NewSupervisor creates a supervisor spawning nodes through launcher
func NewSupervisor(launcher procmgr.Launcher, opts ...Option) *Supervisor {
	s := &Supervisor{
		launcher:         launcher,
		config:           *DefaultConfig(),
		allocator:        netalloc.NewAllocator(),
		template:         nodeconfig.DefaultTemplate(),
		deliverer:        nodeconfig.FileDeliverer{},
		coordinatorProbe: TCPProbe(nodeconfig.CoordinatorPort, time.Second),
		workerProbe:      TCPProbe(nodeconfig.RPCPort, time.Second),
		metrics:          procmgr.NewNoopMetricsCollector(),
		logger:           slog.Default(),
		tracer:           otel.Tracer(tracerName),
		kill:             make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// KillAll makes every in-flight and future termination skip the rest of
// its grace period and kill immediately. It is meant for a second operator
// interrupt and cannot be undone.
func (s *Supervisor) KillAll() {
	s.killOnce.Do(func() {
		s.logger.Warn("escalating teardown to kill")
		close(s.kill)
	})
}

// Run launches the fleet described by topo and blocks until it is torn
// down. Cancelling ctx requests shutdown. The returned error is the run
// fatal error, if any; per node failures are in the report. Every node
// that was started is terminated before Run returns.
func (s *Supervisor) Run(ctx context.Context, topo *topology.Topology) (*Report, error) {
	runID := uuid.NewString()
	logger := s.logger.With("run_id", runID)
	report := &Report{RunID: runID, StartedAt: time.Now()}
	if topo != nil {
		report.CIDR = topo.CIDR
	}

	ctx, span := s.tracer.Start(ctx, "fleet.run", trace.WithAttributes(
		attribute.String("run.id", runID),
		attribute.String("fleet.cidr", report.CIDR),
	))
	defer span.End()

	fleet, err := s.allocate(ctx, logger, runID, topo)
	if err != nil {
		logger.Error("fleet allocation failed", "error", err)
		report.FinishedAt = time.Now()
		report.RunError = err
		recordSpanError(span, err)
		return report, err
	}

	runErr := s.launch(ctx, logger, fleet)
	report.ShutdownRequested = ctx.Err() != nil

	s.shutdown(ctx, logger, fleet)
	s.collectExits(fleet)

	report.RunError = runErr
	report.FinishedAt = time.Now()
	buildReport(report, fleet)

	span.SetAttributes(
		attribute.Bool("run.success", report.Success),
		attribute.Bool("run.shutdown_requested", report.ShutdownRequested),
	)
	if runErr != nil {
		recordSpanError(span, runErr)
	}
	logger.Info("fleet run finished",
		"success", report.Success,
		"shutdown_requested", report.ShutdownRequested,
		"failed_nodes", len(report.FailedNodes()),
		"duration", report.Duration())
	return report, runErr
}

// allocate plans the fleet and creates a Pending handle per node
func (s *Supervisor) allocate(ctx context.Context, logger *slog.Logger, runID string, topo *topology.Topology) (*Fleet, error) {
	_, span := s.tracer.Start(ctx, "fleet.allocate")
	defer span.End()

	specs, err := Plan(topo, s.allocator, filepath.Join(s.config.ConfigDir, runID))
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	fleet := NewFleet()
	names := make(map[netalloc.WorkerID]string, len(specs))
	for _, spec := range specs {
		names[spec.Identity.WorkerID()] = spec.Name

		command := s.config.WorkerCommand
		if spec.Role == nodeconfig.RoleCoordinator {
			command = s.config.CoordinatorCommand
		}
		req := procmgr.LaunchRequest{
			Name:       spec.Name,
			Role:       spec.Role.String(),
			Command:    command,
			ConfigPath: spec.Destination,
			Identity:   spec.Identity,
			Env:        s.config.Env,
		}

		m := &Member{
			Name:       spec.Name,
			Role:       spec.Role,
			Identity:   spec.Identity,
			Spec:       spec,
			ConfigPath: spec.Destination,
			Handle: procmgr.NewHandle(procmgr.ProcessID(spec.Name), req, s.launcher,
				procmgr.WithMetricsCollector(s.metrics),
				procmgr.WithLogger(logger),
				procmgr.WithKillTimeout(s.config.KillTimeout),
			),
		}
		if parent, ok := spec.Identity.Parent(); ok {
			m.Parent = names[parent]
		}
		if err := fleet.Add(m); err != nil {
			recordSpanError(span, err)
			return nil, ErrInvalidTopology(err)
		}

		logger.Info("node allocated",
			"node", spec.Name,
			"role", spec.Role.String(),
			"worker_id", spec.Identity.WorkerID(),
			"ip", spec.Identity.IP().String(),
			"mac", spec.Identity.MAC().String())
	}

	span.SetAttributes(attribute.Int("fleet.nodes", fleet.Len()))
	return fleet, nil
}

// launch brings the fleet up and holds it until shutdown is requested or
// the coordinator exits. It returns the run fatal error, nil on a
// requested shutdown.
func (s *Supervisor) launch(ctx context.Context, logger *slog.Logger, fleet *Fleet) error {
	coord := fleet.Coordinator()

	if err := s.render(ctx, logger, coord); err != nil {
		fleet.RecordError(coord.Name, err)
		return err
	}
	if ctx.Err() != nil {
		return nil
	}
	if err := s.start(ctx, coord); err != nil {
		fleet.RecordError(coord.Name, err)
		return err
	}
	if err := s.waitReady(ctx, coord, s.coordinatorProbe, s.config.ReadyTimeout); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		fleet.RecordError(coord.Name, err)
		return err
	}
	logger.Info("coordinator ready", "node", coord.Name, "ip", coord.Identity.IP().String())

	// stop starting workers as soon as the coordinator is gone
	launchCtx, cancelLaunch := context.WithCancel(ctx)
	defer cancelLaunch()
	go func() {
		select {
		case <-coord.Handle.Done():
			cancelLaunch()
		case <-launchCtx.Done():
		}
	}()

	var wg sync.WaitGroup
	for _, w := range fleet.Workers() {
		if launchCtx.Err() != nil {
			break
		}
		if err := s.render(launchCtx, logger, w); err != nil {
			fleet.RecordError(w.Name, err)
			continue
		}
		if s.limiter != nil {
			if err := s.limiter.Wait(launchCtx); err != nil {
				break
			}
		}

		wg.Add(1)
		go func(w *Member) {
			defer wg.Done()
			if err := s.start(launchCtx, w); err != nil {
				fleet.RecordError(w.Name, err)
				return
			}
			if err := s.waitReady(launchCtx, w, s.workerProbe, s.config.WorkerReadyTimeout); err != nil {
				if launchCtx.Err() == nil {
					fleet.RecordError(w.Name, err)
				}
				return
			}
			logger.Info("worker ready", "node", w.Name, "ip", w.Identity.IP().String())
		}(w)
	}

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case <-coord.Handle.Done():
	}
	cancelLaunch()
	wg.Wait()

	if ctx.Err() != nil {
		return nil
	}

	status := coord.Handle.Status()
	err := ErrCoordinatorExited(coord.Name, status.ExitCode, status.LastError)
	fleet.RecordError(coord.Name, err)
	logger.Error("coordinator exited, tearing down fleet", "node", coord.Name, "exit_code", status.ExitCode)
	return err
}

func (s *Supervisor) render(ctx context.Context, logger *slog.Logger, m *Member) error {
	ctx, span := s.tracer.Start(ctx, "node.render", nodeAttributes(m))
	defer span.End()

	rc, err := nodeconfig.RenderAndDeliver(ctx, m.Spec, s.template, s.deliverer)
	if err != nil {
		var tmplErr *nodeconfig.TemplateError
		var lerr *LauncherError
		if errors.As(err, &tmplErr) {
			lerr = ErrTemplate(m.Name, err)
		} else {
			lerr = ErrRenderIO(m.Name, m.ConfigPath, err)
		}
		recordSpanError(span, lerr)
		logger.Error("node config failed", "node", m.Name, "error", err)
		return lerr
	}

	logger.Debug("node config written", "node", m.Name, "path", m.ConfigPath, "bytes", len(rc.Content))
	return nil
}

func (s *Supervisor) start(ctx context.Context, m *Member) error {
	ctx, span := s.tracer.Start(ctx, "node.start", nodeAttributes(m))
	defer span.End()

	if err := m.Handle.Start(ctx); err != nil {
		lerr := ErrLaunchFailed(m.Name, err)
		recordSpanError(span, lerr)
		return lerr
	}
	span.SetAttributes(attribute.Int("process.pid", m.Handle.Status().PID))
	return nil
}

// waitReady runs probe under timeout and marks the node Running once it
// passes. It returns ctx.Err() unchanged when the caller gave up.
func (s *Supervisor) waitReady(ctx context.Context, m *Member, probe ReadinessProbe, timeout time.Duration) error {
	ctx, span := s.tracer.Start(ctx, "node.wait_ready", nodeAttributes(m))
	defer span.End()

	readyCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	err := probe.Wait(readyCtx, Target{
		Name:   m.Name,
		Addr:   m.Identity.IP(),
		Exited: m.Handle.Exited(),
	})
	s.metrics.ProcessReadyDuration(m.Handle.ID(), time.Since(start), err)

	if err == nil {
		if markErr := m.Handle.MarkRunning(); markErr != nil {
			// exited right after the probe passed
			err = ErrProcessExited
		} else {
			return nil
		}
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}

	var lerr *LauncherError
	switch {
	case errors.Is(err, ErrProcessExited):
		<-m.Handle.Done()
		status := m.Handle.Status()
		if m.Role == nodeconfig.RoleCoordinator {
			lerr = ErrCoordinatorExited(m.Name, status.ExitCode, status.LastError)
		} else {
			lerr = ErrNodeExited(m.Name, status.ExitCode, status.LastError)
		}
	case errors.Is(err, context.DeadlineExceeded):
		lerr = ErrStartupTimeout(m.Name, timeout)
	default:
		lerr = ErrStartupTimeout(m.Name, timeout).WithCause(err)
	}
	recordSpanError(span, lerr)
	return lerr
}

// shutdown stops the fleet deepest nodes first. Nodes of one level stop
// concurrently and each failure is recorded without holding up the rest.
func (s *Supervisor) shutdown(ctx context.Context, logger *slog.Logger, fleet *Fleet) {
	ctx, span := s.tracer.Start(context.WithoutCancel(ctx), "fleet.shutdown")
	defer span.End()

	killCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-s.kill:
			cancel()
		case <-killCtx.Done():
		}
	}()

	logger.Info("tearing down fleet", "grace_period", s.config.GracePeriod)
	for _, group := range fleet.ShutdownOrder() {
		var wg sync.WaitGroup
		for _, m := range group {
			wg.Add(1)
			go func(m *Member) {
				defer wg.Done()
				s.terminate(ctx, killCtx, logger, fleet, m)
			}(m)
		}
		wg.Wait()
	}
}

func (s *Supervisor) terminate(ctx, killCtx context.Context, logger *slog.Logger, fleet *Fleet, m *Member) {
	_, span := s.tracer.Start(ctx, "node.terminate", nodeAttributes(m))
	defer span.End()

	if err := m.Handle.Terminate(killCtx, s.config.GracePeriod); err != nil {
		lerr := ErrTerminationFailed(m.Name, m.Handle.Status().PID, err)
		fleet.RecordError(m.Name, lerr)
		recordSpanError(span, lerr)
		logger.Error("node termination failed", "node", m.Name, "error", err)
		return
	}
	span.SetAttributes(attribute.String("process.state", m.Handle.State().String()))
}

// collectExits records nodes that exited on their own and were not
// already reported
func (s *Supervisor) collectExits(fleet *Fleet) {
	for _, m := range fleet.Members() {
		status := m.Handle.Status()
		var exitErr *procmgr.ExitError
		if !errors.As(status.LastError, &exitErr) {
			continue
		}
		joined := errors.Join(fleet.Errors(m.Name)...)
		if IsErrorCode(joined, ErrorCodeNodeExited) || IsErrorCode(joined, ErrorCodeCoordinatorExited) {
			continue
		}
		if m.Role == nodeconfig.RoleCoordinator {
			fleet.RecordError(m.Name, ErrCoordinatorExited(m.Name, status.ExitCode, exitErr))
		} else {
			fleet.RecordError(m.Name, ErrNodeExited(m.Name, status.ExitCode, exitErr))
		}
	}
}

func nodeAttributes(m *Member) trace.SpanStartEventOption {
	return trace.WithAttributes(
		attribute.String("node.name", m.Name),
		attribute.String("node.role", m.Role.String()),
		attribute.String("node.ip", m.Identity.IP().String()),
		attribute.Int64("node.worker_id", int64(m.Identity.WorkerID())),
	)
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
