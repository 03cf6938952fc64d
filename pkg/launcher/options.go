package launcher

import (
	"log/slog"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/ls-1801/VMLauncher/pkg/netalloc"
	"github.com/ls-1801/VMLauncher/pkg/nodeconfig"
	"github.com/ls-1801/VMLauncher/pkg/procmgr"
)

// Option configures a Supervisor
type Option func(*Supervisor)

// WithConfig sets supervisor configuration; zero fields keep their defaults
func WithConfig(cfg Config) Option {
	return func(s *Supervisor) {
		s.config = cfg.withDefaults()
	}
}

// WithAllocator sets the identity allocator
func WithAllocator(a *netalloc.Allocator) Option {
	return func(s *Supervisor) {
		s.allocator = a
	}
}

// WithTemplate sets the node config template
func WithTemplate(t *nodeconfig.Template) Option {
	return func(s *Supervisor) {
		s.template = t
	}
}

// WithDeliverer sets where rendered configs are written
func WithDeliverer(d nodeconfig.Deliverer) Option {
	return func(s *Supervisor) {
		s.deliverer = d
	}
}

// WithCoordinatorProbe sets how coordinator readiness is observed
func WithCoordinatorProbe(p ReadinessProbe) Option {
	return func(s *Supervisor) {
		s.coordinatorProbe = p
	}
}

// WithWorkerProbe sets how worker readiness is observed
func WithWorkerProbe(p ReadinessProbe) Option {
	return func(s *Supervisor) {
		s.workerProbe = p
	}
}

// WithMetricsCollector sets the metrics collector shared by all handles
func WithMetricsCollector(collector procmgr.MetricsCollector) Option {
	return func(s *Supervisor) {
		s.metrics = collector
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Supervisor) {
		s.logger = logger
	}
}

// WithTracer sets the tracer used for run, node and teardown spans
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Supervisor) {
		s.tracer = tracer
	}
}

// WithStartLimiter paces worker starts
func WithStartLimiter(l *rate.Limiter) Option {
	return func(s *Supervisor) {
		s.limiter = l
	}
}
