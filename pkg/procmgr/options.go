package procmgr

import (
	"log/slog"
	"time"
)

// DefaultKillTimeout bounds the wait for a killed process group to exit
const DefaultKillTimeout = 5 * time.Second

// Option configures a Handle
type Option func(*Handle)

// WithMetricsCollector sets the metrics collector
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(h *Handle) {
		if mc != nil {
			h.metrics = mc
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handle) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithKillTimeout sets how long to wait for exit after a kill
func WithKillTimeout(d time.Duration) Option {
	return func(h *Handle) {
		if d > 0 {
			h.killTimeout = d
		}
	}
}
