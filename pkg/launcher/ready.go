package launcher

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"strconv"
	"time"

	"github.com/ls-1801/VMLauncher/pkg/procmgr"
)

// ErrProcessExited is returned by probes when the node exits before it
// became ready
var ErrProcessExited = errors.New("process exited before becoming ready")

// Target is what a readiness probe checks
type Target struct {
	Name string
	Addr netip.Addr

	// Closed when the node process has exited
	Exited <-chan struct{}
}

// ReadinessProbe blocks until the target is ready, ctx is done, or the
// target exits. Deadlines are applied by the caller through ctx.
type ReadinessProbe interface {
	Wait(ctx context.Context, t Target) error
}

// ProbeFunc adapts a function to the ReadinessProbe interface
type ProbeFunc func(ctx context.Context, t Target) error

// Wait calls f
func (f ProbeFunc) Wait(ctx context.Context, t Target) error {
	return f(ctx, t)
}

const (
	probeBaseInterval = 50 * time.Millisecond
	probeMaxInterval  = time.Second
)

// TCPProbe reports ready once a TCP connection to the target address on
// port succeeds. Attempts back off exponentially.
func TCPProbe(port uint16, dialTimeout time.Duration) ReadinessProbe {
	return ProbeFunc(func(ctx context.Context, t Target) error {
		addr := net.JoinHostPort(t.Addr.String(), strconv.Itoa(int(port)))
		dialer := net.Dialer{Timeout: dialTimeout}

		for attempt := 0; ; attempt++ {
			if exited(t) {
				return ErrProcessExited
			}

			conn, err := dialer.DialContext(ctx, "tcp", addr)
			if err == nil {
				_ = conn.Close()
				return nil
			}

			timer := time.NewTimer(procmgr.ExponentialBackoff(attempt, probeBaseInterval, probeMaxInterval))
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-t.Exited:
				timer.Stop()
				return ErrProcessExited
			case <-timer.C:
			}
		}
	})
}

// SettleDelay reports ready once the target stayed up for d
func SettleDelay(d time.Duration) ReadinessProbe {
	return ProbeFunc(func(ctx context.Context, t Target) error {
		timer := time.NewTimer(d)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.Exited:
			return ErrProcessExited
		case <-timer.C:
			return nil
		}
	})
}

// ProcessAlive reports ready as soon as the process is known to be running
func ProcessAlive() ReadinessProbe {
	return ProbeFunc(func(ctx context.Context, t Target) error {
		if exited(t) {
			return ErrProcessExited
		}
		return ctx.Err()
	})
}

func exited(t Target) bool {
	if t.Exited == nil {
		return false
	}
	select {
	case <-t.Exited:
		return true
	default:
		return false
	}
}
