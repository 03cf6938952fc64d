// Package signalbridge turns operator interrupts into a shutdown request
// and, if the operator insists, into a forced kill.
package signalbridge

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// Option configures a Bridge
type Option func(*Bridge)

// WithSignals replaces the process signal subscription with ch
func WithSignals(ch <-chan os.Signal) Option {
	return func(b *Bridge) {
		b.signals = ch
	}
}

// WithEscalation calls fn once for the first signal that arrives at least
// after the first one. Without it, repeated signals are ignored.
func WithEscalation(after time.Duration, fn func()) Option {
	return func(b *Bridge) {
		b.after = after
		b.escalate = fn
	}
}

// WithClock sets the time source
func WithClock(now func() time.Time) Option {
	return func(b *Bridge) {
		b.now = now
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bridge) {
		b.logger = logger
	}
}

// Bridge watches for SIGINT/SIGTERM. The first signal cancels the context
// returned by Start; it never blocks on whoever consumes that context.
type Bridge struct {
	signals  <-chan os.Signal
	after    time.Duration
	escalate func()
	now      func() time.Time
	logger   *slog.Logger

	mu        sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
	received  int
	requests  int
	firstAt   time.Time
	escalated bool

	unsubscribe func()
	stop        chan struct{}
	stopOnce    sync.Once
	done        chan struct{}
}

// New creates a bridge; nothing is watched until Start
func New(opts ...Option) *Bridge {
	b := &Bridge{
		now:    time.Now,
		logger: slog.Default(),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Start subscribes to signals and returns the shutdown context derived
// from parent. Calling Start again returns the same context.
func (b *Bridge) Start(parent context.Context) context.Context {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.ctx != nil {
		return b.ctx
	}
	b.ctx, b.cancel = context.WithCancel(parent)

	sigs := b.signals
	if sigs == nil {
		ch := make(chan os.Signal, 4)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		b.unsubscribe = func() { signal.Stop(ch) }
		sigs = ch
	}

	go b.loop(sigs, b.cancel)
	return b.ctx
}

// Stop unsubscribes from signals, waits for the watcher to exit and
// releases the shutdown context
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		close(b.stop)

		b.mu.Lock()
		started := b.ctx != nil
		cancel := b.cancel
		unsubscribe := b.unsubscribe
		b.mu.Unlock()

		if unsubscribe != nil {
			unsubscribe()
		}
		if started {
			<-b.done
			cancel()
		}
	})
}

// Received returns how many signals were seen
func (b *Bridge) Received() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.received
}

// ShutdownRequests returns 1 once a signal requested shutdown, else 0
func (b *Bridge) ShutdownRequests() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.requests
}

// Escalated reports whether the escalation function was called
func (b *Bridge) Escalated() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.escalated
}

func (b *Bridge) loop(sigs <-chan os.Signal, cancel context.CancelFunc) {
	defer close(b.done)
	for {
		select {
		case <-b.stop:
			return
		case sig, ok := <-sigs:
			if !ok {
				return
			}
			b.handle(sig, cancel)
		}
	}
}

func (b *Bridge) handle(sig os.Signal, cancel context.CancelFunc) {
	b.mu.Lock()
	now := b.now()
	b.received++

	if b.requests == 0 {
		b.requests = 1
		b.firstAt = now
		b.mu.Unlock()

		b.logger.Info("shutdown requested", "signal", sig.String())
		cancel()
		return
	}

	if b.escalate == nil || b.escalated || now.Sub(b.firstAt) < b.after {
		b.mu.Unlock()
		b.logger.Info("already shutting down", "signal", sig.String())
		return
	}
	b.escalated = true
	fn := b.escalate
	b.mu.Unlock()

	b.logger.Warn("shutdown escalated, killing fleet", "signal", sig.String())
	fn()
}
