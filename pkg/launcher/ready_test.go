package launcher

import (
	"context"
	"net"
	"net/netip"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var loopback = netip.MustParseAddr("127.0.0.1")

// freePort reserves a loopback port and releases it
func freePort(t *testing.T) uint16 {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return uint16(port)
}

func TestTCPProbe_Ready(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	port := uint16(ln.Addr().(*net.TCPAddr).Port)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = TCPProbe(port, time.Second).Wait(ctx, Target{Name: "coordinator", Addr: loopback})
	assert.NoError(t, err)
}

func TestTCPProbe_WaitsForListener(t *testing.T) {
	port := freePort(t)

	listening := make(chan net.Listener, 1)
	go func() {
		time.Sleep(200 * time.Millisecond)
		ln, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(int(port))))
		if err != nil {
			close(listening)
			return
		}
		listening <- ln
	}()
	defer func() {
		if ln, ok := <-listening; ok {
			ln.Close()
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	start := time.Now()
	err := TCPProbe(port, 100*time.Millisecond).Wait(ctx, Target{Name: "worker-1", Addr: loopback})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
}

func TestTCPProbe_Timeout(t *testing.T) {
	port := freePort(t)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	err := TCPProbe(port, 50*time.Millisecond).Wait(ctx, Target{Name: "worker-1", Addr: loopback})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTCPProbe_ProcessExited(t *testing.T) {
	port := freePort(t)
	exited := make(chan struct{})
	close(exited)

	err := TCPProbe(port, 50*time.Millisecond).Wait(context.Background(), Target{Name: "worker-1", Addr: loopback, Exited: exited})
	assert.ErrorIs(t, err, ErrProcessExited)

	// exit while polling
	exiting := make(chan struct{})
	go func() {
		time.Sleep(100 * time.Millisecond)
		close(exiting)
	}()
	err = TCPProbe(port, 50*time.Millisecond).Wait(context.Background(), Target{Name: "worker-1", Addr: loopback, Exited: exiting})
	assert.ErrorIs(t, err, ErrProcessExited)
}

func TestSettleDelay(t *testing.T) {
	start := time.Now()
	err := SettleDelay(50*time.Millisecond).Wait(context.Background(), Target{Name: "worker-1"})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)

	exited := make(chan struct{})
	close(exited)
	err = SettleDelay(time.Minute).Wait(context.Background(), Target{Exited: exited})
	assert.ErrorIs(t, err, ErrProcessExited)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = SettleDelay(time.Minute).Wait(ctx, Target{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProcessAlive(t *testing.T) {
	assert.NoError(t, ProcessAlive().Wait(context.Background(), Target{}))

	exited := make(chan struct{})
	close(exited)
	assert.ErrorIs(t, ProcessAlive().Wait(context.Background(), Target{Exited: exited}), ErrProcessExited)
}
