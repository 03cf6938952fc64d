//go:build unix

package signalbridge

import (
	"context"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBridge_ProcessSignals(t *testing.T) {
	b := New()
	defer b.Stop()
	ctx := b.Start(context.Background())

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGTERM))

	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("SIGTERM did not request shutdown")
	}
	assert.Equal(t, 1, b.ShutdownRequests())
}
