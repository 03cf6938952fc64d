package netalloc

import (
	"bytes"
	"errors"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// zeroReader always yields zero bytes, producing the same MAC every time
type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}

type failingReader struct{}

func (failingReader) Read(p []byte) (int, error) {
	return 0, errors.New("entropy unavailable")
}

func mustPool(t *testing.T, cidr string, opts ...PoolOption) *AddressPool {
	t.Helper()
	pool, err := NewAddressPool(cidr, opts...)
	require.NoError(t, err)
	return pool
}

// TestAllocator_SequentialAddresses tests that addresses are issued in
// ascending order starting at the first host
func TestAllocator_SequentialAddresses(t *testing.T) {
	pool := mustPool(t, "10.0.0.0/24")
	alloc := NewAllocator()

	coordinator, err := alloc.Allocate(pool)
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddr("10.0.0.1"), coordinator.IP())
	assert.Equal(t, FirstWorkerID, coordinator.WorkerID())
	_, hasParent := coordinator.Parent()
	assert.False(t, hasParent)

	w1, err := alloc.AllocateChild(pool, coordinator)
	require.NoError(t, err)
	w2, err := alloc.AllocateChild(pool, coordinator)
	require.NoError(t, err)

	assert.Equal(t, netip.MustParseAddr("10.0.0.2"), w1.IP())
	assert.Equal(t, netip.MustParseAddr("10.0.0.3"), w2.IP())
	assert.Equal(t, WorkerID(1), w1.WorkerID())
	assert.Equal(t, WorkerID(2), w2.WorkerID())

	parent, ok := w2.Parent()
	assert.True(t, ok)
	assert.Equal(t, coordinator.WorkerID(), parent)

	assert.NotEqual(t, coordinator.MAC(), w1.MAC())
	assert.NotEqual(t, w1.MAC(), w2.MAC())
	assert.Equal(t, 3, pool.Issued())
}

// TestAllocator_MACBits tests that generated MACs are locally administered unicast
func TestAllocator_MACBits(t *testing.T) {
	pool := mustPool(t, "10.0.0.0/24")
	alloc := NewAllocator(WithRandom(bytes.NewReader(bytes.Repeat([]byte{0xff}, 6))))

	id, err := alloc.Allocate(pool)
	require.NoError(t, err)

	mac := id.MAC()
	assert.True(t, mac.IsLocallyAdministered())
	assert.False(t, mac.IsMulticast())
	assert.Equal(t, "fe:ff:ff:ff:ff:ff", mac.String())
}

// TestAllocator_Exhaustion tests that a /30 holds exactly two nodes
func TestAllocator_Exhaustion(t *testing.T) {
	pool := mustPool(t, "192.168.1.0/30")
	alloc := NewAllocator()

	first, err := alloc.Allocate(pool)
	require.NoError(t, err)
	second, err := alloc.AllocateChild(pool, first)
	require.NoError(t, err)

	assert.Equal(t, netip.MustParseAddr("192.168.1.1"), first.IP())
	assert.Equal(t, netip.MustParseAddr("192.168.1.2"), second.IP())

	_, err = alloc.AllocateChild(pool, first)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAddressSpaceExhausted)
	assert.Contains(t, err.Error(), "192.168.1.0/30")
	assert.Equal(t, 2, pool.Issued(), "failed allocation must not change the pool")
}

// TestAllocator_TinyPrefixes tests blocks that have no usable host at all
func TestAllocator_TinyPrefixes(t *testing.T) {
	for _, cidr := range []string{"10.0.0.0/31", "10.0.0.5/32"} {
		t.Run(cidr, func(t *testing.T) {
			pool := mustPool(t, cidr)
			assert.Equal(t, 0, pool.Capacity())

			_, err := NewAllocator().Allocate(pool)
			assert.ErrorIs(t, err, ErrAddressSpaceExhausted)
		})
	}
}

// TestAllocator_Reserved tests that reserved addresses are skipped
func TestAllocator_Reserved(t *testing.T) {
	pool := mustPool(t, "10.0.0.0/29", WithReserved(
		netip.MustParseAddr("10.0.0.1"),
		netip.MustParseAddr("10.0.0.3"),
		netip.MustParseAddr("172.16.0.1"), // outside the block, ignored
	))
	alloc := NewAllocator()

	assert.Equal(t, 4, pool.Capacity())

	var got []netip.Addr
	for i := 0; i < 4; i++ {
		id, err := alloc.Allocate(pool)
		require.NoError(t, err)
		got = append(got, id.IP())
	}

	assert.Equal(t, []netip.Addr{
		netip.MustParseAddr("10.0.0.2"),
		netip.MustParseAddr("10.0.0.4"),
		netip.MustParseAddr("10.0.0.5"),
		netip.MustParseAddr("10.0.0.6"),
	}, got)

	_, err := alloc.Allocate(pool)
	assert.ErrorIs(t, err, ErrAddressSpaceExhausted)
}

// TestAllocator_MACCollision tests that a constant entropy source fails
// after the configured number of attempts without consuming an address
func TestAllocator_MACCollision(t *testing.T) {
	pool := mustPool(t, "10.0.0.0/24")
	alloc := NewAllocator(WithRandom(zeroReader{}), WithMaxMACAttempts(3))

	_, err := alloc.Allocate(pool)
	require.NoError(t, err)

	_, err = alloc.Allocate(pool)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMACGeneration)
	assert.Equal(t, 1, pool.Issued())
	assert.False(t, pool.IsIssued(netip.MustParseAddr("10.0.0.2")))
}

// TestAllocator_EntropyFailure tests that read errors surface
func TestAllocator_EntropyFailure(t *testing.T) {
	pool := mustPool(t, "10.0.0.0/24")
	alloc := NewAllocator(WithRandom(failingReader{}))

	_, err := alloc.Allocate(pool)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "entropy unavailable")
	assert.Equal(t, 0, pool.Issued())
}

// TestAllocator_ChildOfZeroIdentity tests that a parent must be allocated
func TestAllocator_ChildOfZeroIdentity(t *testing.T) {
	pool := mustPool(t, "10.0.0.0/24")

	_, err := NewAllocator().AllocateChild(pool, NodeIdentity{})
	assert.Error(t, err)
	assert.Equal(t, 0, pool.Issued())
}

// TestNewAddressPool tests CIDR parsing
func TestNewAddressPool(t *testing.T) {
	pool, err := NewAddressPool("10.0.0.77/24")
	require.NoError(t, err)
	assert.Equal(t, netip.MustParsePrefix("10.0.0.0/24"), pool.Prefix())
	assert.Equal(t, 254, pool.Capacity())
	assert.True(t, pool.Contains(netip.MustParseAddr("10.0.0.200")))
	assert.False(t, pool.Contains(netip.MustParseAddr("10.0.1.1")))

	_, err = NewAddressPool("not-a-cidr")
	assert.Error(t, err)

	_, err = NewAddressPool("fd00::/64")
	assert.ErrorIs(t, err, ErrUnsupportedPrefix)
}

// TestAddressPool_CheckCapacity tests the optional pre-validation
func TestAddressPool_CheckCapacity(t *testing.T) {
	pool := mustPool(t, "10.0.0.0/29")
	assert.NoError(t, pool.CheckCapacity(6))
	assert.ErrorIs(t, pool.CheckCapacity(7), ErrAddressSpaceExhausted)

	_, err := NewAllocator().Allocate(pool)
	require.NoError(t, err)
	assert.Equal(t, 5, pool.Remaining())
	assert.ErrorIs(t, pool.CheckCapacity(6), ErrAddressSpaceExhausted)
}

func TestAddressPool_ReservedNetworkAndBroadcast(t *testing.T) {
	pool := mustPool(t, "10.0.0.0/30", WithReserved(
		netip.MustParseAddr("10.0.0.0"),
		netip.MustParseAddr("10.0.0.3"),
	))
	assert.Equal(t, 2, pool.Capacity())
	require.NoError(t, pool.CheckCapacity(2))

	alloc := NewAllocator()
	for i := 0; i < 2; i++ {
		_, err := alloc.Allocate(pool)
		require.NoError(t, err)
	}
	assert.Equal(t, 0, pool.Remaining())

	_, err := alloc.Allocate(pool)
	assert.ErrorIs(t, err, ErrAddressSpaceExhausted)
	assert.Equal(t, 0, pool.Remaining())
}

// TestParseMAC tests MAC parsing round trips through String
func TestParseMAC(t *testing.T) {
	mac, err := ParseMAC("02:00:5e:10:00:01")
	require.NoError(t, err)
	assert.Equal(t, "02:00:5e:10:00:01", mac.String())
	assert.Equal(t, mac[:], []byte(mac.HardwareAddr()))

	_, err = ParseMAC("02:00:5e:10:00:00:00:01")
	assert.Error(t, err)
}

// TestNodeIdentity_String tests the human readable form
func TestNodeIdentity_String(t *testing.T) {
	assert.Equal(t, "<none>", NodeIdentity{}.String())

	pool := mustPool(t, "10.0.0.0/24")
	alloc := NewAllocator(WithRandom(bytes.NewReader([]byte{0, 1, 2, 3, 4, 5, 0, 1, 2, 3, 4, 6})))
	root, err := alloc.Allocate(pool)
	require.NoError(t, err)
	child, err := alloc.AllocateChild(pool, root)
	require.NoError(t, err)

	assert.Equal(t, "worker 0 (10.0.0.1, 02:01:02:03:04:05)", root.String())
	assert.Equal(t, "worker 1 (10.0.0.2, 02:01:02:03:04:06, parent 0)", child.String())
}
