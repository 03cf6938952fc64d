package netalloc

import (
	"crypto/rand"
	"fmt"
	"io"
)

// Allocator issues NodeIdentities from AddressPools. It holds no pool state
// itself; the only thing it owns is the entropy source for MAC addresses.
type Allocator struct {
	random         io.Reader
	maxMACAttempts int
}

// AllocatorOption configures an Allocator
type AllocatorOption func(*Allocator)

// WithRandom sets the entropy source used for MAC generation
func WithRandom(r io.Reader) AllocatorOption {
	return func(a *Allocator) {
		a.random = r
	}
}

// WithMaxMACAttempts bounds the number of regenerations on MAC collision
func WithMaxMACAttempts(n int) AllocatorOption {
	return func(a *Allocator) {
		if n > 0 {
			a.maxMACAttempts = n
		}
	}
}

// NewAllocator creates an allocator reading MAC entropy from crypto/rand
func NewAllocator(opts ...AllocatorOption) *Allocator {
	a := &Allocator{
		random:         rand.Reader,
		maxMACAttempts: 64,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Allocate issues a root identity (no parent) from pool
func (a *Allocator) Allocate(pool *AddressPool) (NodeIdentity, error) {
	return a.allocate(pool, 0, false)
}

// AllocateChild issues an identity whose parent is the given identity
func (a *Allocator) AllocateChild(pool *AddressPool, parent NodeIdentity) (NodeIdentity, error) {
	if parent.IsZero() {
		return NodeIdentity{}, fmt.Errorf("allocate child: parent identity is not allocated")
	}
	return a.allocate(pool, parent.WorkerID(), true)
}

func (a *Allocator) allocate(pool *AddressPool, parent WorkerID, hasParent bool) (NodeIdentity, error) {
	addr, next, err := pool.candidate()
	if err != nil {
		return NodeIdentity{}, err
	}

	mac, err := a.uniqueMAC(pool)
	if err != nil {
		return NodeIdentity{}, err
	}

	id := pool.commit(addr, mac, next)

	return NodeIdentity{
		ip:        addr,
		mac:       mac,
		id:        id,
		parent:    parent,
		hasParent: hasParent,
	}, nil
}

// uniqueMAC generates a locally administered unicast address not yet issued
// from pool
func (a *Allocator) uniqueMAC(pool *AddressPool) (MAC, error) {
	for attempt := 0; attempt < a.maxMACAttempts; attempt++ {
		mac, err := a.randomMAC()
		if err != nil {
			return MAC{}, err
		}
		if !pool.macIssued(mac) {
			return mac, nil
		}
	}
	return MAC{}, fmt.Errorf("%d attempts: %w", a.maxMACAttempts, ErrMACGeneration)
}

func (a *Allocator) randomMAC() (MAC, error) {
	var mac MAC
	if _, err := io.ReadFull(a.random, mac[:]); err != nil {
		return MAC{}, fmt.Errorf("read mac entropy: %w", err)
	}
	// locally administered, unicast
	mac[0] = (mac[0] | 0x02) &^ 0x01
	return mac, nil
}
