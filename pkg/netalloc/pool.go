// Package netalloc carves per-node network identities (IPv4 address, MAC
// address, worker id) out of an operator supplied CIDR block.
//
// An AddressPool is an explicit value owned by the caller. Allocation order
// determines the id-to-address mapping, so pools are not safe for concurrent
// use and are expected to be driven by a single control flow.
package netalloc

import (
	"errors"
	"fmt"
	"net/netip"
)

var (
	// ErrAddressSpaceExhausted is returned when the pool has no usable host
	// address left for another node.
	ErrAddressSpaceExhausted = errors.New("address space exhausted")

	// ErrUnsupportedPrefix is returned for non-IPv4 blocks.
	ErrUnsupportedPrefix = errors.New("only IPv4 prefixes are supported")

	// ErrMACGeneration is returned when no unique MAC address could be
	// generated within the configured number of attempts.
	ErrMACGeneration = errors.New("could not generate unique MAC address")
)

// FirstWorkerID is the worker id handed to the first identity of a pool.
// The coordinator is allocated first and therefore owns it.
const FirstWorkerID WorkerID = 0

// AddressPool is the CIDR block under management together with everything
// already issued from it during the current run.
type AddressPool struct {
	prefix netip.Prefix

	// offset of the next candidate host relative to the network address
	next uint32

	reserved   map[netip.Addr]struct{}
	issuedIPs  map[netip.Addr]struct{}
	issuedMACs map[MAC]struct{}

	nextID WorkerID
}

// PoolOption configures an AddressPool
type PoolOption func(*AddressPool)

// WithReserved excludes addresses from allocation, e.g. the host side of
// the bridge the nodes are attached to. Addresses outside the block, and
// the network and broadcast addresses, are never issued anyway and are
// ignored.
func WithReserved(addrs ...netip.Addr) PoolOption {
	return func(p *AddressPool) {
		for _, addr := range addrs {
			if p.isHost(addr) {
				p.reserved[addr] = struct{}{}
			}
		}
	}
}

// NewAddressPool parses cidr and returns an empty pool for it. Host bits in
// cidr are ignored ("10.0.0.7/24" manages 10.0.0.0/24).
func NewAddressPool(cidr string, opts ...PoolOption) (*AddressPool, error) {
	prefix, err := netip.ParsePrefix(cidr)
	if err != nil {
		return nil, fmt.Errorf("parse cidr %q: %w", cidr, err)
	}
	if !prefix.Addr().Is4() {
		return nil, fmt.Errorf("cidr %q: %w", cidr, ErrUnsupportedPrefix)
	}

	p := &AddressPool{
		prefix:     prefix.Masked(),
		next:       1,
		reserved:   make(map[netip.Addr]struct{}),
		issuedIPs:  make(map[netip.Addr]struct{}),
		issuedMACs: make(map[MAC]struct{}),
		nextID:     FirstWorkerID,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Prefix returns the managed block
func (p *AddressPool) Prefix() netip.Prefix {
	return p.prefix
}

// size is the number of addresses in the block, network and broadcast included
func (p *AddressPool) size() uint64 {
	return uint64(1) << (32 - p.prefix.Bits())
}

// lastHostOffset is the highest usable offset. Blocks of one or two
// addresses have no usable host (0 is returned).
func (p *AddressPool) lastHostOffset() uint32 {
	size := p.size()
	if size <= 2 {
		return 0
	}
	return uint32(size - 2)
}

// isHost reports whether addr is a usable host address of the block
func (p *AddressPool) isHost(addr netip.Addr) bool {
	if !addr.Is4() || !p.prefix.Contains(addr) {
		return false
	}
	offset := toUint32(addr) - toUint32(p.prefix.Addr())
	return offset >= 1 && offset <= p.lastHostOffset()
}

func toUint32(addr netip.Addr) uint32 {
	b := addr.As4()
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

// Capacity returns how many identities the pool can issue in total
func (p *AddressPool) Capacity() int {
	last := p.lastHostOffset()
	if last == 0 {
		return 0
	}
	return int(last) - len(p.reserved)
}

// Issued returns how many identities have been issued so far
func (p *AddressPool) Issued() int {
	return len(p.issuedIPs)
}

// Remaining returns how many identities can still be issued
func (p *AddressPool) Remaining() int {
	return p.Capacity() - p.Issued()
}

// Contains reports whether addr lies inside the managed block
func (p *AddressPool) Contains(addr netip.Addr) bool {
	return p.prefix.Contains(addr)
}

// IsIssued reports whether addr was already handed out from this pool
func (p *AddressPool) IsIssued(addr netip.Addr) bool {
	_, ok := p.issuedIPs[addr]
	return ok
}

// CheckCapacity fails with ErrAddressSpaceExhausted when fewer than n more
// identities can be issued. Allocation itself never pre-validates; this is
// for callers that want to reject an oversized topology up front.
func (p *AddressPool) CheckCapacity(n int) error {
	if remaining := p.Remaining(); n > remaining {
		return fmt.Errorf("%s: %d nodes requested, %d addresses left: %w",
			p.prefix, n, remaining, ErrAddressSpaceExhausted)
	}
	return nil
}

// candidate returns the next free host address at or after the cursor and
// the cursor position following it. The pool is not modified.
func (p *AddressPool) candidate() (netip.Addr, uint32, error) {
	last := p.lastHostOffset()
	network := toUint32(p.prefix.Addr())

	for offset := p.next; offset != 0 && offset <= last; offset++ {
		v := network + offset
		addr := netip.AddrFrom4([4]byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)})
		if _, reserved := p.reserved[addr]; reserved {
			continue
		}
		if _, issued := p.issuedIPs[addr]; issued {
			continue
		}
		return addr, offset + 1, nil
	}

	return netip.Addr{}, 0, fmt.Errorf("%s: all %d usable addresses issued: %w",
		p.prefix, p.Capacity(), ErrAddressSpaceExhausted)
}

// commit records an identity as issued and advances the cursors
func (p *AddressPool) commit(addr netip.Addr, mac MAC, next uint32) WorkerID {
	p.issuedIPs[addr] = struct{}{}
	p.issuedMACs[mac] = struct{}{}
	p.next = next

	id := p.nextID
	p.nextID++
	return id
}

func (p *AddressPool) macIssued(mac MAC) bool {
	_, ok := p.issuedMACs[mac]
	return ok
}
