package netalloc

import (
	"fmt"
	"net"
	"net/netip"
	"strconv"
)

// WorkerID is the numeric id a node is known by inside the cluster
type WorkerID uint64

// String returns the decimal representation of the id
func (id WorkerID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// MAC is a 48-bit hardware address. It is a value type so identities can be
// copied without sharing backing storage.
type MAC [6]byte

// String formats the address as colon separated lowercase hex
func (m MAC) String() string {
	return net.HardwareAddr(m[:]).String()
}

// HardwareAddr returns a freshly allocated net.HardwareAddr copy
func (m MAC) HardwareAddr() net.HardwareAddr {
	hw := make(net.HardwareAddr, len(m))
	copy(hw, m[:])
	return hw
}

// IsLocallyAdministered reports whether the U/L bit is set
func (m MAC) IsLocallyAdministered() bool {
	return m[0]&0x02 != 0
}

// IsMulticast reports whether the I/G bit is set
func (m MAC) IsMulticast() bool {
	return m[0]&0x01 != 0
}

// ParseMAC parses a 48-bit hardware address in any format net.ParseMAC accepts
func ParseMAC(s string) (MAC, error) {
	hw, err := net.ParseMAC(s)
	if err != nil {
		return MAC{}, err
	}
	if len(hw) != 6 {
		return MAC{}, fmt.Errorf("mac %q: expected 6 octets, got %d", s, len(hw))
	}
	var m MAC
	copy(m[:], hw)
	return m, nil
}

// NodeIdentity is the network identity allocated to one node. It is
// immutable once created.
type NodeIdentity struct {
	ip        netip.Addr
	mac       MAC
	id        WorkerID
	parent    WorkerID
	hasParent bool
}

// IP returns the node's address
func (n NodeIdentity) IP() netip.Addr { return n.ip }

// MAC returns the node's hardware address
func (n NodeIdentity) MAC() MAC { return n.mac }

// WorkerID returns the node's worker id
func (n NodeIdentity) WorkerID() WorkerID { return n.id }

// Parent returns the parent's worker id, if the node has one
func (n NodeIdentity) Parent() (WorkerID, bool) {
	return n.parent, n.hasParent
}

// IsZero reports whether n is the zero identity (never allocated)
func (n NodeIdentity) IsZero() bool {
	return !n.ip.IsValid()
}

func (n NodeIdentity) String() string {
	if n.IsZero() {
		return "<none>"
	}
	if n.hasParent {
		return fmt.Sprintf("worker %d (%s, %s, parent %d)", n.id, n.ip, n.mac, n.parent)
	}
	return fmt.Sprintf("worker %d (%s, %s)", n.id, n.ip, n.mac)
}
