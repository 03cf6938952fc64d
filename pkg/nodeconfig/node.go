// Package nodeconfig turns a node's allocated identity and declared sources
// into the configuration document the node process reads at startup.
package nodeconfig

import (
	"math"

	"github.com/ls-1801/VMLauncher/pkg/netalloc"
)

// Fixed ports every node listens on. They are not allocated per node, so two
// nodes sharing a host address would collide.
const (
	DataPort        = 8432
	RPCPort         = 8433
	CoordinatorPort = 8434
)

// MaxSlots is the slot ceiling written to every node. Slot accounting is
// effectively disabled by advertising the largest count a 32-bit reader can
// hold.
const MaxSlots = math.MaxInt32

// Role distinguishes the coordinator from workers
type Role int

const (
	// RoleWorker - a node executing queries under a parent
	RoleWorker Role = iota
	// RoleCoordinator - the root node every worker registers with
	RoleCoordinator
)

// String returns the string representation of a Role
func (r Role) String() string {
	switch r {
	case RoleCoordinator:
		return "coordinator"
	case RoleWorker:
		return "worker"
	default:
		return "unknown"
	}
}

// documentKeys are written by the default template for every node
var documentKeys = map[string]bool{
	"logLevel":        true,
	"localWorkerIp":   true,
	"coordinatorIp":   true,
	"numberOfSlots":   true,
	"workerId":        true,
	"parentId":        true,
	"dataPort":        true,
	"rpcPort":         true,
	"coordinatorPort": true,
	"physicalSources": true,
}

// IsDocumentKey reports whether key is one the rendered document already
// carries. An extra item using it would produce a duplicate key.
func IsDocumentKey(key string) bool {
	return documentKeys[key]
}

// ConfigItem is a single key/value pair inserted verbatim into a document
type ConfigItem struct {
	Key   string
	Value string
}

// PhysicalSource is a data source attached to a worker
type PhysicalSource struct {
	Type         string
	LogicalName  string
	PhysicalName string
	Config       []ConfigItem
}

// NodeSpec is everything needed to render one node's configuration
type NodeSpec struct {
	Name     string
	Role     Role
	Identity netalloc.NodeIdentity

	// Parent is the coordinator's identity for workers and the zero
	// identity for the coordinator itself.
	Parent netalloc.NodeIdentity

	LogLevel    string
	Sources     []PhysicalSource
	Extra       []ConfigItem
	Destination string
}

// HasParent reports whether the node registers with a parent
func (s NodeSpec) HasParent() bool {
	return s.Role != RoleCoordinator && !s.Parent.IsZero()
}

// RenderedConfig is the output of a render: the document and where it goes
type RenderedConfig struct {
	Node        string
	Content     []byte
	Destination string
}
