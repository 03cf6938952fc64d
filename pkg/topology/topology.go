// Package topology loads the declarative description of a benchmark fleet:
// the address block, the coordinator and the workers with their sources.
package topology

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ls-1801/VMLauncher/pkg/nodeconfig"
)

// ErrInvalidTopology is wrapped by every validation failure
var ErrInvalidTopology = errors.New("invalid topology")

// validName matches names usable as a config file name
var validName = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// DefaultLogLevel is used when neither the topology nor the node sets one
const DefaultLogLevel = "LOG_INFO"

// Topology defines the fleet to launch
type Topology struct {
	// Address block node identities are carved from (e.g. "10.0.0.0/24")
	CIDR string `yaml:"cidr"`

	// Addresses inside the block that must never be handed to a node,
	// typically the host side of the bridge
	Reserved []string `yaml:"reserved"`

	// Log level written into every node's config unless overridden
	LogLevel string `yaml:"logLevel"`

	// The root node
	Coordinator NodeDecl `yaml:"coordinator"`

	// Workers in start order
	Workers []NodeDecl `yaml:"workers"`

	// Internal: absolute path of the file this was loaded from
	path string `yaml:"-"`
}

// NodeDecl declares a single node
type NodeDecl struct {
	// Unique node name, also used for the config file name
	Name string `yaml:"name"`

	// Name of the node this one registers with. Defaults to the coordinator.
	Parent string `yaml:"parent"`

	// Optional per-node log level
	LogLevel string `yaml:"logLevel"`

	// Key/value pairs copied verbatim into the node's config, in order
	Extra ConfigItems `yaml:"extra"`

	// Optional query engine tuning
	QueryProcessing *QueryProcessingDecl `yaml:"queryProcessing"`

	// Physical sources attached to the node
	Sources []SourceDecl `yaml:"sources"`
}

// QueryProcessingDecl mirrors nodeconfig.QueryProcessing
type QueryProcessingDecl struct {
	NumberOfWorkerThreads    *int `yaml:"numberOfWorkerThreads"`
	TotalNumberOfBuffers     *int `yaml:"totalNumberOfBuffers"`
	NumberOfSourceBuffers    *int `yaml:"numberOfSourceBuffers"`
	NumberOfBuffersPerThread *int `yaml:"numberOfBuffersPerThread"`
	BufferSize               *int `yaml:"bufferSize"`
}

// SourceDecl is either a raw source block or a tcp shortcut, never both
type SourceDecl struct {
	Type               string      `yaml:"type"`
	LogicalSourceName  string      `yaml:"logicalSourceName"`
	PhysicalSourceName string      `yaml:"physicalSourceName"`
	Configuration      ConfigItems `yaml:"configuration"`

	TCP *TCPSourceDecl `yaml:"tcp"`
}

// TCPSourceDecl is the shorthand for a socket source
type TCPSourceDecl struct {
	LogicalSourceName  string        `yaml:"logicalSourceName"`
	PhysicalSourceName string        `yaml:"physicalSourceName"`
	SocketHost         string        `yaml:"socketHost"`
	SocketPort         uint16        `yaml:"socketPort"`
	FlushInterval      time.Duration `yaml:"flushInterval"`

	// "CSV" (default) or "NES"
	Format string `yaml:"format"`

	// Size field width for the NES format
	SizeBytes int `yaml:"sizeBytes"`
}

// Load reads, parses and validates a topology file
func Load(path string) (*Topology, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read topology: %w", err)
	}

	topo, err := Parse(data)
	if err != nil {
		return nil, err
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve topology path: %w", err)
	}
	topo.path = absPath

	return topo, nil
}

// Parse decodes and validates a topology document
func Parse(data []byte) (*Topology, error) {
	var topo Topology
	if err := yaml.Unmarshal(data, &topo); err != nil {
		return nil, fmt.Errorf("parse topology: %w", err)
	}

	if err := topo.Validate(); err != nil {
		return nil, fmt.Errorf("validate topology: %w", err)
	}

	return &topo, nil
}

// Path returns the absolute path the topology was loaded from, if any
func (t *Topology) Path() string {
	return t.path
}

// Validate checks the fleet shape: exactly one coordinator, unique names,
// every worker parented to the coordinator and well-formed sources. Empty
// worker parents and log levels are filled in.
func (t *Topology) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidTopology, fmt.Sprintf(format, args...))
	}

	if t.CIDR == "" {
		return invalid("cidr is required")
	}
	prefix, err := netip.ParsePrefix(t.CIDR)
	if err != nil {
		return invalid("cidr %q: %v", t.CIDR, err)
	}
	if !prefix.Addr().Is4() {
		return invalid("cidr %q: only IPv4 is supported", t.CIDR)
	}

	if _, err := t.ReservedAddrs(); err != nil {
		return invalid("%v", err)
	}

	if t.LogLevel == "" {
		t.LogLevel = DefaultLogLevel
	}

	if t.Coordinator.Name == "" {
		return invalid("coordinator.name is required")
	}
	if err := checkName(t.Coordinator.Name); err != nil {
		return invalid("coordinator: %v", err)
	}
	if t.Coordinator.Parent != "" {
		return invalid("coordinator %q cannot have a parent", t.Coordinator.Name)
	}
	if err := t.Coordinator.validateSources(); err != nil {
		return invalid("%v", err)
	}
	if err := t.Coordinator.validateExtra(); err != nil {
		return invalid("%v", err)
	}

	seen := map[string]bool{t.Coordinator.Name: true}
	for i := range t.Workers {
		w := &t.Workers[i]
		if w.Name == "" {
			return invalid("workers[%d].name is required", i)
		}
		if err := checkName(w.Name); err != nil {
			return invalid("workers[%d]: %v", i, err)
		}
		if seen[w.Name] {
			return invalid("duplicate node name %q", w.Name)
		}
		seen[w.Name] = true

		if w.Parent == "" {
			w.Parent = t.Coordinator.Name
		}
		if w.Parent != t.Coordinator.Name {
			return invalid("worker %q: parent %q is not the coordinator %q", w.Name, w.Parent, t.Coordinator.Name)
		}
		if err := w.validateSources(); err != nil {
			return invalid("%v", err)
		}
		if err := w.validateExtra(); err != nil {
			return invalid("%v", err)
		}
	}

	return nil
}

// ReservedAddrs parses the reserved address list
func (t *Topology) ReservedAddrs() ([]netip.Addr, error) {
	addrs := make([]netip.Addr, 0, len(t.Reserved))
	for _, r := range t.Reserved {
		addr, err := netip.ParseAddr(r)
		if err != nil {
			return nil, fmt.Errorf("reserved address %q: %w", r, err)
		}
		addrs = append(addrs, addr)
	}
	return addrs, nil
}

// NodeCount returns the number of nodes including the coordinator
func (t *Topology) NodeCount() int {
	return 1 + len(t.Workers)
}

// Nodes returns the coordinator followed by the workers
func (t *Topology) Nodes() []NodeDecl {
	nodes := make([]NodeDecl, 0, t.NodeCount())
	nodes = append(nodes, t.Coordinator)
	return append(nodes, t.Workers...)
}

// EffectiveLogLevel returns the node's log level or the fleet default
func (t *Topology) EffectiveLogLevel(n NodeDecl) string {
	if n.LogLevel != "" {
		return n.LogLevel
	}
	if t.LogLevel != "" {
		return t.LogLevel
	}
	return DefaultLogLevel
}

func (n NodeDecl) validateSources() error {
	for i, s := range n.Sources {
		if _, err := s.PhysicalSource(); err != nil {
			return fmt.Errorf("node %q sources[%d]: %w", n.Name, i, err)
		}
	}
	return nil
}

// checkName rejects names that would escape the config directory
func checkName(name string) error {
	if !validName.MatchString(name) || name == "." || name == ".." {
		return fmt.Errorf("node name %q may only contain letters, digits, '.', '_' and '-'", name)
	}
	return nil
}

// validateExtra rejects extra keys the document already has or that repeat
func (n NodeDecl) validateExtra() error {
	seen := map[string]bool{}
	for _, item := range n.ExtraItems() {
		if nodeconfig.IsDocumentKey(item.Key) {
			return fmt.Errorf("node %q: extra key %q is set by the launcher", n.Name, item.Key)
		}
		if seen[item.Key] {
			return fmt.Errorf("node %q: duplicate extra key %q", n.Name, item.Key)
		}
		seen[item.Key] = true
	}
	return nil
}

// ExtraItems returns the verbatim extras followed by query processing items
func (n NodeDecl) ExtraItems() []nodeconfig.ConfigItem {
	items := append([]nodeconfig.ConfigItem(nil), n.Extra...)
	if n.QueryProcessing != nil {
		items = append(items, nodeconfig.QueryProcessing(*n.QueryProcessing).ConfigItems()...)
	}
	return items
}

// PhysicalSources converts all source declarations
func (n NodeDecl) PhysicalSources() ([]nodeconfig.PhysicalSource, error) {
	sources := make([]nodeconfig.PhysicalSource, 0, len(n.Sources))
	for i, s := range n.Sources {
		ps, err := s.PhysicalSource()
		if err != nil {
			return nil, fmt.Errorf("sources[%d]: %w", i, err)
		}
		sources = append(sources, ps)
	}
	return sources, nil
}

// PhysicalSource converts the declaration into a renderable source
func (s SourceDecl) PhysicalSource() (nodeconfig.PhysicalSource, error) {
	if s.TCP != nil {
		if s.Type != "" || s.LogicalSourceName != "" || len(s.Configuration) > 0 {
			return nodeconfig.PhysicalSource{}, errors.New("tcp shorthand cannot be combined with a raw source")
		}
		return s.TCP.source()
	}

	if s.Type == "" {
		return nodeconfig.PhysicalSource{}, errors.New("type is required")
	}
	if s.LogicalSourceName == "" {
		return nodeconfig.PhysicalSource{}, errors.New("logicalSourceName is required")
	}
	physical := s.PhysicalSourceName
	if physical == "" {
		physical = s.LogicalSourceName + "_phy"
	}
	return nodeconfig.PhysicalSource{
		Type:         s.Type,
		LogicalName:  s.LogicalSourceName,
		PhysicalName: physical,
		Config:       append([]nodeconfig.ConfigItem(nil), s.Configuration...),
	}, nil
}

func (d *TCPSourceDecl) source() (nodeconfig.PhysicalSource, error) {
	if d.LogicalSourceName == "" {
		return nodeconfig.PhysicalSource{}, errors.New("tcp.logicalSourceName is required")
	}
	if d.SocketPort == 0 {
		return nodeconfig.PhysicalSource{}, errors.New("tcp.socketPort is required")
	}

	var format nodeconfig.SourceFormat
	switch d.Format {
	case "", "CSV", "csv":
		format = nodeconfig.FormatCSV
	case "NES", "nes":
		if d.SizeBytes <= 0 {
			return nodeconfig.PhysicalSource{}, errors.New("tcp.sizeBytes must be positive for the NES format")
		}
		format = nodeconfig.FormatNES(d.SizeBytes)
	default:
		return nodeconfig.PhysicalSource{}, fmt.Errorf("tcp.format %q (must be CSV or NES)", d.Format)
	}

	return nodeconfig.TCPSource{
		LogicalSourceName:  d.LogicalSourceName,
		PhysicalSourceName: d.PhysicalSourceName,
		SocketHost:         d.SocketHost,
		SocketPort:         d.SocketPort,
		FlushInterval:      d.FlushInterval,
		Format:             format,
	}.PhysicalSource(), nil
}
