package launcher

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ls-1801/VMLauncher/pkg/netalloc"
	"github.com/ls-1801/VMLauncher/pkg/nodeconfig"
	"github.com/ls-1801/VMLauncher/pkg/procmgr"
)

// Member is one node of a running fleet
type Member struct {
	Name       string
	Role       nodeconfig.Role
	Identity   netalloc.NodeIdentity
	Parent     string // member name, empty for the coordinator
	Spec       nodeconfig.NodeSpec
	ConfigPath string
	Handle     *procmgr.Handle
}

// Fleet is the set of nodes of one run in start order, plus the
// worker -> parent edges used to order teardown. Members are added on the
// run goroutine only; the mutex guards snapshot reads and error records.
type Fleet struct {
	mu      sync.Mutex
	members []*Member
	byName  map[string]*Member
	errs    map[string][]error
}

// NewFleet creates an empty fleet
func NewFleet() *Fleet {
	return &Fleet{
		byName: make(map[string]*Member),
		errs:   make(map[string][]error),
	}
}

// Add appends m in start order. The parent, if any, must already be present.
func (f *Fleet) Add(m *Member) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.byName[m.Name]; ok {
		return fmt.Errorf("fleet member %q already exists", m.Name)
	}
	if m.Parent != "" {
		if _, ok := f.byName[m.Parent]; !ok {
			return fmt.Errorf("fleet member %q: parent %q not found", m.Name, m.Parent)
		}
	}
	f.members = append(f.members, m)
	f.byName[m.Name] = m
	return nil
}

// Get returns the member with the given name
func (f *Fleet) Get(name string) (*Member, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.byName[name]
	return m, ok
}

// Members returns a snapshot in start order
func (f *Fleet) Members() []*Member {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*Member, len(f.members))
	copy(out, f.members)
	return out
}

// Len returns the number of members
func (f *Fleet) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.members)
}

// Coordinator returns the coordinator member, nil if none was added
func (f *Fleet) Coordinator() *Member {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.members {
		if m.Role == nodeconfig.RoleCoordinator {
			return m
		}
	}
	return nil
}

// Workers returns the worker members in start order
func (f *Fleet) Workers() []*Member {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*Member
	for _, m := range f.members {
		if m.Role == nodeconfig.RoleWorker {
			out = append(out, m)
		}
	}
	return out
}

// ShutdownOrder groups members by decreasing depth in the parent tree.
// Every member of a group is stopped before any member of the next; within
// a group members keep start order.
func (f *Fleet) ShutdownOrder() [][]*Member {
	f.mu.Lock()
	defer f.mu.Unlock()

	depth := make(map[string]int, len(f.members))
	var depthOf func(m *Member) int
	depthOf = func(m *Member) int {
		if d, ok := depth[m.Name]; ok {
			return d
		}
		d := 0
		if p, ok := f.byName[m.Parent]; ok && m.Parent != "" {
			d = depthOf(p) + 1
		}
		depth[m.Name] = d
		return d
	}

	groups := make(map[int][]*Member)
	for _, m := range f.members {
		d := depthOf(m)
		groups[d] = append(groups[d], m)
	}

	levels := make([]int, 0, len(groups))
	for d := range groups {
		levels = append(levels, d)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(levels)))

	order := make([][]*Member, 0, len(levels))
	for _, d := range levels {
		order = append(order, groups[d])
	}
	return order
}

// RecordError attaches err to the named member
func (f *Fleet) RecordError(name string, err error) {
	if err == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[name] = append(f.errs[name], err)
}

// Errors returns the errors recorded for the named member
func (f *Fleet) Errors(name string) []error {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]error, len(f.errs[name]))
	copy(out, f.errs[name])
	return out
}
