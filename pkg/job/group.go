package job

import (
	"github.com/hpclab/redshield/pkg/comm"
)

// GroupDescriptor names a failure domain and carries the communicator
// joining the ranks that share it.
type GroupDescriptor struct {
	Name string
	Comm comm.Comm
}

// Size returns the number of ranks in this failure group.
func (g *GroupDescriptor) Size() int { return g.Comm.Size() }

// Rank returns the caller's rank within the group.
func (g *GroupDescriptor) Rank() int { return g.Comm.Rank() }

// GroupSet is the registry of failure groups, keyed by name.
type GroupSet struct {
	groups map[string]*GroupDescriptor
}

// NewGroupSet builds a registry from the given descriptors.
func NewGroupSet(groups []GroupDescriptor) *GroupSet {
	set := &GroupSet{groups: make(map[string]*GroupDescriptor, len(groups))}
	for i := range groups {
		g := groups[i]
		set.groups[g.Name] = &g
	}
	return set
}

// Get returns the group named name, or nil.
func (s *GroupSet) Get(name string) *GroupDescriptor {
	return s.groups[name]
}
