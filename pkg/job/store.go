package job

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hpclab/redshield/pkg/comm"
)

// StoreDescriptor describes one node-local storage tier: a mount path
// that names the tier, a communicator joining the ranks that share the
// underlying device, and an enabled flag.
type StoreDescriptor struct {
	Name    string // reduced absolute path, identifies the tier
	Type    string // informational: "ram", "ssd", "bb"
	Enabled bool
	Comm    comm.Comm // ranks sharing this store instance
}

// Ensure creates the tier's base directory and verifies it is writable.
func (s *StoreDescriptor) Ensure() error {
	if err := os.MkdirAll(s.Name, 0755); err != nil {
		return fmt.Errorf("failed to create store directory %s: %w", s.Name, err)
	}
	probe := filepath.Join(s.Name, ".probe")
	if err := os.WriteFile(probe, nil, 0644); err != nil {
		return fmt.Errorf("store %s is not writable: %w", s.Name, err)
	}
	os.Remove(probe)
	return nil
}

// StoreSet is the ordered registry of storage tiers. Order is identical
// on every rank; descriptors are addressed by index once resolved.
type StoreSet struct {
	stores []StoreDescriptor
}

// NewStoreSet builds a registry, reducing each store path.
func NewStoreSet(stores []StoreDescriptor) *StoreSet {
	set := &StoreSet{stores: make([]StoreDescriptor, len(stores))}
	copy(set.stores, stores)
	for i := range set.stores {
		set.stores[i].Name = filepath.Clean(set.stores[i].Name)
	}
	return set
}

// Len returns the number of registered stores.
func (s *StoreSet) Len() int { return len(s.stores) }

// Get returns the descriptor at index, or nil when out of range.
func (s *StoreSet) Get(index int) *StoreDescriptor {
	if index < 0 || index >= len(s.stores) {
		return nil
	}
	return &s.stores[index]
}

// IndexFromName returns the index of the store whose name matches the
// reduced path, or -1.
func (s *StoreSet) IndexFromName(name string) int {
	name = filepath.Clean(name)
	for i := range s.stores {
		if s.stores[i].Name == name {
			return i
		}
	}
	return -1
}

// IndexFromChildPath returns the index of the store whose name is an
// ancestor of dir, or -1. Restart-time recovery resolves stores this
// way because only the discovered directory is known.
func (s *StoreSet) IndexFromChildPath(dir string) int {
	dir = filepath.Clean(dir)
	for i := range s.stores {
		name := s.stores[i].Name
		if dir == name || strings.HasPrefix(dir, name+string(filepath.Separator)) {
			return i
		}
	}
	return -1
}
