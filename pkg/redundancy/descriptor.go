package redundancy

import (
	"github.com/hpclab/redshield/pkg/erasure"
	"github.com/hpclab/redshield/pkg/job"
	"github.com/hpclab/redshield/pkg/kvtree"
	"github.com/hpclab/redshield/pkg/types"
)

// Configuration keys of a redundancy descriptor subtree.
const (
	KeyCkpt      = "CKPT"
	KeyEnabled   = "ENABLED"
	KeyInterval  = "INTERVAL"
	KeyOutput    = "OUTPUT"
	KeyStore     = "STORE"
	KeyDirectory = "DIRECTORY"
	KeyType      = "TYPE"
	KeySetSize   = "SET_SIZE"
	KeyGroup     = "GROUP"
)

// Descriptor is one redundancy policy at runtime: which storage tier it
// encodes into, which scheme family, how often it is eligible, and the
// erasure scheme handle built for it. Descriptors are created by the
// collective builder and never mutated afterwards, except that Enabled
// may be cleared through global agreement.
type Descriptor struct {
	Enabled    bool
	Index      int
	Interval   int
	Output     int // tri-state: -1 unset, 0 no, 1 yes
	StoreName  string
	StoreIndex int
	Directory  string
	CopyType   types.CopyType
	GroupName  string

	scheme erasure.Scheme // nil when unbuilt or freed
}

// newDescriptor returns a descriptor in its zero state.
func newDescriptor() *Descriptor {
	return &Descriptor{
		Enabled:    false,
		Index:      -1,
		Interval:   -1,
		Output:     -1,
		StoreIndex: -1,
	}
}

// Usable reports whether the descriptor can be applied: enabled, bound
// to an enabled store, and holding a built erasure scheme.
func (d *Descriptor) Usable(ctx *job.Context) bool {
	if d == nil || !d.Enabled || d.StoreIndex < 0 || d.scheme == nil {
		return false
	}
	store := ctx.Stores.Get(d.StoreIndex)
	return store != nil && store.Enabled
}

// Store returns the store descriptor this policy encodes into, walking
// the same gate chain as Usable: nil unless the descriptor is enabled,
// its index is in range, and the store itself is enabled.
func (d *Descriptor) Store(ctx *job.Context) *job.StoreDescriptor {
	if d == nil || !d.Enabled {
		return nil
	}
	store := ctx.Stores.Get(d.StoreIndex)
	if store == nil || !store.Enabled {
		return nil
	}
	return store
}

// ToKVTree serializes the descriptor into hash, clearing it first.
// Runtime-dependent indices (INDEX, STORE_INDEX, group binding) are
// deliberately omitted; they are rebuilt from the environment.
func (d *Descriptor) ToKVTree(hash *kvtree.Tree) {
	hash.UnsetAll()

	enabled := 0
	if d.Enabled {
		enabled = 1
	}
	hash.SetInt(KeyEnabled, enabled)
	hash.SetInt(KeyInterval, d.Interval)
	hash.SetInt(KeyOutput, d.Output)

	if d.StoreName != "" {
		hash.Set(KeyStore, d.StoreName)
	}
	if d.Directory != "" {
		hash.Set(KeyDirectory, d.Directory)
	}
	if !d.CopyType.IsZero() {
		hash.Set(KeyType, d.CopyType.String())
	}
}

// Free releases the erasure scheme handle. Safe to call on a descriptor
// that never built one; freeing is idempotent.
func (d *Descriptor) Free() error {
	if d.scheme == nil {
		return nil
	}
	scheme := d.scheme
	d.scheme = nil
	return scheme.Free()
}
