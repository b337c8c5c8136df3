package erasure

import (
	"github.com/hpclab/redshield/pkg/comm"
)

// Direction selects what a set invocation does with its files.
type Direction int

const (
	// Encode produces redundancy artifacts for the added files.
	Encode Direction = iota
	// Rebuild restores missing files from artifacts under the prefix.
	Rebuild
	// Remove deletes the artifacts under the prefix.
	Remove
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case Encode:
		return "encode"
	case Rebuild:
		return "rebuild"
	case Remove:
		return "remove"
	}
	return "unknown"
}

// Scheme is an opaque handle to a redundancy parameterization, owned by
// the redundancy descriptor that created it and freed exactly once.
type Scheme interface {
	Free() error
}

// Set is one invocation of the library over a group of files bound to a
// scheme, a direction, and a path prefix. Add is rank-local; Dispatch,
// Wait, and Free are collective over the world communicator the set was
// created with.
type Set interface {
	// Add registers a rank-local file with the set. Encode only.
	Add(path string) error

	// Dispatch starts the operation. Collective.
	Dispatch() error

	// Wait completes the operation, including any cross-rank phases.
	// Collective.
	Wait() error

	// Free releases the set. Collective.
	Free() error
}

// Engine is the capability interface over an erasure/redundancy
// library. The redundancy core drives it and never sees inside the
// scheme math.
type Engine interface {
	// CreateScheme builds a scheme over the world communicator.
	// failureDomain identifies the caller's failure group; dataBlocks
	// and parityBlocks parameterize the redundancy:
	//
	//	parity == 0              no redundancy
	//	parity >= world size     full replication
	//	otherwise                parity groups of dataBlocks ranks
	//
	// Collective over world.
	CreateScheme(world comm.Comm, failureDomain string, dataBlocks, parityBlocks int) (Scheme, error)

	// CreateSet opens a set over the given prefix. For Rebuild and
	// Remove the scheme may be nil; parameters are discovered from the
	// artifacts on disk. Collective over world.
	CreateSet(world, store comm.Comm, prefix string, dir Direction, scheme Scheme) (Set, error)
}
