package redundancy

import (
	"fmt"

	"github.com/hpclab/redshield/pkg/erasure"
	"github.com/hpclab/redshield/pkg/job"
	"github.com/hpclab/redshield/pkg/kvtree"
	"github.com/hpclab/redshield/pkg/log"
	"github.com/hpclab/redshield/pkg/metrics"
)

// Table is the ordered collection of redundancy descriptors built from
// the job configuration. Iteration order is the ascending key order of
// the CKPT entries, identical on every rank.
type Table struct {
	descs []*Descriptor
}

// BuildTable constructs every descriptor named under the CKPT subtree
// of cfg, in ascending key order with sequential indices. Collective.
// When any construction fails the table build reports failure, but the
// table is returned with every descriptor in a freeable state.
func BuildTable(ctx *job.Context, engine erasure.Engine, cfg *kvtree.Tree) (*Table, error) {
	logger := log.WithComponent("reddesc")

	table := &Table{}
	descs := cfg.Get(KeyCkpt)

	allValid := true
	for index, name := range descs.Keys() {
		d, err := BuildDescriptor(ctx, engine, index, descs.Get(name))
		if err != nil {
			if ctx.Rank() == 0 {
				logger.Error().Err(err).Str("name", name).Msg("failed to set up redundancy descriptor")
			}
			allValid = false
		}
		table.descs = append(table.descs, d)
	}

	if ctx.Rank() == 0 {
		metrics.DescriptorsEnabled.Set(float64(table.enabledCount()))
	}

	if !allValid {
		return table, fmt.Errorf("%w: one or more redundancy descriptors failed to build", ErrConfigInvalid)
	}
	return table, nil
}

// Len returns the number of descriptors in the table.
func (t *Table) Len() int { return len(t.descs) }

// Get returns the descriptor at index, or nil.
func (t *Table) Get(index int) *Descriptor {
	if index < 0 || index >= len(t.descs) {
		return nil
	}
	return t.descs[index]
}

// Select returns the descriptor to apply to checkpoint id: the enabled
// one with the largest interval that evenly divides id. Strict greater-
// than keeps the first found on ties. Returns nil when none qualifies.
func (t *Table) Select(id int) *Descriptor {
	var best *Descriptor
	interval := 0
	for _, d := range t.descs {
		if d.Enabled && d.Interval > interval && id%d.Interval == 0 {
			best = d
			interval = d.Interval
		}
	}
	return best
}

// Free releases every descriptor's erasure scheme. The first error is
// returned; freeing continues past failures.
func (t *Table) Free() error {
	var firstErr error
	for _, d := range t.descs {
		if err := d.Free(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (t *Table) enabledCount() int {
	n := 0
	for _, d := range t.descs {
		if d.Enabled {
			n++
		}
	}
	return n
}
