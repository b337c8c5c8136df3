package redundancy

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpclab/redshield/pkg/comm"
	"github.com/hpclab/redshield/pkg/erasure"
	"github.com/hpclab/redshield/pkg/job"
	"github.com/hpclab/redshield/pkg/kvtree"
)

// tableConfig builds a CKPT tree with one entry per (name, fields) pair.
func tableConfig(entries map[string]map[string]string) *kvtree.Tree {
	cfg := kvtree.New()
	descs := cfg.Subtree(KeyCkpt)
	for name, fields := range entries {
		sub := descs.Subtree(name)
		for k, v := range fields {
			sub.Set(k, v)
		}
	}
	return cfg
}

func buildTableOnAllRanks(t *testing.T, n, nodes int, storeDir string, cfg *kvtree.Tree) []*Table {
	t.Helper()
	comms, err := comm.NewWorld(n)
	require.NoError(t, err)

	tables := make([]*Table, n)
	var mu sync.Mutex
	requireAll(t, runRanks(comms, func(world comm.Comm) error {
		ctx, err := newRankContext(world, nodes, storeDir, job.Defaults{SetSize: 2})
		if err != nil {
			return err
		}
		table, err := BuildTable(ctx, erasure.NewLocal(), cfg)
		if err != nil {
			return err
		}
		mu.Lock()
		tables[world.Rank()] = table
		mu.Unlock()
		return nil
	}))
	return tables
}

func TestSelectionByInterval(t *testing.T) {
	storeDir := t.TempDir()
	cfg := tableConfig(map[string]map[string]string{
		"0": {KeyType: "xor", KeyInterval: "2"},
		"1": {KeyType: "xor", KeyInterval: "6"},
	})

	tables := buildTableOnAllRanks(t, 2, 2, storeDir, cfg)
	defer func() {
		for _, table := range tables {
			table.Free()
		}
	}()

	for rank, table := range tables {
		require.Equal(t, 2, table.Len(), "rank %d", rank)

		// id 12 divides by both; the larger interval wins
		d := table.Select(12)
		require.NotNil(t, d, "rank %d", rank)
		assert.Equal(t, 6, d.Interval, "rank %d", rank)

		// id 4 divides only by 2
		d = table.Select(4)
		require.NotNil(t, d, "rank %d", rank)
		assert.Equal(t, 2, d.Interval, "rank %d", rank)

		// id 7 divides by neither
		assert.Nil(t, table.Select(7), "rank %d", rank)
	}
}

func TestSelectionSkipsDisabled(t *testing.T) {
	storeDir := t.TempDir()
	cfg := tableConfig(map[string]map[string]string{
		"0": {KeyType: "xor", KeyInterval: "1"},
		"1": {KeyType: "xor", KeyInterval: "6", KeyStore: "/no/such/path"},
	})

	comms, err := comm.NewWorld(2)
	require.NoError(t, err)

	requireAll(t, runRanks(comms, func(world comm.Comm) error {
		ctx, err := newRankContext(world, 2, storeDir, job.Defaults{SetSize: 2})
		if err != nil {
			return err
		}
		// a descriptor disabled during resolution is not a build error,
		// it just never gets selected
		table, err := BuildTable(ctx, erasure.NewLocal(), cfg)
		defer table.Free()
		if err != nil {
			return err
		}
		if table.Get(1).Enabled {
			t.Errorf("rank %d: descriptor with unknown store should be disabled", world.Rank())
		}

		d := table.Select(12)
		if d == nil || d.Interval != 1 {
			t.Errorf("rank %d: selection should fall back to the enabled descriptor", world.Rank())
		}
		return nil
	}))
}

func TestSelectionTieKeepsFirst(t *testing.T) {
	storeDir := t.TempDir()
	cfg := tableConfig(map[string]map[string]string{
		"0": {KeyType: "xor", KeyInterval: "4"},
		"1": {KeyType: "xor", KeyInterval: "4"},
	})

	tables := buildTableOnAllRanks(t, 1, 1, storeDir, cfg)
	defer tables[0].Free()

	d := tables[0].Select(8)
	require.NotNil(t, d)
	assert.Equal(t, 0, d.Index, "equal intervals resolve to the first in table order")
}

func TestOrderDeterminism(t *testing.T) {
	storeDir := t.TempDir()
	cfg := tableConfig(map[string]map[string]string{
		"zeta":  {KeyType: "xor", KeyInterval: "2"},
		"alpha": {KeyType: "xor", KeyInterval: "3"},
		"mid":   {KeyType: "xor", KeyInterval: "5"},
	})

	first := buildTableOnAllRanks(t, 2, 2, storeDir, cfg)
	second := buildTableOnAllRanks(t, 2, 2, storeDir, cfg)

	for i := 0; i < first[0].Len(); i++ {
		assert.Equal(t, first[0].Get(i).Interval, second[0].Get(i).Interval, "index %d", i)
	}
	// ascending key order: alpha, mid, zeta
	assert.Equal(t, 3, first[0].Get(0).Interval)
	assert.Equal(t, 5, first[0].Get(1).Interval)
	assert.Equal(t, 2, first[0].Get(2).Interval)

	for _, tables := range [][]*Table{first, second} {
		for _, table := range tables {
			table.Free()
		}
	}
}

func TestEmptyTable(t *testing.T) {
	storeDir := t.TempDir()
	tables := buildTableOnAllRanks(t, 1, 1, storeDir, kvtree.New())
	assert.Equal(t, 0, tables[0].Len())
	assert.Nil(t, tables[0].Select(1))
}
