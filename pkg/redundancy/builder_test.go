package redundancy

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpclab/redshield/pkg/cache"
	"github.com/hpclab/redshield/pkg/comm"
	"github.com/hpclab/redshield/pkg/erasure"
	"github.com/hpclab/redshield/pkg/job"
	"github.com/hpclab/redshield/pkg/kvtree"
	"github.com/hpclab/redshield/pkg/types"
)

func descConfig(pairs map[string]string) *kvtree.Tree {
	cfg := kvtree.New()
	for k, v := range pairs {
		cfg.Set(k, v)
	}
	return cfg
}

func buildOnAllRanks(t *testing.T, n, nodes int, storeDir string, cfg func(rank int) *kvtree.Tree) []*Descriptor {
	t.Helper()
	comms, err := comm.NewWorld(n)
	require.NoError(t, err)

	descs := make([]*Descriptor, n)
	var mu sync.Mutex
	requireAll(t, runRanks(comms, func(world comm.Comm) error {
		ctx, err := newRankContext(world, nodes, storeDir, job.Defaults{SetSize: 2})
		if err != nil {
			return err
		}
		d, _ := BuildDescriptor(ctx, erasure.NewLocal(), 0, cfg(world.Rank()))
		mu.Lock()
		descs[world.Rank()] = d
		mu.Unlock()
		return nil
	}))
	return descs
}

func TestBuildXorDescriptor(t *testing.T) {
	storeDir := t.TempDir()
	descs := buildOnAllRanks(t, 4, 2, storeDir, func(int) *kvtree.Tree {
		return descConfig(map[string]string{
			KeyType:     "xor",
			KeySetSize:  "2",
			KeyInterval: "3",
		})
	})

	for rank, d := range descs {
		assert.True(t, d.Enabled, "rank %d", rank)
		assert.Equal(t, types.CopyXor, d.CopyType.Kind, "rank %d", rank)
		assert.Equal(t, 2, d.CopyType.SetSize, "rank %d", rank)
		assert.Equal(t, 3, d.Interval, "rank %d", rank)
		assert.Equal(t, 0, d.StoreIndex, "rank %d", rank)
		assert.Equal(t, cache.JobDir(storeDir, "tester", "t1"), d.Directory, "rank %d", rank)
		assert.NotNil(t, d.scheme, "rank %d", rank)
		require.NoError(t, d.Free())
	}
}

func TestSingleNodeForcesSingle(t *testing.T) {
	storeDir := t.TempDir()

	// all four ranks on one node: the NODE group spans the world
	descs := buildOnAllRanks(t, 4, 1, storeDir, func(int) *kvtree.Tree {
		return descConfig(map[string]string{KeyType: "PARTNER"})
	})

	for rank, d := range descs {
		assert.True(t, d.Enabled, "rank %d", rank)
		assert.Equal(t, types.CopySingle, d.CopyType.Kind, "rank %d", rank)
		d.Free()
	}
}

func TestUnknownStoreDisablesEverywhere(t *testing.T) {
	storeDir := t.TempDir()
	descs := buildOnAllRanks(t, 4, 2, storeDir, func(int) *kvtree.Tree {
		return descConfig(map[string]string{KeyStore: "/no/such/path"})
	})

	for rank, d := range descs {
		assert.False(t, d.Enabled, "rank %d", rank)
		assert.Equal(t, -1, d.StoreIndex, "rank %d", rank)
		assert.Nil(t, d.scheme, "no scheme may be allocated, rank %d", rank)
		require.NoError(t, d.Free())
	}
}

func TestUnknownCopyTypeDisablesEverywhere(t *testing.T) {
	storeDir := t.TempDir()
	descs := buildOnAllRanks(t, 2, 2, storeDir, func(int) *kvtree.Tree {
		return descConfig(map[string]string{KeyType: "RAID6"})
	})

	for rank, d := range descs {
		assert.False(t, d.Enabled, "rank %d", rank)
		assert.Nil(t, d.scheme, "rank %d", rank)
	}
}

func TestUnknownGroupDisablesEverywhere(t *testing.T) {
	storeDir := t.TempDir()
	descs := buildOnAllRanks(t, 2, 2, storeDir, func(int) *kvtree.Tree {
		return descConfig(map[string]string{KeyGroup: "RACK"})
	})

	for rank, d := range descs {
		assert.False(t, d.Enabled, "rank %d", rank)
	}
}

func TestDissentDisablesEverywhere(t *testing.T) {
	storeDir := t.TempDir()

	comms, err := comm.NewWorld(4)
	require.NoError(t, err)

	descs := make([]*Descriptor, 4)
	buildErrs := make([]error, 4)
	var mu sync.Mutex
	requireAll(t, runRanks(comms, func(world comm.Comm) error {
		ctx, err := newRankContext(world, 2, storeDir, job.Defaults{SetSize: 2})
		if err != nil {
			return err
		}

		// one rank shows up with no configuration at all
		var cfg *kvtree.Tree
		if world.Rank() != 2 {
			cfg = descConfig(map[string]string{KeyType: "xor"})
		}

		d, berr := BuildDescriptor(ctx, erasure.NewLocal(), 0, cfg)
		mu.Lock()
		descs[world.Rank()] = d
		buildErrs[world.Rank()] = berr
		mu.Unlock()
		return nil
	}))

	for rank := range descs {
		assert.Error(t, buildErrs[rank], "rank %d", rank)
		assert.ErrorIs(t, buildErrs[rank], ErrConsensus, "rank %d", rank)
		assert.False(t, descs[rank].Enabled, "rank %d", rank)
	}
}

func TestDisabledInConfig(t *testing.T) {
	storeDir := t.TempDir()
	descs := buildOnAllRanks(t, 2, 2, storeDir, func(int) *kvtree.Tree {
		return descConfig(map[string]string{KeyEnabled: "0", KeyType: "xor"})
	})

	for rank, d := range descs {
		assert.False(t, d.Enabled, "rank %d", rank)
		assert.Nil(t, d.scheme, "rank %d", rank)
	}
}

func TestSerializeOmitsRuntimeIndices(t *testing.T) {
	storeDir := t.TempDir()
	descs := buildOnAllRanks(t, 2, 2, storeDir, func(int) *kvtree.Tree {
		return descConfig(map[string]string{
			KeyType:     "xor",
			KeyInterval: "4",
			KeyOutput:   "1",
		})
	})
	defer func() {
		for _, d := range descs {
			d.Free()
		}
	}()

	hash := kvtree.New()
	descs[0].ToKVTree(hash)

	v, ok := hash.Value(KeyEnabled)
	require.True(t, ok)
	assert.Equal(t, "1", v)

	v, ok = hash.Value(KeyInterval)
	require.True(t, ok)
	assert.Equal(t, "4", v)

	v, ok = hash.Value(KeyOutput)
	require.True(t, ok)
	assert.Equal(t, "1", v)

	v, ok = hash.Value(KeyType)
	require.True(t, ok)
	assert.Equal(t, "XOR", v)

	v, ok = hash.Value(KeyStore)
	require.True(t, ok)
	assert.Equal(t, storeDir, v)

	_, ok = hash.Value("INDEX")
	assert.False(t, ok)
	_, ok = hash.Value("STORE_INDEX")
	assert.False(t, ok)
}
