package job

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpclab/redshield/pkg/comm"
	"github.com/hpclab/redshield/pkg/types"
)

func singleRank(t *testing.T) comm.Comm {
	t.Helper()
	comms, err := comm.NewWorld(1)
	require.NoError(t, err)
	return comms[0]
}

func TestStoreSetResolution(t *testing.T) {
	set := NewStoreSet([]StoreDescriptor{
		{Name: "/dev/shm/", Enabled: true},
		{Name: "/tmp/ssd", Enabled: true},
	})

	assert.Equal(t, 0, set.IndexFromName("/dev/shm"))
	assert.Equal(t, 1, set.IndexFromName("/tmp/ssd/"))
	assert.Equal(t, -1, set.IndexFromName("/nvme"))

	assert.Equal(t, 0, set.IndexFromChildPath("/dev/shm/alice/scr.1/.scr/scr.dataset.3"))
	assert.Equal(t, 1, set.IndexFromChildPath("/tmp/ssd"))
	assert.Equal(t, -1, set.IndexFromChildPath("/tmp/ssdx/other"))
	assert.Equal(t, -1, set.IndexFromChildPath("/scratch"))
}

func TestStoreEnsure(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "tier")
	s := &StoreDescriptor{Name: dir, Enabled: true}
	require.NoError(t, s.Ensure())

	info, err := filepath.Glob(dir)
	require.NoError(t, err)
	assert.Len(t, info, 1)
}

func TestNewContextDefaults(t *testing.T) {
	world := singleRank(t)
	stores := NewStoreSet([]StoreDescriptor{{Name: "/tmp/cache", Enabled: true, Comm: world}})
	groups := NewGroupSet([]GroupDescriptor{{Name: GroupNode, Comm: world}})

	ctx, err := New(Config{
		World:    world,
		Stores:   stores,
		Groups:   groups,
		Username: "alice",
		JobID:    "42",
	})
	require.NoError(t, err)

	assert.Equal(t, "/tmp/cache", ctx.Defaults.CacheBase)
	assert.Equal(t, types.CopyXor, ctx.Defaults.CopyType.Kind)
	assert.Equal(t, 8, ctx.Defaults.SetSize)
	assert.Equal(t, GroupNode, ctx.Defaults.Group)
	assert.Equal(t, 0, ctx.Rank())
	assert.Equal(t, 1, ctx.Size())
}

func TestNewContextRequiresNodeGroup(t *testing.T) {
	world := singleRank(t)
	stores := NewStoreSet([]StoreDescriptor{{Name: "/tmp/cache", Enabled: true, Comm: world}})

	_, err := New(Config{
		World:  world,
		Stores: stores,
		Groups: NewGroupSet(nil),
	})
	assert.Error(t, err)
}

func TestNewContextRequiresStores(t *testing.T) {
	world := singleRank(t)

	_, err := New(Config{
		World:  world,
		Stores: NewStoreSet(nil),
		Groups: NewGroupSet([]GroupDescriptor{{Name: GroupNode, Comm: world}}),
	})
	assert.Error(t, err)
}
