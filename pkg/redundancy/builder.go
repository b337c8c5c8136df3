package redundancy

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/hpclab/redshield/pkg/cache"
	"github.com/hpclab/redshield/pkg/erasure"
	"github.com/hpclab/redshield/pkg/job"
	"github.com/hpclab/redshield/pkg/kvtree"
	"github.com/hpclab/redshield/pkg/log"
	"github.com/hpclab/redshield/pkg/types"
)

// BuildDescriptor constructs a redundancy descriptor from its
// configuration subtree. Collective: every rank must call it with the
// same subtree and index. On return the descriptor's Enabled flag is
// globally agreed; any rank-local failure disables the descriptor on
// every rank rather than propagating an error.
//
// The returned error is non-nil only when the inputs themselves were
// rejected; a descriptor is still returned in a consistent, freeable
// state in every case.
func BuildDescriptor(ctx *job.Context, engine erasure.Engine, index int, cfg *kvtree.Tree) (*Descriptor, error) {
	logger := log.WithComponent("reddesc")

	// validate inputs locally, then agree before touching anything
	valid := ctx != nil && engine != nil && cfg != nil
	if !valid && ctx == nil {
		// without a context there is no communicator to agree over
		return newDescriptor(), fmt.Errorf("%w: no job context", ErrConfigInvalid)
	}
	allValid, err := ctx.World.AllTrue(valid)
	if err != nil {
		return newDescriptor(), err
	}
	if !allValid {
		return newDescriptor(), fmt.Errorf("%w: %w", ErrConsensus, ErrConfigInvalid)
	}

	d := newDescriptor()
	d.Enabled = true
	d.Index = index

	// read fields, leaving defaults in place when unset
	enabled := 1
	if err := cfg.GetInt(KeyEnabled, &enabled); err != nil {
		enabled = 0
	}
	d.Enabled = enabled != 0

	d.Interval = 1
	if err := cfg.GetInt(KeyInterval, &d.Interval); err != nil || d.Interval < 1 {
		d.Interval = 1
		d.Enabled = false
		warnRank0(ctx, logger, fmt.Sprintf("invalid interval in redundancy descriptor %d, disabling", index))
	}

	d.Output = 0
	if err := cfg.GetInt(KeyOutput, &d.Output); err != nil {
		d.Output = 0
	}

	// resolve the store
	storeName := ctx.Defaults.CacheBase
	cfg.GetStr(KeyStore, &storeName)
	d.StoreName = filepath.Clean(storeName)
	d.StoreIndex = ctx.Stores.IndexFromName(d.StoreName)
	if d.StoreIndex < 0 {
		d.Enabled = false
		warnRank0(ctx, logger, fmt.Sprintf("failed to find store named %s", d.StoreName))
	}

	// derive the cache directory for this descriptor
	d.Directory = cache.JobDir(d.StoreName, ctx.Username, ctx.JobID)

	// xor set size, then the copy type itself
	setSize := ctx.Defaults.SetSize
	if err := cfg.GetInt(KeySetSize, &setSize); err != nil || setSize < 1 {
		setSize = ctx.Defaults.SetSize
	}

	d.CopyType = ctx.Defaults.CopyType
	if d.CopyType.Kind == types.CopyXor {
		d.CopyType.SetSize = setSize
	}
	var typeStr string
	if cfg.GetStr(KeyType, &typeStr) {
		ct, err := types.ParseCopyType(typeStr, setSize)
		if err != nil {
			d.Enabled = false
			warnRank0(ctx, logger, fmt.Sprintf("unknown copy type %q in redundancy descriptor %d, disabling", typeStr, index))
		} else {
			d.CopyType = ct
		}
	}

	// single-node jobs run with SINGLE regardless of what was asked,
	// so they work without the user editing the copy type
	nodeGroup := ctx.Groups.Get(job.GroupNode)
	if nodeGroup != nil && nodeGroup.Size() == ctx.Size() {
		if d.CopyType.Kind != types.CopySingle {
			warnRank0(ctx, logger, fmt.Sprintf("forcing copy type to SINGLE in redundancy descriptor %d", index))
		}
		d.CopyType = types.Single()
	}

	// resolve the failure group and agree on a domain identifier: the
	// group leader names the domain with its world rank
	d.GroupName = ctx.Defaults.Group
	cfg.GetStr(KeyGroup, &d.GroupName)
	group := ctx.Groups.Get(d.GroupName)

	var failureDomain string
	if group != nil {
		domain := ""
		if group.Rank() == 0 {
			domain = strconv.Itoa(ctx.Rank())
		}
		failureDomain, err = group.Comm.BcastString(domain, 0)
		if err != nil {
			d.Enabled = false
		}
	} else {
		// the config and registries are identical on every rank, so
		// every rank skips the group broadcast together
		d.Enabled = false
		warnRank0(ctx, logger, fmt.Sprintf("failed to find group named %s", d.GroupName))
	}

	// agree on whether to build the scheme at all: a descriptor any
	// rank has disabled allocates no scheme anywhere, and the skip
	// must be decided by reduction, not rank-local state
	preEnabled, err := ctx.World.AllTrue(d.Enabled)
	if err != nil {
		return d, err
	}
	d.Enabled = preEnabled

	if d.Enabled {
		var dataBlocks, parityBlocks int
		switch d.CopyType.Kind {
		case types.CopySingle:
			dataBlocks, parityBlocks = ctx.Size(), 0
		case types.CopyPartner:
			dataBlocks, parityBlocks = ctx.Size(), ctx.Size()
		case types.CopyXor:
			dataBlocks, parityBlocks = d.CopyType.SetSize, 1
		}

		scheme, err := engine.CreateScheme(ctx.World, failureDomain, dataBlocks, parityBlocks)
		if err != nil || scheme == nil {
			d.Enabled = false
			warnRank0(ctx, logger, fmt.Sprintf("failed to build erasure scheme for redundancy descriptor %d", index))
		} else {
			d.scheme = scheme
		}
	}

	// if anyone has disabled this, everyone needs to
	allEnabled, err := ctx.World.AllTrue(d.Enabled)
	if err != nil {
		return d, err
	}
	d.Enabled = allEnabled

	return d, nil
}

// warnRank0 emits msg once, from world rank 0, to keep log volume
// linear in events rather than ranks.
func warnRank0(ctx *job.Context, logger zerolog.Logger, msg string) {
	if ctx.Rank() == 0 {
		logger.Warn().Msg(msg)
	}
}
