package redundancy

import (
	"fmt"

	"github.com/hpclab/redshield/pkg/cache"
	"github.com/hpclab/redshield/pkg/erasure"
	"github.com/hpclab/redshield/pkg/events"
	"github.com/hpclab/redshield/pkg/job"
	"github.com/hpclab/redshield/pkg/log"
	"github.com/hpclab/redshield/pkg/metrics"
)

// Recover rebuilds the files of the dataset whose hidden directory is
// dir. Collective. It operates purely on directory state, so it is
// usable during restart before any filemap has been loaded.
func (p *Pipeline) Recover(ctx *job.Context, dir string) error {
	err := p.drive(ctx, dir, erasure.Rebuild)
	if err != nil {
		p.publishDir(ctx, events.EventRebuildFailed, dir)
		metrics.RebuildsTotal.WithLabelValues("failure").Inc()
		return fmt.Errorf("%w: %w", ErrRebuildFailed, err)
	}
	p.publishDir(ctx, events.EventRebuildComplete, dir)
	metrics.RebuildsTotal.WithLabelValues("success").Inc()
	return nil
}

// Unapply removes the redundancy artifacts added for the dataset whose
// hidden directory is dir. Collective.
func (p *Pipeline) Unapply(ctx *job.Context, dir string) error {
	err := p.drive(ctx, dir, erasure.Remove)
	if err != nil {
		metrics.RemovesTotal.WithLabelValues("failure").Inc()
		return fmt.Errorf("%w: %w", ErrRemoveFailed, err)
	}
	p.publishDir(ctx, events.EventRemoveComplete, dir)
	metrics.RemovesTotal.WithLabelValues("success").Inc()
	return nil
}

// drive runs one rebuild or remove invocation over dir and reduces the
// outcome to a global result.
func (p *Pipeline) drive(ctx *job.Context, dir string, direction erasure.Direction) error {
	logger := log.WithComponent("reddesc")

	// resolve the store holding dir, and agree every rank found one
	// before creating the set
	storeIndex := ctx.Stores.IndexFromChildPath(dir)
	matched, cerr := ctx.World.AllTrue(storeIndex >= 0)
	if cerr != nil {
		return cerr
	}
	if !matched {
		if ctx.Rank() == 0 {
			logger.Warn().Str("dir", dir).Msg("no store matches directory")
		}
		return fmt.Errorf("%w: no store matches %s", ErrUnknownStore, dir)
	}
	store := ctx.Stores.Get(storeIndex)

	prefix := cache.RedPrefix(dir)

	set, err := p.Engine.CreateSet(ctx.World, store.Comm, prefix, direction, nil)
	if err != nil {
		return fmt.Errorf("failed to create erasure set: %w", err)
	}

	ok := true
	if err := set.Dispatch(); err != nil {
		logger.Error().Err(err).Str("dir", dir).Msgf("erasure %s dispatch failed", direction)
		ok = false
	}
	if err := set.Wait(); err != nil {
		logger.Error().Err(err).Str("dir", dir).Msgf("erasure %s wait failed", direction)
		ok = false
	}
	if err := set.Free(); err != nil {
		logger.Error().Err(err).Str("dir", dir).Msgf("erasure %s free failed", direction)
		ok = false
	}

	allOK, cerr := ctx.World.AllTrue(ok)
	if cerr != nil {
		return cerr
	}
	if !allOK {
		return ErrConsensus
	}
	return nil
}

func (p *Pipeline) publishDir(ctx *job.Context, typ events.EventType, dir string) {
	if p.Broker == nil || ctx.Rank() != 0 {
		return
	}
	p.Broker.Publish(&events.Event{Type: typ, Message: dir})
}
