package redundancy

import (
	"fmt"
	"os"
	"time"

	"github.com/hpclab/redshield/pkg/cache"
	"github.com/hpclab/redshield/pkg/erasure"
	"github.com/hpclab/redshield/pkg/events"
	"github.com/hpclab/redshield/pkg/filemap"
	"github.com/hpclab/redshield/pkg/job"
	"github.com/hpclab/redshield/pkg/log"
	"github.com/hpclab/redshield/pkg/metrics"
	"github.com/hpclab/redshield/pkg/types"
)

// Pipeline drives the encode and decode paths over an erasure engine.
// Broker is optional; when set, world rank 0 publishes a lifecycle
// event per operation.
type Pipeline struct {
	Engine erasure.Engine
	Broker *events.Broker
}

// Apply encodes the checkpoint described by fm with the given
// descriptor. Collective. It returns the number of bytes protected
// across all ranks; the byte count is meaningful only when the returned
// error is nil.
//
// No rank dispatches the erasure operation unless every rank's files
// validated, and the global result is the logical AND of every rank's
// local outcome.
func (p *Pipeline) Apply(ctx *job.Context, fm *filemap.Map, desc *Descriptor, id int) (float64, error) {
	logger := log.WithDataset("encode", id)

	store := desc.Store(ctx)

	hidden := cache.HiddenDir(desc.Directory, id)
	prefix := cache.RedPrefix(hidden)

	var storeComm = ctx.World
	if store != nil && store.Comm != nil {
		storeComm = store.Comm
	}

	set, err := p.Engine.CreateSet(ctx.World, storeComm, prefix, erasure.Encode, desc.scheme)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to create erasure set: %v", ErrEncodeFailed, err)
	}

	// scan this rank's files, adding each to the set
	valid := store != nil
	var myBytes float64

	files, err := fm.Files()
	if err != nil {
		logger.Error().Err(err).Msg("failed to enumerate filemap")
		valid = false
	}
	for _, file := range files {
		if !fm.Have(file) {
			logger.Debug().Str("file", file).Msg("file determined to be invalid")
			valid = false
		}

		if err := set.Add(file); err != nil {
			logger.Error().Err(err).Str("file", file).Msg("failed to add file to erasure set")
			valid = false
		}

		if info, err := os.Stat(file); err == nil {
			myBytes += float64(info.Size())
		}

		// PARTNER files are not checksummed here; the local engine's
		// partner copy does not compute a checksum either
		if ctx.Defaults.CRCOnCopy && desc.CopyType.Kind != types.CopyPartner {
			if _, err := fm.ComputeCRC(file); err != nil {
				logger.Warn().Err(err).Str("file", file).Msg("failed to compute crc")
			}
		}
	}

	// the filemap is itself a protected file
	if err := set.Add(fm.Path()); err != nil {
		logger.Error().Err(err).Str("file", fm.Path()).Msg("failed to add filemap to erasure set")
		valid = false
	}

	// determine whether everyone's files are good
	allValid, cerr := ctx.World.AllTrue(valid)
	if cerr != nil {
		return 0, cerr
	}
	if !allValid {
		if ctx.Rank() == 0 {
			logger.Info().Msg("exiting copy since one or more checkpoint files is invalid")
		}
		set.Free()
		p.publish(ctx, events.EventEncodeFailed, id, "checkpoint files invalid")
		metrics.EncodesTotal.WithLabelValues("invalid").Inc()
		return 0, fmt.Errorf("%w: %w", ErrConsensus, ErrFileInvalid)
	}

	var timer *metrics.Timer
	var timestampStart int64
	if ctx.Rank() == 0 {
		timestampStart = time.Now().Unix()
		timer = metrics.NewTimer()
	}

	// apply the redundancy scheme
	ok := true
	if err := set.Dispatch(); err != nil {
		logger.Error().Err(err).Msg("erasure dispatch failed")
		ok = false
	}
	if err := set.Wait(); err != nil {
		logger.Error().Err(err).Msg("erasure wait failed")
		ok = false
	}
	if err := set.Free(); err != nil {
		logger.Error().Err(err).Msg("erasure free failed")
		ok = false
	}

	allOK, cerr := ctx.World.AllTrue(ok)
	if cerr != nil {
		return 0, cerr
	}

	bytes, cerr := ctx.World.AllReduceSum(myBytes)
	if cerr != nil {
		return 0, cerr
	}

	if ctx.Rank() == 0 {
		elapsed := timer.ObserveDuration(metrics.EncodeDuration)
		bw := 0.0
		if elapsed > 0 {
			bw = bytes / (1024.0 * 1024.0 * elapsed)
		}
		logger.Info().
			Float64("secs", elapsed).
			Float64("bytes", bytes).
			Float64("mb_per_sec", bw).
			Float64("mb_per_sec_per_rank", bw/float64(ctx.Size())).
			Msg("redundancy apply complete")

		metrics.EncodeBytesTotal.Add(bytes)

		if allOK && ctx.Defaults.TransferLog != "" {
			rec := types.TransferRecord{
				Op:        "COPY",
				Store:     desc.StoreName,
				Dir:       cache.DatasetDir(desc.Directory, id),
				Dataset:   id,
				StartedAt: timestampStart,
				Seconds:   elapsed,
				Bytes:     bytes,
			}
			if err := WriteTransfer(ctx.Defaults.TransferLog, rec); err != nil {
				logger.Warn().Err(err).Msg("failed to record transfer")
			}
		}
	}

	if !allOK {
		p.publish(ctx, events.EventEncodeFailed, id, "erasure encode failed")
		metrics.EncodesTotal.WithLabelValues("failure").Inc()
		return bytes, fmt.Errorf("%w: %w", ErrConsensus, ErrEncodeFailed)
	}

	p.publish(ctx, events.EventEncodeComplete, id, "")
	metrics.EncodesTotal.WithLabelValues("success").Inc()
	return bytes, nil
}

func (p *Pipeline) publish(ctx *job.Context, typ events.EventType, id int, msg string) {
	if p.Broker == nil || ctx.Rank() != 0 {
		return
	}
	p.Broker.Publish(&events.Event{Type: typ, Dataset: id, Message: msg})
}
