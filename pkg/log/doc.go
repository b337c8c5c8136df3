/*
Package log provides structured logging for redshield using zerolog.

The package wraps zerolog with a process-global logger, component-scoped
child loggers, and rank-aware helpers for SPMD code where many ranks of
the same job write to one stream.

Usage:

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})

	redLog := log.WithRank("redundancy", world.Rank())
	redLog.Info().Int("dataset", id).Msg("encode complete")

Collective code follows the rank-0 convention: warnings about globally
agreed state are emitted once, by world rank 0, never by every rank.
*/
package log
