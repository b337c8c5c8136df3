// Package metrics exposes Prometheus collectors for the redundancy
// pipelines: bytes protected, operation durations, and per-result
// counters. Rank 0 is the only rank expected to serve Handler(); the
// collectors themselves are cheap enough to update on every rank.
package metrics
