/*
Package job defines the immutable per-rank job context: the world
communicator, the registries of node-local storage tiers and failure
groups, and the job-wide defaults that redundancy descriptors inherit.

Each rank constructs its own Context at startup from the communicators
the launcher handed it. The context is read-only for the life of the
job; the redundancy core takes it as an explicit argument rather than
reaching for process globals.
*/
package job
