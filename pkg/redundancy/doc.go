/*
Package redundancy is the core of redshield: the runtime machinery that
turns a user's redundancy configuration into descriptors, selects the
descriptor for a checkpoint id, and drives the encode, rebuild, and
remove pipelines over an erasure engine with all-or-nothing semantics
across ranks.

# Descriptors

A Descriptor binds a scheme family (SINGLE, PARTNER, XOR) to a storage
tier, an eligibility interval, and a built erasure scheme.
BuildDescriptor is collective: every rank calls it with the same
configuration subtree, and every rank exits with the same Enabled value.
A failure on any rank — unknown store, unknown copy type, scheme build
refusal — disables the descriptor on all ranks; nothing is thrown.

The Table holds the descriptors in configuration key order, identical on
every rank, and Select picks the enabled descriptor with the largest
interval dividing the checkpoint id.

# Pipelines

Pipeline.Apply wraps a rank's filemap files plus the filemap itself into
an erasure set, validates locally, agrees globally, and only then
dispatches: if any rank saw an invalid file, no rank encodes.
Pipeline.Recover and Pipeline.Unapply drive the same lifecycle in the
rebuild and remove directions, working from directory state alone so
they run during restart before a filemap exists.

# Collective discipline

Every cross-rank observation goes through the communicator's reductions
(AllTrue, AllReduceSum, BcastString). Code never branches into a
collective on rank-local state unless that state was itself reduced, and
local errors surface globally through the next reduction before any rank
takes irreversible action.
*/
package redundancy
