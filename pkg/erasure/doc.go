/*
Package erasure defines the capability interface the redundancy core
drives — scheme creation, and encode/rebuild/remove sets with the
Add/Dispatch/Wait/Free lifecycle — plus a local engine for storage
tiers reachable through the filesystem.

The local engine writes per-rank manifests under the set prefix and,
depending on the scheme, full replication blobs (partner) or one
Reed-Solomon parity shard per contiguous rank set (xor). Rebuild
discovers the encoded parameters from the scheme metadata written at
encode time, and remove deletes the artifacts by their names under the
prefix, so neither needs a scheme handle or a filemap.

Every Dispatch/Wait/Create/Free call is collective over the world
communicator the set was created with.
*/
package erasure
