/*
Package filemap persists the per-rank list of files owned by one
checkpoint, with size, completeness, and CRC32 metadata.

Each rank owns exactly one map per dataset, stored as a bbolt database
in the hidden dataset directory. The encode pipeline enumerates it,
updates checksums when CRC-on-copy is enabled, and adds the database
file itself to the erasure set so the metadata survives the same
failures the data does.
*/
package filemap
