package redundancy

import "errors"

// Error taxonomy of the redundancy core. Local errors are recorded and
// reduced, never thrown across ranks; what a caller sees after a failed
// collective operation wraps one of these.
var (
	// ErrConfigInvalid indicates a missing or malformed configuration
	// subtree.
	ErrConfigInvalid = errors.New("invalid redundancy configuration")

	// ErrUnknownStore indicates a store name that resolves to no
	// registered storage tier.
	ErrUnknownStore = errors.New("unknown store")

	// ErrUnknownCopyType indicates an unrecognized TYPE token.
	ErrUnknownCopyType = errors.New("unknown copy type")

	// ErrUnknownGroup indicates a failure group name that resolves to
	// no registered group.
	ErrUnknownGroup = errors.New("unknown failure group")

	// ErrSchemeBuild indicates the erasure library refused to construct
	// a scheme.
	ErrSchemeBuild = errors.New("erasure scheme build failed")

	// ErrFileInvalid indicates a filemap file was incomplete or could
	// not be added to the erasure set.
	ErrFileInvalid = errors.New("checkpoint file invalid")

	// ErrEncodeFailed indicates the erasure library failed during
	// encode dispatch, wait, or free.
	ErrEncodeFailed = errors.New("encode failed")

	// ErrRebuildFailed indicates a failed rebuild.
	ErrRebuildFailed = errors.New("rebuild failed")

	// ErrRemoveFailed indicates a failed artifact removal.
	ErrRemoveFailed = errors.New("remove failed")

	// ErrConsensus indicates at least one rank reported an error and
	// the global reduction disabled the operation.
	ErrConsensus = errors.New("disabled by global consensus")
)
