package job

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/hpclab/redshield/pkg/comm"
	"github.com/hpclab/redshield/pkg/types"
)

// GroupNode is the failure group every job carries: ranks sharing a
// compute node, presumed to fail together.
const GroupNode = "NODE"

// Defaults holds the job-wide fallback values a redundancy descriptor
// inherits when its configuration subtree leaves a field unset.
type Defaults struct {
	CacheBase   string         // default storage tier path
	CopyType    types.CopyType // default scheme family
	SetSize     int            // default XOR parity set size
	Group       string         // default failure group name
	CRCOnCopy   bool           // checksum files during encode
	TransferLog string         // transfer log db path; empty disables
}

// Context is the immutable per-rank view of the job: the world
// communicator, the storage tier and failure group registries, and the
// job-wide defaults. Construct once at startup and share read-only; the
// process-global tables of the original become explicit arguments here.
type Context struct {
	World    comm.Comm
	Stores   *StoreSet
	Groups   *GroupSet
	Username string
	JobID    string
	Defaults Defaults
}

// Config carries the inputs for building a Context on one rank.
type Config struct {
	World    comm.Comm
	Stores   *StoreSet
	Groups   *GroupSet
	Username string // defaults to the current user
	JobID    string // defaults to $REDSHIELD_JOB_ID, then a random id
	Defaults Defaults
}

// New validates cfg and returns the rank's job context. The NODE group
// must be registered; every descriptor build consults it.
func New(cfg Config) (*Context, error) {
	if cfg.World == nil {
		return nil, fmt.Errorf("job context requires a world communicator")
	}
	if cfg.Stores == nil || cfg.Stores.Len() == 0 {
		return nil, fmt.Errorf("job context requires at least one store")
	}
	if cfg.Groups == nil || cfg.Groups.Get(GroupNode) == nil {
		return nil, fmt.Errorf("job context requires the %s group", GroupNode)
	}

	username := cfg.Username
	if username == "" {
		if u, err := user.Current(); err == nil {
			username = u.Username
		} else {
			username = "unknown"
		}
	}

	jobID := cfg.JobID
	if jobID == "" {
		jobID = os.Getenv("REDSHIELD_JOB_ID")
	}
	if jobID == "" {
		jobID = uuid.New().String()[:8]
	}

	d := cfg.Defaults
	if d.CacheBase == "" {
		d.CacheBase = cfg.Stores.Get(0).Name
	}
	if d.SetSize <= 0 {
		d.SetSize = 8
	}
	if d.CopyType.IsZero() {
		d.CopyType = types.Xor(d.SetSize)
	}
	if d.Group == "" {
		d.Group = GroupNode
	}
	d.CacheBase = filepath.Clean(d.CacheBase)

	return &Context{
		World:    cfg.World,
		Stores:   cfg.Stores,
		Groups:   cfg.Groups,
		Username: username,
		JobID:    jobID,
		Defaults: d,
	}, nil
}

// Rank is shorthand for the world rank of this context.
func (c *Context) Rank() int { return c.World.Rank() }

// Size is shorthand for the world size.
func (c *Context) Size() int { return c.World.Size() }
