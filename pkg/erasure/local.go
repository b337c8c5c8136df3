package erasure

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hpclab/redshield/pkg/comm"
)

type schemeMode string

const (
	modeSingle  schemeMode = "single"
	modePartner schemeMode = "partner"
	modeXor     schemeMode = "xor"
)

// Local is a redundancy engine for node-local storage reachable through
// the filesystem. It persists per-rank manifests and redundancy
// artifacts under the set prefix: replication blobs for partner
// schemes, Reed-Solomon parity per rank set for parity schemes.
type Local struct{}

// NewLocal returns a Local engine.
func NewLocal() *Local {
	return &Local{}
}

type localScheme struct {
	mode    schemeMode
	setSize int
	domain  string
	world   int
	freed   bool
}

// Free releases the scheme handle. Freeing twice is an error; the
// descriptor owns the handle and releases it once at teardown.
func (s *localScheme) Free() error {
	if s.freed {
		return fmt.Errorf("erasure scheme already freed")
	}
	s.freed = true
	return nil
}

// CreateScheme maps the block parameters onto a local mode. Collective:
// all ranks enter, and the scheme parameters must agree.
func (l *Local) CreateScheme(world comm.Comm, failureDomain string, dataBlocks, parityBlocks int) (Scheme, error) {
	if world == nil {
		return nil, fmt.Errorf("scheme requires a world communicator")
	}
	if dataBlocks <= 0 || parityBlocks < 0 {
		return nil, fmt.Errorf("invalid scheme parameters: data=%d parity=%d", dataBlocks, parityBlocks)
	}

	s := &localScheme{domain: failureDomain, world: world.Size()}
	switch {
	case parityBlocks == 0:
		s.mode = modeSingle
	case parityBlocks >= world.Size():
		s.mode = modePartner
	default:
		s.mode = modeXor
		s.setSize = dataBlocks
		if s.setSize < 1 {
			s.setSize = 1
		}
		if s.setSize > world.Size() {
			s.setSize = world.Size()
		}
	}

	if err := world.Barrier(); err != nil {
		return nil, err
	}
	return s, nil
}

// schemeInfo is the on-disk record of an encoded set's parameters,
// written by rank 0 and read back at rebuild and remove time.
type schemeInfo struct {
	Mode      schemeMode `json:"mode"`
	SetSize   int        `json:"set_size"`
	WorldSize int        `json:"world_size"`
	Domain    string     `json:"domain"`
}

type manifestFile struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
}

type manifest struct {
	Rank  int            `json:"rank"`
	Files []manifestFile `json:"files"`
}

type localSet struct {
	world  comm.Comm
	store  comm.Comm
	prefix string
	dir    Direction
	scheme *localScheme

	files []string // rank-local members, encode only

	info       schemeInfo // loaded at dispatch for rebuild
	dispatched bool
	freed      bool
}

// CreateSet opens a set over prefix. Collective over world.
func (l *Local) CreateSet(world, store comm.Comm, prefix string, dir Direction, scheme Scheme) (Set, error) {
	if world == nil {
		return nil, fmt.Errorf("set requires a world communicator")
	}

	set := &localSet{world: world, store: store, prefix: prefix, dir: dir}

	if dir == Encode {
		ls, ok := scheme.(*localScheme)
		if !ok || ls == nil {
			return nil, fmt.Errorf("encode requires a scheme from this engine")
		}
		if ls.freed {
			return nil, fmt.Errorf("encode with freed scheme")
		}
		set.scheme = ls
	}

	if err := world.Barrier(); err != nil {
		return nil, err
	}
	return set, nil
}

func (s *localSet) schemePath() string {
	return s.prefix + ".scheme.json"
}

func (s *localSet) manifestPath(rank int) string {
	return fmt.Sprintf("%s.%d.manifest.json", s.prefix, rank)
}

func (s *localSet) copyPath(rank int) string {
	return fmt.Sprintf("%s.%d.copy", s.prefix, rank)
}

func (s *localSet) parityPath(setIndex int) string {
	return fmt.Sprintf("%s.set%d.parity", s.prefix, setIndex)
}

// Add registers a rank-local file. Encode only.
func (s *localSet) Add(path string) error {
	if s.dir != Encode {
		return fmt.Errorf("add is only valid on encode sets")
	}
	if s.dispatched {
		return fmt.Errorf("add after dispatch")
	}
	path = filepath.Clean(path)
	if !filepath.IsAbs(path) {
		return fmt.Errorf("set members must be absolute paths: %s", path)
	}
	s.files = append(s.files, path)
	return nil
}

// Dispatch runs the rank-local half of the operation. Collective.
func (s *localSet) Dispatch() error {
	if s.freed {
		return fmt.Errorf("dispatch on freed set")
	}
	if s.dispatched {
		return fmt.Errorf("set already dispatched")
	}
	s.dispatched = true

	switch s.dir {
	case Encode:
		return s.dispatchEncode()
	case Rebuild:
		return s.dispatchRebuild()
	case Remove:
		return s.dispatchRemove()
	}
	return fmt.Errorf("unknown set direction %d", s.dir)
}

// Wait runs the cross-rank half of the operation. Collective.
func (s *localSet) Wait() error {
	if s.freed {
		return fmt.Errorf("wait on freed set")
	}
	if !s.dispatched {
		return fmt.Errorf("wait before dispatch")
	}

	switch s.dir {
	case Encode:
		return s.waitEncode()
	case Rebuild:
		return s.waitRebuild()
	case Remove:
		return s.waitRemove()
	}
	return fmt.Errorf("unknown set direction %d", s.dir)
}

// Free releases the set. Collective.
func (s *localSet) Free() error {
	if s.freed {
		return fmt.Errorf("set already freed")
	}
	s.freed = true
	s.files = nil
	return s.world.Barrier()
}

func (s *localSet) dispatchEncode() error {
	// deferred from CreateSet so a rank-local failure surfaces here,
	// where the caller reduces it, instead of desyncing the create
	// barrier
	if err := os.MkdirAll(filepath.Dir(s.prefix), 0755); err != nil {
		return fmt.Errorf("failed to create set directory: %w", err)
	}

	man := manifest{Rank: s.world.Rank()}
	for _, file := range s.files {
		info, err := os.Stat(file)
		if err != nil {
			return fmt.Errorf("failed to stat set member %s: %w", file, err)
		}
		man.Files = append(man.Files, manifestFile{Path: file, Size: info.Size()})
	}

	if err := writeJSON(s.manifestPath(s.world.Rank()), man); err != nil {
		return err
	}

	if s.scheme.mode == modePartner {
		blob, err := readBlob(man)
		if err != nil {
			return err
		}
		if err := writeFileAtomic(s.copyPath(s.world.Rank()), blob); err != nil {
			return err
		}
	}

	if s.world.Rank() == 0 {
		info := schemeInfo{
			Mode:      s.scheme.mode,
			SetSize:   s.scheme.setSize,
			WorldSize: s.world.Size(),
			Domain:    s.scheme.domain,
		}
		if err := writeJSON(s.schemePath(), info); err != nil {
			return err
		}
	}
	return nil
}

func (s *localSet) waitEncode() error {
	// manifests and copies from every rank must be on disk before any
	// parity work reads them
	if err := s.world.Barrier(); err != nil {
		return err
	}

	var err error
	if s.scheme.mode == modeXor && s.isSetLeader(s.scheme.setSize) {
		err = s.encodeParity(s.scheme.setSize)
	}

	if berr := s.world.Barrier(); berr != nil && err == nil {
		err = berr
	}
	return err
}

func (s *localSet) dispatchRebuild() error {
	info, err := readSchemeInfo(s.schemePath())
	if err != nil {
		return fmt.Errorf("no scheme metadata under prefix %s: %w", s.prefix, err)
	}
	s.info = info

	man, err := readManifest(s.manifestPath(s.world.Rank()))
	if err != nil {
		return err
	}

	if !damagedFiles(man) {
		return nil
	}

	switch info.Mode {
	case modeSingle:
		return fmt.Errorf("files missing and scheme has no redundancy")
	case modePartner:
		return s.restoreFromCopy(man)
	case modeXor:
		// recovered by the set leader in Wait
		return nil
	}
	return fmt.Errorf("unknown scheme mode %q", info.Mode)
}

func (s *localSet) waitRebuild() error {
	if err := s.world.Barrier(); err != nil {
		return err
	}

	var err error
	if s.info.Mode == modeXor && s.isSetLeader(s.info.SetSize) {
		err = s.rebuildParity(s.info.SetSize)
	}

	if berr := s.world.Barrier(); berr != nil && err == nil {
		err = berr
	}
	return err
}

func (s *localSet) dispatchRemove() error {
	rank := s.world.Rank()
	if err := removeIfPresent(s.manifestPath(rank)); err != nil {
		return err
	}
	return removeIfPresent(s.copyPath(rank))
}

func (s *localSet) waitRemove() error {
	// every rank's own artifacts are gone; rank 0 sweeps the shared ones
	if err := s.world.Barrier(); err != nil {
		return err
	}

	var err error
	if s.world.Rank() == 0 {
		err = removeIfPresent(s.schemePath())
		matches, _ := filepath.Glob(s.prefix + ".set*.parity")
		for _, m := range matches {
			if rerr := removeIfPresent(m); rerr != nil && err == nil {
				err = rerr
			}
		}
	}

	if berr := s.world.Barrier(); berr != nil && err == nil {
		err = berr
	}
	return err
}

// isSetLeader reports whether this rank leads a parity set: the lowest
// rank of each contiguous block of setSize ranks.
func (s *localSet) isSetLeader(setSize int) bool {
	if setSize <= 0 {
		return false
	}
	return s.world.Rank()%setSize == 0
}

// setMembers returns the world ranks of the parity set this rank leads.
func (s *localSet) setMembers(setSize int) []int {
	first := s.world.Rank()
	last := first + setSize
	if last > s.world.Size() {
		last = s.world.Size()
	}
	members := make([]int, 0, last-first)
	for r := first; r < last; r++ {
		members = append(members, r)
	}
	return members
}

func writeJSON(path string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", path, err)
	}
	return writeFileAtomic(path, data)
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to finalize %s: %w", path, err)
	}
	return nil
}

func readSchemeInfo(path string) (schemeInfo, error) {
	var info schemeInfo
	data, err := os.ReadFile(path)
	if err != nil {
		return info, err
	}
	if err := json.Unmarshal(data, &info); err != nil {
		return info, fmt.Errorf("corrupt scheme metadata %s: %w", path, err)
	}
	return info, nil
}

func readManifest(path string) (manifest, error) {
	var man manifest
	data, err := os.ReadFile(path)
	if err != nil {
		return man, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &man); err != nil {
		return man, fmt.Errorf("corrupt manifest %s: %w", path, err)
	}
	return man, nil
}

func removeIfPresent(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	return nil
}

// damagedFiles reports whether any manifest member is missing or has
// the wrong size on disk.
func damagedFiles(man manifest) bool {
	for _, f := range man.Files {
		info, err := os.Stat(f.Path)
		if err != nil || info.Size() != f.Size {
			return true
		}
	}
	return false
}
