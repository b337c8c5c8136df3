package erasure

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/reedsolomon"
)

// readBlob concatenates a manifest's files into one blob, verifying
// each file still has its recorded size.
func readBlob(man manifest) ([]byte, error) {
	var total int64
	for _, f := range man.Files {
		total += f.Size
	}

	blob := make([]byte, 0, total)
	for _, f := range man.Files {
		data, err := os.ReadFile(f.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to read set member %s: %w", f.Path, err)
		}
		if int64(len(data)) != f.Size {
			return nil, fmt.Errorf("set member %s changed size: recorded %d, found %d", f.Path, f.Size, len(data))
		}
		blob = append(blob, data...)
	}
	return blob, nil
}

// writeFilesFromBlob splits a blob back into the manifest's files.
func writeFilesFromBlob(man manifest, blob []byte) error {
	var offset int64
	for _, f := range man.Files {
		if offset+f.Size > int64(len(blob)) {
			return fmt.Errorf("blob too short restoring %s", f.Path)
		}
		if err := os.MkdirAll(filepath.Dir(f.Path), 0755); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", f.Path, err)
		}
		if err := writeFileAtomic(f.Path, blob[offset:offset+f.Size]); err != nil {
			return err
		}
		offset += f.Size
	}
	return nil
}

// restoreFromCopy rebuilds this rank's files from its replication blob.
func (s *localSet) restoreFromCopy(man manifest) error {
	blob, err := os.ReadFile(s.copyPath(s.world.Rank()))
	if err != nil {
		return fmt.Errorf("failed to read replication copy: %w", err)
	}
	return writeFilesFromBlob(man, blob)
}

// encodeParity computes the Reed-Solomon parity shard for the set this
// rank leads and writes it under the prefix. Shards are the members'
// blobs zero-padded to a common length.
func (s *localSet) encodeParity(setSize int) error {
	members := s.setMembers(setSize)

	blobs := make([][]byte, len(members))
	maxLen := 0
	for i, r := range members {
		man, err := readManifest(s.manifestPath(r))
		if err != nil {
			return err
		}
		blob, err := readBlob(man)
		if err != nil {
			return err
		}
		blobs[i] = blob
		if len(blob) > maxLen {
			maxLen = len(blob)
		}
	}
	if maxLen == 0 {
		// nothing to protect; an empty parity file still marks the set
		return writeFileAtomic(s.parityPath(s.world.Rank()/setSize), nil)
	}

	shards := make([][]byte, len(members)+1)
	for i, blob := range blobs {
		shards[i] = padTo(blob, maxLen)
	}
	shards[len(members)] = make([]byte, maxLen)

	enc, err := reedsolomon.New(len(members), 1)
	if err != nil {
		return fmt.Errorf("failed to build parity coder: %w", err)
	}
	if err := enc.Encode(shards); err != nil {
		return fmt.Errorf("parity encode failed: %w", err)
	}

	return writeFileAtomic(s.parityPath(s.world.Rank()/setSize), shards[len(members)])
}

// rebuildParity restores any damaged member of the set this rank leads
// from the surviving members plus the parity shard. One parity shard
// tolerates one lost member per set.
func (s *localSet) rebuildParity(setSize int) error {
	members := s.setMembers(setSize)

	manifests := make([]manifest, len(members))
	damaged := make([]bool, len(members))
	ndamaged := 0
	for i, r := range members {
		man, err := readManifest(s.manifestPath(r))
		if err != nil {
			return err
		}
		manifests[i] = man
		if damagedFiles(man) {
			damaged[i] = true
			ndamaged++
		}
	}
	if ndamaged == 0 {
		return nil
	}
	if ndamaged > 1 {
		return fmt.Errorf("%d members of parity set lost, scheme tolerates 1", ndamaged)
	}

	parity, err := os.ReadFile(s.parityPath(s.world.Rank() / setSize))
	if err != nil {
		return fmt.Errorf("failed to read parity shard: %w", err)
	}

	maxLen := len(parity)
	if maxLen == 0 {
		// the whole set was empty at encode time
		for i, man := range manifests {
			if damaged[i] {
				if err := writeFilesFromBlob(man, nil); err != nil {
					return err
				}
			}
		}
		return nil
	}

	shards := make([][]byte, len(members)+1)
	for i, man := range manifests {
		if damaged[i] {
			continue
		}
		blob, err := readBlob(man)
		if err != nil {
			return err
		}
		shards[i] = padTo(blob, maxLen)
	}
	shards[len(members)] = parity

	enc, err := reedsolomon.New(len(members), 1)
	if err != nil {
		return fmt.Errorf("failed to build parity coder: %w", err)
	}
	if err := enc.Reconstruct(shards); err != nil {
		return fmt.Errorf("parity reconstruct failed: %w", err)
	}

	for i, man := range manifests {
		if !damaged[i] {
			continue
		}
		var want int64
		for _, f := range man.Files {
			want += f.Size
		}
		if err := writeFilesFromBlob(man, shards[i][:want]); err != nil {
			return err
		}
	}
	return nil
}

func padTo(b []byte, n int) []byte {
	if len(b) >= n {
		return b
	}
	out := make([]byte, n)
	copy(out, b)
	return out
}
