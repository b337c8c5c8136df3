package filemap

import (
	"encoding/json"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"

	bolt "go.etcd.io/bbolt"
)

var bucketFiles = []byte("files")

// Meta is the per-file metadata tracked for one checkpoint.
type Meta struct {
	Size     int64  `json:"size"`
	Complete bool   `json:"complete"`
	CRC      uint32 `json:"crc"`
	HasCRC   bool   `json:"has_crc"`
}

// Map is a rank's persisted list of files belonging to one checkpoint,
// stored in a bbolt database inside the hidden dataset directory. The
// map file itself is protected by the encode pipeline alongside the
// files it describes.
type Map struct {
	db   *bolt.DB
	path string
}

// Open opens or creates the filemap database at path.
func Open(path string) (*Map, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create filemap directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open filemap: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketFiles)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create filemap bucket: %w", err)
	}

	return &Map{db: db, path: path}, nil
}

// Path returns the on-disk location of the filemap database.
func (m *Map) Path() string { return m.path }

// Close closes the underlying database.
func (m *Map) Close() error { return m.db.Close() }

// Add records a file with its metadata, replacing any prior entry. The
// file name is stored path-reduced; a relative name stays relative.
func (m *Map) Add(file string, meta Meta) error {
	file = filepath.Clean(file)
	return m.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketFiles)
		data, err := json.Marshal(meta)
		if err != nil {
			return fmt.Errorf("failed to marshal meta for %s: %w", file, err)
		}
		return b.Put([]byte(file), data)
	})
}

// Get returns the metadata for file and whether it is present.
func (m *Map) Get(file string) (Meta, bool, error) {
	file = filepath.Clean(file)
	var meta Meta
	var found bool
	err := m.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketFiles).Get([]byte(file))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &meta)
	})
	return meta, found, err
}

// Files returns every tracked file name in ascending order. The order
// is identical on re-open, which keeps encode enumeration deterministic.
func (m *Map) Files() ([]string, error) {
	var files []string
	err := m.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketFiles).ForEach(func(k, _ []byte) error {
			files = append(files, string(k))
			return nil
		})
	})
	return files, err
}

// Have reports whether file is flagged complete and present on disk
// with its recorded size.
func (m *Map) Have(file string) bool {
	meta, found, err := m.Get(file)
	if err != nil || !found || !meta.Complete {
		return false
	}
	info, err := os.Stat(filepath.Clean(file))
	if err != nil {
		return false
	}
	return info.Size() == meta.Size
}

// ComputeCRC computes the CRC32 (IEEE) of file and persists it. When a
// checksum was already recorded the new value must match; a mismatch
// means the file changed since it was registered.
func (m *Map) ComputeCRC(file string) (uint32, error) {
	file = filepath.Clean(file)

	crc, err := fileCRC(file)
	if err != nil {
		return 0, err
	}

	meta, found, err := m.Get(file)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, fmt.Errorf("file not tracked in filemap: %s", file)
	}
	if meta.HasCRC && meta.CRC != crc {
		return crc, fmt.Errorf("crc mismatch for %s: recorded %08x, computed %08x", file, meta.CRC, crc)
	}

	meta.CRC = crc
	meta.HasCRC = true
	return crc, m.Add(file, meta)
}

func fileCRC(file string) (uint32, error) {
	f, err := os.Open(file)
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", file, err)
	}
	defer f.Close()

	h := crc32.NewIEEE()
	if _, err := io.Copy(h, f); err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", file, err)
	}
	return h.Sum32(), nil
}
