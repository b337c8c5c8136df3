package redundancy

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/hpclab/redshield/pkg/types"
)

var bucketTransfers = []byte("transfers")

// WriteTransfer appends a transfer record to the log database at path.
// Only world rank 0 writes the log, one record per completed operation.
func WriteTransfer(path string, rec types.TransferRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create transfer log directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return fmt.Errorf("failed to open transfer log: %w", err)
	}
	defer db.Close()

	return db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketTransfers)
		if err != nil {
			return err
		}
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal transfer record: %w", err)
		}
		return b.Put([]byte(fmt.Sprintf("%016d", seq)), data)
	})
}

// ReadTransfers returns every record in the log at path in append order.
func ReadTransfers(path string) ([]types.TransferRecord, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open transfer log: %w", err)
	}
	defer db.Close()

	var recs []types.TransferRecord
	err = db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTransfers)
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			var rec types.TransferRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			recs = append(recs, rec)
			return nil
		})
	})
	return recs, err
}
