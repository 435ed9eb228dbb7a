// Package journal keeps a local record of successful stores so the CLI can
// list what it has put on the network and drop receipts whose storage has
// lapsed. It is a convenience on the client side only; the network remains
// the source of truth.
package journal

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketReceipts = []byte("receipts")

// Patch records one file of a stored quilt.
type Patch struct {
	Identifier   string `json:"identifier"`
	QuiltPatchID string `json:"quiltPatchId"`
}

// Record is the receipt of one store operation.
type Record struct {
	BlobID    string    `json:"blobId"`
	Kind      string    `json:"kind"`    // "blob" or "quilt"
	Outcome   string    `json:"outcome"` // "newlyCreated" or "alreadyCertified"
	EndEpoch  uint64    `json:"endEpoch"`
	Deletable bool      `json:"deletable"`
	Size      uint64    `json:"size,omitempty"`
	Patches   []Patch   `json:"patches,omitempty"`
	StoredAt  time.Time `json:"storedAt"`
}

// Config configures the bbolt-backed journal.
type Config struct {
	Path    string
	NoSync  bool
	Timeout time.Duration
}

// Journal persists store receipts in bbolt.
type Journal struct {
	db *bolt.DB
}

// Open initialises the journal, creating the file and bucket as needed.
func Open(cfg Config) (*Journal, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("journal: path is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 1 * time.Second
	}
	opts := bolt.Options{
		Timeout: cfg.Timeout,
		NoSync:  cfg.NoSync,
	}
	db, err := bolt.Open(cfg.Path, 0o600, &opts)
	if err != nil {
		return nil, fmt.Errorf("journal: open: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketReceipts)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: init: %w", err)
	}
	return &Journal{db: db}, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error { return j.db.Close() }

// Record upserts a receipt keyed by blob ID. Storing identical bytes twice
// overwrites the earlier receipt; the blob is the same blob.
func (j *Journal) Record(rec Record) error {
	if rec.BlobID == "" {
		return fmt.Errorf("journal: record missing blob id")
	}
	if rec.StoredAt.IsZero() {
		rec.StoredAt = time.Now().UTC()
	}
	return j.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketReceipts).Put([]byte(rec.BlobID), data)
	})
}

// Get fetches the receipt for a blob ID.
func (j *Journal) Get(blobID string) (Record, bool, error) {
	var rec Record
	var found bool
	err := j.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketReceipts).Get([]byte(blobID))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &rec)
	})
	return rec, found, err
}

// List returns all receipts, most recent first.
func (j *Journal) List() ([]Record, error) {
	var recs []Record
	err := j.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketReceipts).ForEach(func(_, data []byte) error {
			var rec Record
			if err := json.Unmarshal(data, &rec); err != nil {
				return err
			}
			recs = append(recs, rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(recs, func(i, k int) bool { return recs[i].StoredAt.After(recs[k].StoredAt) })
	return recs, nil
}

// Prune removes receipts whose storage lapsed at or before currentEpoch,
// in batches, and returns how many were dropped. Receipts with an unknown
// end epoch are kept.
func (j *Journal) Prune(currentEpoch uint64, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 128
	}
	var total int
	for {
		var keys [][]byte
		err := j.db.View(func(tx *bolt.Tx) error {
			c := tx.Bucket(bucketReceipts).Cursor()
			for k, v := c.First(); k != nil && len(keys) < batchSize; k, v = c.Next() {
				var rec Record
				if err := json.Unmarshal(v, &rec); err != nil {
					return err
				}
				if rec.EndEpoch > 0 && rec.EndEpoch <= currentEpoch {
					keys = append(keys, append([]byte(nil), k...))
				}
			}
			return nil
		})
		if err != nil {
			return total, err
		}
		if len(keys) == 0 {
			return total, nil
		}
		err = j.db.Update(func(tx *bolt.Tx) error {
			b := tx.Bucket(bucketReceipts)
			for _, k := range keys {
				if err := b.Delete(k); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return total, err
		}
		total += len(keys)
		if len(keys) < batchSize {
			return total, nil
		}
	}
}
