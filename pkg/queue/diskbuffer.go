package queue

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/veridian/vanguard/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var bucketBuffer = []byte("event_buffer")

// bufferRecord is the stored form of a spilled item: a monotonic id (the
// bbolt key), a wall-clock timestamp and the serialized payload.
type bufferRecord struct {
	TS   time.Time         `json:"ts"`
	Item *types.QueuedItem `json:"item"`
}

// DiskBuffer is an append-with-id FIFO over a crash-safe local bbolt file.
// Single writer and single reader per process; callers are serialized by an
// internal mutex.
type DiskBuffer struct {
	db *bolt.DB
	mu sync.Mutex
}

// NewDiskBuffer opens (or creates) the durable buffer at path.
func NewDiskBuffer(path string) (*DiskBuffer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create buffer directory: %w", err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open disk buffer: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketBuffer)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create buffer bucket: %w", err)
	}

	return &DiskBuffer{db: db}, nil
}

// Write appends an item at the tail and commits.
func (b *DiskBuffer) Write(item *types.QueuedItem) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, err := json.Marshal(bufferRecord{TS: time.Now().UTC(), Item: item})
	if err != nil {
		return fmt.Errorf("failed to encode buffered item: %w", err)
	}

	return b.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(bucketBuffer)
		id, err := bkt.NextSequence()
		if err != nil {
			return err
		}
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, id)
		return bkt.Put(key, data)
	})
}

// Read removes and returns the oldest record under a single commit.
// Returns (nil, nil) when the buffer is empty.
func (b *DiskBuffer) Read() (*types.QueuedItem, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var rec bufferRecord
	found := false

	err := b.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(bucketBuffer)
		c := bkt.Cursor()
		k, v := c.First()
		if k == nil {
			return nil
		}
		if err := json.Unmarshal(v, &rec); err != nil {
			return fmt.Errorf("failed to decode buffered item: %w", err)
		}
		found = true
		return bkt.Delete(k)
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return rec.Item, nil
}

// Size returns the current number of buffered records.
func (b *DiskBuffer) Size() int {
	var n int
	_ = b.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucketBuffer).Stats().KeyN
		return nil
	})
	return n
}

// Close releases the underlying database handle.
func (b *DiskBuffer) Close() error {
	return b.db.Close()
}
