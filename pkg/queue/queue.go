package queue

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/veridian/vanguard/pkg/log"
	"github.com/veridian/vanguard/pkg/metrics"
	"github.com/veridian/vanguard/pkg/types"
)

// Result is the outcome of an enqueue attempt.
type Result int

const (
	Accepted Result = iota
	Overflowed
	Dropped
)

func (r Result) String() string {
	switch r {
	case Accepted:
		return "accepted"
	case Overflowed:
		return "overflowed"
	case Dropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// Strategy selects what happens when the in-memory ring is full.
type Strategy string

const (
	StrategyDisk Strategy = "disk"
	StrategyDrop Strategy = "drop"
)

// Config holds hybrid queue configuration.
type Config struct {
	MaxMemorySize    int
	DiskBufferPath   string
	OverflowStrategy Strategy
}

// Stats is a snapshot of queue counters.
type Stats struct {
	Enqueued       uint64 `json:"enqueued"`
	Overflowed     uint64 `json:"overflowed"`
	Dropped        uint64 `json:"dropped"`
	DequeuedMemory uint64 `json:"dequeued_memory"`
	DequeuedDisk   uint64 `json:"dequeued_disk"`
	Refilled       uint64 `json:"refilled"`
	Errors         uint64 `json:"errors"`
}

// Queue is the bounded hybrid queue decoupling ingestion from processing:
// an in-memory ring as the primary path with spill to a durable disk buffer
// when memory saturates.
//
// FIFO holds within each path. An overflow sequence that straddles the
// memory/disk boundary may see disk-stored items delivered after newer
// in-memory items; merging the two paths into one global order would
// require blocking the memory path and is deliberately not done.
type Queue struct {
	ring     chan *types.QueuedItem
	disk     *DiskBuffer
	strategy Strategy

	enqueued       atomic.Uint64
	overflowed     atomic.Uint64
	dropped        atomic.Uint64
	dequeuedMemory atomic.Uint64
	dequeuedDisk   atomic.Uint64
	refilled       atomic.Uint64
	errors         atomic.Uint64

	logger func(string, error)
}

// New creates a hybrid queue. The durable buffer is opened eagerly so a bad
// buffer path fails fast.
func New(cfg Config) (*Queue, error) {
	if cfg.MaxMemorySize <= 0 {
		return nil, fmt.Errorf("max memory size must be positive, got %d", cfg.MaxMemorySize)
	}
	if cfg.OverflowStrategy == "" {
		cfg.OverflowStrategy = StrategyDisk
	}

	disk, err := NewDiskBuffer(cfg.DiskBufferPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open durable buffer: %w", err)
	}

	logger := log.WithComponent("queue")
	return &Queue{
		ring:     make(chan *types.QueuedItem, cfg.MaxMemorySize),
		disk:     disk,
		strategy: cfg.OverflowStrategy,
		logger: func(msg string, err error) {
			logger.Error().Err(err).Msg(msg)
		},
	}, nil
}

// Enqueue offers an item to the queue. The in-memory ring is tried first,
// non-blocking; on a full ring the overflow strategy decides between a
// durable spill (Overflowed) and a drop (Dropped). A failed durable write
// degrades to Dropped with the error counted.
func (q *Queue) Enqueue(item *types.QueuedItem) Result {
	select {
	case q.ring <- item:
		q.enqueued.Add(1)
		metrics.QueueEnqueued.Inc()
		return Accepted
	default:
	}

	if q.strategy == StrategyDrop {
		q.dropped.Add(1)
		metrics.QueueDropped.Inc()
		return Dropped
	}

	if err := q.disk.Write(item); err != nil {
		q.logger("durable buffer write failed", err)
		q.errors.Add(1)
		q.dropped.Add(1)
		metrics.DiskBufferErrors.Inc()
		metrics.QueueDropped.Inc()
		return Dropped
	}

	q.overflowed.Add(1)
	metrics.QueueOverflowed.Inc()
	return Overflowed
}

// Dequeue returns the next item, preferring the in-memory ring and blocking
// up to timeout. On an empty-ring timeout the durable buffer is consulted
// and its oldest record returned if any. Returns nil when nothing is
// available; dequeue errors are counted and also yield nil so the caller
// simply retries.
func (q *Queue) Dequeue(timeout time.Duration) *types.QueuedItem {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case item := <-q.ring:
		q.dequeuedMemory.Add(1)
		metrics.QueueDequeued.WithLabelValues("memory").Inc()
		q.refill()
		return item
	case <-timer.C:
	}

	item, err := q.disk.Read()
	if err != nil {
		q.logger("durable buffer read failed", err)
		q.errors.Add(1)
		metrics.DiskBufferErrors.Inc()
		return nil
	}
	if item != nil {
		q.dequeuedDisk.Add(1)
		metrics.QueueDequeued.WithLabelValues("disk").Inc()
	}
	return item
}

// refill opportunistically pulls spilled items back into memory after a
// successful in-memory dequeue, at most 10% of the ring capacity per call.
// If the ring fills again mid-refill the pulled item is written back to the
// buffer tail.
func (q *Queue) refill() {
	budget := cap(q.ring) / 10
	if budget < 1 {
		budget = 1
	}

	for i := 0; i < budget; i++ {
		item, err := q.disk.Read()
		if err != nil {
			q.errors.Add(1)
			metrics.DiskBufferErrors.Inc()
			return
		}
		if item == nil {
			return
		}

		select {
		case q.ring <- item:
			q.refilled.Add(1)
			metrics.QueueRefilled.Inc()
		default:
			// Ring filled under us; put the item back at the tail.
			if err := q.disk.Write(item); err != nil {
				q.logger("refill write-back failed", err)
				q.errors.Add(1)
				metrics.DiskBufferErrors.Inc()
			}
			return
		}
	}
}

// Size returns the combined in-memory and durable item count.
func (q *Queue) Size() int {
	return len(q.ring) + q.disk.Size()
}

// MemorySize returns the in-memory depth only.
func (q *Queue) MemorySize() int {
	return len(q.ring)
}

// Capacity returns the configured in-memory ring capacity.
func (q *Queue) Capacity() int {
	return cap(q.ring)
}

// Stats returns a snapshot of the queue counters.
func (q *Queue) Stats() Stats {
	return Stats{
		Enqueued:       q.enqueued.Load(),
		Overflowed:     q.overflowed.Load(),
		Dropped:        q.dropped.Load(),
		DequeuedMemory: q.dequeuedMemory.Load(),
		DequeuedDisk:   q.dequeuedDisk.Load(),
		Refilled:       q.refilled.Load(),
		Errors:         q.errors.Load(),
	}
}

// Close releases the durable buffer handle.
func (q *Queue) Close() error {
	return q.disk.Close()
}
