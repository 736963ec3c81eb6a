package processor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/veridian/vanguard/pkg/enricher"
	"github.com/veridian/vanguard/pkg/log"
	"github.com/veridian/vanguard/pkg/metrics"
	"github.com/veridian/vanguard/pkg/normalizer"
	"github.com/veridian/vanguard/pkg/queue"
	"github.com/veridian/vanguard/pkg/storage"
	"github.com/veridian/vanguard/pkg/types"
)

// Config holds processor configuration.
type Config struct {
	NumWorkers   int
	BatchSize    int
	BatchTimeout time.Duration
	MaxRetries   int

	// Tier written on flush; defaults to hot.
	Tier storage.Tier

	// DequeueTimeout bounds each worker's wait on the queue. Defaults to
	// one second.
	DequeueTimeout time.Duration

	// StatsInterval controls the periodic statistics report. Defaults to
	// thirty seconds.
	StatsInterval time.Duration
}

// Stats is a snapshot of processor counters.
type Stats struct {
	Processed uint64 `json:"processed"`
	Stored    uint64 `json:"stored"`
	Errors    uint64 `json:"errors"`
	Retries   uint64 `json:"retries"`
	BatchLen  int    `json:"batch_len"`
}

// Processor runs the worker pool that drains the queue, normalizes and
// enriches each event, micro-batches the results and flushes them to the
// storage writer.
type Processor struct {
	cfg        Config
	queue      *queue.Queue
	normalizer *normalizer.Normalizer
	enricher   *enricher.Enricher
	writer     *storage.Writer
	logger     zerolog.Logger

	// batch and lastFlush are shared across workers; append-and-flush is
	// one critical section so exactly one worker flushes per trigger.
	mu        sync.Mutex
	batch     []*types.UnifiedEvent
	lastFlush time.Time

	processed atomic.Uint64
	stored    atomic.Uint64
	errCount  atomic.Uint64
	retries   atomic.Uint64

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New creates a processor over the given pipeline stages.
func New(cfg Config, q *queue.Queue, n *normalizer.Normalizer, e *enricher.Enricher, w *storage.Writer) *Processor {
	if cfg.Tier == "" {
		cfg.Tier = storage.TierHot
	}
	if cfg.DequeueTimeout <= 0 {
		cfg.DequeueTimeout = time.Second
	}
	if cfg.StatsInterval <= 0 {
		cfg.StatsInterval = 30 * time.Second
	}

	return &Processor{
		cfg:        cfg,
		queue:      q,
		normalizer: n,
		enricher:   e,
		writer:     w,
		logger:     log.WithComponent("processor"),
		lastFlush:  time.Now(),
		stopCh:     make(chan struct{}),
	}
}

// Start spawns the worker pool, the idle-flush loop and the statistics
// reporter.
func (p *Processor) Start() {
	for i := 0; i < p.cfg.NumWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	p.wg.Add(1)
	go p.flushLoop()
	go p.statsLoop()

	p.logger.Info().
		Int("workers", p.cfg.NumWorkers).
		Int("batch_size", p.cfg.BatchSize).
		Dur("batch_timeout", p.cfg.BatchTimeout).
		Msg("processor started")
}

// Stop drains the pipeline: workers finish their current event, the
// remaining batch is flushed once, and the queue handle is closed.
func (p *Processor) Stop() {
	close(p.stopCh)
	p.wg.Wait()

	p.mu.Lock()
	if len(p.batch) > 0 {
		p.flushLocked()
	}
	p.mu.Unlock()

	if err := p.queue.Close(); err != nil {
		p.logger.Error().Err(err).Msg("failed to close queue")
	}

	stats := p.Stats()
	p.logger.Info().
		Uint64("processed", stats.Processed).
		Uint64("stored", stats.Stored).
		Uint64("errors", stats.Errors).
		Msg("processor stopped")
}

// Stats returns a snapshot of the processing counters.
func (p *Processor) Stats() Stats {
	p.mu.Lock()
	batchLen := len(p.batch)
	p.mu.Unlock()

	return Stats{
		Processed: p.processed.Load(),
		Stored:    p.stored.Load(),
		Errors:    p.errCount.Load(),
		Retries:   p.retries.Load(),
		BatchLen:  batchLen,
	}
}

func (p *Processor) worker(id int) {
	defer p.wg.Done()
	logger := log.WithWorkerID(id)
	logger.Debug().Msg("worker started")

	for {
		select {
		case <-p.stopCh:
			logger.Debug().Msg("worker stopped")
			return
		default:
		}

		item := p.queue.Dequeue(p.cfg.DequeueTimeout)
		if item == nil {
			continue
		}

		event := p.processEvent(item)
		if event == nil {
			continue
		}
		p.append(event)
	}
}

// processEvent runs normalize+enrich with retry and backoff (100 ms times
// the attempt number). Normalization failures are deterministic and
// short-circuit the retry loop.
func (p *Processor) processEvent(item *types.QueuedItem) *types.UnifiedEvent {
	var lastErr error
	for attempt := 0; attempt <= p.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			p.retries.Add(1)
			metrics.ProcessingRetries.Inc()
			time.Sleep(time.Duration(attempt) * 100 * time.Millisecond)
		}

		event, err := p.normalizer.Normalize(item)
		if err != nil {
			if reason := normalizationReason(err); reason != "" {
				metrics.NormalizationErrors.WithLabelValues(reason).Inc()
				p.errCount.Add(1)
				slog := log.WithSource(string(item.SourceType))
				slog.Warn().Err(err).
					Str("ingestion_id", item.IngestionID).
					Msg("event discarded")
				return nil
			}
			lastErr = err
			continue
		}

		event = p.enricher.Enrich(context.Background(), event)
		p.processed.Add(1)
		metrics.EventsProcessed.Inc()
		return event
	}

	p.errCount.Add(1)
	slog := log.WithSource(string(item.SourceType))
	slog.Error().Err(lastErr).
		Str("ingestion_id", item.IngestionID).
		Int("retries", p.cfg.MaxRetries).
		Msg("event dropped after retries")
	return nil
}

func normalizationReason(err error) string {
	switch {
	case errors.Is(err, normalizer.ErrUnknownSource):
		return "unknown_source"
	case errors.Is(err, normalizer.ErrSchemaViolation):
		return "schema_violation"
	case errors.Is(err, normalizer.ErrBadTimestamp):
		return "bad_timestamp"
	}
	return ""
}

// append adds an event to the shared batch and flushes when the size or
// age trigger fires.
func (p *Processor) append(event *types.UnifiedEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.batch = append(p.batch, event)
	if len(p.batch) >= p.cfg.BatchSize || time.Since(p.lastFlush) >= p.cfg.BatchTimeout {
		p.flushLocked()
	}
}

// flushLoop fires the age trigger while the queue is idle, so a partial
// batch never outlives the batch timeout just because no append followed.
func (p *Processor) flushLoop() {
	defer p.wg.Done()

	interval := p.cfg.BatchTimeout / 4
	if interval < 50*time.Millisecond {
		interval = 50 * time.Millisecond
	}
	if interval > time.Second {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.mu.Lock()
			if len(p.batch) > 0 && time.Since(p.lastFlush) >= p.cfg.BatchTimeout {
				p.flushLocked()
			}
			p.mu.Unlock()
		}
	}
}

// flushLocked writes the batch to the hot tier. On error the batch is
// retained for the next trigger; no event is silently lost.
func (p *Processor) flushLocked() {
	start := time.Now()
	err := p.writer.Write(context.Background(), p.batch, p.cfg.Tier)
	metrics.FlushDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.FlushErrors.Inc()
		p.logger.Error().Err(err).Int("batch_len", len(p.batch)).Msg("batch flush failed")
		return
	}

	n := len(p.batch)
	p.stored.Add(uint64(n))
	metrics.EventsStored.Add(float64(n))
	p.batch = nil
	p.lastFlush = time.Now()
	p.logger.Debug().Int("rows", n).Msg("batch flushed")
}

func (p *Processor) statsLoop() {
	ticker := time.NewTicker(p.cfg.StatsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			stats := p.Stats()
			qstats := p.queue.Stats()
			metrics.QueueSize.WithLabelValues("memory").Set(float64(p.queue.MemorySize()))
			metrics.QueueSize.WithLabelValues("disk").Set(float64(p.queue.Size() - p.queue.MemorySize()))

			p.logger.Info().
				Uint64("processed", stats.Processed).
				Uint64("stored", stats.Stored).
				Uint64("errors", stats.Errors).
				Uint64("queue_enqueued", qstats.Enqueued).
				Uint64("queue_overflowed", qstats.Overflowed).
				Uint64("queue_dropped", qstats.Dropped).
				Int("queue_size", p.queue.Size()).
				Msg("pipeline statistics")
		}
	}
}
