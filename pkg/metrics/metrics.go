package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Ingestion metrics
	EventsIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vanguard_events_ingested_total",
			Help: "Total number of events accepted at the ingest edge by source",
		},
		[]string{"source"},
	)

	EventsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vanguard_events_rejected_total",
			Help: "Total number of events rejected by schema validation by source",
		},
		[]string{"source"},
	)

	// Queue metrics
	QueueEnqueued = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vanguard_queue_enqueued_total",
			Help: "Total number of items accepted into the in-memory ring",
		},
	)

	QueueOverflowed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vanguard_queue_overflowed_total",
			Help: "Total number of items spilled to the disk buffer",
		},
	)

	QueueDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vanguard_queue_dropped_total",
			Help: "Total number of items dropped on overflow",
		},
	)

	QueueDequeued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vanguard_queue_dequeued_total",
			Help: "Total number of items dequeued by path (memory or disk)",
		},
		[]string{"path"},
	)

	QueueRefilled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vanguard_queue_refilled_total",
			Help: "Total number of items moved from the disk buffer back into memory",
		},
	)

	QueueSize = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vanguard_queue_size",
			Help: "Current queue depth by path (memory or disk)",
		},
		[]string{"path"},
	)

	DiskBufferErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vanguard_disk_buffer_errors_total",
			Help: "Total number of durable buffer read/write failures",
		},
	)

	// Processing metrics
	EventsProcessed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vanguard_events_processed_total",
			Help: "Total number of events normalized and enriched successfully",
		},
	)

	EventsStored = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vanguard_events_stored_total",
			Help: "Total number of events persisted to the columnar store",
		},
	)

	NormalizationErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vanguard_normalization_errors_total",
			Help: "Total number of normalization failures by reason",
		},
		[]string{"reason"},
	)

	EnrichmentErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vanguard_enrichment_errors_total",
			Help: "Total number of skipped enrichment aspects by aspect",
		},
		[]string{"aspect"},
	)

	ProcessingRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vanguard_processing_retries_total",
			Help: "Total number of per-event processing retries",
		},
	)

	// Storage metrics
	FlushErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vanguard_flush_errors_total",
			Help: "Total number of failed batch flushes",
		},
	)

	FlushDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vanguard_flush_duration_seconds",
			Help:    "Batch flush duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	PartitionsWritten = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vanguard_partitions_written_total",
			Help: "Total number of partition files written by tier",
		},
		[]string{"tier"},
	)

	LifecycleMoves = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vanguard_lifecycle_moves_total",
			Help: "Total number of objects migrated between tiers",
		},
		[]string{"from", "to"},
	)

	LifecycleDeletes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vanguard_lifecycle_deletes_total",
			Help: "Total number of expired cold objects deleted",
		},
	)

	LifecycleErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vanguard_lifecycle_errors_total",
			Help: "Total number of per-object lifecycle failures",
		},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vanguard_api_requests_total",
			Help: "Total number of API requests by path and status",
		},
		[]string{"path", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vanguard_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path"},
	)

	RateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vanguard_rate_limited_total",
			Help: "Total number of requests rejected by the per-key rate limiter",
		},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(EventsIngested)
	prometheus.MustRegister(EventsRejected)
	prometheus.MustRegister(QueueEnqueued)
	prometheus.MustRegister(QueueOverflowed)
	prometheus.MustRegister(QueueDropped)
	prometheus.MustRegister(QueueDequeued)
	prometheus.MustRegister(QueueRefilled)
	prometheus.MustRegister(QueueSize)
	prometheus.MustRegister(DiskBufferErrors)
	prometheus.MustRegister(EventsProcessed)
	prometheus.MustRegister(EventsStored)
	prometheus.MustRegister(NormalizationErrors)
	prometheus.MustRegister(EnrichmentErrors)
	prometheus.MustRegister(ProcessingRetries)
	prometheus.MustRegister(FlushErrors)
	prometheus.MustRegister(FlushDuration)
	prometheus.MustRegister(PartitionsWritten)
	prometheus.MustRegister(LifecycleMoves)
	prometheus.MustRegister(LifecycleDeletes)
	prometheus.MustRegister(LifecycleErrors)
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
	prometheus.MustRegister(RateLimited)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
