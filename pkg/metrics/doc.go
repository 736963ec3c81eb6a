// Package metrics defines the Prometheus collectors exposed by Vanguard.
//
// Counters exist for every stage of the pipeline: ingest, queue, processing,
// storage and lifecycle. All collectors are registered once at import time
// and served over /metrics via Handler. Counters are monotonic; divergence
// between vanguard_events_processed_total and vanguard_events_stored_total
// is the operator signal for persistent flush failure.
package metrics
