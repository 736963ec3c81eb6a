/*
Package api implements the HTTP ingest edge.

Routes:

	GET  /health                       liveness plus queue and processor stats
	GET  /metrics                      Prometheus exposition
	POST /ingest/{source}              one record, validated then enqueued
	POST /ingest/batch?source_type=s   JSON array of records, judged per index

Ingest routes sit behind API-key authentication and a per-key token-bucket
rate limiter. Validation happens at the edge so malformed records never
reach the queue: a single record answers 202 with its ingestion id, 422 on
a schema violation, or 503 when the queue dropped it. Batches answer 207
with per-index outcomes, 413 above the batch limit.

Acceptance means durably queued, not yet processed; the ingestion id ties
the response to the stored event.
*/
package api
