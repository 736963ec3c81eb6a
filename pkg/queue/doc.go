/*
Package queue implements the bounded hybrid queue between the ingest edge
and the processing workers.

	HTTP handlers ──Enqueue──▶ ┌────────────────┐ ──Dequeue──▶ workers
	                           │ in-memory ring │
	                           └───────┬────────┘
	                             full? │  ▲ refill (≤10% of capacity)
	                                   ▼  │
	                           ┌────────────────┐
	                           │  disk buffer   │  (bbolt, FIFO by id)
	                           └────────────────┘

Enqueue never blocks: the ring is tried non-blocking and a full ring falls
through to the configured overflow strategy. Dequeue blocks up to its
timeout on the ring and consults the disk buffer on timeout, so spilled
items drain even while the ring stays busy.

Ordering is FIFO within each path only. Items that overflow to disk can be
delivered after newer in-memory items; this relaxation is intentional and
keeps the memory path non-blocking.
*/
package queue
