/*
Package processor orchestrates the data plane between the hybrid queue and
the storage writer.

A pool of workers dequeues raw items, normalizes and enriches them, and
appends the results to one shared micro-batch. The batch flushes to the hot
tier when it reaches batch_size or when batch_timeout has elapsed since the
previous flush; an idle-flush loop fires the age trigger even when no
append follows. Append-and-flush is a single critical section, so exactly
one worker performs each flush.

Failed normalize+enrich runs retry up to max_retries with a 100 ms × n
backoff. Normalization errors are deterministic, so they skip the retry
loop and discard the event immediately with the failure counted. A failed
flush keeps the batch for the next trigger; persistent flush failure shows
up as divergence between the processed and stored counters.

Shutdown stops the workers after their current event, flushes the remaining
batch once, and closes the queue.
*/
package processor
