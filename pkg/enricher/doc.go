/*
Package enricher adds context to normalized events.

Five aspects run in order, each independently best-effort:

 1. Geographic lookup: longest-prefix match of the source address against a
    preloaded network-prefix table. A miss yields an explicit "Unknown"
    marker instead of an absent location.
 2. Entity metadata: a TTL cache keyed by entity id in front of a pluggable
    resolver. Only positive answers are cached.
 3. Device fingerprint: user-agent parsing when the source supplied no
    device block.
 4. Sensitivity classification: declarative rules over resource type,
    service and endpoint map to a level in [1,5].
 5. PII anonymization: the source address is masked (final IPv4 octet) and
    flagged source_specific fields are hashed.

A failed aspect is logged and counted; the event proceeds with that aspect
skipped. Enrichment is idempotent over already-enriched events.
*/
package enricher
