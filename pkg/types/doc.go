/*
Package types defines the event data model shared across the pipeline.

Three kinds of record flow through Vanguard:

  - Source shapes (IdentitySignInRecord, CloudAuditRecord, APIAccessRecord):
    the wire formats accepted at the ingest edge, validated field-by-field
    before anything is enqueued.
  - QueuedItem: the raw record plus the server-stamped source type,
    ingestion id and ingestion timestamp. Opaque to the queue.
  - UnifiedEvent: the canonical post-normalization record. Every persisted
    row derives from one of these.

DeriveTemporal is the pure function mapping an event timestamp to its
temporal features; is_business_hours covers 09:00-16:59 UTC and day_of_week
counts from Monday=0.
*/
package types
