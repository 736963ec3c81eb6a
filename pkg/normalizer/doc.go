/*
Package normalizer maps raw source records onto the unified event schema.

Dispatch is by source type tag. Each mapper applies fixed rules: which wire
field becomes the entity id, how success is determined, and how the resource
context is shaped. Fields the unified schema has no column for are preserved
in source_specific.

Failures are deterministic and typed: ErrUnknownSource for an unregistered
tag, ErrSchemaViolation for missing or ill-typed required fields, and
ErrBadTimestamp when the event time cannot be parsed. A record with an
unparseable timestamp is rejected outright rather than stamped with a
substitute time.
*/
package normalizer
