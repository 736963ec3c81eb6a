// Package log provides structured logging for Vanguard using zerolog.
//
// The package wraps a single global logger configured once at startup via
// Init. Components obtain child loggers through the With* helpers so that
// every line carries the component, worker, source or partition it relates
// to. Output is JSON in production and human-readable console format during
// development.
package log
