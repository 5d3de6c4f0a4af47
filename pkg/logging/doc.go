// Package logging provides structured logging for the dataflow engine.
//
// It wraps log/slog with a small chaining API (WithGraphID, WithVectorID,
// WithTraversalID, WithField, WithError) so call sites build up context
// incrementally without repeating the same field set at every log line.
// JSON output is the default; Pretty enables a human-readable text handler
// for local development.
//
// This package is separate from pkg/eventbus: eventbus carries the engine's
// documented lifecycle events (begin, beginedge, set, ...) to caller-supplied
// listeners, while this package is for the engine's own operational logs.
package logging
