// Package state provides the concurrency-safe maps the Scheduler uses to
// hold shared state and per-node runtime caches across a graph traversal.
package state
