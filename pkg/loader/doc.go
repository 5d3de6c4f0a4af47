// Package loader caches and resolves graph/node artifacts by URL, with an
// event-driven override and a pluggable network fetch fallback.
package loader
