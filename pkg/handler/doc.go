// Package handler compiles and runs a node's set-handler source text
// against the fixed eleven-parameter execution environment. See Dispatch.
package handler
