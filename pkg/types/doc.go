// Package types is documented in types.go; this file exists to mirror the
// one-doc.go-per-package layout the rest of the module follows.
package types
