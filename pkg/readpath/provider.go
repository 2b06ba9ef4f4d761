// Package readpath provides the read-provider capability that replaces
// ad-hoc interception of the global file-open and object-load entry points.
//
// A worker selects one Provider at startup - direct filesystem, or
// cache-aware scoped to the managed cache root - and threads it through
// whatever consumes dataset files. Paths outside the managed root always
// fall through to the direct provider.
package readpath

import (
	"io"
	"os"
)

// Provider services the two read primitives the data-loading path uses:
// streaming file opens and whole-object loads.
type Provider interface {
	// Open opens the file at path for reading.
	Open(path string) (io.ReadCloser, error)

	// ReadObject reads the entire object at path. This is the entry point
	// object deserialization goes through; decoding itself stays with the
	// caller.
	ReadObject(path string) ([]byte, error)
}

// Direct is the plain filesystem Provider.
type Direct struct{}

// NewDirect creates a Direct provider.
func NewDirect() *Direct {
	return &Direct{}
}

// Open opens the file at path.
func (d *Direct) Open(path string) (io.ReadCloser, error) {
	return os.Open(path)
}

// ReadObject reads the entire file at path.
func (d *Direct) ReadObject(path string) ([]byte, error) {
	return os.ReadFile(path)
}
