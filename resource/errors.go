package resource

import (
	"github.com/cockroachdb/errors"
	"github.com/f4os/kcore/heap"
)

var (
	// ErrInvalidHandle is returned for a handle the table never issued
	ErrInvalidHandle = errors.New("invalid resource handle")
	// ErrClosed is returned for a handle whose resource has been closed, or when a resource
	// is closed while a call is dispatching to it
	ErrClosed = errors.New("resource is closed")
	// ErrIOFailure marks errors produced by a resource provider
	ErrIOFailure = errors.New("resource i/o failure")
	// ErrOutOfMemory is returned when the table cannot grow to hold another handle
	ErrOutOfMemory = heap.ErrOutOfMemory
	// ErrNoData is returned by a provider that has nothing to produce yet. Dispatch stops
	// without reporting an error.
	ErrNoData = errors.New("no data available")
	// ErrUnsupported is returned by a provider for an operation it does not implement
	ErrUnsupported = errors.New("operation not supported by this resource")
	// ErrInvalidResource is returned when registering a descriptor that has no provider or
	// is already registered
	ErrInvalidResource = errors.New("invalid resource descriptor")
)
