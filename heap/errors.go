package heap

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

var (
	// ErrOutOfMemory is returned when the free list is exhausted before a request can be satisfied
	ErrOutOfMemory = errors.New("out of memory")
	// ErrAlignmentUnsatisfiable is returned when an aligned allocation cannot find a suitably
	// aligned run of free blocks before the free list is exhausted
	ErrAlignmentUnsatisfiable = errors.New("alignment unsatisfiable")
	// ErrNotInitialized is returned when a region is used before Init
	ErrNotInitialized = errors.New("heap region is not initialized")
	// ErrAlreadyInitialized is returned when Init is called on a region that has already been
	// initialized. Re-initializing would silently discard every live allocation.
	ErrAlreadyInitialized = errors.New("heap region is already initialized")
	// ErrInvalidRegion is returned when region bounds are unusable
	ErrInvalidRegion = errors.New("invalid heap region bounds")
	// ErrInvalidSize is returned when an allocation size cannot be serviced at all
	ErrInvalidSize = errors.New("invalid allocation size")
	// ErrDoubleFree is returned when freeing an allocation whose blocks are no longer owned by it
	ErrDoubleFree = errors.New("allocation is not live")
	// ErrForeignAllocation is returned when freeing an allocation into a region that did not produce it
	ErrForeignAllocation = errors.New("allocation belongs to a different region")
)

// FatalError is the result of a kernel allocation that the system cannot continue without.
// It is handed to the halt handler rather than folded into the ordinary error results.
type FatalError struct {
	Region string
	Size   int
	Err    error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal allocation failure in %s heap (%d bytes): %v", e.Region, e.Size, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err carries a FatalError
func IsFatal(err error) bool {
	var fatal *FatalError
	return errors.As(err, &fatal)
}
