package memutils

import (
	cerrors "github.com/cockroachdb/errors"
)

type Number interface {
	~int | ~uint | ~uint32 | ~int32
}

// CheckAligned returns an error wrapping AlignmentError if value is not a multiple of alignment.
// An alignment of zero is never satisfiable.
func CheckAligned[T Number](value T, alignment T, name string) error {
	if alignment == 0 || value%alignment != 0 {
		return cerrors.Wrapf(AlignmentError, "%s is %d, alignment is %d", name, value, alignment)
	}
	return nil
}

// IsAligned reports whether value is a multiple of alignment. The alignment does not need to
// be a power of two.
func IsAligned[T Number](value T, alignment T) bool {
	return alignment != 0 && value%alignment == 0
}
