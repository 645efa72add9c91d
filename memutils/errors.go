package memutils

import "github.com/pkg/errors"

// AlignmentError is the error returned from CheckAligned if a value does not sit on the requested boundary
var AlignmentError error = errors.New("value is not aligned")
