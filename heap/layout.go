package heap

import (
	"math"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jreader"
)

// Bounds is the [Base, End) address range of one heap region, as placed by the linker
type Bounds struct {
	Base Address
	End  Address
}

// Size returns the number of bytes covered by the bounds
func (b Bounds) Size() int {
	if b.End <= b.Base {
		return 0
	}
	return int(b.End - b.Base)
}

// Overlaps returns true if the two ranges share at least one address
func (b Bounds) Overlaps(other Bounds) bool {
	return b.Base < other.End && other.Base < b.End
}

// Layout holds the bounds of the kernel and user heap regions
type Layout struct {
	Kernel Bounds
	User   Bounds
}

// Validate rejects empty or overlapping regions
func (l Layout) Validate() error {
	if l.Kernel.Size() == 0 {
		return errors.Wrapf(ErrInvalidRegion, "kernel heap [0x%08x, 0x%08x) is empty", l.Kernel.Base, l.Kernel.End)
	}
	if l.User.Size() == 0 {
		return errors.Wrapf(ErrInvalidRegion, "user heap [0x%08x, 0x%08x) is empty", l.User.Base, l.User.End)
	}
	if l.Kernel.Overlaps(l.User) {
		return errors.Wrapf(ErrInvalidRegion, "kernel heap [0x%08x, 0x%08x) overlaps user heap [0x%08x, 0x%08x)",
			l.Kernel.Base, l.Kernel.End, l.User.Base, l.User.End)
	}
	return nil
}

// ParseLayout reads a board layout document of the form
//
//	{"kernel": {"base": "0x10000000", "end": "0x10010000"},
//	 "user":   {"base": "0x20000000", "size": 131072}}
//
// Addresses may be JSON numbers or strings in any base strconv.ParseUint accepts with base 0.
// Either "end" or "size" may be given for each region. Unknown properties are ignored.
func ParseLayout(data []byte) (Layout, error) {
	var layout Layout
	r := jreader.NewReader(data)

	for obj := r.Object(); obj.Next(); {
		switch string(obj.Name()) {
		case "kernel":
			layout.Kernel = readBounds(&r, "kernel")
		case "user":
			layout.User = readBounds(&r, "user")
		default:
			r.SkipValue()
		}
	}

	if err := r.Error(); err != nil {
		return Layout{}, errors.Wrap(err, "could not parse heap layout")
	}

	if err := layout.Validate(); err != nil {
		return Layout{}, err
	}

	return layout, nil
}

func readBounds(r *jreader.Reader, region string) Bounds {
	var bounds Bounds
	var size uint64
	var hasEnd, hasSize bool

	for obj := r.Object(); obj.Next(); {
		name := string(obj.Name())
		switch name {
		case "base":
			bounds.Base = Address(readAddress(r, region, name))
		case "end":
			bounds.End = Address(readAddress(r, region, name))
			hasEnd = true
		case "size":
			size = readAddress(r, region, name)
			hasSize = true
		default:
			r.SkipValue()
		}
	}

	if hasSize && !hasEnd {
		if uint64(bounds.Base)+size > math.MaxUint32 {
			r.AddError(errors.Newf("%s heap of %d bytes at 0x%08x runs past the 32-bit address space", region, size, bounds.Base))
			return Bounds{}
		}
		bounds.End = bounds.Base + Address(size)
	}

	return bounds
}

func readAddress(r *jreader.Reader, region, field string) uint64 {
	value := r.Any()

	switch value.Kind {
	case jreader.NumberValue:
		if value.Number < 0 || value.Number > math.MaxUint32 || value.Number != math.Trunc(value.Number) {
			r.AddError(errors.Newf("%s.%s: %v is not a 32-bit address", region, field, value.Number))
			return 0
		}
		return uint64(value.Number)
	case jreader.StringValue:
		parsed, err := strconv.ParseUint(value.String, 0, 64)
		if err != nil || parsed > math.MaxUint32 {
			r.AddError(errors.Newf("%s.%s: %q is not a 32-bit address", region, field, value.String))
			return 0
		}
		return parsed
	default:
		if r.Error() == nil {
			r.AddError(errors.Newf("%s.%s must be a number or a string", region, field))
		}
		return 0
	}
}
