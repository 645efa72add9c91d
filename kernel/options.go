package kernel

import (
	"github.com/f4os/kcore/heap"
	"github.com/f4os/kcore/memutils"
)

// DefaultMaxResourcesPerTask caps each task's resource table when CreateOptions leaves it unset
const DefaultMaxResourcesPerTask = 32

// DefaultLayout places the kernel heap in the 64KiB core-coupled RAM and the user heap in the
// 128KiB main SRAM of an STM32F40x
var DefaultLayout = heap.Layout{
	Kernel: heap.Bounds{Base: 0x10000000, End: 0x10010000},
	User:   heap.Bounds{Base: 0x20000000, End: 0x20020000},
}

// CreateOptions contains optional settings when booting a System
type CreateOptions struct {
	// Flags indicates specific heap behaviors to activate or deactivate
	Flags memutils.CreateFlags
	// Layout gives the bounds of the kernel and user heaps. The zero value selects DefaultLayout.
	Layout heap.Layout
	// MaxResourcesPerTask caps the number of handles a single task may hold open. Zero selects
	// DefaultMaxResourcesPerTask; a negative value leaves tables bounded only by the kernel heap.
	MaxResourcesPerTask int
	// HaltHandler is called when the kernel cannot continue. The default panics.
	HaltHandler heap.HaltHandler
}
