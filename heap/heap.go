package heap

import "github.com/f4os/kcore/memutils"

// HaltHandler is invoked with a *FatalError when the kernel cannot obtain memory it cannot run
// without. A real target never returns from it.
type HaltHandler func(err error)

// DefaultHaltHandler panics with the fatal error
func DefaultHaltHandler(err error) {
	panic(err)
}

// CreateOptions contains optional settings when creating a heap
type CreateOptions struct {
	// Flags indicates specific heap behaviors to activate or deactivate
	Flags memutils.CreateFlags
	// HaltHandler replaces DefaultHaltHandler for kernel allocations that must not fail
	HaltHandler HaltHandler
}

// KernelHeap serves the privileged region. It is allocate-only: there is no way to return
// blocks to the kernel free list, so every kernel allocation lives until reset.
type KernelHeap struct {
	region *Region
	halt   HaltHandler
}

// NewKernelHeap creates an uninitialized kernel heap
func NewKernelHeap(options CreateOptions) *KernelHeap {
	halt := options.HaltHandler
	if halt == nil {
		halt = DefaultHaltHandler
	}

	return &KernelHeap{
		region: NewRegion("kernel", options.Flags),
		halt:   halt,
	}
}

// Init links every block of [base, end) into the kernel free list. It must be called once, at boot.
func (h *KernelHeap) Init(base, end Address) error {
	return h.region.Init(base, end)
}

// Region exposes the underlying region for inspection
func (h *KernelHeap) Region() *Region {
	return h.region
}

// Allocate detaches enough blocks from the head of the kernel free list for size bytes.
// Exhaustion is reported as ErrOutOfMemory.
func (h *KernelHeap) Allocate(size int) (Allocation, error) {
	return h.region.Allocate(size, false)
}

// AllocateAligned is Allocate with the run starting at a multiple of size
func (h *KernelHeap) AllocateAligned(size int) (Allocation, error) {
	return h.region.Allocate(size, true)
}

// AllocateOrHalt is used for kernel-critical allocations. On failure the halt handler is
// invoked with a *FatalError; if the handler returns, the same *FatalError is returned.
func (h *KernelHeap) AllocateOrHalt(size int) (Allocation, error) {
	alloc, err := h.region.Allocate(size, false)
	if err == nil {
		return alloc, nil
	}

	fatal := &FatalError{
		Region: h.region.Name(),
		Size:   size,
		Err:    err,
	}
	h.halt(fatal)

	return Allocation{}, fatal
}

// UserHeap serves the unprivileged region. Blocks can be returned to the free list with Free.
type UserHeap struct {
	region *Region
}

// NewUserHeap creates an uninitialized user heap
func NewUserHeap(options CreateOptions) *UserHeap {
	return &UserHeap{
		region: NewRegion("user", options.Flags),
	}
}

// Init links every block of [base, end) into the user free list. It must be called once, at boot.
func (h *UserHeap) Init(base, end Address) error {
	return h.region.Init(base, end)
}

// Region exposes the underlying region for inspection
func (h *UserHeap) Region() *Region {
	return h.region
}

// Allocate detaches enough blocks from the user free list for size bytes
func (h *UserHeap) Allocate(size int) (Allocation, error) {
	return h.region.Allocate(size, false)
}

// AllocateAligned is Allocate with the run starting at a multiple of size
func (h *UserHeap) AllocateAligned(size int) (Allocation, error) {
	return h.region.Allocate(size, true)
}

// Free returns alloc's blocks to the head of the user free list. The blocks are not merged
// with adjacent free runs. Freeing the same allocation twice fails with ErrDoubleFree.
func (h *UserHeap) Free(alloc Allocation) error {
	return h.region.release(alloc)
}
