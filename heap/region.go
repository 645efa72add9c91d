package heap

import (
	"github.com/cockroachdb/errors"
	"github.com/f4os/kcore/internal/utils"
	"github.com/f4os/kcore/memutils"
	pkgerrors "github.com/pkg/errors"
)

// BlockSize is the size in bytes of one heap block: one 32-bit ARM address word
const BlockSize = 4

// Address is a 32-bit target address
type Address uint32

const noBlock int32 = -1

type slotState uint8

const (
	slotFree slotState = iota
	slotOccupied
)

// slot is one block of the region. A free slot carries the index of the next free block
// (or noBlock); an occupied slot carries the serial of the allocation that owns it.
type slot struct {
	state  slotState
	next   int32
	serial uint32
}

// Region manages one heap area as a singly-linked free list of blocks, threaded through an
// array of slots by index. Allocations detach runs of address-contiguous blocks from the list.
//
// A Region must be initialized exactly once with Init before it is used.
type Region struct {
	name  string
	mutex utils.OptionalMutex

	initialized bool
	base        Address
	end         Address
	slots       []slot
	data        []byte

	head            int32
	freeCount       int
	allocationCount int
	nextSerial      uint32
}

var _ memutils.Validatable = &Region{}

// NewRegion creates an uninitialized Region. The name is used in diagnostics only.
func NewRegion(name string, flags memutils.CreateFlags) *Region {
	return &Region{
		name:  name,
		mutex: utils.OptionalMutex{UseMutex: flags.UseMutex()},
		head:  noBlock,
	}
}

// Init walks [base, end) in block-sized steps, linking each block to the next, and clears
// the link of the last block. It fails with ErrAlreadyInitialized if called a second time.
func (r *Region) Init(base, end Address) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.initialized {
		return errors.Wrapf(ErrAlreadyInitialized, "%s heap at 0x%08x", r.name, r.base)
	}
	if end <= base {
		return errors.Wrapf(ErrInvalidRegion, "%s heap end 0x%08x is not above base 0x%08x", r.name, end, base)
	}
	if err := memutils.CheckAligned(base, BlockSize, "base"); err != nil {
		return errors.Mark(errors.Wrapf(err, "%s heap", r.name), ErrInvalidRegion)
	}
	if err := memutils.CheckAligned(end-base, BlockSize, "region size"); err != nil {
		return errors.Mark(errors.Wrapf(err, "%s heap", r.name), ErrInvalidRegion)
	}

	count := int(end-base) / BlockSize
	r.slots = make([]slot, count)
	r.data = make([]byte, int(end-base))
	for i := 0; i < count-1; i++ {
		r.slots[i] = slot{state: slotFree, next: int32(i + 1)}
	}
	r.slots[count-1] = slot{state: slotFree, next: noBlock}

	r.base = base
	r.end = end
	r.head = 0
	r.freeCount = count
	r.allocationCount = 0
	r.initialized = true

	memutils.DebugValidate(lockedRegion{r})
	return nil
}

// Name returns the diagnostic name of this region
func (r *Region) Name() string { return r.name }

// Base returns the first address managed by this region
func (r *Region) Base() Address { return r.base }

// End returns the address one past the last block managed by this region
func (r *Region) End() Address { return r.end }

// Initialized returns true once Init has succeeded
func (r *Region) Initialized() bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	return r.initialized
}

// Contains returns true if addr falls inside this region
func (r *Region) Contains(addr Address) bool {
	return r.initialized && addr >= r.base && addr < r.end
}

// TotalBlocks returns the number of blocks in the region
func (r *Region) TotalBlocks() int {
	return len(r.slots)
}

// FreeBlocks returns the number of blocks currently on the free list
func (r *Region) FreeBlocks() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	return r.freeCount
}

// AllocationCount returns the number of live allocations in the region
func (r *Region) AllocationCount() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	return r.allocationCount
}

// BlocksForSize returns the number of blocks an allocation of size bytes is charged. Requests
// that are an exact multiple of BlockSize are charged one extra block.
func BlocksForSize(size int) int {
	return size/BlockSize + 1
}

func (r *Region) addressOf(index int32) Address {
	return r.base + Address(int(index)*BlockSize)
}

// contiguousRun follows the free list from start and reports whether the first count entries
// are address-adjacent slots. When they are, it also returns the list entry after the run.
func (r *Region) contiguousRun(start int32, count int) (int32, bool) {
	current := start
	for i := 1; i < count; i++ {
		next := r.slots[current].next
		if next != current+1 {
			return noBlock, false
		}
		current = next
	}

	return r.slots[current].next, true
}

// Allocate detaches a run of blocks large enough for size bytes. If aligned is true, the run
// starts at an address that is a multiple of size.
//
// Failure leaves the free list unchanged.
func (r *Region) Allocate(size int, aligned bool) (Allocation, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if !r.initialized {
		return Allocation{}, errors.Wrapf(ErrNotInitialized, "%s heap", r.name)
	}
	if size < 0 {
		return Allocation{}, errors.Wrapf(ErrInvalidSize, "%s heap: size %d", r.name, size)
	}
	if aligned && size == 0 {
		return Allocation{}, errors.Wrapf(ErrInvalidSize, "%s heap: aligned allocations require a non-zero size", r.name)
	}

	needed := BlocksForSize(size)
	if needed > r.freeCount {
		return Allocation{}, errors.Wrapf(ErrOutOfMemory, "%s heap: %d bytes needs %d blocks, %d free", r.name, size, needed, r.freeCount)
	}

	prev := noBlock
	for start := r.head; start != noBlock; prev, start = start, r.slots[start].next {
		if aligned && !memutils.IsAligned(uint32(r.addressOf(start)), uint32(size)) {
			continue
		}

		after, ok := r.contiguousRun(start, needed)
		if !ok {
			continue
		}

		if prev == noBlock {
			r.head = after
		} else {
			r.slots[prev].next = after
		}

		return r.commit(start, needed, size), nil
	}

	if aligned {
		return Allocation{}, errors.Wrapf(ErrAlignmentUnsatisfiable, "%s heap: no free run of %d blocks at a multiple of %d", r.name, needed, size)
	}
	return Allocation{}, errors.Wrapf(ErrOutOfMemory, "%s heap: no contiguous run of %d blocks among %d free", r.name, needed, r.freeCount)
}

func (r *Region) commit(start int32, blocks int, size int) Allocation {
	r.nextSerial++
	serial := r.nextSerial

	for i := 0; i < blocks; i++ {
		r.slots[int(start)+i] = slot{state: slotOccupied, next: noBlock, serial: serial}
	}

	r.freeCount -= blocks
	r.allocationCount++

	memutils.DebugValidate(lockedRegion{r})

	return Allocation{
		region: r,
		serial: serial,
		first:  start,
		blocks: blocks,
		size:   size,
	}
}

// release returns every block of alloc to the head of the free list, in ascending order.
// Neighbouring free runs are not merged with it.
func (r *Region) release(alloc Allocation) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if alloc.region != r {
		return errors.Wrapf(ErrForeignAllocation, "%s heap cannot free an allocation from the %s heap", r.name, alloc.RegionName())
	}

	first := int(alloc.first)
	for i := first; i < first+alloc.blocks; i++ {
		if r.slots[i].state != slotOccupied || r.slots[i].serial != alloc.serial {
			return errors.Wrapf(ErrDoubleFree, "%s heap: allocation at 0x%08x", r.name, alloc.Address())
		}
	}

	last := first + alloc.blocks - 1
	for i := first; i < last; i++ {
		r.slots[i] = slot{state: slotFree, next: int32(i + 1)}
	}
	r.slots[last] = slot{state: slotFree, next: r.head}
	r.head = alloc.first

	r.freeCount += alloc.blocks
	r.allocationCount--

	memutils.DebugValidate(lockedRegion{r})
	return nil
}

// VisitFreeList calls visit for each block on the free list, in list order, stopping at the
// first error returned.
func (r *Region) VisitFreeList(visit func(index int, address Address) error) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	steps := 0
	for current := r.head; current != noBlock; current = r.slots[current].next {
		if steps > len(r.slots) {
			return pkgerrors.Errorf("%s heap free list is cyclic", r.name)
		}
		steps++

		err := visit(int(current), r.addressOf(current))
		if err != nil {
			return err
		}
	}

	return nil
}

// Validate performs internal consistency checks on the free list. When the region is working
// correctly it should not be possible for this method to return an error.
func (r *Region) Validate() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	return r.validate()
}

func (r *Region) validate() error {
	if !r.initialized {
		return errors.Wrapf(ErrNotInitialized, "%s heap", r.name)
	}

	if len(r.slots) != int(r.end-r.base)/BlockSize {
		return pkgerrors.Errorf("%s heap has %d slots but spans %d blocks", r.name, len(r.slots), int(r.end-r.base)/BlockSize)
	}

	visited := make([]bool, len(r.slots))
	listCount := 0
	for current := r.head; current != noBlock; current = r.slots[current].next {
		if current < 0 || int(current) >= len(r.slots) {
			return pkgerrors.Errorf("%s heap free list links to block %d, outside the region", r.name, current)
		}
		if visited[current] {
			return pkgerrors.Errorf("%s heap free list visits block %d twice", r.name, current)
		}
		if r.slots[current].state != slotFree {
			return pkgerrors.Errorf("%s heap free list contains occupied block %d", r.name, current)
		}
		visited[current] = true
		listCount++
	}

	if listCount != r.freeCount {
		return pkgerrors.Errorf("%s heap free list has %d blocks, but metadata indicates %d", r.name, listCount, r.freeCount)
	}

	serials := make(map[uint32]struct{})
	freeSlots := 0
	for index, s := range r.slots {
		switch s.state {
		case slotFree:
			freeSlots++
			if !visited[index] {
				return pkgerrors.Errorf("%s heap block %d is free but unreachable from the free list", r.name, index)
			}
		case slotOccupied:
			serials[s.serial] = struct{}{}
		default:
			return pkgerrors.Errorf("%s heap block %d has unknown state %d", r.name, index, s.state)
		}
	}

	if freeSlots != r.freeCount {
		return pkgerrors.Errorf("counted %d free blocks in the %s heap, but metadata indicates %d", freeSlots, r.name, r.freeCount)
	}

	if len(serials) != r.allocationCount {
		return pkgerrors.Errorf("counted %d live allocations in the %s heap, but metadata indicates %d", len(serials), r.name, r.allocationCount)
	}

	return nil
}

// lockedRegion validates a Region whose mutex is already held
type lockedRegion struct {
	region *Region
}

func (l lockedRegion) Validate() error {
	return l.region.validate()
}
