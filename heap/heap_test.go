package heap_test

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/f4os/kcore/heap"
	"github.com/f4os/kcore/memutils"
	"github.com/stretchr/testify/require"
)

func TestKernelHeapIsAllocateOnly(t *testing.T) {
	kernel := heap.NewKernelHeap(heap.CreateOptions{})
	require.NoError(t, kernel.Init(0x10000000, 0x10000100))

	// There is no way to hand blocks back, so free space must only ever shrink
	free := kernel.Region().FreeBlocks()
	for _, size := range []int{20, 4, 0, 7, 16} {
		_, err := kernel.Allocate(size)
		require.NoError(t, err)
		require.Less(t, kernel.Region().FreeBlocks(), free)
		free = kernel.Region().FreeBlocks()
	}

	_, isFreer := interface{}(kernel).(interface{ Free(heap.Allocation) error })
	require.False(t, isFreer)
	require.NoError(t, kernel.Region().Validate())
}

func TestKernelHeapAllocateReportsOutOfMemory(t *testing.T) {
	halted := false
	kernel := heap.NewKernelHeap(heap.CreateOptions{
		HaltHandler: func(err error) { halted = true },
	})
	require.NoError(t, kernel.Init(0x10000000, 0x10000010))

	_, err := kernel.Allocate(16)
	require.True(t, errors.Is(err, heap.ErrOutOfMemory))
	require.False(t, heap.IsFatal(err))
	require.False(t, halted)
}

func TestKernelHeapAllocateOrHalt(t *testing.T) {
	var haltedWith error
	kernel := heap.NewKernelHeap(heap.CreateOptions{
		HaltHandler: func(err error) { haltedWith = err },
	})
	require.NoError(t, kernel.Init(0x10000000, 0x10000010))

	alloc, err := kernel.AllocateOrHalt(8)
	require.NoError(t, err)
	require.Equal(t, heap.Address(0x10000000), alloc.Address())
	require.NoError(t, haltedWith)

	alloc, err = kernel.AllocateOrHalt(8)
	require.True(t, alloc.IsZero())
	require.True(t, heap.IsFatal(err))
	require.True(t, errors.Is(err, heap.ErrOutOfMemory))
	require.Equal(t, err, haltedWith)

	var fatal *heap.FatalError
	require.True(t, errors.As(err, &fatal))
	require.Equal(t, "kernel", fatal.Region)
	require.Equal(t, 8, fatal.Size)
}

func TestKernelHeapDefaultHaltPanics(t *testing.T) {
	kernel := heap.NewKernelHeap(heap.CreateOptions{})
	require.NoError(t, kernel.Init(0x10000000, 0x10000004))

	require.Panics(t, func() {
		_, _ = kernel.AllocateOrHalt(4)
	})
}

func TestKernelHeapAligned(t *testing.T) {
	kernel := heap.NewKernelHeap(heap.CreateOptions{Flags: memutils.CreateExternallySynchronized})
	require.NoError(t, kernel.Init(0x10000004, 0x10000104))

	alloc, err := kernel.AllocateAligned(32)
	require.NoError(t, err)
	require.Equal(t, heap.Address(0x10000020), alloc.Address())
}

func TestUserHeapFree(t *testing.T) {
	user := heap.NewUserHeap(heap.CreateOptions{})
	require.NoError(t, user.Init(0x20000000, 0x20000040))

	first, err := user.Allocate(8)
	require.NoError(t, err)
	second, err := user.Allocate(8)
	require.NoError(t, err)
	require.Equal(t, 10, user.Region().FreeBlocks())

	require.NoError(t, user.Free(first))
	require.Equal(t, 13, user.Region().FreeBlocks())
	require.Equal(t, 1, user.Region().AllocationCount())

	// The freed run goes back to the head and is reused immediately
	again, err := user.Allocate(8)
	require.NoError(t, err)
	require.Equal(t, first.Address(), again.Address())

	require.NoError(t, user.Free(second))
	require.NoError(t, user.Free(again))
	require.Equal(t, 16, user.Region().FreeBlocks())
	require.NoError(t, user.Region().Validate())
}

func TestUserHeapDoubleFree(t *testing.T) {
	user := heap.NewUserHeap(heap.CreateOptions{})
	require.NoError(t, user.Init(0x20000000, 0x20000040))

	alloc, err := user.Allocate(4)
	require.NoError(t, err)
	require.NoError(t, user.Free(alloc))

	err = user.Free(alloc)
	require.True(t, errors.Is(err, heap.ErrDoubleFree))
	require.Equal(t, 16, user.Region().FreeBlocks())

	// A stale handle to blocks that now belong to someone else is also rejected
	reused, err := user.Allocate(4)
	require.NoError(t, err)
	require.Equal(t, alloc.Address(), reused.Address())

	err = user.Free(alloc)
	require.True(t, errors.Is(err, heap.ErrDoubleFree))
	require.Equal(t, 1, user.Region().AllocationCount())
	require.NoError(t, user.Region().Validate())
}

func TestUserHeapForeignFree(t *testing.T) {
	kernel := heap.NewKernelHeap(heap.CreateOptions{})
	require.NoError(t, kernel.Init(0x10000000, 0x10000040))
	user := heap.NewUserHeap(heap.CreateOptions{})
	require.NoError(t, user.Init(0x20000000, 0x20000040))

	kalloc, err := kernel.Allocate(4)
	require.NoError(t, err)

	err = user.Free(kalloc)
	require.True(t, errors.Is(err, heap.ErrForeignAllocation))

	err = user.Free(heap.Allocation{})
	require.True(t, errors.Is(err, heap.ErrForeignAllocation))
}

func TestUserHeapConcurrentAllocation(t *testing.T) {
	user := heap.NewUserHeap(heap.CreateOptions{})
	require.NoError(t, user.Init(0x20000000, 0x20001000))

	results := make(chan heap.Allocation, 64)
	for i := 0; i < 8; i++ {
		go func() {
			for j := 0; j < 8; j++ {
				alloc, err := user.Allocate(12)
				if err != nil {
					panic(err)
				}
				results <- alloc
			}
		}()
	}

	seen := make(map[heap.Address]bool)
	for i := 0; i < 64; i++ {
		alloc := <-results
		for address := alloc.Address(); address < alloc.End(); address += heap.BlockSize {
			require.False(t, seen[address], "block 0x%08x handed out twice", address)
			seen[address] = true
		}
	}

	require.Equal(t, 64, user.Region().AllocationCount())
	require.NoError(t, user.Region().Validate())
}
