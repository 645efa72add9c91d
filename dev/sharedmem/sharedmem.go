// Package sharedmem provides a fixed-capacity ring of kernel memory that tasks can pass units
// through. Both cursors wrap independently: writes overwrite unread data and reads never wait
// for a writer.
package sharedmem

import (
	"github.com/cockroachdb/errors"
	"github.com/f4os/kcore/heap"
	"github.com/f4os/kcore/kernel"
	"github.com/f4os/kcore/resource"
	"github.com/f4os/kcore/semaphore"
	"golang.org/x/exp/slog"
)

// Capacity is the number of units the ring holds
const Capacity = 512

// envSize covers the ring data and both cursors
const envSize = Capacity + 8

type ring struct {
	data     []byte
	readPos  int
	writePos int

	sem *semaphore.Semaphore
}

var _ resource.Provider = &ring{}
var _ resource.Closer = &ring{}

// Open registers a new, zeroed ring with the task's resource table. The ring and its
// semaphore come from the kernel heap: running out of kernel memory here halts the system.
func Open(sys *kernel.System, task *kernel.Task) (resource.Handle, error) {
	env, err := sys.KernelHeap().Allocate(envSize)
	if err != nil {
		return resource.InvalidHandle, halt(sys, envSize, err)
	}

	res, err := sys.NewResource()
	if err != nil {
		return resource.InvalidHandle, halt(sys, kernel.ResourceSize, err)
	}

	if _, err := sys.KernelHeap().AllocateOrHalt(semaphore.Size); err != nil {
		return resource.InvalidHandle, err
	}

	r := &ring{
		data: env.Bytes()[:Capacity],
		sem:  semaphore.New(),
	}
	for i := range r.data {
		r.data[i] = 0
	}

	res.SetProvider(r)
	res.SetSemaphore(r.sem)

	return task.Resources().Register(res)
}

func halt(sys *kernel.System, size int, err error) error {
	stats := sys.CalculateStatistics()
	sys.Logger().Error("unable to allocate memory for shared memory resource",
		slog.Int("Tasks", stats.Tasks),
		slog.Int("UserFreeBlocks", stats.User.FreeBlockCount),
		slog.Int("KernelFreeBlocks", stats.Kernel.FreeBlockCount),
		slog.Int("KernelLargestAllocation", stats.Kernel.LargestAllocatableSize(heap.BlockSize)),
	)

	fatal := &heap.FatalError{
		Region: sys.KernelHeap().Region().Name(),
		Size:   size,
		Err:    errors.Wrap(err, "shared memory resource"),
	}
	sys.Halt(fatal)
	return fatal
}

func (r *ring) Name() string {
	return "sharedmem"
}

func (r *ring) ReadUnit() (byte, error) {
	if r.readPos >= Capacity {
		r.readPos = 1
		return r.data[0], nil
	}
	unit := r.data[r.readPos]
	r.readPos++
	return unit, nil
}

func (r *ring) WriteUnit(unit byte) (int, error) {
	if r.writePos >= Capacity {
		r.writePos = 1
		r.data[0] = unit
		return 1, nil
	}
	r.data[r.writePos] = unit
	r.writePos++
	return 1, nil
}

// Close waits out any caller holding the ring and destroys its semaphore. The kernel
// memory behind the ring stays charged.
func (r *ring) Close(res *resource.Resource) error {
	return r.sem.AcquireForFree()
}
