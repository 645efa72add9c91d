package kernel_test

import (
	"os"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/f4os/kcore/heap"
	"github.com/f4os/kcore/kernel"
	"github.com/f4os/kcore/resource"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

var smallLayout = heap.Layout{
	Kernel: heap.Bounds{Base: 0x10000000, End: 0x10000100},
	User:   heap.Bounds{Base: 0x20000000, End: 0x20000100},
}

type closingStream struct {
	closes int
	err    error
}

func (s *closingStream) ReadUnit() (byte, error) {
	return 0, resource.ErrNoData
}

func (s *closingStream) WriteUnit(unit byte) (int, error) {
	return 1, nil
}

func (s *closingStream) Close(res *resource.Resource) error {
	s.closes++
	return s.err
}

func newSystem(t *testing.T, options kernel.CreateOptions) *kernel.System {
	logger := slog.New(slog.NewTextHandler(os.Stdout))
	if options.Layout == (heap.Layout{}) {
		options.Layout = smallLayout
	}
	sys, err := kernel.New(logger, options)
	require.NoError(t, err)
	return sys
}

func TestSystemBootsWithDefaultLayout(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout))
	sys, err := kernel.New(logger, kernel.CreateOptions{})
	require.NoError(t, err)

	require.Equal(t, kernel.DefaultLayout.Kernel.Base, sys.KernelHeap().Region().Base())
	require.Equal(t, kernel.DefaultLayout.User.End, sys.UserHeap().Region().End())
	require.Equal(t, 0x10000/heap.BlockSize, sys.KernelHeap().Region().FreeBlocks())
	require.Equal(t, 0x20000/heap.BlockSize, sys.UserHeap().Region().FreeBlocks())
}

func TestSystemRejectsOverlappingLayout(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout))
	_, err := kernel.New(logger, kernel.CreateOptions{
		Layout: heap.Layout{
			Kernel: heap.Bounds{Base: 0x20000000, End: 0x20000100},
			User:   heap.Bounds{Base: 0x20000080, End: 0x20000200},
		},
	})
	require.True(t, errors.Is(err, heap.ErrInvalidRegion))
}

func TestSystemTasks(t *testing.T) {
	sys := newSystem(t, kernel.CreateOptions{})

	shell, err := sys.NewTask("shell")
	require.NoError(t, err)
	blink, err := sys.NewTask("blink")
	require.NoError(t, err)
	require.NotEqual(t, shell.ID(), blink.ID())

	require.Equal(t, []*kernel.Task{shell, blink}, sys.Tasks())

	found, err := sys.Task(blink.ID())
	require.NoError(t, err)
	require.Same(t, blink, found)
	require.Equal(t, "blink", found.Name())
	require.True(t, sys.KernelHeap().Region().Contains(found.Address()))

	_, err = sys.Task(99)
	require.True(t, errors.Is(err, kernel.ErrNoSuchTask))
}

func TestSystemNewTaskOutOfMemory(t *testing.T) {
	sys := newSystem(t, kernel.CreateOptions{})

	// 64 kernel blocks, 9 per task control block
	for i := 0; i < 7; i++ {
		_, err := sys.NewTask("worker")
		require.NoError(t, err)
	}

	_, err := sys.NewTask("one too many")
	require.True(t, errors.Is(err, heap.ErrOutOfMemory))
	require.Len(t, sys.Tasks(), 7)
}

func TestSystemExitTaskClosesResources(t *testing.T) {
	sys := newSystem(t, kernel.CreateOptions{})
	task, err := sys.NewTask("shell")
	require.NoError(t, err)

	streams := []*closingStream{{}, {}}
	for _, stream := range streams {
		res := resource.Create()
		res.SetProvider(stream)
		_, err := task.Resources().Register(res)
		require.NoError(t, err)
	}

	kernelFree := sys.KernelHeap().Region().FreeBlocks()
	require.NoError(t, sys.ExitTask(task))
	for _, stream := range streams {
		require.Equal(t, 1, stream.closes)
	}
	require.Equal(t, 0, task.Resources().Len())
	require.Empty(t, sys.Tasks())

	// Kernel memory stays charged after exit
	require.Equal(t, kernelFree, sys.KernelHeap().Region().FreeBlocks())

	require.True(t, errors.Is(sys.ExitTask(task), kernel.ErrNoSuchTask))
}

func TestSystemExitTaskReportsCloseFailure(t *testing.T) {
	sys := newSystem(t, kernel.CreateOptions{})
	task, err := sys.NewTask("shell")
	require.NoError(t, err)

	res := resource.Create()
	res.SetProvider(&closingStream{err: errors.New("stuck")})
	_, err = task.Resources().Register(res)
	require.NoError(t, err)

	err = sys.ExitTask(task)
	require.True(t, errors.Is(err, resource.ErrIOFailure))
	require.Empty(t, sys.Tasks())
}

func TestSystemMaxResourcesPerTask(t *testing.T) {
	sys := newSystem(t, kernel.CreateOptions{MaxResourcesPerTask: 2})
	task, err := sys.NewTask("shell")
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		res := resource.Create()
		res.SetProvider(&closingStream{})
		_, err := task.Resources().Register(res)
		require.NoError(t, err)
	}

	res := resource.Create()
	res.SetProvider(&closingStream{})
	_, err = task.Resources().Register(res)
	require.True(t, errors.Is(err, resource.ErrOutOfMemory))
}

func TestSystemHalt(t *testing.T) {
	var halted []error
	sys := newSystem(t, kernel.CreateOptions{
		HaltHandler: func(err error) { halted = append(halted, err) },
	})

	_, err := sys.KernelHeap().AllocateOrHalt(0x100)
	require.True(t, heap.IsFatal(err))
	require.Len(t, halted, 1)
	require.True(t, errors.Is(halted[0], heap.ErrOutOfMemory))
}

func TestSystemDefaultHaltPanics(t *testing.T) {
	sys := newSystem(t, kernel.CreateOptions{})

	require.Panics(t, func() {
		sys.Halt(errors.New("hard fault"))
	})
}

func TestSystemStatistics(t *testing.T) {
	sys := newSystem(t, kernel.CreateOptions{})
	task, err := sys.NewTask("shell")
	require.NoError(t, err)

	res := resource.Create()
	res.SetProvider(&closingStream{})
	_, err = task.Resources().Register(res)
	require.NoError(t, err)

	_, err = sys.UserHeap().Allocate(16)
	require.NoError(t, err)

	stats := sys.CalculateStatistics()
	require.Equal(t, 1, stats.Tasks)
	require.Equal(t, 1, stats.OpenResources)

	// Task control block plus one chunk of handle slots
	require.Equal(t, 2, stats.Kernel.AllocationCount)
	require.Equal(t, 64-9-9, stats.Kernel.FreeBlockCount)
	require.Equal(t, 1, stats.User.AllocationCount)
	require.Equal(t, 64-5, stats.User.FreeBlockCount)
	require.Equal(t, 3, stats.Total.AllocationCount)
	require.Equal(t, 128, stats.Total.BlockCount)
	require.Equal(t, 46*heap.BlockSize-1, stats.Kernel.LargestAllocatableSize(heap.BlockSize))
}

func TestSystemPrintDetailedMap(t *testing.T) {
	sys := newSystem(t, kernel.CreateOptions{})
	_, err := sys.NewTask("shell")
	require.NoError(t, err)

	writer := jwriter.NewWriter()
	sys.PrintDetailedMap(&writer)
	require.NoError(t, writer.Error())

	require.JSONEq(t, `{
		"KernelHeap": {
			"Name": "kernel",
			"Base": "0x10000000",
			"End": "0x10000100",
			"TotalBlocks": 64,
			"FreeBlocks": 55,
			"Allocations": 1,
			"FreeRuns": 1,
			"LargestFreeRun": 55,
			"Runs": [
				{"Address": "0x10000000", "Blocks": 9, "Type": "Allocation"},
				{"Address": "0x10000024", "Blocks": 55, "Type": "Free"}
			]
		},
		"UserHeap": {
			"Name": "user",
			"Base": "0x20000000",
			"End": "0x20000100",
			"TotalBlocks": 64,
			"FreeBlocks": 64,
			"Allocations": 0,
			"FreeRuns": 1,
			"LargestFreeRun": 64,
			"Runs": [
				{"Address": "0x20000000", "Blocks": 64, "Type": "Free"}
			]
		},
		"Tasks": [
			{
				"ID": 1,
				"Name": "shell",
				"Address": "0x10000000",
				"Resources": {"Capacity": 0, "Open": 0, "Handles": []}
			}
		]
	}`, string(writer.Bytes()))
}

func TestSystemNewResourceChargesKernelHeap(t *testing.T) {
	sys := newSystem(t, kernel.CreateOptions{})
	free := sys.KernelHeap().Region().FreeBlocks()

	res, err := sys.NewResource()
	require.NoError(t, err)
	require.NotNil(t, res)
	require.Equal(t, free-heap.BlocksForSize(kernel.ResourceSize), sys.KernelHeap().Region().FreeBlocks())

	for {
		if _, err = sys.NewResource(); err != nil {
			break
		}
	}
	require.True(t, errors.Is(err, heap.ErrOutOfMemory))
}
