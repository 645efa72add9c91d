// Package kernel boots the memory and resource core: it carves the kernel and user heaps out
// of the board layout, and tracks the tasks that own resource tables.
package kernel

import (
	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/f4os/kcore/heap"
	"github.com/f4os/kcore/internal/utils"
	"github.com/f4os/kcore/resource"
	"golang.org/x/exp/slices"
	"golang.org/x/exp/slog"
)

const (
	// TaskSize is the number of bytes charged to the kernel heap for each task control block
	TaskSize = 32
	// ResourceSize is the number of bytes charged to the kernel heap for each resource descriptor
	ResourceSize = 28
)

// ErrNoSuchTask is returned when looking up or exiting a task that is not running
var ErrNoSuchTask = errors.New("no such task")

// System owns both heaps and the task registry
type System struct {
	logger *slog.Logger
	halt   heap.HaltHandler

	kernelHeap   *heap.KernelHeap
	userHeap     *heap.UserHeap
	maxResources int

	tasksMutex utils.OptionalRWMutex
	tasks      *swiss.Map[TaskID, *Task]
	nextTaskID TaskID
}

// New boots a System
//
// logger - Receives debug traces and error reports from the system and its providers
//
// options - Optional parameters: it is valid to leave all the fields blank
func New(logger *slog.Logger, options CreateOptions) (*System, error) {
	layout := options.Layout
	if layout == (heap.Layout{}) {
		layout = DefaultLayout
	}
	if err := layout.Validate(); err != nil {
		return nil, err
	}

	maxResources := options.MaxResourcesPerTask
	if maxResources == 0 {
		maxResources = DefaultMaxResourcesPerTask
	} else if maxResources < 0 {
		maxResources = 0
	}

	sys := &System{
		logger:       logger,
		halt:         options.HaltHandler,
		maxResources: maxResources,
		tasksMutex:   utils.OptionalRWMutex{UseMutex: options.Flags.UseMutex()},
		tasks:        swiss.NewMap[TaskID, *Task](42),
	}
	if sys.halt == nil {
		sys.halt = heap.DefaultHaltHandler
	}

	sys.kernelHeap = heap.NewKernelHeap(heap.CreateOptions{
		Flags:       options.Flags,
		HaltHandler: sys.Halt,
	})
	sys.userHeap = heap.NewUserHeap(heap.CreateOptions{
		Flags: options.Flags,
	})

	if err := sys.kernelHeap.Init(layout.Kernel.Base, layout.Kernel.End); err != nil {
		return nil, errors.Wrap(err, "could not initialize kernel heap")
	}
	if err := sys.userHeap.Init(layout.User.Base, layout.User.End); err != nil {
		return nil, errors.Wrap(err, "could not initialize user heap")
	}

	logger.Debug("System::New",
		slog.String("Flags", options.Flags.String()),
		slog.Int("KernelBlocks", sys.kernelHeap.Region().TotalBlocks()),
		slog.Int("UserBlocks", sys.userHeap.Region().TotalBlocks()),
	)

	return sys, nil
}

// Logger returns the logger the system was booted with
func (s *System) Logger() *slog.Logger {
	return s.logger
}

// KernelHeap returns the privileged, allocate-only heap
func (s *System) KernelHeap() *heap.KernelHeap {
	return s.kernelHeap
}

// UserHeap returns the unprivileged heap
func (s *System) UserHeap() *heap.UserHeap {
	return s.userHeap
}

// Halt reports an unrecoverable condition and hands it to the halt handler
func (s *System) Halt(err error) {
	s.logger.Error("kernel halted", slog.Any("error", err))
	s.halt(err)
}

// NewTask creates a task with an empty resource table. The task control block and every
// chunk of the task's table are charged to the kernel heap.
func (s *System) NewTask(name string) (*Task, error) {
	s.logger.Debug("System::NewTask", slog.String("Name", name))

	tcb, err := s.kernelHeap.Allocate(TaskSize)
	if err != nil {
		return nil, errors.Wrapf(err, "could not allocate task %q", name)
	}

	s.tasksMutex.Lock()
	defer s.tasksMutex.Unlock()

	s.nextTaskID++
	task := &Task{
		id:        s.nextTaskID,
		name:      name,
		block:     tcb,
		resources: resource.NewTable(s.kernelHeap, s.maxResources),
	}
	s.tasks.Put(task.id, task)

	return task, nil
}

// Task returns the running task with the given id
func (s *System) Task(id TaskID) (*Task, error) {
	s.tasksMutex.RLock()
	defer s.tasksMutex.RUnlock()

	task, ok := s.tasks.Get(id)
	if !ok {
		return nil, errors.Wrapf(ErrNoSuchTask, "task %d", id)
	}
	return task, nil
}

// Tasks returns every running task, ordered by id
func (s *System) Tasks() []*Task {
	s.tasksMutex.RLock()
	defer s.tasksMutex.RUnlock()

	tasks := make([]*Task, 0, s.tasks.Count())
	s.tasks.Iter(func(_ TaskID, task *Task) bool {
		tasks = append(tasks, task)
		return false
	})
	slices.SortFunc(tasks, func(a, b *Task) bool {
		return a.id < b.id
	})
	return tasks
}

// ExitTask closes every resource the task holds and removes it from the registry. The
// task's kernel memory is not reclaimed.
func (s *System) ExitTask(task *Task) error {
	s.logger.Debug("System::ExitTask", slog.Int("ID", int(task.id)), slog.String("Name", task.name))

	s.tasksMutex.Lock()
	if _, ok := s.tasks.Get(task.id); !ok {
		s.tasksMutex.Unlock()
		return errors.Wrapf(ErrNoSuchTask, "task %d", task.id)
	}
	s.tasks.Delete(task.id)
	s.tasksMutex.Unlock()

	err := task.resources.CloseAll()
	if err != nil {
		s.logger.Error("error closing resources of exiting task",
			slog.String("Task", task.name),
			slog.Any("error", err),
		)
	}
	return err
}

// NewResource creates an empty resource descriptor, charging its storage to the kernel heap
func (s *System) NewResource() (*resource.Resource, error) {
	if _, err := s.kernelHeap.Allocate(ResourceSize); err != nil {
		return nil, errors.Wrap(err, "could not allocate resource descriptor")
	}
	return resource.Create(), nil
}
