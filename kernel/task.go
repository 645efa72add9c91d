package kernel

import (
	"github.com/f4os/kcore/heap"
	"github.com/f4os/kcore/resource"
)

// TaskID identifies a task for the life of the System. Ids are never reused.
type TaskID uint32

// Task is the owner of a resource table
type Task struct {
	id        TaskID
	name      string
	block     heap.Allocation
	resources *resource.Table
}

func (t *Task) ID() TaskID {
	return t.id
}

func (t *Task) Name() string {
	return t.name
}

// Resources returns the task's handle table
func (t *Task) Resources() *resource.Table {
	return t.resources
}

// Address is the kernel heap address of the task control block
func (t *Task) Address() heap.Address {
	return t.block.Address()
}
