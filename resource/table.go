package resource

import (
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/f4os/kcore/heap"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"golang.org/x/exp/slices"
)

// Handle is a task-local index identifying an open resource
type Handle int

// InvalidHandle is never issued by a table
const InvalidHandle Handle = -1

const (
	// TableGrowth is the number of handle slots a table adds each time it fills up
	TableGrowth = 8
	// EntrySize is the number of bytes charged for one handle slot on the target
	EntrySize = 4
)

// SlotAllocator provides the memory a table charges its handle slots to. *heap.KernelHeap
// satisfies it.
type SlotAllocator interface {
	Allocate(size int) (heap.Allocation, error)
}

// Table maps handles to the resources a task has open. Handles are issued lowest-first, so a
// closed handle number is handed out again by a later Register.
type Table struct {
	mutex      sync.Mutex
	slots      SlotAllocator
	maxHandles int
	capacity   int
	chunks     []heap.Allocation

	open   *swiss.Map[Handle, *Resource]
	closed *swiss.Map[Handle, struct{}]
}

// NewTable creates an empty table. Slots are charged to slots in chunks of TableGrowth; a
// nil allocator charges nothing. maxHandles caps the table size, zero or less means the
// table is bounded only by memory.
func NewTable(slots SlotAllocator, maxHandles int) *Table {
	return &Table{
		slots:      slots,
		maxHandles: maxHandles,
		open:       swiss.NewMap[Handle, *Resource](TableGrowth),
		closed:     swiss.NewMap[Handle, struct{}](TableGrowth),
	}
}

func (t *Table) grow() error {
	growth := TableGrowth
	if t.maxHandles > 0 {
		if t.capacity >= t.maxHandles {
			return errors.Wrapf(ErrOutOfMemory, "resource table is full at %d handles", t.capacity)
		}
		if t.capacity+growth > t.maxHandles {
			growth = t.maxHandles - t.capacity
		}
	}

	if t.slots != nil {
		chunk, err := t.slots.Allocate(growth * EntrySize)
		if err != nil {
			return errors.Wrapf(err, "could not grow resource table past %d handles", t.capacity)
		}
		t.chunks = append(t.chunks, chunk)
	}

	t.capacity += growth
	return nil
}

// Register issues the lowest free handle for res
func (t *Table) Register(res *Resource) (Handle, error) {
	if res == nil || res.provider == nil {
		return InvalidHandle, errors.Wrap(ErrInvalidResource, "resource has no provider")
	}

	t.mutex.Lock()
	defer t.mutex.Unlock()

	if res.registered {
		return InvalidHandle, errors.Wrap(ErrInvalidResource, "resource is already registered")
	}

	handle := InvalidHandle
	for candidate := Handle(0); int(candidate) < t.capacity; candidate++ {
		if _, taken := t.open.Get(candidate); !taken {
			handle = candidate
			break
		}
	}

	if handle == InvalidHandle {
		next := Handle(t.capacity)
		if err := t.grow(); err != nil {
			return InvalidHandle, err
		}
		handle = next
	}

	t.open.Put(handle, res)
	t.closed.Delete(handle)
	res.registered = true
	return handle, nil
}

func (t *Table) lookup(handle Handle) (*Resource, error) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	return t.lookupLocked(handle)
}

func (t *Table) lookupLocked(handle Handle) (*Resource, error) {
	if res, ok := t.open.Get(handle); ok {
		return res, nil
	}
	if _, ok := t.closed.Get(handle); ok {
		return nil, errors.Wrapf(ErrClosed, "handle %d", handle)
	}
	return nil, errors.Wrapf(ErrInvalidHandle, "handle %d", handle)
}

// Resource returns the descriptor registered at handle
func (t *Table) Resource(handle Handle) (*Resource, error) {
	return t.lookup(handle)
}

// Read fills buf one unit at a time from the resource at handle, holding its read semaphore
// for the whole call. It returns early, without error, when the provider has no more data.
// A provider failure is returned marked with ErrIOFailure, along with the units read before it.
func (t *Table) Read(handle Handle, buf []byte) (int, error) {
	res, err := t.lookup(handle)
	if err != nil {
		return 0, err
	}
	return res.read(buf)
}

// Write sends buf to the resource at handle, holding its write semaphore for the whole call
func (t *Table) Write(handle Handle, buf []byte) (int, error) {
	res, err := t.lookup(handle)
	if err != nil {
		return 0, err
	}
	return res.write(buf)
}

// Close removes handle from the table, then runs the provider's teardown. Calls in flight
// finish the unit they are dispatching and then report ErrClosed.
func (t *Table) Close(handle Handle) error {
	t.mutex.Lock()
	res, err := t.lookupLocked(handle)
	if err != nil {
		t.mutex.Unlock()
		return err
	}
	t.open.Delete(handle)
	t.closed.Put(handle, struct{}{})
	t.mutex.Unlock()

	res.markClosed()

	if closer, ok := res.provider.(Closer); ok {
		if err := closer.Close(res); err != nil {
			return providerError(err, "close")
		}
	}
	return nil
}

// CloseAll closes every open handle, in ascending order, and returns the combined errors
func (t *Table) CloseAll() error {
	var result error
	for _, handle := range t.Handles() {
		err := t.Close(handle)
		if err != nil && !errors.Is(err, ErrClosed) {
			result = errors.CombineErrors(result, err)
		}
	}
	return result
}

// Handles returns the open handles in ascending order
func (t *Table) Handles() []Handle {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	handles := make([]Handle, 0, t.open.Count())
	t.open.Iter(func(handle Handle, _ *Resource) bool {
		handles = append(handles, handle)
		return false
	})
	slices.Sort(handles)
	return handles
}

// Len returns the number of open handles
func (t *Table) Len() int {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	return t.open.Count()
}

// Capacity returns the number of handle slots the table has grown to
func (t *Table) Capacity() int {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	return t.capacity
}

// PrintResources populates a json object with the table's open handles
func (t *Table) PrintResources(json jwriter.ObjectState) {
	handles := t.Handles()

	t.mutex.Lock()
	defer t.mutex.Unlock()

	json.Name("Capacity").Int(t.capacity)
	json.Name("Open").Int(len(handles))

	arrayState := json.Name("Handles").Array()
	defer arrayState.End()

	for _, handle := range handles {
		res, ok := t.open.Get(handle)
		if !ok {
			continue
		}

		obj := arrayState.Object()
		obj.Name("Handle").Int(int(handle))
		obj.Name("Provider").String(providerName(res.provider))
		obj.Name("SharedSemaphore").Bool(res.readSem == res.writeSem)
		obj.End()
	}
}
