// Package resource implements the uniform read/write/close object that every device and
// stream is reached through, and the per-task table that maps small integer handles to them.
package resource

import (
	"fmt"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/f4os/kcore/semaphore"
)

// Reader produces one unit per call
type Reader interface {
	ReadUnit() (byte, error)
}

// Writer consumes one unit per call and reports how many units it accepted
type Writer interface {
	WriteUnit(unit byte) (int, error)
}

// Provider is the minimum a resource backend must implement
type Provider interface {
	Reader
	Writer
}

// BatchWriter is implemented by providers that can accept a whole buffer at once. When
// present it is used instead of per-unit WriteUnit calls.
type BatchWriter interface {
	WriteUnits(units []byte) (int, error)
}

// Closer is implemented by providers that hold state which must be torn down when the
// resource is closed. It is called after the resource has been marked closed.
type Closer interface {
	Close(res *Resource) error
}

// Named is implemented by providers that want a readable name in diagnostics
type Named interface {
	Name() string
}

func providerName(provider Provider) string {
	if named, ok := provider.(Named); ok {
		return named.Name()
	}
	return fmt.Sprintf("%T", provider)
}

// Resource is the descriptor registered in a task's table. It binds a provider to the
// semaphores that serialize reads and writes.
type Resource struct {
	provider Provider
	readSem  *semaphore.Semaphore
	writeSem *semaphore.Semaphore

	// guard is held for reading across each unit dispatch and for writing while closing
	guard      sync.RWMutex
	closed     bool
	registered bool
}

// Create returns an empty descriptor. A provider must be set before it can be registered.
func Create() *Resource {
	return &Resource{}
}

// SetProvider binds the backend that services reads and writes
func (r *Resource) SetProvider(provider Provider) {
	r.provider = provider
}

// SetSemaphore uses one semaphore for both reads and writes
func (r *Resource) SetSemaphore(sem *semaphore.Semaphore) {
	r.readSem = sem
	r.writeSem = sem
}

// SetSemaphores uses separate semaphores for reads and writes
func (r *Resource) SetSemaphores(read, write *semaphore.Semaphore) {
	r.readSem = read
	r.writeSem = write
}

func (r *Resource) Provider() Provider {
	return r.provider
}

func (r *Resource) ReadSemaphore() *semaphore.Semaphore {
	return r.readSem
}

func (r *Resource) WriteSemaphore() *semaphore.Semaphore {
	return r.writeSem
}

// Closed returns true once the resource has been closed through its table
func (r *Resource) Closed() bool {
	r.guard.RLock()
	defer r.guard.RUnlock()

	return r.closed
}

func (r *Resource) markClosed() {
	r.guard.Lock()
	defer r.guard.Unlock()

	r.closed = true
}

func acquire(sem *semaphore.Semaphore) error {
	if sem == nil {
		return nil
	}
	err := sem.Acquire()
	if errors.Is(err, semaphore.ErrDestroyed) {
		return errors.Mark(err, ErrClosed)
	}
	return err
}

func release(sem *semaphore.Semaphore) {
	if sem == nil {
		return
	}
	// A Closer may already have destroyed the semaphore
	_ = sem.Release()
}

// dispatch calls unit once for each position in buf, holding sem for the whole call. It
// returns the number of units completed.
func (r *Resource) dispatch(sem *semaphore.Semaphore, buf []byte, unit func(index int) (bool, error)) (int, error) {
	if err := acquire(sem); err != nil {
		return 0, err
	}
	defer release(sem)

	for i := range buf {
		more, err := r.dispatchOne(i, unit)
		if err != nil {
			return i, err
		}
		if !more {
			return i, nil
		}
	}

	return len(buf), nil
}

func (r *Resource) dispatchOne(index int, unit func(index int) (bool, error)) (bool, error) {
	r.guard.RLock()
	defer r.guard.RUnlock()

	if r.closed {
		return false, ErrClosed
	}
	return unit(index)
}

func providerError(err error, op string) error {
	return errors.Mark(errors.Wrapf(err, "%s failed", op), ErrIOFailure)
}

func (r *Resource) read(buf []byte) (int, error) {
	return r.dispatch(r.readSem, buf, func(index int) (bool, error) {
		unit, err := r.provider.ReadUnit()
		if errors.Is(err, ErrNoData) {
			return false, nil
		}
		if err != nil {
			return false, providerError(err, "read")
		}
		buf[index] = unit
		return true, nil
	})
}

func (r *Resource) write(buf []byte) (int, error) {
	batch, isBatch := r.provider.(BatchWriter)
	if !isBatch {
		return r.dispatch(r.writeSem, buf, func(index int) (bool, error) {
			accepted, err := r.provider.WriteUnit(buf[index])
			if errors.Is(err, ErrNoData) {
				return false, nil
			}
			if err != nil {
				return false, providerError(err, "write")
			}
			return accepted > 0, nil
		})
	}

	if len(buf) == 0 {
		return 0, nil
	}

	var written int
	_, err := r.dispatch(r.writeSem, buf[:1], func(int) (bool, error) {
		n, err := batch.WriteUnits(buf)
		written = n
		if err != nil && !errors.Is(err, ErrNoData) {
			return false, providerError(err, "write")
		}
		return true, nil
	})
	return written, err
}
