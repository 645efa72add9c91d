// Package semaphore provides the blocking lock that guards every resource and shared bus.
//
// Waiters are woken in FIFO order. A semaphore can be destroyed with AcquireForFree, after
// which every pending and future Acquire fails with ErrDestroyed.
package semaphore

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	xsemaphore "golang.org/x/sync/semaphore"
)

// Size is the number of bytes a semaphore occupies on the target: the lock word, the holder
// and the head of the wait queue.
const Size = 12

var (
	// ErrDestroyed is returned to callers that wait on, or try to use, a destroyed semaphore
	ErrDestroyed = errors.New("semaphore destroyed")
	// ErrNotHeld is returned when releasing a semaphore that nobody holds
	ErrNotHeld = errors.New("semaphore is not held")
)

// Semaphore is a blocking lock with a fixed number of units. New returns the binary form
// used by resources.
type Semaphore struct {
	mutex    sync.Mutex
	capacity int64

	weighted  *xsemaphore.Weighted
	held      int64
	destroyed bool
	destroy   context.Context
	wake      context.CancelFunc
}

// New creates an available binary semaphore
func New() *Semaphore {
	return NewCounting(1)
}

// NewCounting creates a semaphore with n units available. n must be at least one.
func NewCounting(n int) *Semaphore {
	if n < 1 {
		n = 1
	}
	s := &Semaphore{capacity: int64(n)}
	s.reset()
	return s
}

func (s *Semaphore) reset() {
	s.weighted = xsemaphore.NewWeighted(s.capacity)
	s.held = 0
	s.destroyed = false
	s.destroy, s.wake = context.WithCancel(context.Background())
}

// Init returns the semaphore to the available state. It must not be called while any
// caller is waiting on it.
func (s *Semaphore) Init() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.wake != nil {
		s.wake()
	}
	s.reset()
}

// Acquire blocks until a unit is available. It fails with ErrDestroyed if the semaphore is
// destroyed before or while the caller waits.
func (s *Semaphore) Acquire() error {
	s.mutex.Lock()
	if s.destroyed {
		s.mutex.Unlock()
		return ErrDestroyed
	}
	weighted, destroy := s.weighted, s.destroy
	s.mutex.Unlock()

	if err := weighted.Acquire(destroy, 1); err != nil {
		return ErrDestroyed
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	// Acquire can succeed against an already cancelled context when a unit is free
	if s.destroyed || weighted != s.weighted {
		weighted.Release(1)
		return ErrDestroyed
	}
	s.held++
	return nil
}

// TryAcquire takes a unit if one is available without blocking
func (s *Semaphore) TryAcquire() (bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.destroyed {
		return false, ErrDestroyed
	}
	if !s.weighted.TryAcquire(1) {
		return false, nil
	}
	s.held++
	return true, nil
}

// Release returns one unit, waking the longest waiting caller if there is one
func (s *Semaphore) Release() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.destroyed {
		return ErrDestroyed
	}
	if s.held == 0 {
		return ErrNotHeld
	}
	s.held--
	s.weighted.Release(1)
	return nil
}

// AcquireForFree waits for the semaphore and then destroys it. Every caller still queued
// wakes with ErrDestroyed, and no caller can begin waiting afterwards. The memory backing
// the semaphore may be reclaimed once this returns.
func (s *Semaphore) AcquireForFree() error {
	if err := s.Acquire(); err != nil {
		return err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.destroyed = true
	s.held = 0
	s.wake()
	return nil
}

// Destroyed returns true once AcquireForFree has completed
func (s *Semaphore) Destroyed() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.destroyed
}

// Held returns the number of units currently taken
func (s *Semaphore) Held() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return int(s.held)
}
