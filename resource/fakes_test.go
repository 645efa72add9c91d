package resource_test

import (
	"runtime"
	"sync"

	"github.com/f4os/kcore/resource"
)

// fakeStream reads from a queue of units and records everything written to it
type fakeStream struct {
	mutex   sync.Mutex
	pending []byte
	written []byte

	readErr  error
	writeErr error
	failAt   int
	closes   int
	closeErr error
}

var _ resource.Provider = &fakeStream{}
var _ resource.Closer = &fakeStream{}

func (s *fakeStream) Name() string { return "fake" }

func (s *fakeStream) ReadUnit() (byte, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.readErr != nil && s.failAt == 0 {
		return 0, s.readErr
	}
	s.failAt--
	if len(s.pending) == 0 {
		return 0, resource.ErrNoData
	}
	unit := s.pending[0]
	s.pending = s.pending[1:]
	return unit, nil
}

func (s *fakeStream) WriteUnit(unit byte) (int, error) {
	s.mutex.Lock()
	if s.writeErr != nil && len(s.written) == s.failAt {
		s.mutex.Unlock()
		return 0, s.writeErr
	}
	s.written = append(s.written, unit)
	s.mutex.Unlock()

	runtime.Gosched()
	return 1, nil
}

func (s *fakeStream) Close(res *resource.Resource) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.closes++
	return s.closeErr
}

func (s *fakeStream) Written() []byte {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return append([]byte(nil), s.written...)
}

// fakeBatch accepts whole buffers, up to limit units per call
type fakeBatch struct {
	fakeStream
	limit int
	calls int
}

var _ resource.BatchWriter = &fakeBatch{}

func (b *fakeBatch) WriteUnits(units []byte) (int, error) {
	b.calls++
	if len(units) > b.limit {
		units = units[:b.limit]
	}
	b.fakeStream.written = append(b.fakeStream.written, units...)
	return len(units), nil
}

// gatedStream blocks inside every ReadUnit until the test lets it proceed
type gatedStream struct {
	entered chan struct{}
	proceed chan struct{}
}

func newGatedStream() *gatedStream {
	return &gatedStream{
		entered: make(chan struct{}, 16),
		proceed: make(chan struct{}),
	}
}

func (g *gatedStream) ReadUnit() (byte, error) {
	g.entered <- struct{}{}
	<-g.proceed
	return 'g', nil
}

func (g *gatedStream) WriteUnit(unit byte) (int, error) {
	return 0, resource.ErrUnsupported
}
