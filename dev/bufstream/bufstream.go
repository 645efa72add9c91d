// Package bufstream exposes a caller-owned byte buffer as a null-terminated string stream.
//
// The stream uses the buffer it is given rather than copying it. Writes append at the write
// cursor and re-terminate the string; reads start from the beginning of the buffer and stop
// for good at the terminator, so a stream is single-shot per buffer refill.
package bufstream

import (
	"github.com/cockroachdb/errors"
	"github.com/f4os/kcore/heap"
	"github.com/f4os/kcore/kernel"
	"github.com/f4os/kcore/resource"
	"github.com/f4os/kcore/semaphore"
	"golang.org/x/exp/slog"
)

// envSize is the user heap storage charged for a stream: the buffer pointer and both cursors
const envSize = 12

// ErrBufferFull is returned by a write with no room left for the unit and the terminator
var ErrBufferFull = errors.New("buffer stream is full")

type stream struct {
	buf      []byte
	readPos  int
	writePos int

	user       *heap.UserHeap
	env        heap.Allocation
	semStorage heap.Allocation
	sem        *semaphore.Semaphore
}

var _ resource.Provider = &stream{}
var _ resource.Closer = &stream{}

// Open registers a stream over buf with the task's resource table and returns its handle.
func Open(sys *kernel.System, task *kernel.Task, buf []byte) (resource.Handle, error) {
	logger := sys.Logger()
	user := sys.UserHeap()

	env, err := user.Allocate(envSize)
	if err != nil {
		logger.Error("OOPS: could not allocate space for buffer stream resource", slog.Any("error", err))
		return resource.InvalidHandle, err
	}

	res, err := sys.NewResource()
	if err != nil {
		logger.Error("OOPS: unable to allocate space for buffer stream resource", slog.Any("error", err))
		_ = user.Free(env)
		return resource.InvalidHandle, err
	}

	semStorage, err := user.Allocate(semaphore.Size)
	if err != nil {
		logger.Error("OOPS: unable to allocate memory for buffer stream semaphore", slog.Any("error", err))
		_ = user.Free(env)
		return resource.InvalidHandle, err
	}

	s := &stream{
		buf:        buf,
		user:       user,
		env:        env,
		semStorage: semStorage,
		sem:        semaphore.New(),
	}
	res.SetProvider(s)
	res.SetSemaphore(s.sem)

	handle, err := task.Resources().Register(res)
	if err != nil {
		_ = user.Free(semStorage)
		_ = user.Free(env)
		return resource.InvalidHandle, err
	}

	return handle, nil
}

func (s *stream) Name() string {
	return "bufstream"
}

func (s *stream) ReadUnit() (byte, error) {
	if s.readPos >= len(s.buf) || s.buf[s.readPos] == 0 {
		return 0, nil
	}
	unit := s.buf[s.readPos]
	s.readPos++
	return unit, nil
}

func (s *stream) WriteUnit(unit byte) (int, error) {
	if s.writePos+1 >= len(s.buf) {
		return 0, errors.Wrapf(ErrBufferFull, "%d byte buffer", len(s.buf))
	}
	s.buf[s.writePos] = unit
	s.writePos++
	s.buf[s.writePos] = 0
	return 1, nil
}

func (s *stream) Close(res *resource.Resource) error {
	if err := s.sem.AcquireForFree(); err != nil {
		return err
	}
	return errors.CombineErrors(s.user.Free(s.env), s.user.Free(s.semStorage))
}
