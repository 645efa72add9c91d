package gpio

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/f4os/kcore/heap"
	"github.com/f4os/kcore/kernel"
	"github.com/f4os/kcore/resource"
	"github.com/f4os/kcore/semaphore"
	"golang.org/x/exp/slog"
)

// envSize covers the pin number, direction and active-low flag
const envSize = 8

// Config describes how a pin is brought up when opened
type Config struct {
	Direction Direction
	// ActiveLow inverts the logical value of the pin on both reads and writes
	ActiveLow bool
}

type pin struct {
	ctrl      Controller
	num       uint32
	direction Direction
	activeLow uint8

	user       *heap.UserHeap
	env        heap.Allocation
	semStorage heap.Allocation
	sem        *semaphore.Semaphore
}

var _ resource.Provider = &pin{}
var _ resource.Closer = &pin{}

// Open validates and configures pin num on ctrl, then registers it with the task's resource
// table.
func Open(sys *kernel.System, task *kernel.Task, ctrl Controller, num uint32, config Config) (resource.Handle, error) {
	logger := sys.Logger()
	user := sys.UserHeap()

	if err := ctrl.Valid(num); err != nil {
		return resource.InvalidHandle, errors.Wrapf(errors.Mark(err, ErrInvalidPin), "gpio %d", num)
	}
	if config.Direction != Input && config.Direction != Output {
		return resource.InvalidHandle, errors.Newf("gpio %d: unknown direction %d", num, config.Direction)
	}

	res, err := sys.NewResource()
	if err != nil {
		logger.Error("OOPS: could not allocate space for gpio resource", slog.Any("error", err))
		return resource.InvalidHandle, err
	}

	env, err := user.Allocate(envSize)
	if err != nil {
		logger.Error("OOPS: could not allocate space for gpio resource", slog.Any("error", err))
		return resource.InvalidHandle, err
	}

	semStorage, err := user.Allocate(semaphore.Size)
	if err != nil {
		logger.Error("OOPS: could not allocate space for gpio semaphore", slog.Any("error", err))
		_ = user.Free(env)
		return resource.InvalidHandle, err
	}

	p := &pin{
		ctrl:       ctrl,
		num:        num,
		direction:  config.Direction,
		user:       user,
		env:        env,
		semStorage: semStorage,
		sem:        semaphore.New(),
	}
	if config.ActiveLow {
		p.activeLow = 1
	}

	if err := p.configure(); err != nil {
		logger.Error("could not configure gpio",
			slog.Int("Pin", int(num)),
			slog.String("Direction", config.Direction.String()),
			slog.Any("error", err),
		)
		_ = user.Free(semStorage)
		_ = user.Free(env)
		return resource.InvalidHandle, errors.Mark(err, resource.ErrIOFailure)
	}

	res.SetProvider(p)
	res.SetSemaphore(p.sem)

	handle, err := task.Resources().Register(res)
	if err != nil {
		_ = ctrl.Reset(num)
		_ = user.Free(semStorage)
		_ = user.Free(env)
		return resource.InvalidHandle, err
	}

	return handle, nil
}

func (p *pin) configure() error {
	if err := p.ctrl.Reset(p.num); err != nil {
		return errors.Wrapf(err, "reset gpio %d", p.num)
	}
	if err := p.ctrl.SetDirection(p.num, p.direction); err != nil {
		return errors.Wrapf(err, "set gpio %d direction", p.num)
	}
	return nil
}

func (p *pin) Name() string {
	return fmt.Sprintf("gpio%d", p.num)
}

func (p *pin) ReadUnit() (byte, error) {
	level, err := p.ctrl.Input(p.num)
	if err != nil {
		return 0, err
	}
	return (level & 1) ^ p.activeLow, nil
}

func (p *pin) WriteUnit(unit byte) (int, error) {
	if p.direction != Output {
		return 0, errors.Wrapf(resource.ErrUnsupported, "gpio %d is an input", p.num)
	}

	var level uint8
	if unit != 0 {
		level = 1
	}

	if err := p.ctrl.SetOutput(p.num, level^p.activeLow); err != nil {
		return 0, err
	}
	return 1, nil
}

// Close returns the pin to its reset state and releases its storage
func (p *pin) Close(res *resource.Resource) error {
	if err := p.sem.AcquireForFree(); err != nil {
		return err
	}

	resetErr := p.ctrl.Reset(p.num)
	return errors.CombineErrors(resetErr, errors.CombineErrors(p.user.Free(p.env), p.user.Free(p.semStorage)))
}
