// Package hmc5883 exposes the HMC5883 three-axis magnetometer on a shared I2C bus as a
// register stream. Each unit read is the next data output register, cycling through
// X, Z and Y, most significant byte first.
package hmc5883

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
	"github.com/f4os/kcore/dev/i2c"
	"github.com/f4os/kcore/heap"
	"github.com/f4os/kcore/kernel"
	"github.com/f4os/kcore/resource"
	"github.com/f4os/kcore/semaphore"
	"golang.org/x/exp/slog"
)

// Address is the sensor's fixed 7-bit bus address
const Address uint8 = 0x1E

const (
	regConfigA uint8 = 0x00
	regMode    uint8 = 0x02
	regDataXH  uint8 = 0x03
	regDataYL  uint8 = 0x08

	// 8 samples per output, 75Hz output, normal measurement
	configA uint8 = 0x78
	// Gain of 1090 LSb/gauss
	configB  uint8 = 0x20
	modeCont uint8 = 0x00
	modeIdle uint8 = 0x01

	// Gain is the number of counts per gauss at the configured gain
	Gain = 1090

	envSize = 1
)

// Magnetometer is one field reading, in gauss
type Magnetometer struct {
	X float32
	Y float32
	Z float32
}

type sensor struct {
	bus *i2c.SharedBus
	reg uint8

	user       *heap.UserHeap
	env        heap.Allocation
	semStorage heap.Allocation
	sem        *semaphore.Semaphore
}

var _ resource.Provider = &sensor{}
var _ resource.Closer = &sensor{}

// Open configures the sensor for continuous measurement and registers it with the task's
// resource table.
func Open(sys *kernel.System, task *kernel.Task, bus *i2c.SharedBus) (resource.Handle, error) {
	logger := sys.Logger()
	user := sys.UserHeap()

	res, err := sys.NewResource()
	if err != nil {
		logger.Error("OOPS: could not allocate space for hmc5883 resource", slog.Any("error", err))
		return resource.InvalidHandle, err
	}

	env, err := user.Allocate(envSize)
	if err != nil {
		logger.Error("OOPS: could not allocate space for hmc5883 resource", slog.Any("error", err))
		return resource.InvalidHandle, err
	}

	semStorage, err := user.Allocate(semaphore.Size)
	if err != nil {
		logger.Error("OOPS: could not allocate space for hmc5883 semaphore", slog.Any("error", err))
		_ = user.Free(env)
		return resource.InvalidHandle, err
	}

	err = bus.Transact(func(b i2c.Bus) error {
		return i2c.WriteFull(b, Address, []byte{regConfigA, configA, configB, modeCont})
	})
	if err != nil {
		logger.Error("could not configure hmc5883", slog.Any("error", err))
		_ = user.Free(semStorage)
		_ = user.Free(env)
		return resource.InvalidHandle, errors.Mark(err, resource.ErrIOFailure)
	}

	s := &sensor{
		bus:        bus,
		reg:        regDataXH,
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

func (s *sensor) Name() string {
	return "hmc5883"
}

// ReadUnit selects the current data register and reads it back in one bus transaction
func (s *sensor) ReadUnit() (byte, error) {
	var data [1]byte
	err := s.bus.Transact(func(b i2c.Bus) error {
		if err := i2c.WriteFull(b, Address, []byte{s.reg}); err != nil {
			return err
		}
		return i2c.ReadFull(b, Address, data[:])
	})
	if err != nil {
		return 0, err
	}

	s.reg++
	if s.reg > regDataYL {
		s.reg = regDataXH
	}
	return data[0], nil
}

func (s *sensor) WriteUnit(unit byte) (int, error) {
	return 0, errors.Wrap(resource.ErrUnsupported, "hmc5883 is read-only")
}

// Close puts the sensor into idle mode and releases its storage. A failure to idle the
// sensor is reported but does not keep the storage alive.
func (s *sensor) Close(res *resource.Resource) error {
	if err := s.sem.AcquireForFree(); err != nil {
		return err
	}

	idleErr := s.bus.Transact(func(b i2c.Bus) error {
		return i2c.WriteFull(b, Address, []byte{regMode, modeIdle})
	})

	return errors.CombineErrors(idleErr, errors.CombineErrors(s.user.Free(s.env), s.user.Free(s.semStorage)))
}

// ReadMagnetometer reads one full set of data registers from the sensor at handle and
// converts it to gauss
func ReadMagnetometer(table *resource.Table, handle resource.Handle) (Magnetometer, error) {
	var data [6]byte
	n, err := table.Read(handle, data[:])
	if err != nil {
		return Magnetometer{}, err
	}
	if n != len(data) {
		return Magnetometer{}, errors.Wrapf(resource.ErrIOFailure, "read %d of %d data registers", n, len(data))
	}

	x := int16(binary.BigEndian.Uint16(data[0:2]))
	z := int16(binary.BigEndian.Uint16(data[2:4]))
	y := int16(binary.BigEndian.Uint16(data[4:6]))

	return Magnetometer{
		X: float32(x) / Gain,
		Y: float32(y) / Gain,
		Z: float32(z) / Gain,
	}, nil
}
