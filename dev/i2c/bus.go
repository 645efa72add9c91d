// Package i2c defines the bus controller that sensor providers talk through, and the shared
// bus wrapper that serializes their transactions.
package i2c

//go:generate mockgen -destination mocks/mock_bus.go -package mocks github.com/f4os/kcore/dev/i2c Bus

import (
	"github.com/cockroachdb/errors"
	"github.com/f4os/kcore/semaphore"
)

// ErrShortTransfer is returned when the controller moves fewer bytes than requested
var ErrShortTransfer = errors.New("short i2c transfer")

// Bus is an I2C controller. Addresses are 7-bit.
type Bus interface {
	Ready() bool
	Init() error
	Write(addr uint8, p []byte) (int, error)
	Read(addr uint8, p []byte) (int, error)
}

// WriteFull writes all of p to addr
func WriteFull(bus Bus, addr uint8, p []byte) error {
	n, err := bus.Write(addr, p)
	if err != nil {
		return errors.Wrapf(err, "write to 0x%02x", addr)
	}
	if n != len(p) {
		return errors.Wrapf(ErrShortTransfer, "wrote %d of %d bytes to 0x%02x", n, len(p), addr)
	}
	return nil
}

// ReadFull fills p from addr
func ReadFull(bus Bus, addr uint8, p []byte) error {
	n, err := bus.Read(addr, p)
	if err != nil {
		return errors.Wrapf(err, "read from 0x%02x", addr)
	}
	if n != len(p) {
		return errors.Wrapf(ErrShortTransfer, "read %d of %d bytes from 0x%02x", n, len(p), addr)
	}
	return nil
}

// SharedBus guards one controller with one semaphore. Every provider on the bus issues its
// transactions through Transact, which holds the semaphore for that transaction only.
type SharedBus struct {
	bus Bus
	sem *semaphore.Semaphore
}

func NewSharedBus(bus Bus) *SharedBus {
	return &SharedBus{
		bus: bus,
		sem: semaphore.New(),
	}
}

// Transact runs fn with exclusive use of the bus, bringing the controller up first if needed
func (b *SharedBus) Transact(fn func(bus Bus) error) error {
	if err := b.sem.Acquire(); err != nil {
		return err
	}
	defer func() {
		_ = b.sem.Release()
	}()

	if !b.bus.Ready() {
		if err := b.bus.Init(); err != nil {
			return errors.Wrap(err, "could not initialize i2c bus")
		}
	}

	return fn(b.bus)
}

// Semaphore returns the semaphore that serializes the bus
func (b *SharedBus) Semaphore() *semaphore.Semaphore {
	return b.sem
}
