// Package gpio exposes a single GPIO pin as a resource. Reading yields the pin level as 0 or
// 1; writing drives an output pin.
package gpio

//go:generate mockgen -destination mocks/mock_controller.go -package mocks github.com/f4os/kcore/dev/gpio Controller

import (
	"github.com/cockroachdb/errors"
)

// ErrInvalidPin is returned by a controller for a pin number it does not have
var ErrInvalidPin = errors.New("invalid gpio")

// Direction configures a pin as an input or an output
type Direction int

const (
	Input Direction = iota
	Output
)

func (d Direction) String() string {
	switch d {
	case Input:
		return "Input"
	case Output:
		return "Output"
	default:
		return "Unknown"
	}
}

// Controller drives the pins of one GPIO block. Levels are raw electrical levels, 0 or 1;
// active-low inversion is applied by the pin resource.
type Controller interface {
	Valid(num uint32) error
	Reset(num uint32) error
	SetDirection(num uint32, direction Direction) error
	Input(num uint32) (uint8, error)
	SetOutput(num uint32, level uint8) error
}
