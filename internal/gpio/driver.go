// Package gpio drives the four status LEDs of the QCA9531 board through the
// SoC's GPIO block.
//
// At initialization the output function-select bytes of GPIO4 and GPIO16 are
// cleared. The bootloader leaves them routed to an alternate function, which
// blocks plain output. Then all four LED lines are driven high (off).
//
// Control mirrors the misc device's ioctl: one of four codes plus a value,
// where 0 drives the line low (LED on) and anything else drives it high.
package gpio

import (
	"errors"
	"fmt"
	"log/slog"
	"syscall"
)

// Physical register addresses of the QCA9531 GPIO block.
const (
	RegBase         = 0x18040000
	RegOutSet       = RegBase + 0x0c
	RegOutClear     = RegBase + 0x10
	RegOutFunction1 = RegBase + 0x30
	RegOutFunction4 = RegBase + 0x3c
)

// Each OUT_FUNCTION register holds one select byte per GPIO; the low byte of
// FUNCTION1 is GPIO4 and the low byte of FUNCTION4 is GPIO16.
const outFunctionKeep = 0xffffff00

// LED pins.
const (
	PinWAN  = 4
	PinWLAN = 12
	PinSTAT = 13
	PinLAN  = 16
)

// Control codes, numbered as _IO('L', n) like the misc device.
const (
	SetWANOut  uint = 'L'<<8 | 1
	SetLANOut  uint = 'L'<<8 | 2
	SetWLANOut uint = 'L'<<8 | 3
	SetSTATOut uint = 'L'<<8 | 4
)

// ErrInvalidCode is returned for an unknown control code.
var ErrInvalidCode = fmt.Errorf("gpio control: %w", syscall.EINVAL)

// ErrInvalidPin is returned for a pin outside the 32-bit GPIO bank.
var ErrInvalidPin = errors.New("gpio pin out of range")

// Driver writes LED lines through Registers.
type Driver struct {
	regs   Registers
	logger *slog.Logger
}

// NewDriver creates a driver. Call Init before Control.
func NewDriver(regs Registers, logger *slog.Logger) *Driver {
	return &Driver{regs: regs, logger: logger}
}

// Init switches the LED pins to plain GPIO output and turns every LED off.
func (d *Driver) Init() error {
	for _, reg := range []uint32{RegOutFunction1, RegOutFunction4} {
		v, err := d.regs.Read32(reg)
		if err != nil {
			return fmt.Errorf("read %#x: %w", reg, err)
		}
		if err := d.regs.Write32(reg, v&outFunctionKeep); err != nil {
			return fmt.Errorf("write %#x: %w", reg, err)
		}
		d.logger.Debug("Cleared GPIO output function", "reg", fmt.Sprintf("%#x", reg), "was", fmt.Sprintf("%#08x", v))
	}

	for _, pin := range []uint{PinWAN, PinLAN, PinWLAN, PinSTAT} {
		if err := d.SetValue(pin, 1); err != nil {
			return err
		}
	}

	d.logger.Info("LED GPIO initialized")
	return nil
}

// Control sets the line selected by code to value.
func (d *Driver) Control(code uint, value uintptr) error {
	var pin uint
	switch code {
	case SetWANOut:
		pin = PinWAN
	case SetLANOut:
		pin = PinLAN
	case SetWLANOut:
		pin = PinWLAN
	case SetSTATOut:
		pin = PinSTAT
	default:
		return ErrInvalidCode
	}
	return d.SetValue(pin, value)
}

// SetValue drives pin high for a nonzero value and low for zero.
func (d *Driver) SetValue(pin uint, value uintptr) error {
	if pin > 31 {
		return ErrInvalidPin
	}
	reg := uint32(RegOutClear)
	if value != 0 {
		reg = RegOutSet
	}
	if err := d.regs.Write32(reg, 1<<pin); err != nil {
		return fmt.Errorf("gpio %d: %w", pin, err)
	}
	return nil
}
