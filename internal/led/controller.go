package led

import (
	"errors"

	"github.com/smazurov/factoryd/internal/gpio"
)

// Level is the electrical level driven onto an LED line. The LEDs are active
// low, so On is 0.
type Level int

const (
	On  Level = 0
	Off Level = 1
)

// Line is one of the board's status LEDs.
type Line struct {
	Name string
	Code uint // control code understood by the LED device
	Pin  uint // SoC GPIO number
}

var (
	WAN  = Line{Name: "wan", Code: gpio.SetWANOut, Pin: gpio.PinWAN}
	LAN  = Line{Name: "lan", Code: gpio.SetLANOut, Pin: gpio.PinLAN}
	WLAN = Line{Name: "wlan", Code: gpio.SetWLANOut, Pin: gpio.PinWLAN}
	STAT = Line{Name: "stat", Code: gpio.SetSTATOut, Pin: gpio.PinSTAT}
)

// Lines returns the four LEDs in the order they are driven.
func Lines() []Line {
	return []Line{WAN, LAN, WLAN, STAT}
}

// LineByName looks up a line by its name.
func LineByName(name string) (Line, bool) {
	for _, l := range Lines() {
		if l.Name == name {
			return l, true
		}
	}
	return Line{}, false
}

// Controller drives LED lines. A controller is opened for one request and
// closed afterwards.
type Controller interface {
	// Set drives a single line to level.
	Set(line Line, level Level) error
	// Close releases the underlying device.
	Close() error
}

// Opener opens a Controller.
type Opener func() (Controller, error)

// SetAll drives every line to level. All lines are attempted; the errors are
// joined.
func SetAll(c Controller, level Level) error {
	var errs []error
	for _, line := range Lines() {
		if err := c.Set(line, level); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
