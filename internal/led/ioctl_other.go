//go:build !linux

package led

import "errors"

// DefaultDevice is the misc device registered by the LED kernel module.
const DefaultDevice = "/dev/led_test"

type device struct{}

func openDevice(string) (*device, error) {
	return nil, errors.New("LED device ioctl requires linux")
}

func (d *device) Set(Line, Level) error { return errors.ErrUnsupported }
func (d *device) Close() error          { return nil }
