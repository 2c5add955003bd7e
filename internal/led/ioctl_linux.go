//go:build linux

package led

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// DefaultDevice is the misc device registered by the LED kernel module.
const DefaultDevice = "/dev/led_test"

// device drives LEDs through the kernel module's ioctl interface.
type device struct {
	f *os.File
}

func openDevice(path string) (*device, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open LED device: %w", err)
	}
	return &device{f: f}, nil
}

func (d *device) Set(line Line, level Level) error {
	if err := unix.IoctlSetInt(int(d.f.Fd()), line.Code, int(level)); err != nil {
		return fmt.Errorf("LED %s ioctl %#x: %w", line.Name, line.Code, err)
	}
	return nil
}

func (d *device) Close() error {
	return d.f.Close()
}
