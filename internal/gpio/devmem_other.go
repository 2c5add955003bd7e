//go:build !linux

package gpio

import "errors"

// DevMemPath is the physical memory device.
const DevMemPath = "/dev/mem"

// DevMem is unavailable off Linux.
type DevMem struct{}

// OpenDevMem always fails off Linux.
func OpenDevMem() (*DevMem, error) {
	return nil, errors.New("/dev/mem register access requires linux")
}

func (m *DevMem) Read32(uint32) (uint32, error) { return 0, errors.ErrUnsupported }
func (m *DevMem) Write32(uint32, uint32) error  { return errors.ErrUnsupported }
func (m *DevMem) Close() error                  { return nil }
