//go:build linux

package flash

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// mtd is a /dev/mtdN character device.
type mtd struct {
	f *os.File
}

// OpenMTD opens an MTD character device for read-modify-write.
func OpenMTD(path string) (Device, error) {
	f, err := os.OpenFile(path, os.O_RDWR|unix.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &mtd{f: f}, nil
}

// MTDOpener returns an Opener for the MTD device at path.
func MTDOpener(path string) Opener {
	return func() (Device, error) {
		return OpenMTD(path)
	}
}

func (m *mtd) ioctl(req uint, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, m.f.Fd(), uintptr(req), uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

func (m *mtd) Info() (Info, error) {
	var mi unix.MtdInfo
	if err := m.ioctl(unix.MEMGETINFO, unsafe.Pointer(&mi)); err != nil {
		return Info{}, fmt.Errorf("MEMGETINFO: %w", err)
	}
	return Info{Size: mi.Size, EraseSize: mi.Erasesize}, nil
}

func (m *mtd) Unlock(start, length uint32) error {
	ei := unix.EraseInfo{Start: start, Length: length}
	if err := m.ioctl(unix.MEMUNLOCK, unsafe.Pointer(&ei)); err != nil {
		return fmt.Errorf("MEMUNLOCK at %#x: %w", start, err)
	}
	return nil
}

func (m *mtd) Erase(start, length uint32) error {
	ei := unix.EraseInfo{Start: start, Length: length}
	if err := m.ioctl(unix.MEMERASE, unsafe.Pointer(&ei)); err != nil {
		return fmt.Errorf("MEMERASE at %#x: %w", start, err)
	}
	return nil
}

func (m *mtd) ReadAt(p []byte, off int64) (int, error) {
	return m.f.ReadAt(p, off)
}

func (m *mtd) WriteAt(p []byte, off int64) (int, error) {
	return m.f.WriteAt(p, off)
}

func (m *mtd) Sync() error {
	return m.f.Sync()
}

func (m *mtd) Close() error {
	return m.f.Close()
}
