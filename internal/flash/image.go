package flash

import (
	"bytes"
	"fmt"
	"os"
)

// DefaultEraseSize matches the 64 KiB erase blocks of the board's SPI NOR.
const DefaultEraseSize = 64 * 1024

// image emulates a partition with a regular file. Erased bytes read as 0xff.
type image struct {
	f         *os.File
	eraseSize uint32
}

// OpenImage opens a flash image file. The file size is the partition size and
// must be a multiple of eraseSize.
func OpenImage(path string, eraseSize uint32) (Device, error) {
	if eraseSize == 0 {
		eraseSize = DefaultEraseSize
	}
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open image %s: %w", path, err)
	}
	return &image{f: f, eraseSize: eraseSize}, nil
}

// ImageOpener returns an Opener for the image file at path.
func ImageOpener(path string, eraseSize uint32) Opener {
	return func() (Device, error) {
		return OpenImage(path, eraseSize)
	}
}

// CreateImage writes a blank (all 0xff) image of the given number of blocks.
func CreateImage(path string, eraseSize uint32, blocks int) error {
	if eraseSize == 0 {
		eraseSize = DefaultEraseSize
	}
	blank := bytes.Repeat([]byte{0xff}, int(eraseSize)*blocks)
	return os.WriteFile(path, blank, 0o644)
}

func (i *image) Info() (Info, error) {
	fi, err := i.f.Stat()
	if err != nil {
		return Info{}, err
	}
	size := fi.Size()
	if size%int64(i.eraseSize) != 0 {
		return Info{}, fmt.Errorf("image size %d is not a multiple of erase size %d", size, i.eraseSize)
	}
	return Info{Size: uint32(size), EraseSize: i.eraseSize}, nil
}

func (i *image) Unlock(_, _ uint32) error {
	return nil
}

func (i *image) Erase(start, length uint32) error {
	if start%i.eraseSize != 0 || length%i.eraseSize != 0 {
		return fmt.Errorf("erase %#x+%#x not aligned to %#x", start, length, i.eraseSize)
	}
	blank := bytes.Repeat([]byte{0xff}, int(length))
	_, err := i.f.WriteAt(blank, int64(start))
	return err
}

func (i *image) ReadAt(p []byte, off int64) (int, error) {
	return i.f.ReadAt(p, off)
}

func (i *image) WriteAt(p []byte, off int64) (int, error) {
	return i.f.WriteAt(p, off)
}

func (i *image) Sync() error {
	return i.f.Sync()
}

func (i *image) Close() error {
	return i.f.Close()
}
