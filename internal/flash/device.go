package flash

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrUnsupported is returned when raw MTD access is not available on this platform.
var ErrUnsupported = errors.New("mtd devices are not supported on this platform")

// Info describes the geometry of a flash partition.
type Info struct {
	Size      uint32
	EraseSize uint32
}

// Device is raw access to one flash partition.
type Device interface {
	io.ReaderAt
	io.WriterAt

	// Info returns the partition size and erase block size.
	Info() (Info, error)
	// Unlock clears write protection on a region. Not every chip supports it.
	Unlock(start, length uint32) error
	// Erase erases a region. start and length are erase-block aligned.
	Erase(start, length uint32) error
	Sync() error
	Close() error
}

// Opener opens the partition. The store opens a fresh Device per operation.
type Opener func() (Device, error)

// DefaultDevice is the ART partition on the factory image.
const DefaultDevice = "/dev/mtd5"

// NewOpener opens the image file when image is set and the MTD device
// otherwise. A missing image is created blank with one erase block.
func NewOpener(device, image string) (Opener, error) {
	if image == "" {
		if device == "" {
			device = DefaultDevice
		}
		return MTDOpener(device), nil
	}

	if _, err := os.Stat(image); errors.Is(err, os.ErrNotExist) {
		if err := CreateImage(image, DefaultEraseSize, 1); err != nil {
			return nil, fmt.Errorf("create image %s: %w", image, err)
		}
	} else if err != nil {
		return nil, err
	}
	return ImageOpener(image, DefaultEraseSize), nil
}
