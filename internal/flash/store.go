// Package flash stores interface MAC addresses in the board's calibration
// (ART) MTD partition.
package flash

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/smazurov/factoryd/internal/mac"
)

// Interface names a network interface whose address lives in flash.
type Interface string

const (
	Eth0 Interface = "eth0"
	Eth1 Interface = "eth1"
	Ath0 Interface = "ath0"
	Ath1 Interface = "ath1"
)

// Byte offsets of each address within the first erase block.
const (
	Eth0Offset = 0x0000
	Eth1Offset = 0x0006
	Ath0Offset = 0x1002
	Ath1Offset = 0x5002
)

var (
	ErrUnknownInterface = errors.New("unknown interface")
	ErrShortIO          = errors.New("short flash read or write")
)

// Offset returns the byte offset of iface's address.
func Offset(iface Interface) (int64, error) {
	switch iface {
	case Eth0:
		return Eth0Offset, nil
	case Eth1:
		return Eth1Offset, nil
	case Ath0:
		return Ath0Offset, nil
	case Ath1:
		return Ath1Offset, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownInterface, iface)
	}
}

// Store reads and writes MAC addresses through an Opener.
type Store struct {
	open   Opener
	logger *slog.Logger
	mu     sync.RWMutex
}

// NewStore creates a store over the partition returned by open.
func NewStore(open Opener, logger *slog.Logger) *Store {
	return &Store{open: open, logger: logger}
}

// Read returns the address stored for iface. It waits for any write in
// progress, so it never observes an erased block.
func (s *Store) Read(iface Interface) (mac.Addr, error) {
	var addr mac.Addr

	off, err := Offset(iface)
	if err != nil {
		return addr, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	dev, err := s.open()
	if err != nil {
		return addr, err
	}
	defer dev.Close()

	n, err := dev.ReadAt(addr[:], off)
	if n != mac.Len {
		if err == nil {
			err = ErrShortIO
		}
		return addr, fmt.Errorf("read %s at %#x: %w", iface, off, err)
	}
	return addr, nil
}

// Write stores addr for iface. The first erase block is read, every block in
// the partition is erased, and the patched first block is written back. A
// failure part way leaves the partition erased or partly written.
func (s *Store) Write(iface Interface, addr mac.Addr) error {
	off, err := Offset(iface)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dev, err := s.open()
	if err != nil {
		return err
	}
	defer dev.Close()

	info, err := dev.Info()
	if err != nil {
		return err
	}
	if info.EraseSize == 0 || off+mac.Len > int64(info.EraseSize) {
		return fmt.Errorf("%s offset %#x outside erase block of %#x bytes", iface, off, info.EraseSize)
	}

	block := make([]byte, info.EraseSize)
	if n, err := dev.ReadAt(block, 0); n != len(block) {
		if err == nil {
			err = ErrShortIO
		}
		return fmt.Errorf("read erase block: %w", err)
	}

	for start := uint32(0); start < info.Size; start += info.EraseSize {
		if err := dev.Unlock(start, info.EraseSize); err != nil {
			s.logger.Debug("Unlock failed, erasing anyway", "start", start, "error", err)
		}
		if err := dev.Erase(start, info.EraseSize); err != nil {
			return err
		}
	}

	copy(block[off:], addr[:])

	if n, err := dev.WriteAt(block, 0); n != len(block) {
		if err == nil {
			err = ErrShortIO
		}
		return fmt.Errorf("write erase block: %w", err)
	}
	if err := dev.Sync(); err != nil {
		return fmt.Errorf("sync: %w", err)
	}

	s.logger.Info("MAC written to flash", "interface", string(iface), "mac", addr.String())
	return nil
}
