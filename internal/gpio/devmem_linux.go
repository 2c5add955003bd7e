//go:build linux

package gpio

import (
	"fmt"
	"os"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

// DevMemPath is the physical memory device.
const DevMemPath = "/dev/mem"

// DevMem maps physical register pages from /dev/mem on demand.
type DevMem struct {
	f     *os.File
	mu    sync.Mutex
	pages map[uint32][]byte
}

// OpenDevMem opens /dev/mem for synchronous register access.
func OpenDevMem() (*DevMem, error) {
	f, err := os.OpenFile(DevMemPath, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", DevMemPath, err)
	}
	return &DevMem{f: f, pages: make(map[uint32][]byte)}, nil
}

func (m *DevMem) word(addr uint32) (*uint32, error) {
	if addr%4 != 0 {
		return nil, fmt.Errorf("unaligned register address %#x", addr)
	}
	pageSize := uint32(os.Getpagesize())
	base := addr &^ (pageSize - 1)

	m.mu.Lock()
	defer m.mu.Unlock()

	page, ok := m.pages[base]
	if !ok {
		var err error
		page, err = unix.Mmap(int(m.f.Fd()), int64(base), int(pageSize), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
		if err != nil {
			return nil, fmt.Errorf("mmap %#x: %w", base, err)
		}
		m.pages[base] = page
	}
	return (*uint32)(unsafe.Pointer(&page[addr-base])), nil
}

// Read32 reads the register at physical address addr.
func (m *DevMem) Read32(addr uint32) (uint32, error) {
	p, err := m.word(addr)
	if err != nil {
		return 0, err
	}
	return *p, nil
}

// Write32 writes the register at physical address addr.
func (m *DevMem) Write32(addr uint32, val uint32) error {
	p, err := m.word(addr)
	if err != nil {
		return err
	}
	*p = val
	return nil
}

// Close unmaps every page and closes /dev/mem.
func (m *DevMem) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for base, page := range m.pages {
		_ = unix.Munmap(page)
		delete(m.pages, base)
	}
	return m.f.Close()
}
