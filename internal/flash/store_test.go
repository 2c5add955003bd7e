package flash

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/smazurov/factoryd/internal/mac"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memDevice is an in-memory partition that records erase calls.
type memDevice struct {
	data      []byte
	eraseSize uint32
	erased    []uint32
	failErase bool
	opens     int
}

func newMemDevice(blocks int, eraseSize uint32) *memDevice {
	return &memDevice{
		data:      bytes.Repeat([]byte{0xff}, blocks*int(eraseSize)),
		eraseSize: eraseSize,
	}
}

func (m *memDevice) opener() Opener {
	return func() (Device, error) {
		m.opens++
		return m, nil
	}
}

func (m *memDevice) Info() (Info, error) {
	return Info{Size: uint32(len(m.data)), EraseSize: m.eraseSize}, nil
}

func (m *memDevice) Unlock(_, _ uint32) error { return nil }

func (m *memDevice) Erase(start, length uint32) error {
	if m.failErase {
		return errors.New("erase failed")
	}
	m.erased = append(m.erased, start)
	for i := start; i < start+length; i++ {
		m.data[i] = 0xff
	}
	return nil
}

func (m *memDevice) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (m *memDevice) WriteAt(p []byte, off int64) (int, error) {
	return copy(m.data[off:], p), nil
}

func (m *memDevice) Sync() error  { return nil }
func (m *memDevice) Close() error { return nil }

func TestStore_WriteRead(t *testing.T) {
	dev := newMemDevice(2, 0x10000)
	store := NewStore(dev.opener(), testLogger())

	// Calibration data elsewhere in the first block must survive.
	dev.data[0x1000] = 0x5a

	addr := mac.Addr{0x12, 0x34, 0x56, 0x78, 0x9a, 0xbc}
	if err := store.Write(Ath0, addr); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := store.Read(Ath0)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got != addr {
		t.Errorf("Read() = %v, want %v", got, addr)
	}

	if !bytes.Equal(dev.data[Ath0Offset:Ath0Offset+mac.Len], addr[:]) {
		t.Errorf("bytes at ath0 offset = % x", dev.data[Ath0Offset:Ath0Offset+mac.Len])
	}
	if dev.data[0x1000] != 0x5a {
		t.Error("Write() lost data outside the patched address")
	}
	if len(dev.erased) != 2 || dev.erased[0] != 0 || dev.erased[1] != 0x10000 {
		t.Errorf("erased blocks = %#x, want [0 0x10000]", dev.erased)
	}
}

// gatedDevice blocks in the first erase until released.
type gatedDevice struct {
	*memDevice
	erasing chan struct{}
	release chan struct{}
}

func (g *gatedDevice) Erase(start, length uint32) error {
	if start == 0 {
		close(g.erasing)
		<-g.release
	}
	return g.memDevice.Erase(start, length)
}

func TestStore_ReadWaitsForWrite(t *testing.T) {
	mem := newMemDevice(1, 0x10000)
	eth0 := mac.Addr{0x12, 0x11, 0x11, 0x11, 0x11, 0x12}
	if err := NewStore(mem.opener(), testLogger()).Write(Eth0, eth0); err != nil {
		t.Fatalf("Write(eth0) error = %v", err)
	}

	dev := &gatedDevice{memDevice: mem, erasing: make(chan struct{}), release: make(chan struct{})}
	store := NewStore(func() (Device, error) { return dev, nil }, testLogger())

	writeErr := make(chan error, 1)
	go func() { writeErr <- store.Write(Ath0, mac.Addr{0x12, 0x11, 0x11, 0x11, 0x11, 0x11}) }()
	<-dev.erasing

	type result struct {
		addr mac.Addr
		err  error
	}
	read := make(chan result, 1)
	go func() {
		addr, err := store.Read(Eth0)
		read <- result{addr, err}
	}()

	select {
	case r := <-read:
		t.Fatalf("Read() returned %v during erase", r.addr)
	case <-time.After(50 * time.Millisecond):
	}

	close(dev.release)
	if err := <-writeErr; err != nil {
		t.Fatalf("Write(ath0) error = %v", err)
	}
	r := <-read
	if r.err != nil {
		t.Fatalf("Read() error = %v", r.err)
	}
	if r.addr != eth0 {
		t.Errorf("Read(eth0) = %v, want %v", r.addr, eth0)
	}
}

func TestStore_Offsets(t *testing.T) {
	dev := newMemDevice(1, 0x10000)
	store := NewStore(dev.opener(), testLogger())

	addrs := map[Interface]mac.Addr{
		Eth0: {0, 0, 0, 0, 0, 1},
		Eth1: {0, 0, 0, 0, 0, 2},
		Ath0: {0, 0, 0, 0, 0, 3},
		Ath1: {0, 0, 0, 0, 0, 4},
	}
	for iface, addr := range addrs {
		if err := store.Write(iface, addr); err != nil {
			t.Fatalf("Write(%s) error = %v", iface, err)
		}
	}

	offsets := map[Interface]int{Eth0: 0x0000, Eth1: 0x0006, Ath0: 0x1002, Ath1: 0x5002}
	for iface, off := range offsets {
		want := addrs[iface]
		if !bytes.Equal(dev.data[off:off+mac.Len], want[:]) {
			t.Errorf("%s at %#x = % x, want % x", iface, off, dev.data[off:off+mac.Len], want[:])
		}
	}
}

func TestStore_UnknownInterface(t *testing.T) {
	dev := newMemDevice(1, 0x10000)
	store := NewStore(dev.opener(), testLogger())

	if err := store.Write("wlan9", mac.Addr{}); !errors.Is(err, ErrUnknownInterface) {
		t.Errorf("Write() error = %v, want ErrUnknownInterface", err)
	}
	if _, err := store.Read("wlan9"); !errors.Is(err, ErrUnknownInterface) {
		t.Errorf("Read() error = %v, want ErrUnknownInterface", err)
	}
	if dev.opens != 0 {
		t.Errorf("device opened %d times for an unknown interface", dev.opens)
	}
	if len(dev.erased) != 0 {
		t.Error("partition erased for an unknown interface")
	}
}

func TestStore_EraseFailure(t *testing.T) {
	dev := newMemDevice(1, 0x10000)
	dev.failErase = true
	store := NewStore(dev.opener(), testLogger())

	if err := store.Write(Eth0, mac.Addr{1, 2, 3, 4, 5, 6}); err == nil {
		t.Fatal("Write() should fail when erase fails")
	}
}

func TestStore_OpenFailure(t *testing.T) {
	openErr := errors.New("no such device")
	store := NewStore(func() (Device, error) { return nil, openErr }, testLogger())

	if err := store.Write(Eth0, mac.Addr{}); !errors.Is(err, openErr) {
		t.Errorf("Write() error = %v, want %v", err, openErr)
	}
	if _, err := store.Read(Eth0); !errors.Is(err, openErr) {
		t.Errorf("Read() error = %v, want %v", err, openErr)
	}
}

func TestImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "art.bin")
	if err := CreateImage(path, 0x1000, 8); err != nil {
		t.Fatalf("CreateImage() error = %v", err)
	}

	store := NewStore(ImageOpener(path, 0x10000), testLogger())
	if err := store.Write(Eth0, mac.Addr{}); err == nil {
		t.Error("Write() should fail when the image is not a multiple of the erase size")
	}

	store = NewStore(ImageOpener(path, 0x1000), testLogger())
	addr := mac.Addr{0xde, 0xad, 0xbe, 0xef, 0x00, 0x01}
	if err := store.Write(Eth1, addr); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data[Eth1Offset:Eth1Offset+mac.Len], addr[:]) {
		t.Errorf("image bytes = % x, want % x", data[Eth1Offset:Eth1Offset+mac.Len], addr[:])
	}
	if len(data) != 0x8000 {
		t.Errorf("image size = %d, want %d", len(data), 0x8000)
	}
	if data[0x4000] != 0xff {
		t.Error("blocks past the first should be left erased")
	}

	got, err := store.Read(Eth1)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got != addr {
		t.Errorf("Read() = %v, want %v", got, addr)
	}
}

func TestNewOpener_CreatesImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "art.bin")

	open, err := NewOpener("", path)
	if err != nil {
		t.Fatalf("NewOpener() error = %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("image not created: %v", err)
	}
	if info.Size() != DefaultEraseSize {
		t.Errorf("image size = %d, want %d", info.Size(), DefaultEraseSize)
	}

	store := NewStore(open, testLogger())
	addr := mac.Addr{0x12, 0x11, 0x11, 0x11, 0x11, 0x11}
	if err := store.Write(Ath0, addr); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	// An existing image is reused, not recreated.
	if _, err := NewOpener("", path); err != nil {
		t.Fatal(err)
	}
	got, err := NewStore(open, testLogger()).Read(Ath0)
	if err != nil || got != addr {
		t.Errorf("Read() = %v, %v; want %v", got, err, addr)
	}
}
