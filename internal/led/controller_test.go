package led

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

// mockController records Set calls.
type mockController struct {
	setCalls []setCall
	failOn   string
	closed   bool
}

type setCall struct {
	line  string
	level Level
}

func (m *mockController) Set(line Line, level Level) error {
	m.setCalls = append(m.setCalls, setCall{line.Name, level})
	if line.Name == m.failOn {
		return errors.New("ioctl failed")
	}
	return nil
}

func (m *mockController) Close() error {
	m.closed = true
	return nil
}

func TestSetAll(t *testing.T) {
	ctrl := &mockController{}

	if err := SetAll(ctrl, On); err != nil {
		t.Fatalf("SetAll() error = %v", err)
	}

	want := []setCall{{"wan", On}, {"lan", On}, {"wlan", On}, {"stat", On}}
	if len(ctrl.setCalls) != len(want) {
		t.Fatalf("SetAll() made %d calls, want %d", len(ctrl.setCalls), len(want))
	}
	for i, call := range want {
		if ctrl.setCalls[i] != call {
			t.Errorf("call %d = %+v, want %+v", i, ctrl.setCalls[i], call)
		}
	}
}

func TestSetAll_ContinuesAfterError(t *testing.T) {
	ctrl := &mockController{failOn: "lan"}

	if err := SetAll(ctrl, Off); err == nil {
		t.Error("SetAll() should report the failed line")
	}
	if len(ctrl.setCalls) != 4 {
		t.Errorf("SetAll() made %d calls, want 4", len(ctrl.setCalls))
	}
}

func TestLineByName(t *testing.T) {
	for _, l := range Lines() {
		got, ok := LineByName(l.Name)
		if !ok || got != l {
			t.Errorf("LineByName(%q) = %+v, %v", l.Name, got, ok)
		}
	}
	if _, ok := LineByName("power"); ok {
		t.Error("LineByName() found a line that does not exist")
	}
}

func TestNoopController(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	ctrl := newNoop(logger)

	if err := ctrl.Set(WAN, On); err != nil {
		t.Errorf("Set() returned error: %v", err)
	}
	if err := ctrl.Close(); err != nil {
		t.Errorf("Close() returned error: %v", err)
	}
}

func TestSysfsController_Set(t *testing.T) {
	root := t.TempDir()
	for _, l := range Lines() {
		dir := filepath.Join(root, "gpio"+itoa(l.Pin))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}

	ctrl := newSysfs(root)

	tests := []struct {
		level Level
		want  string
	}{
		{On, "0"},
		{Off, "1"},
	}
	for _, tt := range tests {
		if err := SetAll(ctrl, tt.level); err != nil {
			t.Fatalf("SetAll(%d) error = %v", tt.level, err)
		}
		for _, l := range Lines() {
			data, err := os.ReadFile(filepath.Join(root, "gpio"+itoa(l.Pin), "value"))
			if err != nil {
				t.Fatal(err)
			}
			if string(data) != tt.want {
				t.Errorf("%s value = %q, want %q", l.Name, data, tt.want)
			}
		}
	}
}

func TestSysfsController_Set_NotExported(t *testing.T) {
	ctrl := newSysfs(t.TempDir())

	if err := ctrl.Set(STAT, On); err == nil {
		t.Error("Set() on an unexported GPIO should return error")
	}
}

func itoa(n uint) string {
	return strconv.FormatUint(uint64(n), 10)
}
