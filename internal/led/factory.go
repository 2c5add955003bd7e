package led

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/smazurov/factoryd/internal/gpio"
)

// Backends accepted by Config.Backend.
const (
	BackendAuto  = "auto"
	BackendIoctl = "ioctl"
	BackendMMIO  = "mmio"
	BackendSysfs = "sysfs"
	BackendNoop  = "noop"
)

const (
	deviceTreeModelPath = "/proc/device-tree/model"
	cpuInfoPath         = "/proc/cpuinfo"
	boardMarker         = "QCA9531"
)

// Config selects and parameterizes an LED backend.
type Config struct {
	Backend   string
	Device    string // ioctl device node
	SysfsRoot string // sysfs GPIO class directory
}

// NewOpener returns an Opener for the configured backend and the name of the
// backend actually chosen. "auto" prefers the kernel module's device, then
// direct register access on a QCA9531, then no-op.
func NewOpener(cfg Config, logger *slog.Logger) (Opener, string, error) {
	if cfg.Device == "" {
		cfg.Device = DefaultDevice
	}

	backend := cfg.Backend
	if backend == "" || backend == BackendAuto {
		backend = detectBackend(cfg.Device)
		logger.Info("Detected LED backend", "backend", backend, "board_model", detectBoard())
	}

	switch backend {
	case BackendIoctl:
		return func() (Controller, error) {
			dev, err := openDevice(cfg.Device)
			if err != nil {
				return nil, err
			}
			return dev, nil
		}, backend, nil

	case BackendMMIO:
		return func() (Controller, error) {
			mem, err := gpio.OpenDevMem()
			if err != nil {
				return nil, err
			}
			return newMMIO(mem, logger), nil
		}, backend, nil

	case BackendSysfs:
		return func() (Controller, error) {
			return newSysfs(cfg.SysfsRoot), nil
		}, backend, nil

	case BackendNoop:
		return func() (Controller, error) {
			return newNoop(logger), nil
		}, backend, nil

	default:
		return nil, "", fmt.Errorf("unknown LED backend %q", cfg.Backend)
	}
}

// InitHardware runs the register driver's load-time sequence. It is only
// needed for the mmio backend; the kernel module does the same on insmod.
func InitHardware(logger *slog.Logger) error {
	mem, err := gpio.OpenDevMem()
	if err != nil {
		return err
	}
	defer mem.Close()
	return gpio.NewDriver(mem, logger).Init()
}

func detectBackend(device string) string {
	if _, err := os.Stat(device); err == nil {
		return BackendIoctl
	}
	if strings.Contains(detectBoard(), boardMarker) {
		return BackendMMIO
	}
	return BackendNoop
}

// detectBoard reads the device tree model, falling back to /proc/cpuinfo
// where MIPS kernels report the SoC as "system type".
func detectBoard() string {
	if data, err := os.ReadFile(deviceTreeModelPath); err == nil {
		// Device tree model contains null bytes, trim them
		return strings.TrimRight(string(data), "\x00")
	}

	data, err := os.ReadFile(cpuInfoPath)
	if err != nil {
		return "unknown"
	}
	for _, line := range strings.Split(string(data), "\n") {
		key, value, ok := strings.Cut(line, ":")
		if ok && strings.TrimSpace(key) == "system type" {
			return strings.TrimSpace(value)
		}
	}
	return "unknown"
}
