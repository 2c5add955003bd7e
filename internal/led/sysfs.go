package led

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

const sysfsGPIOPath = "/sys/class/gpio"

// sysfs implements Controller using the legacy Linux sysfs GPIO interface.
// Lines must already be exported as outputs.
type sysfs struct {
	root string
}

func newSysfs(root string) *sysfs {
	if root == "" {
		root = sysfsGPIOPath
	}
	return &sysfs{root: root}
}

func (s *sysfs) Set(line Line, level Level) error {
	gpioPath := filepath.Join(s.root, "gpio"+strconv.FormatUint(uint64(line.Pin), 10))

	if _, err := os.Stat(gpioPath); os.IsNotExist(err) {
		return fmt.Errorf("LED %q not exported at %s", line.Name, gpioPath)
	}

	value := "1"
	if level == On {
		value = "0"
	}
	if err := os.WriteFile(filepath.Join(gpioPath, "value"), []byte(value), 0o644); err != nil {
		return fmt.Errorf("failed to set LED %s: %w", line.Name, err)
	}
	return nil
}

func (s *sysfs) Close() error {
	return nil
}
