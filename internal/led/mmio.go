package led

import (
	"log/slog"

	"github.com/smazurov/factoryd/internal/gpio"
)

// registerCloser is a register window that must be released.
type registerCloser interface {
	gpio.Registers
	Close() error
}

// mmio drives LEDs directly through the GPIO register driver.
type mmio struct {
	regs   registerCloser
	driver *gpio.Driver
}

func newMMIO(regs registerCloser, logger *slog.Logger) *mmio {
	return &mmio{regs: regs, driver: gpio.NewDriver(regs, logger)}
}

func (m *mmio) Set(line Line, level Level) error {
	return m.driver.Control(line.Code, uintptr(level))
}

func (m *mmio) Close() error {
	return m.regs.Close()
}
