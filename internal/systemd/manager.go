package systemd

import (
	"context"
	"fmt"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/coreos/go-systemd/v22/dbus"
)

const (
	rebootTarget = "reboot.target"
	rebootMode   = "replace-irreversibly"
)

// Manager talks to the system instance of systemd over D-Bus.
type Manager struct {
	conn *dbus.Conn
}

// NewManager creates a new systemd manager with a system-level D-Bus connection.
func NewManager(ctx context.Context) (*Manager, error) {
	conn, err := dbus.NewSystemConnectionContext(ctx)
	if err != nil {
		return nil, err
	}
	return &Manager{conn: conn}, nil
}

// GetServiceStatus retrieves the ActiveState property of a systemd unit.
func (m *Manager) GetServiceStatus(ctx context.Context, serviceName string) (string, error) {
	prop, err := m.conn.GetUnitPropertyContext(ctx, serviceName, "ActiveState")
	if err != nil {
		return "", err
	}
	if state, ok := prop.Value.Value().(string); ok {
		return state, nil
	}
	return prop.Value.String(), nil
}

// Reboot queues reboot.target. The job cannot be cancelled by later jobs, and
// the call returns once it is queued.
func (m *Manager) Reboot(ctx context.Context) error {
	if _, err := m.conn.StartUnitContext(ctx, rebootTarget, rebootMode, nil); err != nil {
		return fmt.Errorf("start %s: %w", rebootTarget, err)
	}
	return nil
}

// Close cleanly closes the D-Bus connection.
func (m *Manager) Close() {
	if m.conn != nil {
		m.conn.Close()
	}
}

// NotifyReady tells systemd the service finished starting. It reports false
// when the process is not running under a Type=notify unit.
func NotifyReady() (bool, error) {
	return daemon.SdNotify(false, daemon.SdNotifyReady)
}

// NotifyStopping tells systemd the service is shutting down.
func NotifyStopping() (bool, error) {
	return daemon.SdNotify(false, daemon.SdNotifyStopping)
}
