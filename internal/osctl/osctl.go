// Package osctl performs the host side effects of the test port: bringing up
// the factory network, persisting the test-pass flag and rebooting.
package osctl

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/smazurov/factoryd/internal/logging"
)

// Defaults matching the factory image.
const (
	DefaultNetworkCommand = "ifconfig eth0 192.168.2.1 up && ifconfig br-lan 192.168.1.1 up"
	DefaultRebootCommand  = "reboot"
	DefaultFlagFile       = "/etc/qca9531_test.conf"
	DefaultSettleDelay    = 3 * time.Second
)

// Rebooter reboots the host through the service manager.
type Rebooter interface {
	Reboot(ctx context.Context) error
}

// Config configures a Controller.
type Config struct {
	NetworkCommand string
	RebootCommand  string
	FlagFile       string
	SettleDelay    time.Duration
}

// Controller runs the configured commands. A nil Rebooter means reboots always
// use RebootCommand.
type Controller struct {
	cfg      Config
	rebooter Rebooter
	logger   logging.Logger
}

// New creates a Controller. Empty fields of cfg take their defaults, except
// NetworkCommand which may be left empty to skip network bring-up.
func New(cfg Config, rebooter Rebooter, logger logging.Logger) *Controller {
	if cfg.RebootCommand == "" {
		cfg.RebootCommand = DefaultRebootCommand
	}
	if cfg.FlagFile == "" {
		cfg.FlagFile = DefaultFlagFile
	}
	if cfg.SettleDelay < 0 {
		cfg.SettleDelay = 0
	}
	return &Controller{cfg: cfg, rebooter: rebooter, logger: logger}
}

// ApplyNetworkConfig runs the network command and waits for the interfaces
// to settle.
func (c *Controller) ApplyNetworkConfig(ctx context.Context) error {
	if c.cfg.NetworkCommand == "" {
		c.logger.Debug("No network command configured")
		return nil
	}

	c.logger.Info("Applying network configuration", "command", c.cfg.NetworkCommand)
	if err := runShell(ctx, c.cfg.NetworkCommand, c.logger); err != nil {
		return fmt.Errorf("apply network config: %w", err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.cfg.SettleDelay):
	}
	return nil
}

// PersistTestPass writes "1" to the flag file and flushes it to storage.
func (c *Controller) PersistTestPass(_ context.Context) error {
	f, err := os.OpenFile(c.cfg.FlagFile, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("open flag file: %w", err)
	}
	if _, err := f.WriteString("1\n"); err != nil {
		f.Close()
		return fmt.Errorf("write flag file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync flag file: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	c.logger.Info("Test pass flag written", "path", c.cfg.FlagFile)
	return nil
}

// TestPassed reports whether the flag file holds "1".
func (c *Controller) TestPassed() bool {
	data, err := os.ReadFile(c.cfg.FlagFile)
	if err != nil {
		return false
	}
	return len(data) > 0 && data[0] == '1'
}

// Reboot asks the service manager to reboot, falling back to RebootCommand.
func (c *Controller) Reboot(ctx context.Context) error {
	if c.rebooter != nil {
		err := c.rebooter.Reboot(ctx)
		if err == nil {
			c.logger.Info("Reboot scheduled via systemd")
			return nil
		}
		c.logger.Warn("systemd reboot failed, using reboot command", "error", err)
	}

	c.logger.Info("Rebooting", "command", c.cfg.RebootCommand)
	if err := runShell(ctx, c.cfg.RebootCommand, c.logger); err != nil {
		return fmt.Errorf("reboot: %w", err)
	}
	return nil
}
