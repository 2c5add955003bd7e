package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/smazurov/factoryd/cmd"
	"github.com/smazurov/factoryd/internal/config"
	"github.com/smazurov/factoryd/internal/logging"
	"github.com/smazurov/factoryd/internal/version"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"/etc/factoryd/config.toml"`

	// Test port
	ServerPort        string `help:"Test port address" short:"p" default:":4415" toml:"server.port" env:"SERVER_PORT"`
	ServerIdleTimeout string `help:"Disconnect idle test clients after this long (0 waits forever)" default:"0s" toml:"server.idle_timeout" env:"SERVER_IDLE_TIMEOUT"`

	// Flash
	FlashDevice string `help:"MTD partition holding the MAC addresses" default:"/dev/mtd5" toml:"flash.device" env:"FLASH_DEVICE"`
	FlashImage  string `help:"Flash image file to use instead of the MTD partition" default:"" toml:"flash.image" env:"FLASH_IMAGE"`

	// LEDs
	LEDBackend   string `help:"LED backend (auto, ioctl, mmio, sysfs, noop)" default:"auto" toml:"led.backend" env:"LED_BACKEND"`
	LEDDevice    string `help:"LED misc device for the ioctl backend" default:"/dev/led_test" toml:"led.device" env:"LED_DEVICE"`
	LEDSysfsRoot string `help:"GPIO class directory for the sysfs backend" default:"/sys/class/gpio" toml:"led.sysfs_root" env:"LED_SYSFS_ROOT"`

	// OS control
	OsctlNetworkCommand string `help:"Shell command that brings up the factory network" default:"ifconfig eth0 192.168.2.1 up && ifconfig br-lan 192.168.1.1 up" toml:"osctl.network_command" env:"OSCTL_NETWORK_COMMAND"`
	OsctlRebootCommand  string `help:"Shell command used to reboot without systemd" default:"reboot" toml:"osctl.reboot_command" env:"OSCTL_REBOOT_COMMAND"`
	OsctlFlagFile       string `help:"File written by test_pass" default:"/etc/qca9531_test.conf" toml:"osctl.flag_file" env:"OSCTL_FLAG_FILE"`
	OsctlSettleDelay    string `help:"Wait after the network command" default:"3s" toml:"osctl.settle_delay" env:"OSCTL_SETTLE_DELAY"`
	OsctlRebootDelay    string `help:"Wait between acknowledging reboot and rebooting" default:"3s" toml:"osctl.reboot_delay" env:"OSCTL_REBOOT_DELAY"`
	OsctlUseSystemd     bool   `help:"Reboot through systemd when the system bus is reachable" default:"true" toml:"osctl.use_systemd" env:"OSCTL_USE_SYSTEMD"`

	NetworkApplyOnStart bool `help:"Run the network command before listening" default:"true" toml:"network.apply_on_start" env:"NETWORK_APPLY_ON_START"`

	// Admin API
	AdminEnabled bool   `help:"Serve the admin HTTP API" default:"true" toml:"admin.enabled" env:"ADMIN_ENABLED"`
	AdminPort    string `help:"Admin API address" default:":8090" toml:"admin.port" env:"ADMIN_PORT"`
	AuthUsername string `help:"Basic auth username" default:"" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Logging settings
	LoggingLevel   string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat  string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingServer  string `help:"Test port logging level" default:"" toml:"logging.server" env:"LOGGING_SERVER"`
	LoggingCommand string `help:"Command dispatcher logging level" default:"" toml:"logging.command" env:"LOGGING_COMMAND"`
	LoggingFlash   string `help:"Flash store logging level" default:"" toml:"logging.flash" env:"LOGGING_FLASH"`
	LoggingGPIO    string `help:"GPIO driver logging level" default:"" toml:"logging.gpio" env:"LOGGING_GPIO"`
	LoggingLED     string `help:"LED controller logging level" default:"" toml:"logging.led" env:"LOGGING_LED"`
	LoggingOsctl   string `help:"OS control logging level" default:"" toml:"logging.osctl" env:"LOGGING_OSCTL"`
	LoggingAPI     string `help:"Admin API logging level" default:"" toml:"logging.api" env:"LOGGING_API"`
	LoggingConfig  string `help:"Config loader logging level" default:"" toml:"logging.config" env:"LOGGING_CONFIG"`
	LoggingMetrics string `help:"Metrics collector logging level" default:"" toml:"logging.metrics" env:"LOGGING_METRICS"`
}

func (o *Options) loggingConfig() logging.Config {
	modules := map[string]string{
		"server":  o.LoggingServer,
		"command": o.LoggingCommand,
		"flash":   o.LoggingFlash,
		"gpio":    o.LoggingGPIO,
		"led":     o.LoggingLED,
		"osctl":   o.LoggingOsctl,
		"api":     o.LoggingAPI,
		"config":  o.LoggingConfig,
		"metrics": o.LoggingMetrics,
	}
	for module, level := range modules {
		if level == "" {
			delete(modules, module)
		}
	}
	return logging.Config{
		Level:   o.LoggingLevel,
		Format:  o.LoggingFormat,
		Modules: modules,
	}
}

func main() {
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		if err := config.LoadConfig(opts, cli.Root()); err != nil {
			slog.Warn("Failed to load config", "error", err)
		}

		logging.Initialize(opts.loggingConfig())
		logger := logging.GetLogger("main")

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})

		hooks.OnStart(func() {
			defer close(done)
			logger.Info("Starting factoryd", "version", version.String())
			if err := run(ctx, opts); err != nil {
				logger.Error("factoryd stopped", "error", err)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down")
			cancel()
			select {
			case <-done:
			case <-time.After(5 * time.Second):
				logger.Warn("Shutdown timed out")
			}
		})
	})

	cli.Root().Use = "factoryd"
	cli.Root().Short = "QCA9531 factory test daemon"
	cli.Root().Version = version.String()

	cli.Root().AddCommand(cmd.CreateMACCmd())
	cli.Root().AddCommand(cmd.CreateLEDCmd())
	cli.Root().AddCommand(cmd.CreateGPIOCmd())

	cli.Run()
}
