package main

import (
	"context"
	"fmt"
	"time"

	"github.com/smazurov/factoryd/internal/api"
	"github.com/smazurov/factoryd/internal/command"
	"github.com/smazurov/factoryd/internal/config"
	"github.com/smazurov/factoryd/internal/events"
	"github.com/smazurov/factoryd/internal/flash"
	"github.com/smazurov/factoryd/internal/led"
	"github.com/smazurov/factoryd/internal/logging"
	"github.com/smazurov/factoryd/internal/metrics"
	"github.com/smazurov/factoryd/internal/metrics/collectors"
	"github.com/smazurov/factoryd/internal/metrics/exporters"
	"github.com/smazurov/factoryd/internal/osctl"
	"github.com/smazurov/factoryd/internal/server"
	"github.com/smazurov/factoryd/internal/systemd"
)

const serviceName = "factoryd.service"

// durations holds the parsed duration options.
type durations struct {
	idle, settle, reboot time.Duration
}

func (o *Options) durations() (durations, error) {
	var d durations
	for _, f := range []struct {
		name  string
		value string
		dst   *time.Duration
	}{
		{"server.idle_timeout", o.ServerIdleTimeout, &d.idle},
		{"osctl.settle_delay", o.OsctlSettleDelay, &d.settle},
		{"osctl.reboot_delay", o.OsctlRebootDelay, &d.reboot},
	} {
		v, err := time.ParseDuration(f.value)
		if err != nil {
			return d, fmt.Errorf("%s: %w", f.name, err)
		}
		if v < 0 {
			return d, fmt.Errorf("%s: negative duration %s", f.name, v)
		}
		*f.dst = v
	}
	return d, nil
}

// run wires the daemon and serves the test port until ctx is cancelled or a
// client read fails.
func run(ctx context.Context, opts *Options) error {
	logger := logging.GetLogger("main")

	d, err := opts.durations()
	if err != nil {
		return err
	}

	if opts.Config != "" {
		watcher, err := config.WatchLogging(opts.Config, logging.GetLogger("config"))
		if err != nil {
			logger.Warn("Config hot reload disabled", "path", opts.Config, "error", err)
		} else {
			defer watcher.Stop()
		}
	}

	eventBus := events.New()

	collector := collectors.NewEventCollector(eventBus)
	if err := collector.Start(); err != nil {
		logger.Warn("Failed to start metrics collector", "error", err)
	}
	defer collector.Stop()

	flashOpen, err := flash.NewOpener(opts.FlashDevice, opts.FlashImage)
	if err != nil {
		return err
	}
	store := flash.NewStore(flashOpen, logging.GetLogger("flash"))

	ledLogger := logging.GetLogger("led")
	ledOpen, backend, err := led.NewOpener(led.Config{
		Backend:   opts.LEDBackend,
		Device:    opts.LEDDevice,
		SysfsRoot: opts.LEDSysfsRoot,
	}, ledLogger)
	if err != nil {
		return err
	}
	if backend == led.BackendMMIO {
		if err := led.InitHardware(logging.GetLogger("gpio")); err != nil {
			logger.Warn("Failed to initialize LED GPIO registers", "error", err)
		}
	}
	ledManager := led.NewManager(eventBus, ledLogger)
	ledManager.Start()
	defer ledManager.Stop()

	var (
		rebooter   osctl.Rebooter
		sysManager *systemd.Manager
	)
	if opts.OsctlUseSystemd {
		sysManager, err = systemd.NewManager(ctx)
		if err != nil {
			logger.Warn("Systemd not reachable, reboot uses the shell command", "error", err)
		} else {
			rebooter = sysManager
			defer sysManager.Close()
		}
	}

	osControl := osctl.New(osctl.Config{
		NetworkCommand: opts.OsctlNetworkCommand,
		RebootCommand:  opts.OsctlRebootCommand,
		FlagFile:       opts.OsctlFlagFile,
		SettleDelay:    d.settle,
	}, rebooter, logging.GetLogger("osctl"))
	metrics.SetTestPassed(osControl.TestPassed())

	if opts.NetworkApplyOnStart {
		if err := osControl.ApplyNetworkConfig(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Warn("Network bring-up failed, continuing", "error", err)
		}
	}

	dispatcher := command.NewDispatcher(command.Options{
		Store:       store,
		OpenLED:     ledOpen,
		OS:          osControl,
		EventBus:    eventBus,
		Logger:      logging.GetLogger("command"),
		RebootDelay: d.reboot,
	})

	if opts.AdminEnabled {
		apiOpts := &api.Options{
			AuthUsername:      opts.AuthUsername,
			AuthPassword:      opts.AuthPassword,
			Commands:          dispatcher,
			LEDs:              ledManager,
			TestFlag:          osControl,
			EventBus:          eventBus,
			PrometheusHandler: exporters.HTTPHandler(),
		}
		if sysManager != nil {
			apiOpts.Systemd = sysManager
			apiOpts.ServiceName = serviceName
		}
		adminServer := api.NewServer(apiOpts)
		go func() {
			if err := adminServer.Start(opts.AdminPort); err != nil {
				logger.Error("Admin API server failed", "error", err)
			}
		}()
		defer adminServer.Stop()
	}

	testPort := server.New(server.Options{
		Addr:        opts.ServerPort,
		IdleTimeout: d.idle,
		Handler:     dispatcher,
		EventBus:    eventBus,
		Logger:      logging.GetLogger("server"),
	})
	if err := testPort.Listen(); err != nil {
		return err
	}

	if ok, err := systemd.NotifyReady(); err != nil {
		logger.Warn("sd_notify READY failed", "error", err)
	} else if ok {
		logger.Debug("Notified systemd ready")
	}
	defer func() {
		if _, err := systemd.NotifyStopping(); err != nil {
			logger.Warn("sd_notify STOPPING failed", "error", err)
		}
	}()

	return testPort.Serve(ctx)
}
