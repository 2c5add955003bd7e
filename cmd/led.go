package cmd

import (
	"fmt"

	"github.com/smazurov/factoryd/internal/led"
	"github.com/smazurov/factoryd/internal/logging"
	"github.com/spf13/cobra"
)

// CreateLEDCmd creates the led command.
func CreateLEDCmd() *cobra.Command {
	var cfg led.Config

	ledCmd := &cobra.Command{
		Use:       "led on|off",
		Short:     "Turn all four status LEDs on or off",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			level := led.Off
			if args[0] == "on" {
				level = led.On
			}

			logger := logging.GetLogger("led")
			open, backend, err := led.NewOpener(cfg, logger)
			if err != nil {
				return err
			}
			if backend == led.BackendMMIO {
				if err := led.InitHardware(logger); err != nil {
					return fmt.Errorf("init GPIO registers: %w", err)
				}
			}

			ctrl, err := open()
			if err != nil {
				return fmt.Errorf("open %s backend: %w", backend, err)
			}
			defer ctrl.Close()

			if err := led.SetAll(ctrl, level); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "leds %s (%s)\n", args[0], backend)
			return nil
		},
	}
	ledCmd.Flags().StringVar(&cfg.Backend, "backend", led.BackendAuto, "LED backend (auto, ioctl, mmio, sysfs, noop)")
	ledCmd.Flags().StringVar(&cfg.Device, "device", led.DefaultDevice, "LED misc device for the ioctl backend")
	ledCmd.Flags().StringVar(&cfg.SysfsRoot, "sysfs-root", "", "GPIO class directory for the sysfs backend")

	return ledCmd
}
