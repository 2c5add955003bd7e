package cmd

import (
	"fmt"
	"strconv"

	"github.com/smazurov/factoryd/internal/gpio"
	"github.com/smazurov/factoryd/internal/led"
	"github.com/smazurov/factoryd/internal/logging"
	"github.com/spf13/cobra"
)

// CreateGPIOCmd creates the gpio command, which drives the LED registers
// through /dev/mem.
func CreateGPIOCmd() *cobra.Command {
	gpioCmd := &cobra.Command{
		Use:   "gpio",
		Short: "Access the LED GPIO registers directly",
	}

	gpioCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Route the LED pins to GPIO output and turn them off",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := led.InitHardware(logging.GetLogger("gpio")); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "gpio initialized")
			return nil
		},
	})

	gpioCmd.AddCommand(&cobra.Command{
		Use:   "set <code> <value>",
		Short: "Run a control code: wan, lan, wlan, stat or a numeric code; value 0 lights the LED",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := parseCode(args[0])
			if err != nil {
				return err
			}
			value, err := strconv.ParseUint(args[1], 0, 32)
			if err != nil {
				return fmt.Errorf("value %q: %w", args[1], err)
			}

			mem, err := gpio.OpenDevMem()
			if err != nil {
				return err
			}
			defer mem.Close()

			if err := gpio.NewDriver(mem, logging.GetLogger("gpio")).Control(code, uintptr(value)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "gpio %s = %d\n", args[0], value)
			return nil
		},
	})

	return gpioCmd
}

// parseCode accepts an LED line name or a numeric control code.
func parseCode(s string) (uint, error) {
	if line, ok := led.LineByName(s); ok {
		return line.Code, nil
	}
	n, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("control code %q: want wan, lan, wlan, stat or a number", s)
	}
	return uint(n), nil
}
