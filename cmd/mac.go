package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/smazurov/factoryd/internal/command"
	"github.com/smazurov/factoryd/internal/flash"
	"github.com/smazurov/factoryd/internal/logging"
	"github.com/smazurov/factoryd/internal/mac"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// macListing is the machine-readable form of "mac get".
type macListing struct {
	Ath0 string `json:"ath0" yaml:"ath0"`
	Eth0 string `json:"eth0" yaml:"eth0"`
	Eth1 string `json:"eth1" yaml:"eth1"`
}

func printMACs(w io.Writer, format string, macs command.MACs) error {
	listing := macListing{Ath0: macs.WiFi.String(), Eth0: macs.Eth0.String(), Eth1: macs.Eth1.String()}
	switch format {
	case "text", "":
		_, err := fmt.Fprintf(w, "ath0 %s\neth0 %s\neth1 %s\n", listing.Ath0, listing.Eth0, listing.Eth1)
		return err
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(listing)
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(listing)
	default:
		return fmt.Errorf("unknown output format %q (text, json, yaml)", format)
	}
}

// CreateMACCmd creates the mac command, which reads and writes the flash
// addresses without going through the test port.
func CreateMACCmd() *cobra.Command {
	var device, image string

	macCmd := &cobra.Command{
		Use:   "mac",
		Short: "Read or write MAC addresses in flash",
	}
	macCmd.PersistentFlags().StringVar(&device, "device", flash.DefaultDevice, "MTD partition holding the addresses")
	macCmd.PersistentFlags().StringVar(&image, "image", "", "Flash image file to use instead of the MTD partition")

	dispatcher := func() (*command.Dispatcher, error) {
		open, err := flash.NewOpener(device, image)
		if err != nil {
			return nil, err
		}
		logger := logging.GetLogger("flash")
		return command.NewDispatcher(command.Options{
			Store:  flash.NewStore(open, logger),
			Logger: logger,
		}), nil
	}

	var output string
	getCmd := &cobra.Command{
		Use:   "get",
		Short: "Print the ath0, eth0 and eth1 addresses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := dispatcher()
			if err != nil {
				return err
			}
			macs, err := d.ReadMACs()
			if err != nil {
				return err
			}
			return printMACs(cmd.OutOrStdout(), output, macs)
		},
	}
	getCmd.Flags().StringVarP(&output, "output", "o", "text", "Output format (text, json, yaml)")
	macCmd.AddCommand(getCmd)

	macCmd.AddCommand(&cobra.Command{
		Use:   "set <mac>",
		Short: "Write a base address to ath0 and its successors to eth0 and eth1",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := mac.Parse(args[0])
			if err != nil {
				return err
			}
			d, err := dispatcher()
			if err != nil {
				return err
			}
			if err := d.SetWiFiMAC(addr); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ath0 %s\neth0 %s\neth1 %s\n", addr, addr.Next(), addr.Next().Next())
			return nil
		},
	})

	macCmd.AddCommand(&cobra.Command{
		Use:   "derive",
		Short: "Rewrite eth0 and eth1 from the address at ath0",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := dispatcher()
			if err != nil {
				return err
			}
			if err := d.DeriveEthMACs(); err != nil {
				return err
			}
			macs, err := d.ReadMACs()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "eth0 %s\neth1 %s\n", macs.Eth0, macs.Eth1)
			return nil
		},
	})

	return macCmd
}
