// Fieldlink-device is the device-side daemon of the fieldlink provisioning
// system.
//
// It runs the configuration store, lifecycle state machine and the three
// GATT-style services behind a single-client WebSocket link, and publishes
// the active services over mDNS so the installer can find it. Firmware
// images uploaded through the link are staged and committed to the firmware
// directory.
//
// Usage:
//
//	fieldlink-device run [flags]
//	fieldlink-device reset
//
// See 'fieldlink-device run --help' for available options.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/fieldlink/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "fieldlink-device",
	Short: "Fieldlink device daemon",
	Long: `The device side of fieldlink.

The daemon boots like the embedded device would: it checks the factory reset
flag, resolves whether the device is provisioned, and then serves the
diagnostic, provisioning and firmware transfer services to one installer at
a time.

Note: the installer is the separate 'fieldlink' utility.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("fieldlink-device " + version.Full())
	},
}
