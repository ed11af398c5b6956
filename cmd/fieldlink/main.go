// Fieldlink is the installer utility for fieldlink devices.
//
// It finds devices over mDNS, hands them network credentials, sends
// diagnostic commands, streams the device log and uploads firmware images.
// Devices it has seen are remembered in a small registry so they can be
// addressed by name.
//
// Usage:
//
//	fieldlink [command] [flags]
//
// See 'fieldlink --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/fieldlink/internal/logging"
	"github.com/muurk/fieldlink/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "fieldlink",
	Short: "Fieldlink installer",
	Long: `The installer utility for fieldlink devices.

Discovers devices on the local network, provisions their network credentials,
and uploads firmware. Commands that talk to a device take --device, which is
either a host:port address or a device name from 'fieldlink scan'.

Set FIELDLINK_LOG_LEVEL=debug to see the link traffic.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logging.InitializeFromEnv()
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("fieldlink " + version.Full())
	},
}
