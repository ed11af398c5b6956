package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/muurk/fieldlink/internal/client"
	"github.com/muurk/fieldlink/internal/config"
	"github.com/muurk/fieldlink/internal/device"
	"github.com/muurk/fieldlink/internal/diag"
	"github.com/muurk/fieldlink/internal/discovery"
	"github.com/muurk/fieldlink/internal/gatt"
	"github.com/muurk/fieldlink/internal/ui"
)

// Device command flags
var (
	deviceFlag   string
	scanTimeout  int
	ssid         string
	password     string
	waitTimeout  time.Duration
	assumeYes    bool
	followFor    time.Duration
	showStatuses bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&deviceFlag, "device", "", "Device name or host:port (skips discovery)")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(forgetCmd)
	rootCmd.AddCommand(provisionCmd)
	rootCmd.AddCommand(commandCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(uploadCmd)
}

// scanCmd discovers devices on the network
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for fieldlink devices on the network",
	Long: `Scan for fieldlink devices using mDNS/DNS-SD discovery.

Every device found is remembered, so later commands can address it by name
with --device.`,
	Example: `  # Scan for 5 seconds (default)
  fieldlink scan

  # Longer scan for busy networks
  fieldlink scan --timeout 15`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().IntVar(&scanTimeout, "timeout", 5, "Scan timeout in seconds")
}

func runScan(cmd *cobra.Command, args []string) error {
	fmt.Printf("Scanning for fieldlink devices (timeout: %ds)...\n\n", scanTimeout)

	devices, err := discovery.ScanForDevices(time.Duration(scanTimeout) * time.Second)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if len(devices) == 0 {
		fmt.Println("No devices found.")
		fmt.Println("\nTroubleshooting:")
		fmt.Println("  - Ensure the device daemon is running with mDNS enabled")
		fmt.Println("  - Check that this computer is on the same network segment")
		fmt.Println("  - Try increasing --timeout for slower networks")
		fmt.Println("  - Use --device host:port if discovery is blocked")
		return nil
	}

	reg, err := config.LoadRegistry()
	if err != nil {
		return err
	}

	fmt.Printf("Found %d device(s):\n\n", len(devices))
	for i, d := range devices {
		reg.Remember(d.Name, d.Addr())

		state := "running"
		if d.Provisioning() {
			state = "waiting for credentials"
		}
		fmt.Printf("%d. %s\n", i+1, d.Name)
		fmt.Printf("   Address: %s\n", d.Addr())
		fmt.Printf("   State:   %s\n", state)
		if d.Hostname != "" {
			fmt.Printf("   Host:    %s\n", d.Hostname)
		}
		fmt.Println()
	}
	saveRegistry(reg)

	fmt.Println("Use 'fieldlink provision --device <name>' to hand a device its network")
	fmt.Println("Use 'fieldlink status --device <name>' to check a running device")
	return nil
}

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List remembered devices",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := config.LoadRegistry()
		if err != nil {
			return err
		}

		names := reg.Names()
		if len(names) == 0 {
			fmt.Println("No devices remembered yet. Run 'fieldlink scan'.")
			return nil
		}

		for _, name := range names {
			d := reg.Get(name)
			fmt.Printf("%s\n", name)
			fmt.Printf("   Address:   %s\n", d.Addr)
			if !d.LastSeen.IsZero() {
				fmt.Printf("   Last seen: %s\n", d.LastSeen.Format(time.RFC3339))
			}
			if !d.ProvisionedAt.IsZero() {
				fmt.Printf("   Network:   %s (since %s)\n", d.SSID, d.ProvisionedAt.Format(time.RFC3339))
			}
			fmt.Println()
		}
		fmt.Printf("Registry: %s\n", reg.Path())
		return nil
	},
}

var forgetCmd = &cobra.Command{
	Use:   "forget <name>",
	Short: "Remove a device from the registry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := config.LoadRegistry()
		if err != nil {
			return err
		}
		if reg.Get(args[0]) == nil {
			return fmt.Errorf("no remembered device named %q", args[0])
		}
		reg.Forget(args[0])
		return reg.Save()
	},
}

// provisionCmd hands a device its network credential
var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Send network credentials to a device",
	Long: `Send network credentials to a device waiting in provisioning mode.

The device stores the credential, joins the network and, once it has an
address, leaves provisioning mode for good. This command waits for that to
happen and reports the address the device obtained.

Without --password the password is read from the terminal.`,
	Example: `  # Provision the only device found by discovery
  fieldlink provision --ssid HomeNet

  # Provision a specific device
  fieldlink provision --device workbench --ssid HomeNet --password secret`,
	RunE: runProvision,
}

func init() {
	provisionCmd.Flags().StringVar(&ssid, "ssid", "", "Network name (1-32 bytes)")
	provisionCmd.Flags().StringVar(&password, "password", "", "Network password (up to 64 bytes)")
	provisionCmd.Flags().DurationVar(&waitTimeout, "wait", 30*time.Second, "How long to wait for the device to join the network")
	_ = provisionCmd.MarkFlagRequired("ssid")
}

func runProvision(cmd *cobra.Command, args []string) error {
	printer := ui.NewPrinter(os.Stdout)

	if !cmd.Flags().Changed("password") && ui.IsTerminal() {
		fmt.Printf("Password for %s: ", ssid)
		pw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		password = string(pw)
	}

	if _, err := device.NewCredential(ssid, password); err != nil {
		return err
	}

	ctx := cmd.Context()
	c, t, reg, err := connect(ctx)
	if err != nil {
		reportError(printer, "Could not reach device", t, err)
		return err
	}
	defer c.Close()

	printer.PrintHeader("Provision Device", "fieldlink provision", map[string]string{
		"Device": t.String(),
		"SSID":   ssid,
	})

	if err := c.Provision(ctx, ssid, password); err != nil {
		reportError(printer, "Provisioning failed", t, err)
		return err
	}

	printer.PrintPleaseWait("Waiting for the device to join "+ssid, "up to "+waitTimeout.String())
	rec, err := waitForNetwork(ctx, c, waitTimeout)
	if err != nil {
		printer.PrintError("Device did not join the network", err, []string{
			"Check the network name and password, then factory reset and provision again",
			"Run 'fieldlink monitor' to watch the device log",
		})
		return err
	}

	if t.Name != "" {
		reg.MarkProvisioned(t.Name, ssid)
		saveRegistry(reg)
	}

	printer.PrintSuccess("Device provisioned", map[string]string{
		"Device":  t.String(),
		"Network": ssid,
		"Address": rec.Address,
	})
	return nil
}

// waitForNetwork polls the status record until the device is connected or
// its connection attempt failed.
func waitForNetwork(ctx context.Context, c *client.Client, timeout time.Duration) (client.StatusRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		rec, err := c.Status(ctx)
		if err == nil {
			switch rec.Network {
			case device.NetConnected:
				return rec, nil
			case device.NetFailed:
				return rec, errors.New("the device could not connect to the network")
			}
		}

		select {
		case <-ticker.C:
		case <-c.Done():
			return client.StatusRecord{}, errors.New("the device closed the connection")
		case <-ctx.Done():
			return client.StatusRecord{}, fmt.Errorf("timed out after %s", timeout)
		}
	}
}

// commandCmd sends a diagnostic command
var commandCmd = &cobra.Command{
	Use:   "command <CMD>",
	Short: "Send a diagnostic command",
	Long: `Send a command to the device's diagnostic channel and show the log lines
it produces.

Commands:
  STATUS          Report lifecycle, network and transfer mode
  OTA_MODE        Enter firmware transfer mode
  FACTORY_RESET   Erase the stored configuration and restart
  RESET_NVS       Same as FACTORY_RESET

The reset commands ask for confirmation unless --yes is given.`,
	Example: `  fieldlink command STATUS
  fieldlink command FACTORY_RESET --device workbench`,
	Args: cobra.ExactArgs(1),
	RunE: runCommand,
}

func init() {
	commandCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Do not ask for confirmation")
	commandCmd.Flags().DurationVar(&followFor, "follow", 2*time.Second, "How long to show device log lines after sending")
}

func isResetCommand(cmd string) bool {
	return cmd == diag.CmdFactoryReset || cmd == diag.CmdResetNVS
}

func runCommand(cmd *cobra.Command, args []string) error {
	printer := ui.NewPrinter(os.Stdout)
	command := strings.ToUpper(strings.TrimSpace(args[0]))

	ctx := cmd.Context()
	c, t, reg, err := connect(ctx)
	if err != nil {
		reportError(printer, "Could not reach device", t, err)
		return err
	}
	defer c.Close()

	reset := isResetCommand(command)
	if reset && !assumeYes {
		if !ui.FactoryResetConfirmation(t.String()).Ask(os.Stdin, os.Stdout) {
			return nil
		}
	}

	if err := c.Command(command); err != nil {
		printer.PrintError("Failed to send command", err, troubleshoot(err))
		return err
	}

	followCtx, cancel := context.WithTimeout(ctx, followFor)
	defer cancel()

	var lines []string
	err = c.Monitor(followCtx, func(n client.Notification) {
		if n.Char == gatt.DiagLogOut {
			lines = append(lines, string(n.Value))
		}
	})
	printer.PrintLogBox(lines, 0)
	if err != nil && !reset {
		printer.PrintError("Device disconnected", err, troubleshoot(err))
		return err
	}

	if reset {
		if t.Name != "" {
			if d := reg.Get(t.Name); d != nil {
				d.ProvisionedAt = time.Time{}
				d.SSID = ""
				saveRegistry(reg)
			}
		}
		printer.Newline()
		printer.PrintWarning("Factory reset sent", map[string]string{
			"Device": t.String(),
			"Next":   "fieldlink provision --device " + deviceArg(t),
		})
	}
	return nil
}

func deviceArg(t target) string {
	if t.Name != "" {
		return t.Name
	}
	return t.Addr
}

// statusCmd reads the status record
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show device status",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	printer := ui.NewPrinter(os.Stdout)

	ctx := cmd.Context()
	c, t, _, err := connect(ctx)
	if err != nil {
		reportError(printer, "Could not reach device", t, err)
		return err
	}
	defer c.Close()

	rec, err := c.Status(ctx)
	if err != nil {
		printer.PrintError("Could not read status", err, troubleshoot(err))
		return err
	}

	services, err := c.Services(ctx)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(services))
	for _, id := range services {
		if svc, ok := gatt.ServiceByUUID(id); ok {
			names = append(names, svc.Name)
		}
	}

	address := rec.Address
	if address == "" {
		address = "(none)"
	}
	transfer := "off"
	if rec.TransferMode {
		transfer = "on"
	}

	printer.PrintSuccess("Device status", map[string]string{
		"Device":        t.String(),
		"Network":       rec.Network.String(),
		"Address":       address,
		"Transfer mode": transfer,
		"Services":      strings.Join(names, ", "),
	})
	return nil
}

// monitorCmd streams the device log
var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Stream the device log",
	Long: `Stream diagnostic log lines and status records until interrupted.

The stream ends when the device disconnects, for example when it restarts
after a factory reset or a firmware update.`,
	RunE: runMonitor,
}

func init() {
	monitorCmd.Flags().BoolVar(&showStatuses, "status", true, "Show the periodic status records")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	printer := ui.NewPrinter(os.Stdout)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, t, _, err := connect(ctx)
	if err != nil {
		reportError(printer, "Could not reach device", t, err)
		return err
	}
	defer c.Close()

	printer.PrintHeader("Device Monitor", "fieldlink monitor", map[string]string{
		"Device": t.String(),
	})

	err = c.Monitor(ctx, func(n client.Notification) {
		switch {
		case n.Char == gatt.DiagLogOut:
			printer.PrintLogLine(string(n.Value))
		case n.Char == gatt.DiagStatusOut && showStatuses:
			printer.PrintLogLine(string(n.Value))
		case n.Char == gatt.FwStatusOut:
			printer.PrintLogLine("[I] firmware: " + string(n.Value))
		}
	})
	if err != nil {
		printer.Newline()
		printer.PrintWarning("Device disconnected", map[string]string{"Device": t.String()})
	}
	return nil
}
