package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/fieldlink/internal/config"
	"github.com/muurk/fieldlink/internal/logging"
	"github.com/muurk/fieldlink/internal/server"
	"github.com/muurk/fieldlink/internal/store"
	"github.com/muurk/fieldlink/internal/version"
)

// Config file flag shared by run and reset
var configPath string

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: fieldlink-device.yaml in the config directory)")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the device daemon",
	Long: `Start the device daemon and serve the link until interrupted.

Settings are read from flags, then FIELDLINK_* environment variables, then
the config file. A flag given on the command line always wins.

The store keeps the network credential and the provisioned flag across
restarts. Use --ephemeral to keep everything in memory instead.`,
	Example: `  # Start with defaults (listen on :8470, advertise over mDNS)
  fieldlink-device run

  # Report a fixed address instead of probing the host
  fieldlink-device run --static-address 192.168.1.20

  # Debug logging with a transcript of everything the device logged
  fieldlink-device run --log-level debug --transcript ./device.log

  # Throwaway device for testing the installer
  fieldlink-device run --ephemeral --mdns=false --listen 127.0.0.1:9000`,
	RunE: runDevice,
}

func init() {
	flags := runCmd.Flags()
	flags.String(config.KeyListen, config.DefaultListen, "Link listen address (host:port)")
	flags.String(config.KeyStore, "", "Store file (default: store.yaml in the config directory)")
	flags.String(config.KeyFirmwareDir, "", "Directory receiving firmware images (default: firmware/ in the config directory)")
	flags.String(config.KeyName, "", "Advertised device name (default: fieldlink-<hostname>)")
	flags.String(config.KeyLogLevel, "info", "Log level (debug, info, warn, error)")
	flags.String(config.KeyTranscript, "", "Also write the log to this file")
	flags.String(config.KeyStaticAddress, "", "Address to report instead of the host's own IPv4 address")
	flags.Bool(config.KeyMDNS, true, "Advertise the device over mDNS")
	flags.Bool(config.KeyEphemeral, false, "Keep the store in memory")
	flags.Duration(config.KeyStatusInterval, 0, "Interval between status records (default 10s)")
	flags.Duration(config.KeyResetGrace, 0, "Delay before restarting after a factory reset command (default 2s)")
	flags.Duration(config.KeySuccessGrace, 0, "Delay before restarting after a firmware update (default 1.5s)")
}

func runDevice(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadDaemon(configPath, cmd.Flags())
	if err != nil {
		return err
	}

	var outputs []string
	if cfg.Transcript != "" {
		outputs = append(outputs, cfg.Transcript)
	}
	if err := logging.Initialize(cfg.LogLevel, outputs...); err != nil {
		return err
	}
	defer logging.Sync()

	logging.Info("Starting fieldlink-device",
		zap.String("version", version.Version),
		zap.String("name", cfg.Name),
		zap.String("listen", cfg.Listen),
		zap.String("config_file", cfg.ConfigFile))

	serverConfig, err := server.ConfigFromDaemon(cfg)
	if err != nil {
		return err
	}

	srv, err := server.New(serverConfig)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	return srv.Start()
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Request a factory reset at the next boot",
	Long: `Set the factory reset flag in the store.

This stands in for holding the BOOT button at power-on. The next time the
daemon boots it clears the stored credential and the provisioned flag,
restarts, and comes back in provisioning mode.

A running daemon keeps the flag when it next writes the store and acts on it
at its next restart, for example after a firmware update. Stopping and
starting the daemon applies it immediately.`,
	RunE: runReset,
}

func runReset(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadDaemon(configPath, nil)
	if err != nil {
		return err
	}
	if cfg.Ephemeral {
		return fmt.Errorf("the store is ephemeral, there is nothing to reset")
	}

	st, err := store.OpenFile(cfg.Store)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	if err := store.NewSettings(st).SetFactoryResetRequested(true); err != nil {
		return fmt.Errorf("failed to set factory reset flag: %w", err)
	}

	fmt.Printf("Factory reset requested in %s\n", cfg.Store)
	fmt.Println("The device will clear its configuration at the next boot.")
	return nil
}
