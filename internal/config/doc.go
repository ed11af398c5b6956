// Package config provides configuration for both fieldlink binaries.
//
// The device daemon reads its settings through viper from an optional
// fieldlink-device.yaml file, FIELDLINK_* environment variables and cobra
// flags, in increasing order of precedence. The installer keeps a small
// YAML registry of devices it has seen so later commands can address a
// device by name instead of host:port.
//
// # Configuration File Location
//
// Both files live in the platform configuration directory:
//   - Linux: $XDG_CONFIG_HOME/fieldlink or $HOME/.config/fieldlink
//   - macOS: $HOME/.config/fieldlink
//   - Windows: %LOCALAPPDATA%\fieldlink
//
// # Security
//
// The registry NEVER stores network passwords. Credentials are passed on
// the command line each time a device is provisioned.
//
// # Usage Example
//
//	cfg, err := config.LoadDaemon("", cmd.Flags())
//	if err != nil {
//	    return err
//	}
//
//	reg, err := config.LoadRegistry()
//	if err != nil {
//	    return err
//	}
//	reg.Remember("porch-sensor", "192.168.1.40:8470")
//	_ = reg.Save()
package config
