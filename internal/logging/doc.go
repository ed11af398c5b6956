// Package logging provides structured logging for the fieldlink binaries.
//
// This package wraps a zap logger with convenience functions used throughout
// the device daemon and the installer CLI. On the device side the zap output
// is the local transcript: every diagnostic line is written here whether or
// not a wireless client is attached.
//
// # Log Levels
//
//   - Debug: characteristic payloads, hex dumps of firmware chunks
//   - Info: lifecycle transitions, link attach/detach, commands
//   - Warn: rejected input, aborted transfers, link drops
//   - Error: storage and flash failures
//
// # Configuration
//
// Initialize logging at startup:
//
//	if err := logging.Initialize("debug", "/var/log/fieldlink.transcript"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// When no level is given the FIELDLINK_LOG_LEVEL environment variable is
// consulted; if that is empty too the logger is a no-op, which keeps CLI
// output clean.
//
// # Thread Safety
//
// All logging functions are safe for concurrent use.
package logging
