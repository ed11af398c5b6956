package main

import (
	"github.com/muurk/fieldlink/internal/client"
	"github.com/muurk/fieldlink/internal/ui"
)

// reportError prints err as a result box. A busy device and a device that
// is not waiting for credentials get a warning naming the next step instead
// of the generic troubleshooting text.
func reportError(printer *ui.Printer, title string, t target, err error) {
	switch {
	case client.IsBusy(err):
		printer.PrintWarning("Device busy", map[string]string{
			"Device": t.String(),
			"Next":   "close the other fieldlink session",
		})
	case client.IsNotProvisioning(err):
		printer.PrintWarning("Device already provisioned", map[string]string{
			"Device": t.String(),
			"Next":   "fieldlink command FACTORY_RESET",
			"Then":   "fieldlink provision",
		})
	default:
		printer.PrintError(title, err, troubleshoot(err))
	}
}
