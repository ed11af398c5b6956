package device

import (
	"github.com/muurk/fieldlink/internal/fault"
	"github.com/muurk/fieldlink/internal/store"
)

// BootResult is the outcome of the boot sequence
type BootResult struct {
	Lifecycle Lifecycle
	// Restart is set when a factory reset was performed. The boot is over
	// and the device must restart before doing anything else.
	Restart bool
}

// Boot resolves the initial lifecycle state from the persisted flags. A
// pending factory reset wipes both namespaces and ends the boot with
// Restart set. Any store failure is fatal for the boot.
func Boot(settings *store.Settings, journal Journal) (BootResult, error) {
	reset, err := settings.FactoryResetRequested()
	if err != nil {
		return BootResult{}, fault.NewStorageError("read factory reset flag", err)
	}

	if reset {
		journal.Warn("Factory reset requested, clearing stored configuration")
		if err := settings.ClearAll(); err != nil {
			return BootResult{}, fault.NewStorageError("factory reset", err)
		}
		if err := settings.SetFactoryResetRequested(false); err != nil {
			return BootResult{}, fault.NewStorageError("clear factory reset flag", err)
		}
		journal.Info("Factory reset complete, restarting")
		return BootResult{Lifecycle: FactoryResetPending, Restart: true}, nil
	}

	provisioned, err := settings.Provisioned()
	if err != nil {
		return BootResult{}, fault.NewStorageError("read provisioned flag", err)
	}
	if provisioned {
		journal.Info("Device provisioned, entering application mode")
		return BootResult{Lifecycle: AppRunning}, nil
	}

	journal.Info("Device not provisioned, entering provisioning mode")
	return BootResult{Lifecycle: Provisioning}, nil
}
