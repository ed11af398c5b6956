// Package presence decides which services the device exposes and keeps the
// radio side (peripheral write gating and advertising) in step with the
// lifecycle state.
package presence

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/muurk/fieldlink/internal/device"
	"github.com/muurk/fieldlink/internal/gatt"
	"github.com/muurk/fieldlink/internal/logging"
)

// Advertiser publishes the active service set
type Advertiser interface {
	Advertise(services []uuid.UUID) error
}

// ConnectionSink receives client connect/disconnect notifications
type ConnectionSink interface {
	SetConnected(connected bool)
}

// ActiveServices returns the services exposed in a lifecycle state.
// Diagnostic and firmware transfer are always active; provisioning only
// while provisioning.
func ActiveServices(l device.Lifecycle) []uuid.UUID {
	active := []uuid.UUID{gatt.DiagnosticService, gatt.FirmwareService}
	if l == device.Provisioning {
		active = append(active, gatt.ProvisioningService)
	}
	return active
}

// Supervisor is the presence supervisor
type Supervisor struct {
	state  *device.State
	periph gatt.Peripheral
	adv    Advertiser
	sink   ConnectionSink

	active []uuid.UUID
}

// New creates a supervisor. adv may be nil when advertising is disabled.
func New(state *device.State, periph gatt.Peripheral, adv Advertiser, sink ConnectionSink) *Supervisor {
	return &Supervisor{state: state, periph: periph, adv: adv, sink: sink}
}

// Register subscribes to lifecycle and connection changes and publishes the
// initial service set.
func (s *Supervisor) Register(r *device.Runtime) {
	s.state.OnLifecycleChange(func(from, to device.Lifecycle) {
		logging.Info("Lifecycle changed",
			zap.Stringer("from", from),
			zap.Stringer("to", to))
		s.Refresh()
	})
	r.OnConnection(s.HandleConnection)
	s.Refresh()
}

// Active returns the last published service set
func (s *Supervisor) Active() []uuid.UUID {
	return s.active
}

// Refresh recomputes the active set and pushes it to both sinks
func (s *Supervisor) Refresh() {
	s.active = ActiveServices(s.state.Lifecycle())
	s.periph.SetActiveServices(s.active)

	if s.adv == nil {
		return
	}
	if err := s.adv.Advertise(s.active); err != nil {
		logging.Warn("Failed to update advertisement", zap.Error(err))
	}
}

// HandleConnection forwards connect/disconnect to the diagnostic service
func (s *Supervisor) HandleConnection(connected bool, remote string) {
	s.sink.SetConnected(connected)
	if !connected {
		// The client went away; make sure we are discoverable again
		s.Refresh()
	}
}
