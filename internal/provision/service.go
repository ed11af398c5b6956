// Package provision implements the credential provisioning service.
//
// A client writes "<ssid>\n<password>" to CredentialIn. The payload is split
// on the first newline, validated, persisted and followed by a connection
// attempt. There is no reply channel: every rejection is logged and the
// write is dropped.
package provision

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/muurk/fieldlink/internal/device"
	"github.com/muurk/fieldlink/internal/fault"
	"github.com/muurk/fieldlink/internal/gatt"
	"github.com/muurk/fieldlink/internal/store"
)

// Connector starts a network connection attempt
type Connector interface {
	Connect() error
}

// Service accepts credential writes while the device is provisioning
type Service struct {
	state     *device.State
	settings  *store.Settings
	connector Connector
	journal   device.Journal
}

// New creates the provisioning service
func New(state *device.State, settings *store.Settings, connector Connector, journal device.Journal) *Service {
	return &Service{state: state, settings: settings, connector: connector, journal: journal}
}

// Register wires the CredentialIn handler into the runtime
func (s *Service) Register(r *device.Runtime) {
	r.HandleWrite(gatt.ProvCredentialIn, s.HandleCredential)
}

// ParseCredential splits a CredentialIn payload and validates both parts
func ParseCredential(payload []byte) (device.Credential, error) {
	if len(payload) == 0 {
		return device.Credential{}, fault.NewFormatError("empty credential payload")
	}
	ssid, password, ok := strings.Cut(string(payload), "\n")
	if !ok {
		return device.Credential{}, fault.NewFormatError("credential payload has no newline separator")
	}
	return device.NewCredential(ssid, password)
}

// HandleCredential processes one CredentialIn write
func (s *Service) HandleCredential(_ context.Context, value []byte) {
	if err := s.apply(value); err != nil {
		s.journal.Error("Credential write rejected", zap.Error(err))
	}
}

func (s *Service) apply(value []byte) error {
	if s.state.Lifecycle() != device.Provisioning {
		return fault.NewProtocolError(
			fmt.Sprintf("provisioning inactive in %s", s.state.Lifecycle()), nil)
	}

	cred, err := ParseCredential(value)
	if err != nil {
		return err
	}

	s.journal.Info(fmt.Sprintf("Received credential for network: %s", cred.SSID()))
	if err := s.settings.SaveCredential(cred.SSID(), cred.Password()); err != nil {
		return fault.NewStorageError("save credential", err)
	}
	s.journal.Info("Credential saved")

	s.state.SetLifecycle(device.Provisioning)
	// Failures are recorded in the network state by the connection manager
	_ = s.connector.Connect()
	return nil
}
