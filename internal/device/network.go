package device

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/muurk/fieldlink/internal/fault"
	"github.com/muurk/fieldlink/internal/store"
)

// ErrNoCredential is returned by Connect when no SSID is stored
var ErrNoCredential = errors.New("no network credential stored")

// NetworkDriver is the link-layer collaborator. Connect only starts an
// attempt; progress comes back as LinkConnected, AddressAcquired and
// LinkDisconnected events.
type NetworkDriver interface {
	Connect(ssid, password string) error
}

// Network is the network connection manager. It never reconnects on its
// own; see Reconnector.
type Network struct {
	state    *State
	settings *store.Settings
	driver   NetworkDriver
	journal  Journal
}

// NewNetwork creates a connection manager bound to one boot's state
func NewNetwork(state *State, settings *store.Settings, driver NetworkDriver, journal Journal) *Network {
	return &Network{state: state, settings: settings, driver: driver, journal: journal}
}

// Connect starts a connection attempt with the stored credential. It is a
// no-op while an attempt is running or the link is up.
func (n *Network) Connect() error {
	switch n.state.Network {
	case NetConnecting, NetConnected:
		return nil
	}
	n.state.Network = NetIdle

	ssid, password, err := n.settings.Credential()
	if err != nil {
		n.state.Network = NetFailed
		n.journal.Error("Failed to read network credential", zap.Error(err))
		return err
	}
	if ssid == "" {
		n.state.Network = NetFailed
		n.journal.Warn("No network credential stored")
		return fault.NewProtocolError("connect", ErrNoCredential)
	}

	n.journal.Info(fmt.Sprintf("Connecting to network: %s", ssid))
	n.state.Network = NetConnecting
	if err := n.driver.Connect(ssid, password); err != nil {
		n.state.Network = NetFailed
		n.journal.Error("Network connect request failed", zap.Error(err))
		return fmt.Errorf("network connect: %w", err)
	}
	return nil
}

// IsConnected reports whether an address has been acquired
func (n *Network) IsConnected() bool {
	return n.state.Network == NetConnected
}

// CurrentAddress returns the acquired address, or "" when not connected
func (n *Network) CurrentAddress() string {
	if !n.IsConnected() {
		return ""
	}
	return n.state.Address
}

// HandleLinkConnected records association. The attempt is still running
// until an address arrives.
func (n *Network) HandleLinkConnected() {
	n.journal.Info("Network link associated")
}

// HandleAddressAcquired completes the attempt. While provisioning it also
// persists the provisioned flag and moves the device to AppRunning; if the
// flag cannot be stored the lifecycle stays put so the next boot agrees
// with the store.
func (n *Network) HandleAddressAcquired(addr string) {
	n.state.Network = NetConnected
	n.state.Address = addr
	n.journal.Info(fmt.Sprintf("Network connected, address: %s", addr))

	if n.state.Lifecycle() != Provisioning {
		return
	}
	if err := n.settings.SetProvisioned(true); err != nil {
		n.journal.Error("Failed to persist provisioned flag", zap.Error(err))
		return
	}
	n.journal.Info("Provisioning complete, entering application mode")
	n.state.SetLifecycle(AppRunning)
}

// HandleLinkDisconnected fails the current attempt or drops an established link
func (n *Network) HandleLinkDisconnected(reason string) {
	n.state.Network = NetFailed
	n.state.Address = ""
	if reason == "" {
		reason = "unknown"
	}
	n.journal.Warn(fmt.Sprintf("Network disconnected: %s", reason))
}
