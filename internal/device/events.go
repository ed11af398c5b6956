package device

import (
	"context"

	"github.com/google/uuid"
)

// Event is a message placed on the runtime queue
type Event interface {
	event()
}

// ClientConnected reports a wireless client attaching
type ClientConnected struct {
	Remote string
}

// ClientDisconnected reports the wireless client going away
type ClientDisconnected struct {
	Remote string
}

// Write carries a characteristic write from the client
type Write struct {
	Char  uuid.UUID
	Value []byte
}

// LinkConnected reports network association (informational)
type LinkConnected struct{}

// AddressAcquired reports the device obtained a network address
type AddressAcquired struct {
	Address string
}

// LinkDisconnected reports the network link dropped or failed to associate
type LinkDisconnected struct {
	Reason string
}

type tick struct {
	fn func(ctx context.Context)
}

func (ClientConnected) event()    {}
func (ClientDisconnected) event() {}
func (Write) event()              {}
func (LinkConnected) event()      {}
func (AddressAcquired) event()    {}
func (LinkDisconnected) event()   {}
func (tick) event()               {}
