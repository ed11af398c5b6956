package gatt

import "github.com/google/uuid"

// Peripheral is the radio-facing side of the device as seen by the services.
type Peripheral interface {
	// Notify pushes value to the connected client on a notify characteristic.
	// It is a no-op when no client is attached.
	Notify(char uuid.UUID, value []byte) error

	// SetValue updates the value returned to client reads.
	SetValue(char uuid.UUID, value []byte)

	// SetActiveServices replaces the set of services whose characteristics
	// accept writes and are visible to clients.
	SetActiveServices(services []uuid.UUID)
}
