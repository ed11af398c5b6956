package discovery

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/muurk/fieldlink/internal/gatt"
)

// Device represents a discovered fieldlink device
type Device struct {
	// Name is the advertised device name (TXT "name=")
	Name string

	// Instance is the mDNS instance name
	Instance string

	// Hostname is the mDNS hostname (e.g., "workbench.local.")
	Hostname string

	// IP is the device address, IPv4 preferred
	IP string

	// Port is the link server port
	Port int

	// Services are the advertised active GATT services
	Services []uuid.UUID

	// Metadata contains the remaining TXT record data
	Metadata map[string]string

	// DiscoveredAt is when the device was discovered
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the device
func (d *Device) String() string {
	names := make([]string, 0, len(d.Services))
	for _, id := range d.Services {
		if svc, ok := gatt.ServiceByUUID(id); ok {
			names = append(names, svc.Name)
		} else {
			names = append(names, id.String())
		}
	}
	return fmt.Sprintf("%s at %s [%s]", d.Name, d.Addr(), strings.Join(names, ", "))
}

// Addr returns host:port for the link server
func (d *Device) Addr() string {
	return net.JoinHostPort(d.IP, strconv.Itoa(d.Port))
}

// HasService reports whether the device advertises service id
func (d *Device) HasService(id uuid.UUID) bool {
	for _, s := range d.Services {
		if s == id {
			return true
		}
	}
	return false
}

// Provisioning reports whether the device is waiting for credentials
func (d *Device) Provisioning() bool {
	return d.HasService(gatt.ProvisioningService)
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (d *Device) GetMetadata(key string) string {
	if d.Metadata == nil {
		return ""
	}
	return d.Metadata[key]
}
