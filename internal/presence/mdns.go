package presence

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/muurk/fieldlink/internal/discovery"
	"github.com/muurk/fieldlink/internal/logging"
)

// MDNSAdvertiser publishes the device as a _fieldlink._tcp service. The
// active service set travels in the TXT record, so every change
// re-registers the service.
type MDNSAdvertiser struct {
	name string
	port int

	mu     sync.Mutex
	server *zeroconf.Server
	last   []string
}

// NewMDNSAdvertiser creates an advertiser for the link server on port
func NewMDNSAdvertiser(name string, port int) *MDNSAdvertiser {
	return &MDNSAdvertiser{name: name, port: port}
}

// Advertise implements Advertiser
func (a *MDNSAdvertiser) Advertise(services []uuid.UUID) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	txt := discovery.TXTRecords(a.name, services)
	if a.server != nil && equalStrings(a.last, txt) {
		return nil
	}
	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}

	server, err := zeroconf.Register(a.name, discovery.ServiceType, discovery.ServiceDomain, a.port, txt, nil)
	if err != nil {
		return fmt.Errorf("register mDNS service: %w", err)
	}
	a.server = server
	a.last = txt

	logging.Debug("mDNS advertisement updated",
		zap.String("instance", a.name),
		zap.Int("port", a.port),
		zap.Strings("txt", txt))
	return nil
}

// Close stops advertising
func (a *MDNSAdvertiser) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
