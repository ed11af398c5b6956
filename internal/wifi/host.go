// Package wifi provides a host-side network driver. It stands in for the
// radio's station interface: a connect request "associates" after a short
// delay and then reports an address, either a configured one or the host's
// own outbound IPv4 address.
package wifi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/fieldlink/internal/device"
	"github.com/muurk/fieldlink/internal/logging"
)

const (
	// DefaultAssociateDelay is the time between a connect request and association
	DefaultAssociateDelay = 300 * time.Millisecond

	// DefaultAddressDelay is the time between association and address acquisition
	DefaultAddressDelay = 500 * time.Millisecond
)

// ErrNoAddress is reported when the host has no usable IPv4 address
var ErrNoAddress = errors.New("no IPv4 address available")

// Poster accepts driver events. device.Runtime implements it.
type Poster interface {
	Post(ctx context.Context, ev device.Event) error
}

// Options configures the host driver
type Options struct {
	// StaticAddress is reported instead of probing the host
	StaticAddress string
	// RejectSSIDs simulates networks that refuse association
	RejectSSIDs []string

	AssociateDelay time.Duration
	AddressDelay   time.Duration
}

// Host is a device.NetworkDriver backed by the host's network stack
type Host struct {
	ctx    context.Context
	poster Poster
	opts   Options

	wg sync.WaitGroup
}

// NewHost creates a driver that posts events to poster until ctx ends
func NewHost(ctx context.Context, poster Poster, opts Options) *Host {
	if opts.AssociateDelay == 0 {
		opts.AssociateDelay = DefaultAssociateDelay
	}
	if opts.AddressDelay == 0 {
		opts.AddressDelay = DefaultAddressDelay
	}
	return &Host{ctx: ctx, poster: poster, opts: opts}
}

// Connect implements device.NetworkDriver. It returns immediately; the
// outcome arrives as events.
func (h *Host) Connect(ssid, password string) error {
	if h.ctx.Err() != nil {
		return h.ctx.Err()
	}
	logging.Debug("Host network connect requested", zap.String("ssid", ssid))

	h.wg.Add(1)
	go h.associate(ssid)
	return nil
}

// Wait blocks until pending connection attempts have finished
func (h *Host) Wait() {
	h.wg.Wait()
}

func (h *Host) associate(ssid string) {
	defer h.wg.Done()

	if !h.sleep(h.opts.AssociateDelay) {
		return
	}
	for _, rejected := range h.opts.RejectSSIDs {
		if rejected == ssid {
			h.post(device.LinkDisconnected{Reason: fmt.Sprintf("association with %s refused", ssid)})
			return
		}
	}
	h.post(device.LinkConnected{})

	if !h.sleep(h.opts.AddressDelay) {
		return
	}
	addr := h.opts.StaticAddress
	if addr == "" {
		var err error
		if addr, err = HostAddress(); err != nil {
			h.post(device.LinkDisconnected{Reason: err.Error()})
			return
		}
	}
	h.post(device.AddressAcquired{Address: addr})
}

func (h *Host) sleep(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-h.ctx.Done():
		return false
	}
}

func (h *Host) post(ev device.Event) {
	if err := h.poster.Post(h.ctx, ev); err != nil {
		logging.Debug("Dropped network event", zap.Error(err))
	}
}

// HostAddress returns the first non-loopback IPv4 address of the host
func HostAddress() (string, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "", fmt.Errorf("list interface addresses: %w", err)
	}
	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok || ipnet.IP.IsLoopback() {
			continue
		}
		if v4 := ipnet.IP.To4(); v4 != nil {
			return v4.String(), nil
		}
	}
	return "", ErrNoAddress
}
