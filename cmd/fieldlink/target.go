package main

import (
	"context"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/fieldlink/internal/client"
	"github.com/muurk/fieldlink/internal/config"
	"github.com/muurk/fieldlink/internal/discovery"
	"github.com/muurk/fieldlink/internal/logging"
)

// target is the device a command talks to
type target struct {
	Name string // empty when addressed by host:port only
	Addr string
}

func (t target) String() string {
	if t.Name == "" {
		return t.Addr
	}
	return fmt.Sprintf("%s (%s)", t.Name, t.Addr)
}

// resolveTarget turns --device into an address. A registered name maps to
// its last known address, a host:port is used as is, and any other value is
// looked up over mDNS. Without --device the only registered device is used,
// or failing that the only device a short scan finds.
func resolveTarget(reg *config.Registry) (target, error) {
	if deviceFlag != "" {
		if d := reg.Get(deviceFlag); d != nil && d.Addr != "" {
			return target{Name: deviceFlag, Addr: d.Addr}, nil
		}
		if _, _, err := net.SplitHostPort(deviceFlag); err == nil {
			return target{Addr: deviceFlag}, nil
		}

		scanner := discovery.NewScanner()
		scanner.Timeout = discoveryTimeout
		found, err := scanner.WaitForDevice(deviceFlag)
		if err != nil {
			return target{}, fmt.Errorf("no device named %q: %w", deviceFlag, err)
		}
		reg.Remember(found.Name, found.Addr())
		saveRegistry(reg)
		return target{Name: found.Name, Addr: found.Addr()}, nil
	}

	names := reg.Names()
	if len(names) == 1 {
		d := reg.Get(names[0])
		return target{Name: names[0], Addr: d.Addr}, nil
	}

	devices, err := discovery.ScanForDevices(discoveryTimeout)
	if err != nil {
		return target{}, fmt.Errorf("scan failed: %w", err)
	}
	switch len(devices) {
	case 0:
		return target{}, fmt.Errorf("no devices found, use --device to give an address")
	case 1:
		d := devices[0]
		reg.Remember(d.Name, d.Addr())
		saveRegistry(reg)
		return target{Name: d.Name, Addr: d.Addr()}, nil
	default:
		return target{}, fmt.Errorf("found %d devices, use --device to pick one (see 'fieldlink scan')", len(devices))
	}
}

// connect resolves the target and dials it. A successful dial refreshes the
// registry entry of a named device.
func connect(ctx context.Context) (*client.Client, target, *config.Registry, error) {
	reg, err := config.LoadRegistry()
	if err != nil {
		return nil, target{}, nil, err
	}

	t, err := resolveTarget(reg)
	if err != nil {
		return nil, target{}, nil, err
	}

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	c, err := client.Dial(dialCtx, t.Addr)
	if err != nil {
		return nil, t, reg, err
	}

	if t.Name != "" {
		reg.Remember(t.Name, t.Addr)
		saveRegistry(reg)
	}
	return c, t, reg, nil
}

func saveRegistry(reg *config.Registry) {
	if err := reg.Save(); err != nil {
		logging.Warn("Failed to save device registry", zap.String("path", reg.Path()), zap.Error(err))
	}
}

// troubleshoot adapts client hints for ui result boxes
func troubleshoot(err error) []string {
	return []string{client.GetTroubleshootingHint(err)}
}

const (
	discoveryTimeout = 5 * time.Second
	dialTimeout      = 10 * time.Second
)
