package server

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/muurk/fieldlink/internal/device"
	"github.com/muurk/fieldlink/internal/diag"
	"github.com/muurk/fieldlink/internal/logging"
	"github.com/muurk/fieldlink/internal/ota"
	"github.com/muurk/fieldlink/internal/presence"
	"github.com/muurk/fieldlink/internal/provision"
	"github.com/muurk/fieldlink/internal/wifi"
)

// reloader is a store whose contents can change outside the process
type reloader interface {
	Reload() error
}

// runDevice boots the device repeatedly until ctx ends or a boot fails
// with anything other than a restart.
func (s *Server) runDevice(ctx context.Context) error {
	for {
		err := s.boot(ctx)
		switch {
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, device.ErrRestart):
			logging.Info("Device restarting", zap.Error(err))
		case err != nil:
			return err
		default:
			return nil
		}
	}
}

// boot runs one device lifetime: resolve the lifecycle, wire the services
// into a fresh runtime and dispatch until it ends.
func (s *Server) boot(ctx context.Context) error {
	s.mu.Lock()
	s.boots++
	n := s.boots
	s.mu.Unlock()

	logging.Info("Device booting", zap.Int("boot", n))

	if r, ok := s.config.Store.(reloader); ok {
		if err := r.Reload(); err != nil {
			logging.Error("Failed to reload store", zap.Error(err))
			return fmt.Errorf("boot %d: %w", n, err)
		}
	}

	result, err := device.Boot(s.settings, device.TranscriptJournal{})
	if err != nil {
		logging.Error("Boot failed", zap.Error(err))
		return fmt.Errorf("boot %d: %w", n, err)
	}
	if result.Restart {
		return fmt.Errorf("%w: factory reset", device.ErrRestart)
	}

	bootCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	state := device.NewState(result.Lifecycle)
	rt := device.NewRuntime(state, nil)

	driver := wifi.NewHost(bootCtx, rt, s.config.Network)
	defer driver.Wait()
	defer cancel() // runs before driver.Wait

	diagSvc := diag.New(state, s.link, s.settings, rt, s.config.Diag)
	network := device.NewNetwork(state, s.settings, driver, diagSvc)
	rt.SetNetwork(network)

	var adv presence.Advertiser
	if s.advertiser != nil {
		adv = s.advertiser
	}
	presence.New(state, s.link, adv, diagSvc).Register(rt)
	diagSvc.Register(rt)
	provision.New(state, s.settings, network, diagSvc).Register(rt)
	ota.New(state, s.link, s.config.Flasher, rt, diagSvc, s.config.SuccessGrace).Register(rt)

	reconnectEvery := s.config.ReconnectCheck
	if reconnectEvery == 0 {
		reconnectEvery = device.DefaultReconnectCheck
	}
	device.NewReconnector(state, network).Attach(rt, reconnectEvery)

	if state.Lifecycle() == device.AppRunning {
		// Errors are already journaled and leave the network Failed for
		// the reconnector to pick up.
		_ = network.Connect()
	}

	s.link.Attach(rt)
	defer s.link.Detach()

	return rt.Run(bootCtx)
}
