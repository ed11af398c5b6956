package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/fieldlink/internal/config"
	"github.com/muurk/fieldlink/internal/diag"
	"github.com/muurk/fieldlink/internal/link"
	"github.com/muurk/fieldlink/internal/logging"
	"github.com/muurk/fieldlink/internal/ota"
	"github.com/muurk/fieldlink/internal/presence"
	"github.com/muurk/fieldlink/internal/store"
	"github.com/muurk/fieldlink/internal/wifi"
)

// ShutdownTimeout bounds the HTTP shutdown
const ShutdownTimeout = 5 * time.Second

// Config holds the server configuration
type Config struct {
	Listen    string
	Name      string
	Store     store.Store
	Flasher   ota.Flasher
	Advertise bool // Publish the device over mDNS

	Diag           diag.Options
	SuccessGrace   time.Duration
	ReconnectCheck time.Duration
	Network        wifi.Options
}

// ConfigFromDaemon opens the store and flasher described by d
func ConfigFromDaemon(d *config.Daemon) (*Config, error) {
	if err := d.PrepareDirs(); err != nil {
		return nil, err
	}

	var st store.Store
	if d.Ephemeral {
		logging.Warn("Using in-memory store, provisioning will not survive the process")
		st = store.NewMemory()
	} else {
		f, err := store.OpenFile(d.Store)
		if err != nil {
			return nil, fmt.Errorf("failed to open store: %w", err)
		}
		st = f
	}

	return &Config{
		Listen:    d.Listen,
		Name:      d.Name,
		Store:     st,
		Flasher:   ota.NewFileFlasher(d.FirmwareDir),
		Advertise: d.MDNS,
		Diag: diag.Options{
			StatusInterval: d.StatusInterval,
			ResetGrace:     d.ResetGrace,
		},
		SuccessGrace: d.SuccessGrace,
		Network:      wifi.Options{StaticAddress: d.StaticAddress},
	}, nil
}

// Server represents the device daemon
type Server struct {
	config     *Config
	settings   *store.Settings
	link       *link.Server
	advertiser *presence.MDNSAdvertiser

	mu    sync.Mutex
	boots int
}

// New creates a new Server instance
func New(config *Config) (*Server, error) {
	if config.Store == nil {
		return nil, fmt.Errorf("server config has no store")
	}
	if config.Flasher == nil {
		return nil, fmt.Errorf("server config has no flasher")
	}
	if config.Name == "" {
		return nil, fmt.Errorf("server config has no device name")
	}

	return &Server{
		config:   config,
		settings: store.NewSettings(config.Store),
		link:     link.NewServer(),
	}, nil
}

// Settings exposes the persisted configuration
func (s *Server) Settings() *store.Settings {
	return s.settings
}

// Link returns the link endpoint
func (s *Server) Link() *link.Server {
	return s.link
}

// Boots returns how many boots have started
func (s *Server) Boots() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.boots
}

// Start listens on the configured address and blocks until a shutdown
// signal arrives or the device fails.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.config.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Listen, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return s.Serve(ctx, listener)
}

// Serve runs the link endpoint on listener and the device boot loop until
// ctx is cancelled. It closes listener before returning.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	logging.Info("Starting fieldlink device",
		zap.String("name", s.config.Name),
		zap.String("addr", listener.Addr().String()),
		zap.String("endpoint", link.Path),
	)

	httpServer := &http.Server{
		Handler:           s.link.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	devCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	serveErr := make(chan error, 1)
	go func() {
		err := httpServer.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Link endpoint failed", zap.Error(err))
			cancel()
		}
		serveErr <- err
	}()

	if s.config.Advertise {
		if tcp, ok := listener.Addr().(*net.TCPAddr); ok {
			s.advertiser = presence.NewMDNSAdvertiser(s.config.Name, tcp.Port)
		} else {
			logging.Warn("Listener has no TCP port, mDNS advertising disabled")
		}
	}

	runErr := s.runDevice(devCtx)

	s.shutdown(httpServer)
	if err := <-serveErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("link endpoint failed: %w", err)
	}

	if runErr != nil {
		return runErr
	}
	return nil
}

// shutdown gracefully stops the endpoint and advertisement
func (s *Server) shutdown(httpServer *http.Server) {
	logging.Info("Shutting down device...")

	s.link.Disconnect()

	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logging.Warn("Shutdown timeout, forcing close", zap.Error(err))
		_ = httpServer.Close()
	}

	if s.advertiser != nil {
		s.advertiser.Close()
	}

	logging.Sync()
}
