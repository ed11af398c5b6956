package diag

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/time/rate"

	"github.com/muurk/fieldlink/internal/device"
	"github.com/muurk/fieldlink/internal/gatt"
	"github.com/muurk/fieldlink/internal/logging"
	"github.com/muurk/fieldlink/internal/store"
)

const (
	// MaxLineLen is the longest line notified on LogOut, in bytes
	MaxLineLen = 200

	// DefaultStatusInterval is how often the status record is pushed
	DefaultStatusInterval = 10 * time.Second

	// DefaultResetGrace is the delay between a factory reset command and the restart
	DefaultResetGrace = 2 * time.Second

	// DefaultLinePacing is the minimum gap between LogOut notifications
	DefaultLinePacing = 10 * time.Millisecond
)

// Command names accepted on CommandIn
const (
	CmdResetNVS     = "RESET_NVS"
	CmdFactoryReset = "FACTORY_RESET"
	CmdStatus       = "STATUS"
	CmdOTAMode      = "OTA_MODE"
)

// Options tunes the service timings
type Options struct {
	StatusInterval time.Duration
	ResetGrace     time.Duration
	LinePacing     time.Duration
}

func (o Options) withDefaults() Options {
	if o.StatusInterval == 0 {
		o.StatusInterval = DefaultStatusInterval
	}
	if o.ResetGrace == 0 {
		o.ResetGrace = DefaultResetGrace
	}
	if o.LinePacing == 0 {
		o.LinePacing = DefaultLinePacing
	}
	return o
}

// Service is the diagnostic service. It implements device.Journal.
type Service struct {
	state     *device.State
	periph    gatt.Peripheral
	settings  *store.Settings
	restarter device.Restarter
	opts      Options
	limiter   *rate.Limiter
}

// New creates the diagnostic service
func New(state *device.State, periph gatt.Peripheral, settings *store.Settings, restarter device.Restarter, opts Options) *Service {
	opts = opts.withDefaults()
	return &Service{
		state:     state,
		periph:    periph,
		settings:  settings,
		restarter: restarter,
		opts:      opts,
		limiter:   rate.NewLimiter(rate.Every(opts.LinePacing), 1),
	}
}

// Register wires the command handler and the status ticker into the runtime
func (s *Service) Register(r *device.Runtime) {
	r.HandleWrite(gatt.DiagCommandIn, s.HandleCommand)
	r.Every(s.opts.StatusInterval, s.PushStatus)
	s.periph.SetValue(gatt.DiagStatusOut, []byte(s.StatusRecord()))
}

// SetConnected records whether a client is attached
func (s *Service) SetConnected(connected bool) {
	s.state.ClientConnected = connected
	if connected {
		s.Info("Client connected")
	}
}

// Info implements device.Journal
func (s *Service) Info(msg string, fields ...zap.Field) {
	logging.Info(msg, fields...)
	s.relay("[I] ", msg, fields)
}

// Warn implements device.Journal
func (s *Service) Warn(msg string, fields ...zap.Field) {
	logging.Warn(msg, fields...)
	s.relay("[W] ", msg, fields)
}

// Error implements device.Journal
func (s *Service) Error(msg string, fields ...zap.Field) {
	logging.Error(msg, fields...)
	s.relay("[E] ", msg, fields)
}

func (s *Service) relay(prefix, msg string, fields []zap.Field) {
	if !s.state.ClientConnected {
		return
	}

	line := Truncate(prefix+msg+renderFields(fields), MaxLineLen)
	if err := s.limiter.Wait(context.Background()); err != nil {
		return
	}
	if err := s.periph.Notify(gatt.DiagLogOut, []byte(line)); err != nil {
		logging.Debug("LogOut notify failed", zap.Error(err))
	}
}

// HandleCommand processes one CommandIn write
func (s *Service) HandleCommand(_ context.Context, value []byte) {
	cmd := strings.TrimSpace(string(value))
	s.Info(fmt.Sprintf("Command received: %s", cmd))

	switch cmd {
	case CmdResetNVS, CmdFactoryReset:
		s.factoryReset()
	case CmdStatus:
		s.Info(s.StatusLine())
	case CmdOTAMode:
		s.state.TransferMode = true
		s.Info("OTA mode enabled")
	default:
		s.Warn(fmt.Sprintf("Unknown command: %s", cmd))
	}
}

func (s *Service) factoryReset() {
	s.Warn("Factory reset requested, clearing stored configuration")
	if err := s.settings.ClearAll(); err != nil {
		s.Error("Factory reset failed to clear the store", zap.Error(err))
	} else {
		s.Info("Stored configuration cleared, restarting")
	}
	s.restarter.ScheduleRestart("factory reset command", s.opts.ResetGrace)
}

// PushStatus refreshes the status record and notifies it when a client is
// attached and no firmware transfer is under way.
func (s *Service) PushStatus(_ context.Context) {
	record := []byte(s.StatusRecord())
	s.periph.SetValue(gatt.DiagStatusOut, record)
	if !s.state.ClientConnected || s.state.TransferMode {
		return
	}
	if err := s.periph.Notify(gatt.DiagStatusOut, record); err != nil {
		logging.Debug("StatusOut notify failed", zap.Error(err))
	}
}

// StatusRecord is the compact periodic record
func (s *Service) StatusRecord() string {
	return fmt.Sprintf("STATE:BLE=%d,WIFI=%d,OTA_MODE=%d,IP=%s",
		boolCode(s.state.ClientConnected),
		s.state.Network.Code(),
		boolCode(s.state.TransferMode),
		s.address())
}

// StatusLine is the full status reported for the STATUS command
func (s *Service) StatusLine() string {
	return fmt.Sprintf("STATE=%d,WIFI=%d,OTA_MODE=%d,IP=%s",
		s.state.Lifecycle().Code(),
		s.state.Network.Code(),
		boolCode(s.state.TransferMode),
		s.address())
}

func (s *Service) address() string {
	if s.state.Network != device.NetConnected {
		return ""
	}
	return s.state.Address
}

// Truncate cuts line to at most n bytes without splitting a UTF-8 sequence
func Truncate(line string, n int) string {
	if len(line) <= n {
		return line
	}
	cut := n
	for cut > 0 && !isRuneStart(line[cut]) {
		cut--
	}
	return line[:cut]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

func boolCode(b bool) int {
	if b {
		return 1
	}
	return 0
}

func renderFields(fields []zap.Field) string {
	if len(fields) == 0 {
		return ""
	}
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range fields {
		f.AddTo(enc)
	}

	keys := make([]string, 0, len(enc.Fields))
	for k := range enc.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, enc.Fields[k])
	}
	return b.String()
}
