package ota

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/fieldlink/internal/device"
	"github.com/muurk/fieldlink/internal/fault"
	"github.com/muurk/fieldlink/internal/gatt"
	"github.com/muurk/fieldlink/internal/logging"
)

const (
	// ProgressStep is the minimum byte count between PROGRESS notifications
	ProgressStep = 102400

	// DefaultSuccessGrace is the delay between SUCCESS and the restart
	DefaultSuccessGrace = 1500 * time.Millisecond
)

type session struct {
	target       Target
	expected     int
	received     int
	lastReported int
}

// Service is the firmware transfer state machine. It runs on the runtime's
// handler goroutine and is not safe for concurrent use.
type Service struct {
	state     *device.State
	periph    gatt.Peripheral
	flasher   Flasher
	restarter device.Restarter
	journal   device.Journal
	grace     time.Duration

	phase   Phase
	session *session
}

// New creates the transfer service. A zero grace uses DefaultSuccessGrace.
func New(state *device.State, periph gatt.Peripheral, flasher Flasher, restarter device.Restarter, journal device.Journal, grace time.Duration) *Service {
	if grace == 0 {
		grace = DefaultSuccessGrace
	}
	return &Service{
		state:     state,
		periph:    periph,
		flasher:   flasher,
		restarter: restarter,
		journal:   journal,
		grace:     grace,
	}
}

// Register wires ControlIn and DataIn into the runtime and publishes the
// initial status.
func (s *Service) Register(r *device.Runtime) {
	r.HandleWrite(gatt.FwControlIn, s.HandleControl)
	r.HandleWrite(gatt.FwDataIn, s.HandleData)
	s.periph.SetValue(gatt.FwStatusOut, []byte(StatusIdle))
}

// Phase returns the session state
func (s *Service) Phase() Phase {
	return s.phase
}

// Received returns the byte count of the open session
func (s *Service) Received() int {
	if s.session == nil {
		return 0
	}
	return s.session.received
}

func (s *Service) notify(st Status) {
	s.periph.SetValue(gatt.FwStatusOut, []byte(st))
	if err := s.periph.Notify(gatt.FwStatusOut, []byte(st)); err != nil {
		logging.Debug("StatusOut notify failed", zap.Error(err))
	}
}

// HandleControl processes one ControlIn write
func (s *Service) HandleControl(_ context.Context, value []byte) {
	ctl, err := ParseControl(value)
	switch {
	case fault.IsValidation(err):
		s.journal.Error("Invalid firmware size", zap.Error(err))
		s.notify(StatusInvalidSize)
		return
	case err != nil:
		s.journal.Warn("Ignoring control write", zap.Error(err))
		return
	}

	switch ctl.Op {
	case OpStart:
		s.start(ctl.Size)
	case OpEnd:
		s.end()
	case OpAbort:
		s.abort()
	}
}

func (s *Service) start(size int) {
	if s.session != nil {
		s.journal.Warn("Firmware transfer restarted, discarding previous session")
		s.discard()
	}

	s.journal.Info(fmt.Sprintf("Starting firmware transfer: %d bytes", size))
	target, err := s.flasher.Begin(size)
	if err != nil {
		s.journal.Error("Firmware transfer begin failed",
			zap.Error(fault.NewTransferError(fault.TransferBegin, "begin", err)))
		s.phase = PhaseIdle
		s.notify(FailureStatus(fault.TransferBegin))
		return
	}

	s.session = &session{target: target, expected: size}
	s.phase = PhaseReady
	s.notify(StatusReady)
}

// HandleData processes one DataIn chunk
func (s *Service) HandleData(_ context.Context, chunk []byte) {
	if s.session == nil {
		s.journal.Error("Firmware transfer not started, ignoring data")
		return
	}
	if len(chunk) == 0 {
		s.journal.Warn("Empty firmware data chunk")
		return
	}

	sess := s.session
	if sess.received == 0 {
		logging.LogRawBytes("Firmware image header", chunk[:min(len(chunk), 32)])
	}
	n, err := sess.target.Write(chunk)
	if err != nil || n != len(chunk) {
		s.journal.Error("Firmware write failed",
			zap.Int("written", n),
			zap.Int("chunk", len(chunk)),
			zap.Error(fault.NewTransferError(fault.TransferWrite, "write", err)))
		s.discard()
		s.notify(FailureStatus(fault.TransferWrite))
		return
	}

	sess.received += n
	s.phase = PhaseInProgress

	if sess.received-sess.lastReported >= ProgressStep || sess.received == sess.expected {
		sess.lastReported = sess.received
		logging.Debug("Firmware transfer progress",
			zap.Int("received", sess.received),
			zap.Int("expected", sess.expected))
		s.notify(ProgressStatus(sess.received, sess.expected))
	}
}

func (s *Service) end() {
	if s.session == nil {
		s.journal.Error("Firmware transfer not in progress")
		s.notify(StatusNotStarted)
		return
	}

	sess := s.session
	s.session = nil
	s.phase = PhaseIdle

	if sess.received < sess.expected {
		s.journal.Warn(fmt.Sprintf("Finalizing short image: %d of %d bytes", sess.received, sess.expected))
	}

	s.journal.Info("Finalizing firmware image")
	if err := sess.target.Commit(); err != nil {
		s.journal.Error("Firmware finalize failed",
			zap.Error(fault.NewTransferError(fault.TransferEnd, "commit", err)))
		s.notify(FailureStatus(fault.TransferEnd))
		return
	}

	s.journal.Info(fmt.Sprintf("Firmware update successful: %d bytes", sess.received))
	s.state.TransferMode = false
	s.notify(StatusSuccess)
	s.journal.Info("Rebooting")
	s.restarter.ScheduleRestart("firmware update", s.grace)
}

func (s *Service) abort() {
	s.journal.Warn("Firmware transfer aborted by client")
	s.discard()
	s.state.TransferMode = false
	s.notify(StatusAborted)
}

// discard aborts the open target, if any, and returns to Idle
func (s *Service) discard() {
	if s.session != nil {
		if err := s.session.target.Abort(); err != nil {
			logging.Warn("Failed to discard firmware target", zap.Error(err))
		}
		s.session = nil
	}
	s.phase = PhaseIdle
}
