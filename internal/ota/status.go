package ota

import (
	"fmt"

	"github.com/muurk/fieldlink/internal/fault"
)

// Status is a literal notified on StatusOut
type Status string

const (
	StatusIdle        Status = "IDLE"
	StatusReady       Status = "READY"
	StatusSuccess     Status = "SUCCESS"
	StatusAborted     Status = "ABORTED"
	StatusInvalidSize Status = "ERROR:INVALID_SIZE"
	StatusNotStarted  Status = "ERROR:NOT_STARTED"
	StatusBeginFailed Status = "ERROR:BEGIN_FAILED"
	StatusWriteFailed Status = "ERROR:WRITE_FAILED"
	StatusEndFailed   Status = "ERROR:END_FAILED"
)

// ProgressStatus renders PROGRESS:<received>/<expected>
func ProgressStatus(received, expected int) Status {
	return Status(fmt.Sprintf("PROGRESS:%d/%d", received, expected))
}

// FailureStatus maps a transfer stage to its error literal
func FailureStatus(kind fault.TransferKind) Status {
	switch kind {
	case fault.TransferBegin:
		return StatusBeginFailed
	case fault.TransferWrite:
		return StatusWriteFailed
	default:
		return StatusEndFailed
	}
}

// Phase is the transfer session state
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseReady
	PhaseInProgress
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "Idle"
	case PhaseReady:
		return "Ready"
	case PhaseInProgress:
		return "InProgress"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}
