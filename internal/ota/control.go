package ota

import (
	"strconv"
	"strings"

	"github.com/muurk/fieldlink/internal/fault"
)

// MaxImageSize is the largest image START accepts, in bytes
const MaxImageSize = 2_000_000

// ControlOp is a ControlIn command
type ControlOp int

const (
	OpStart ControlOp = iota
	OpEnd
	OpAbort
)

// Control is a parsed ControlIn write
type Control struct {
	Op   ControlOp
	Size int // only set for OpStart
}

const startPrefix = "START:"

// ParseControl parses a ControlIn write. An unknown command is a FormatError;
// a START with a bad size is a ValidationError.
func ParseControl(value []byte) (Control, error) {
	cmd := strings.TrimSpace(string(value))
	switch {
	case strings.HasPrefix(cmd, startPrefix):
		size, err := ParseStart(cmd[len(startPrefix):])
		if err != nil {
			return Control{}, err
		}
		return Control{Op: OpStart, Size: size}, nil
	case cmd == "END":
		return Control{Op: OpEnd}, nil
	case cmd == "ABORT":
		return Control{Op: OpAbort}, nil
	default:
		return Control{}, fault.NewFormatError("unknown control command: %q", cmd)
	}
}

// ParseStart validates the declared image size: 0 < size <= MaxImageSize
func ParseStart(arg string) (int, error) {
	size, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil {
		return 0, fault.NewValidationError("invalid image size %q", arg)
	}
	if size <= 0 || size > MaxImageSize {
		return 0, fault.NewValidationError("image size %d out of range (1-%d)", size, MaxImageSize)
	}
	return size, nil
}
