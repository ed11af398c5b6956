// Package fault defines the error taxonomy shared by the device services.
//
// Every error raised while handling wireless input is classified into one of
// five types. Services handle their errors at the point of detection; the
// type decides what gets logged and, for firmware transfer, which status
// literal is notified.
package fault

import (
	"errors"
	"fmt"
)

// ErrorType represents the category of error that occurred
type ErrorType int

const (
	// ErrTypeValidation indicates malformed or out-of-range input
	ErrTypeValidation ErrorType = iota
	// ErrTypeFormat indicates a missing required delimiter
	ErrTypeFormat
	// ErrTypeStorage indicates a durable read/write failure
	ErrTypeStorage
	// ErrTypeProtocol indicates a command that is illegal in the current state
	ErrTypeProtocol
	// ErrTypeTransfer indicates a flash target rejected an operation
	ErrTypeTransfer
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeValidation:
		return "ValidationError"
	case ErrTypeFormat:
		return "FormatError"
	case ErrTypeStorage:
		return "StorageError"
	case ErrTypeProtocol:
		return "ProtocolError"
	case ErrTypeTransfer:
		return "TransferError"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// TransferKind narrows a transfer error to the stage that failed.
type TransferKind int

const (
	TransferBegin TransferKind = iota
	TransferWrite
	TransferEnd
)

func (k TransferKind) String() string {
	switch k {
	case TransferBegin:
		return "begin"
	case TransferWrite:
		return "write"
	case TransferEnd:
		return "end"
	default:
		return fmt.Sprintf("TransferKind(%d)", k)
	}
}

// Error is the concrete error type for all service failures
type Error struct {
	Type    ErrorType    // Category of error
	Message string       // Human-readable error message
	Kind    TransferKind // Stage, only meaningful for ErrTypeTransfer
	Err     error        // Underlying error (if any)
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for error chain inspection
func (e *Error) Unwrap() error {
	return e.Err
}

// NewValidationError creates a validation error
func NewValidationError(format string, args ...any) *Error {
	return &Error{Type: ErrTypeValidation, Message: fmt.Sprintf(format, args...)}
}

// NewFormatError creates a format error
func NewFormatError(format string, args ...any) *Error {
	return &Error{Type: ErrTypeFormat, Message: fmt.Sprintf(format, args...)}
}

// NewStorageError wraps a store failure
func NewStorageError(message string, err error) *Error {
	return &Error{Type: ErrTypeStorage, Message: message, Err: err}
}

// NewProtocolError creates a protocol error, optionally wrapping a sentinel
func NewProtocolError(message string, err error) *Error {
	return &Error{Type: ErrTypeProtocol, Message: message, Err: err}
}

// NewTransferError wraps a flash target failure at the given stage
func NewTransferError(kind TransferKind, message string, err error) *Error {
	return &Error{Type: ErrTypeTransfer, Kind: kind, Message: message, Err: err}
}

func typeOf(err error) (ErrorType, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Type, true
	}
	return 0, false
}

func hasType(err error, want ErrorType) bool {
	t, ok := typeOf(err)
	return ok && t == want
}

// IsValidation checks if an error is a validation error
func IsValidation(err error) bool { return hasType(err, ErrTypeValidation) }

// IsFormat checks if an error is a format error
func IsFormat(err error) bool { return hasType(err, ErrTypeFormat) }

// IsStorage checks if an error is a storage error
func IsStorage(err error) bool { return hasType(err, ErrTypeStorage) }

// IsProtocol checks if an error is a protocol error
func IsProtocol(err error) bool { return hasType(err, ErrTypeProtocol) }

// IsTransfer checks if an error is a transfer error
func IsTransfer(err error) bool { return hasType(err, ErrTypeTransfer) }
