package client

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"syscall"
)

// ErrorType represents the category of error that occurred
type ErrorType int

const (
	// ErrTypeNetwork indicates a network-level error
	ErrTypeNetwork ErrorType = iota
	// ErrTypeTimeout indicates the device did not answer in time
	ErrTypeTimeout
	// ErrTypeConnectionRefused indicates nothing is listening at the address
	ErrTypeConnectionRefused
	// ErrTypeDNS indicates a DNS resolution failure
	ErrTypeDNS
	// ErrTypeBusy indicates another client is already attached
	ErrTypeBusy
	// ErrTypeProtocol indicates the device rejected or misunderstood a frame
	ErrTypeProtocol
	// ErrTypeNotProvisioning indicates the provisioning service is inactive
	ErrTypeNotProvisioning
	// ErrTypeValidation indicates invalid input on the installer side
	ErrTypeValidation
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeNetwork:
		return "Network Error"
	case ErrTypeTimeout:
		return "Timeout"
	case ErrTypeConnectionRefused:
		return "Connection Refused"
	case ErrTypeDNS:
		return "DNS Error"
	case ErrTypeBusy:
		return "Device Busy"
	case ErrTypeProtocol:
		return "Protocol Error"
	case ErrTypeNotProvisioning:
		return "Not Provisioning"
	case ErrTypeValidation:
		return "Validation Error"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// DeviceError represents an error that occurred while talking to a device
type DeviceError struct {
	Type      ErrorType // Category of error
	Message   string    // Human-readable error message
	Err       error     // Underlying error (if any)
	Addr      string    // Device address (for context)
	Retryable bool      // Whether the error is retryable
}

// Error implements the error interface
func (e *DeviceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for error chain inspection
func (e *DeviceError) Unwrap() error {
	return e.Err
}

// TransferFailedError reports an ERROR:* status from the firmware transfer service
type TransferFailedError struct {
	Status string // The literal status, e.g. "ERROR:WRITE_FAILED"
	Stage  string // start, data or end
}

func (e *TransferFailedError) Error() string {
	return fmt.Sprintf("device reported %s during %s", e.Status, e.Stage)
}

// ClassifyNetworkError analyzes a dial or I/O error
func ClassifyNetworkError(err error, addr string) *DeviceError {
	if err == nil {
		return nil
	}

	if os.IsTimeout(err) || errors.Is(err, os.ErrDeadlineExceeded) {
		return &DeviceError{Type: ErrTypeTimeout, Message: "Request timed out", Err: err, Addr: addr, Retryable: true}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &DeviceError{
			Type:    ErrTypeDNS,
			Message: fmt.Sprintf("DNS resolution failed for %s", dnsErr.Name),
			Err:     err,
			Addr:    addr,
		}
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return &DeviceError{Type: ErrTypeConnectionRefused, Message: "Device refused connection", Err: err, Addr: addr, Retryable: true}
	}

	return &DeviceError{Type: ErrTypeNetwork, Message: "Network error occurred", Err: err, Addr: addr, Retryable: true}
}

func isType(err error, t ErrorType) bool {
	var devErr *DeviceError
	return errors.As(err, &devErr) && devErr.Type == t
}

// IsBusy checks if the device refused a second client
func IsBusy(err error) bool { return isType(err, ErrTypeBusy) }

// IsNotProvisioning checks if the device has no active provisioning service
func IsNotProvisioning(err error) bool { return isType(err, ErrTypeNotProvisioning) }

// IsRetryable checks if an error should be retried
func IsRetryable(err error) bool {
	var devErr *DeviceError
	if errors.As(err, &devErr) {
		return devErr.Retryable
	}
	return false
}

// GetTroubleshootingHint returns user-friendly troubleshooting advice for an error
func GetTroubleshootingHint(err error) string {
	var tfErr *TransferFailedError
	if errors.As(err, &tfErr) {
		return transferHint(tfErr)
	}

	var devErr *DeviceError
	if !errors.As(err, &devErr) {
		return "An unexpected error occurred. Please try again."
	}

	switch devErr.Type {
	case ErrTypeTimeout:
		return strings.Join([]string{
			"The device did not respond in time.",
			"Troubleshooting:",
			"  • Check that the device daemon is running",
			"  • Move closer to the device to improve signal strength",
			"  • Try again; the device may be restarting",
		}, "\n")

	case ErrTypeConnectionRefused:
		return strings.Join([]string{
			"The device refused the connection.",
			"Troubleshooting:",
			"  • Check the --device address and port",
			"  • Run 'fieldlink scan' to find advertising devices",
			"  • The device may be rebooting after an update - wait a few seconds",
		}, "\n")

	case ErrTypeDNS:
		return strings.Join([]string{
			"Could not resolve the device hostname.",
			"Troubleshooting:",
			"  • Use the IP address instead of hostname",
			"  • Run 'fieldlink scan' to list devices and their addresses",
		}, "\n")

	case ErrTypeBusy:
		return strings.Join([]string{
			"Another installer is already connected to this device.",
			"Troubleshooting:",
			"  • Close other fieldlink sessions (monitor, upload)",
			"  • The device accepts one client at a time",
		}, "\n")

	case ErrTypeNotProvisioning:
		return strings.Join([]string{
			"The device is not accepting credentials.",
			"It is already provisioned and running.",
			"Troubleshooting:",
			"  • Send FACTORY_RESET: fieldlink command FACTORY_RESET",
			"  • Reconnect after the device restarts and provision again",
		}, "\n")

	case ErrTypeProtocol:
		return "The device rejected a request. Check the error message for details."

	case ErrTypeValidation:
		return "The input values are invalid. Check the error message for details."

	default:
		return strings.Join([]string{
			"Network communication failed.",
			"Troubleshooting:",
			"  • Check your network connection",
			"  • Verify the device is powered on",
		}, "\n")
	}
}

func transferHint(e *TransferFailedError) string {
	switch e.Status {
	case "ERROR:INVALID_SIZE":
		return "The firmware image is empty or larger than the device accepts (2,000,000 bytes)."
	case "ERROR:BEGIN_FAILED":
		return strings.Join([]string{
			"The device could not open its update partition.",
			"Troubleshooting:",
			"  • Check free space in the device's firmware directory",
			"  • Restart the device and try again",
		}, "\n")
	case "ERROR:WRITE_FAILED":
		return strings.Join([]string{
			"The device failed to store a chunk; the transfer was discarded.",
			"Troubleshooting:",
			"  • Make sure the file is a complete firmware image",
			"  • Retry the upload",
		}, "\n")
	case "ERROR:END_FAILED":
		return "The device could not finalize the image. Retry the upload; the previous firmware is still installed."
	case "ERROR:NOT_STARTED":
		return "The device had no open transfer when END arrived. It may have restarted mid-upload; retry."
	default:
		return "The firmware transfer failed. Retry the upload."
	}
}

// GetShortErrorMessage returns a concise, user-friendly error message
func GetShortErrorMessage(err error) string {
	var tfErr *TransferFailedError
	if errors.As(err, &tfErr) {
		return fmt.Sprintf("Firmware transfer failed (%s)", tfErr.Status)
	}

	var devErr *DeviceError
	if !errors.As(err, &devErr) {
		return err.Error()
	}

	switch devErr.Type {
	case ErrTypeTimeout:
		return "Device not responding (timeout)"
	case ErrTypeConnectionRefused:
		return "Device refused connection - is the daemon running?"
	case ErrTypeDNS:
		return "Cannot resolve device hostname"
	case ErrTypeBusy:
		return "Device busy - another client is connected"
	case ErrTypeNotProvisioning:
		return "Device is not in provisioning mode"
	default:
		return devErr.Message
	}
}
