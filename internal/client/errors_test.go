package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"syscall"
	"testing"
)

type timeoutError struct{}

func (e *timeoutError) Error() string   { return "i/o timeout" }
func (e *timeoutError) Timeout() bool   { return true }
func (e *timeoutError) Temporary() bool { return true }

func TestClassifyNetworkError_Timeout(t *testing.T) {
	err := &url.Error{
		Op:  "Get",
		URL: "ws://192.168.4.16:8470/link",
		Err: &net.OpError{
			Op:  "dial",
			Net: "tcp",
			Err: &timeoutError{},
		},
	}

	devErr := ClassifyNetworkError(err, "192.168.4.16:8470")
	if devErr == nil {
		t.Fatal("Expected DeviceError, got nil")
	}
	if devErr.Type != ErrTypeTimeout {
		t.Errorf("Expected error type %v, got %v", ErrTypeTimeout, devErr.Type)
	}
	if !devErr.Retryable {
		t.Error("Expected timeout error to be retryable")
	}
}

func TestClassifyNetworkError_ContextDeadline(t *testing.T) {
	devErr := ClassifyNetworkError(context.DeadlineExceeded, "10.0.0.2:8470")
	if devErr.Type != ErrTypeTimeout {
		t.Errorf("Expected error type %v, got %v", ErrTypeTimeout, devErr.Type)
	}
}

func TestClassifyNetworkError_ConnectionRefused(t *testing.T) {
	err := &net.OpError{
		Op:  "dial",
		Net: "tcp",
		Err: syscall.ECONNREFUSED,
	}

	devErr := ClassifyNetworkError(err, "10.0.0.2:8470")
	if devErr.Type != ErrTypeConnectionRefused {
		t.Errorf("Expected error type %v, got %v", ErrTypeConnectionRefused, devErr.Type)
	}
	if !devErr.Retryable {
		t.Error("Expected connection refused error to be retryable")
	}
}

func TestClassifyNetworkError_DNS(t *testing.T) {
	err := &net.DNSError{
		Err:        "no such host",
		Name:       "porch.local",
		IsNotFound: true,
	}

	devErr := ClassifyNetworkError(err, "porch.local:8470")
	if devErr.Type != ErrTypeDNS {
		t.Errorf("Expected error type %v, got %v", ErrTypeDNS, devErr.Type)
	}
	if !strings.Contains(devErr.Message, "porch.local") {
		t.Errorf("Expected message to name the host, got %q", devErr.Message)
	}
	if devErr.Retryable {
		t.Error("Expected DNS error not to be retryable")
	}
}

func TestClassifyNetworkError_Nil(t *testing.T) {
	if ClassifyNetworkError(nil, "x") != nil {
		t.Error("Expected nil for nil error")
	}
}

func TestErrorPredicates(t *testing.T) {
	busy := fmt.Errorf("dial: %w", &DeviceError{Type: ErrTypeBusy, Message: "busy"})
	notProv := &DeviceError{Type: ErrTypeNotProvisioning, Message: "inactive"}
	retry := &DeviceError{Type: ErrTypeNetwork, Retryable: true}

	if !IsBusy(busy) {
		t.Error("IsBusy should see through wrapping")
	}
	if IsBusy(notProv) {
		t.Error("IsBusy should be false for other types")
	}
	if !IsNotProvisioning(notProv) {
		t.Error("IsNotProvisioning should be true")
	}
	if !IsRetryable(retry) {
		t.Error("IsRetryable should be true")
	}
	if IsRetryable(errors.New("plain")) {
		t.Error("IsRetryable should be false for plain errors")
	}
}

func TestDeviceErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := &DeviceError{Type: ErrTypeNetwork, Message: "failed", Err: cause}

	if !errors.Is(err, cause) {
		t.Error("DeviceError should unwrap to its cause")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("Error() = %q, should include the cause", err.Error())
	}
}

func TestGetTroubleshootingHint(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"timeout", &DeviceError{Type: ErrTypeTimeout}, "did not respond"},
		{"refused", &DeviceError{Type: ErrTypeConnectionRefused}, "fieldlink scan"},
		{"busy", &DeviceError{Type: ErrTypeBusy}, "one client at a time"},
		{"not provisioning", &DeviceError{Type: ErrTypeNotProvisioning}, "FACTORY_RESET"},
		{"invalid size", &TransferFailedError{Status: "ERROR:INVALID_SIZE", Stage: "start"}, "2,000,000"},
		{"write failed", &TransferFailedError{Status: "ERROR:WRITE_FAILED", Stage: "data"}, "discarded"},
		{"end failed", &TransferFailedError{Status: "ERROR:END_FAILED", Stage: "end"}, "finalize"},
		{"aborted", &TransferFailedError{Status: "ABORTED", Stage: "data"}, "Retry the upload"},
		{"unknown", errors.New("plain"), "unexpected error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hint := GetTroubleshootingHint(tt.err)
			if !strings.Contains(hint, tt.want) {
				t.Errorf("GetTroubleshootingHint() = %q, should contain %q", hint, tt.want)
			}
		})
	}
}

func TestGetShortErrorMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&TransferFailedError{Status: "ERROR:WRITE_FAILED"}, "Firmware transfer failed (ERROR:WRITE_FAILED)"},
		{&DeviceError{Type: ErrTypeBusy}, "Device busy - another client is connected"},
		{&DeviceError{Type: ErrTypeProtocol, Message: "service not active"}, "service not active"},
		{errors.New("plain"), "plain"},
	}

	for _, tt := range tests {
		if got := GetShortErrorMessage(tt.err); got != tt.want {
			t.Errorf("GetShortErrorMessage(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestTransferFailedErrorMessage(t *testing.T) {
	err := &TransferFailedError{Status: "ERROR:NOT_STARTED", Stage: StageEnd.String()}
	if err.Error() != "device reported ERROR:NOT_STARTED during end" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestParseStatusRecord(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    StatusRecord
		wantErr bool
	}{
		{
			name: "connected",
			in:   "STATE:BLE=1,WIFI=2,OTA_MODE=0,IP=192.168.1.20",
			want: StatusRecord{ClientConnected: true, Network: 2, Address: "192.168.1.20"},
		},
		{
			name: "transfer mode",
			in:   "STATE:BLE=0,WIFI=3,OTA_MODE=1,IP=0.0.0.0\n",
			want: StatusRecord{Network: 3, TransferMode: true, Address: "0.0.0.0"},
		},
		{name: "missing prefix", in: "BLE=1", wantErr: true},
		{name: "bad wifi", in: "STATE:WIFI=x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseStatusRecord(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseStatusRecord() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseStatusRecord() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
