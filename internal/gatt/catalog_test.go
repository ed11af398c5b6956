package gatt

import (
	"testing"

	"github.com/google/uuid"
)

func TestLookup(t *testing.T) {
	tests := []struct {
		char    uuid.UUID
		service uuid.UUID
		name    string
		props   Property
	}{
		{DiagLogOut, DiagnosticService, "LogOut", PropNotify},
		{DiagCommandIn, DiagnosticService, "CommandIn", PropWrite | PropWriteNoResponse},
		{DiagStatusOut, DiagnosticService, "StatusOut", PropRead | PropNotify},
		{ProvCredentialIn, ProvisioningService, "CredentialIn", PropWrite | PropWriteNoResponse},
		{FwControlIn, FirmwareService, "ControlIn", PropWrite | PropWriteNoResponse},
		{FwDataIn, FirmwareService, "DataIn", PropWrite | PropWriteNoResponse},
		{FwStatusOut, FirmwareService, "StatusOut", PropRead | PropNotify},
	}

	for _, tt := range tests {
		svc, c, ok := Lookup(tt.char)
		if !ok {
			t.Errorf("Lookup(%s) not found", tt.char)
			continue
		}
		if svc.UUID != tt.service {
			t.Errorf("Lookup(%s) service = %s, want %s", tt.char, svc.UUID, tt.service)
		}
		if c.Name != tt.name {
			t.Errorf("Lookup(%s) name = %s, want %s", tt.char, c.Name, tt.name)
		}
		if c.Properties != tt.props {
			t.Errorf("Lookup(%s) props = %s, want %s", tt.char, c.Properties, tt.props)
		}
	}
}

func TestLookupUnknown(t *testing.T) {
	if _, _, ok := Lookup(uuid.New()); ok {
		t.Error("Lookup() found a random UUID")
	}
}

func TestName(t *testing.T) {
	if got := Name(FwDataIn); got != "FirmwareTransfer.DataIn" {
		t.Errorf("Name(FwDataIn) = %q", got)
	}
	if got := Name(ProvisioningService); got != "Provisioning" {
		t.Errorf("Name(ProvisioningService) = %q", got)
	}
}

func TestPropertyString(t *testing.T) {
	if got := (PropRead | PropNotify).String(); got != "read|notify" {
		t.Errorf("String() = %q, want read|notify", got)
	}
}
