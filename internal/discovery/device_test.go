package discovery

import (
	"testing"

	"github.com/google/uuid"

	"github.com/muurk/fieldlink/internal/gatt"
)

func TestDevice_String(t *testing.T) {
	device := &Device{
		Name:     "bench",
		IP:       "192.168.4.16",
		Port:     8765,
		Services: []uuid.UUID{gatt.DiagnosticService, gatt.ProvisioningService},
	}

	expected := "bench at 192.168.4.16:8765 [Diagnostic, Provisioning]"
	if device.String() != expected {
		t.Errorf("Device.String() = %v, want %v", device.String(), expected)
	}
}

func TestDevice_Addr(t *testing.T) {
	tests := []struct {
		name     string
		device   *Device
		expected string
	}{
		{"ipv4", &Device{IP: "192.168.4.16", Port: 8765}, "192.168.4.16:8765"},
		{"ipv6", &Device{IP: "fe80::1", Port: 9000}, "[fe80::1]:9000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.device.Addr(); got != tt.expected {
				t.Errorf("Device.Addr() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestDevice_Provisioning(t *testing.T) {
	d := &Device{Services: []uuid.UUID{gatt.DiagnosticService, gatt.FirmwareService}}
	if d.Provisioning() {
		t.Error("Provisioning() = true, want false")
	}
	d.Services = append(d.Services, gatt.ProvisioningService)
	if !d.Provisioning() {
		t.Error("Provisioning() = false, want true")
	}
}

func TestDevice_GetMetadata(t *testing.T) {
	d := &Device{}
	if got := d.GetMetadata("fw"); got != "" {
		t.Errorf("GetMetadata() = %q, want empty", got)
	}
	d.Metadata = map[string]string{"fw": "1.0"}
	if got := d.GetMetadata("fw"); got != "1.0" {
		t.Errorf("GetMetadata() = %q, want 1.0", got)
	}
}
