package discovery

import (
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/grandcat/zeroconf"

	"github.com/muurk/fieldlink/internal/gatt"
)

func entry(instance, host string, port int, v4, v6 []net.IP, text ...string) *zeroconf.ServiceEntry {
	e := zeroconf.NewServiceEntry(instance, ServiceType, ServiceDomain)
	e.HostName = host
	e.Port = port
	e.AddrIPv4 = v4
	e.AddrIPv6 = v6
	e.Text = text
	return e
}

func TestScanner_parseServiceEntry(t *testing.T) {
	scanner := NewScanner()

	tests := []struct {
		name     string
		entry    *zeroconf.ServiceEntry
		wantNil  bool
		wantName string
		wantIP   string
		wantPort int
		wantSvcs int
	}{
		{
			name: "provisioning device with IPv4",
			entry: entry("bench", "bench.local.", 8765,
				[]net.IP{net.ParseIP("192.168.4.16")}, nil,
				"name=fieldlink-bench",
				"svc="+gatt.DiagnosticService.String(),
				"svc="+gatt.FirmwareService.String(),
				"svc="+gatt.ProvisioningService.String()),
			wantName: "fieldlink-bench",
			wantIP:   "192.168.4.16",
			wantPort: 8765,
			wantSvcs: 3,
		},
		{
			name: "name falls back to instance",
			entry: entry("workbench", "workbench.local.", 8765,
				[]net.IP{net.ParseIP("10.0.0.5")}, nil),
			wantName: "workbench",
			wantIP:   "10.0.0.5",
			wantPort: 8765,
		},
		{
			name: "IPv6 only device",
			entry: entry("v6", "v6.local.", 9000,
				nil, []net.IP{net.ParseIP("fe80::1")}, "name=v6"),
			wantName: "v6",
			wantIP:   "fe80::1",
			wantPort: 9000,
		},
		{
			name: "prefers IPv4",
			entry: entry("dual", "dual.local.", 9000,
				[]net.IP{net.ParseIP("192.168.1.50")}, []net.IP{net.ParseIP("fe80::2")}, "name=dual"),
			wantName: "dual",
			wantIP:   "192.168.1.50",
			wantPort: 9000,
		},
		{
			name:    "no IP address",
			entry:   entry("none", "none.local.", 9000, nil, nil),
			wantNil: true,
		},
		{
			name:    "no port",
			entry:   entry("noport", "noport.local.", 0, []net.IP{net.ParseIP("192.168.1.1")}, nil),
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			device := scanner.parseServiceEntry(tt.entry)

			if tt.wantNil {
				if device != nil {
					t.Errorf("parseServiceEntry() = %v, want nil", device)
				}
				return
			}

			if device == nil {
				t.Fatal("parseServiceEntry() = nil, want non-nil device")
			}
			if device.Name != tt.wantName {
				t.Errorf("device.Name = %v, want %v", device.Name, tt.wantName)
			}
			if device.IP != tt.wantIP {
				t.Errorf("device.IP = %v, want %v", device.IP, tt.wantIP)
			}
			if device.Port != tt.wantPort {
				t.Errorf("device.Port = %v, want %v", device.Port, tt.wantPort)
			}
			if len(device.Services) != tt.wantSvcs {
				t.Errorf("len(device.Services) = %v, want %v", len(device.Services), tt.wantSvcs)
			}
			if time.Since(device.DiscoveredAt) > time.Second {
				t.Errorf("device.DiscoveredAt is not recent: %v", device.DiscoveredAt)
			}
		})
	}
}

func TestTXTRoundTrip(t *testing.T) {
	services := []uuid.UUID{gatt.DiagnosticService, gatt.FirmwareService}
	txt := append(TXTRecords("bench", services), "fw=1.2.0", "svc=not-a-uuid", "flag")

	name, got, meta := ParseTXT(txt)
	if name != "bench" {
		t.Errorf("name = %v, want bench", name)
	}
	if len(got) != 2 || got[0] != gatt.DiagnosticService || got[1] != gatt.FirmwareService {
		t.Errorf("services = %v, want %v", got, services)
	}
	if meta["fw"] != "1.2.0" {
		t.Errorf("meta[fw] = %q, want 1.2.0", meta["fw"])
	}
	if v, ok := meta["flag"]; !ok || v != "" {
		t.Errorf("meta[flag] = %q, %v, want empty and present", v, ok)
	}
}
