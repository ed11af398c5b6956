package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func TestGetConfigDir(t *testing.T) {
	configDir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() error = %v", err)
	}

	if configDir == "" {
		t.Error("GetConfigDir() returned empty string")
	}

	if !strings.Contains(configDir, "fieldlink") {
		t.Errorf("GetConfigDir() = %v, should contain 'fieldlink'", configDir)
	}

	switch runtime.GOOS {
	case "windows":
		if !strings.Contains(configDir, "AppData") && !strings.Contains(configDir, "Local") {
			t.Errorf("Windows config dir should contain 'AppData' or 'Local', got: %v", configDir)
		}
	case "darwin":
		if !strings.Contains(configDir, ".config") {
			t.Errorf("macOS config dir should contain '.config', got: %v", configDir)
		}
	}

	t.Logf("Config directory: %s", configDir)
}

func TestGetConfigDirHonoursXDG(t *testing.T) {
	if runtime.GOOS == "windows" || runtime.GOOS == "darwin" {
		t.Skip("XDG_CONFIG_HOME only applies on Linux and other Unix systems")
	}

	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	configDir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() error = %v", err)
	}
	if configDir != filepath.Join(tmpDir, "fieldlink") {
		t.Errorf("GetConfigDir() = %v, want %v", configDir, filepath.Join(tmpDir, "fieldlink"))
	}
}

func TestGetRegistryPath(t *testing.T) {
	registryPath, err := GetRegistryPath()
	if err != nil {
		t.Fatalf("GetRegistryPath() error = %v", err)
	}

	if filepath.Base(registryPath) != "devices.yaml" {
		t.Errorf("GetRegistryPath() should end with 'devices.yaml', got: %v", registryPath)
	}
}

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry("/tmp/devices.yaml")

	if reg.Version != 1 {
		t.Errorf("NewRegistry().Version = %v, want 1", reg.Version)
	}

	if reg.Devices == nil {
		t.Error("NewRegistry().Devices should not be nil")
	}

	if reg.Path() != "/tmp/devices.yaml" {
		t.Errorf("Path() = %v, want /tmp/devices.yaml", reg.Path())
	}
}

func TestRegistryRemember(t *testing.T) {
	reg := NewRegistry("")

	before := time.Now()
	first := reg.Remember("porch", "192.168.1.40:8470")
	after := time.Now()

	if first.Addr != "192.168.1.40:8470" {
		t.Errorf("Addr = %v, want 192.168.1.40:8470", first.Addr)
	}
	if first.LastSeen.Before(before) || first.LastSeen.After(after) {
		t.Errorf("LastSeen = %v, should be between %v and %v", first.LastSeen, before, after)
	}

	// Same name updates the existing entry
	second := reg.Remember("porch", "192.168.1.41:8470")
	if first != second {
		t.Error("Remember() should return same instance for same name")
	}
	if second.Addr != "192.168.1.41:8470" {
		t.Errorf("Addr = %v, want updated address", second.Addr)
	}
}

func TestRegistryMarkProvisioned(t *testing.T) {
	reg := NewRegistry("")

	// Unknown devices are ignored
	reg.MarkProvisioned("ghost", "HomeNet")
	if reg.Get("ghost") != nil {
		t.Error("MarkProvisioned() should not create entries")
	}

	reg.Remember("porch", "10.0.0.2:8470")
	reg.MarkProvisioned("porch", "HomeNet")

	d := reg.Get("porch")
	if d.SSID != "HomeNet" {
		t.Errorf("SSID = %v, want HomeNet", d.SSID)
	}
	if d.ProvisionedAt.IsZero() {
		t.Error("ProvisionedAt should be set")
	}
}

func TestRegistryResolve(t *testing.T) {
	reg := NewRegistry("")
	reg.Remember("porch", "10.0.0.2:8470")
	reg.Devices["blank"] = &KnownDevice{}

	tests := []struct {
		target string
		want   string
	}{
		{"porch", "10.0.0.2:8470"},
		{"10.0.0.9:8470", "10.0.0.9:8470"},
		{"blank", "blank"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			if got := reg.Resolve(tt.target); got != tt.want {
				t.Errorf("Resolve(%q) = %v, want %v", tt.target, got, tt.want)
			}
		})
	}
}

func TestRegistryNamesSorted(t *testing.T) {
	reg := NewRegistry("")
	reg.Remember("zeta", "a:1")
	reg.Remember("alpha", "b:1")
	reg.Remember("mid", "c:1")

	got := strings.Join(reg.Names(), ",")
	if got != "alpha,mid,zeta" {
		t.Errorf("Names() = %v, want alpha,mid,zeta", got)
	}

	reg.Forget("mid")
	if reg.Get("mid") != nil {
		t.Error("Forget() should remove the entry")
	}
}

func TestRegistrySaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "devices.yaml")

	reg := NewRegistry(path)
	reg.Remember("porch", "10.0.0.2:8470")
	reg.MarkProvisioned("porch", "HomeNet")

	if err := reg.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read saved registry: %v", err)
	}
	if !strings.HasPrefix(string(data), "# Fieldlink device registry") {
		t.Error("Saved registry should start with the header comment")
	}
	if strings.Contains(string(data), "password") && !strings.Contains(string(data), "passwords are NEVER") {
		t.Error("Saved registry must not contain passwords")
	}

	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("Temporary file should be renamed away")
	}

	loaded, err := LoadRegistryFrom(path)
	if err != nil {
		t.Fatalf("LoadRegistryFrom() error = %v", err)
	}

	d := loaded.Get("porch")
	if d == nil {
		t.Fatal("Device should exist in loaded registry")
	}
	if d.Addr != "10.0.0.2:8470" {
		t.Errorf("Loaded addr = %v, want 10.0.0.2:8470", d.Addr)
	}
	if d.SSID != "HomeNet" {
		t.Errorf("Loaded ssid = %v, want HomeNet", d.SSID)
	}
	if loaded.Path() != path {
		t.Errorf("Loaded Path() = %v, want %v", loaded.Path(), path)
	}
}

func TestLoadRegistryMissingFile(t *testing.T) {
	reg, err := LoadRegistryFrom(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadRegistryFrom() error = %v", err)
	}
	if len(reg.Devices) != 0 {
		t.Errorf("Missing file should give an empty registry, got %d devices", len(reg.Devices))
	}
}

func TestLoadRegistryRejectsBadFiles(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"wrong version", "version: 7\n"},
		{"not yaml", "version: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "devices.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0600); err != nil {
				t.Fatalf("Failed to write test registry: %v", err)
			}
			if _, err := LoadRegistryFrom(path); err == nil {
				t.Error("LoadRegistryFrom() should fail")
			}
		})
	}
}

func BenchmarkGetConfigDir(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = GetConfigDir()
	}
}

func BenchmarkRemember(b *testing.B) {
	reg := NewRegistry("")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		reg.Remember("porch", "10.0.0.2:8470")
	}
}
