package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

// isolate points the config directory at a fresh temp dir and clears any
// FIELDLINK_* variables the environment might carry.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("LOCALAPPDATA", dir)
	t.Setenv("HOME", dir)
	for _, key := range []string{"LISTEN", "STORE", "FIRMWARE_DIR", "NAME", "MDNS", "STATUS_INTERVAL"} {
		t.Setenv("FIELDLINK_"+key, "")
		os.Unsetenv("FIELDLINK_" + key)
	}
	return dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}

func TestLoadDaemonDefaults(t *testing.T) {
	isolate(t)

	cfg, err := LoadDaemon("", nil)
	if err != nil {
		t.Fatalf("LoadDaemon() error = %v", err)
	}

	if cfg.Listen != DefaultListen {
		t.Errorf("Listen = %v, want %v", cfg.Listen, DefaultListen)
	}
	if cfg.StatusInterval != 10*time.Second {
		t.Errorf("StatusInterval = %v, want 10s", cfg.StatusInterval)
	}
	if cfg.ResetGrace != 2*time.Second {
		t.Errorf("ResetGrace = %v, want 2s", cfg.ResetGrace)
	}
	if cfg.SuccessGrace != 1500*time.Millisecond {
		t.Errorf("SuccessGrace = %v, want 1.5s", cfg.SuccessGrace)
	}
	if !cfg.MDNS {
		t.Error("MDNS should default to true")
	}
	if cfg.Ephemeral {
		t.Error("Ephemeral should default to false")
	}
	if filepath.Base(cfg.Store) != "store.yaml" {
		t.Errorf("Store = %v, want a store.yaml path", cfg.Store)
	}
	if cfg.Name == "" {
		t.Error("Name should have a default")
	}
	if cfg.ConfigFile != "" {
		t.Errorf("ConfigFile = %v, want empty when no file exists", cfg.ConfigFile)
	}
}

func TestLoadDaemonFromFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "custom.yaml")
	writeFile(t, path, `listen: "127.0.0.1:9000"
name: porch-sensor
mdns: false
status-interval: 3s
firmware-dir: /var/lib/fieldlink/fw
`)

	cfg, err := LoadDaemon(path, nil)
	if err != nil {
		t.Fatalf("LoadDaemon() error = %v", err)
	}

	if cfg.Listen != "127.0.0.1:9000" {
		t.Errorf("Listen = %v, want 127.0.0.1:9000", cfg.Listen)
	}
	if cfg.Name != "porch-sensor" {
		t.Errorf("Name = %v, want porch-sensor", cfg.Name)
	}
	if cfg.MDNS {
		t.Error("MDNS should be disabled by the file")
	}
	if cfg.StatusInterval != 3*time.Second {
		t.Errorf("StatusInterval = %v, want 3s", cfg.StatusInterval)
	}
	if cfg.FirmwareDir != "/var/lib/fieldlink/fw" {
		t.Errorf("FirmwareDir = %v, want /var/lib/fieldlink/fw", cfg.FirmwareDir)
	}
	if cfg.ConfigFile != path {
		t.Errorf("ConfigFile = %v, want %v", cfg.ConfigFile, path)
	}
}

func TestLoadDaemonPrecedence(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "custom.yaml")
	writeFile(t, path, `listen: "127.0.0.1:9000"
name: from-file
`)

	t.Setenv("FIELDLINK_NAME", "from-env")
	t.Setenv("FIELDLINK_STATUS_INTERVAL", "4s")

	flags := pflag.NewFlagSet("run", pflag.ContinueOnError)
	flags.String(KeyListen, DefaultListen, "")
	flags.String(KeyName, "", "")
	if err := flags.Parse([]string{"--listen", "127.0.0.1:9100"}); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	cfg, err := LoadDaemon(path, flags)
	if err != nil {
		t.Fatalf("LoadDaemon() error = %v", err)
	}

	// Flag beats file
	if cfg.Listen != "127.0.0.1:9100" {
		t.Errorf("Listen = %v, want flag value", cfg.Listen)
	}
	// Env beats file when the flag was not set
	if cfg.Name != "from-env" {
		t.Errorf("Name = %v, want env value", cfg.Name)
	}
	if cfg.StatusInterval != 4*time.Second {
		t.Errorf("StatusInterval = %v, want 4s", cfg.StatusInterval)
	}
}

func TestLoadDaemonMissingExplicitFile(t *testing.T) {
	dir := isolate(t)

	if _, err := LoadDaemon(filepath.Join(dir, "nope.yaml"), nil); err == nil {
		t.Error("LoadDaemon() should fail when an explicit file is missing")
	}
}

func TestDaemonValidate(t *testing.T) {
	valid := func() Daemon {
		return Daemon{
			Listen:         ":8470",
			Name:           "dev",
			Store:          "/tmp/store.yaml",
			FirmwareDir:    "/tmp/fw",
			StatusInterval: time.Second,
		}
	}

	tests := []struct {
		name    string
		mutate  func(d *Daemon)
		wantErr bool
	}{
		{"valid", func(d *Daemon) {}, false},
		{"empty listen", func(d *Daemon) { d.Listen = "" }, true},
		{"empty name", func(d *Daemon) { d.Name = "" }, true},
		{"no store", func(d *Daemon) { d.Store = "" }, true},
		{"no store but ephemeral", func(d *Daemon) { d.Store = ""; d.Ephemeral = true }, false},
		{"no firmware dir", func(d *Daemon) { d.FirmwareDir = "" }, true},
		{"negative grace", func(d *Daemon) { d.ResetGrace = -time.Second }, true},
		{"zero status interval", func(d *Daemon) { d.StatusInterval = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := valid()
			tt.mutate(&d)
			err := d.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDaemonPrepareDirs(t *testing.T) {
	dir := t.TempDir()
	d := Daemon{
		Store:       filepath.Join(dir, "state", "store.yaml"),
		FirmwareDir: filepath.Join(dir, "fw"),
	}

	if err := d.PrepareDirs(); err != nil {
		t.Fatalf("PrepareDirs() error = %v", err)
	}
	for _, p := range []string{filepath.Join(dir, "state"), filepath.Join(dir, "fw")} {
		if info, err := os.Stat(p); err != nil || !info.IsDir() {
			t.Errorf("%s should be a directory", p)
		}
	}
}
