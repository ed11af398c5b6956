package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

const registryVersion = 1

// Mutex for thread-safe file operations
var fileMutex sync.Mutex

// Registry is the installer's record of devices it has seen.
type Registry struct {
	Version int                     `yaml:"version"`
	Devices map[string]*KnownDevice `yaml:"devices,omitempty"` // Keyed by advertised device name

	path string
}

// KnownDevice is what the installer remembers about one device.
type KnownDevice struct {
	Addr          string    `yaml:"addr"`                     // Last known host:port
	LastSeen      time.Time `yaml:"last_seen,omitempty"`      // Last discovery/connection time
	ProvisionedAt time.Time `yaml:"provisioned_at,omitempty"` // Set after a successful provision
	SSID          string    `yaml:"ssid,omitempty"`           // Network the device was given
}

// NewRegistry creates an empty registry that saves to path.
func NewRegistry(path string) *Registry {
	return &Registry{
		Version: registryVersion,
		Devices: make(map[string]*KnownDevice),
		path:    path,
	}
}

// LoadRegistry loads the registry from the default location.
func LoadRegistry() (*Registry, error) {
	path, err := GetRegistryPath()
	if err != nil {
		return nil, fmt.Errorf("failed to get registry path: %w", err)
	}
	return LoadRegistryFrom(path)
}

// LoadRegistryFrom loads the registry stored at path. A missing file
// yields an empty registry.
func LoadRegistryFrom(path string) (*Registry, error) {
	fileMutex.Lock()
	defer fileMutex.Unlock()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return NewRegistry(path), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read registry file: %w", err)
	}

	var registry Registry
	if err := yaml.Unmarshal(data, &registry); err != nil {
		return nil, fmt.Errorf("failed to parse registry file: %w", err)
	}

	if registry.Version != registryVersion {
		return nil, fmt.Errorf("unsupported registry version: %d (expected %d)", registry.Version, registryVersion)
	}

	if registry.Devices == nil {
		registry.Devices = make(map[string]*KnownDevice)
	}
	registry.path = path

	return &registry, nil
}

// Path returns the file the registry saves to.
func (r *Registry) Path() string {
	return r.path
}

// Save writes the registry to disk atomically.
func (r *Registry) Save() error {
	fileMutex.Lock()
	defer fileMutex.Unlock()

	if err := ensureDir(filepath.Dir(r.path)); err != nil {
		return fmt.Errorf("failed to ensure registry directory exists: %w", err)
	}

	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}

	header := []byte(`# Fieldlink device registry
# Devices found by 'fieldlink scan' or addressed by the installer.
#
# Security Note: network passwords are NEVER stored in this file.

`)
	data = append(header, data...)

	tmpPath := r.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary registry file: %w", err)
	}

	if err := os.Rename(tmpPath, r.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save registry file: %w", err)
	}

	return nil
}

// Get returns the entry for name, or nil.
func (r *Registry) Get(name string) *KnownDevice {
	return r.Devices[name]
}

// Remember records that name was reachable at addr just now.
func (r *Registry) Remember(name, addr string) *KnownDevice {
	if r.Devices == nil {
		r.Devices = make(map[string]*KnownDevice)
	}

	d, ok := r.Devices[name]
	if !ok {
		d = &KnownDevice{}
		r.Devices[name] = d
	}
	d.Addr = addr
	d.LastSeen = time.Now()
	return d
}

// MarkProvisioned records a successful provision of name onto ssid.
func (r *Registry) MarkProvisioned(name, ssid string) {
	d := r.Devices[name]
	if d == nil {
		return
	}
	d.ProvisionedAt = time.Now()
	d.SSID = ssid
}

// Forget drops name from the registry.
func (r *Registry) Forget(name string) {
	delete(r.Devices, name)
}

// Names returns the registered device names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.Devices))
	for name := range r.Devices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve turns a --device argument into a host:port. A registered name
// maps to its last known address; anything else is returned unchanged.
func (r *Registry) Resolve(target string) string {
	if d, ok := r.Devices[target]; ok && d.Addr != "" {
		return d.Addr
	}
	return target
}
