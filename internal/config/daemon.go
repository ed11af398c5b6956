package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Keys understood by the device daemon. Each is also a cobra flag name and,
// upper-cased with dashes turned into underscores, a FIELDLINK_* variable.
const (
	KeyListen         = "listen"
	KeyStore          = "store"
	KeyFirmwareDir    = "firmware-dir"
	KeyName           = "name"
	KeyLogLevel       = "log-level"
	KeyTranscript     = "transcript"
	KeyStaticAddress  = "static-address"
	KeyMDNS           = "mdns"
	KeyEphemeral      = "ephemeral"
	KeyStatusInterval = "status-interval"
	KeyResetGrace     = "reset-grace"
	KeySuccessGrace   = "success-grace"
)

const (
	daemonConfigName = "fieldlink-device"
	envPrefix        = "FIELDLINK"

	// DefaultListen is the link endpoint address
	DefaultListen = ":8470"
)

// Daemon holds the settings of one fieldlink-device process
type Daemon struct {
	Listen         string        `mapstructure:"listen"`
	Store          string        `mapstructure:"store"`
	FirmwareDir    string        `mapstructure:"firmware-dir"`
	Name           string        `mapstructure:"name"`
	LogLevel       string        `mapstructure:"log-level"`
	Transcript     string        `mapstructure:"transcript"`
	StaticAddress  string        `mapstructure:"static-address"`
	MDNS           bool          `mapstructure:"mdns"`
	Ephemeral      bool          `mapstructure:"ephemeral"`
	StatusInterval time.Duration `mapstructure:"status-interval"`
	ResetGrace     time.Duration `mapstructure:"reset-grace"`
	SuccessGrace   time.Duration `mapstructure:"success-grace"`

	// ConfigFile is the file the settings were read from, if any
	ConfigFile string `mapstructure:"-"`
}

// DefaultName derives a device name from the host name
func DefaultName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "fieldlink"
	}
	if i := strings.IndexByte(host, '.'); i > 0 {
		host = host[:i]
	}
	return "fieldlink-" + host
}

// SetDaemonDefaults registers default values on v. The store and firmware
// locations sit under dir.
func SetDaemonDefaults(v *viper.Viper, dir string) {
	v.SetDefault(KeyListen, DefaultListen)
	v.SetDefault(KeyStore, filepath.Join(dir, "store.yaml"))
	v.SetDefault(KeyFirmwareDir, filepath.Join(dir, "firmware"))
	v.SetDefault(KeyName, DefaultName())
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyTranscript, "")
	v.SetDefault(KeyStaticAddress, "")
	v.SetDefault(KeyMDNS, true)
	v.SetDefault(KeyEphemeral, false)
	v.SetDefault(KeyStatusInterval, 10*time.Second)
	v.SetDefault(KeyResetGrace, 2*time.Second)
	v.SetDefault(KeySuccessGrace, 1500*time.Millisecond)
}

// LoadDaemon resolves the daemon configuration. path names an explicit
// config file; when empty, fieldlink-device.yaml is searched for in the
// config directory and the working directory, and its absence is not an
// error. flags, when non-nil, override every other source for the flags
// the user actually set.
func LoadDaemon(path string, flags *pflag.FlagSet) (*Daemon, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return nil, err
	}

	v := viper.New()
	SetDaemonDefaults(v, dir)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("failed to bind flags: %w", err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(daemonConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(dir)
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Daemon
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.ConfigFile = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the daemon cannot run with
func (d *Daemon) Validate() error {
	if d.Listen == "" {
		return fmt.Errorf("%s must not be empty", KeyListen)
	}
	if d.Name == "" {
		return fmt.Errorf("%s must not be empty", KeyName)
	}
	if !d.Ephemeral && d.Store == "" {
		return fmt.Errorf("%s must be set unless %s is enabled", KeyStore, KeyEphemeral)
	}
	if d.FirmwareDir == "" {
		return fmt.Errorf("%s must not be empty", KeyFirmwareDir)
	}
	for key, dur := range map[string]time.Duration{
		KeyStatusInterval: d.StatusInterval,
		KeyResetGrace:     d.ResetGrace,
		KeySuccessGrace:   d.SuccessGrace,
	} {
		if dur < 0 {
			return fmt.Errorf("%s must not be negative", key)
		}
	}
	if d.StatusInterval == 0 {
		return fmt.Errorf("%s must be positive", KeyStatusInterval)
	}
	return nil
}

// PrepareDirs creates the directories holding the store and staged firmware
func (d *Daemon) PrepareDirs() error {
	if !d.Ephemeral {
		if err := ensureDir(filepath.Dir(d.Store)); err != nil {
			return err
		}
	}
	return ensureDir(d.FirmwareDir)
}
