package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
// Pointer fields distinguish an explicit empty or zero value from an absent key.
type FileConfig struct {
	Port              string  `toml:"port"`
	Manufacturer      string  `toml:"manufacturer"`
	VendorID          string  `toml:"vendor_id"`
	SerialBackend     string  `toml:"serial_backend"`
	DeviceDir         string  `toml:"device_dir"`
	RescanInterval    string  `toml:"rescan_interval"`
	MaxRescanInterval string  `toml:"max_rescan_interval"`
	Events            string  `toml:"events"`
	Calls             *string `toml:"calls"`
	DeviceID          string  `toml:"device_id"`
	ConfigureFunction *string `toml:"configure_function"`
	ConfigureArg      *string `toml:"configure_arg"`
	MaxRetries        *int    `toml:"max_retries"`
	ResponseTimeout   string  `toml:"response_timeout"`
	Terminator        *string `toml:"terminator"`
	MetricsAddr       *string `toml:"metrics_addr"`
	LogLevel          string  `toml:"log_level"`
	LogFormat         string  `toml:"log_format"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.clockbridge/config.toml if user home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".clockbridge", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("port", fc.Port, &cfg.Port)
	s.setString("manufacturer", fc.Manufacturer, &cfg.Manufacturer)
	s.setString("vendor-id", fc.VendorID, &cfg.VendorID)
	s.setString("serial-backend", fc.SerialBackend, &cfg.SerialBackend)
	s.setString("device-dir", fc.DeviceDir, &cfg.DeviceDir)
	s.setString("events", fc.Events, &cfg.Events)
	s.setStringPtr("calls", fc.Calls, &cfg.Calls)
	s.setString("device-id", fc.DeviceID, &cfg.DeviceID)
	s.setStringPtr("configure-function", fc.ConfigureFunction, &cfg.ConfigureFunction)
	s.setStringPtr("configure-arg", fc.ConfigureArg, &cfg.ConfigureArg)
	s.setStringPtr("terminator", fc.Terminator, &cfg.Terminator)
	s.setStringPtr("metrics-addr", fc.MetricsAddr, &cfg.MetricsAddr)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)
	s.setString("log-format", fc.LogFormat, &cfg.LogFormat)

	if err := s.setDuration("rescan-interval", fc.RescanInterval, &cfg.RescanInterval); err != nil {
		return err
	}
	if err := s.setDuration("max-rescan-interval", fc.MaxRescanInterval, &cfg.MaxRescanInterval); err != nil {
		return err
	}
	if err := s.setDuration("response-timeout", fc.ResponseTimeout, &cfg.ResponseTimeout); err != nil {
		return err
	}

	s.setInt("max-retries", fc.MaxRetries, &cfg.MaxRetries)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
