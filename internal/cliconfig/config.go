package cliconfig

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/bft-labs/clockbridge/internal/domain"
)

// Defaults for the clock controller deployment.
const (
	DefaultManufacturer      = "FTDI"
	DefaultVendorID          = "0403"
	DefaultDeviceDir         = "/dev"
	DefaultDeviceID          = "370038000f47343339383037"
	DefaultConfigureFunction = "gdRemoteCmd"
	DefaultConfigureArg      = "configure_clock"
)

// Config holds CLI configuration for clockbridge.
type Config struct {
	// Serial device selection.
	Port              string
	Manufacturer      string
	VendorID          string
	SerialBackend     string
	DeviceDir         string
	RescanInterval    time.Duration
	MaxRescanInterval time.Duration

	// Remote event source. Events is a file of JSON lines, "-" for stdin.
	// Calls receives remote function calls, "-" for stdout, empty to discard.
	Events            string
	Calls             string
	DeviceID          string
	ConfigureFunction string
	ConfigureArg      string

	// Command protocol.
	MaxRetries      int
	ResponseTimeout time.Duration
	Terminator      string

	MetricsAddr string
	LogLevel    string
	LogFormat   string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Manufacturer:      DefaultManufacturer,
		VendorID:          DefaultVendorID,
		SerialBackend:     "tarm",
		DeviceDir:         DefaultDeviceDir,
		RescanInterval:    2 * time.Second,
		MaxRescanInterval: 30 * time.Second,
		Events:            "-",
		Calls:             "-",
		DeviceID:          DefaultDeviceID,
		ConfigureFunction: DefaultConfigureFunction,
		ConfigureArg:      DefaultConfigureArg,
		LogLevel:          "info",
		LogFormat:         "console",
	}
}

var vendorIDPattern = regexp.MustCompile(`^[0-9a-fA-F]{4}$`)

// Validate checks the configuration for errors and normalises values.
// Every error matches domain.ErrInvalidConfig.
func (c *Config) Validate() error {
	if c.Port == "" && c.Manufacturer == "" && c.VendorID == "" {
		return invalid("port, manufacturer or vendor-id is required")
	}
	if c.VendorID != "" && !vendorIDPattern.MatchString(c.VendorID) {
		return invalid("vendor-id %q must be four hex digits", c.VendorID)
	}
	c.VendorID = strings.ToLower(c.VendorID)

	switch c.SerialBackend {
	case "", "tarm", "native":
	default:
		return invalid("unknown serial-backend %q", c.SerialBackend)
	}

	if c.RescanInterval <= 0 {
		return invalid("rescan interval must be positive")
	}
	if c.MaxRescanInterval < c.RescanInterval {
		c.MaxRescanInterval = c.RescanInterval
	}

	if c.Events == "" {
		return invalid("events source is required")
	}
	if c.ConfigureFunction != "" && c.DeviceID == "" {
		return invalid("device-id is required to call %s", c.ConfigureFunction)
	}

	if c.MaxRetries < 0 {
		return invalid("max-retries must not be negative")
	}
	if c.ResponseTimeout < 0 {
		return invalid("response-timeout must not be negative")
	}

	term, err := unescape(c.Terminator)
	if err != nil {
		return invalid("terminator %q: %v", c.Terminator, err)
	}
	c.Terminator = term

	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return invalid("log-level: %v", err)
	}
	switch c.LogFormat {
	case "", "console", "json":
	default:
		return invalid("unknown log-format %q", c.LogFormat)
	}

	return nil
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", domain.ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// unescape expands Go escape sequences such as \r\n, so a terminator can be
// given on the command line.
func unescape(s string) (string, error) {
	if !strings.Contains(s, `\`) {
		return s, nil
	}
	return strconv.Unquote(`"` + strings.ReplaceAll(s, `"`, `\"`) + `"`)
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

// newConfigSetter creates a new setter with the given changed flags map.
func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setStringPtr sets a string that may legitimately be empty, such as a
// terminator or an address that disables a feature.
func (s *configSetter) setStringPtr(flag string, value *string, dst *string) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setInt sets an int value if not negative and flag not changed.
func (s *configSetter) setInt(flag string, value *int, dst *int) {
	if value == nil || *value < 0 || s.changed[flag] {
		return
	}
	*dst = *value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i < 0 {
		return nil
	}
	*dst = i
	return nil
}
