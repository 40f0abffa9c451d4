package clockbridge

import (
	"fmt"
	"time"

	"github.com/bft-labs/clockbridge/internal/app"
	"github.com/bft-labs/clockbridge/internal/domain"
)

// Config configures a bridge.
type Config struct {
	// Port opens this serial device directly. When empty the first device
	// matching VendorID or Manufacturer is used.
	Port         string
	Manufacturer string
	VendorID     string

	// RescanInterval is the initial delay between device scans while no
	// device is found. It doubles up to MaxRescanInterval.
	RescanInterval    time.Duration
	MaxRescanInterval time.Duration
	ReadTimeout       time.Duration

	// Terminator is appended to every command written. The controller
	// firmware expects none.
	Terminator string

	// MaxRetries discards a command after this many resends. Zero retries
	// forever.
	MaxRetries int

	// ResponseTimeout resends a command that gets no answer in time. Zero
	// waits forever.
	ResponseTimeout time.Duration

	// DeviceID is the remote device to configure once connected.
	DeviceID          string
	ConfigureFunction string
	ConfigureArg      string

	// InboxSize bounds notifications waiting for the event loop.
	InboxSize int
}

// SetDefaults fills zero durations and sizes.
func (c *Config) SetDefaults() {
	if c.RescanInterval <= 0 {
		c.RescanInterval = app.DefaultBackoffInitial
	}
	if c.MaxRescanInterval <= 0 {
		c.MaxRescanInterval = app.DefaultBackoffMax
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = app.DefaultReadTimeout
	}
	if c.InboxSize <= 0 {
		c.InboxSize = 64
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Port == "" && c.Manufacturer == "" && c.VendorID == "" {
		return fmt.Errorf("%w: port, manufacturer or vendor id is required", domain.ErrInvalidConfig)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("%w: max retries must not be negative", domain.ErrInvalidConfig)
	}
	if c.ResponseTimeout < 0 {
		return fmt.Errorf("%w: response timeout must not be negative", domain.ErrInvalidConfig)
	}
	if c.ConfigureFunction != "" && c.DeviceID == "" {
		return fmt.Errorf("%w: device id is required to call %s", domain.ErrInvalidConfig, c.ConfigureFunction)
	}
	return nil
}

func (c Config) bridgeConfig() app.BridgeConfig {
	return app.BridgeConfig{
		DeviceID:          c.DeviceID,
		ConfigureFunction: c.ConfigureFunction,
		ConfigureArg:      c.ConfigureArg,
		InboxSize:         c.InboxSize,
		Queue: app.QueueConfig{
			MaxRetries:      c.MaxRetries,
			ResponseTimeout: c.ResponseTimeout,
		},
		Driver: app.DriverConfig{
			Port:              c.Port,
			Manufacturer:      c.Manufacturer,
			VendorID:          c.VendorID,
			Terminator:        c.Terminator,
			RescanInterval:    c.RescanInterval,
			MaxRescanInterval: c.MaxRescanInterval,
			ReadTimeout:       c.ReadTimeout,
		},
	}
}
