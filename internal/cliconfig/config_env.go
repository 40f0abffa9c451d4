package cliconfig

import "os"

// EnvPrefix prefixes every environment variable read by ApplyEnvConfig.
const EnvPrefix = "CLOCKBRIDGE_"

// ApplyEnvConfig applies configuration from environment variables (CLOCKBRIDGE_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("port", os.Getenv(EnvPrefix+"PORT"), &cfg.Port)
	s.setString("manufacturer", os.Getenv(EnvPrefix+"MANUFACTURER"), &cfg.Manufacturer)
	s.setString("vendor-id", os.Getenv(EnvPrefix+"VENDOR_ID"), &cfg.VendorID)
	s.setString("serial-backend", os.Getenv(EnvPrefix+"SERIAL_BACKEND"), &cfg.SerialBackend)
	s.setString("device-dir", os.Getenv(EnvPrefix+"DEVICE_DIR"), &cfg.DeviceDir)
	s.setString("events", os.Getenv(EnvPrefix+"EVENTS"), &cfg.Events)
	s.setStringPtr("calls", lookupEnv("CALLS"), &cfg.Calls)
	s.setString("device-id", os.Getenv(EnvPrefix+"DEVICE_ID"), &cfg.DeviceID)
	s.setStringPtr("configure-function", lookupEnv("CONFIGURE_FUNCTION"), &cfg.ConfigureFunction)
	s.setStringPtr("configure-arg", lookupEnv("CONFIGURE_ARG"), &cfg.ConfigureArg)
	s.setStringPtr("terminator", lookupEnv("TERMINATOR"), &cfg.Terminator)
	s.setStringPtr("metrics-addr", lookupEnv("METRICS_ADDR"), &cfg.MetricsAddr)
	s.setString("log-level", os.Getenv(EnvPrefix+"LOG_LEVEL"), &cfg.LogLevel)
	s.setString("log-format", os.Getenv(EnvPrefix+"LOG_FORMAT"), &cfg.LogFormat)

	if err := s.setDuration("rescan-interval", os.Getenv(EnvPrefix+"RESCAN_INTERVAL"), &cfg.RescanInterval); err != nil {
		return err
	}
	if err := s.setDuration("max-rescan-interval", os.Getenv(EnvPrefix+"MAX_RESCAN_INTERVAL"), &cfg.MaxRescanInterval); err != nil {
		return err
	}
	if err := s.setDuration("response-timeout", os.Getenv(EnvPrefix+"RESPONSE_TIMEOUT"), &cfg.ResponseTimeout); err != nil {
		return err
	}

	if err := s.setIntFromString("max-retries", os.Getenv(EnvPrefix+"MAX_RETRIES"), &cfg.MaxRetries); err != nil {
		return err
	}

	return nil
}

// lookupEnv returns nil when the variable is unset, so an explicitly empty
// value can clear a default.
func lookupEnv(name string) *string {
	v, ok := os.LookupEnv(EnvPrefix + name)
	if !ok {
		return nil
	}
	return &v
}
