package config

import (
	"fmt"
	"time"
)

// ObservabilityConfig groups configuration related to logging and APM.
type ObservabilityConfig struct {
	// ServiceName identifies this service in logs and traces.
	// Always overwritten in LoadConfig.
	ServiceName string `koanf:"service_name" validate:"required"`

	// Environment labels telemetry (production, staging, development, local).
	Environment string `koanf:"environment" validate:"required"`

	Logging  LoggingConfig  `koanf:"logging" validate:"required"`
	NewRelic NewRelicConfig `koanf:"new_relic"`
}

// LoggingConfig holds application logging configuration.
type LoggingConfig struct {
	// Level is the verbosity threshold (debug/info/warn/error).
	Level string `koanf:"level" validate:"required"`

	// Format selects "json" or "console" output.
	Format string `koanf:"format" validate:"required"`

	// SlowQueryThreshold logs a warning for queries that run longer than
	// this. Parsed from strings like "100ms" or "1s"; zero turns it off.
	SlowQueryThreshold time.Duration `koanf:"slow_query_threshold"`
}

// NewRelicConfig holds configuration for New Relic APM.
//
// An empty LicenseKey disables the agent entirely.
type NewRelicConfig struct {
	LicenseKey                string `koanf:"license_key"`
	AppLogForwardingEnabled   bool   `koanf:"app_log_forwarding_enabled"`
	DistributedTracingEnabled bool   `koanf:"distributed_tracing_enabled"`
	DebugLogging              bool   `koanf:"debug_logging"`
}

// Enabled reports whether a license key is configured.
func (c NewRelicConfig) Enabled() bool {
	return c.LicenseKey != ""
}

// DefaultObservabilityConfig provides the defaults used when nothing is set.
func DefaultObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		ServiceName: "recordstore",
		Environment: "development",
		Logging: LoggingConfig{
			Level:              "info",
			Format:             "json",
			SlowQueryThreshold: 100 * time.Millisecond,
		},
		NewRelic: NewRelicConfig{
			AppLogForwardingEnabled:   true,
			DistributedTracingEnabled: true,
			DebugLogging:              false, // mixed log formats otherwise
		},
	}
}

// Validate applies rules that go beyond struct tags.
func (c *ObservabilityConfig) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("service_name is required")
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid logging level: %s (must be one of: debug, info, warn, error)", c.Logging.Level)
	}

	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("invalid logging format: %s (must be json or console)", c.Logging.Format)
	}

	if c.Logging.SlowQueryThreshold < 0 {
		return fmt.Errorf("logging slow_query_threshold must be non-negative")
	}

	return nil
}

// GetLogLevel returns the effective log level to use at runtime.
//
// An unset level defaults to "info" in production and "debug" in development.
func (c *ObservabilityConfig) GetLogLevel() string {
	switch c.Environment {
	case "production":
		if c.Logging.Level == "" {
			return "info"
		}
	case "development":
		if c.Logging.Level == "" {
			return "debug"
		}
	}
	return c.Logging.Level
}

// IsProduction reports whether the application is running in production mode.
func (c *ObservabilityConfig) IsProduction() bool {
	return c.Environment == "production"
}
