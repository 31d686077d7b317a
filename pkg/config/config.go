// Package config provides configuration structures and loading logic for
// the failure-resolution policy and its ambient services.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/quellhq/quell/pkg/domain"
)

// Config holds the global configuration.
type Config struct {
	Policy    PolicyConfig    `yaml:"policy"`
	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// PolicyConfig holds the suppression policy configuration.
type PolicyConfig struct {
	// Mode is "escalate" (default) or "swallow-all".
	Mode string `yaml:"mode"`
	// Suppress lists failure definition identifiers whose warnings are
	// suppressed on exact match.
	Suppress []string `yaml:"suppress"`
	// RegoFile optionally points at a Rego module providing additional
	// suppression rules.
	RegoFile string `yaml:"rego_file"`
}

// LoggingConfig holds configuration for logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TelemetryConfig holds configuration for OpenTelemetry.
type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	Insecure     bool   `yaml:"insecure"`
}

// MetricsConfig holds configuration for the Prometheus listener.
type MetricsConfig struct {
	Address string `yaml:"address"`
}

// Load reads configuration from a file and applies environment variable
// overrides. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{
		// Defaults
		Policy: PolicyConfig{
			Mode: "escalate",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}

	if path != "" {
		//nolint:gosec // Config file path is controlled by the operator
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnvOverrides lets deployment environments override file settings.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("QUELL_POLICY_MODE"); v != "" {
		cfg.Policy.Mode = v
	}
	if v := os.Getenv("QUELL_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("QUELL_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("QUELL_OTLP_ENDPOINT"); v != "" {
		cfg.Telemetry.OTLPEndpoint = v
	}
	if v := os.Getenv("QUELL_METRICS_ADDRESS"); v != "" {
		cfg.Metrics.Address = v
	}
}

// Validate checks the configuration for inconsistencies. An empty
// suppress-list is valid: the policy then escalates every unmatched event.
func (c *Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Policy.Mode)) {
	case "", "escalate", "swallow-all":
	default:
		return fmt.Errorf("%w: policy.mode: invalid mode %q", domain.ErrConfigInvalid, c.Policy.Mode)
	}

	for i, id := range c.Policy.Suppress {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("%w: policy.suppress[%d]: empty definition identifier", domain.ErrConfigInvalid, i)
		}
	}

	switch strings.ToLower(strings.TrimSpace(c.Logging.Level)) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: logging.level: invalid level %q", domain.ErrConfigInvalid, c.Logging.Level)
	}

	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "", "json", "text":
	default:
		return fmt.Errorf("%w: logging.format: invalid format %q", domain.ErrConfigInvalid, c.Logging.Format)
	}

	return nil
}
