package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file read when --config is not given.
const DefaultPath = "sitecheck.yml"

// Duration is a time.Duration that unmarshals from a YAML string like "30s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: invalid duration %q: %w", value.Line, s, err)
	}
	d.Duration = dur
	return nil
}

// ProbeConfig controls how each target is probed and how many at once.
type ProbeConfig struct {
	Timeout   Duration `yaml:"timeout"`
	Attempts  int      `yaml:"attempts"`
	BatchSize int      `yaml:"batch_size"`
	Rate      float64  `yaml:"rate"`
	UserAgent string   `yaml:"user_agent"`
}

// ReportConfig controls the end-of-run output.
type ReportConfig struct {
	Output      string `yaml:"output"`
	TableLimit  int    `yaml:"table_limit"`
	Interactive bool   `yaml:"interactive"`
}

// WebhookConfig holds run-completed webhook settings.
type WebhookConfig struct {
	URL     string   `yaml:"url"`
	Timeout Duration `yaml:"timeout"`
}

// AlertsConfig holds all alert configuration.
type AlertsConfig struct {
	Webhook WebhookConfig `yaml:"webhook"`
}

// StorageConfig holds run history settings. An empty Path disables history.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// MetricsConfig holds metrics export settings.
type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// Config is the root application configuration.
type Config struct {
	Probe   ProbeConfig   `yaml:"probe"`
	Report  ReportConfig  `yaml:"report"`
	Storage StorageConfig `yaml:"storage"`
	Alerts  AlertsConfig  `yaml:"alerts"`
	Metrics MetricsConfig `yaml:"metrics"`
	Server  ServerConfig  `yaml:"server"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Probe: ProbeConfig{
			Timeout:  Duration{time.Second},
			Attempts: 1,
		},
		Report: ReportConfig{
			Output:      "site_code_lookup.json",
			TableLimit:  100,
			Interactive: true,
		},
		Alerts: AlertsConfig{
			Webhook: WebhookConfig{Timeout: Duration{10 * time.Second}},
		},
		Server: ServerConfig{Address: ":8080"},
	}
}

// Load reads, parses, and validates the config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Unmarshal into a raw intermediate so absent keys keep their defaults.
	type rawConfig struct {
		Probe struct {
			Timeout   *Duration `yaml:"timeout"`
			Attempts  *int      `yaml:"attempts"`
			BatchSize *int      `yaml:"batch_size"`
			Rate      *float64  `yaml:"rate"`
			UserAgent string    `yaml:"user_agent"`
		} `yaml:"probe"`
		Report struct {
			Output      string `yaml:"output"`
			TableLimit  *int   `yaml:"table_limit"`
			Interactive *bool  `yaml:"interactive"`
		} `yaml:"report"`
		Storage StorageConfig `yaml:"storage"`
		Alerts  struct {
			Webhook struct {
				URL     string    `yaml:"url"`
				Timeout *Duration `yaml:"timeout"`
			} `yaml:"webhook"`
		} `yaml:"alerts"`
		Metrics MetricsConfig `yaml:"metrics"`
		Server  ServerConfig  `yaml:"server"`
	}

	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg := Default()

	if raw.Probe.Timeout != nil {
		cfg.Probe.Timeout = *raw.Probe.Timeout
	}
	if raw.Probe.Attempts != nil {
		cfg.Probe.Attempts = *raw.Probe.Attempts
	}
	if raw.Probe.BatchSize != nil {
		cfg.Probe.BatchSize = *raw.Probe.BatchSize
	}
	if raw.Probe.Rate != nil {
		cfg.Probe.Rate = *raw.Probe.Rate
	}
	cfg.Probe.UserAgent = raw.Probe.UserAgent

	if raw.Report.Output != "" {
		cfg.Report.Output = raw.Report.Output
	}
	if raw.Report.TableLimit != nil {
		cfg.Report.TableLimit = *raw.Report.TableLimit
	}
	if raw.Report.Interactive != nil {
		cfg.Report.Interactive = *raw.Report.Interactive
	}

	cfg.Storage = raw.Storage
	cfg.Metrics = raw.Metrics

	cfg.Alerts.Webhook.URL = raw.Alerts.Webhook.URL
	if raw.Alerts.Webhook.Timeout != nil {
		cfg.Alerts.Webhook.Timeout = *raw.Alerts.Webhook.Timeout
	}

	if raw.Server.Address != "" {
		cfg.Server.Address = raw.Server.Address
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads path, falling back to Default when the file does not
// exist and the caller did not ask for it explicitly.
func LoadOrDefault(path string, explicit bool) (*Config, error) {
	cfg, err := Load(path)
	if err != nil && !explicit && errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Probe.Timeout.Duration <= 0 {
		return fmt.Errorf("probe: timeout must be positive, got %s", c.Probe.Timeout)
	}
	if c.Probe.Attempts < 1 {
		return fmt.Errorf("probe: attempts must be at least 1, got %d", c.Probe.Attempts)
	}
	if c.Probe.BatchSize < 0 {
		return fmt.Errorf("probe: batch_size must not be negative, got %d", c.Probe.BatchSize)
	}
	if c.Probe.Rate < 0 {
		return fmt.Errorf("probe: rate must not be negative, got %g", c.Probe.Rate)
	}
	if c.Report.TableLimit < 0 {
		return fmt.Errorf("report: table_limit must not be negative, got %d", c.Report.TableLimit)
	}
	if c.Report.Output == "" {
		return errors.New("report: output is required")
	}
	return nil
}
