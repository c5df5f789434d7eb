// Package config loads and validates ebpfmonitor's YAML configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mackeh/ebpfmonitor/internal/monitor"
)

// Config is the top-level configuration document.
type Config struct {
	App       AppConfig                    `yaml:"app"`
	Logging   LoggingConfig                `yaml:"logging"`
	Output    OutputConfig                 `yaml:"output"`
	Telemetry TelemetryConfig              `yaml:"telemetry"`
	Monitors  map[string]monitor.RawConfig `yaml:"monitors"`
}

// TelemetryConfig controls the OpenTelemetry tracer described in the
// ambient stack: disabled by default since stdout-exported spans are
// mainly a debugging aid, not something a production daemon should pay
// for by default.
type TelemetryConfig struct {
	Enabled bool `yaml:"enabled"`
}

// AppConfig carries application identity and runtime mode.
type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Debug       bool   `yaml:"debug"`
}

// LoggingConfig controls the ambient logger.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// OutputConfig holds the global knobs the OutputController is built from.
type OutputConfig struct {
	BufferSize          int     `yaml:"buffer_size"`
	BatchSize           int     `yaml:"batch_size"`
	LargeBatchThreshold int     `yaml:"large_batch_threshold"`
	FlushIntervalS      float64 `yaml:"flush_interval_s"`
	ThreadSleepS        float64 `yaml:"output_thread_sleep_s"`
	CSVDelimiter        string  `yaml:"csv_delimiter"`
	IncludeHeader       bool    `yaml:"include_header"`
	Dir                 string  `yaml:"dir"`
}

var validLogLevels = map[string]bool{
	"DEBUG": true, "INFO": true, "WARNING": true, "ERROR": true, "CRITICAL": true,
}

// Default returns the hardcoded fallback configuration, mirroring the defaults
// every field falls back to when a document omits it.
func Default() *Config {
	return &Config{
		App: AppConfig{
			Name:        "ebpfmonitor",
			Environment: "production",
			Debug:       false,
		},
		Logging: LoggingConfig{
			Level: "INFO",
			File:  "logs/monitor.log",
		},
		Output: OutputConfig{
			BufferSize:          2000,
			BatchSize:           50,
			LargeBatchThreshold: 20,
			FlushIntervalS:      2.0,
			ThreadSleepS:        0.1,
			CSVDelimiter:        ",",
			IncludeHeader:       true,
			Dir:                 "output",
		},
		Telemetry: TelemetryConfig{
			Enabled: false,
		},
		Monitors: map[string]monitor.RawConfig{},
	}
}

// Load reads path, merges it over the hardcoded defaults, and validates every
// section. A ConfigError (see Validate) aborts startup; callers propagate it
// to the process exit code, never to steady-state logs.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every top-level section, rejecting unknown monitor keys and
// out-of-range values with the offending field named in the error.
func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("config: app.name must not be empty")
	}
	if c.App.Environment != "development" && c.App.Environment != "production" {
		return fmt.Errorf("config: app.environment must be development or production, got %q", c.App.Environment)
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("config: logging.level must be one of DEBUG, INFO, WARNING, ERROR, CRITICAL, got %q", c.Logging.Level)
	}
	if c.Output.BufferSize <= 0 {
		return fmt.Errorf("config: output.buffer_size must be > 0, got %d", c.Output.BufferSize)
	}
	if c.Output.FlushIntervalS <= 0 {
		return fmt.Errorf("config: output.flush_interval_s must be > 0, got %f", c.Output.FlushIntervalS)
	}
	if len(c.Output.CSVDelimiter) != 1 {
		return fmt.Errorf("config: output.csv_delimiter must be a single character, got %q", c.Output.CSVDelimiter)
	}

	for name := range c.Monitors {
		if !monitor.IsRegistered(name) {
			return fmt.Errorf("config: unknown monitor type %q", name)
		}
	}
	return nil
}

// MonitorConfig returns the user-supplied overrides for a monitor type as
// they were loaded, or an empty RawConfig when the user supplied none. It
// does not merge in the monitor's defaults; the monitor factory does that.
func (c *Config) MonitorConfig(name string) monitor.RawConfig {
	if raw, ok := c.Monitors[name]; ok {
		return raw
	}
	return monitor.RawConfig{}
}
