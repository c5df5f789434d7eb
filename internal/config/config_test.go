package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}

func TestLoad_MergesOverDefaults(t *testing.T) {
	path := writeConfig(t, "app:\n  name: custom\noutput:\n  batch_size: 99\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.App.Name != "custom" {
		t.Errorf("expected app.name to be overridden, got %q", cfg.App.Name)
	}
	if cfg.App.Environment != "production" {
		t.Errorf("expected app.environment to keep its default, got %q", cfg.App.Environment)
	}
	if cfg.Output.BatchSize != 99 {
		t.Errorf("expected output.batch_size override, got %d", cfg.Output.BatchSize)
	}
	if cfg.Output.BufferSize != 2000 {
		t.Errorf("expected output.buffer_size to keep its default, got %d", cfg.Output.BufferSize)
	}
}

func TestLoad_InvalidEnvironment(t *testing.T) {
	path := writeConfig(t, "app:\n  environment: staging\n")
	if _, err := Load(path); err == nil {
		t.Error("expected an error for an invalid app.environment")
	}
}

func TestLoad_InvalidLogLevel(t *testing.T) {
	path := writeConfig(t, "logging:\n  level: TRACE\n")
	if _, err := Load(path); err == nil {
		t.Error("expected an error for an invalid logging.level")
	}
}

func TestLoad_UnknownMonitorType(t *testing.T) {
	path := writeConfig(t, "monitors:\n  not_a_real_monitor:\n    enabled: true\n")
	if _, err := Load(path); err == nil {
		t.Error("expected an error for an unregistered monitor type")
	}
}

func TestLoad_InvalidCSVDelimiter(t *testing.T) {
	path := writeConfig(t, "output:\n  csv_delimiter: \"::\"\n")
	if _, err := Load(path); err == nil {
		t.Error("expected an error for a multi-character csv_delimiter")
	}
}

func TestMonitorConfig_DefaultsWhenUnset(t *testing.T) {
	cfg := Default()
	raw := cfg.MonitorConfig("exec")
	if len(raw) != 0 {
		t.Errorf("expected an empty RawConfig for an unconfigured monitor, got %v", raw)
	}
}

func TestDefault_TelemetryDisabledByDefault(t *testing.T) {
	cfg := Default()
	if cfg.Telemetry.Enabled {
		t.Error("expected telemetry.enabled to default to false")
	}
}
