package monitor

import (
	"context"
	"fmt"
	"time"
)

func init() {
	Register("open", func(ctx Context) Monitor {
		return &OpenMonitor{Base: NewBase("open", ctx)}
	})
}

type openConfig struct {
	interval       time.Duration
	showErrorsOnly bool
	minCount       int64
}

// OpenMonitor aggregates openat calls per comm on an interval ticker.
// The kernel program counts calls only: every row has operation "openat",
// an empty filename, and errors, error_rate and latencies of 0.
type OpenMonitor struct {
	*Base

	enabled bool
	cfg     openConfig
	source  AggregateSource
}

func (m *OpenMonitor) DefaultConfig() RawConfig {
	return RawConfig{
		"enabled":          true,
		"interval":         2.0,
		"show_errors_only": false,
		"min_count":        0,
	}
}

func (m *OpenMonitor) ValidateConfig(raw RawConfig) error {
	if err := rejectUnknownKeys(raw, m.DefaultConfig()); err != nil {
		return err
	}
	enabled, err := requireBool(raw, "enabled")
	if err != nil {
		return err
	}
	interval, err := requirePositiveFloat(raw, "interval")
	if err != nil {
		return err
	}
	m.enabled = enabled
	m.cfg = openConfig{
		interval:       time.Duration(interval * float64(time.Second)),
		showErrorsOnly: optBool(raw, "show_errors_only", false),
		minCount:       int64(optInt(raw, "min_count", 0)),
	}
	return nil
}

func (m *OpenMonitor) RequiredTracepoints() []string {
	return []string{"syscalls:sys_enter_openat", "syscalls:sys_exit_openat"}
}

func (m *OpenMonitor) Load(ctx context.Context) error {
	if m.IsLoaded() {
		return nil
	}
	if !m.enabled {
		m.MarkLoaded()
		return nil
	}
	src, err := loadOpenProbe(m.Context())
	if err != nil {
		return fmt.Errorf("open: load: %w", err)
	}
	m.source = src
	m.MarkLoaded()
	return nil
}

func (m *OpenMonitor) Run(parent context.Context) error {
	if !m.enabled || m.source == nil {
		return nil
	}
	push := func(rec Record) {
		_ = m.Context().Sink.WriteRow("open", rec)
	}
	m.StartDrainLoop(parent, RunAggregateDrain(m.source, m.cfg.interval, m.ShouldEmit, push, m.Base))
	return nil
}

func (m *OpenMonitor) ShouldEmit(rec Record) bool {
	count, _ := rec["count"].(int64)
	if count < m.cfg.minCount {
		return false
	}
	if m.cfg.showErrorsOnly {
		errs, _ := rec["errors"].(int64)
		if errs == 0 {
			return false
		}
	}
	return true
}

func (m *OpenMonitor) CSVHeader() []string {
	return []string{"timestamp", "time_str", "comm", "operation", "filename", "count",
		"errors", "error_rate", "avg_lat_us", "min_lat_us", "max_lat_us", "flags"}
}

func (m *OpenMonitor) CSVRow(rec Record) map[string]any {
	ts, _ := rec["timestamp"].(float64)
	row := map[string]any{"timestamp": ts, "time_str": TimeStr(ts)}
	for _, k := range []string{"comm", "operation", "filename", "count", "errors", "error_rate",
		"avg_lat_us", "min_lat_us", "max_lat_us", "flags"} {
		row[k] = rec[k]
	}
	return row
}

func (m *OpenMonitor) ConsoleHeader() string {
	return fmt.Sprintf("%-22s %-16s %-20s %-8s %-8s", "TIME", "COMM", "FILENAME", "COUNT", "ERRORS")
}

func (m *OpenMonitor) ConsoleRow(rec Record) string {
	ts, _ := rec["timestamp"].(float64)
	return fmt.Sprintf("%-22s %-16v %-20v %-8v %-8v",
		TimeStr(ts), rec["comm"], rec["filename"], rec["count"], rec["errors"])
}

func (m *OpenMonitor) Cleanup() {
	m.CleanupOnce(func() {
		if m.source != nil {
			_ = m.source.Close()
		}
	})
}
