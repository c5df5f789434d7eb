package monitor

import (
	"context"
	"fmt"
	"time"
)

func init() {
	Register("func", func(ctx Context) Monitor {
		return &FuncMonitor{Base: NewBase("func", ctx)}
	})
}

type funcConfig struct {
	interval    time.Duration
	patterns    []string
	probeLimit  int
}

// FuncMonitor attaches one dynamically generated kprobe per matching kernel
// symbol (§4.5) and aggregates call counts per (comm, func_name) on an
// interval ticker. Like interrupt's, its per-row filter is empty: the
// patterns already decided which symbols are observed at all.
type FuncMonitor struct {
	*Base

	enabled bool
	cfg     funcConfig
	source  AggregateSource
}

func (m *FuncMonitor) DefaultConfig() RawConfig {
	return RawConfig{
		"enabled":     true,
		"interval":    2.0,
		"patterns":    []any{"vfs_*"},
		"probe_limit": 10,
	}
}

func (m *FuncMonitor) ValidateConfig(raw RawConfig) error {
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
	limit := optInt(raw, "probe_limit", 10)
	if limit < 1 || limit > 100 {
		return fmt.Errorf("probe_limit: must be between 1 and 100, got %d", limit)
	}
	patterns := optStringSlice(raw, "patterns", []string{"vfs_*"})
	if len(patterns) == 0 {
		return fmt.Errorf("patterns: must not be empty")
	}

	m.enabled = enabled
	m.cfg = funcConfig{
		interval:   time.Duration(interval * float64(time.Second)),
		patterns:   patterns,
		probeLimit: limit,
	}
	return nil
}

func (m *FuncMonitor) RequiredTracepoints() []string {
	return nil
}

func (m *FuncMonitor) Load(ctx context.Context) error {
	if m.IsLoaded() {
		return nil
	}
	if !m.enabled {
		m.MarkLoaded()
		return nil
	}
	src, err := loadFuncProbe(m.Context(), m.cfg.patterns, m.cfg.probeLimit)
	if err != nil {
		return fmt.Errorf("func: load: %w", err)
	}
	m.source = src
	m.MarkLoaded()
	return nil
}

func (m *FuncMonitor) Run(parent context.Context) error {
	if !m.enabled || m.source == nil {
		return nil
	}
	push := func(rec Record) {
		_ = m.Context().Sink.WriteRow("func", rec)
	}
	m.StartDrainLoop(parent, RunAggregateDrain(m.source, m.cfg.interval, m.ShouldEmit, push, m.Base))
	return nil
}

func (m *FuncMonitor) ShouldEmit(rec Record) bool {
	return true
}

func (m *FuncMonitor) CSVHeader() []string {
	return []string{"timestamp", "time_str", "comm", "func_name", "count"}
}

func (m *FuncMonitor) CSVRow(rec Record) map[string]any {
	ts, _ := rec["timestamp"].(float64)
	return map[string]any{
		"timestamp": ts,
		"time_str":  TimeStr(ts),
		"comm":      rec["comm"],
		"func_name": rec["func_name"],
		"count":     rec["count"],
	}
}

func (m *FuncMonitor) ConsoleHeader() string {
	return fmt.Sprintf("%-22s %-16s %-24s %s", "TIME", "COMM", "FUNC_NAME", "COUNT")
}

func (m *FuncMonitor) ConsoleRow(rec Record) string {
	ts, _ := rec["timestamp"].(float64)
	return fmt.Sprintf("%-22s %-16v %-24v %v", TimeStr(ts), rec["comm"], rec["func_name"], rec["count"])
}

func (m *FuncMonitor) Cleanup() {
	m.CleanupOnce(func() {
		if m.source != nil {
			_ = m.source.Close()
		}
	})
}
