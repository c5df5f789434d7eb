package monitor

import (
	"context"
	"fmt"
	"time"
)

func init() {
	Register("context_switch", func(ctx Context) Monitor {
		return &ContextSwitchMonitor{Base: NewBase("context_switch", ctx)}
	})
}

type contextSwitchConfig struct {
	interval    time.Duration
	minSwitches int64
}

// ContextSwitchMonitor is a supplemental, optional ninth monitor type
// present in the original implementation but outside the canonical
// MonitorType set; it aggregates scheduler context switches per (comm,
// cpu) on an interval ticker and is only built when a user explicitly
// enables monitors.context_switch. The kernel program never fills in
// prev_comm, so that column is always empty.
type ContextSwitchMonitor struct {
	*Base

	enabled bool
	cfg     contextSwitchConfig
	source  AggregateSource
}

func (m *ContextSwitchMonitor) DefaultConfig() RawConfig {
	return RawConfig{"enabled": false, "interval": 2.0, "min_switches": 0}
}

func (m *ContextSwitchMonitor) ValidateConfig(raw RawConfig) error {
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
	m.cfg = contextSwitchConfig{
		interval:    time.Duration(interval * float64(time.Second)),
		minSwitches: int64(optInt(raw, "min_switches", 0)),
	}
	return nil
}

func (m *ContextSwitchMonitor) RequiredTracepoints() []string {
	return []string{"sched:sched_switch"}
}

func (m *ContextSwitchMonitor) Load(ctx context.Context) error {
	if m.IsLoaded() {
		return nil
	}
	if !m.enabled {
		m.MarkLoaded()
		return nil
	}
	src, err := loadContextSwitchProbe(m.Context())
	if err != nil {
		return fmt.Errorf("context_switch: load: %w", err)
	}
	m.source = src
	m.MarkLoaded()
	return nil
}

func (m *ContextSwitchMonitor) Run(parent context.Context) error {
	if !m.enabled || m.source == nil {
		return nil
	}
	push := func(rec Record) {
		_ = m.Context().Sink.WriteRow("context_switch", rec)
	}
	m.StartDrainLoop(parent, RunAggregateDrain(m.source, m.cfg.interval, m.ShouldEmit, push, m.Base))
	return nil
}

func (m *ContextSwitchMonitor) ShouldEmit(rec Record) bool {
	if m.cfg.minSwitches <= 0 {
		return true
	}
	count, _ := rec["count"].(int64)
	return count >= m.cfg.minSwitches
}

func (m *ContextSwitchMonitor) CSVHeader() []string {
	return []string{"timestamp", "time_str", "comm", "prev_comm", "cpu", "count"}
}

func (m *ContextSwitchMonitor) CSVRow(rec Record) map[string]any {
	ts, _ := rec["timestamp"].(float64)
	return map[string]any{
		"timestamp": ts,
		"time_str":  TimeStr(ts),
		"comm":      rec["comm"],
		"prev_comm": rec["prev_comm"],
		"cpu":       rec["cpu"],
		"count":     rec["count"],
	}
}

func (m *ContextSwitchMonitor) ConsoleHeader() string {
	return fmt.Sprintf("%-22s %-16s %-16s %-4s %s", "TIME", "COMM", "PREV_COMM", "CPU", "COUNT")
}

func (m *ContextSwitchMonitor) ConsoleRow(rec Record) string {
	ts, _ := rec["timestamp"].(float64)
	return fmt.Sprintf("%-22s %-16v %-16v %-4v %v", TimeStr(ts), rec["comm"], rec["prev_comm"], rec["cpu"], rec["count"])
}

func (m *ContextSwitchMonitor) Cleanup() {
	m.CleanupOnce(func() {
		if m.source != nil {
			_ = m.source.Close()
		}
	})
}
