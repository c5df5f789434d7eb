package monitor

import (
	"context"
	"fmt"
	"time"
)

func init() {
	Register("interrupt", func(ctx Context) Monitor {
		return &InterruptMonitor{Base: NewBase("interrupt", ctx)}
	})
}

type interruptConfig struct {
	interval time.Duration
}

// InterruptMonitor aggregates hardware/software interrupts per (comm,
// irq_type, cpu) on an interval ticker. No filtering: every row is emitted.
type InterruptMonitor struct {
	*Base

	enabled bool
	cfg     interruptConfig
	source  AggregateSource
}

func (m *InterruptMonitor) DefaultConfig() RawConfig {
	return RawConfig{"enabled": true, "interval": 2.0}
}

func (m *InterruptMonitor) ValidateConfig(raw RawConfig) error {
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
	m.cfg = interruptConfig{interval: time.Duration(interval * float64(time.Second))}
	return nil
}

func (m *InterruptMonitor) RequiredTracepoints() []string {
	return []string{"irq:irq_handler_entry", "irq:softirq_entry"}
}

func (m *InterruptMonitor) Load(ctx context.Context) error {
	if m.IsLoaded() {
		return nil
	}
	if !m.enabled {
		m.MarkLoaded()
		return nil
	}
	src, err := loadInterruptProbe(m.Context())
	if err != nil {
		return fmt.Errorf("interrupt: load: %w", err)
	}
	m.source = src
	m.MarkLoaded()
	return nil
}

func (m *InterruptMonitor) Run(parent context.Context) error {
	if !m.enabled || m.source == nil {
		return nil
	}
	push := func(rec Record) {
		_ = m.Context().Sink.WriteRow("interrupt", rec)
	}
	m.StartDrainLoop(parent, RunAggregateDrain(m.source, m.cfg.interval, m.ShouldEmit, push, m.Base))
	return nil
}

func (m *InterruptMonitor) ShouldEmit(rec Record) bool {
	return true
}

func (m *InterruptMonitor) CSVHeader() []string {
	return []string{"timestamp", "time_str", "comm", "irq_type", "irq_type_str", "cpu", "count"}
}

func (m *InterruptMonitor) CSVRow(rec Record) map[string]any {
	ts, _ := rec["timestamp"].(float64)
	row := map[string]any{"timestamp": ts, "time_str": TimeStr(ts)}
	for _, k := range []string{"comm", "irq_type", "irq_type_str", "cpu", "count"} {
		row[k] = rec[k]
	}
	return row
}

func (m *InterruptMonitor) ConsoleHeader() string {
	return fmt.Sprintf("%-22s %-16s %-10s %-4s %s", "TIME", "COMM", "IRQ_TYPE", "CPU", "COUNT")
}

func (m *InterruptMonitor) ConsoleRow(rec Record) string {
	ts, _ := rec["timestamp"].(float64)
	return fmt.Sprintf("%-22s %-16v %-10v %-4v %v", TimeStr(ts), rec["comm"], rec["irq_type_str"], rec["cpu"], rec["count"])
}

func (m *InterruptMonitor) Cleanup() {
	m.CleanupOnce(func() {
		if m.source != nil {
			_ = m.source.Close()
		}
	})
}
