package monitor

import (
	"context"
	"fmt"
	"time"
)

func init() {
	Register("page_fault", func(ctx Context) Monitor {
		return &PageFaultMonitor{Base: NewBase("page_fault", ctx)}
	})
}

type pageFaultConfig struct {
	interval           time.Duration
	monitorMajor       bool
	monitorMinor       bool
	monitorWrite       bool
	monitorUser        bool
	monitorKernel      bool
}

// PageFaultMonitor aggregates page faults per (comm, fault_type, cpu,
// numa_node) on an interval ticker, filtering rows by the fault-type axes
// the configuration enables.
type PageFaultMonitor struct {
	*Base

	enabled bool
	cfg     pageFaultConfig
	source  AggregateSource
}

func (m *PageFaultMonitor) DefaultConfig() RawConfig {
	return RawConfig{
		"enabled":                true,
		"interval":               2.0,
		"monitor_major_faults":   true,
		"monitor_minor_faults":   true,
		"monitor_write_faults":   true,
		"monitor_user_faults":    true,
		"monitor_kernel_faults":  false,
	}
}

func (m *PageFaultMonitor) ValidateConfig(raw RawConfig) error {
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
	m.cfg = pageFaultConfig{
		interval:      time.Duration(interval * float64(time.Second)),
		monitorMajor:  optBool(raw, "monitor_major_faults", true),
		monitorMinor:  optBool(raw, "monitor_minor_faults", true),
		monitorWrite:  optBool(raw, "monitor_write_faults", true),
		monitorUser:   optBool(raw, "monitor_user_faults", true),
		monitorKernel: optBool(raw, "monitor_kernel_faults", false),
	}
	return nil
}

func (m *PageFaultMonitor) RequiredTracepoints() []string {
	return []string{"exceptions:page_fault_user", "exceptions:page_fault_kernel"}
}

func (m *PageFaultMonitor) Load(ctx context.Context) error {
	if m.IsLoaded() {
		return nil
	}
	if !m.enabled {
		m.MarkLoaded()
		return nil
	}
	src, err := loadPageFaultProbe(m.Context())
	if err != nil {
		return fmt.Errorf("page_fault: load: %w", err)
	}
	m.source = src
	m.MarkLoaded()
	return nil
}

func (m *PageFaultMonitor) Run(parent context.Context) error {
	if !m.enabled || m.source == nil {
		return nil
	}
	push := func(rec Record) {
		_ = m.Context().Sink.WriteRow("page_fault", rec)
	}
	m.StartDrainLoop(parent, RunAggregateDrain(m.source, m.cfg.interval, m.ShouldEmit, push, m.Base))
	return nil
}

func (m *PageFaultMonitor) ShouldEmit(rec Record) bool {
	mask, _ := rec["fault_type"].(uint32)
	isMajor := mask&FaultMajor != 0
	isMinor := mask&FaultMinor != 0
	isWrite := mask&FaultWrite != 0
	isUser := mask&FaultUser != 0

	if isMajor && !m.cfg.monitorMajor {
		return false
	}
	if isMinor && !m.cfg.monitorMinor {
		return false
	}
	if isWrite && !m.cfg.monitorWrite {
		return false
	}
	if isUser && !m.cfg.monitorUser {
		return false
	}
	if !isUser && !m.cfg.monitorKernel {
		return false
	}
	return true
}

func (m *PageFaultMonitor) CSVHeader() []string {
	return []string{"timestamp", "time_str", "comm", "fault_type", "fault_type_str", "cpu", "numa_node", "count"}
}

func (m *PageFaultMonitor) CSVRow(rec Record) map[string]any {
	ts, _ := rec["timestamp"].(float64)
	row := map[string]any{"timestamp": ts, "time_str": TimeStr(ts)}
	for _, k := range []string{"comm", "fault_type", "fault_type_str", "cpu", "numa_node", "count"} {
		row[k] = rec[k]
	}
	return row
}

func (m *PageFaultMonitor) ConsoleHeader() string {
	return fmt.Sprintf("%-22s %-16s %-18s %-4s %-8s %s", "TIME", "COMM", "FAULT_TYPE", "CPU", "NUMA", "COUNT")
}

func (m *PageFaultMonitor) ConsoleRow(rec Record) string {
	ts, _ := rec["timestamp"].(float64)
	return fmt.Sprintf("%-22s %-16v %-18v %-4v %-8v %v",
		TimeStr(ts), rec["comm"], rec["fault_type_str"], rec["cpu"], rec["numa_node"], rec["count"])
}

func (m *PageFaultMonitor) Cleanup() {
	m.CleanupOnce(func() {
		if m.source != nil {
			_ = m.source.Close()
		}
	})
}
