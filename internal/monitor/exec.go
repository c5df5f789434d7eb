package monitor

import (
	"context"
	"fmt"
)

func init() {
	Register("exec", func(ctx Context) Monitor {
		return &ExecMonitor{Base: NewBase("exec", ctx)}
	})
}

// ExecMonitor observes program execution via the streaming strategy: one
// record per exec, decoded straight off a ring buffer, no aggregation.
type ExecMonitor struct {
	*Base

	enabled bool
	source  StreamSource
}

func (m *ExecMonitor) DefaultConfig() RawConfig {
	return RawConfig{"enabled": true}
}

func (m *ExecMonitor) ValidateConfig(raw RawConfig) error {
	if err := rejectUnknownKeys(raw, m.DefaultConfig()); err != nil {
		return err
	}
	enabled, err := requireBool(raw, "enabled")
	if err != nil {
		return err
	}
	m.enabled = enabled
	return nil
}

func (m *ExecMonitor) RequiredTracepoints() []string {
	return []string{"sched:sched_process_exec"}
}

func (m *ExecMonitor) Load(ctx context.Context) error {
	if m.IsLoaded() {
		return nil
	}
	if !m.enabled {
		m.MarkLoaded()
		return nil
	}
	src, err := loadExecProbe(m.Context())
	if err != nil {
		return fmt.Errorf("exec: load: %w", err)
	}
	m.source = src
	m.MarkLoaded()
	return nil
}

func (m *ExecMonitor) Run(parent context.Context) error {
	if !m.enabled || m.source == nil {
		return nil
	}
	push := func(rec Record) {
		_ = m.Context().Sink.WriteRow("exec", rec)
	}
	m.StartDrainLoop(parent, RunStreamDrain(m.source, m.ShouldEmit, push, m.Base))
	return nil
}

func (m *ExecMonitor) ShouldEmit(rec Record) bool {
	return true
}

func (m *ExecMonitor) CSVHeader() []string {
	return []string{"timestamp", "time_str", "uid", "pid", "comm", "filename"}
}

func (m *ExecMonitor) CSVRow(rec Record) map[string]any {
	ts, _ := rec["timestamp"].(float64)
	return map[string]any{
		"timestamp": ts,
		"time_str":  TimeStr(ts),
		"uid":       rec["uid"],
		"pid":       rec["pid"],
		"comm":      rec["comm"],
		"filename":  rec["filename"],
	}
}

func (m *ExecMonitor) ConsoleHeader() string {
	return fmt.Sprintf("%-22s %-8s %-8s %-16s %s", "TIME", "UID", "PID", "COMM", "FILENAME")
}

func (m *ExecMonitor) ConsoleRow(rec Record) string {
	ts, _ := rec["timestamp"].(float64)
	return fmt.Sprintf("%-22s %-8v %-8v %-16v %v", TimeStr(ts), rec["uid"], rec["pid"], rec["comm"], rec["filename"])
}

func (m *ExecMonitor) Cleanup() {
	m.CleanupOnce(func() {
		if m.source != nil {
			_ = m.source.Close()
		}
	})
}
