package monitor

import (
	"context"
	"fmt"
	"time"
)

func init() {
	Register("bio", func(ctx Context) Monitor {
		return &BioMonitor{Base: NewBase("bio", ctx)}
	})
}

// BioIO type constants, matching the kernel-side bio_type encoding.
const (
	BioRead  = 0x1
	BioWrite = 0x2
	BioSync  = 0x4
)

// BioTypeString renders the bio_type bitmask. Unlike interrupt/page_fault,
// block I/O direction is mutually exclusive in the kernel source (a bio is
// either a read or a write), so this is a plain lookup, not a priority chain.
func BioTypeString(mask uint32) string {
	switch {
	case mask&BioWrite != 0:
		return "WRITE"
	case mask&BioRead != 0:
		return "READ"
	default:
		return "UNKNOWN"
	}
}

type bioConfig struct {
	interval      time.Duration
	minLatencyUs  float64
}

// BioMonitor aggregates block I/O per (comm, bio_type) on an interval
// ticker, excluding page-cache hits (the kernel-side program only counts
// completions that actually reach the block layer). The kernel program
// fills in only comm and count: bio_type is always 0 (io_type_str
// UNKNOWN), and the byte and latency columns are always 0.
type BioMonitor struct {
	*Base

	enabled bool
	cfg     bioConfig
	source  AggregateSource
}

func (m *BioMonitor) DefaultConfig() RawConfig {
	return RawConfig{
		"enabled":        true,
		"interval":       2.0,
		"min_latency_us": 0.0,
	}
}

func (m *BioMonitor) ValidateConfig(raw RawConfig) error {
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
	m.cfg = bioConfig{
		interval:     time.Duration(interval * float64(time.Second)),
		minLatencyUs: optFloat(raw, "min_latency_us", 0),
	}
	return nil
}

func (m *BioMonitor) RequiredTracepoints() []string {
	return []string{"block:block_rq_complete"}
}

func (m *BioMonitor) Load(ctx context.Context) error {
	if m.IsLoaded() {
		return nil
	}
	if !m.enabled {
		m.MarkLoaded()
		return nil
	}
	src, err := loadBioProbe(m.Context())
	if err != nil {
		return fmt.Errorf("bio: load: %w", err)
	}
	m.source = src
	m.MarkLoaded()
	return nil
}

func (m *BioMonitor) Run(parent context.Context) error {
	if !m.enabled || m.source == nil {
		return nil
	}
	push := func(rec Record) {
		_ = m.Context().Sink.WriteRow("bio", rec)
	}
	m.StartDrainLoop(parent, RunAggregateDrain(m.source, m.cfg.interval, m.ShouldEmit, push, m.Base))
	return nil
}

func (m *BioMonitor) ShouldEmit(rec Record) bool {
	if m.cfg.minLatencyUs <= 0 {
		return true
	}
	avg, _ := rec["avg_latency_us"].(float64)
	return avg >= m.cfg.minLatencyUs
}

func (m *BioMonitor) CSVHeader() []string {
	return []string{"timestamp", "time_str", "comm", "io_type", "io_type_str", "count",
		"total_bytes", "size_mb", "avg_latency_us", "min_latency_us", "max_latency_us", "throughput_mbps"}
}

func (m *BioMonitor) CSVRow(rec Record) map[string]any {
	ts, _ := rec["timestamp"].(float64)
	row := map[string]any{"timestamp": ts, "time_str": TimeStr(ts)}
	for _, k := range []string{"comm", "io_type", "io_type_str", "count", "total_bytes", "size_mb",
		"avg_latency_us", "min_latency_us", "max_latency_us", "throughput_mbps"} {
		row[k] = rec[k]
	}
	return row
}

func (m *BioMonitor) ConsoleHeader() string {
	return fmt.Sprintf("%-22s %-16s %-6s %-8s %-10s %-10s", "TIME", "COMM", "TYPE", "COUNT", "SIZE_MB", "AVG_US")
}

func (m *BioMonitor) ConsoleRow(rec Record) string {
	ts, _ := rec["timestamp"].(float64)
	return fmt.Sprintf("%-22s %-16v %-6v %-8v %-10v %-10v",
		TimeStr(ts), rec["comm"], rec["io_type_str"], rec["count"], rec["size_mb"], rec["avg_latency_us"])
}

func (m *BioMonitor) Cleanup() {
	m.CleanupOnce(func() {
		if m.source != nil {
			_ = m.source.Close()
		}
	})
}
