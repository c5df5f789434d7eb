package monitor

import (
	"context"
	"fmt"
	"time"
)

func init() {
	Register("syscall", func(ctx Context) Monitor {
		return &SyscallMonitor{Base: NewBase("syscall", ctx)}
	})
}

// syscallCategories is the closed set of categories monitor_categories gates.
var syscallCategories = []string{"file_io", "network", "memory", "process", "signal", "time", "ipc"}

// syscallCategoryOf classifies a small, representative subset of x86_64
// syscall numbers; every syscall named in syscallNameOf has an entry here so
// category gating actually applies to it. Anything unlisted falls into
// "other" and is never filterable, matching the original's permissive
// handling of unknown calls.
var syscallCategoryOf = map[uint64]string{
	0: "file_io", 1: "file_io", 2: "file_io", 3: "file_io", 17: "file_io", 18: "file_io",
	19: "file_io", 20: "file_io", 257: "file_io", 262: "file_io",
	41: "network", 42: "network", 43: "network", 44: "network", 45: "network",
	46: "network", 49: "network", 50: "network",
	9: "memory", 10: "memory", 11: "memory", 12: "memory", 25: "memory",
	56: "process", 57: "process", 58: "process", 59: "process", 60: "process", 61: "process", 39: "process",
	62: "signal", 13: "signal", 14: "signal", 15: "signal",
	35: "time", 96: "time", 201: "time", 228: "time",
	29: "ipc", 30: "ipc", 31: "ipc",
}

var syscallNameOf = map[uint64]string{
	0: "read", 1: "write", 2: "open", 3: "close", 17: "pread64", 18: "pwrite64",
	19: "readv", 20: "writev", 257: "openat", 262: "newfstatat",
	41: "socket", 42: "connect", 43: "accept", 44: "sendto", 45: "recvfrom",
	46: "sendmsg", 49: "bind", 50: "listen",
	9: "mmap", 10: "mprotect", 11: "munmap", 12: "brk", 25: "mremap",
	56: "clone", 57: "fork", 58: "vfork", 59: "execve", 60: "exit", 61: "wait4",
	62: "kill", 13: "rt_sigaction", 14: "rt_sigprocmask", 15: "rt_sigreturn",
	35: "nanosleep", 96: "gettimeofday", 201: "time", 228: "clock_gettime",
	29: "shmget", 30: "shmat", 31: "shmctl",
	39: "getpid",
}

// SyscallConfig is the validated per-instance configuration.
type syscallConfig struct {
	interval         time.Duration
	categoryEnabled  map[string]bool
	showErrorsOnly   bool
}

// SyscallMonitor aggregates syscalls per (comm, syscall_nr) on an interval
// ticker, reporting count/error_count/error_rate per cycle. The kernel
// program traces syscall entry only and never increments error_count, so
// error_count and error_rate are always 0.
type SyscallMonitor struct {
	*Base

	enabled bool
	cfg     syscallConfig
	source  AggregateSource
}

func (m *SyscallMonitor) DefaultConfig() RawConfig {
	categories := RawConfig{}
	for _, c := range syscallCategories {
		categories[c] = true
	}
	return RawConfig{
		"enabled":            true,
		"interval":           2.0,
		"monitor_categories": categories,
		"show_errors_only":   false,
	}
}

func (m *SyscallMonitor) ValidateConfig(raw RawConfig) error {
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

	categoryEnabled := map[string]bool{}
	for _, c := range syscallCategories {
		categoryEnabled[c] = true
	}
	if raw, ok := raw["monitor_categories"].(RawConfig); ok {
		for _, c := range syscallCategories {
			categoryEnabled[c] = optBool(raw, c, true)
		}
	} else if raw, ok := raw["monitor_categories"].(map[string]any); ok {
		for _, c := range syscallCategories {
			categoryEnabled[c] = optBool(RawConfig(raw), c, true)
		}
	}

	m.enabled = enabled
	m.cfg = syscallConfig{
		interval:        time.Duration(interval * float64(time.Second)),
		categoryEnabled: categoryEnabled,
		showErrorsOnly:  optBool(raw, "show_errors_only", false),
	}
	return nil
}

func (m *SyscallMonitor) RequiredTracepoints() []string {
	return []string{"raw_syscalls:sys_enter", "raw_syscalls:sys_exit"}
}

func (m *SyscallMonitor) Load(ctx context.Context) error {
	if m.IsLoaded() {
		return nil
	}
	if !m.enabled {
		m.MarkLoaded()
		return nil
	}
	src, err := loadSyscallProbe(m.Context())
	if err != nil {
		return fmt.Errorf("syscall: load: %w", err)
	}
	m.source = src
	m.MarkLoaded()
	return nil
}

func (m *SyscallMonitor) Run(parent context.Context) error {
	if !m.enabled || m.source == nil {
		return nil
	}
	push := func(rec Record) {
		_ = m.Context().Sink.WriteRow("syscall", rec)
	}
	m.StartDrainLoop(parent, RunAggregateDrain(m.source, m.cfg.interval, m.ShouldEmit, push, m.Base))
	return nil
}

func (m *SyscallMonitor) ShouldEmit(rec Record) bool {
	category, _ := rec["category"].(string)
	if enabled, known := m.cfg.categoryEnabled[category]; known && !enabled {
		return false
	}
	if m.cfg.showErrorsOnly {
		errCount, _ := rec["error_count"].(uint64)
		if errCount == 0 {
			return false
		}
	}
	return true
}

func (m *SyscallMonitor) CSVHeader() []string {
	return []string{"timestamp", "time_str", "comm", "syscall_nr", "syscall_name", "category", "count", "error_count", "error_rate"}
}

func (m *SyscallMonitor) CSVRow(rec Record) map[string]any {
	ts, _ := rec["timestamp"].(float64)
	row := map[string]any{
		"timestamp": ts,
		"time_str":  TimeStr(ts),
	}
	for _, k := range []string{"comm", "syscall_nr", "syscall_name", "category", "count", "error_count", "error_rate"} {
		row[k] = rec[k]
	}
	return row
}

func (m *SyscallMonitor) ConsoleHeader() string {
	return fmt.Sprintf("%-22s %-16s %-10s %-14s %-10s %-8s %-8s", "TIME", "COMM", "SYSCALL", "CATEGORY", "COUNT", "ERRORS", "ERR_RATE")
}

func (m *SyscallMonitor) ConsoleRow(rec Record) string {
	ts, _ := rec["timestamp"].(float64)
	return fmt.Sprintf("%-22s %-16v %-10v %-14v %-10v %-8v %-8v",
		TimeStr(ts), rec["comm"], rec["syscall_name"], rec["category"], rec["count"], rec["error_count"], rec["error_rate"])
}

func (m *SyscallMonitor) Cleanup() {
	m.CleanupOnce(func() {
		if m.source != nil {
			_ = m.source.Close()
		}
	})
}
