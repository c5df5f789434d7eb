// Package doctor provides a preflight health-check suite for ebpfmonitor's
// runtime environment: config validity, kernel/eBPF capability, the clang
// toolchain the probe compiler shells out to, the output directory, and
// the tamper-evident audit trail.
package doctor

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/mackeh/ebpfmonitor/internal/audit"
	"github.com/mackeh/ebpfmonitor/internal/capability"
	"github.com/mackeh/ebpfmonitor/internal/config"
)

// Status represents the result of a health check.
type Status int

const (
	StatusPass Status = iota
	StatusWarn
	StatusFail
)

// Result holds the outcome of a single health check.
type Result struct {
	Name   string
	Status Status
	Detail string
	Fix    string // suggested remediation
}

// RunAll executes every health check against the config at configPath and
// returns the results in a fixed, reproducible order.
func RunAll(configPath string) []Result {
	checks := []func(string) Result{
		checkConfig,
		checkCapability,
		checkClang,
		checkOutputDir,
		checkAuditLog,
		checkDiskSpace,
	}

	results := make([]Result, 0, len(checks))
	for _, check := range checks {
		results = append(results, check(configPath))
	}
	return results
}

func checkConfig(configPath string) Result {
	cfg, err := config.Load(configPath)
	if err != nil {
		return Result{
			Name:   "Configuration",
			Status: StatusFail,
			Detail: err.Error(),
			Fix:    fmt.Sprintf("Create a valid config at %s", configPath),
		}
	}
	return Result{
		Name:   "Configuration",
		Status: StatusPass,
		Detail: fmt.Sprintf("%s, %d monitor(s) configured", configPath, len(cfg.Monitors)),
	}
}

func checkCapability(_ string) Result {
	report, err := capability.Check()
	if err != nil {
		return Result{
			Name:   "Kernel/eBPF capability",
			Status: StatusFail,
			Detail: err.Error(),
			Fix:    "Run as root on a kernel with CONFIG_BPF_SYSCALL and /sys/fs/bpf mounted",
		}
	}
	return Result{
		Name:   "Kernel/eBPF capability",
		Status: StatusPass,
		Detail: fmt.Sprintf("kernel %s, flags %v", report.Kernel, report.Flags),
	}
}

func checkClang(_ string) Result {
	path, err := exec.LookPath("clang")
	if err != nil {
		return Result{
			Name:   "clang toolchain",
			Status: StatusFail,
			Detail: "clang not found on PATH",
			Fix:    "Install clang with BPF target support (e.g. apt install clang)",
		}
	}
	out, err := exec.Command(path, "--version").Output()
	if err != nil {
		return Result{
			Name:   "clang toolchain",
			Status: StatusWarn,
			Detail: fmt.Sprintf("found at %s but --version failed: %v", path, err),
		}
	}
	version := strings.TrimSpace(string(out))
	if idx := strings.IndexByte(version, '\n'); idx > 0 {
		version = version[:idx]
	}
	return Result{
		Name:   "clang toolchain",
		Status: StatusPass,
		Detail: version,
	}
}

func checkOutputDir(configPath string) Result {
	cfg, err := config.Load(configPath)
	if err != nil {
		return Result{
			Name:   "Output directory",
			Status: StatusFail,
			Detail: "cannot resolve without valid config",
		}
	}
	if err := os.MkdirAll(cfg.Output.Dir, 0o755); err != nil {
		return Result{
			Name:   "Output directory",
			Status: StatusFail,
			Detail: err.Error(),
			Fix:    fmt.Sprintf("Ensure %s is creatable and writable", cfg.Output.Dir),
		}
	}
	probe := filepath.Join(cfg.Output.Dir, ".doctor-write-probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		return Result{
			Name:   "Output directory",
			Status: StatusFail,
			Detail: fmt.Sprintf("not writable: %v", err),
			Fix:    fmt.Sprintf("Fix permissions on %s", cfg.Output.Dir),
		}
	}
	_ = os.Remove(probe)
	return Result{
		Name:   "Output directory",
		Status: StatusPass,
		Detail: cfg.Output.Dir,
	}
}

func checkAuditLog(configPath string) Result {
	cfg, err := config.Load(configPath)
	if err != nil {
		return Result{
			Name:   "Audit log",
			Status: StatusFail,
			Detail: "cannot resolve without valid config",
		}
	}
	logPath := filepath.Join(cfg.Output.Dir, "audit.log")

	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		return Result{
			Name:   "Audit log",
			Status: StatusPass,
			Detail: "empty (no entries yet)",
		}
	}

	entries, err := audit.ReadAll(logPath)
	if err != nil {
		return Result{
			Name:   "Audit log",
			Status: StatusFail,
			Detail: fmt.Sprintf("failed to read: %s", err),
			Fix:    fmt.Sprintf("Check file permissions on %s", logPath),
		}
	}

	valid, err := audit.Verify(logPath)
	if err != nil || !valid {
		detail := "hash chain broken"
		if err != nil {
			detail = err.Error()
		}
		return Result{
			Name:   "Audit log",
			Status: StatusFail,
			Detail: fmt.Sprintf("%d entries, %s", len(entries), detail),
			Fix:    "Audit log may have been tampered with. Investigate immediately.",
		}
	}

	return Result{
		Name:   "Audit log",
		Status: StatusPass,
		Detail: fmt.Sprintf("valid (%d entries, chain intact)", len(entries)),
	}
}
