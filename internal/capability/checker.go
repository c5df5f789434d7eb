// Package capability probes the host's kernel and privilege level and
// derives the compile-time feature flags the probe compiler is given.
package capability

import (
	"fmt"
	"os"
)

// Flag is one compile-time feature flag, strictly monotone in kernel
// version: once a flag's minimum version is met, every higher flag's
// minimum is also checked independently (each adds, none subtracts).
type Flag string

const (
	FlagKernel40Plus       Flag = "KERNEL_VERSION_4_0_PLUS"
	FlagAdvancedFeatures   Flag = "ADVANCED_FEATURES"
	FlagEnhancedProcInfo   Flag = "ENHANCED_PROCESS_INFO"
	FlagNewTracepoint      Flag = "NEW_TRACEPOINT_SUPPORT"
	FlagSecurityFeatures   Flag = "SECURITY_FEATURES"
)

// Version is a kernel release triple, e.g. {5, 15, 0} for 5.15.0.
type Version struct {
	Major, Minor, Patch int
}

// AtLeast reports whether v is at least major.minor, comparing major then
// minor; the patch level is not compared.
func (v Version) AtLeast(major, minor int) bool {
	if v.Major != major {
		return v.Major > major
	}
	return v.Minor >= minor
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Report is the full result of a capability probe: the detected kernel
// version, the individual sub-checks, and the derived compile flags.
type Report struct {
	Kernel         Version
	IsRoot         bool
	EBPFSyscall    bool
	BPFFSMounted   bool
	TracingDir     string // "" if neither tracing mount was found
	KprobeEvents   bool
	Flags          []Flag
}

// Check runs every sub-check and derives the compile-flag set. It returns an
// EnvironmentError-shaped error (non-root, or eBPF unavailable) naming the
// failing sub-check; a successful Report is still returned alongside the
// error so callers can log the rest of the detail.
func Check() (Report, error) {
	r := Report{}

	kv, err := detectKernelVersion()
	if err != nil {
		return r, fmt.Errorf("capability: kernel version: %w", err)
	}
	r.Kernel = kv

	r.IsRoot = os.Geteuid() == 0
	r.EBPFSyscall = checkEBPFSyscall()
	r.BPFFSMounted = checkMounted("/sys/fs/bpf")
	r.TracingDir = findTracingDir()
	r.KprobeEvents = fileExists(r.TracingDir + "/kprobe_events")

	r.Flags = deriveFlags(r.Kernel)

	if !r.IsRoot {
		return r, fmt.Errorf("capability: process is not running as root (euid %d)", os.Geteuid())
	}
	if !r.EBPFSyscall {
		return r, fmt.Errorf("capability: bpf() syscall unavailable (kernel built without CONFIG_BPF_SYSCALL)")
	}
	if !r.BPFFSMounted {
		return r, fmt.Errorf("capability: /sys/fs/bpf is not a mounted filesystem")
	}
	if r.TracingDir == "" {
		return r, fmt.Errorf("capability: neither /sys/kernel/tracing nor /sys/kernel/debug/tracing is populated")
	}
	return r, nil
}

func deriveFlags(v Version) []Flag {
	var flags []Flag
	if v.AtLeast(4, 0) {
		flags = append(flags, FlagKernel40Plus)
	}
	if v.AtLeast(4, 18) {
		flags = append(flags, FlagAdvancedFeatures)
	}
	if v.AtLeast(5, 0) {
		flags = append(flags, FlagEnhancedProcInfo)
	}
	if v.AtLeast(5, 4) {
		flags = append(flags, FlagNewTracepoint)
	}
	if v.AtLeast(5, 8) {
		flags = append(flags, FlagSecurityFeatures)
	}
	return flags
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

func findTracingDir() string {
	for _, dir := range []string{"/sys/kernel/tracing", "/sys/kernel/debug/tracing"} {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir
		}
	}
	return ""
}
