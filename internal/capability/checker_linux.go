//go:build linux

package capability

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// bpfFSMagic is BPF_FS_MAGIC from linux/magic.h, the superblock magic number
// reported by statfs(2) for an actual bpffs mount (as opposed to a plain
// directory that merely happens to exist at /sys/fs/bpf).
const bpfFSMagic = 0xcafe4a11

func detectKernelVersion() (Version, error) {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return Version{}, fmt.Errorf("uname: %w", err)
	}
	release := charsToString(uts.Release[:])
	return parseRelease(release)
}

func charsToString(b []byte) string {
	n := 0
	for n < len(b) && b[n] != 0 {
		n++
	}
	return string(b[:n])
}

// parseRelease extracts the leading major.minor.patch from a release string
// such as "5.15.0-105-generic", tolerating a missing patch component.
func parseRelease(release string) (Version, error) {
	core := release
	if idx := strings.IndexAny(release, "-+"); idx >= 0 {
		core = release[:idx]
	}
	parts := strings.SplitN(core, ".", 3)
	if len(parts) < 2 {
		return Version{}, fmt.Errorf("unparseable kernel release %q", release)
	}
	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return Version{}, fmt.Errorf("unparseable kernel release %q: %w", release, err)
	}
	minor, err := strconv.Atoi(parts[1])
	if err != nil {
		return Version{}, fmt.Errorf("unparseable kernel release %q: %w", release, err)
	}
	patch := 0
	if len(parts) == 3 {
		patch, _ = strconv.Atoi(parts[2])
	}
	return Version{Major: major, Minor: minor, Patch: patch}, nil
}

// checkEBPFSyscall issues a harmless, argument-less bpf(2) call. A kernel
// built without CONFIG_BPF_SYSCALL returns ENOSYS; any other errno (EINVAL,
// EPERM) means the syscall dispatches and eBPF is available.
func checkEBPFSyscall() bool {
	_, _, errno := unix.Syscall(unix.SYS_BPF, 0, 0, 0)
	return errno != unix.ENOSYS
}

func checkMounted(path string) bool {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return false
	}
	return uint32(st.Type) == bpfFSMagic
}
