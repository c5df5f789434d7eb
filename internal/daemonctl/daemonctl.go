// Package daemonctl implements background-mode lifecycle management:
// daemonizing via a Setsid re-exec (Go cannot safely fork() mid-process),
// a flock-guarded PID file, and signal-to-shutdown-flag translation.
package daemonctl

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// daemonChildEnv marks a re-exec'd child so it never re-daemonizes itself.
const daemonChildEnv = "EBPFMON_DAEMON_CHILD"

// Daemonize re-execs the current binary with stdio detached and a new
// session, then exits the parent. Go's runtime cannot safely fork() a
// multi-threaded process, so this does what posix_spawn-style daemonizing
// tools do in other managed runtimes: re-exec with Setsid rather than
// fork+continue.
//
// Call this before any goroutines doing real work are started — ideally
// as the first statement in main. It returns nil (and control continues
// normally) only in the already-daemonized child; the original foreground
// process calls os.Exit(0) itself and never returns.
func Daemonize(pidFile string) error {
	if os.Getenv(daemonChildEnv) == "1" {
		unix.Umask(0o022)
		return writePIDFile(pidFile)
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("daemonctl: resolve executable: %w", err)
	}

	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("daemonctl: open %s: %w", os.DevNull, err)
	}
	defer devNull.Close()

	attr := &syscall.SysProcAttr{Setsid: true}
	proc, err := os.StartProcess(exe, os.Args, &os.ProcAttr{
		Dir:   ".",
		Env:   append(os.Environ(), daemonChildEnv+"=1"),
		Files: []*os.File{devNull, devNull, devNull},
		Sys:   attr,
	})
	if err != nil {
		return fmt.Errorf("daemonctl: re-exec: %w", err)
	}

	fmt.Printf("daemon started, pid %d\n", proc.Pid)
	os.Exit(0)
	return nil // unreached
}

// writePIDFile flock(LOCK_EX|LOCK_NB)s pidFile and writes the current PID
// into it, failing with PidFileConflict semantics if another live process
// already holds the lock.
func writePIDFile(pidFile string) error {
	if err := os.MkdirAll(filepath.Dir(pidFile), 0o755); err != nil {
		return fmt.Errorf("daemonctl: create pid file dir: %w", err)
	}
	f, err := os.OpenFile(pidFile, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("daemonctl: open pid file: %w", err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return fmt.Errorf("daemonctl: another instance is already running (pid file %s locked): %w", pidFile, err)
	}

	if err := f.Truncate(0); err != nil {
		f.Close()
		return fmt.Errorf("daemonctl: truncate pid file: %w", err)
	}
	if _, err := f.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0); err != nil {
		f.Close()
		return fmt.Errorf("daemonctl: write pid file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("daemonctl: sync pid file: %w", err)
	}
	// Deliberately leak the fd for the process lifetime: closing it would
	// release the flock. The OS reclaims it on exit.
	return nil
}

// IsRunning reports whether pidFile names a live process, performing no
// side effects — it must never delete or rewrite a stale file itself; use
// CleanupStalePIDFile for that, explicitly, from a separate call site.
func IsRunning(pidFile string) (pid int, running bool) {
	data, err := os.ReadFile(pidFile)
	if err != nil {
		return 0, false
	}
	pid, err = strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	if err := unix.Kill(pid, 0); err != nil {
		return pid, false
	}
	return pid, true
}

// CleanupStalePIDFile removes pidFile unconditionally; a missing file is not
// an error. It performs no liveness check of its own, so callers check
// IsRunning first and call it only for a stale file, which keeps the side
// effect explicit at the call site instead of hidden inside a status query.
func CleanupStalePIDFile(pidFile string) error {
	if err := os.Remove(pidFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("daemonctl: remove stale pid file: %w", err)
	}
	return nil
}

// StopDaemon sends SIGTERM to the process named by pidFile, polls for up
// to 10s for it to exit, and escalates to SIGKILL if it hasn't.
func StopDaemon(pidFile string) error {
	pid, running := IsRunning(pidFile)
	if !running {
		return fmt.Errorf("daemonctl: no running daemon (pid file %s)", pidFile)
	}

	if err := unix.Kill(pid, syscall.SIGTERM); err != nil {
		return fmt.Errorf("daemonctl: signal pid %d: %w", pid, err)
	}

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if err := unix.Kill(pid, 0); err != nil {
			return CleanupStalePIDFile(pidFile)
		}
		time.Sleep(200 * time.Millisecond)
	}

	if err := unix.Kill(pid, syscall.SIGKILL); err != nil {
		return fmt.Errorf("daemonctl: sigkill pid %d: %w", pid, err)
	}
	return CleanupStalePIDFile(pidFile)
}
