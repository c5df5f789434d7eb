package daemonctl

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

func TestIsRunning_NoFile(t *testing.T) {
	_, running := IsRunning(filepath.Join(t.TempDir(), "nope.pid"))
	if running {
		t.Error("expected IsRunning to report false for a missing pid file")
	}
}

func TestIsRunning_LivePID(t *testing.T) {
	dir := t.TempDir()
	pidFile := filepath.Join(dir, "test.pid")
	if err := os.WriteFile(pidFile, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		t.Fatalf("write pid file: %v", err)
	}

	pid, running := IsRunning(pidFile)
	if !running {
		t.Error("expected IsRunning to report true for our own live pid")
	}
	if pid != os.Getpid() {
		t.Errorf("expected pid %d, got %d", os.Getpid(), pid)
	}
}

func TestIsRunning_StaleFileHasNoSideEffects(t *testing.T) {
	dir := t.TempDir()
	pidFile := filepath.Join(dir, "test.pid")
	// PID 999999 is assumed not to exist on the test host.
	if err := os.WriteFile(pidFile, []byte("999999"), 0o644); err != nil {
		t.Fatalf("write pid file: %v", err)
	}

	_, running := IsRunning(pidFile)
	if running {
		t.Fatal("expected a stale pid to report not running")
	}
	if _, err := os.Stat(pidFile); err != nil {
		t.Errorf("IsRunning must not delete a stale pid file itself, got: %v", err)
	}
}

func TestIsRunning_GarbageContents(t *testing.T) {
	dir := t.TempDir()
	pidFile := filepath.Join(dir, "test.pid")
	if err := os.WriteFile(pidFile, []byte("not-a-pid"), 0o644); err != nil {
		t.Fatalf("write pid file: %v", err)
	}
	if _, running := IsRunning(pidFile); running {
		t.Error("expected garbage pid file contents to report not running")
	}
}

func TestCleanupStalePIDFile_RemovesFile(t *testing.T) {
	dir := t.TempDir()
	pidFile := filepath.Join(dir, "test.pid")
	if err := os.WriteFile(pidFile, []byte("999999"), 0o644); err != nil {
		t.Fatalf("write pid file: %v", err)
	}

	if err := CleanupStalePIDFile(pidFile); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if _, err := os.Stat(pidFile); !os.IsNotExist(err) {
		t.Error("expected pid file to be removed")
	}
}

func TestCleanupStalePIDFile_MissingFileIsNotAnError(t *testing.T) {
	if err := CleanupStalePIDFile(filepath.Join(t.TempDir(), "nope.pid")); err != nil {
		t.Errorf("expected no error removing a nonexistent pid file, got: %v", err)
	}
}

func TestWritePIDFile_LocksAgainstSecondWriter(t *testing.T) {
	dir := t.TempDir()
	pidFile := filepath.Join(dir, "test.pid")

	if err := writePIDFile(pidFile); err != nil {
		t.Fatalf("first writePIDFile: %v", err)
	}
	if err := writePIDFile(pidFile); err == nil {
		t.Error("expected a second writePIDFile to fail while the first still holds the flock")
	}
}

func TestStopDaemon_NotRunning(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "test.pid")
	if err := StopDaemon(pidFile); err == nil {
		t.Error("expected StopDaemon to fail when no daemon is running")
	}
}
