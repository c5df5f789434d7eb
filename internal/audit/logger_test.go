package audit

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestNewLogger(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "audit", "audit.log")

	logger, err := NewLogger(logPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer logger.Close()

	if logger.lastHash != "genesis" {
		t.Errorf("expected genesis hash, got %s", logger.lastHash)
	}
}

func TestLogger_Log(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "audit.log")

	logger, err := NewLogger(logPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err = logger.Log("monitor_load", "ok", "manager", map[string]any{"monitor_type": "exec"})
	if err != nil {
		t.Fatalf("log error: %v", err)
	}

	if logger.lastHash == "genesis" {
		t.Error("lastHash should have changed after logging")
	}
	logger.Close()

	entries, err := ReadAll(logPath)
	if err != nil {
		t.Fatalf("read error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Action != "monitor_load" {
		t.Errorf("expected action 'monitor_load', got '%s'", entries[0].Action)
	}
	if entries[0].Outcome != "ok" {
		t.Errorf("expected outcome 'ok', got '%s'", entries[0].Outcome)
	}
}

func TestLogger_HashChain(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "audit.log")

	logger, err := NewLogger(logPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	logger.Log("daemon_start", "ok", "daemonctl", nil)
	hash1 := logger.lastHash

	logger.Log("monitor_load", "failed", "manager", map[string]any{"monitor_type": "func"})
	hash2 := logger.lastHash

	if hash1 == hash2 {
		t.Error("consecutive entries should have different hashes")
	}
	logger.Close()

	valid, err := Verify(logPath)
	if err != nil {
		t.Fatalf("verify error: %v", err)
	}
	if !valid {
		t.Error("expected valid chain")
	}
}

func TestReadAll_NonExistent(t *testing.T) {
	entries, err := ReadAll("/nonexistent/path/audit.log")
	if err != nil {
		t.Fatalf("expected nil error for missing file, got: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected 0 entries, got %d", len(entries))
	}
}

func TestVerify_Empty(t *testing.T) {
	valid, err := Verify("/nonexistent/path/audit.log")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !valid {
		t.Error("empty/missing log should verify as valid")
	}
}

func TestVerify_ValidChain(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "audit.log")

	logger, err := NewLogger(logPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := 0; i < 10; i++ {
		logger.Log("drain_cycle", "ok", "controller", nil)
	}
	logger.Close()

	valid, err := Verify(logPath)
	if err != nil {
		t.Fatalf("verify error: %v", err)
	}
	if !valid {
		t.Error("expected valid chain for 10 entries")
	}
}

func TestVerify_DetectsTamper(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "audit.log")

	logger, err := NewLogger(logPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	logger.Log("daemon_start", "ok", "daemonctl", nil)
	logger.Log("monitor_load", "ok", "manager", map[string]any{"monitor_type": "exec"})
	logger.Close()

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read error: %v", err)
	}
	tampered := bytes.Replace(data, []byte(`"outcome":"ok"`), []byte(`"outcome":"tampered"`), 1)
	if err := os.WriteFile(logPath, tampered, 0600); err != nil {
		t.Fatalf("write error: %v", err)
	}

	valid, err := Verify(logPath)
	if valid || err == nil {
		t.Errorf("expected tamper detection, got valid=%v err=%v", valid, err)
	}
}

func TestLogger_ResumeChain(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "audit.log")

	logger1, _ := NewLogger(logPath)
	logger1.Log("daemon_start", "ok", "daemonctl", nil)
	logger1.Log("monitor_load", "failed", "manager", nil)
	lastHash := logger1.lastHash
	logger1.Close()

	logger2, _ := NewLogger(logPath)
	if logger2.lastHash != lastHash {
		t.Error("expected logger to resume from last hash")
	}
	logger2.Log("daemon_stop", "ok", "daemonctl", nil)
	logger2.Close()

	valid, err := Verify(logPath)
	if err != nil {
		t.Fatalf("verify error: %v", err)
	}
	if !valid {
		t.Error("expected valid chain across logger restarts")
	}

	entries, _ := ReadAll(logPath)
	if len(entries) != 3 {
		t.Errorf("expected 3 entries, got %d", len(entries))
	}
}
