package ebpfsrc

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEnsureDir_WritesEveryNamedSource(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "probes")
	got, err := EnsureDir(dir)
	if err != nil {
		t.Fatalf("EnsureDir: %v", err)
	}
	if got != dir {
		t.Errorf("expected EnsureDir to return %q, got %q", dir, got)
	}
	for _, name := range Names {
		path := filepath.Join(dir, name+".c")
		info, err := os.Stat(path)
		if err != nil {
			t.Errorf("expected %s to be materialized: %v", path, err)
			continue
		}
		if info.Size() == 0 {
			t.Errorf("expected %s to be non-empty", path)
		}
	}
}

func TestEnsureDir_OverwritesStaleContent(t *testing.T) {
	dir := t.TempDir()
	if _, err := EnsureDir(dir); err != nil {
		t.Fatalf("EnsureDir: %v", err)
	}
	stalePath := filepath.Join(dir, Names[0]+".c")
	if err := os.WriteFile(stalePath, []byte("stale content from a previous version"), 0o644); err != nil {
		t.Fatalf("write stale content: %v", err)
	}

	if _, err := EnsureDir(dir); err != nil {
		t.Fatalf("second EnsureDir: %v", err)
	}
	data, err := os.ReadFile(stalePath)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) == "stale content from a previous version" {
		t.Error("expected EnsureDir to overwrite stale file content")
	}
}

func TestRead_ReturnsEmbeddedSourceForEveryName(t *testing.T) {
	for _, name := range Names {
		data, err := Read(name)
		if err != nil {
			t.Errorf("Read(%q): %v", name, err)
			continue
		}
		if len(data) == 0 {
			t.Errorf("Read(%q) returned empty source", name)
		}
	}
}

func TestRead_UnknownMonitorType(t *testing.T) {
	if _, err := Read("not_a_real_monitor"); err == nil {
		t.Error("expected an error for an unregistered monitor type")
	}
}
