package monitor

import "testing"

func TestSyscallMonitor_ShouldEmit_CategoryFilter(t *testing.T) {
	m := &SyscallMonitor{Base: NewBase("syscall", Context{})}
	raw := m.DefaultConfig()
	categories := raw["monitor_categories"].(RawConfig)
	categories["network"] = false
	if err := m.ValidateConfig(raw); err != nil {
		t.Fatalf("validate: %v", err)
	}

	if m.ShouldEmit(Record{"category": "network"}) {
		t.Error("expected network syscalls to be filtered when disabled")
	}
	if !m.ShouldEmit(Record{"category": "file_io"}) {
		t.Error("expected file_io syscalls to still pass")
	}
	if !m.ShouldEmit(Record{"category": "other"}) {
		t.Error("expected an unknown category to never be filtered")
	}
}

func TestSyscallMonitor_ShouldEmit_ErrorsOnlyFilter(t *testing.T) {
	m := &SyscallMonitor{Base: NewBase("syscall", Context{})}
	raw := m.DefaultConfig()
	raw["show_errors_only"] = true
	if err := m.ValidateConfig(raw); err != nil {
		t.Fatalf("validate: %v", err)
	}

	if m.ShouldEmit(Record{"category": "file_io", "error_count": uint64(0)}) {
		t.Error("expected a record with zero errors to be filtered")
	}
	if !m.ShouldEmit(Record{"category": "file_io", "error_count": uint64(1)}) {
		t.Error("expected a record with errors to pass")
	}
}

func TestSyscallMonitor_ShouldEmit_GetpidIsGatedAsProcess(t *testing.T) {
	m := &SyscallMonitor{Base: NewBase("syscall", Context{})}
	raw := m.DefaultConfig()
	categories := raw["monitor_categories"].(RawConfig)
	categories["process"] = false
	if err := m.ValidateConfig(raw); err != nil {
		t.Fatalf("validate: %v", err)
	}

	category := syscallCategoryOf[39]
	if category != "process" {
		t.Fatalf("expected getpid (syscall 39) to categorize as process, got %q", category)
	}
	if m.ShouldEmit(Record{"category": category, "syscall_name": "getpid"}) {
		t.Error("expected getpid to be filtered once the process category is disabled")
	}
}

func TestSyscallMonitor_ValidateConfig_AllCategoriesEnabledByDefault(t *testing.T) {
	m := &SyscallMonitor{Base: NewBase("syscall", Context{})}
	if err := m.ValidateConfig(m.DefaultConfig()); err != nil {
		t.Fatalf("validate: %v", err)
	}
	for _, c := range syscallCategories {
		if !m.cfg.categoryEnabled[c] {
			t.Errorf("expected category %q to default to enabled", c)
		}
	}
}
