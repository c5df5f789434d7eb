package monitor

import "testing"

func TestFuncMonitor_ValidateConfig_ProbeLimitBounds(t *testing.T) {
	m := &FuncMonitor{Base: NewBase("func", Context{})}
	if err := m.ValidateConfig(RawConfig{"enabled": true, "interval": 1.0, "probe_limit": 0}); err == nil {
		t.Error("expected an error for probe_limit below 1")
	}
	if err := m.ValidateConfig(RawConfig{"enabled": true, "interval": 1.0, "probe_limit": 101}); err == nil {
		t.Error("expected an error for probe_limit above 100")
	}
	if err := m.ValidateConfig(RawConfig{"enabled": true, "interval": 1.0, "probe_limit": 10}); err != nil {
		t.Errorf("expected probe_limit 10 to validate, got %v", err)
	}
}

func TestFuncMonitor_ValidateConfig_RejectsEmptyPatterns(t *testing.T) {
	m := &FuncMonitor{Base: NewBase("func", Context{})}
	err := m.ValidateConfig(RawConfig{
		"enabled": true, "interval": 1.0, "probe_limit": 10, "patterns": []any{},
	})
	if err == nil {
		t.Error("expected an error for an empty patterns list")
	}
}

func TestFuncMonitor_ShouldEmit_AlwaysTrue(t *testing.T) {
	m := &FuncMonitor{Base: NewBase("func", Context{})}
	if !m.ShouldEmit(Record{}) {
		t.Error("expected func to never filter a record; patterns already narrowed what's observed")
	}
}
