package monitor

import "testing"

func TestBioTypeString_MutuallyExclusive(t *testing.T) {
	cases := []struct {
		mask uint32
		want string
	}{
		{BioWrite, "WRITE"},
		{BioRead, "READ"},
		{BioRead | BioSync, "READ"},
		{0, "UNKNOWN"},
	}
	for _, c := range cases {
		if got := BioTypeString(c.mask); got != c.want {
			t.Errorf("BioTypeString(%#x) = %q, want %q", c.mask, got, c.want)
		}
	}
}

func TestBioMonitor_ShouldEmit_MinLatencyFilter(t *testing.T) {
	m := &BioMonitor{Base: NewBase("bio", Context{})}
	if err := m.ValidateConfig(RawConfig{"enabled": true, "interval": 1.0, "min_latency_us": 100.0}); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if m.ShouldEmit(Record{"avg_latency_us": 50.0}) {
		t.Error("expected a record below min_latency_us to be filtered")
	}
	if !m.ShouldEmit(Record{"avg_latency_us": 150.0}) {
		t.Error("expected a record at or above min_latency_us to pass")
	}
}

func TestBioMonitor_ShouldEmit_ZeroThresholdPassesEverything(t *testing.T) {
	m := &BioMonitor{Base: NewBase("bio", Context{})}
	if err := m.ValidateConfig(m.DefaultConfig()); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !m.ShouldEmit(Record{"avg_latency_us": 0.0}) {
		t.Error("expected min_latency_us of 0 to pass everything")
	}
}
