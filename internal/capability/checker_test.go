//go:build linux

package capability

import "testing"

func TestVersionAtLeast(t *testing.T) {
	cases := []struct {
		v              Version
		major, minor   int
		want           bool
	}{
		{Version{5, 15, 0}, 4, 0, true},
		{Version{4, 0, 0}, 4, 0, true},
		{Version{3, 19, 0}, 4, 0, false},
		{Version{5, 4, 0}, 5, 8, false},
		{Version{5, 8, 0}, 5, 8, true},
		{Version{6, 1, 0}, 5, 8, true},
	}
	for _, c := range cases {
		if got := c.v.AtLeast(c.major, c.minor); got != c.want {
			t.Errorf("%s.AtLeast(%d,%d) = %v, want %v", c.v, c.major, c.minor, got, c.want)
		}
	}
}

func TestDeriveFlags(t *testing.T) {
	flags := deriveFlags(Version{5, 8, 0})
	want := []Flag{FlagKernel40Plus, FlagAdvancedFeatures, FlagEnhancedProcInfo, FlagNewTracepoint, FlagSecurityFeatures}
	if len(flags) != len(want) {
		t.Fatalf("got %d flags, want %d: %v", len(flags), len(want), flags)
	}
	for i := range want {
		if flags[i] != want[i] {
			t.Errorf("flag[%d] = %s, want %s", i, flags[i], want[i])
		}
	}
}

func TestDeriveFlagsOldKernel(t *testing.T) {
	flags := deriveFlags(Version{3, 10, 0})
	if len(flags) != 0 {
		t.Errorf("expected no flags for kernel 3.10, got %v", flags)
	}
}

func TestParseRelease(t *testing.T) {
	v, err := parseRelease("5.15.0-105-generic")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Major != 5 || v.Minor != 15 || v.Patch != 0 {
		t.Errorf("got %s, want 5.15.0", v)
	}
}
