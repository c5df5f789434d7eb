package monitor

import "testing"

func TestMatchesAnyPattern(t *testing.T) {
	cases := []struct {
		name     string
		patterns []string
		want     bool
	}{
		{"vfs_read", []string{"vfs_*"}, true},
		{"vfs_write", []string{"vfs_*"}, true},
		{"do_sys_open", []string{"vfs_*"}, false},
		{"do_sys_open", []string{"vfs_*", "do_sys_*"}, true},
		{"tcp_sendmsg", []string{"tcp_?endmsg"}, true},
		{"tcp_xxendmsg", []string{"tcp_?endmsg"}, false},
		{"anything", nil, false},
	}
	for _, c := range cases {
		if got := MatchesAnyPattern(c.name, c.patterns); got != c.want {
			t.Errorf("MatchesAnyPattern(%q, %v) = %v, want %v", c.name, c.patterns, got, c.want)
		}
	}
}

func TestMatchesAnyPattern_LiteralMetacharactersAreEscaped(t *testing.T) {
	if MatchesAnyPattern("foo", []string{"[bracket]"}) {
		t.Error("expected glob metacharacters outside * and ? to be matched literally, not as regexp syntax")
	}
	if !MatchesAnyPattern("[bracket]", []string{"[bracket]"}) {
		t.Error("expected a literal bracket pattern to match its own literal text")
	}
}
