package monitor

import (
	"regexp"
	"strings"
)

// globToRegexp compiles a shell-style glob (`*` any run, `?` one char) into
// an anchored regexp, the way the func monitor matches kernel-symbol names
// against user-supplied patterns.
func globToRegexp(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}

// MatchesAnyPattern reports whether name matches at least one of the given
// shell-style glob patterns. Invalid patterns never match.
func MatchesAnyPattern(name string, patterns []string) bool {
	for _, p := range patterns {
		re, err := globToRegexp(p)
		if err != nil {
			continue
		}
		if re.MatchString(name) {
			return true
		}
	}
	return false
}
