package monitor

import "fmt"

// Helpers for pulling typed values out of a RawConfig (the permissive
// map[string]any that falls out of YAML) with the ConfigError-shaped error
// the spec calls for: offending key named, reason stated.

func requireBool(raw RawConfig, key string) (bool, error) {
	v, ok := raw[key]
	if !ok {
		return false, fmt.Errorf("%s: required and missing", key)
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%s: must be a boolean, got %T", key, v)
	}
	return b, nil
}

func optBool(raw RawConfig, key string, def bool) bool {
	v, ok := raw[key]
	if !ok {
		return def
	}
	b, ok := v.(bool)
	if !ok {
		return def
	}
	return b
}

func requirePositiveFloat(raw RawConfig, key string) (float64, error) {
	v, ok := raw[key]
	if !ok {
		return 0, fmt.Errorf("%s: required and missing", key)
	}
	f, ok := asFloat(v)
	if !ok {
		return 0, fmt.Errorf("%s: must be a positive real number, got %T", key, v)
	}
	if f <= 0 {
		return 0, fmt.Errorf("%s: must be > 0, got %v", key, f)
	}
	return f, nil
}

func optInt(raw RawConfig, key string, def int) int {
	v, ok := raw[key]
	if !ok {
		return def
	}
	f, ok := asFloat(v)
	if !ok {
		return def
	}
	return int(f)
}

func optFloat(raw RawConfig, key string, def float64) float64 {
	v, ok := raw[key]
	if !ok {
		return def
	}
	f, ok := asFloat(v)
	if !ok {
		return def
	}
	return f
}

func optStringSlice(raw RawConfig, key string, def []string) []string {
	v, ok := raw[key]
	if !ok {
		return def
	}
	items, ok := v.([]any)
	if !ok {
		return def
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		s, ok := it.(string)
		if !ok {
			return def
		}
		out = append(out, s)
	}
	return out
}

// rejectUnknownKeys returns an error naming the first key present in raw but
// absent from allowed, so a typo'd option key (e.g. min_latancy_us) is
// rejected at validation instead of silently ignored.
func rejectUnknownKeys(raw RawConfig, allowed RawConfig) error {
	for k := range raw {
		if _, ok := allowed[k]; !ok {
			return fmt.Errorf("%s: unknown option", k)
		}
	}
	return nil
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
