package monitor

import "testing"

func TestRejectUnknownKeys_PassesKnownKeys(t *testing.T) {
	allowed := RawConfig{"enabled": true, "interval": 2.0}
	if err := rejectUnknownKeys(RawConfig{"enabled": false, "interval": 1.0}, allowed); err != nil {
		t.Errorf("expected known keys to pass, got %v", err)
	}
}

func TestRejectUnknownKeys_RejectsTypo(t *testing.T) {
	allowed := RawConfig{"enabled": true, "interval": 2.0}
	err := rejectUnknownKeys(RawConfig{"enabled": true, "intrval": 1.0}, allowed)
	if err == nil {
		t.Fatal("expected an error for an unrecognized key")
	}
}
