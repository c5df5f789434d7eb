package telemetry

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
)

func TestNewLogger_PrefixesComponentName(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("manager", &buf)
	logger.Print("hello")

	if !strings.Contains(buf.String(), "[manager]") {
		t.Errorf("expected log line to be prefixed with [manager], got %q", buf.String())
	}
	if !strings.Contains(buf.String(), "hello") {
		t.Errorf("expected log line to contain the message, got %q", buf.String())
	}
}

func TestNewLogger_NilWriterFallsBackToStderr(t *testing.T) {
	logger := NewLogger("daemonctl", nil)
	if logger == nil {
		t.Fatal("expected a non-nil logger")
	}
}

func TestSetup_DisabledReturnsNoopShutdown(t *testing.T) {
	shutdown, err := Setup(context.Background(), "ebpfmonitor", "test", false, nil)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("expected a disabled setup's shutdown to always succeed, got %v", err)
	}
}

func TestSetup_EnabledWritesTracesToWriter(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := Setup(context.Background(), "ebpfmonitor", "test", true, &buf)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}

func TestServeMetrics_EmptyAddrIsNoop(t *testing.T) {
	shutdown := ServeMetrics("", nil)
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("expected a no-addr shutdown to always succeed, got %v", err)
	}
}

func TestServeMetrics_ServesMetricsEndpoint(t *testing.T) {
	shutdown := ServeMetrics("127.0.0.1:0", nil)
	defer shutdown(context.Background())

	// ServeMetrics binds an ephemeral listener asynchronously; there is no
	// handle back to its address, so this only exercises the no-panic,
	// clean-shutdown path rather than an actual HTTP round trip.
	time.Sleep(10 * time.Millisecond)
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}
