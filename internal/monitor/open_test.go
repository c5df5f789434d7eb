package monitor

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakeAggregateSource lets tests drive a monitor's Run loop without a real
// kernel map behind it.
type fakeAggregateSource struct {
	records []Record
	drained int
	closed  bool
}

func (f *fakeAggregateSource) Drain() ([]Record, error) {
	f.drained++
	out := f.records
	f.records = nil
	return out, nil
}

func (f *fakeAggregateSource) Close() error {
	f.closed = true
	return nil
}

type fakeSink struct {
	rows []map[string]any
}

func (s *fakeSink) WriteRow(monitorType string, row map[string]any) error {
	s.rows = append(s.rows, row)
	return nil
}
func (s *fakeSink) Flush(string) error { return nil }

func TestOpenMonitor_ValidateConfig_Defaults(t *testing.T) {
	m := &OpenMonitor{Base: NewBase("open", Context{})}
	if err := m.ValidateConfig(m.DefaultConfig()); err != nil {
		t.Fatalf("validate defaults: %v", err)
	}
	if !m.enabled {
		t.Error("expected enabled to default to true")
	}
	if m.cfg.interval != 2*time.Second {
		t.Errorf("expected 2s default interval, got %v", m.cfg.interval)
	}
}

func TestOpenMonitor_ValidateConfig_RejectsMissingRequired(t *testing.T) {
	m := &OpenMonitor{Base: NewBase("open", Context{})}
	err := m.ValidateConfig(RawConfig{"enabled": true})
	if err == nil {
		t.Fatal("expected an error when interval is missing")
	}
}

func TestOpenMonitor_ValidateConfig_RejectsUnknownKey(t *testing.T) {
	m := &OpenMonitor{Base: NewBase("open", Context{})}
	err := m.ValidateConfig(RawConfig{"enabled": true, "interval": 1.0, "min_cuont": int64(5)})
	if err == nil {
		t.Fatal("expected an error for an unrecognized option key")
	}
}

func TestOpenMonitor_ShouldEmit_MinCountAndErrorsOnly(t *testing.T) {
	m := &OpenMonitor{Base: NewBase("open", Context{})}
	if err := m.ValidateConfig(RawConfig{
		"enabled": true, "interval": 1.0, "show_errors_only": true, "min_count": int64(5),
	}); err != nil {
		t.Fatalf("validate: %v", err)
	}

	if m.ShouldEmit(Record{"count": int64(3), "errors": int64(0)}) {
		t.Error("expected a record below min_count to be filtered")
	}
	if m.ShouldEmit(Record{"count": int64(10), "errors": int64(0)}) {
		t.Error("expected show_errors_only to filter a record with zero errors")
	}
	if !m.ShouldEmit(Record{"count": int64(10), "errors": int64(1)}) {
		t.Error("expected a record meeting both filters to pass")
	}
}

func TestOpenMonitor_RunDrainsSourceIntoSink(t *testing.T) {
	sink := &fakeSink{}
	m := &OpenMonitor{Base: NewBase("open", Context{Sink: sink})}
	if err := m.ValidateConfig(RawConfig{"enabled": true, "interval": 0.01}); err != nil {
		t.Fatalf("validate: %v", err)
	}
	m.MarkLoaded()
	src := &fakeAggregateSource{records: []Record{{"comm": "bash", "count": int64(1)}}}
	m.source = src

	if err := m.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	m.Stop()

	if len(sink.rows) == 0 {
		t.Fatal("expected at least one row to reach the sink")
	}
	if sink.rows[0]["comm"] != "bash" {
		t.Errorf("unexpected row: %v", sink.rows[0])
	}
	if m.Statistics().EventsProcessed == 0 {
		t.Error("expected EventsProcessed to be incremented by the drain loop")
	}
}

func TestOpenMonitor_Cleanup_ClosesSourceOnce(t *testing.T) {
	m := &OpenMonitor{Base: NewBase("open", Context{})}
	src := &fakeAggregateSource{}
	m.source = src

	m.Cleanup()
	m.Cleanup() // idempotent

	if !src.closed {
		t.Error("expected Cleanup to close the source")
	}
}

func TestRunAggregateDrain_SkipsOnDrainError(t *testing.T) {
	calls := 0
	push := func(Record) { calls++ }
	base := NewBase("test", Context{})
	drain := RunAggregateDrain(erroringSource{}, time.Millisecond, func(Record) bool { return true }, push, base)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	drain(ctx)

	if calls != 0 {
		t.Errorf("expected no records pushed when Drain errors, got %d", calls)
	}
	if base.Statistics().EventsDropped == 0 {
		t.Error("expected a Drain error to record a dropped event")
	}
}

type erroringSource struct{}

func (erroringSource) Drain() ([]Record, error) { return nil, errors.New("boom") }
func (erroringSource) Close() error             { return nil }
