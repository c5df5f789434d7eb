package monitor

import (
	"context"
	"testing"
	"time"
)

type fakeStreamSource struct {
	records []Record
	idx     int
	closed  bool
}

func (f *fakeStreamSource) Poll(ctx context.Context) (Record, bool, error) {
	if f.idx >= len(f.records) {
		return nil, false, nil
	}
	rec := f.records[f.idx]
	f.idx++
	return rec, true, nil
}

func (f *fakeStreamSource) Close() error {
	f.closed = true
	return nil
}

func TestExecMonitor_ShouldEmit_AlwaysTrue(t *testing.T) {
	m := &ExecMonitor{Base: NewBase("exec", Context{})}
	if !m.ShouldEmit(Record{}) {
		t.Error("expected exec to never filter a record")
	}
}

func TestExecMonitor_Load_SkipsProbeWhenDisabled(t *testing.T) {
	m := &ExecMonitor{Base: NewBase("exec", Context{})}
	if err := m.ValidateConfig(RawConfig{"enabled": false}); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if err := m.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	if !m.IsLoaded() {
		t.Error("expected a disabled exec monitor to mark itself loaded")
	}
}

func TestExecMonitor_RunStreamsSingleRecordsIntoSink(t *testing.T) {
	sink := &fakeSink{}
	m := &ExecMonitor{Base: NewBase("exec", Context{Sink: sink})}
	if err := m.ValidateConfig(RawConfig{"enabled": true}); err != nil {
		t.Fatalf("validate: %v", err)
	}
	m.MarkLoaded()
	src := &fakeStreamSource{records: []Record{
		{"comm": "sh", "pid": int64(1)},
		{"comm": "ls", "pid": int64(2)},
	}}
	m.source = src

	if err := m.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	m.Stop()

	if len(sink.rows) < 2 {
		t.Fatalf("expected at least 2 rows, got %d", len(sink.rows))
	}
}
