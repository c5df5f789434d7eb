// Package monitor implements the uniform probe lifecycle contract: validate
// config, load and attach a kernel probe, run a drain loop, stop, and release
// resources. Concrete monitors (exec, syscall, bio, open, func, interrupt,
// page_fault, context_switch) each own one kernel C source and one
// aggregation or streaming schema; everything else about their lifecycle is
// shared through Base.
package monitor

import (
	"context"
	"log"
	"time"
)

// RawConfig is a monitor's option bag as decoded straight off YAML: permissive
// until Validate narrows it into a typed Config.
type RawConfig map[string]any

// State mirrors the Created -> Loaded -> Running -> Stopped lifecycle. A
// monitor with Loaded=false must never be asked to Run or Stop; a monitor
// with Running=false must never be asked to Stop its drain loop a second
// time (Stop is idempotent regardless).
type State struct {
	Type                string
	Loaded              bool
	Running             bool
	Error               error
	LastUpdateMonotonic time.Time
}

// Stats is a monitor's own event counters, independent of the output
// controller's per-buffer drop counts: EventsProcessed counts records handed
// to the sink, EventsDropped counts drain cycles that failed outright (a
// Drain/Poll error), and LastReset is when these counters were last zeroed.
type Stats struct {
	EventsProcessed int64
	EventsDropped   int64
	LastReset       time.Time
}

// Record is a monitor-tagged bag of primitives produced by one drain step.
// Timestamp is wall-clock seconds since the Unix epoch, always present.
type Record map[string]any

// Timestamp stamps r with the current wall clock, matching every monitor's
// drain-time record construction.
func (r Record) Timestamp() Record {
	r["timestamp"] = float64(time.Now().UnixNano()) / 1e9
	return r
}

// Sink is the downstream consumer of records: one CSV file sink and,
// optionally, one shared console sink, both owned by the OutputController.
type Sink interface {
	WriteRow(monitorType string, row map[string]any) error
	Flush(monitorType string) error
}

// Context bundles the per-monitor resources the factory hands to each
// constructor: a dedicated logger, a handle to the shared sink, the path to
// the monitor's kernel C source, and the compile-time feature flags derived
// by the capability checker.
type Context struct {
	Logger       *log.Logger
	Sink         Sink
	EBPFSource   string
	CompileFlags []string
}

// Monitor is the contract every concrete probe implements. Every method is
// idempotent against repeated calls in the states where this file documents
// it; see Base for the shared scaffolding that makes that idempotence cheap
// to get right.
type Monitor interface {
	Type() string

	DefaultConfig() RawConfig
	ValidateConfig(raw RawConfig) error
	RequiredTracepoints() []string

	Load(ctx context.Context) error
	Run(ctx context.Context) error
	Stop()
	Cleanup()

	CSVHeader() []string
	CSVRow(rec Record) map[string]any
	ConsoleHeader() string
	ConsoleRow(rec Record) string
	ShouldEmit(rec Record) bool

	State() State
	Statistics() Stats
	ResetStats()
}
