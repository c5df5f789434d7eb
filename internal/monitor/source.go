package monitor

import (
	"context"
	"time"

	"github.com/mackeh/ebpfmonitor/internal/telemetry"
)

// AggregateSource is the kernel-to-userspace boundary for a snapshot-and-drain
// monitor: one pass returns every record currently aggregated in the map,
// having already performed the atomic lookup-and-delete per key. A key raced
// by a concurrent delete between snapshot and delete is simply absent from
// the result (TransientDrainError: skipped silently, never surfaced).
type AggregateSource interface {
	Drain() ([]Record, error)
	Close() error
}

// StreamSource is the kernel-to-userspace boundary for a per-event monitor:
// Poll blocks up to its own short timeout and returns at most one decoded
// record per call.
type StreamSource interface {
	Poll(ctx context.Context) (Record, bool, error)
	Close() error
}

// RunAggregateDrain is the drain function for strategy (a): sleep interval,
// then snapshot-and-drain once, pushing every emitted record to push. Used
// as the argument to Base.StartDrainLoop by syscall, bio, interrupt,
// page_fault, open, func, and (optionally) context_switch. stats records a
// dropped cycle on a Drain error and one processed event per pushed record;
// every call also observes its own wall time on DrainCycleDuration.
func RunAggregateDrain(src AggregateSource, interval time.Duration, shouldEmit func(Record) bool, push func(Record), stats *Base) func(context.Context) {
	return func(ctx context.Context) {
		timer := time.NewTimer(interval)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		start := time.Now()
		records, err := src.Drain()
		telemetry.DrainCycleDuration.WithLabelValues(stats.Type()).Observe(time.Since(start).Seconds())
		if err != nil {
			stats.RecordDropped()
			return
		}
		for _, rec := range records {
			rec = rec.Timestamp()
			if shouldEmit(rec) {
				push(rec)
				stats.RecordProcessed()
			}
		}
	}
}

// RunStreamDrain is the drain function for strategy (b): poll the perf/ring
// buffer with its own bounded timeout once per call, pushing at most one
// record. Used by exec. stats records a dropped cycle on a Poll error and
// one processed event per pushed record; every call also observes its own
// wall time on DrainCycleDuration.
func RunStreamDrain(src StreamSource, shouldEmit func(Record) bool, push func(Record), stats *Base) func(context.Context) {
	return func(ctx context.Context) {
		start := time.Now()
		rec, ok, err := src.Poll(ctx)
		telemetry.DrainCycleDuration.WithLabelValues(stats.Type()).Observe(time.Since(start).Seconds())
		if err != nil {
			stats.RecordDropped()
			return
		}
		if !ok {
			return
		}
		rec = rec.Timestamp()
		if shouldEmit(rec) {
			push(rec)
			stats.RecordProcessed()
		}
	}
}
