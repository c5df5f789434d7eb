package monitor

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestBase_LifecycleTransitions(t *testing.T) {
	b := NewBase("test", Context{})
	if b.IsLoaded() || b.IsRunning() {
		t.Fatal("expected a fresh Base to be neither loaded nor running")
	}

	b.MarkLoaded()
	if !b.IsLoaded() {
		t.Error("expected IsLoaded after MarkLoaded")
	}
	if b.State().Error != nil {
		t.Error("expected MarkLoaded to clear any prior error")
	}
}

func TestBase_MarkErrorDoesNotChangeLifecycleFlags(t *testing.T) {
	b := NewBase("test", Context{})
	b.MarkLoaded()
	b.MarkError(context.DeadlineExceeded)

	state := b.State()
	if !state.Loaded {
		t.Error("expected Loaded to remain true after a non-fatal MarkError")
	}
	if state.Error == nil {
		t.Error("expected State().Error to be set")
	}
}

func TestBase_StartDrainLoopIsIdempotent(t *testing.T) {
	b := NewBase("test", Context{})
	var calls int32

	drain := func(ctx context.Context) {
		atomic.AddInt32(&calls, 1)
		select {
		case <-ctx.Done():
		case <-time.After(time.Millisecond):
		}
	}

	b.StartDrainLoop(context.Background(), drain)
	b.StartDrainLoop(context.Background(), drain) // second call must be a no-op
	time.Sleep(10 * time.Millisecond)
	b.Stop()

	if b.State().Running {
		t.Error("expected Running to be false after Stop")
	}
	if atomic.LoadInt32(&calls) == 0 {
		t.Error("expected the drain loop to have run at least once")
	}
}

func TestBase_StopIsIdempotentAndSafeWhenNeverStarted(t *testing.T) {
	b := NewBase("test", Context{})
	b.Stop() // never started; must not panic or block

	b.StartDrainLoop(context.Background(), func(ctx context.Context) {
		<-ctx.Done()
	})
	b.Stop()
	b.Stop() // idempotent second stop
	if b.IsRunning() {
		t.Error("expected IsRunning to be false after Stop")
	}
}

func TestBase_CleanupOnceRunsExactlyOnce(t *testing.T) {
	b := NewBase("test", Context{})
	var calls int
	cleanup := func() { calls++ }

	b.CleanupOnce(cleanup)
	b.CleanupOnce(cleanup)
	b.CleanupOnce(cleanup)

	if calls != 1 {
		t.Errorf("expected cleanup to run exactly once, ran %d times", calls)
	}
}

func TestBase_ResetStatsZeroesCountersAndStampsLastReset(t *testing.T) {
	b := NewBase("test", Context{})
	b.RecordProcessed()
	b.RecordProcessed()
	b.RecordDropped()

	before := b.Statistics()
	if before.EventsProcessed != 2 || before.EventsDropped != 1 {
		t.Fatalf("unexpected stats before reset: %+v", before)
	}

	b.ResetStats()
	after := b.Statistics()
	if after.EventsProcessed != 0 || after.EventsDropped != 0 {
		t.Errorf("expected counters to be zeroed after ResetStats, got %+v", after)
	}
	if !after.LastReset.After(before.LastReset) && !after.LastReset.Equal(before.LastReset) {
		t.Error("expected LastReset to be stamped at reset time")
	}
}
