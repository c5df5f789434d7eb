package monitor

import (
	"context"
	"sync"
	"time"
)

// joinTimeout bounds every Stop()'s wait for its drain goroutine, matching
// the 5 s join contract every monitor and the output controller share.
const joinTimeout = 5 * time.Second

// Base implements the shared scaffolding every concrete monitor embeds:
// lifecycle state behind a read-write lock, a cancelable drain goroutine,
// an idempotent Stop, and CleanupOnce for an idempotent Cleanup. Concrete
// monitors call StartDrainLoop from their Run, rely on Base's Stop/State
// directly, and wrap their own Cleanup in CleanupOnce; they add
// DefaultConfig, ValidateConfig, Load, Run, the formatters, and ShouldEmit.
type Base struct {
	typ string
	ctx Context

	mu        sync.RWMutex
	state     State
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	cleanedUp bool

	statsMu sync.Mutex
	stats   Stats
}

// NewBase constructs the shared scaffolding for a monitor of the given type.
func NewBase(typ string, ctx Context) *Base {
	return &Base{
		typ:   typ,
		ctx:   ctx,
		state: State{Type: typ},
		stats: Stats{LastReset: time.Now()},
	}
}

func (b *Base) Type() string { return b.typ }

// Context exposes the logger/sink/source bundle to the embedding monitor.
func (b *Base) Context() Context { return b.ctx }

// MarkLoaded records a successful Load. Idempotent: calling it twice just
// re-stamps LastUpdateMonotonic.
func (b *Base) MarkLoaded() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state.Loaded = true
	b.state.Error = nil
	b.state.LastUpdateMonotonic = time.Now()
}

// MarkError records a non-fatal error against the monitor's state without
// changing Loaded/Running — the manager decides whether to continue.
func (b *Base) MarkError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state.Error = err
	b.state.LastUpdateMonotonic = time.Now()
}

// State returns a snapshot of the monitor's current lifecycle state.
func (b *Base) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// IsLoaded reports Loaded under the state lock.
func (b *Base) IsLoaded() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state.Loaded
}

// IsRunning reports Running under the state lock.
func (b *Base) IsRunning() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state.Running
}

// StartDrainLoop spawns the one goroutine that is this monitor's sole
// producer into its own sink buffer. drain is called once per loop
// iteration; it must itself block appropriately (sleep-until-interval for
// aggregate monitors, a bounded poll for streaming ones) and return promptly
// when ctx is canceled. Idempotent: a second call while already running is a
// no-op (ShutdownRaceError territory — ignored rather than double-started).
func (b *Base) StartDrainLoop(parent context.Context, drain func(context.Context)) {
	b.mu.Lock()
	if b.state.Running {
		b.mu.Unlock()
		return
	}
	loopCtx, cancel := context.WithCancel(parent)
	b.cancel = cancel
	b.state.Running = true
	b.state.LastUpdateMonotonic = time.Now()
	b.mu.Unlock()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for {
			select {
			case <-loopCtx.Done():
				return
			default:
				drain(loopCtx)
			}
		}
	}()
}

// Stop signals the drain loop to terminate and joins it with a bounded
// timeout. Idempotent: calling Stop when not running, or calling it twice,
// never blocks and never panics.
func (b *Base) Stop() {
	b.mu.Lock()
	if !b.state.Running {
		b.mu.Unlock()
		return
	}
	cancel := b.cancel
	b.state.Running = false
	b.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(joinTimeout):
		if b.ctx.Logger != nil {
			b.ctx.Logger.Printf("%s: drain goroutine did not join within %s", b.typ, joinTimeout)
		}
	}
}

// RecordProcessed increments the processed-events counter. Called once per
// record a drain step successfully hands to the sink.
func (b *Base) RecordProcessed() {
	b.statsMu.Lock()
	b.stats.EventsProcessed++
	b.statsMu.Unlock()
}

// RecordDropped increments the dropped-events counter. Called once per drain
// cycle that failed outright (a Drain/Poll error), distinct from the output
// controller's FIFO-overflow drop counts.
func (b *Base) RecordDropped() {
	b.statsMu.Lock()
	b.stats.EventsDropped++
	b.statsMu.Unlock()
}

// Statistics returns a snapshot of this monitor's own event counters.
func (b *Base) Statistics() Stats {
	b.statsMu.Lock()
	defer b.statsMu.Unlock()
	return b.stats
}

// ResetStats zeroes the event counters and stamps LastReset, mirroring the
// original implementation's reset_statistics. Internal only: there is no CLI
// surface for it, it exists for tests and the manager's periodic
// housekeeping.
func (b *Base) ResetStats() {
	b.statsMu.Lock()
	b.stats = Stats{LastReset: time.Now()}
	b.statsMu.Unlock()
}

// CleanupOnce guards fn behind a cleaned-up flag so repeated Cleanup() calls
// from the manager's idempotent shutdown pass are safe.
func (b *Base) CleanupOnce(fn func()) {
	b.mu.Lock()
	if b.cleanedUp {
		b.mu.Unlock()
		return
	}
	b.cleanedUp = true
	b.mu.Unlock()
	fn()
}
