// Package manager orchestrates the full monitor lifecycle: build every
// configured monitor from its factory, load its kernel probe, start the
// output controller, run every monitor's drain loop, and tear the whole
// fleet down again on shutdown.
package manager

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/mackeh/ebpfmonitor/internal/audit"
	"github.com/mackeh/ebpfmonitor/internal/config"
	"github.com/mackeh/ebpfmonitor/internal/monitor"
	"github.com/mackeh/ebpfmonitor/internal/output"
	"github.com/mackeh/ebpfmonitor/internal/telemetry"
)

// statsResetInterval is how often the housekeeping goroutine zeroes every
// running monitor's own event counters (Monitor.Statistics), independent of
// the output controller's buffers. There is no CLI surface for this; it
// only exists so long-running counters don't grow unbounded between
// restarts.
const statsResetInterval = 1 * time.Hour

// entry bundles one running, loaded monitor.
type entry struct {
	mon monitor.Monitor
}

// Manager owns the fleet of monitors named in a Config, their shared output
// controller, and the allow-lists that further restrict emitted records.
//
// Three locks guard disjoint state, matching the output controller's split:
// stateMu for the entries map and overall running flag, targetMu for the
// target_pids/target_uids allow-lists (read on every record, written rarely
// from a future control surface), and statsMu for the per-type load errors
// surfaced by LoadErrors.
type Manager struct {
	factory    *monitor.Factory
	controller *output.Controller
	logger     *log.Logger
	audit      *audit.Logger

	stateMu sync.RWMutex
	entries map[string]*entry
	running bool

	targetMu    sync.RWMutex
	targetPIDs  map[int]bool
	targetUIDs  map[int]bool

	statsMu    sync.Mutex
	loadErrors map[string]error

	housekeepingCancel context.CancelFunc
	housekeepingWG     sync.WaitGroup
}

// New builds a Manager over an already-constructed output Controller.
// Callers must build the monitor.Factory passed to Start's caller with
// m.Sink(), not the Controller directly, so the target_pids/target_uids
// allow-list is applied before any record reaches the Controller.
//
// auditLog may be nil, in which case lifecycle events simply aren't
// recorded to the tamper-evident trail.
func New(controller *output.Controller, logger *log.Logger, auditLog *audit.Logger) *Manager {
	return &Manager{
		controller: controller,
		logger:     logger,
		audit:      auditLog,
		entries:    make(map[string]*entry),
		targetPIDs: make(map[int]bool),
		targetUIDs: make(map[int]bool),
		loadErrors: make(map[string]error),
	}
}

func (m *Manager) record(action, outcome string, details map[string]any) {
	if m.audit == nil {
		return
	}
	if err := m.audit.Log(action, outcome, "manager", details); err != nil && m.logger != nil {
		m.logger.Printf("manager: audit log write failed: %v", err)
	}
}

// Sink returns the monitor.Sink every monitor's Context should be built
// with: it applies the target_pids/target_uids allow-list and then
// forwards to the underlying output Controller.
func (m *Manager) Sink() monitor.Sink {
	return (*managerSink)(m)
}

type managerSink Manager

func (s *managerSink) WriteRow(monitorType string, row map[string]any) error {
	m := (*Manager)(s)
	if !m.allowed(monitor.Record(row)) {
		return nil
	}
	return m.controller.WriteRow(monitorType, row)
}

func (s *managerSink) Flush(monitorType string) error {
	return (*Manager)(s).controller.Flush(monitorType)
}

// SetTargets installs the process/uid allow-lists; an empty list means "no
// restriction" for that dimension, matching the supplemental
// target_pids/target_uids feature.
func (m *Manager) SetTargets(pids, uids []int) {
	m.targetMu.Lock()
	defer m.targetMu.Unlock()
	m.targetPIDs = toSet(pids)
	m.targetUIDs = toSet(uids)
}

func toSet(vals []int) map[int]bool {
	s := make(map[int]bool, len(vals))
	for _, v := range vals {
		s[v] = true
	}
	return s
}

func (m *Manager) allowed(rec monitor.Record) bool {
	m.targetMu.RLock()
	defer m.targetMu.RUnlock()
	if len(m.targetPIDs) > 0 {
		pid, _ := rec["pid"].(uint32)
		if !m.targetPIDs[int(pid)] {
			return false
		}
	}
	if len(m.targetUIDs) > 0 {
		uid, _ := rec["uid"].(uint32)
		if !m.targetUIDs[int(uid)] {
			return false
		}
	}
	return true
}

// Start builds, loads, registers, and runs every monitor named in cfg. A
// monitor whose Load fails is logged and skipped rather than aborting the
// whole fleet — the remaining monitors still start. Returns an error only
// if every configured monitor failed to load.
func (m *Manager) Start(parent context.Context, cfg *config.Config, factory *monitor.Factory) error {
	m.stateMu.Lock()
	if m.running {
		m.stateMu.Unlock()
		return fmt.Errorf("manager: already running")
	}
	m.running = true
	m.factory = factory
	m.stateMu.Unlock()
	m.record("manager_start", "ok", map[string]any{"monitor_count": len(cfg.Monitors)})

	stamp := time.Now()
	loaded := 0

	for monitorType, raw := range cfg.Monitors {
		mon, err := m.factory.Build(monitorType, raw)
		if err != nil {
			m.recordLoadError(monitorType, err)
			continue
		}
		if err := mon.Load(parent); err != nil {
			m.recordLoadError(monitorType, err)
			mon.Cleanup()
			continue
		}
		if err := m.controller.Register(monitorType, mon, stamp); err != nil {
			m.recordLoadError(monitorType, err)
			mon.Cleanup()
			continue
		}

		m.stateMu.Lock()
		m.entries[monitorType] = &entry{mon: mon}
		m.stateMu.Unlock()
		loaded++
		telemetry.MonitorsLoaded.Set(float64(loaded))
	}

	if loaded == 0 && len(cfg.Monitors) > 0 {
		return fmt.Errorf("manager: every configured monitor failed to load")
	}

	m.controller.Start(parent)

	running := 0
	m.stateMu.RLock()
	for monitorType, e := range m.entries {
		if err := e.mon.Run(parent); err != nil {
			if m.logger != nil {
				m.logger.Printf("manager: %s: run: %v", monitorType, err)
			}
			continue
		}
		running++
	}
	m.stateMu.RUnlock()
	telemetry.MonitorsRunning.Set(float64(running))

	m.startHousekeeping(parent)

	return nil
}

// startHousekeeping spawns the periodic stats-reset goroutine. Idempotent
// within one Start/Stop cycle: Stop always cancels and joins whatever this
// call spawned before the fleet can be started again.
func (m *Manager) startHousekeeping(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	m.housekeepingCancel = cancel
	m.housekeepingWG.Add(1)
	go func() {
		defer m.housekeepingWG.Done()
		ticker := time.NewTicker(statsResetInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.ResetAllStats()
			}
		}
	}()
}

// ResetAllStats zeroes every currently running monitor's own event counters.
// Internal only: exercised by tests and the housekeeping goroutine above,
// no CLI surface.
func (m *Manager) ResetAllStats() {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	for _, e := range m.entries {
		e.mon.ResetStats()
	}
}

func (m *Manager) recordLoadError(monitorType string, err error) {
	if m.logger != nil {
		m.logger.Printf("manager: %s: %v", monitorType, err)
	}
	m.statsMu.Lock()
	m.loadErrors[monitorType] = err
	m.statsMu.Unlock()
	m.record("monitor_load", "failed", map[string]any{"monitor_type": monitorType, "error": err.Error()})
}

// LoadErrors returns the load/register failures recorded by Start, keyed by
// monitor type.
func (m *Manager) LoadErrors() map[string]error {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()
	out := make(map[string]error, len(m.loadErrors))
	for k, v := range m.loadErrors {
		out[k] = v
	}
	return out
}

// Stop halts every running monitor's drain loop, cleans up kernel
// resources, flushes and stops the output controller, and clears the fleet.
// Idempotent.
func (m *Manager) Stop() {
	m.stateMu.Lock()
	if !m.running {
		m.stateMu.Unlock()
		return
	}
	m.running = false
	entries := m.entries
	m.entries = make(map[string]*entry)
	cancel := m.housekeepingCancel
	m.housekeepingCancel = nil
	m.stateMu.Unlock()

	if cancel != nil {
		cancel()
		m.housekeepingWG.Wait()
	}

	// Stop every monitor's producer before the controller's final drain so
	// that drain pass sees whatever each monitor's FIFO holds at shutdown,
	// then only unregister afterward — Unregister itself performs no drain,
	// so running it before controller.Stop would drop any records still
	// buffered at that instant.
	for _, e := range entries {
		e.mon.Stop()
	}

	m.controller.Stop()

	for monitorType, e := range entries {
		e.mon.Cleanup()
		m.controller.Unregister(monitorType)
	}

	telemetry.MonitorsRunning.Set(0)
	telemetry.MonitorsLoaded.Set(0)
	m.record("manager_stop", "ok", map[string]any{"monitor_count": len(entries)})
}

// Status reports the lifecycle State of every monitor currently in the
// fleet.
func (m *Manager) Status() map[string]monitor.State {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	out := make(map[string]monitor.State, len(m.entries))
	for monitorType, e := range m.entries {
		out[monitorType] = e.mon.State()
	}
	return out
}
