// Package output drains monitor records into CSV files and the console.
//
// A single consumer goroutine round-robins every registered monitor's
// bounded FIFO on each tick, so one slow sink never blocks another
// monitor's producer: StartDrainLoop only ever blocks on a fifo push, and
// push itself never blocks (it head-drops instead).
package output

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/mackeh/ebpfmonitor/internal/config"
	"github.com/mackeh/ebpfmonitor/internal/monitor"
	"github.com/mackeh/ebpfmonitor/internal/telemetry"
)

const joinTimeout = 5 * time.Second

type formatter struct {
	csvRow        func(monitor.Record) map[string]any
	consoleHeader string
	consoleRow    func(monitor.Record) string
}

// Controller is the process-wide monitor.Sink implementation: it owns one
// bounded FIFO, one CSV file, and one set of formatter callbacks per
// registered monitor type, and drains all of them from a single goroutine.
//
// Four locks guard disjoint state so registration, running status, and
// statistics never contend with each other: registryMu for the per-type
// maps, runMu for the lifecycle flag and cancel func, statsMu for the
// cross-goroutine-visible drop counters, and the consoleSink's own
// internal lock for interleaved console writes.
type Controller struct {
	cfg    config.OutputConfig
	logger *log.Logger
	console *consoleSink

	registryMu sync.RWMutex
	queues     map[string]*fifo
	csvSinks   map[string]*csvSink
	formatters map[string]formatter

	runMu   sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	statsMu sync.Mutex
	dropped map[string]uint64
}

// NewController builds a Controller over cfg, writing console output to w
// (pass io.Discard to disable console entirely).
func NewController(cfg config.OutputConfig, w io.Writer, logger *log.Logger) *Controller {
	if w == nil {
		w = io.Discard
	}
	return &Controller{
		cfg:        cfg,
		logger:     logger,
		console:    newConsoleSink(w),
		queues:     make(map[string]*fifo),
		csvSinks:   make(map[string]*csvSink),
		formatters: make(map[string]formatter),
		dropped:    make(map[string]uint64),
	}
}

// Register opens m's CSV file and wires its formatter callbacks, creating
// its bounded FIFO. stamp names the CSV file, normally the controller's
// start time so every monitor's file shares one run's timestamp.
func (c *Controller) Register(monitorType string, m monitor.Monitor, stamp time.Time) error {
	sink, err := newCSVSink(c.cfg.Dir, monitorType, m.CSVHeader(), rune(c.cfg.CSVDelimiter[0]),
		c.cfg.IncludeHeader, c.cfg.BatchSize, c.cfg.LargeBatchThreshold,
		time.Duration(c.cfg.FlushIntervalS*float64(time.Second)), stamp)
	if err != nil {
		return fmt.Errorf("output: register %s: %w", monitorType, err)
	}

	c.registryMu.Lock()
	defer c.registryMu.Unlock()
	c.queues[monitorType] = newFIFO(c.cfg.BufferSize)
	c.csvSinks[monitorType] = sink
	c.formatters[monitorType] = formatter{
		csvRow:        m.CSVRow,
		consoleHeader: m.ConsoleHeader(),
		consoleRow:    m.ConsoleRow,
	}
	return nil
}

// Unregister flushes and closes monitorType's CSV file and drops its queue.
func (c *Controller) Unregister(monitorType string) {
	c.registryMu.Lock()
	defer c.registryMu.Unlock()
	if sink, ok := c.csvSinks[monitorType]; ok {
		_ = sink.close()
	}
	delete(c.csvSinks, monitorType)
	delete(c.queues, monitorType)
	delete(c.formatters, monitorType)
}

// WriteRow implements monitor.Sink: it enqueues row on monitorType's FIFO,
// counting (but not blocking on) any head-drop.
func (c *Controller) WriteRow(monitorType string, row map[string]any) error {
	c.registryMu.RLock()
	q, ok := c.queues[monitorType]
	c.registryMu.RUnlock()
	if !ok {
		return fmt.Errorf("output: %s is not registered", monitorType)
	}

	rec := monitor.Record(row)
	c.registryMu.Lock()
	dropped := q.push(rec)
	c.registryMu.Unlock()

	if dropped {
		c.statsMu.Lock()
		c.dropped[monitorType]++
		c.statsMu.Unlock()
		telemetry.RecordsDroppedTotal.WithLabelValues(monitorType).Inc()
	}
	return nil
}

// Flush forces an immediate CSV flush for monitorType, used by explicit
// shutdown paths that must not lose buffered rows still sitting in bufio.
func (c *Controller) Flush(monitorType string) error {
	c.registryMu.Lock()
	defer c.registryMu.Unlock()
	sink, ok := c.csvSinks[monitorType]
	if !ok {
		return fmt.Errorf("output: %s is not registered", monitorType)
	}
	sink.flush(time.Now())
	return nil
}

// Dropped returns the cumulative head-drop count per monitor type.
func (c *Controller) Dropped() map[string]uint64 {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	out := make(map[string]uint64, len(c.dropped))
	for k, v := range c.dropped {
		out[k] = v
	}
	return out
}

// Start launches the single consumer goroutine. Idempotent: a second call
// while already running is a no-op.
func (c *Controller) Start(parent context.Context) {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	if c.running {
		return
	}
	ctx, cancel := context.WithCancel(parent)
	c.cancel = cancel
	c.running = true

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.consumeLoop(ctx)
	}()
}

func (c *Controller) consumeLoop(ctx context.Context) {
	interval := time.Duration(c.cfg.ThreadSleepS * float64(time.Second))
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.drainOnce()
			return
		case <-ticker.C:
			c.drainOnce()
		}
	}
}

// drainOnce pulls every monitor type's buffered records once and writes
// them to CSV, and to the console too when exactly one monitor type is
// registered — with more than one, interleaved per-row console output is
// unreadable, so only the CSV files get written.
func (c *Controller) drainOnce() {
	c.registryMu.Lock()
	types := make([]string, 0, len(c.queues))
	for t := range c.queues {
		types = append(types, t)
	}
	toConsole := len(types) == 1

	now := time.Now()
	for _, t := range types {
		q := c.queues[t]
		records := q.drain()
		if len(records) == 0 {
			continue
		}
		sink := c.csvSinks[t]
		fmtr := c.formatters[t]

		for _, rec := range records {
			if err := sink.writeRow(fmtr.csvRow(rec)); err != nil && c.logger != nil {
				c.logger.Printf("output: %s: %v", t, err)
			}
			if toConsole {
				c.console.writeRow(t, fmtr.consoleHeader, fmtr.consoleRow(rec))
			}
		}
		sink.maybeFlush(now, len(records))
		telemetry.RecordsEmittedTotal.WithLabelValues(t).Add(float64(len(records)))
	}
	c.registryMu.Unlock()
}

// Stop cancels the consumer goroutine, waits up to joinTimeout for it to
// finish its final drain pass, then flushes and closes every CSV file
// regardless of whether the goroutine joined in time.
func (c *Controller) Stop() {
	c.runMu.Lock()
	if !c.running {
		c.runMu.Unlock()
		return
	}
	c.running = false
	cancel := c.cancel
	c.runMu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(joinTimeout):
		if c.logger != nil {
			c.logger.Printf("output: consumer goroutine did not join within %s", joinTimeout)
		}
	}

	c.registryMu.Lock()
	defer c.registryMu.Unlock()
	for _, sink := range c.csvSinks {
		sink.flush(time.Now())
		_ = sink.close()
	}
}
