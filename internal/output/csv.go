package output

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// csvSink owns one output file per monitor type, named
// "<type>_<YYYYMMDD_HHMMSS>.csv" under the configured output directory.
type csvSink struct {
	f             *os.File
	bw            *bufio.Writer
	w             *csv.Writer
	header        []string
	includeHeader bool
	rowsSince     int
	lastFlush     time.Time

	batchSize           int
	largeBatchThreshold int
	flushInterval       time.Duration
}

func newCSVSink(dir, monitorType string, header []string, delimiter rune, includeHeader bool,
	batchSize, largeBatchThreshold int, flushInterval time.Duration, stamp time.Time) (*csvSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("output: create dir %s: %w", dir, err)
	}
	name := fmt.Sprintf("%s_%s.csv", monitorType, stamp.Format("20060102_150405"))
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("output: open %s: %w", name, err)
	}

	bw := bufio.NewWriter(f)
	w := csv.NewWriter(bw)
	w.Comma = delimiter

	s := &csvSink{
		f: f, bw: bw, w: w,
		header:              header,
		includeHeader:       includeHeader,
		lastFlush:           stamp,
		batchSize:           batchSize,
		largeBatchThreshold: largeBatchThreshold,
		flushInterval:       flushInterval,
	}
	if includeHeader {
		if err := w.Write(header); err != nil {
			f.Close()
			return nil, fmt.Errorf("output: write header: %w", err)
		}
		w.Flush()
	}
	return s, nil
}

// writeRow serializes one CSV row using the monitor's header order, writing
// each field with fmt.Sprint so ints, floats, and strings all render
// sensibly without per-monitor formatting code.
func (s *csvSink) writeRow(toCSVRow map[string]any) error {
	record := make([]string, len(s.header))
	for i, col := range s.header {
		if v, ok := toCSVRow[col]; ok && v != nil {
			record[i] = fmt.Sprint(v)
		}
	}
	if err := s.w.Write(record); err != nil {
		return fmt.Errorf("output: write row: %w", err)
	}
	s.rowsSince++
	return nil
}

// maybeFlush flushes to the OS once a batch threshold or the flush interval
// has elapsed, amortizing the syscall cost of many small drain cycles.
func (s *csvSink) maybeFlush(now time.Time, batchLen int) {
	shouldFlush := s.rowsSince >= s.batchSize ||
		batchLen >= s.largeBatchThreshold ||
		now.Sub(s.lastFlush) >= s.flushInterval
	if !shouldFlush {
		return
	}
	s.flush(now)
}

func (s *csvSink) flush(now time.Time) {
	s.w.Flush()
	_ = s.bw.Flush()
	s.rowsSince = 0
	s.lastFlush = now
}

func (s *csvSink) close() error {
	s.w.Flush()
	_ = s.bw.Flush()
	return s.f.Close()
}
