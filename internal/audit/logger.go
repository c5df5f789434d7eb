// Package audit provides tamper-evident logging for ebpfmonitor's own
// lifecycle events: manager start, monitor load failures, and manager
// stop. It exists so an operator investigating a gap in
// telemetry (did the collector die, or was it stopped deliberately?) has a
// hash-chained record that is tamper-evident even if the process itself
// was compromised after the fact.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Entry represents a single audit log entry.
type Entry struct {
	Timestamp time.Time      `json:"timestamp"`
	Action    string         `json:"action"`
	Outcome   string         `json:"outcome"`
	Actor     string         `json:"actor"`
	Details   map[string]any `json:"details,omitempty"`
	PrevHash  string         `json:"prev_hash"`
	Hash      string         `json:"hash"`
}

// Logger provides append-only, tamper-evident logging.
type Logger struct {
	file     *os.File
	mu       sync.Mutex
	lastHash string
}

// NewLogger opens (or creates) path for append and resumes its hash chain
// from the last entry, if any.
func NewLogger(path string) (*Logger, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("audit: create directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("audit: open log: %w", err)
	}

	logger := &Logger{
		file:     file,
		lastHash: "genesis",
	}
	logger.loadLastHash(path)
	return logger, nil
}

// Log appends an action to the audit log, chaining it to the previous
// entry's hash. actor identifies the subsystem recording the event (e.g.
// "manager", "daemonctl"), not an end user.
func (l *Logger) Log(action, outcome, actor string, details map[string]any) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry := Entry{
		Timestamp: time.Now().UTC(),
		Action:    action,
		Outcome:   outcome,
		Actor:     actor,
		Details:   details,
		PrevHash:  l.lastHash,
	}
	entry.Hash = l.computeHash(entry)
	l.lastHash = entry.Hash

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("audit: marshal entry: %w", err)
	}
	if _, err := l.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("audit: write entry: %w", err)
	}
	return l.file.Sync()
}

// Close closes the underlying log file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

func (l *Logger) computeHash(entry Entry) string {
	hashInput := struct {
		Timestamp time.Time      `json:"timestamp"`
		Action    string         `json:"action"`
		Outcome   string         `json:"outcome"`
		Actor     string         `json:"actor"`
		Details   map[string]any `json:"details,omitempty"`
		PrevHash  string         `json:"prev_hash"`
	}{
		Timestamp: entry.Timestamp,
		Action:    entry.Action,
		Outcome:   entry.Outcome,
		Actor:     entry.Actor,
		Details:   entry.Details,
		PrevHash:  entry.PrevHash,
	}
	data, _ := json.Marshal(hashInput)
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

func (l *Logger) loadLastHash(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	lines := splitLines(data)
	for i := len(lines) - 1; i >= 0; i-- {
		if len(lines[i]) == 0 {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(lines[i], &entry); err == nil {
			l.lastHash = entry.Hash
			return
		}
	}
}

func splitLines(data []byte) [][]byte {
	var lines [][]byte
	start := 0
	for i, b := range data {
		if b == '\n' {
			lines = append(lines, data[start:i])
			start = i + 1
		}
	}
	if start < len(data) {
		lines = append(lines, data[start:])
	}
	return lines
}

// ReadAll reads every entry from the log file. A missing file is not an
// error; it reads as zero entries.
func ReadAll(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Entry{}, nil
		}
		return nil, fmt.Errorf("audit: read log: %w", err)
	}

	var entries []Entry
	for i, line := range splitLines(data) {
		if len(line) == 0 {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			return nil, fmt.Errorf("audit: parse entry %d: %w", i, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Verify walks the chain and reports whether every entry's prev_hash
// links to its predecessor and every hash matches its own content. A
// missing file verifies as valid (nothing to tamper with yet).
func Verify(path string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return true, nil
		}
		return false, fmt.Errorf("audit: read log: %w", err)
	}

	l := &Logger{}
	prevHash := "genesis"
	for i, line := range splitLines(data) {
		if len(line) == 0 {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			return false, fmt.Errorf("audit: parse entry %d: %w", i, err)
		}
		if entry.PrevHash != prevHash {
			return false, fmt.Errorf("audit: chain broken at entry %d (timestamp %s)", i, entry.Timestamp)
		}
		want := entry.Hash
		got := l.computeHash(entry)
		if got != want {
			return false, fmt.Errorf("audit: hash mismatch at entry %d (timestamp %s)", i, entry.Timestamp)
		}
		prevHash = entry.Hash
	}
	return true, nil
}
