// Package history keeps an append-only newline-delimited log of crawl run
// summaries, read back only for recent-N views.
package history

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Record is one run summary line.
type Record struct {
	Timestamp time.Time      `json:"ts"`
	RunID     string         `json:"run_id,omitempty"`
	Event     string         `json:"event"`
	Counts    map[string]int `json:"counts,omitempty"`
}

// Log appends records to a JSONL file.
type Log struct {
	path string
}

// NewLog returns a log backed by path.
func NewLog(path string) *Log {
	return &Log{path: path}
}

// Append writes one record. Timestamp is stamped here when unset.
func (l *Log) Append(rec Record) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create history dir: %w", err)
		}
	}
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal history record: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open history file: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append history record: %w", err)
	}
	return nil
}

// Recent returns the newest limit records, optionally filtered by event.
// Malformed lines are skipped.
func (l *Log) Recent(event string, limit int) ([]Record, error) {
	f, err := os.Open(l.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open history file: %w", err)
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			continue
		}
		if event != "" && rec.Event != event {
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan history file: %w", err)
	}
	if limit > 0 && len(records) > limit {
		records = records[len(records)-limit:]
	}
	return records, nil
}
