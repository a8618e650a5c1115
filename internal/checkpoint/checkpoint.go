// Package checkpoint persists durable resume cursors, one per named crawl
// stage, so an interrupted run continues exactly where it stopped. The whole
// file is safe to delete to force a full re-crawl.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Cursor marks the next unit of work within a stage: the subject being
// processed and the index of the next item inside it.
type Cursor struct {
	Subject string `json:"subject"`
	Index   int    `json:"index"`
}

type entry struct {
	Cursor    Cursor    `json:"cursor"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store reads and writes the stage->cursor map backing file.
type Store struct {
	path string
}

// NewStore returns a store backed by path. The file is created lazily on the
// first Save.
func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) readAll() (map[string]entry, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return map[string]entry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read checkpoint file: %w", err)
	}
	entries := map[string]entry{}
	if err := json.Unmarshal(data, &entries); err != nil {
		// A corrupt checkpoint file only costs a full re-crawl.
		return map[string]entry{}, nil
	}
	return entries, nil
}

func (s *Store) writeAll(entries map[string]entry) error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create checkpoint dir: %w", err)
		}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoints: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write checkpoint file: %w", err)
	}
	return nil
}

// Load returns the cursor for stage, or ok=false when none is recorded.
func (s *Store) Load(stage string) (Cursor, bool, error) {
	entries, err := s.readAll()
	if err != nil {
		return Cursor{}, false, err
	}
	e, ok := entries[stage]
	return e.Cursor, ok, nil
}

// Save records the cursor for stage, called after every processed unit.
func (s *Store) Save(stage string, cursor Cursor) error {
	entries, err := s.readAll()
	if err != nil {
		return err
	}
	entries[stage] = entry{Cursor: cursor, UpdatedAt: time.Now().UTC()}
	return s.writeAll(entries)
}

// Clear removes the stage's cursor on clean completion.
func (s *Store) Clear(stage string) error {
	entries, err := s.readAll()
	if err != nil {
		return err
	}
	if _, ok := entries[stage]; !ok {
		return nil
	}
	delete(entries, stage)
	return s.writeAll(entries)
}
