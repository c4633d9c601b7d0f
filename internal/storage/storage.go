package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"ratewatch/internal/models"
)

// ErrCorrupt marks a history file that exists but cannot be parsed. It is
// fatal on purpose: silently discarding history is worse than stopping.
var ErrCorrupt = errors.New("history is not parseable")

// Store persists the append-only run history.
type Store interface {
	// Append adds one run entry and persists the updated sequence.
	Append(entry models.RunEntry) error
	// Latest returns the most recent run entry if one exists.
	Latest() (models.RunEntry, bool)
	// History returns a copy of the full ordered history, oldest first.
	History() []models.RunEntry
	// HistoryN returns a copy of up to limit most recent entries, oldest first.
	HistoryN(limit int) []models.RunEntry
	Close() error
}

// HistoryStore persists run history to a single JSON file.
type HistoryStore struct {
	mu      sync.RWMutex
	path    string
	history []models.RunEntry
}

// NewHistoryStore creates a store and loads existing history if present.
// A missing or empty file yields an empty history; an unparseable file
// fails with an error wrapping ErrCorrupt.
func NewHistoryStore(path string) (*HistoryStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure history directory: %w", err)
		}
	}

	s := &HistoryStore{path: path}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Append adds a new run entry and persists the full sequence to disk.
// Earlier entries are never reordered, mutated, or dropped.
func (s *HistoryStore) Append(entry models.RunEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append(s.history, entry)
	if err := s.persist(); err != nil {
		s.history = s.history[:len(s.history)-1]
		return err
	}
	return nil
}

// Latest returns the most recent run entry if one exists.
func (s *HistoryStore) Latest() (models.RunEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.history) == 0 {
		return models.RunEntry{}, false
	}
	return s.history[len(s.history)-1], true
}

// History returns a copy of the entire history slice, oldest first.
func (s *HistoryStore) History() []models.RunEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	copied := make([]models.RunEntry, len(s.history))
	copy(copied, s.history)
	return copied
}

// HistoryN returns a copy of the last limit entries, oldest first.
func (s *HistoryStore) HistoryN(limit int) []models.RunEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.history) {
		limit = len(s.history)
	}
	copied := make([]models.RunEntry, limit)
	copy(copied, s.history[len(s.history)-limit:])
	return copied
}

// Close is a no-op for the file-backed store.
func (s *HistoryStore) Close() error { return nil }

func (s *HistoryStore) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.history = []models.RunEntry{}
			return nil
		}
		return fmt.Errorf("read history: %w", err)
	}

	if len(data) == 0 {
		s.history = []models.RunEntry{}
		return nil
	}

	var entries []models.RunEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorrupt, s.path, err)
	}

	s.history = entries
	return nil
}

// persist writes the full sequence to a temp file and renames it into place,
// so a crash mid-write never leaves a truncated history behind.
func (s *HistoryStore) persist() error {
	encoded, err := json.MarshalIndent(s.history, "", "  ")
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}

	tmpPath := fmt.Sprintf("%s.%d.tmp", s.path, time.Now().UnixNano())
	if err := os.WriteFile(tmpPath, encoded, 0o644); err != nil {
		return fmt.Errorf("write temp history: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace history file: %w", err)
	}
	return nil
}
