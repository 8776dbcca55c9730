package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// Store persists ExecutionTraces as a single JSON array on disk, written
// atomically via temp-file-then-rename. Writes are serialized across
// concurrent traces; each trace itself is append-local and single-writer.
type Store struct {
	mu    sync.Mutex
	path  string
	cache map[uuid.UUID]*ExecutionTrace
}

// NewStore opens (or creates) the trace store backed by path. An absent
// file is treated as an empty store.
func NewStore(path string) (*Store, error) {
	s := &Store{path: path, cache: make(map[uuid.UUID]*ExecutionTrace)}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("audit store: reading %s: %w", path, err)
	}
	var traces []*ExecutionTrace
	if len(data) > 0 {
		if err := json.Unmarshal(data, &traces); err != nil {
			return nil, fmt.Errorf("audit store: parsing %s: %w", path, err)
		}
	}
	for _, t := range traces {
		s.cache[t.TraceID] = t
	}
	return s, nil
}

// Put records (or replaces) trace in the store and flushes to disk.
func (s *Store) Put(trace *ExecutionTrace) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache[trace.TraceID] = trace
	return s.flushLocked()
}

// Get returns the trace with the given id, or (nil, false) if absent.
func (s *Store) Get(id uuid.UUID) (*ExecutionTrace, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.cache[id]
	return t, ok
}

// List returns every trace currently in the store, in no particular order.
func (s *Store) List() []*ExecutionTrace {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*ExecutionTrace, 0, len(s.cache))
	for _, t := range s.cache {
		out = append(out, t)
	}
	return out
}

// flushLocked writes the full trace set to a temp file in the store's
// directory, then renames it over path, giving readers either the
// complete old file or the complete new one.
func (s *Store) flushLocked() error {
	traces := make([]*ExecutionTrace, 0, len(s.cache))
	for _, t := range s.cache {
		traces = append(traces, t)
	}

	data, err := json.MarshalIndent(traces, "", "  ")
	if err != nil {
		return fmt.Errorf("audit store: marshaling: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("audit store: creating %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".audit-*.json.tmp")
	if err != nil {
		return fmt.Errorf("audit store: creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("audit store: writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("audit store: closing temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("audit store: renaming into place: %w", err)
	}
	return nil
}
