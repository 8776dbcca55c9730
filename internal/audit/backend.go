package audit

import "github.com/google/uuid"

// TraceStore is the persistence contract both trace backends satisfy: the
// JSON-file Store (default, whole-file atomic rewrite) and the SQLite
// Store (one row per TraceEvent, for traces too large to comfortably hold
// as a single JSON document). replay.FromStore and the cmd/agentcore
// harness depend on this interface rather than either concrete type, so
// the backend choice is a config value (audit.backend: "json" | "sqlite"),
// not a call-site decision.
type TraceStore interface {
	Put(trace *ExecutionTrace) error
	Get(id uuid.UUID) (*ExecutionTrace, bool)
	List() []*ExecutionTrace
	Close() error
}

var (
	_ TraceStore = (*Store)(nil)
	_ TraceStore = (*SQLiteStore)(nil)
)

// Close is a no-op for the JSON file store: every Put already flushes to
// disk synchronously, so there is nothing left to release.
func (s *Store) Close() error { return nil }
