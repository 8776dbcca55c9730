package audit

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore is the one-row-per-TraceEvent alternative to Store, for
// traces too large to comfortably hold as a single in-memory JSON document.
// Grounded on the teacher's sqlite-backed storage idiom (database/sql over
// a driver-registered connection, schema created on open) but using
// modernc.org/sqlite's pure-Go driver rather than a cgo binding, so the
// binary stays cgo-free like the rest of this module.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if absent) a SQLite-backed trace store at
// path and ensures its schema exists.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("audit sqlite store: opening %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite connections aren't safely shared across goroutines.

	if _, err := db.Exec(schemaDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit sqlite store: creating schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS traces (
	trace_id     TEXT PRIMARY KEY,
	session_id   TEXT NOT NULL,
	task_id      TEXT NOT NULL,
	goal         TEXT NOT NULL,
	started_at   TEXT NOT NULL,
	completed_at TEXT,
	success      INTEGER,
	iterations   INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS trace_events (
	trace_id TEXT NOT NULL,
	sequence INTEGER NOT NULL,
	payload  TEXT NOT NULL,
	PRIMARY KEY (trace_id, sequence)
);
`

// Put upserts trace's metadata row and replaces its full event set inside
// a single transaction, mirroring Store's whole-trace-at-a-time semantics
// at the row level instead of the file level.
func (s *SQLiteStore) Put(trace *ExecutionTrace) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("audit sqlite store: begin: %w", err)
	}
	defer tx.Rollback()

	var completedAt any
	if trace.CompletedAt != nil {
		completedAt = trace.CompletedAt.Format(time.RFC3339Nano)
	}
	var success any
	if trace.Success != nil {
		success = *trace.Success
	}

	if _, err := tx.Exec(
		`INSERT INTO traces (trace_id, session_id, task_id, goal, started_at, completed_at, success, iterations)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(trace_id) DO UPDATE SET
		   session_id=excluded.session_id, task_id=excluded.task_id, goal=excluded.goal,
		   started_at=excluded.started_at, completed_at=excluded.completed_at,
		   success=excluded.success, iterations=excluded.iterations`,
		trace.TraceID.String(), trace.SessionID.String(), trace.TaskID.String(), trace.Goal,
		trace.StartedAt.Format(time.RFC3339Nano), completedAt, success, trace.Iterations,
	); err != nil {
		return fmt.Errorf("audit sqlite store: upserting trace: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM trace_events WHERE trace_id = ?`, trace.TraceID.String()); err != nil {
		return fmt.Errorf("audit sqlite store: clearing events: %w", err)
	}
	for _, ev := range trace.Events {
		payload, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("audit sqlite store: marshaling event: %w", err)
		}
		if _, err := tx.Exec(
			`INSERT INTO trace_events (trace_id, sequence, payload) VALUES (?, ?, ?)`,
			trace.TraceID.String(), ev.Sequence, string(payload),
		); err != nil {
			return fmt.Errorf("audit sqlite store: inserting event: %w", err)
		}
	}

	return tx.Commit()
}

// Get reassembles the trace identified by id from its metadata row and
// ordered event rows.
func (s *SQLiteStore) Get(id uuid.UUID) (*ExecutionTrace, bool) {
	row := s.db.QueryRow(
		`SELECT session_id, task_id, goal, started_at, completed_at, success, iterations
		 FROM traces WHERE trace_id = ?`, id.String())

	trace, ok := scanTraceRow(row, id)
	if !ok {
		return nil, false
	}

	events, err := s.loadEvents(id)
	if err != nil {
		return nil, false
	}
	trace.Events = events
	return trace, true
}

// List returns every trace in the store, in no particular order.
func (s *SQLiteStore) List() []*ExecutionTrace {
	rows, err := s.db.Query(`SELECT trace_id FROM traces`)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var idStr string
		if err := rows.Scan(&idStr); err != nil {
			continue
		}
		id, err := uuid.Parse(idStr)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}

	out := make([]*ExecutionTrace, 0, len(ids))
	for _, id := range ids {
		if t, ok := s.Get(id); ok {
			out = append(out, t)
		}
	}
	return out
}

// Close releases the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTraceRow(row rowScanner, id uuid.UUID) (*ExecutionTrace, bool) {
	var (
		sessionID, taskID, goal, startedAt string
		completedAt                        sql.NullString
		success                            sql.NullBool
		iterations                         int
	)
	if err := row.Scan(&sessionID, &taskID, &goal, &startedAt, &completedAt, &success, &iterations); err != nil {
		return nil, false
	}

	trace := &ExecutionTrace{
		TraceID:    id,
		Goal:       goal,
		Iterations: iterations,
	}
	if sid, err := uuid.Parse(sessionID); err == nil {
		trace.SessionID = sid
	}
	if tid, err := uuid.Parse(taskID); err == nil {
		trace.TaskID = tid
	}
	if ts, err := time.Parse(time.RFC3339Nano, startedAt); err == nil {
		trace.StartedAt = ts
	}
	if completedAt.Valid {
		if ts, err := time.Parse(time.RFC3339Nano, completedAt.String); err == nil {
			trace.CompletedAt = &ts
		}
	}
	if success.Valid {
		v := success.Bool
		trace.Success = &v
	}
	return trace, true
}

func (s *SQLiteStore) loadEvents(id uuid.UUID) ([]TraceEvent, error) {
	rows, err := s.db.Query(
		`SELECT sequence, payload FROM trace_events WHERE trace_id = ? ORDER BY sequence ASC`, id.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []TraceEvent
	for rows.Next() {
		var sequence int
		var payload string
		if err := rows.Scan(&sequence, &payload); err != nil {
			return nil, err
		}
		var ev TraceEvent
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Sequence < events[j].Sequence })
	return events, rows.Err()
}
