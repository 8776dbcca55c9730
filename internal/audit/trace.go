// Package audit implements the append-only execution trace: the record of
// everything a single task run did, persisted for later review via
// internal/replay.
package audit

import (
	"time"

	"github.com/google/uuid"

	"github.com/corebrain/agentcore/internal/agent"
)

// TraceEventKind discriminates the tagged union carried by TraceEvent.
// Exactly one field cluster matching Kind is populated. Any kind the core
// does not recognize is still preserved verbatim by the JSONL store and
// rendered opaquely by the replay engine's describe/timeline views.
type TraceEventKind string

const (
	KindTaskStarted   TraceEventKind = "task_started"
	KindTaskCompleted TraceEventKind = "task_completed"

	KindToolRequested     TraceEventKind = "tool_requested"
	KindToolApproved      TraceEventKind = "tool_approved"
	KindToolDenied        TraceEventKind = "tool_denied"
	KindApprovalRequested TraceEventKind = "approval_requested"
	KindApprovalDecision  TraceEventKind = "approval_decision"
	KindToolExecuted      TraceEventKind = "tool_executed"
	KindLLMCall           TraceEventKind = "llm_call"
	KindStatusChange      TraceEventKind = "status_change"
	KindError             TraceEventKind = "error"

	// Supplemental variants, carried opaquely by the core state machine
	// but given first-class fields here because the Brain and Pricing
	// Cache emit them directly.
	KindPersonaSwitched         TraceEventKind = "persona_switched"
	KindCacheCreated            TraceEventKind = "cache_created"
	KindCacheInvalidated        TraceEventKind = "cache_invalidated"
	KindModelInferencePerformed TraceEventKind = "model_inference_performed"
)

// TraceEvent is one append-only entry in an ExecutionTrace. Sequence is
// strictly monotonic by insertion order within a trace; Timestamp reflects
// wall-clock time of the push_event call.
type TraceEvent struct {
	Sequence  int            `json:"sequence"`
	Timestamp time.Time      `json:"timestamp"`
	Kind      TraceEventKind `json:"kind"`

	TaskID  string `json:"task_id,omitempty"`
	Goal    string `json:"goal,omitempty"`
	Success bool   `json:"success,omitempty"`

	Iterations int `json:"iterations,omitempty"`

	Tool         string          `json:"tool,omitempty"`
	RiskLevel    agent.RiskLevel `json:"risk_level,omitempty"`
	ArgsSummary  string          `json:"args_summary,omitempty"`
	Reason       string          `json:"reason,omitempty"`
	Context      string          `json:"context,omitempty"`
	Approved     bool            `json:"approved,omitempty"`
	DurationMS   int64           `json:"duration_ms,omitempty"`
	OutputPreview string         `json:"output_preview,omitempty"`

	Model        string  `json:"model,omitempty"`
	InputTokens  int     `json:"input_tokens,omitempty"`
	OutputTokens int     `json:"output_tokens,omitempty"`
	Cost         float64 `json:"cost,omitempty"`
	LatencyMS    int64   `json:"latency_ms,omitempty"`
	Backend      string  `json:"backend,omitempty"`

	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`

	Message string `json:"message,omitempty"`

	CacheKey string `json:"cache_key,omitempty"`
}

// ExecutionTrace is the append-only record of a single task run.
type ExecutionTrace struct {
	TraceID     uuid.UUID    `json:"trace_id"`
	SessionID   uuid.UUID    `json:"session_id"`
	TaskID      uuid.UUID    `json:"task_id"`
	Goal        string       `json:"goal"`
	Events      []TraceEvent `json:"events"`
	StartedAt   time.Time    `json:"started_at"`
	Iterations  int          `json:"iterations"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
	Success     *bool        `json:"success,omitempty"`
}

// New allocates a fresh trace and pushes its TaskStarted event at
// sequence 0.
func New(sessionID, taskID uuid.UUID, goal string) *ExecutionTrace {
	t := &ExecutionTrace{
		TraceID:   uuid.New(),
		SessionID: sessionID,
		TaskID:    taskID,
		Goal:      goal,
		StartedAt: time.Now(),
	}
	t.PushEvent(TraceEvent{Kind: KindTaskStarted, TaskID: taskID.String(), Goal: goal})
	return t
}

// PushEvent appends kind with the next sequence number and current
// timestamp. Callers MUST NOT call PushEvent after Complete: the trace is
// append-only up to its terminal TaskCompleted event.
func (t *ExecutionTrace) PushEvent(kind TraceEvent) {
	kind.Sequence = len(t.Events)
	kind.Timestamp = time.Now()
	t.Events = append(t.Events, kind)
}

// Complete freezes the trace: it records completed_at, increments
// Iterations to its final value, and appends the terminal TaskCompleted
// event.
func (t *ExecutionTrace) Complete(success bool, iterations int) {
	now := time.Now()
	t.CompletedAt = &now
	t.Iterations = iterations
	t.Success = &success
	t.PushEvent(TraceEvent{
		Kind:       KindTaskCompleted,
		TaskID:     t.TaskID.String(),
		Success:    success,
		Iterations: iterations,
	})
}
