// Package replay implements step-by-step playback of recorded execution
// traces: a cursor over trace events with cumulative usage/cost
// projection, bookmarks, and a timeline view.
package replay

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/corebrain/agentcore/internal/agent"
	"github.com/corebrain/agentcore/internal/audit"
)

// Error is the structured error type for out-of-bounds replay operations.
type Error struct {
	Kind     string
	Position int
	Total    int
}

func (e *Error) Error() string {
	switch e.Kind {
	case "out_of_bounds":
		return fmt.Sprintf("position %d out of bounds (total: %d)", e.Position, e.Total)
	case "bookmark_not_found":
		return fmt.Sprintf("bookmark index %d out of bounds", e.Position)
	case "empty_trace":
		return "empty trace: no events to replay"
	default:
		return "trace not found"
	}
}

func errOutOfBounds(position, total int) error {
	return &Error{Kind: "out_of_bounds", Position: position, Total: total}
}

func errBookmarkNotFound(index int) error {
	return &Error{Kind: "bookmark_not_found", Position: index}
}

// Bookmark is a saved position in a replay.
type Bookmark struct {
	Position  int
	Label     string
	CreatedAt time.Time
}

// Snapshot is a point-in-time projection of the replay state at its
// current cursor position.
type Snapshot struct {
	TraceID            uuid.UUID
	Position           int
	TotalEvents        int
	ProgressPct        float64
	CurrentEvent       *audit.TraceEvent
	ElapsedFromStart   *int64
	CumulativeUsage    agent.TokenUsage
	CumulativeCost     agent.Cost
	ToolsExecutedSoFar []string
	ErrorsSoFar        int
}

// TimelineEntry is one projected row in a full-trace timeline view.
type TimelineEntry struct {
	Sequence     int
	Timestamp    time.Time
	ElapsedMS    int64
	Description  string
	IsCurrent    bool
	IsBookmarked bool
}

// Engine is the main replay controller: step-by-step playback of a single
// ExecutionTrace.
//
// Grounded on rustant-core's ReplayEngine; the teacher's own trace.go
// TraceReplayer was forward-only (no step_backward/seek/bookmarks), so the
// richer bidirectional semantics here follow the original implementation.
type Engine struct {
	trace     *audit.ExecutionTrace
	position  int
	bookmarks []Bookmark
}

// NewEngine returns a replay positioned at the first event of trace.
func NewEngine(trace *audit.ExecutionTrace) *Engine {
	return &Engine{trace: trace}
}

// FromStore loads the trace identified by id from store and returns a
// replay over it. store need only satisfy Get, so either the JSON-file
// Store or the SQLite Store works here unchanged.
func FromStore(store audit.TraceStore, id uuid.UUID) (*Engine, error) {
	trace, ok := store.Get(id)
	if !ok {
		return nil, &Error{Kind: "trace_not_found"}
	}
	return NewEngine(trace), nil
}

func (e *Engine) Position() int    { return e.position }
func (e *Engine) TotalEvents() int { return len(e.trace.Events) }
func (e *Engine) IsAtStart() bool  { return e.position == 0 }
func (e *Engine) IsAtEnd() bool {
	return len(e.trace.Events) == 0 || e.position >= len(e.trace.Events)-1
}

// StepForward advances the cursor by one event, returning nil if already
// at the end.
func (e *Engine) StepForward() *audit.TraceEvent {
	if e.position+1 < len(e.trace.Events) {
		e.position++
		return &e.trace.Events[e.position]
	}
	return nil
}

// StepBackward retreats the cursor by one event, returning nil if already
// at the start.
func (e *Engine) StepBackward() *audit.TraceEvent {
	if e.position > 0 {
		e.position--
		return &e.trace.Events[e.position]
	}
	return nil
}

// Seek jumps the cursor to position.
func (e *Engine) Seek(position int) (*audit.TraceEvent, error) {
	if position < 0 || position >= len(e.trace.Events) {
		return nil, errOutOfBounds(position, len(e.trace.Events))
	}
	e.position = position
	return &e.trace.Events[e.position], nil
}

func (e *Engine) Rewind() { e.position = 0 }

func (e *Engine) FastForward() {
	if len(e.trace.Events) > 0 {
		e.position = len(e.trace.Events) - 1
	}
}

// CurrentEvent returns the event at the cursor, or nil if the trace is
// empty.
func (e *Engine) CurrentEvent() *audit.TraceEvent {
	if e.position < 0 || e.position >= len(e.trace.Events) {
		return nil
	}
	return &e.trace.Events[e.position]
}

// Snapshot projects cumulative state over the inclusive prefix
// events[0..=position].
func (e *Engine) Snapshot() Snapshot {
	total := len(e.trace.Events)
	snap := Snapshot{
		TraceID:     e.trace.TraceID,
		Position:    e.position,
		TotalEvents: total,
	}

	if cur := e.CurrentEvent(); cur != nil {
		c := *cur
		snap.CurrentEvent = &c
		elapsed := cur.Timestamp.Sub(e.trace.StartedAt).Milliseconds()
		if elapsed < 0 {
			elapsed = 0
		}
		snap.ElapsedFromStart = &elapsed
	}

	switch {
	case total == 0:
		snap.ProgressPct = 0
	case total == 1:
		snap.ProgressPct = 100
	default:
		snap.ProgressPct = 100 * float64(e.position) / float64(total-1)
	}

	end := 0
	if total > 0 {
		end = e.position + 1
	}
	for _, ev := range e.trace.Events[:end] {
		switch ev.Kind {
		case audit.KindToolExecuted:
			snap.ToolsExecutedSoFar = append(snap.ToolsExecutedSoFar, ev.Tool)
		case audit.KindError:
			snap.ErrorsSoFar++
		}
	}
	snap.CumulativeUsage = e.cumulativeUsage(end)
	snap.CumulativeCost = e.cumulativeCost(end)

	return snap
}

func (e *Engine) cumulativeUsage(end int) agent.TokenUsage {
	var usage agent.TokenUsage
	for _, ev := range e.trace.Events[:end] {
		if ev.Kind == audit.KindLLMCall {
			usage.InputTokens += ev.InputTokens
			usage.OutputTokens += ev.OutputTokens
		}
	}
	return usage
}

func (e *Engine) cumulativeCost(end int) agent.Cost {
	var cost agent.Cost
	for _, ev := range e.trace.Events[:end] {
		if ev.Kind != audit.KindLLMCall {
			continue
		}
		total := ev.InputTokens + ev.OutputTokens
		if total <= 0 {
			continue
		}
		cost.Input += ev.Cost * float64(ev.InputTokens) / float64(total)
		cost.Output += ev.Cost * float64(ev.OutputTokens) / float64(total)
	}
	return cost
}

// DescribeCurrent formats the current position as "[i/n] <description>".
func (e *Engine) DescribeCurrent() string {
	cur := e.CurrentEvent()
	if cur == nil {
		return "No events"
	}
	return fmt.Sprintf("[%d/%d] %s", e.position+1, e.TotalEvents(), describeEvent(cur))
}

// Timeline projects every event in the trace to a TimelineEntry.
func (e *Engine) Timeline() []TimelineEntry {
	bookmarked := make(map[int]bool, len(e.bookmarks))
	for _, b := range e.bookmarks {
		bookmarked[b.Position] = true
	}

	entries := make([]TimelineEntry, 0, len(e.trace.Events))
	for _, ev := range e.trace.Events {
		elapsed := ev.Timestamp.Sub(e.trace.StartedAt).Milliseconds()
		if elapsed < 0 {
			elapsed = 0
		}
		entries = append(entries, TimelineEntry{
			Sequence:     ev.Sequence,
			Timestamp:    ev.Timestamp,
			ElapsedMS:    elapsed,
			Description:  describeEvent(&ev),
			IsCurrent:    ev.Sequence == e.position,
			IsBookmarked: bookmarked[ev.Sequence],
		})
	}
	return entries
}

// AddBookmark saves the current position under label.
func (e *Engine) AddBookmark(label string) {
	e.bookmarks = append(e.bookmarks, Bookmark{Position: e.position, Label: label, CreatedAt: time.Now()})
}

func (e *Engine) Bookmarks() []Bookmark { return e.bookmarks }

// GotoBookmark seeks to the position saved under bookmark index.
func (e *Engine) GotoBookmark(index int) (*audit.TraceEvent, error) {
	if index < 0 || index >= len(e.bookmarks) {
		return nil, errBookmarkNotFound(index)
	}
	return e.Seek(e.bookmarks[index].Position)
}

func (e *Engine) Trace() *audit.ExecutionTrace { return e.trace }

// SkipToNextToolEvent advances the cursor to the first tool-related event
// after the current position, leaving the cursor unchanged if none exists.
func (e *Engine) SkipToNextToolEvent() *audit.TraceEvent {
	for i := e.position + 1; i < len(e.trace.Events); i++ {
		switch e.trace.Events[i].Kind {
		case audit.KindToolRequested, audit.KindToolApproved, audit.KindToolDenied, audit.KindToolExecuted:
			e.position = i
			return &e.trace.Events[i]
		}
	}
	return nil
}

// describeEvent formats kind as a single-line human-readable phrase.
// Event kinds the core does not recognize are still rendered by name.
func describeEvent(ev *audit.TraceEvent) string {
	switch ev.Kind {
	case audit.KindTaskStarted:
		return fmt.Sprintf("Task started: %s", ev.Goal)
	case audit.KindTaskCompleted:
		status := "failed"
		if ev.Success {
			status = "completed successfully"
		}
		return fmt.Sprintf("Task %s after %d iterations", status, ev.Iterations)
	case audit.KindToolRequested:
		return fmt.Sprintf("Tool requested: %s (risk: %s)", ev.Tool, ev.RiskLevel)
	case audit.KindToolApproved:
		return fmt.Sprintf("Tool approved: %s", ev.Tool)
	case audit.KindToolDenied:
		return fmt.Sprintf("Tool denied: %s - %s", ev.Tool, ev.Reason)
	case audit.KindApprovalRequested:
		return fmt.Sprintf("Approval requested for: %s", ev.Tool)
	case audit.KindApprovalDecision:
		decision := "rejected"
		if ev.Approved {
			decision = "granted"
		}
		return fmt.Sprintf("Approval %s: %s", decision, ev.Tool)
	case audit.KindToolExecuted:
		status := "failed"
		if ev.Success {
			status = "ok"
		}
		return fmt.Sprintf("Tool executed: %s (%s, %dms)", ev.Tool, status, ev.DurationMS)
	case audit.KindLLMCall:
		return fmt.Sprintf("LLM call: %s (%d/%d tokens)", ev.Model, ev.InputTokens, ev.OutputTokens)
	case audit.KindStatusChange:
		return fmt.Sprintf("Status: %s -> %s", ev.From, ev.To)
	case audit.KindError:
		return fmt.Sprintf("Error: %s", ev.Message)
	case audit.KindPersonaSwitched:
		return fmt.Sprintf("Persona switched: %s -> %s", ev.From, ev.To)
	case audit.KindCacheCreated:
		return fmt.Sprintf("Cache created: %s", ev.CacheKey)
	case audit.KindCacheInvalidated:
		return fmt.Sprintf("Cache invalidated: %s (%s)", ev.CacheKey, ev.Reason)
	case audit.KindModelInferencePerformed:
		return fmt.Sprintf("Model inference: %s (%s)", ev.Model, ev.Backend)
	default:
		return string(ev.Kind)
	}
}
