package replay

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/corebrain/agentcore/internal/audit"
)

// sampleTrace builds a 6-event trace: task started, a tool request/exec
// pair, an LLM call, a tool error, and task completed.
func sampleTrace(t *testing.T) *audit.ExecutionTrace {
	t.Helper()
	trace := audit.New(uuid.New(), uuid.New(), "fix the bug")
	trace.PushEvent(audit.TraceEvent{Kind: audit.KindToolRequested, Tool: "read_file"})
	trace.PushEvent(audit.TraceEvent{Kind: audit.KindToolExecuted, Tool: "read_file", Success: true, DurationMS: 12})
	trace.PushEvent(audit.TraceEvent{Kind: audit.KindLLMCall, Model: "gpt-4o", InputTokens: 100, OutputTokens: 50, Cost: 0.003})
	trace.PushEvent(audit.TraceEvent{Kind: audit.KindError, Message: "tool timed out"})
	trace.Complete(true, 1)
	return trace
}

func TestEngineStartsAtFirstEvent(t *testing.T) {
	e := NewEngine(sampleTrace(t))
	if !e.IsAtStart() {
		t.Error("new engine should start at position 0")
	}
	if e.CurrentEvent().Kind != audit.KindTaskStarted {
		t.Errorf("CurrentEvent().Kind = %v, want KindTaskStarted", e.CurrentEvent().Kind)
	}
}

func TestEngineStepForwardAndBackward(t *testing.T) {
	e := NewEngine(sampleTrace(t))
	ev := e.StepForward()
	if ev == nil || ev.Kind != audit.KindToolRequested {
		t.Fatalf("StepForward() = %v, want KindToolRequested", ev)
	}
	if e.Position() != 1 {
		t.Errorf("Position() = %d, want 1", e.Position())
	}

	back := e.StepBackward()
	if back == nil || back.Kind != audit.KindTaskStarted {
		t.Fatalf("StepBackward() = %v, want KindTaskStarted", back)
	}
	if e.StepBackward() != nil {
		t.Error("StepBackward() at position 0 should return nil")
	}
}

func TestEngineStepForwardStopsAtEnd(t *testing.T) {
	e := NewEngine(sampleTrace(t))
	e.FastForward()
	if !e.IsAtEnd() {
		t.Fatal("FastForward should leave the engine at the end")
	}
	if e.StepForward() != nil {
		t.Error("StepForward() at the end should return nil")
	}
}

func TestEngineSeekOutOfBounds(t *testing.T) {
	e := NewEngine(sampleTrace(t))
	if _, err := e.Seek(999); err == nil {
		t.Error("Seek(999) should fail for an out-of-range position")
	}
	if _, err := e.Seek(-1); err == nil {
		t.Error("Seek(-1) should fail")
	}
	ev, err := e.Seek(2)
	if err != nil {
		t.Fatalf("Seek(2): %v", err)
	}
	if ev.Kind != audit.KindLLMCall {
		t.Errorf("Seek(2) event kind = %v, want KindLLMCall", ev.Kind)
	}
}

func TestEngineRewindAndFastForward(t *testing.T) {
	e := NewEngine(sampleTrace(t))
	e.FastForward()
	last := e.TotalEvents() - 1
	if e.Position() != last {
		t.Errorf("FastForward position = %d, want %d", e.Position(), last)
	}
	e.Rewind()
	if e.Position() != 0 {
		t.Errorf("Rewind position = %d, want 0", e.Position())
	}
}

func TestEngineSnapshotCumulativeUsage(t *testing.T) {
	e := NewEngine(sampleTrace(t))
	e.Seek(3) // positioned at the LLM call event (0-indexed: started, requested, executed, llm_call)

	snap := e.Snapshot()
	if snap.CumulativeUsage.InputTokens != 100 || snap.CumulativeUsage.OutputTokens != 50 {
		t.Errorf("CumulativeUsage = %+v, want 100/50", snap.CumulativeUsage)
	}
	if snap.Position != 3 {
		t.Errorf("Snapshot.Position = %d, want 3", snap.Position)
	}
}

func TestEngineSnapshotProgressPct(t *testing.T) {
	e := NewEngine(sampleTrace(t))
	e.FastForward()
	snap := e.Snapshot()
	if snap.ProgressPct != 100 {
		t.Errorf("ProgressPct at end = %v, want 100", snap.ProgressPct)
	}

	e.Rewind()
	snap = e.Snapshot()
	if snap.ProgressPct != 0 {
		t.Errorf("ProgressPct at start = %v, want 0", snap.ProgressPct)
	}
}

func TestEngineBookmarks(t *testing.T) {
	e := NewEngine(sampleTrace(t))
	e.Seek(2)
	e.AddBookmark("after tool exec")

	bookmarks := e.Bookmarks()
	if len(bookmarks) != 1 || bookmarks[0].Position != 2 {
		t.Fatalf("Bookmarks() = %+v, want one bookmark at position 2", bookmarks)
	}

	e.Rewind()
	ev, err := e.GotoBookmark(0)
	if err != nil {
		t.Fatalf("GotoBookmark(0): %v", err)
	}
	if e.Position() != 2 {
		t.Errorf("position after GotoBookmark = %d, want 2", e.Position())
	}
	if ev.Kind != audit.KindToolExecuted {
		t.Errorf("GotoBookmark event kind = %v, want KindToolExecuted", ev.Kind)
	}

	if _, err := e.GotoBookmark(5); err == nil {
		t.Error("GotoBookmark(5) should fail: no such bookmark")
	}
}

func TestEngineSkipToNextToolEvent(t *testing.T) {
	e := NewEngine(sampleTrace(t))
	ev := e.SkipToNextToolEvent()
	if ev == nil || ev.Kind != audit.KindToolRequested {
		t.Fatalf("SkipToNextToolEvent() = %v, want KindToolRequested", ev)
	}
	ev = e.SkipToNextToolEvent()
	if ev == nil || ev.Kind != audit.KindToolExecuted {
		t.Fatalf("SkipToNextToolEvent() = %v, want KindToolExecuted", ev)
	}
	// no more tool events after this; cursor should stay put.
	pos := e.Position()
	if e.SkipToNextToolEvent() != nil {
		t.Error("SkipToNextToolEvent() should return nil when no tool events remain")
	}
	if e.Position() != pos {
		t.Error("SkipToNextToolEvent() must not move the cursor when nothing found")
	}
}

func TestEngineTimelineMarksCurrentAndBookmarked(t *testing.T) {
	e := NewEngine(sampleTrace(t))
	e.Seek(1)
	e.AddBookmark("mark")

	timeline := e.Timeline()
	if len(timeline) != e.TotalEvents() {
		t.Fatalf("len(Timeline()) = %d, want %d", len(timeline), e.TotalEvents())
	}
	if !timeline[1].IsCurrent || !timeline[1].IsBookmarked {
		t.Errorf("Timeline()[1] = %+v, want IsCurrent and IsBookmarked true", timeline[1])
	}
	if timeline[0].IsCurrent {
		t.Error("Timeline()[0].IsCurrent should be false")
	}
}

func TestEngineDescribeCurrent(t *testing.T) {
	e := NewEngine(sampleTrace(t))
	desc := e.DescribeCurrent()
	if desc == "" {
		t.Error("DescribeCurrent() returned empty string")
	}
}

func TestFromStoreLoadsByID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traces.json")
	store, err := audit.NewStore(path)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	trace := sampleTrace(t)
	if err := store.Put(trace); err != nil {
		t.Fatalf("Put: %v", err)
	}

	e, err := FromStore(store, trace.TraceID)
	if err != nil {
		t.Fatalf("FromStore: %v", err)
	}
	if e.Trace().TraceID != trace.TraceID {
		t.Errorf("FromStore returned engine for wrong trace")
	}
}

func TestFromStoreUnknownID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traces.json")
	store, err := audit.NewStore(path)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if _, err := FromStore(store, uuid.New()); err == nil {
		t.Error("FromStore with unknown id should fail")
	}
}
