package replay

import (
	"testing"

	"github.com/google/uuid"

	"github.com/corebrain/agentcore/internal/audit"
)

func newTrace(t *testing.T, goal string) *audit.ExecutionTrace {
	t.Helper()
	trace := audit.New(uuid.New(), uuid.New(), goal)
	trace.Complete(true, 1)
	return trace
}

func TestSessionStartsEmpty(t *testing.T) {
	s := NewSession()
	if !s.IsEmpty() || s.Len() != 0 {
		t.Error("new session should be empty")
	}
	if s.Active() != nil {
		t.Error("Active() on empty session should be nil")
	}
}

func TestSessionFirstReplayBecomesActive(t *testing.T) {
	s := NewSession()
	idx := s.AddReplay(newTrace(t, "first"))
	if idx != 0 {
		t.Errorf("AddReplay index = %d, want 0", idx)
	}
	if s.Active() == nil {
		t.Fatal("Active() should not be nil after adding the first replay")
	}
	if s.Active().Trace().Goal != "first" {
		t.Errorf("Active().Trace().Goal = %q, want first", s.Active().Trace().Goal)
	}
}

func TestSessionSetActiveSwitches(t *testing.T) {
	s := NewSession()
	s.AddReplay(newTrace(t, "first"))
	s.AddReplay(newTrace(t, "second"))

	if err := s.SetActive(1); err != nil {
		t.Fatalf("SetActive(1): %v", err)
	}
	if s.Active().Trace().Goal != "second" {
		t.Errorf("Active().Trace().Goal = %q, want second", s.Active().Trace().Goal)
	}
	if err := s.SetActive(5); err == nil {
		t.Error("SetActive(5) should fail: out of range")
	}
}

func TestSessionListReplaysMarksActive(t *testing.T) {
	s := NewSession()
	s.AddReplay(newTrace(t, "first"))
	s.AddReplay(newTrace(t, "second"))
	s.SetActive(1)

	summaries := s.ListReplays()
	if len(summaries) != 2 {
		t.Fatalf("len(ListReplays()) = %d, want 2", len(summaries))
	}
	if summaries[0].IsActive {
		t.Error("summaries[0].IsActive should be false")
	}
	if !summaries[1].IsActive {
		t.Error("summaries[1].IsActive should be true")
	}
	if summaries[1].Goal != "second" {
		t.Errorf("summaries[1].Goal = %q, want second", summaries[1].Goal)
	}
}
