package audit

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
)

func TestNewStoreMissingFileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traces.json")
	s, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if len(s.List()) != 0 {
		t.Errorf("List() = %v, want empty", s.List())
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traces.json")
	s, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	trace := New(uuid.New(), uuid.New(), "do the thing")
	trace.Complete(true, 1)
	if err := s.Put(trace); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok := s.Get(trace.TraceID)
	if !ok {
		t.Fatal("Get after Put returned ok=false")
	}
	if got.Goal != "do the thing" {
		t.Errorf("Get().Goal = %q, want %q", got.Goal, "do the thing")
	}
}

func TestPutUpsertsExistingTrace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traces.json")
	s, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	trace := New(uuid.New(), uuid.New(), "v1")
	if err := s.Put(trace); err != nil {
		t.Fatalf("Put: %v", err)
	}
	trace.Complete(true, 2)
	if err := s.Put(trace); err != nil {
		t.Fatalf("Put (update): %v", err)
	}

	if len(s.List()) != 1 {
		t.Fatalf("len(List()) = %d, want 1 (upsert, not append)", len(s.List()))
	}
	got, _ := s.Get(trace.TraceID)
	if got.Iterations != 2 {
		t.Errorf("Iterations = %d, want 2", got.Iterations)
	}
}

func TestPutPersistsAcrossReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traces.json")
	s, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	trace := New(uuid.New(), uuid.New(), "persisted goal")
	trace.Complete(true, 1)
	if err := s.Put(trace); err != nil {
		t.Fatalf("Put: %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected store file to exist: %v", err)
	}

	reloaded, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore (reload): %v", err)
	}
	got, ok := reloaded.Get(trace.TraceID)
	if !ok {
		t.Fatal("reloaded store missing persisted trace")
	}
	if got.Goal != "persisted goal" {
		t.Errorf("reloaded Goal = %q, want %q", got.Goal, "persisted goal")
	}
}

func TestListReturnsAllTraces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traces.json")
	s, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	for i := 0; i < 3; i++ {
		trace := New(uuid.New(), uuid.New(), "goal")
		if err := s.Put(trace); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}
	if len(s.List()) != 3 {
		t.Errorf("len(List()) = %d, want 3", len(s.List()))
	}
}

func TestGetUnknownReturnsFalse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traces.json")
	s, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if _, ok := s.Get(uuid.New()); ok {
		t.Error("Get on empty store returned ok=true")
	}
}
