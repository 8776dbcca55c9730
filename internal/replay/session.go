package replay

import (
	"github.com/google/uuid"

	"github.com/corebrain/agentcore/internal/audit"
)

// Summary is the at-a-glance view of one replay within a Session.
type Summary struct {
	Index      int
	TraceID    uuid.UUID
	Goal       string
	EventCount int
	IsActive   bool
}

// Session manages multiple replay engines, exactly one active at a time.
type Session struct {
	engines     []*Engine
	activeIndex int
	hasActive   bool
}

// NewSession returns an empty replay session.
func NewSession() *Session {
	return &Session{}
}

// AddReplay adds a replay for trace and returns its index. The first
// replay added becomes active automatically.
func (s *Session) AddReplay(trace *audit.ExecutionTrace) int {
	index := len(s.engines)
	s.engines = append(s.engines, NewEngine(trace))
	if !s.hasActive {
		s.activeIndex = index
		s.hasActive = true
	}
	return index
}

// SetActive switches the active replay to index.
func (s *Session) SetActive(index int) error {
	if index < 0 || index >= len(s.engines) {
		return errOutOfBounds(index, len(s.engines))
	}
	s.activeIndex = index
	s.hasActive = true
	return nil
}

// Active returns the currently active engine, or nil if the session holds
// no replays.
func (s *Session) Active() *Engine {
	if !s.hasActive {
		return nil
	}
	return s.engines[s.activeIndex]
}

// ListReplays summarizes every replay in the session.
func (s *Session) ListReplays() []Summary {
	out := make([]Summary, 0, len(s.engines))
	for i, e := range s.engines {
		out = append(out, Summary{
			Index:      i,
			TraceID:    e.Trace().TraceID,
			Goal:       e.Trace().Goal,
			EventCount: e.TotalEvents(),
			IsActive:   s.hasActive && s.activeIndex == i,
		})
	}
	return out
}

func (s *Session) Len() int      { return len(s.engines) }
func (s *Session) IsEmpty() bool { return len(s.engines) == 0 }
