package providers

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/corebrain/agentcore/internal/agent"
)

func assistantToolCallMsg(ids ...string) agent.Message {
	parts := make([]agent.Content, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, agent.ToolCallContent(agent.ToolCall{ID: id, Name: "noop", Arguments: json.RawMessage(`{}`)}))
	}
	if len(parts) == 1 {
		return agent.Message{Role: agent.RoleAssistant, Content: parts[0]}
	}
	return agent.Message{Role: agent.RoleAssistant, Content: agent.MultiPartContent(parts...)}
}

func toolResultMsg(callID, output string) agent.Message {
	return agent.Message{Role: agent.RoleTool, Content: agent.ToolResultContent(agent.ToolResult{CallID: callID, Output: output})}
}

func TestFixOpenAITurnsDropsOrphanAndRelocatesSystemHint(t *testing.T) {
	msgs := []agent.Message{
		agent.NewTextMessage(agent.RoleUser, "hi"),
		assistantToolCallMsg("c1"),
		agent.NewTextMessage(agent.RoleSystem, "hint"),
		toolResultMsg("c1", "result1"),
		toolResultMsg("bogus", "should be dropped"),
	}

	got := FixOpenAITurns(msgs)

	want := []agent.Message{
		agent.NewTextMessage(agent.RoleUser, "hi"),
		agent.NewTextMessage(agent.RoleSystem, "hint"),
		assistantToolCallMsg("c1"),
		toolResultMsg("c1", "result1"),
	}

	if !reflect.DeepEqual(got, want) {
		t.Errorf("FixOpenAITurns(msgs) =\n%#v\nwant\n%#v", got, want)
	}
}

func TestFixOpenAITurnsIsIdempotent(t *testing.T) {
	msgs := []agent.Message{
		agent.NewTextMessage(agent.RoleUser, "hi"),
		assistantToolCallMsg("c1"),
		agent.NewTextMessage(agent.RoleSystem, "hint"),
		toolResultMsg("c1", "result1"),
		toolResultMsg("bogus", "should be dropped"),
	}

	once := FixOpenAITurns(msgs)
	twice := FixOpenAITurns(once)

	if !reflect.DeepEqual(once, twice) {
		t.Errorf("FixOpenAITurns is not idempotent:\nfirst pass:  %#v\nsecond pass: %#v", once, twice)
	}
}

func TestDropOrphanToolMessagesKeepsAllResultsOfMultiResultMessage(t *testing.T) {
	msgs := []agent.Message{
		assistantToolCallMsg("c1", "c2"),
		{
			Role: agent.RoleTool,
			Content: agent.MultiPartContent(
				agent.ToolResultContent(agent.ToolResult{CallID: "c1", Output: "out1"}),
				agent.ToolResultContent(agent.ToolResult{CallID: "c2", Output: "out2"}),
				agent.ToolResultContent(agent.ToolResult{CallID: "bogus", Output: "dropped"}),
			),
		},
	}

	got := dropOrphanToolMessages(msgs)

	if len(got) != 2 {
		t.Fatalf("len(got) = %d, want 2", len(got))
	}
	results := got[1].ToolResults()
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2 (orphan result must be dropped, surviving two kept)", len(results))
	}
	if results[0].CallID != "c1" || results[1].CallID != "c2" {
		t.Errorf("results = %+v, want call ids c1, c2 in order", results)
	}
}

func TestDropOrphanToolMessagesDropsEntireOrphanMessage(t *testing.T) {
	msgs := []agent.Message{
		agent.NewTextMessage(agent.RoleUser, "hi"),
		toolResultMsg("never-requested", "orphan"),
	}

	got := dropOrphanToolMessages(msgs)

	if len(got) != 1 {
		t.Fatalf("len(got) = %d, want 1 (orphan tool message fully dropped)", len(got))
	}
}

func TestRelocateInterleavedMovesUserAndSystemBeforeAssistant(t *testing.T) {
	msgs := []agent.Message{
		assistantToolCallMsg("c1"),
		agent.NewTextMessage(agent.RoleUser, "are you done?"),
		toolResultMsg("c1", "result1"),
	}

	got := relocateInterleaved(msgs)

	want := []agent.Message{
		agent.NewTextMessage(agent.RoleUser, "are you done?"),
		assistantToolCallMsg("c1"),
		toolResultMsg("c1", "result1"),
	}

	if !reflect.DeepEqual(got, want) {
		t.Errorf("relocateInterleaved(msgs) =\n%#v\nwant\n%#v", got, want)
	}
}

func TestMessageToWireEmitsOneWireMessagePerToolResult(t *testing.T) {
	m := agent.Message{
		Role: agent.RoleTool,
		Content: agent.MultiPartContent(
			agent.ToolResultContent(agent.ToolResult{CallID: "c1", Output: "out1"}),
			agent.ToolResultContent(agent.ToolResult{CallID: "c2", Output: "out2"}),
		),
	}

	wire := messageToWire(m)

	if len(wire) != 2 {
		t.Fatalf("len(wire) = %d, want 2 (one wire message per tool result)", len(wire))
	}
	if wire[0].ToolCallID != "c1" || wire[0].Content == nil || *wire[0].Content != "out1" {
		t.Errorf("wire[0] = %+v, want tool_call_id c1 content out1", wire[0])
	}
	if wire[1].ToolCallID != "c2" || wire[1].Content == nil || *wire[1].Content != "out2" {
		t.Errorf("wire[1] = %+v, want tool_call_id c2 content out2", wire[1])
	}
}
