package providers

import "github.com/corebrain/agentcore/internal/agent"

// FixOpenAITurns rewrites msgs so that (a) every tool-role message whose
// call id matches no preceding assistant tool_calls entry is dropped, and
// (b) any system/user message sitting between an assistant's tool_calls and
// its matching tool results is relocated to immediately before that
// assistant message, preserving relative order. The transformation is
// idempotent: applying it twice yields the same result as applying it once.
//
// Grounded on rustant-core's fix_openai_turns: the OpenAI wire format
// requires every tool_calls entry to be immediately resolved by matching
// tool-role messages before the next assistant turn, with no system/user
// message on the wire in between.
func FixOpenAITurns(msgs []agent.Message) []agent.Message {
	return relocateInterleaved(dropOrphanToolMessages(msgs))
}

// dropOrphanToolMessages removes any tool-role message whose call id isn't
// among the tool_calls ids of the most recent assistant message that have
// not yet been resolved by an earlier tool message.
func dropOrphanToolMessages(msgs []agent.Message) []agent.Message {
	pending := map[string]struct{}{}
	out := make([]agent.Message, 0, len(msgs))

	for _, m := range msgs {
		switch m.Role {
		case agent.RoleAssistant:
			for k := range pending {
				delete(pending, k)
			}
			for _, call := range m.ToolCalls() {
				if call.ID != "" {
					pending[call.ID] = struct{}{}
				}
			}
			out = append(out, m)
		case agent.RoleTool:
			results := m.ToolResults()
			if len(results) == 0 {
				continue
			}
			kept := make([]agent.Content, 0, len(results))
			for _, r := range results {
				if _, ok := pending[r.CallID]; ok {
					delete(pending, r.CallID)
					kept = append(kept, agent.ToolResultContent(r))
				}
				// else: orphaned tool result, dropped.
			}
			if len(kept) == 0 {
				continue
			}
			if len(kept) == 1 {
				out = append(out, agent.Message{Role: agent.RoleTool, Content: kept[0]})
			} else {
				out = append(out, agent.Message{Role: agent.RoleTool, Content: agent.MultiPartContent(kept...)})
			}
		default:
			out = append(out, m)
		}
	}

	return out
}

// relocateInterleaved moves system/user messages that sit between an
// assistant's tool_calls and its matching tool results to immediately
// before that assistant message.
func relocateInterleaved(msgs []agent.Message) []agent.Message {
	out := make([]agent.Message, 0, len(msgs))
	assistantIdx := -1
	pending := map[string]struct{}{}

	closeWindow := func() {
		assistantIdx = -1
		for k := range pending {
			delete(pending, k)
		}
	}

	for _, m := range msgs {
		switch {
		case m.Role == agent.RoleAssistant:
			out = append(out, m)
			ids := m.ToolCalls()
			if len(ids) == 0 {
				closeWindow()
				continue
			}
			assistantIdx = len(out) - 1
			for k := range pending {
				delete(pending, k)
			}
			for _, c := range ids {
				pending[c.ID] = struct{}{}
			}

		case m.Role == agent.RoleTool && assistantIdx >= 0:
			out = append(out, m)
			for _, r := range m.ToolResults() {
				delete(pending, r.CallID)
			}
			if len(pending) == 0 {
				closeWindow()
			}

		case (m.Role == agent.RoleSystem || m.Role == agent.RoleUser) && assistantIdx >= 0 && len(pending) > 0:
			out = append(out[:assistantIdx], append([]agent.Message{m}, out[assistantIdx:]...)...)
			assistantIdx++

		default:
			out = append(out, m)
			closeWindow()
		}
	}

	return out
}
