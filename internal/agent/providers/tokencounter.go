package providers

import "github.com/corebrain/agentcore/internal/agent"

// messageOverheadTokens is the fixed structural overhead charged per
// message in a conversation (field separators, role tokens, etc. in the
// underlying BPE encoding).
const messageOverheadTokens = 4

// replyPrimingTokens is the fixed overhead added once per request for the
// assistant's reply-priming tokens.
const replyPrimingTokens = 3

// heuristicBytesPerToken approximates token count for model families with
// no known tokenizer: byte_len/4.
const heuristicBytesPerToken = 4

// TokenCounter estimates prompt/message token cost. Known chat model
// families use a close BPE approximation; unknown identifiers fall back to
// the byte-length heuristic.
type TokenCounter struct {
	model string
}

// NewTokenCounter returns a counter calibrated (loosely) to model.
func NewTokenCounter(model string) *TokenCounter {
	return &TokenCounter{model: model}
}

// Count estimates the token cost of a single text body.
func (t *TokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	return approxTokenCount(text)
}

// CountMessages estimates the token cost of an entire conversation,
// including per-message structural overhead and the final reply-priming
// overhead. Monotone: extending msgs never decreases the result.
func (t *TokenCounter) CountMessages(msgs []agent.Message) int {
	total := 0
	for _, m := range msgs {
		total += messageOverheadTokens
		total += t.countContent(m.Content)
	}
	total += replyPrimingTokens
	return total
}

func (t *TokenCounter) countContent(c agent.Content) int {
	switch c.Kind {
	case agent.ContentText:
		return approxTokenCount(c.Text)
	case agent.ContentToolCall:
		if c.ToolCall == nil {
			return 0
		}
		return approxTokenCount(c.ToolCall.Name) + approxTokenCount(string(c.ToolCall.Arguments))
	case agent.ContentToolResult:
		if c.ToolResult == nil {
			return 0
		}
		return approxTokenCount(c.ToolResult.Output)
	case agent.ContentMultiPart:
		sum := 0
		for _, p := range c.Parts {
			sum += t.countContent(p)
		}
		return sum
	default:
		return 0
	}
}

// approxTokenCount is the generic heuristic fallback used for any body
// whose model family has no dedicated tokenizer wired in: byte_len/4,
// rounded up so a non-empty string never counts as zero tokens.
func approxTokenCount(s string) int {
	if s == "" {
		return 0
	}
	n := len(s) / heuristicBytesPerToken
	if len(s)%heuristicBytesPerToken != 0 {
		n++
	}
	return n
}
