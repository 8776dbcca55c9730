// Package brain implements the orchestration layer that sits between a
// goal-driven caller and a Provider: it owns the system prompt, estimates
// token cost before every call, and tracks cumulative usage and cost
// across the lifetime of a task.
package brain

import (
	"context"
	"sync"

	"github.com/corebrain/agentcore/internal/agent"
	"github.com/corebrain/agentcore/internal/agent/providers"
	"github.com/corebrain/agentcore/internal/retry"
)

const thinkTemperature = 0.7

// Brain owns a Provider and the running totals observed across every
// completion it has driven. Grounded on the teacher's agent-loop package
// for the prepend-system/estimate-then-call shape, generalized to the
// context-overflow precheck and retry semantics this module specifies.
type Brain struct {
	mu              sync.Mutex
	provider        agent.Provider
	systemPrompt    string
	tokenCounter    *providers.TokenCounter
	cumulativeUsage agent.TokenUsage
	cumulativeCost  agent.Cost
}

// New returns a Brain driving provider, prepending systemPrompt to every
// conversation passed to think.
func New(provider agent.Provider, systemPrompt string) *Brain {
	return &Brain{
		provider:     provider,
		systemPrompt: systemPrompt,
		tokenCounter: providers.NewTokenCounter(provider.ModelName()),
	}
}

// Provider returns the underlying Provider. Two Brains may legitimately
// share one Provider; this accessor supports that sharing.
func (b *Brain) Provider() agent.Provider { return b.provider }

// CumulativeUsage returns the running token totals observed so far.
func (b *Brain) CumulativeUsage() agent.TokenUsage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cumulativeUsage
}

// CumulativeCost returns the running USD cost observed so far.
func (b *Brain) CumulativeCost() agent.Cost {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cumulativeCost
}

// withSystemMessage prepends the Brain's system message to conversation.
// The caller's conversation must not itself carry one; the Brain's is
// authoritative.
func (b *Brain) withSystemMessage(conversation []agent.Message) []agent.Message {
	out := make([]agent.Message, 0, len(conversation)+1)
	out = append(out, agent.Message{Role: agent.RoleSystem, Content: agent.TextContent(b.systemPrompt)})
	out = append(out, conversation...)
	return out
}

// think runs one request/response cycle: prepend the system message,
// precheck the estimated token cost against the provider's context
// window, invoke Complete at a fixed temperature with no max_tokens and
// no stop sequences, and fold the resulting usage/cost into the running
// totals on success.
func (b *Brain) think(ctx context.Context, conversation []agent.Message, tools []agent.ToolDefinition) (*agent.CompletionResponse, error) {
	messages := b.withSystemMessage(conversation)

	estimate := b.provider.EstimateTokens(messages)
	window := b.provider.ContextWindow()
	if estimate > window {
		return nil, agent.NewContextOverflow(estimate, window)
	}

	req := &agent.CompletionRequest{
		Model:       b.provider.ModelName(),
		Messages:    messages,
		Tools:       tools,
		Temperature: thinkTemperature,
	}

	resp, err := b.provider.Complete(ctx, req)
	if err != nil {
		return nil, err
	}

	b.trackUsage(resp.Usage)
	return resp, nil
}

// Think is the exported entry point for think.
func (b *Brain) Think(ctx context.Context, conversation []agent.Message, tools []agent.ToolDefinition) (*agent.CompletionResponse, error) {
	return b.think(ctx, conversation, tools)
}

// ThinkWithRetry invokes Think in a loop, retrying RateLimited/Timeout/
// Connection errors with the module's standard backoff policy and
// returning any other error, or the last retryable error once attempts
// are exhausted.
func (b *Brain) ThinkWithRetry(ctx context.Context, conversation []agent.Message, tools []agent.ToolDefinition, maxRetries int) (*agent.CompletionResponse, error) {
	return retry.Do(ctx, maxRetries+1, func(_ int) (*agent.CompletionResponse, error) {
		return b.think(ctx, conversation, tools)
	})
}

// ThinkStreaming runs the same preparation and precheck as Think, then
// streams the response to sink. Usage tracking is deferred: the caller is
// expected to read the terminal Done event off sink and call TrackUsage
// to fold it into the running totals.
func (b *Brain) ThinkStreaming(ctx context.Context, conversation []agent.Message, tools []agent.ToolDefinition, sink chan<- agent.StreamEvent) error {
	messages := b.withSystemMessage(conversation)

	estimate := b.provider.EstimateTokens(messages)
	window := b.provider.ContextWindow()
	if estimate > window {
		err := agent.NewContextOverflow(estimate, window)
		sink <- agent.StreamEvent{Kind: agent.StreamError, Err: err}
		close(sink)
		return err
	}

	req := &agent.CompletionRequest{
		Model:       b.provider.ModelName(),
		Messages:    messages,
		Tools:       tools,
		Temperature: thinkTemperature,
	}
	return b.provider.CompleteStreaming(ctx, req, sink)
}

// TrackUsage folds usage into the running cumulative totals, using the
// provider's per-token cost rates. Callers driving ThinkStreaming must
// call this themselves once the stream's terminal Done event is
// observed.
func (b *Brain) TrackUsage(usage agent.TokenUsage) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.trackUsageLocked(usage)
}

func (b *Brain) trackUsage(usage agent.TokenUsage) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.trackUsageLocked(usage)
}

func (b *Brain) trackUsageLocked(usage agent.TokenUsage) {
	b.cumulativeUsage = b.cumulativeUsage.Add(usage)

	inputRate, outputRate := b.provider.CostPerToken()
	b.cumulativeCost.Input += float64(usage.InputTokens) * inputRate
	b.cumulativeCost.Output += float64(usage.OutputTokens) * outputRate
}

// ContextUsageRatio reports estimate_tokens(conversation) / context_window
// for the Brain's provider, without prepending the system message  so
// callers can probe a conversation-in-progress cheaply. Values above 1
// indicate the next think call will overflow.
func (b *Brain) ContextUsageRatio(conversation []agent.Message) float64 {
	window := b.provider.ContextWindow()
	if window <= 0 {
		return 0
	}
	messages := b.withSystemMessage(conversation)
	estimate := b.provider.EstimateTokens(messages)
	return float64(estimate) / float64(window)
}
