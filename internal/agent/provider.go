package agent

import "context"

// Provider is the uniform interface over a heterogeneous LLM back-end.
// Implementations must be safe for concurrent use: the HTTP client they
// wrap internally is reference-counted and stateless across calls, so two
// Brains may legitimately share one Provider.
type Provider interface {
	// Complete sends req and blocks for the full (non-streaming) response.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// CompleteStreaming sends req and emits StreamEvents to sink in order,
	// terminated by exactly one StreamDone or StreamError event. sink is a
	// bounded unidirectional channel; CompleteStreaming owns closing it.
	CompleteStreaming(ctx context.Context, req *CompletionRequest, sink chan<- StreamEvent) error

	// EstimateTokens estimates the prompt-side token cost of msgs.
	EstimateTokens(msgs []Message) int

	// ContextWindow returns the provider-declared maximum request size.
	ContextWindow() int

	// SupportsTools reports whether this provider accepts tool definitions.
	SupportsTools() bool

	// CostPerToken returns (input, output) USD rates per single token
	// (i.e. the per-million rate divided by 1e6).
	CostPerToken() (input, output float64)

	// ModelName returns the model identifier this Provider was constructed
	// with.
	ModelName() string
}
