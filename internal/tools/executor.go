package tools

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/corebrain/agentcore/internal/agent"
	"github.com/corebrain/agentcore/internal/observability"
)

// Executor dispatches validated tool calls against a Registry, bounding
// concurrent executions with a semaphore and wrapping each call in its own
// timeout.
//
// Grounded on the teacher's tool_exec.go ToolExecutor: a buffered-channel
// semaphore plus per-call context.WithTimeout, with results delivered
// through a result struct rather than blocking the semaphore slot on a
// caller that stopped listening.
type Executor struct {
	registry   *Registry
	sem        chan struct{}
	logger     *observability.Logger
	metrics    *observability.Metrics
	tracer     *observability.Tracer
	defaultTTL time.Duration
}

// NewExecutor returns an Executor that runs at most maxConcurrent tool
// calls simultaneously.
func NewExecutor(registry *Registry, maxConcurrent int, logger *observability.Logger, metrics *observability.Metrics) *Executor {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Executor{
		registry:   registry,
		sem:        make(chan struct{}, maxConcurrent),
		logger:     logger,
		metrics:    metrics,
		defaultTTL: 30 * time.Second,
	}
}

// WithTracer attaches a Tracer that wraps every tool execution in a span.
// Nil-safe: an Executor with no tracer attached simply skips spans.
func (e *Executor) WithTracer(tracer *observability.Tracer) *Executor {
	e.tracer = tracer
	return e
}

// CallResult pairs a ToolCall's id with its outcome.
type CallResult struct {
	CallID string
	Output *agent.ToolOutput
	Err    error
}

// ExecuteOne validates and runs a single tool call, enforcing its declared
// timeout (or the executor default when the tool returns zero). The
// semaphore slot is acquired only for the duration of execution, never for
// the time a caller waits on the channel.
func (e *Executor) ExecuteOne(ctx context.Context, call agent.ToolCall) CallResult {
	if err := e.registry.Validate(call.Name, call.Arguments); err != nil {
		return CallResult{CallID: call.ID, Err: err}
	}
	t, err := e.registry.Get(call.Name)
	if err != nil {
		return CallResult{CallID: call.ID, Err: err}
	}

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		return CallResult{CallID: call.ID, Err: ctx.Err()}
	}
	defer func() { <-e.sem }()

	ttl := e.defaultTTL
	if secs := t.Timeout(); secs > 0 {
		ttl = time.Duration(secs) * time.Second
	}
	callCtx, cancel := context.WithTimeout(ctx, ttl)
	defer cancel()

	if e.tracer != nil {
		var span trace.Span
		callCtx, span = e.tracer.TraceToolExecution(callCtx, call.Name)
		defer span.End()
		e.tracer.SetAttributes(span, "risk_level", t.RiskLevel().String())
	}

	start := time.Now()
	out, execErr := e.runWithTimeout(callCtx, t, call)
	duration := time.Since(start).Seconds()

	status := "success"
	if execErr != nil {
		status = "error"
	}
	if e.tracer != nil {
		if span := trace.SpanFromContext(callCtx); execErr != nil {
			e.tracer.RecordError(span, execErr)
		}
	}
	if e.metrics != nil {
		e.metrics.RecordToolExecution(call.Name, status, duration)
	}
	if e.logger != nil {
		e.logger.Info(ctx, "tool executed", "tool", call.Name, "call_id", call.ID, "status", status, "duration_ms", time.Since(start).Milliseconds())
	}

	return CallResult{CallID: call.ID, Output: out, Err: execErr}
}

// runWithTimeout runs t.Execute on a worker goroutine and races it against
// callCtx, so a tool that ignores context cancellation cannot leak the
// goroutine pool: the result channel is buffered, so the worker goroutine
// always completes its send even if nobody is left to receive it.
func (e *Executor) runWithTimeout(callCtx context.Context, t agent.Tool, call agent.ToolCall) (*agent.ToolOutput, error) {
	type result struct {
		out *agent.ToolOutput
		err error
	}
	done := make(chan result, 1)

	go func() {
		out, err := t.Execute(callCtx, call.Arguments)
		done <- result{out: out, err: err}
	}()

	select {
	case r := <-done:
		return r.out, r.err
	case <-callCtx.Done():
		return nil, agent.NewToolTimeout(call.Name)
	}
}

// ExecuteConcurrently runs every call in calls, bounded by the executor's
// concurrency limit, and returns results in the same order as calls
// regardless of completion order.
func (e *Executor) ExecuteConcurrently(ctx context.Context, calls []agent.ToolCall) []CallResult {
	results := make([]CallResult, len(calls))
	var wg sync.WaitGroup
	wg.Add(len(calls))
	for i, call := range calls {
		i, call := i, call
		go func() {
			defer wg.Done()
			results[i] = e.ExecuteOne(ctx, call)
		}()
	}
	wg.Wait()
	return results
}

// ToolResultsFrom converts CallResults into Messages' ToolResult form,
// marking failures with IsError and a human-readable reason rather than
// propagating the Go error type onto the wire.
func ToolResultsFrom(results []CallResult) []agent.ToolResult {
	out := make([]agent.ToolResult, 0, len(results))
	for _, r := range results {
		if r.Err != nil {
			out = append(out, agent.ToolResult{CallID: r.CallID, Output: r.Err.Error(), IsError: true})
			continue
		}
		output := ""
		if r.Output != nil {
			output = r.Output.Content
		}
		out = append(out, agent.ToolResult{CallID: r.CallID, Output: output})
	}
	return out
}
