package providers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"go.opentelemetry.io/otel/trace"

	"github.com/corebrain/agentcore/internal/agent"
	"github.com/corebrain/agentcore/internal/observability"
)

const anthropicVersion = "2023-06-01"

// AnthropicProvider implements agent.Provider for the Anthropic Messages
// API wire protocol.
//
// Grounded on rustant-core's AnthropicProvider for the system-message
// lifting rule and the named-SSE-event state machine, and on the teacher's
// providers package for the Go HTTP-client idiom.
type AnthropicProvider struct {
	httpClient    *http.Client
	baseURL       string
	apiKey        string
	model         string
	contextWindow int
	inputRate     float64
	outputRate    float64
	limiter       *rate.Limiter
	tracer        *observability.Tracer
}

// WithRateLimiter attaches a token-bucket limiter consulted before every
// outbound call. Nil-safe: a provider with no limiter attached never
// blocks here.
func (p *AnthropicProvider) WithRateLimiter(limiter *rate.Limiter) *AnthropicProvider {
	p.limiter = limiter
	return p
}

// WithTracer attaches a Tracer that wraps every completion call in a
// span. Nil-safe: a provider with no tracer attached simply skips spans.
func (p *AnthropicProvider) WithTracer(tracer *observability.Tracer) *AnthropicProvider {
	p.tracer = tracer
	return p
}

func (p *AnthropicProvider) wait(ctx context.Context) error {
	if p.limiter == nil {
		return nil
	}
	return p.limiter.Wait(ctx)
}

func NewAnthropicProvider(baseURL, apiKey, model string, contextWindow int, inputRate, outputRate float64) *AnthropicProvider {
	return &AnthropicProvider{
		httpClient:    &http.Client{Timeout: 120 * time.Second},
		baseURL:       strings.TrimRight(baseURL, "/"),
		apiKey:        apiKey,
		model:         model,
		contextWindow: contextWindow,
		inputRate:     inputRate,
		outputRate:    outputRate,
	}
}

func (p *AnthropicProvider) ModelName() string   { return p.model }
func (p *AnthropicProvider) ContextWindow() int  { return p.contextWindow }
func (p *AnthropicProvider) SupportsTools() bool { return true }
func (p *AnthropicProvider) CostPerToken() (float64, float64) {
	return p.inputRate, p.outputRate
}
func (p *AnthropicProvider) EstimateTokens(msgs []agent.Message) int {
	return NewTokenCounter(p.model).CountMessages(msgs)
}

// --- wire shapes ---

type anthropicBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

type anthropicMessage struct {
	Role    string           `json:"role"`
	Content []anthropicBlock `json:"content"`
}

type anthropicToolSpec struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

type anthropicRequest struct {
	Model       string              `json:"model"`
	System      string              `json:"system,omitempty"`
	Messages    []anthropicMessage  `json:"messages"`
	MaxTokens   int                 `json:"max_tokens"`
	Temperature float64             `json:"temperature"`
	Stream      bool                `json:"stream"`
	StopSeqs    []string            `json:"stop_sequences,omitempty"`
	Tools       []anthropicToolSpec `json:"tools,omitempty"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type anthropicResponse struct {
	Content    []anthropicBlock `json:"content"`
	Model      string           `json:"model"`
	StopReason string           `json:"stop_reason"`
	Usage      anthropicUsage   `json:"usage"`
}

// anthropicMessagesFrom lifts system-role messages out of the conversation
// (concatenated, in order, into the request's top-level system field) and
// converts the remainder into Anthropic content blocks. Anthropic has no
// wire concept of an interleaved system turn, unlike OpenAI, so no turn
// repair is needed here.
func anthropicMessagesFrom(system string, msgs []agent.Message) (string, []anthropicMessage) {
	var sysParts []string
	if system != "" {
		sysParts = append(sysParts, system)
	}
	out := make([]anthropicMessage, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == agent.RoleSystem {
			if t := m.Text(); t != "" {
				sysParts = append(sysParts, t)
			}
			continue
		}
		out = append(out, anthropicMessage{
			Role:    anthropicRole(m.Role),
			Content: contentToBlocks(m.Content),
		})
	}
	return strings.Join(sysParts, "\n\n"), out
}

func anthropicRole(r agent.Role) string {
	if r == agent.RoleTool {
		return "user"
	}
	return string(r)
}

func contentToBlocks(c agent.Content) []anthropicBlock {
	switch c.Kind {
	case agent.ContentText:
		if c.Text == "" {
			return nil
		}
		return []anthropicBlock{{Type: "text", Text: c.Text}}
	case agent.ContentToolCall:
		if c.ToolCall == nil {
			return nil
		}
		input := c.ToolCall.Arguments
		if len(input) == 0 {
			input = json.RawMessage(`{}`)
		}
		return []anthropicBlock{{Type: "tool_use", ID: c.ToolCall.ID, Name: c.ToolCall.Name, Input: input}}
	case agent.ContentToolResult:
		if c.ToolResult == nil {
			return nil
		}
		return []anthropicBlock{{Type: "tool_result", ToolUseID: c.ToolResult.CallID, Content: c.ToolResult.Output, IsError: c.ToolResult.IsError}}
	case agent.ContentMultiPart:
		var out []anthropicBlock
		for _, part := range c.Parts {
			out = append(out, contentToBlocks(part)...)
		}
		return out
	default:
		return nil
	}
}

func blocksToContent(blocks []anthropicBlock) agent.Content {
	var parts []agent.Content
	for _, b := range blocks {
		switch b.Type {
		case "text":
			parts = append(parts, agent.TextContent(b.Text))
		case "tool_use":
			input := b.Input
			if len(input) == 0 {
				input = json.RawMessage(`{}`)
			}
			parts = append(parts, agent.ToolCallContent(agent.ToolCall{ID: b.ID, Name: b.Name, Arguments: input}))
		}
	}
	switch len(parts) {
	case 0:
		return agent.TextContent("")
	case 1:
		return parts[0]
	default:
		return agent.MultiPartContent(parts...)
	}
}

func anthropicTools(tools []agent.ToolDefinition) []anthropicToolSpec {
	if len(tools) == 0 {
		return nil
	}
	out := make([]anthropicToolSpec, 0, len(tools))
	for _, t := range tools {
		out = append(out, anthropicToolSpec{Name: t.Name, Description: t.Description, InputSchema: t.Parameters})
	}
	return out
}

func buildAnthropicRequest(req *agent.CompletionRequest, model string, stream bool) anthropicRequest {
	system, msgs := anthropicMessagesFrom(req.System, req.Messages)
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultOpenAIMaxTokens
	}
	return anthropicRequest{
		Model:       model,
		System:      system,
		Messages:    msgs,
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
		Stream:      stream,
		StopSeqs:    req.Stop,
		Tools:       anthropicTools(req.Tools),
	}
}

func (p *AnthropicProvider) newRequest(ctx context.Context, body anthropicRequest) (*http.Request, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)
	return req, nil
}

func (p *AnthropicProvider) Complete(ctx context.Context, req *agent.CompletionRequest) (_ *agent.CompletionResponse, callErr error) {
	model := req.Model
	if model == "" {
		model = p.model
	}
	body := buildAnthropicRequest(req, model, false)

	if p.tracer != nil {
		var span trace.Span
		ctx, span = p.tracer.TraceLLMRequest(ctx, "anthropic", model)
		defer func() {
			if callErr != nil {
				p.tracer.RecordError(span, callErr)
			}
			span.End()
		}()
	}

	if err := p.wait(ctx); err != nil {
		callErr = agent.NewTimeout("rate limiter wait: " + err.Error())
		return nil, callErr
	}

	httpReq, err := p.newRequest(ctx, body)
	if err != nil {
		callErr = agent.NewResponseParse("failed to build request", err)
		return nil, callErr
	}

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		callErr = classifyTransportError(err)
		return nil, callErr
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		callErr = agent.NewConnection("failed to read response body", err)
		return nil, callErr
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		callErr = mapAnthropicHTTPError(httpResp.StatusCode, data)
		return nil, callErr
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		callErr = agent.NewResponseParse("malformed completion response", err)
		return nil, callErr
	}

	modelID := parsed.Model
	if modelID == "" {
		modelID = model
	}

	return &agent.CompletionResponse{
		Message: agent.Message{Role: agent.RoleAssistant, Content: blocksToContent(parsed.Content)},
		Usage: agent.TokenUsage{
			InputTokens:  parsed.Usage.InputTokens,
			OutputTokens: parsed.Usage.OutputTokens,
		},
		Model:  modelID,
		Finish: mapAnthropicStopReason(parsed.StopReason),
	}, nil
}

func mapAnthropicStopReason(reason string) agent.FinishReason {
	switch reason {
	case "tool_use":
		return agent.FinishToolCalls
	case "max_tokens":
		return agent.FinishLength
	default:
		return agent.FinishStop
	}
}

func mapAnthropicHTTPError(status int, body []byte) error {
	text := string(body)
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return agent.NewAuthFailed(text)
	case status == http.StatusTooManyRequests:
		return agent.NewRateLimited(parseAnthropicRetryAfter(body), text)
	case status >= 500:
		return agent.NewAPIRequest(status, text)
	default:
		return agent.NewAPIRequest(status, text)
	}
}

// parseAnthropicRetryAfter reads error.retry_after_secs from the JSON body,
// defaulting to 30 (the Anthropic dialect's default, distinct from the
// OpenAI dialect's 5-second default) when absent or unparseable.
func parseAnthropicRetryAfter(body []byte) int {
	var parsed struct {
		Error struct {
			RetryAfterSecs *int `json:"retry_after_secs"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return 30
	}
	if parsed.Error.RetryAfterSecs == nil {
		return 30
	}
	return *parsed.Error.RetryAfterSecs
}

// --- streaming: named-SSE-event state machine ---

type anthropicSSEEvent struct {
	Type         string          `json:"type"`
	Index        int             `json:"index"`
	ContentBlock *anthropicBlock `json:"content_block,omitempty"`
	Delta        *anthropicDelta `json:"delta,omitempty"`
	Usage        *anthropicUsage `json:"usage,omitempty"`
	Message      *struct {
		Usage anthropicUsage `json:"usage"`
	} `json:"message,omitempty"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type anthropicDelta struct {
	Type        string `json:"type"`
	Text        string `json:"text,omitempty"`
	PartialJSON string `json:"partial_json,omitempty"`
	StopReason  string `json:"stop_reason,omitempty"`
}

func (p *AnthropicProvider) CompleteStreaming(ctx context.Context, req *agent.CompletionRequest, sink chan<- agent.StreamEvent) error {
	defer close(sink)

	model := req.Model
	if model == "" {
		model = p.model
	}
	body := buildAnthropicRequest(req, model, true)

	if p.tracer != nil {
		var span trace.Span
		ctx, span = p.tracer.TraceLLMRequest(ctx, "anthropic", model)
		defer span.End()
	}

	if err := p.wait(ctx); err != nil {
		werr := agent.NewTimeout("rate limiter wait: " + err.Error())
		sink <- agent.StreamEvent{Kind: agent.StreamError, Err: werr}
		return werr
	}

	httpReq, err := p.newRequest(ctx, body)
	if err != nil {
		sink <- agent.StreamEvent{Kind: agent.StreamError, Err: err}
		return err
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		e := classifyTransportError(err)
		sink <- agent.StreamEvent{Kind: agent.StreamError, Err: e}
		return e
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		e := mapAnthropicHTTPError(resp.StatusCode, data)
		sink <- agent.StreamEvent{Kind: agent.StreamError, Err: e}
		return e
	}

	state := &anthropicStreamState{blockKind: map[int]string{}, blockID: map[int]string{}}
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)

	var eventName string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			eventName = ""
			continue
		case strings.HasPrefix(line, "event:"):
			eventName = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			continue
		case strings.HasPrefix(line, "data:"):
			payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			var ev anthropicSSEEvent
			if err := json.Unmarshal([]byte(payload), &ev); err != nil {
				continue
			}
			if ev.Type == "" {
				ev.Type = eventName
			}
			if done, err := state.apply(ev, sink); err != nil {
				sink <- agent.StreamEvent{Kind: agent.StreamError, Err: err}
				return err
			} else if done {
				return nil
			}
		default:
			continue
		}
	}

	if err := scanner.Err(); err != nil {
		e := agent.NewConnection("stream read failed", err)
		sink <- agent.StreamEvent{Kind: agent.StreamError, Err: e}
		return e
	}

	state.finish(sink)
	return nil
}

// anthropicStreamState demultiplexes the named SSE event sequence
// (message_start, content_block_start, content_block_delta,
// content_block_stop, message_delta, message_stop, error) into the common
// StreamEvent vocabulary. Unknown event types are ignored, per the wire
// contract's forward-compatibility guarantee.
type anthropicStreamState struct {
	blockKind map[int]string
	blockID   map[int]string
	usage     agent.TokenUsage
	doneSent  bool
}

func (s *anthropicStreamState) apply(ev anthropicSSEEvent, sink chan<- agent.StreamEvent) (done bool, err error) {
	switch ev.Type {
	case "message_start":
		if ev.Message != nil {
			s.usage.InputTokens = ev.Message.Usage.InputTokens
			s.usage.OutputTokens = ev.Message.Usage.OutputTokens
		}

	case "content_block_start":
		if ev.ContentBlock == nil {
			return false, nil
		}
		s.blockKind[ev.Index] = ev.ContentBlock.Type
		if ev.ContentBlock.Type == "tool_use" {
			id := ev.ContentBlock.ID
			s.blockID[ev.Index] = id
			sink <- agent.StreamEvent{Kind: agent.StreamToolCallStart, ToolCallID: id, ToolCallName: ev.ContentBlock.Name}
		}

	case "content_block_delta":
		if ev.Delta == nil {
			return false, nil
		}
		switch ev.Delta.Type {
		case "text_delta":
			sink <- agent.StreamEvent{Kind: agent.StreamToken, Token: ev.Delta.Text}
		case "input_json_delta":
			id := s.blockID[ev.Index]
			sink <- agent.StreamEvent{Kind: agent.StreamToolCallDelta, ToolCallID: id, ArgsDelta: ev.Delta.PartialJSON}
		}

	case "content_block_stop":
		if s.blockKind[ev.Index] == "tool_use" {
			sink <- agent.StreamEvent{Kind: agent.StreamToolCallEnd, ToolCallID: s.blockID[ev.Index]}
		}

	case "message_delta":
		if ev.Usage != nil {
			s.usage.OutputTokens = ev.Usage.OutputTokens
		}

	case "message_stop":
		s.finish(sink)
		return true, nil

	case "error":
		msg := "stream error"
		if ev.Error != nil {
			msg = ev.Error.Message
		}
		return true, agent.NewStreaming(msg)

	default:
		// ping and any future event kind: ignored.
	}
	return false, nil
}

func (s *anthropicStreamState) finish(sink chan<- agent.StreamEvent) {
	if s.doneSent {
		return
	}
	sink <- agent.StreamEvent{Kind: agent.StreamDone, Usage: s.usage}
	s.doneSent = true
}
