package providers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"go.opentelemetry.io/otel/trace"

	"github.com/corebrain/agentcore/internal/agent"
	"github.com/corebrain/agentcore/internal/observability"
)

// defaultOpenAIMaxTokens is used when a request carries no explicit
// MaxTokens and the wire protocol requires one.
const defaultOpenAIMaxTokens = 4096

// OpenAICompatibleProvider implements agent.Provider for the OpenAI chat
// completions wire protocol, and for any compatible local/self-hosted
// endpoint (Ollama, vLLM, LM Studio, etc.) that speaks the same dialect.
//
// Grounded on rustant-core's OpenAiCompatibleProvider for the exact wire
// shapes and turn-repair contract, and on the teacher's providers package
// for the Go HTTP-client idiom.
type OpenAICompatibleProvider struct {
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

// WithTracer attaches a Tracer that wraps every completion call in a
// span. Nil-safe: a provider with no tracer attached simply skips spans.
func (p *OpenAICompatibleProvider) WithTracer(tracer *observability.Tracer) *OpenAICompatibleProvider {
	p.tracer = tracer
	return p
}

// WithRateLimiter attaches a token-bucket limiter consulted before every
// outbound call, so local rate-limiting and the retry policy's backoff
// compose rather than race. Nil-safe: a provider with no limiter attached
// never blocks here.
func (p *OpenAICompatibleProvider) WithRateLimiter(limiter *rate.Limiter) *OpenAICompatibleProvider {
	p.limiter = limiter
	return p
}

func (p *OpenAICompatibleProvider) wait(ctx context.Context) error {
	if p.limiter == nil {
		return nil
	}
	return p.limiter.Wait(ctx)
}

// NewOpenAICompatibleProvider constructs a provider bound to baseURL/model.
// Local endpoints (host containing "localhost" or "127.0.0.1") accept an
// empty apiKey by substituting a placeholder; remote endpoints require a
// non-empty key.
func NewOpenAICompatibleProvider(baseURL, apiKey, model string, contextWindow int, inputRate, outputRate float64) (*OpenAICompatibleProvider, error) {
	if apiKey == "" {
		if !isLocalEndpoint(baseURL) {
			return nil, fmt.Errorf("openai-compatible provider: no API key configured for remote endpoint %q", baseURL)
		}
		apiKey = "sk-local-placeholder"
	}
	return &OpenAICompatibleProvider{
		httpClient:    &http.Client{Timeout: 120 * time.Second},
		baseURL:       strings.TrimRight(baseURL, "/"),
		apiKey:        apiKey,
		model:         model,
		contextWindow: contextWindow,
		inputRate:     inputRate,
		outputRate:    outputRate,
	}, nil
}

func isLocalEndpoint(baseURL string) bool {
	return strings.Contains(baseURL, "localhost") || strings.Contains(baseURL, "127.0.0.1")
}

func (p *OpenAICompatibleProvider) ModelName() string    { return p.model }
func (p *OpenAICompatibleProvider) ContextWindow() int   { return p.contextWindow }
func (p *OpenAICompatibleProvider) SupportsTools() bool  { return true }
func (p *OpenAICompatibleProvider) CostPerToken() (float64, float64) {
	return p.inputRate, p.outputRate
}
func (p *OpenAICompatibleProvider) EstimateTokens(msgs []agent.Message) int {
	return NewTokenCounter(p.model).CountMessages(msgs)
}

// --- wire shapes ---

type openAIToolCall struct {
	ID       string             `json:"id"`
	Type     string             `json:"type"`
	Function openAIToolCallFunc `json:"function"`
}

type openAIToolCallFunc struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type openAIMessage struct {
	Role       string           `json:"role"`
	Content    *string          `json:"content"`
	ToolCalls  []openAIToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

type openAITool struct {
	Type     string         `json:"type"`
	Function openAIFuncSpec `json:"function"`
}

type openAIFuncSpec struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

type openAIRequest struct {
	Model         string           `json:"model"`
	Messages      []openAIMessage  `json:"messages"`
	Temperature   float64          `json:"temperature"`
	Stream        bool             `json:"stream"`
	MaxTokens     *int             `json:"max_tokens,omitempty"`
	Stop          []string         `json:"stop,omitempty"`
	Tools         []openAITool     `json:"tools,omitempty"`
	StreamOptions *openAIStreamOpt `json:"stream_options,omitempty"`
}

type openAIStreamOpt struct {
	IncludeUsage bool `json:"include_usage"`
}

type openAIUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

type openAIChoice struct {
	Message      openAIMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

type openAIResponse struct {
	Choices []openAIChoice `json:"choices"`
	Usage   openAIUsage    `json:"usage"`
	Model   string         `json:"model"`
}

// toWireMessages applies turn repair then converts to the wire shape.
func toWireMessages(system string, msgs []agent.Message) []openAIMessage {
	repaired := FixOpenAITurns(msgs)
	out := make([]openAIMessage, 0, len(repaired)+1)
	if system != "" {
		s := system
		out = append(out, openAIMessage{Role: "system", Content: &s})
	}
	for _, m := range repaired {
		out = append(out, messageToWire(m)...)
	}
	return out
}

// messageToWire converts a single message into the wire messages it
// produces. A Tool-role message carries one or more ToolResults, and each
// must become its own {role: "tool", tool_call_id, content} message; every
// other role maps to exactly one wire message.
func messageToWire(m agent.Message) []openAIMessage {
	switch m.Role {
	case agent.RoleTool:
		results := m.ToolResults()
		if len(results) == 0 {
			return []openAIMessage{{Role: "tool"}}
		}
		out := make([]openAIMessage, 0, len(results))
		for _, r := range results {
			content := r.Output
			out = append(out, openAIMessage{Role: "tool", Content: &content, ToolCallID: r.CallID})
		}
		return out
	case agent.RoleAssistant:
		calls := m.ToolCalls()
		text := textOnly(m.Content)
		wm := openAIMessage{Role: "assistant"}
		if len(calls) > 0 {
			wm.Content = nil
			for _, c := range calls {
				wm.ToolCalls = append(wm.ToolCalls, openAIToolCall{
					ID:   c.ID,
					Type: "function",
					Function: openAIToolCallFunc{
						Name:      c.Name,
						Arguments: string(c.Arguments),
					},
				})
			}
			if text != "" {
				wm.Content = &text
			}
		} else {
			wm.Content = &text
		}
		return []openAIMessage{wm}
	default:
		text := m.Text()
		role := string(m.Role)
		return []openAIMessage{{Role: role, Content: &text}}
	}
}

func textOnly(c agent.Content) string {
	switch c.Kind {
	case agent.ContentText:
		return c.Text
	case agent.ContentMultiPart:
		var b strings.Builder
		for _, p := range c.Parts {
			if p.Kind == agent.ContentText {
				b.WriteString(p.Text)
			}
		}
		return b.String()
	default:
		return ""
	}
}

func toolsToWire(tools []agent.ToolDefinition) []openAITool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]openAITool, 0, len(tools))
	for _, t := range tools {
		out = append(out, openAITool{
			Type: "function",
			Function: openAIFuncSpec{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return out
}

func buildOpenAIRequest(req *agent.CompletionRequest, model string, stream bool) openAIRequest {
	maxTokens := req.MaxTokens
	body := openAIRequest{
		Model:       model,
		Messages:    toWireMessages(req.System, req.Messages),
		Temperature: req.Temperature,
		Stream:      stream,
		Stop:        req.Stop,
		Tools:       toolsToWire(req.Tools),
	}
	if maxTokens > 0 {
		body.MaxTokens = &maxTokens
	}
	if stream {
		body.StreamOptions = &openAIStreamOpt{IncludeUsage: true}
	}
	return body
}

func (p *OpenAICompatibleProvider) newRequest(ctx context.Context, body openAIRequest) (*http.Request, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	return req, nil
}

// Complete sends a non-streaming completion request.
func (p *OpenAICompatibleProvider) Complete(ctx context.Context, req *agent.CompletionRequest) (_ *agent.CompletionResponse, callErr error) {
	model := req.Model
	if model == "" {
		model = p.model
	}
	body := buildOpenAIRequest(req, model, false)

	if p.tracer != nil {
		var span trace.Span
		ctx, span = p.tracer.TraceLLMRequest(ctx, "openai", model)
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
		callErr = mapOpenAIHTTPError(httpResp.StatusCode, data)
		return nil, callErr
	}

	var parsed openAIResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		callErr = agent.NewResponseParse("malformed completion response", err)
		return nil, callErr
	}
	if len(parsed.Choices) == 0 {
		callErr = agent.NewResponseParse("response carried no choices", nil)
		return nil, callErr
	}

	choice := parsed.Choices[0]
	msg := wireToMessage(choice.Message)

	modelID := parsed.Model
	if modelID == "" {
		modelID = model
	}

	return &agent.CompletionResponse{
		Message: msg,
		Usage: agent.TokenUsage{
			InputTokens:  parsed.Usage.PromptTokens,
			OutputTokens: parsed.Usage.CompletionTokens,
		},
		Model:  modelID,
		Finish: mapFinishReason(choice.FinishReason),
	}, nil
}

func mapFinishReason(reason string) agent.FinishReason {
	switch reason {
	case "tool_calls":
		return agent.FinishToolCalls
	case "length":
		return agent.FinishLength
	default:
		return agent.FinishStop
	}
}

func wireToMessage(m openAIMessage) agent.Message {
	var parts []agent.Content
	if m.Content != nil && *m.Content != "" {
		parts = append(parts, agent.TextContent(*m.Content))
	}
	for _, tc := range m.ToolCalls {
		args := json.RawMessage(tc.Function.Arguments)
		var probe any
		if json.Unmarshal(args, &probe) != nil {
			args = json.RawMessage(`{}`)
		}
		parts = append(parts, agent.ToolCallContent(agent.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: args,
		}))
	}
	switch len(parts) {
	case 0:
		return agent.Message{Role: agent.RoleAssistant, Content: agent.TextContent("")}
	case 1:
		return agent.Message{Role: agent.RoleAssistant, Content: parts[0]}
	default:
		return agent.Message{Role: agent.RoleAssistant, Content: agent.MultiPartContent(parts...)}
	}
}

// mapOpenAIHTTPError implements the §4.1.1 HTTP error mapping table.
func mapOpenAIHTTPError(status int, body []byte) error {
	text := string(body)
	switch {
	case status == http.StatusUnauthorized:
		return agent.NewAuthFailed(text)
	case status == http.StatusTooManyRequests:
		return agent.NewRateLimited(parseOpenAIRetryAfter(text), text)
	case status >= 500:
		return agent.NewAPIRequest(status, text)
	default:
		return agent.NewAPIRequest(status, text)
	}
}

// parseOpenAIRetryAfter looks for "try again in Xs" in the error body. Any
// non-parseable hint falls back to 5s per spec.md's open question.
func parseOpenAIRetryAfter(body string) int {
	idx := strings.Index(body, "try again in ")
	if idx < 0 {
		return 5
	}
	rest := body[idx+len("try again in "):]
	rest = strings.TrimSuffix(strings.TrimSpace(rest), "s")
	end := 0
	for end < len(rest) && (rest[end] >= '0' && rest[end] <= '9' || rest[end] == '.') {
		end++
	}
	if end == 0 {
		return 5
	}
	secs, err := strconv.ParseFloat(rest[:end], 64)
	if err != nil || secs <= 0 {
		return 5
	}
	return int(secs + 0.5)
}

func classifyTransportError(err error) error {
	if err == nil {
		return nil
	}
	if ctxErr := err; ctxErr != nil {
		msg := ctxErr.Error()
		if strings.Contains(msg, "deadline exceeded") || strings.Contains(msg, "timeout") {
			return agent.NewTimeout(msg)
		}
	}
	return agent.NewConnection(err.Error(), err)
}

// --- streaming ---

type openAIStreamChunkDelta struct {
	Content   string                     `json:"content"`
	ToolCalls []openAIStreamToolCallPart `json:"tool_calls"`
}

type openAIStreamToolCallPart struct {
	Index    int                 `json:"index"`
	ID       string              `json:"id"`
	Function *openAIToolCallFunc `json:"function"`
}

type openAIStreamChoice struct {
	Delta        openAIStreamChunkDelta `json:"delta"`
	FinishReason *string                `json:"finish_reason"`
}

type openAIStreamChunk struct {
	Choices []openAIStreamChoice `json:"choices"`
	Usage   *openAIUsage         `json:"usage"`
}

// CompleteStreaming implements the §4.1.1 SSE streaming contract.
func (p *OpenAICompatibleProvider) CompleteStreaming(ctx context.Context, req *agent.CompletionRequest, sink chan<- agent.StreamEvent) error {
	defer close(sink)

	model := req.Model
	if model == "" {
		model = p.model
	}
	body := buildOpenAIRequest(req, model, true)

	if p.tracer != nil {
		var span trace.Span
		ctx, span = p.tracer.TraceLLMRequest(ctx, "openai", model)
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

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		e := classifyTransportError(err)
		sink <- agent.StreamEvent{Kind: agent.StreamError, Err: e}
		return e
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		e := mapOpenAIHTTPError(resp.StatusCode, data)
		sink <- agent.StreamEvent{Kind: agent.StreamError, Err: e}
		return e
	}

	state := newOpenAIStreamState()
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "[DONE]" {
			break
		}

		var chunk openAIStreamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			continue
		}
		state.apply(chunk, sink)
	}

	if err := scanner.Err(); err != nil {
		e := agent.NewConnection("stream read failed", err)
		sink <- agent.StreamEvent{Kind: agent.StreamError, Err: e}
		return e
	}

	state.finish(sink)
	return nil
}

// openAIStreamState tracks the small per-stream state machine required to
// demultiplex tool_calls deltas (keyed by stable per-chunk index) into
// ToolCallStart/Delta/End events.
type openAIStreamState struct {
	indexToID map[int]string
	started   map[string]bool
	usage     agent.TokenUsage
	doneSent  bool
}

func newOpenAIStreamState() *openAIStreamState {
	return &openAIStreamState{
		indexToID: map[int]string{},
		started:   map[string]bool{},
	}
}

func (s *openAIStreamState) apply(chunk openAIStreamChunk, sink chan<- agent.StreamEvent) {
	if chunk.Usage != nil {
		s.usage = agent.TokenUsage{InputTokens: chunk.Usage.PromptTokens, OutputTokens: chunk.Usage.CompletionTokens}
	}
	if len(chunk.Choices) == 0 {
		return
	}
	choice := chunk.Choices[0]

	if choice.Delta.Content != "" {
		sink <- agent.StreamEvent{Kind: agent.StreamToken, Token: choice.Delta.Content}
	}

	for _, tc := range choice.Delta.ToolCalls {
		id, known := s.indexToID[tc.Index]
		if !known {
			if tc.ID != "" {
				id = tc.ID
			} else {
				id = fmt.Sprintf("call_%d", tc.Index)
			}
			s.indexToID[tc.Index] = id
		}
		if !s.started[id] && tc.Function != nil && tc.Function.Name != "" {
			s.started[id] = true
			sink <- agent.StreamEvent{Kind: agent.StreamToolCallStart, ToolCallID: id, ToolCallName: tc.Function.Name}
		}
		if tc.Function != nil && tc.Function.Arguments != "" {
			sink <- agent.StreamEvent{Kind: agent.StreamToolCallDelta, ToolCallID: id, ArgsDelta: tc.Function.Arguments}
		}
	}

	if choice.FinishReason != nil && *choice.FinishReason == "tool_calls" {
		s.emitEnds(sink)
	}
}

func (s *openAIStreamState) emitEnds(sink chan<- agent.StreamEvent) {
	for _, id := range s.indexToID {
		if s.started[id] {
			sink <- agent.StreamEvent{Kind: agent.StreamToolCallEnd, ToolCallID: id}
			s.started[id] = false
		}
	}
}

func (s *openAIStreamState) finish(sink chan<- agent.StreamEvent) {
	if s.doneSent {
		return
	}
	s.emitEnds(sink)
	sink <- agent.StreamEvent{Kind: agent.StreamDone, Usage: s.usage}
	s.doneSent = true
}
