// Package agent defines the canonical data model shared by every provider
// dialect, the tool registry, and the brain: messages, completions, streaming
// events, and risk-classified tool capabilities.
package agent

import (
	"encoding/json"
)

// Role identifies who authored a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ContentKind discriminates the tagged union carried by Content.
type ContentKind string

const (
	ContentText       ContentKind = "text"
	ContentToolCall   ContentKind = "tool_call"
	ContentToolResult ContentKind = "tool_result"
	ContentMultiPart  ContentKind = "multi_part"
)

// Content is a tagged union: exactly one of the fields matching Kind is
// populated. MultiPart carries an ordered slice of the other three kinds
// (never itself nested) and is used when a single assistant turn emits both
// text and tool calls.
type Content struct {
	Kind ContentKind `json:"kind"`

	Text       string      `json:"text,omitempty"`
	ToolCall   *ToolCall   `json:"tool_call,omitempty"`
	ToolResult *ToolResult `json:"tool_result,omitempty"`
	Parts      []Content   `json:"parts,omitempty"`
}

// TextContent builds a Content of kind ContentText.
func TextContent(text string) Content {
	return Content{Kind: ContentText, Text: text}
}

// ToolCallContent builds a Content of kind ContentToolCall.
func ToolCallContent(call ToolCall) Content {
	return Content{Kind: ContentToolCall, ToolCall: &call}
}

// ToolResultContent builds a Content of kind ContentToolResult.
func ToolResultContent(result ToolResult) Content {
	return Content{Kind: ContentToolResult, ToolResult: &result}
}

// MultiPartContent builds a Content of kind ContentMultiPart.
func MultiPartContent(parts ...Content) Content {
	return Content{Kind: ContentMultiPart, Parts: parts}
}

// ToolCall is an assistant request to invoke a named tool with a JSON
// arguments value. ID is referenced by the matching ToolResult.CallID.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolResult is the outcome of executing a ToolCall, fed back into the
// conversation on the following turn. CallID MUST equal some earlier
// ToolCall.ID in the same conversation.
type ToolResult struct {
	CallID  string `json:"call_id"`
	Output  string `json:"output"`
	IsError bool   `json:"is_error,omitempty"`
}

// Message is a (role, content) pair — one entry in a conversation.
type Message struct {
	Role    Role    `json:"role"`
	Content Content `json:"content"`
}

// NewTextMessage is a convenience constructor for a plain text message.
func NewTextMessage(role Role, text string) Message {
	return Message{Role: role, Content: TextContent(text)}
}

// ToolCalls extracts every ToolCall carried by this message's content,
// whether it is a bare ContentToolCall or nested inside a MultiPart.
func (m Message) ToolCalls() []ToolCall {
	return collectToolCalls(m.Content, nil)
}

func collectToolCalls(c Content, acc []ToolCall) []ToolCall {
	switch c.Kind {
	case ContentToolCall:
		if c.ToolCall != nil {
			acc = append(acc, *c.ToolCall)
		}
	case ContentMultiPart:
		for _, p := range c.Parts {
			acc = collectToolCalls(p, acc)
		}
	}
	return acc
}

// ToolResults extracts every ToolResult carried by this message's content.
func (m Message) ToolResults() []ToolResult {
	return collectToolResults(m.Content, nil)
}

func collectToolResults(c Content, acc []ToolResult) []ToolResult {
	switch c.Kind {
	case ContentToolResult:
		if c.ToolResult != nil {
			acc = append(acc, *c.ToolResult)
		}
	case ContentMultiPart:
		for _, p := range c.Parts {
			acc = collectToolResults(p, acc)
		}
	}
	return acc
}

// Text concatenates every text part of this message's content.
func (m Message) Text() string {
	return collectText(m.Content, "")
}

func collectText(c Content, acc string) string {
	switch c.Kind {
	case ContentText:
		acc += c.Text
	case ContentMultiPart:
		for _, p := range c.Parts {
			acc = collectText(p, acc)
		}
	}
	return acc
}

// TokenUsage tracks input/output token counts for a single completion.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Add returns the element-wise sum of two TokenUsage values.
func (u TokenUsage) Add(other TokenUsage) TokenUsage {
	return TokenUsage{
		InputTokens:  u.InputTokens + other.InputTokens,
		OutputTokens: u.OutputTokens + other.OutputTokens,
	}
}

// Total returns InputTokens + OutputTokens.
func (u TokenUsage) Total() int {
	return u.InputTokens + u.OutputTokens
}

// Cost tracks accumulated spend split by input/output token rate.
type Cost struct {
	Input  float64 `json:"input"`
	Output float64 `json:"output"`
}

// Total returns Input + Output.
func (c Cost) Total() float64 {
	return c.Input + c.Output
}

// ToolDefinition advertises one callable capability to a Provider, which
// translates it into that dialect's wire shape for tool/function calling.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// CompletionRequest carries everything a Provider needs to produce one
// assistant turn.
type CompletionRequest struct {
	Model       string
	System      string
	Messages    []Message
	Tools       []ToolDefinition
	Temperature float64
	MaxTokens   int
	Stop        []string
}

// FinishReason is the terminal status string a provider reports for a
// completion. At minimum "stop", "tool_calls"/"tool_use", and "length" are
// observed across dialects.
type FinishReason string

const (
	FinishStop      FinishReason = "stop"
	FinishToolCalls FinishReason = "tool_calls"
	FinishLength    FinishReason = "length"
)

// CompletionResponse is the non-streaming result of a completion call.
type CompletionResponse struct {
	Message Message
	Usage   TokenUsage
	Model   string
	Finish  FinishReason
}

// StreamEventKind discriminates the StreamEvent tagged union.
type StreamEventKind string

const (
	StreamToken         StreamEventKind = "token"
	StreamToolCallStart StreamEventKind = "tool_call_start"
	StreamToolCallDelta StreamEventKind = "tool_call_delta"
	StreamToolCallEnd   StreamEventKind = "tool_call_end"
	StreamDone          StreamEventKind = "done"
	StreamError         StreamEventKind = "error"
)

// StreamEvent is one element of the ordered event stream a Provider emits
// while generating a response. Exactly one field cluster matching Kind is
// populated.
type StreamEvent struct {
	Kind StreamEventKind

	Token string // StreamToken

	ToolCallID   string // StreamToolCallStart, StreamToolCallDelta, StreamToolCallEnd
	ToolCallName string // StreamToolCallStart
	ArgsDelta    string // StreamToolCallDelta

	Usage TokenUsage // StreamDone

	Err error // StreamError
}
