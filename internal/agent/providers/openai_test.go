package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/corebrain/agentcore/internal/agent"
)

func TestOpenAICompleteSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q, want /chat/completions", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"choices": [{"message": {"role": "assistant", "content": "hi there"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 4},
			"model": "gpt-4o"
		}`))
	}))
	defer server.Close()

	p, err := NewOpenAICompatibleProvider(server.URL, "sk-test", "gpt-4o", 128000, 0.0000025, 0.00001)
	if err != nil {
		t.Fatalf("NewOpenAICompatibleProvider: %v", err)
	}

	resp, err := p.Complete(context.Background(), &agent.CompletionRequest{
		Messages: []agent.Message{agent.NewTextMessage(agent.RoleUser, "hello")},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Message.Text() != "hi there" {
		t.Errorf("Message.Text() = %q, want hi there", resp.Message.Text())
	}
	if resp.Usage.InputTokens != 12 || resp.Usage.OutputTokens != 4 {
		t.Errorf("Usage = %+v, want 12/4", resp.Usage)
	}
	if resp.Finish != agent.FinishStop {
		t.Errorf("Finish = %v, want FinishStop", resp.Finish)
	}
}

func TestOpenAICompleteMapsAuthError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("invalid api key"))
	}))
	defer server.Close()

	p, err := NewOpenAICompatibleProvider(server.URL, "sk-bad", "gpt-4o", 128000, 0, 0)
	if err != nil {
		t.Fatalf("NewOpenAICompatibleProvider: %v", err)
	}
	_, err = p.Complete(context.Background(), &agent.CompletionRequest{
		Messages: []agent.Message{agent.NewTextMessage(agent.RoleUser, "hi")},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	llmErr, ok := err.(*agent.LLMError)
	if !ok || llmErr.Kind != agent.KindAuthFailed {
		t.Errorf("err = %v, want a KindAuthFailed LLMError", err)
	}
}

func TestOpenAICompleteMapsRateLimitWithRetryAfter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte("rate limit exceeded, try again in 12s"))
	}))
	defer server.Close()

	p, err := NewOpenAICompatibleProvider(server.URL, "sk-test", "gpt-4o", 128000, 0, 0)
	if err != nil {
		t.Fatalf("NewOpenAICompatibleProvider: %v", err)
	}
	_, err = p.Complete(context.Background(), &agent.CompletionRequest{
		Messages: []agent.Message{agent.NewTextMessage(agent.RoleUser, "hi")},
	})
	llmErr, ok := err.(*agent.LLMError)
	if !ok || llmErr.Kind != agent.KindRateLimited {
		t.Fatalf("err = %v, want a KindRateLimited LLMError", err)
	}
	if llmErr.RetryAfterSecs != 12 {
		t.Errorf("RetryAfterSecs = %d, want 12", llmErr.RetryAfterSecs)
	}
}

func TestOpenAICompleteMapsServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer server.Close()

	p, err := NewOpenAICompatibleProvider(server.URL, "sk-test", "gpt-4o", 128000, 0, 0)
	if err != nil {
		t.Fatalf("NewOpenAICompatibleProvider: %v", err)
	}
	_, err = p.Complete(context.Background(), &agent.CompletionRequest{
		Messages: []agent.Message{agent.NewTextMessage(agent.RoleUser, "hi")},
	})
	llmErr, ok := err.(*agent.LLMError)
	if !ok || llmErr.Kind != agent.KindAPIRequest {
		t.Fatalf("err = %v, want a KindAPIRequest LLMError", err)
	}
}

func TestOpenAICompleteRejectsEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": [], "usage": {"prompt_tokens": 1, "completion_tokens": 0}}`))
	}))
	defer server.Close()

	p, err := NewOpenAICompatibleProvider(server.URL, "sk-test", "gpt-4o", 128000, 0, 0)
	if err != nil {
		t.Fatalf("NewOpenAICompatibleProvider: %v", err)
	}
	_, err = p.Complete(context.Background(), &agent.CompletionRequest{
		Messages: []agent.Message{agent.NewTextMessage(agent.RoleUser, "hi")},
	})
	if err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestNewOpenAICompatibleProviderRequiresKeyForRemoteEndpoint(t *testing.T) {
	if _, err := NewOpenAICompatibleProvider("https://api.openai.com/v1", "", "gpt-4o", 128000, 0, 0); err == nil {
		t.Error("expected error constructing a remote provider with no API key")
	}
}

func TestNewOpenAICompatibleProviderAllowsEmptyKeyForLocalEndpoint(t *testing.T) {
	if _, err := NewOpenAICompatibleProvider("http://localhost:11434/v1", "", "llama3", 8192, 0, 0); err != nil {
		t.Errorf("expected local endpoint to accept empty API key, got %v", err)
	}
}

func TestOpenAICompleteStreamingEmitsTokensAndToolCalls(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher, _ := w.(http.Flusher)
		lines := []string{
			`data: {"choices":[{"delta":{"content":"Hel"}}]}`,
			`data: {"choices":[{"delta":{"content":"lo"}}]}`,
			`data: {"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_1","function":{"name":"read_file","arguments":""}}]}}]}`,
			`data: {"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"path\":\"a.txt\"}"}}]}}]}`,
			`data: {"choices":[{"delta":{},"finish_reason":"tool_calls"}]}`,
			`data: {"choices":[],"usage":{"prompt_tokens":20,"completion_tokens":8}}`,
			`data: [DONE]`,
		}
		for _, l := range lines {
			w.Write([]byte(l + "\n\n"))
			if flusher != nil {
				flusher.Flush()
			}
		}
	}))
	defer server.Close()

	p, err := NewOpenAICompatibleProvider(server.URL, "sk-test", "gpt-4o", 128000, 0, 0)
	if err != nil {
		t.Fatalf("NewOpenAICompatibleProvider: %v", err)
	}

	sink := make(chan agent.StreamEvent, 32)
	err = p.CompleteStreaming(context.Background(), &agent.CompletionRequest{
		Messages: []agent.Message{agent.NewTextMessage(agent.RoleUser, "hi")},
	}, sink)
	if err != nil {
		t.Fatalf("CompleteStreaming: %v", err)
	}

	var tokens []string
	var sawStart, sawDelta, sawEnd, sawDone bool
	var doneUsage agent.TokenUsage
	for ev := range sink {
		switch ev.Kind {
		case agent.StreamToken:
			tokens = append(tokens, ev.Token)
		case agent.StreamToolCallStart:
			sawStart = true
			if ev.ToolCallName != "read_file" {
				t.Errorf("ToolCallName = %q, want read_file", ev.ToolCallName)
			}
		case agent.StreamToolCallDelta:
			sawDelta = true
		case agent.StreamToolCallEnd:
			sawEnd = true
		case agent.StreamDone:
			sawDone = true
			doneUsage = ev.Usage
		}
	}
	if strings.Join(tokens, "") != "Hello" {
		t.Errorf("tokens joined = %q, want Hello", strings.Join(tokens, ""))
	}
	if !sawStart || !sawDelta || !sawEnd || !sawDone {
		t.Errorf("missing expected event kinds: start=%v delta=%v end=%v done=%v", sawStart, sawDelta, sawEnd, sawDone)
	}
	if doneUsage.InputTokens != 20 || doneUsage.OutputTokens != 8 {
		t.Errorf("doneUsage = %+v, want 20/8", doneUsage)
	}
}

func TestOpenAICompleteStreamingMapsHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("nope"))
	}))
	defer server.Close()

	p, err := NewOpenAICompatibleProvider(server.URL, "sk-test", "gpt-4o", 128000, 0, 0)
	if err != nil {
		t.Fatalf("NewOpenAICompatibleProvider: %v", err)
	}

	sink := make(chan agent.StreamEvent, 4)
	err = p.CompleteStreaming(context.Background(), &agent.CompletionRequest{
		Messages: []agent.Message{agent.NewTextMessage(agent.RoleUser, "hi")},
	}, sink)
	if err == nil {
		t.Fatal("expected error")
	}
	ev, ok := <-sink
	if !ok || ev.Kind != agent.StreamError {
		t.Fatalf("expected a StreamError event, got %+v (ok=%v)", ev, ok)
	}
}

func TestParseOpenAIRetryAfterFallsBackToFiveSeconds(t *testing.T) {
	if got := parseOpenAIRetryAfter("no hint here"); got != 5 {
		t.Errorf("parseOpenAIRetryAfter(no hint) = %d, want 5", got)
	}
	if got := parseOpenAIRetryAfter("please try again in 3.5s"); got != 4 {
		t.Errorf("parseOpenAIRetryAfter(3.5s) = %d, want 4 (rounded)", got)
	}
}
