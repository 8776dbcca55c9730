// Package catalog implements the per-family model listing fetchers: live
// HTTP calls against each provider's models endpoint, normalized to a
// common shape, with a hardcoded fallback list when the call fails.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/corebrain/agentcore/internal/pricing"
)

// Model is the normalized shape every family fetcher returns.
type Model struct {
	ID            string   `json:"id"`
	DisplayName   string   `json:"display_name"`
	ContextWindow *int     `json:"context_window,omitempty"`
	IsChatModel   bool     `json:"is_chat_model"`
	InputCost     *float64 `json:"input_cost,omitempty"`
	OutputCost    *float64 `json:"output_cost,omitempty"`
}

var httpClient = &http.Client{Timeout: 15 * time.Second}

func withPricing(id string) (*float64, *float64) {
	in, out, ok := pricing.LookupHardcodedForCatalog(id)
	if !ok {
		return nil, nil
	}
	return &in, &out
}

// ListModels dispatches to the family fetcher named by provider ("openai",
// "anthropic", "gemini"); any other provider name falls back to the
// OpenAI-compatible fetcher, mirroring the default dialect assumption used
// elsewhere in this module.
func ListModels(ctx context.Context, provider, apiKey, baseURL string) ([]Model, error) {
	switch provider {
	case "anthropic":
		models, err := fetchAnthropicModels(ctx, apiKey)
		if err != nil {
			return AnthropicKnownModels(), nil
		}
		return models, nil
	case "gemini":
		models, err := fetchGeminiModels(ctx, apiKey)
		if err != nil {
			return GeminiKnownModels(), nil
		}
		return models, nil
	default:
		models, err := fetchOpenAIModels(ctx, apiKey, baseURL)
		if err != nil {
			return OpenAIKnownModels(), nil
		}
		return models, nil
	}
}

// --- OpenAI ---

type openAIModelsResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

func fetchOpenAIModels(ctx context.Context, apiKey, baseURL string) ([]Model, error) {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(baseURL, "/")+"/models", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("openai models: HTTP %d: %s", resp.StatusCode, string(body))
	}

	var parsed openAIModelsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("openai models: %w", err)
	}

	models := make([]Model, 0, len(parsed.Data))
	for _, d := range parsed.Data {
		in, out := withPricing(d.ID)
		models = append(models, Model{ID: d.ID, DisplayName: d.ID, IsChatModel: true, InputCost: in, OutputCost: out})
	}
	models = filterChatModels(models)
	sort.Slice(models, func(i, j int) bool { return models[i].ID < models[j].ID })
	return models, nil
}

// filterChatModels excludes embedding, whisper, tts, dall-e, moderation,
// and legacy text-* identifiers.
func filterChatModels(models []Model) []Model {
	out := models[:0]
	for _, m := range models {
		id := strings.ToLower(m.ID)
		if strings.Contains(id, "embedding") ||
			strings.Contains(id, "whisper") ||
			strings.Contains(id, "tts") ||
			strings.Contains(id, "dall-e") ||
			strings.Contains(id, "moderation") ||
			strings.HasPrefix(id, "text-") {
			continue
		}
		out = append(out, m)
	}
	return out
}

func OpenAIKnownModels() []Model {
	data := []struct {
		id, name string
		ctx      int
	}{
		{"gpt-5", "GPT-5", 400_000},
		{"gpt-5-mini", "GPT-5 Mini", 400_000},
		{"gpt-5-nano", "GPT-5 Nano", 400_000},
		{"gpt-4.1", "GPT-4.1", 1_047_576},
		{"gpt-4o", "GPT-4o", 128_000},
		{"gpt-4o-mini", "GPT-4o Mini", 128_000},
		{"o3", "o3", 200_000},
		{"o3-mini", "o3-mini", 200_000},
		{"o4-mini", "o4-mini", 200_000},
	}
	out := make([]Model, 0, len(data))
	for _, d := range data {
		in, outCost := withPricing(d.id)
		ctx := d.ctx
		out = append(out, Model{ID: d.id, DisplayName: d.name, ContextWindow: &ctx, IsChatModel: true, InputCost: in, OutputCost: outCost})
	}
	return out
}

// --- Anthropic ---

type anthropicModelsResponse struct {
	Data []struct {
		ID          string `json:"id"`
		DisplayName string `json:"display_name"`
	} `json:"data"`
}

func fetchAnthropicModels(ctx context.Context, apiKey string) ([]Model, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://api.anthropic.com/v1/models?limit=1000", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-api-key", apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("anthropic models: HTTP %d: %s", resp.StatusCode, string(body))
	}

	var parsed anthropicModelsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("anthropic models: %w", err)
	}

	models := make([]Model, 0, len(parsed.Data))
	for _, d := range parsed.Data {
		in, out := withPricing(d.ID)
		name := d.DisplayName
		if name == "" {
			name = d.ID
		}
		models = append(models, Model{ID: d.ID, DisplayName: name, IsChatModel: true, InputCost: in, OutputCost: out})
	}
	return models, nil
}

func AnthropicKnownModels() []Model {
	data := []struct {
		id, name string
		ctx      int
	}{
		{"claude-opus-4-6", "Claude Opus 4.6", 200_000},
		{"claude-sonnet-4-6", "Claude Sonnet 4.6", 200_000},
		{"claude-opus-4-5", "Claude Opus 4.5", 200_000},
		{"claude-haiku-4-5", "Claude Haiku 4.5", 200_000},
		{"claude-opus-4-20250514", "Claude Opus 4", 200_000},
		{"claude-sonnet-4-20250514", "Claude Sonnet 4", 200_000},
		{"claude-3-5-sonnet-20241022", "Claude 3.5 Sonnet", 200_000},
		{"claude-3-5-haiku-20241022", "Claude 3.5 Haiku", 200_000},
	}
	out := make([]Model, 0, len(data))
	for _, d := range data {
		in, outCost := withPricing(d.id)
		ctx := d.ctx
		out = append(out, Model{ID: d.id, DisplayName: d.name, ContextWindow: &ctx, IsChatModel: true, InputCost: in, OutputCost: outCost})
	}
	return out
}

// --- Gemini ---

type geminiModelsResponse struct {
	Models []struct {
		Name                       string   `json:"name"`
		DisplayName                string   `json:"displayName"`
		SupportedGenerationMethods []string `json:"supportedGenerationMethods"`
	} `json:"models"`
}

func fetchGeminiModels(ctx context.Context, apiKey string) ([]Model, error) {
	url := "https://generativelanguage.googleapis.com/v1beta/models?key=" + apiKey
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("gemini models: HTTP %d: %s", resp.StatusCode, string(body))
	}

	var parsed geminiModelsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("gemini models: %w", err)
	}

	models := make([]Model, 0, len(parsed.Models))
	for _, m := range parsed.Models {
		id := strings.TrimPrefix(m.Name, "models/")
		if !supportsGenerateContent(m.SupportedGenerationMethods) || isExcludedGeminiModel(id) {
			continue
		}
		in, out := withPricing(id)
		name := m.DisplayName
		if name == "" {
			name = id
		}
		models = append(models, Model{ID: id, DisplayName: name, IsChatModel: true, InputCost: in, OutputCost: out})
	}
	return models, nil
}

func supportsGenerateContent(methods []string) bool {
	for _, m := range methods {
		if m == "generateContent" {
			return true
		}
	}
	return false
}

func isExcludedGeminiModel(id string) bool {
	lower := strings.ToLower(id)
	for _, excluded := range []string{"embedding", "aqa", "imagen", "veo", "lyria"} {
		if strings.Contains(lower, excluded) {
			return true
		}
	}
	return false
}

func GeminiKnownModels() []Model {
	data := []struct {
		id, name string
		ctx      int
	}{
		{"gemini-2.5-pro", "Gemini 2.5 Pro", 1_048_576},
		{"gemini-2.5-flash", "Gemini 2.5 Flash", 1_048_576},
		{"gemini-2.0-flash", "Gemini 2.0 Flash", 1_048_576},
		{"gemini-2.0-flash-lite", "Gemini 2.0 Flash Lite", 1_048_576},
		{"gemini-1.5-pro", "Gemini 1.5 Pro", 2_097_152},
		{"gemini-1.5-flash", "Gemini 1.5 Flash", 1_048_576},
	}
	out := make([]Model, 0, len(data))
	for _, d := range data {
		in, outCost := withPricing(d.id)
		ctx := d.ctx
		out = append(out, Model{ID: d.id, DisplayName: d.name, ContextWindow: &ctx, IsChatModel: true, InputCost: in, OutputCost: outCost})
	}
	return out
}
