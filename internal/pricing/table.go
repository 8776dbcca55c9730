package pricing

import "strings"

// pricingRule is one entry in the ordered hardcoded fallback table: the
// first rule whose Prefix/Contains matcher fires wins, so more specific
// identifiers (gpt-5-nano) MUST precede their less specific prefixes
// (gpt-5-mini, gpt-5).
type pricingRule struct {
	match         func(normalized string) bool
	input, output float64
}

func prefix(p string) func(string) bool {
	return func(s string) bool { return strings.HasPrefix(s, p) }
}

func contains(subs ...string) func(string) bool {
	return func(s string) bool {
		for _, sub := range subs {
			if strings.Contains(s, sub) {
				return true
			}
		}
		return false
	}
}

// hardcodedTable is ordered; see lookupHardcoded.
var hardcodedTable = []pricingRule{
	{prefix("gpt-5-nano"), 0.05, 0.40},
	{prefix("gpt-5-mini"), 0.25, 2.00},
	{prefix("gpt-5"), 1.25, 10.00},
	{prefix("gpt-4.1-nano"), 0.10, 0.40},
	{prefix("gpt-4.1-mini"), 0.40, 1.60},
	{prefix("gpt-4.1"), 2.00, 8.00},
	{prefix("gpt-4o-mini"), 0.15, 0.60},
	{prefix("gpt-4o"), 2.50, 10.0},
	{prefix("gpt-4-turbo"), 10.0, 30.0},
	{prefix("gpt-3.5-turbo"), 0.50, 1.50},
	{prefix("o4-mini"), 1.10, 4.40},
	{prefix("o3-mini"), 1.10, 4.40},
	{prefix("o3"), 2.00, 8.00},
	{prefix("o1-mini"), 3.0, 12.0},
	{prefix("o1"), 15.0, 60.0},

	{contains("claude-opus-4-6", "claude-opus-4-5"), 5.00, 25.00},
	{contains("claude-opus-4", "claude-3-opus"), 15.0, 75.0},
	{contains("claude-sonnet-4", "claude-3-5-sonnet", "claude-3.5-sonnet"), 3.0, 15.0},
	{contains("claude-haiku-4-5"), 1.00, 5.00},
	{contains("claude-haiku-3-5", "claude-3-5-haiku", "claude-3.5-haiku"), 0.80, 4.0},
	{contains("claude-3-haiku"), 0.25, 1.25},

	{prefix("gemini-2.5-pro"), 1.25, 10.0},
	{prefix("gemini-2.5-flash-lite"), 0.10, 0.40},
	{prefix("gemini-2.5-flash"), 0.30, 2.50},
	{prefix("gemini-2.0-flash"), 0.10, 0.40},
	{prefix("gemini-1.5-pro"), 1.25, 5.0},
	{prefix("gemini-1.5-flash"), 0.075, 0.30},
}

// localModelPrefixes carries zero cost: self-hosted/Ollama-style models.
var localModelPrefixes = []string{
	"qwen", "llama", "mistral", "mixtral", "deepseek", "phi-",
	"codellama", "gemma", "vicuna", "orca", "neural-chat", "starling", "yi-",
}

// LookupHardcodedForCatalog exposes the hardcoded fallback table to the
// model catalog, so a freshly listed model id can carry pricing without
// going through a persistent Cache.
func LookupHardcodedForCatalog(model string) (input, output float64, ok bool) {
	return lookupHardcoded(model)
}

// lookupHardcoded resolves model (case-insensitive) against the ordered
// fallback table, then the zero-cost local-model prefix list.
func lookupHardcoded(model string) (input, output float64, ok bool) {
	normalized := strings.ToLower(model)

	for _, rule := range hardcodedTable {
		if rule.match(normalized) {
			return rule.input, rule.output, true
		}
	}
	for _, p := range localModelPrefixes {
		if strings.HasPrefix(normalized, p) {
			return 0, 0, true
		}
	}
	return 0, 0, false
}
