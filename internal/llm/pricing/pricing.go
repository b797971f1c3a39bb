// Package pricing computes the cost of LLM token usage. Rates are stored in
// milli-cents per million tokens and costs in nano-cents, so every cost is
// an exact integer product of tokens and rate with no fractional drift.
// Summing prompt and completion costs therefore always equals the total.
package pricing

import (
	"sync"

	"github.com/gradepipe/gradepipe/internal/llm/transport"
)

// Rate holds per-million-token prices in milli-cents for one model.
// A rate of 3000 milli-cents per million tokens is $0.03 per million.
type Rate struct {
	PromptPerMillion     int64 `json:"prompt_per_million"`
	CompletionPerMillion int64 `json:"completion_per_million"`
}

// Cost is the computed price of one LLM call in nano-cents.
// Total always equals Prompt+Completion exactly.
type Cost struct {
	PromptNanoCents     int64 `json:"prompt_nano_cents"`
	CompletionNanoCents int64 `json:"completion_nano_cents"`
	TotalNanoCents      int64 `json:"total_nano_cents"`
}

// DefaultModelKey is the per-provider fallback entry consulted when the
// exact model has no configured rate.
const DefaultModelKey = "default"

// fallbackRate applies when neither the model nor the provider default is
// configured. Roughly mid-range so unknown models are never billed as free.
var fallbackRate = Rate{
	PromptPerMillion:     300_000, // $3 per million tokens
	CompletionPerMillion: 1_500_000,
}

// Registry maps provider/model pairs to token rates. Lookups never fail;
// unknown models fall back to the provider default and then to a hardcoded
// rate, so cost recording cannot block the grading path.
type Registry struct {
	mu    sync.RWMutex
	rates map[string]Rate // keyed "provider/model"
}

// NewRegistry creates a pricing registry seeded with current rates for the
// supported providers.
func NewRegistry() *Registry {
	r := &Registry{rates: make(map[string]Rate)}
	r.loadDefaults()
	return r
}

func (r *Registry) loadDefaults() {
	defaults := map[string]Rate{
		"openai/gpt-4o":            {PromptPerMillion: 250_000, CompletionPerMillion: 1_000_000},
		"openai/gpt-4o-mini":       {PromptPerMillion: 15_000, CompletionPerMillion: 60_000},
		"openai/" + DefaultModelKey: {PromptPerMillion: 250_000, CompletionPerMillion: 1_000_000},

		"anthropic/claude-sonnet-4-20250514": {PromptPerMillion: 300_000, CompletionPerMillion: 1_500_000},
		"anthropic/claude-3-5-haiku-20241022": {PromptPerMillion: 80_000, CompletionPerMillion: 400_000},
		"anthropic/" + DefaultModelKey:        {PromptPerMillion: 300_000, CompletionPerMillion: 1_500_000},
	}
	for k, v := range defaults {
		r.rates[k] = v
	}
}

// SetRate installs or replaces the rate for a provider/model pair.
func (r *Registry) SetRate(provider, model string, rate Rate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rates[provider+"/"+model] = rate
}

// RateFor resolves the rate for a provider/model pair with fallback to the
// provider default and then the hardcoded rate. Never fails.
func (r *Registry) RateFor(provider, model string) Rate {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if rate, ok := r.rates[provider+"/"+model]; ok {
		return rate
	}
	if rate, ok := r.rates[provider+"/"+DefaultModelKey]; ok {
		return rate
	}
	return fallbackRate
}

// Calculate computes the cost of the given usage in nano-cents.
// cost = tokens * rate is exact because a milli-cent per million tokens is
// one nano-cent per token.
func (r *Registry) Calculate(provider, model string, usage transport.NormalizedUsage) Cost {
	rate := r.RateFor(provider, model)

	prompt := usage.PromptTokens * rate.PromptPerMillion
	completion := usage.CompletionTokens * rate.CompletionPerMillion

	return Cost{
		PromptNanoCents:     prompt,
		CompletionNanoCents: completion,
		TotalNanoCents:      prompt + completion,
	}
}
