package llm

import "github.com/MandBea-Media-Labs/cost-of-concrete-sub007/internal/types"

// ModelPricing holds per-million-token prices in USD.
type ModelPricing struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

// pricingTable maps model names to their prices. Models absent from the
// table cost 0: unknown pricing must not crash accounting.
var pricingTable = map[string]ModelPricing{
	"gemini-2.5-flash-lite": {InputPerMillion: 0.10, OutputPerMillion: 0.40},
	"gemini-2.5-flash":      {InputPerMillion: 0.30, OutputPerMillion: 2.50},
	"gemini-2.5-pro":        {InputPerMillion: 1.25, OutputPerMillion: 10.00},
	"gemini-2.0-flash":      {InputPerMillion: 0.10, OutputPerMillion: 0.40},
	"gemini-1.5-pro":        {InputPerMillion: 1.25, OutputPerMillion: 5.00},
}

// CalculateCost returns the estimated USD cost for a model call. Unknown
// models return 0, explicitly and without error.
func CalculateCost(model string, usage types.TokenUsage) float64 {
	pricing, ok := pricingTable[model]
	if !ok {
		return 0
	}
	return float64(usage.PromptTokens)/1e6*pricing.InputPerMillion +
		float64(usage.CompletionTokens)/1e6*pricing.OutputPerMillion
}

// EstimateTokens approximates the token count of text. The 4-characters-per-
// token heuristic is close enough for budgeting English prose.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}
