package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/MandBea-Media-Labs/cost-of-concrete-sub007/internal/jsonrepair"
	"github.com/MandBea-Media-Labs/cost-of-concrete-sub007/internal/types"
)

// jsonTemperature favors determinism for structured output when the caller
// did not configure a sampling temperature.
const jsonTemperature = 0.1

// JSONResult is the outcome of a GenerateJSON call. Usage and cost cover
// every attempt made, including failed ones.
type JSONResult struct {
	Data             json.RawMessage
	Usage            types.TokenUsage
	EstimatedCostUSD float64
	Attempts         int
}

// GenerateJSON calls the model in JSON mode, parses and validates the
// response against schema through the repair layer, and retries the same
// prompt up to maxRetries times on validation failure. A request without a
// temperature runs at a low default; a configured temperature is honored.
// After exhausting retries it fails with a descriptive error including a
// preview of the unparseable output.
func GenerateJSON(ctx context.Context, client Client, req CompletionRequest, schema string, maxRetries int) (*JSONResult, error) {
	if maxRetries < 0 {
		maxRetries = 0
	}

	req.JSONMode = true
	if req.Temperature == 0 {
		req.Temperature = jsonTemperature
	}

	result := &JSONResult{}
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		completion, err := client.Complete(ctx, req)
		if err != nil {
			// Provider-level failure: transient errors were already retried
			// inside the client, so surface immediately.
			return nil, err
		}
		result.Attempts++
		result.Usage = result.Usage.Add(completion.Usage)
		result.EstimatedCostUSD += completion.EstimatedCostUSD

		repaired := jsonrepair.Repair(CleanJSONBlock(completion.Content), schema)
		if repaired.Success {
			result.Data = repaired.Data
			return result, nil
		}
		lastErr = repaired.Err
	}

	return nil, fmt.Errorf("model %s produced invalid JSON after %d attempt(s): %w",
		req.Model, result.Attempts, lastErr)
}
