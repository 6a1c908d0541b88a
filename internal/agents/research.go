package agents

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/MandBea-Media-Labs/cost-of-concrete-sub007/internal/llm"
	"github.com/MandBea-Media-Labs/cost-of-concrete-sub007/internal/prompts"
	"github.com/MandBea-Media-Labs/cost-of-concrete-sub007/internal/schemas"
	"github.com/MandBea-Media-Labs/cost-of-concrete-sub007/internal/types"
)

// ResearchAgent produces the keyword, competitor, and intent analysis the
// writer and SEO agents consume. It runs once per job, not per iteration.
type ResearchAgent struct {
	client llm.Client
}

// NewResearchAgent creates a research agent backed by the given client.
func NewResearchAgent(client llm.Client) *ResearchAgent {
	return &ResearchAgent{client: client}
}

// Type identifies the agent's role.
func (a *ResearchAgent) Type() types.AgentType { return types.AgentResearch }

// ValidateInput reports whether the context carries what Execute needs.
func (a *ResearchAgent) ValidateInput(ac *Context) error {
	return validateBase(types.AgentResearch, ac)
}

// OutputSchema returns the JSON Schema the agent's output satisfies.
func (a *ResearchAgent) OutputSchema() string { return schemas.ResearchBrief }

// Execute generates the research brief for the job's keyword.
func (a *ResearchAgent) Execute(ctx context.Context, ac *Context) (*Result, error) {
	if err := a.ValidateInput(ac); err != nil {
		return nil, err
	}

	template, err := prompts.Get("research.json", "analyze_keyword")
	if err != nil {
		return nil, err
	}
	prompt := prompts.Format(template, map[string]string{
		"Keyword":     ac.Job.Keyword,
		"SiteContext": settingString(ac.Job.Settings, "site_context", "local contractor cost directory"),
	})

	result, err := llm.GenerateJSON(ctx, a.client, requestFromPersona(ac.Persona, prompt), a.OutputSchema(), jsonMaxRetries)
	if err != nil {
		return nil, fmt.Errorf("research generation failed: %w", err)
	}

	var brief types.ResearchBrief
	if err := json.Unmarshal(result.Data, &brief); err != nil {
		return nil, fmt.Errorf("failed to decode research brief: %w", err)
	}
	// The brief always reflects the job's keyword, whatever the model said.
	brief.Keyword = ac.Job.Keyword

	output, err := json.Marshal(brief)
	if err != nil {
		return nil, fmt.Errorf("failed to encode research brief: %w", err)
	}

	return &Result{
		Output:           output,
		Usage:            result.Usage,
		EstimatedCostUSD: result.EstimatedCostUSD,
		ContinueToNext:   true,
	}, nil
}

// settingString reads a string value from the job settings bag.
func settingString(settings map[string]any, key, fallback string) string {
	if settings == nil {
		return fallback
	}
	if v, ok := settings[key].(string); ok && v != "" {
		return v
	}
	return fallback
}
