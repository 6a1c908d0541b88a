package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/MandBea-Media-Labs/cost-of-concrete-sub007/internal/llm"
	"github.com/MandBea-Media-Labs/cost-of-concrete-sub007/internal/prompts"
	"github.com/MandBea-Media-Labs/cost-of-concrete-sub007/internal/schemas"
	"github.com/MandBea-Media-Labs/cost-of-concrete-sub007/internal/types"
)

// WriterAgent drafts the article body, or revises it when the prior
// iteration's QA feedback is present.
type WriterAgent struct {
	client llm.Client
}

// NewWriterAgent creates a writer agent backed by the given client.
func NewWriterAgent(client llm.Client) *WriterAgent {
	return &WriterAgent{client: client}
}

// Type identifies the agent's role.
func (a *WriterAgent) Type() types.AgentType { return types.AgentWriter }

// ValidateInput reports whether the context carries what Execute needs.
func (a *WriterAgent) ValidateInput(ac *Context) error {
	if err := validateBase(types.AgentWriter, ac); err != nil {
		return err
	}
	if ac.Research == nil {
		return fmt.Errorf("writer agent: research brief is required")
	}
	if ac.Iteration > 1 && ac.PriorQA == nil {
		return fmt.Errorf("writer agent: revision iteration %d without prior QA feedback", ac.Iteration)
	}
	return nil
}

// OutputSchema returns the JSON Schema the agent's output satisfies.
func (a *WriterAgent) OutputSchema() string { return schemas.ArticleDraft }

// Execute produces the article draft for the current iteration.
func (a *WriterAgent) Execute(ctx context.Context, ac *Context) (*Result, error) {
	if err := a.ValidateInput(ac); err != nil {
		return nil, err
	}

	briefJSON, err := json.MarshalIndent(ac.Research, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode research brief: %w", err)
	}

	var prompt string
	if ac.Iteration > 1 {
		template, err := prompts.Get("writer.json", "revise_article")
		if err != nil {
			return nil, err
		}
		prevDraft := ""
		if ac.Draft != nil {
			prevDraft = ac.Draft.BodyHTML
		}
		prompt = prompts.Format(template, map[string]string{
			"Keyword":       ac.Job.Keyword,
			"ResearchBrief": string(briefJSON),
			"PreviousDraft": prevDraft,
			"Feedback":      ac.PriorQA.Feedback,
		})
	} else {
		template, err := prompts.Get("writer.json", "draft_article")
		if err != nil {
			return nil, err
		}
		prompt = prompts.Format(template, map[string]string{
			"Keyword":       ac.Job.Keyword,
			"ResearchBrief": string(briefJSON),
		})
	}

	result, err := llm.GenerateJSON(ctx, a.client, requestFromPersona(ac.Persona, prompt), a.OutputSchema(), jsonMaxRetries)
	if err != nil {
		return nil, fmt.Errorf("draft generation failed: %w", err)
	}

	var draft types.ArticleDraft
	if err := json.Unmarshal(result.Data, &draft); err != nil {
		return nil, fmt.Errorf("failed to decode article draft: %w", err)
	}
	if draft.WordCount == 0 {
		draft.WordCount = len(strings.Fields(stripTags(draft.BodyHTML)))
	}

	output, err := json.Marshal(draft)
	if err != nil {
		return nil, fmt.Errorf("failed to encode article draft: %w", err)
	}

	return &Result{
		Output:           output,
		Usage:            result.Usage,
		EstimatedCostUSD: result.EstimatedCostUSD,
		ContinueToNext:   true,
	}, nil
}

// stripTags removes HTML tags for word counting. Crude but adequate for the
// well-formed tag subset the writer is instructed to emit.
func stripTags(html string) string {
	var sb strings.Builder
	inTag := false
	for _, r := range html {
		switch {
		case r == '<':
			inTag = true
			sb.WriteByte(' ')
		case r == '>':
			inTag = false
		case !inTag:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
