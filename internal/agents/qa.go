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

// QAAgent scores the draft and gates the revision loop. The overall score
// and pass verdict are derived from the dimension scores here, not taken
// from the model, so the gate's arithmetic is always consistent.
type QAAgent struct {
	client llm.Client
}

// NewQAAgent creates a QA agent backed by the given client.
func NewQAAgent(client llm.Client) *QAAgent {
	return &QAAgent{client: client}
}

// Type identifies the agent's role.
func (a *QAAgent) Type() types.AgentType { return types.AgentQA }

// ValidateInput reports whether the context carries what Execute needs.
func (a *QAAgent) ValidateInput(ac *Context) error {
	if err := validateBase(types.AgentQA, ac); err != nil {
		return err
	}
	if ac.Draft == nil {
		return fmt.Errorf("qa agent: article draft is required")
	}
	if ac.SEO == nil {
		return fmt.Errorf("qa agent: seo report is required")
	}
	return nil
}

// OutputSchema returns the JSON Schema the agent's output satisfies.
func (a *QAAgent) OutputSchema() string { return schemas.QAReport }

// Execute reviews the draft and returns the quality verdict. A failing
// verdict sets ContinueToNext=false and carries revision feedback; it is a
// normal branch, not an error.
func (a *QAAgent) Execute(ctx context.Context, ac *Context) (*Result, error) {
	if err := a.ValidateInput(ac); err != nil {
		return nil, err
	}

	template, err := prompts.Get("qa.json", "review_draft")
	if err != nil {
		return nil, err
	}

	seoJSON, err := json.MarshalIndent(ac.SEO, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode seo report: %w", err)
	}

	searchIntent := ""
	if ac.Research != nil {
		searchIntent = ac.Research.SearchIntent
	}
	prompt := prompts.Format(template, map[string]string{
		"Keyword":      ac.Job.Keyword,
		"SearchIntent": searchIntent,
		"Title":        ac.Draft.Title,
		"BodyHTML":     ac.Draft.BodyHTML,
		"SEOReport":    string(seoJSON),
	})

	result, err := llm.GenerateJSON(ctx, a.client, requestFromPersona(ac.Persona, prompt), a.OutputSchema(), jsonMaxRetries)
	if err != nil {
		return nil, fmt.Errorf("qa review failed: %w", err)
	}

	var report types.QAReport
	if err := json.Unmarshal(result.Data, &report); err != nil {
		return nil, fmt.Errorf("failed to decode qa report: %w", err)
	}

	report.OverallScore = report.Scores.Mean()
	report.Passed = report.OverallScore >= types.PassThreshold

	output, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("failed to encode qa report: %w", err)
	}

	return &Result{
		Output:           output,
		Usage:            result.Usage,
		EstimatedCostUSD: result.EstimatedCostUSD,
		ContinueToNext:   report.Passed,
		Feedback:         report.Feedback,
	}, nil
}
