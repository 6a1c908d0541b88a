package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/MandBea-Media-Labs/cost-of-concrete-sub007/internal/llm"
	"github.com/MandBea-Media-Labs/cost-of-concrete-sub007/internal/prompts"
	"github.com/MandBea-Media-Labs/cost-of-concrete-sub007/internal/schemas"
	"github.com/MandBea-Media-Labs/cost-of-concrete-sub007/internal/types"
)

// SEOAgent annotates a draft with optimization metadata. Meta tags, schema
// markup, and the optimization score come from the model; heading and
// keyword-density analysis is computed locally from the draft HTML. The SEO
// step never gates the revision loop.
type SEOAgent struct {
	client llm.Client
}

// NewSEOAgent creates an SEO agent backed by the given client.
func NewSEOAgent(client llm.Client) *SEOAgent {
	return &SEOAgent{client: client}
}

// Type identifies the agent's role.
func (a *SEOAgent) Type() types.AgentType { return types.AgentSEO }

// ValidateInput reports whether the context carries what Execute needs.
func (a *SEOAgent) ValidateInput(ac *Context) error {
	if err := validateBase(types.AgentSEO, ac); err != nil {
		return err
	}
	if ac.Draft == nil {
		return fmt.Errorf("seo agent: article draft is required")
	}
	return nil
}

// OutputSchema returns the JSON Schema for the model-generated annotations.
func (a *SEOAgent) OutputSchema() string { return schemas.SEOAnnotations }

// Execute produces the SEO report for the current draft.
func (a *SEOAgent) Execute(ctx context.Context, ac *Context) (*Result, error) {
	if err := a.ValidateInput(ac); err != nil {
		return nil, err
	}

	template, err := prompts.Get("seo.json", "annotate_draft")
	if err != nil {
		return nil, err
	}

	related := ""
	if ac.Research != nil {
		related = strings.Join(ac.Research.RelatedKeywords, ", ")
	}
	prompt := prompts.Format(template, map[string]string{
		"Keyword":         ac.Job.Keyword,
		"RelatedKeywords": related,
		"Title":           ac.Draft.Title,
		"MetaDescription": ac.Draft.MetaDescription,
		"BodyHTML":        ac.Draft.BodyHTML,
	})

	result, err := llm.GenerateJSON(ctx, a.client, requestFromPersona(ac.Persona, prompt), a.OutputSchema(), jsonMaxRetries)
	if err != nil {
		return nil, fmt.Errorf("seo annotation failed: %w", err)
	}

	var report types.SEOReport
	if err := json.Unmarshal(result.Data, &report); err != nil {
		return nil, fmt.Errorf("failed to decode seo annotations: %w", err)
	}

	// Local document analysis, independent of the model's judgment.
	headings, densities, analysisErr := analyzeDraft(ac.Draft.BodyHTML, ac.Job.Keyword, relatedKeywords(ac.Research))
	if analysisErr != nil {
		// The annotations still stand; record the analysis miss instead of
		// failing the step.
		report.Recommendations = append(report.Recommendations,
			fmt.Sprintf("heading analysis unavailable: %v", analysisErr))
	} else {
		report.Headings = headings
		report.KeywordDensities = densities
	}

	output, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("failed to encode seo report: %w", err)
	}

	return &Result{
		Output:           output,
		Usage:            result.Usage,
		EstimatedCostUSD: result.EstimatedCostUSD,
		ContinueToNext:   true,
	}, nil
}

// relatedKeywords lists the research brief's related keywords, if any.
func relatedKeywords(brief *types.ResearchBrief) []string {
	if brief == nil {
		return nil
	}
	return brief.RelatedKeywords
}

// analyzeDraft extracts the heading outline and keyword densities from the
// draft body HTML.
func analyzeDraft(bodyHTML, keyword string, related []string) ([]types.HeadingInfo, []types.KeywordDensity, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(bodyHTML))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse draft html: %w", err)
	}

	var headings []types.HeadingInfo
	doc.Find("h1, h2, h3, h4").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if text == "" {
			return
		}
		level := int(goquery.NodeName(s)[1] - '0')
		headings = append(headings, types.HeadingInfo{Level: level, Text: text})
	})

	bodyText := strings.ToLower(doc.Text())
	totalWords := len(strings.Fields(bodyText))

	var densities []types.KeywordDensity
	seen := make(map[string]bool)
	for _, kw := range append([]string{keyword}, related...) {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" || seen[kw] {
			continue
		}
		seen[kw] = true

		count := strings.Count(bodyText, kw)
		density := 0.0
		if totalWords > 0 {
			density = float64(count*len(strings.Fields(kw))) / float64(totalWords) * 100
		}
		densities = append(densities, types.KeywordDensity{
			Keyword: kw,
			Count:   count,
			Density: density,
		})
	}

	return headings, densities, nil
}
