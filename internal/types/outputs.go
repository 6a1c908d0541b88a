package types

// ResearchBrief is the research agent's output: keyword, competitor, and
// intent analysis consumed by the writer and SEO agents.
type ResearchBrief struct {
	Keyword          string   `json:"keyword"`
	SearchIntent     string   `json:"search_intent"`
	TargetAudience   string   `json:"target_audience"`
	Subtopics        []string `json:"subtopics"`
	CompetitorAngles []string `json:"competitor_angles,omitempty"`
	RelatedKeywords  []string `json:"related_keywords,omitempty"`
	SuggestedOutline []string `json:"suggested_outline"`
	WordCountTarget  int      `json:"word_count_target"`
}

// ArticleDraft is the writer agent's output. On revision iterations the
// writer regenerates the draft guided by the prior QA feedback.
type ArticleDraft struct {
	Title           string `json:"title"`
	Slug            string `json:"slug"`
	MetaDescription string `json:"meta_description"`
	BodyHTML        string `json:"body_html"`
	WordCount       int    `json:"word_count"`
	RevisionNotes   string `json:"revision_notes,omitempty"`
}

// HeadingInfo describes one heading found in the draft body.
type HeadingInfo struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
}

// KeywordDensity reports how often a keyword appears relative to body length.
type KeywordDensity struct {
	Keyword string  `json:"keyword"`
	Count   int     `json:"count"`
	Density float64 `json:"density"`
}

// SEOReport is the SEO agent's output. It annotates the draft with
// optimization metadata; it never rewrites the body and never gates the loop.
type SEOReport struct {
	MetaTitle         string           `json:"meta_title"`
	MetaDescription   string           `json:"meta_description"`
	Headings          []HeadingInfo    `json:"headings,omitempty"`
	KeywordDensities  []KeywordDensity `json:"keyword_densities,omitempty"`
	SchemaMarkup      string           `json:"schema_markup,omitempty"`
	OptimizationScore int              `json:"optimization_score"`
	Recommendations   []string         `json:"recommendations,omitempty"`
}

// QAReport is the QA agent's output: the quality verdict that drives the
// revision loop. A failed verdict is a normal branch, not an error.
type QAReport struct {
	Passed       bool            `json:"passed"`
	OverallScore int             `json:"overall_score"`
	Scores       DimensionScores `json:"scores"`
	Issues       []EvalIssue     `json:"issues,omitempty"`
	Feedback     string          `json:"feedback"`
}
