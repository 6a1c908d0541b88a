package types

import (
	"time"

	"github.com/google/uuid"
)

// EvalType distinguishes automated QA-agent scores from human reviews.
type EvalType string

// Evaluation type constants
const (
	EvalTypeAutomated EvalType = "automated"
	EvalTypeHuman     EvalType = "human"
)

// PassThreshold is the overall score at or above which an evaluation passes.
const PassThreshold = 70

// DimensionScores holds the five quality dimensions, each 0-100.
type DimensionScores struct {
	Readability int `json:"readability"`
	SEO         int `json:"seo"`
	Accuracy    int `json:"accuracy"`
	Engagement  int `json:"engagement"`
	BrandVoice  int `json:"brand_voice"`
}

// Mean returns the unweighted mean of the five dimension scores.
func (d DimensionScores) Mean() int {
	return (d.Readability + d.SEO + d.Accuracy + d.Engagement + d.BrandVoice) / 5
}

// EvalIssue describes one concrete problem found during evaluation.
type EvalIssue struct {
	Category    string `json:"category"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
	Suggestion  string `json:"suggestion,omitempty"`
}

// Evaluation is a quality judgment attached to a job iteration. Evaluations
// are never mutated after creation.
type Evaluation struct {
	ID           uuid.UUID       `json:"id"`
	JobID        uuid.UUID       `json:"job_id"`
	Type         EvalType        `json:"type"`
	Iteration    int             `json:"iteration"`
	OverallScore int             `json:"overall_score"`
	Scores       DimensionScores `json:"scores"`
	Passed       bool            `json:"passed"`
	Issues       []EvalIssue     `json:"issues,omitempty"`
	Feedback     string          `json:"feedback,omitempty"`
	RatedBy      *string         `json:"rated_by,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}
