// Package types defines the shared data model for the content generation
// pipeline: jobs, steps, evaluations, golden examples, and the structured
// payloads each agent produces.
package types

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the lifecycle state of a generation job.
type JobStatus string

// Job status constants
const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// Terminal reports whether the status is final. No step may be appended to a
// job once it reaches a terminal status.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// DefaultMaxIterations bounds the writer/seo/qa revision loop when a job does
// not specify its own limit.
const DefaultMaxIterations = 3

// Job represents one content-generation request from keyword to article.
type Job struct {
	ID               uuid.UUID      `json:"id"`
	Keyword          string         `json:"keyword"`
	Status           JobStatus      `json:"status"`
	CurrentAgent     *AgentType     `json:"current_agent,omitempty"`
	Progress         int            `json:"progress"`
	CurrentIteration int            `json:"current_iteration"`
	MaxIterations    int            `json:"max_iterations"`
	TokensUsed       int            `json:"tokens_used"`
	EstimatedCost    float64        `json:"estimated_cost"`
	FinalOutput      *FinalArticle  `json:"final_output,omitempty"`
	PageID           *uuid.UUID     `json:"page_id,omitempty"`
	LastError        *string        `json:"last_error,omitempty"`
	Priority         int            `json:"priority"`
	Settings         map[string]any `json:"settings,omitempty"`
	CreatedBy        string         `json:"created_by"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	StartedAt        *time.Time     `json:"started_at,omitempty"`
	CompletedAt      *time.Time     `json:"completed_at,omitempty"`
}

// FinalArticle is the finished output handed to the CMS for page creation.
type FinalArticle struct {
	Title           string `json:"title"`
	Slug            string `json:"slug"`
	BodyHTML        string `json:"body_html"`
	MetaTitle       string `json:"meta_title"`
	MetaDescription string `json:"meta_description"`
	SchemaMarkup    string `json:"schema_markup,omitempty"`
	Keyword         string `json:"keyword"`
	WordCount       int    `json:"word_count"`
}
