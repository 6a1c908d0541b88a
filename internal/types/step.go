package types

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AgentType identifies one of the four specialized generation roles.
type AgentType string

// Agent type constants
const (
	AgentResearch AgentType = "research"
	AgentWriter   AgentType = "writer"
	AgentSEO      AgentType = "seo"
	AgentQA       AgentType = "qa"
)

// AllAgentTypes lists the agent roles in pipeline order.
func AllAgentTypes() []AgentType {
	return []AgentType{AgentResearch, AgentWriter, AgentSEO, AgentQA}
}

// Valid reports whether t names a known agent role.
func (t AgentType) Valid() bool {
	switch t {
	case AgentResearch, AgentWriter, AgentSEO, AgentQA:
		return true
	}
	return false
}

// StepStatus represents the state of a single agent invocation.
type StepStatus string

// Step status constants
const (
	StepStatusPending   StepStatus = "pending"
	StepStatusRunning   StepStatus = "running"
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"
)

// TokenUsage holds token counts for one or more model calls.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add returns the element-wise sum of u and other. Usage values are folded
// across steps rather than mutated in place so each step record stays
// independently reproducible.
func (u TokenUsage) Add(other TokenUsage) TokenUsage {
	return TokenUsage{
		PromptTokens:     u.PromptTokens + other.PromptTokens,
		CompletionTokens: u.CompletionTokens + other.CompletionTokens,
		TotalTokens:      u.TotalTokens + other.TotalTokens,
	}
}

// Step represents one agent invocation within a job. Steps form a strictly
// ordered append-only sequence owned by the orchestrator.
type Step struct {
	ID           uuid.UUID       `json:"id"`
	JobID        uuid.UUID       `json:"job_id"`
	AgentType    AgentType       `json:"agent_type"`
	Iteration    int             `json:"iteration"`
	Status       StepStatus      `json:"status"`
	Usage        TokenUsage      `json:"usage"`
	DurationMs   *int64          `json:"duration_ms,omitempty"`
	Input        json.RawMessage `json:"input,omitempty"`
	Output       json.RawMessage `json:"output,omitempty"`
	Logs         []string        `json:"logs,omitempty"`
	ErrorMessage *string         `json:"error_message,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	StartedAt    *time.Time      `json:"started_at,omitempty"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
}
