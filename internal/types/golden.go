package types

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// GoldenExample is a curated input/output pair from an exemplary run, kept as
// reference material for future prompt tuning. Read-only after creation.
type GoldenExample struct {
	ID           uuid.UUID       `json:"id"`
	AgentType    AgentType       `json:"agent_type"`
	Title        string          `json:"title"`
	Description  string          `json:"description,omitempty"`
	Input        json.RawMessage `json:"input,omitempty"`
	Output       json.RawMessage `json:"output"`
	JobID        *uuid.UUID      `json:"job_id,omitempty"`
	StepID       *uuid.UUID      `json:"step_id,omitempty"`
	QualityScore int             `json:"quality_score"`
	Tags         []string        `json:"tags,omitempty"`
	CreatedBy    string          `json:"created_by"`
	Active       bool            `json:"active"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Persona is the generation configuration bound to an agent role: which model
// to call, at what temperature, with what system instructions. The
// orchestrator requires an enabled persona for every role it runs.
type Persona struct {
	ID                 uuid.UUID `json:"id"`
	AgentType          AgentType `json:"agent_type"`
	Model              string    `json:"model"`
	Temperature        float32   `json:"temperature"`
	MaxTokens          int       `json:"max_tokens"`
	SystemInstructions string    `json:"system_instructions"`
	Enabled            bool      `json:"enabled"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}
