package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/MandBea-Media-Labs/cost-of-concrete-sub007/internal/types"
)

// CreateStep inserts a new step record
func (db *DB) CreateStep(ctx context.Context, step *types.Step) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO steps (id, job_id, agent_type, iteration, status, input, started_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		step.ID, step.JobID, step.AgentType, step.Iteration, step.Status, step.Input, step.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create step: %w", err)
	}
	return nil
}

// UpdateStep persists a step's outcome
func (db *DB) UpdateStep(ctx context.Context, step *types.Step) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE steps SET status = $1, output = $2, prompt_tokens = $3, completion_tokens = $4,
		 total_tokens = $5, duration_ms = $6, logs = $7, error_message = $8, completed_at = $9
		 WHERE id = $10`,
		step.Status, step.Output, step.Usage.PromptTokens, step.Usage.CompletionTokens,
		step.Usage.TotalTokens, step.DurationMs, step.Logs, step.ErrorMessage, step.CompletedAt,
		step.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update step: %w", err)
	}
	return nil
}

// ListStepsByJob returns a job's steps in execution order
func (db *DB) ListStepsByJob(ctx context.Context, jobID uuid.UUID) ([]*types.Step, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, job_id, agent_type, iteration, status, prompt_tokens, completion_tokens,
		 total_tokens, duration_ms, input, output, logs, error_message, created_at, started_at, completed_at
		 FROM steps WHERE job_id = $1 ORDER BY created_at ASC`,
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list steps: %w", err)
	}
	defer rows.Close()

	var steps []*types.Step
	for rows.Next() {
		var step types.Step
		err := rows.Scan(
			&step.ID, &step.JobID, &step.AgentType, &step.Iteration, &step.Status,
			&step.Usage.PromptTokens, &step.Usage.CompletionTokens, &step.Usage.TotalTokens,
			&step.DurationMs, &step.Input, &step.Output, &step.Logs, &step.ErrorMessage,
			&step.CreatedAt, &step.StartedAt, &step.CompletedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}
		steps = append(steps, &step)
	}
	return steps, rows.Err()
}
