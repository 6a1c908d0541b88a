package db

import (
	"context"
	"fmt"

	"github.com/MandBea-Media-Labs/cost-of-concrete-sub007/internal/types"
)

// CreateGoldenExample inserts a new golden example record
func (db *DB) CreateGoldenExample(ctx context.Context, ex *types.GoldenExample) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO golden_examples (id, agent_type, title, description, input, output,
		 job_id, step_id, quality_score, tags, created_by, active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		ex.ID, ex.AgentType, ex.Title, ex.Description, ex.Input, ex.Output,
		ex.JobID, ex.StepID, ex.QualityScore, ex.Tags, ex.CreatedBy, ex.Active,
	)
	if err != nil {
		return fmt.Errorf("failed to create golden example: %w", err)
	}
	return nil
}

// ListGoldenExamples returns active golden examples, optionally filtered by
// agent role.
func (db *DB) ListGoldenExamples(ctx context.Context, agentType *types.AgentType) ([]*types.GoldenExample, error) {
	query := `SELECT id, agent_type, title, description, input, output, job_id, step_id,
		quality_score, tags, created_by, active, created_at
		FROM golden_examples WHERE active = TRUE`
	args := []any{}
	if agentType != nil {
		query += ` AND agent_type = $1`
		args = append(args, *agentType)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list golden examples: %w", err)
	}
	defer rows.Close()

	var examples []*types.GoldenExample
	for rows.Next() {
		var ex types.GoldenExample
		err := rows.Scan(
			&ex.ID, &ex.AgentType, &ex.Title, &ex.Description, &ex.Input, &ex.Output,
			&ex.JobID, &ex.StepID, &ex.QualityScore, &ex.Tags, &ex.CreatedBy, &ex.Active, &ex.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan golden example: %w", err)
		}
		examples = append(examples, &ex)
	}
	return examples, rows.Err()
}
