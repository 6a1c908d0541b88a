package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/MandBea-Media-Labs/cost-of-concrete-sub007/internal/types"
)

// CreateEvaluation inserts a new evaluation record
func (db *DB) CreateEvaluation(ctx context.Context, eval *types.Evaluation) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO evaluations (id, job_id, type, iteration, overall_score, scores, passed,
		 issues, feedback, rated_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		eval.ID, eval.JobID, eval.Type, eval.Iteration, eval.OverallScore, eval.Scores,
		eval.Passed, eval.Issues, eval.Feedback, eval.RatedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to create evaluation: %w", err)
	}
	return nil
}

// ListEvaluationsByJob returns a job's evaluations oldest first
func (db *DB) ListEvaluationsByJob(ctx context.Context, jobID uuid.UUID) ([]*types.Evaluation, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, job_id, type, iteration, overall_score, scores, passed, issues, feedback,
		 rated_by, created_at
		 FROM evaluations WHERE job_id = $1 ORDER BY created_at ASC`,
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list evaluations: %w", err)
	}
	defer rows.Close()

	var evals []*types.Evaluation
	for rows.Next() {
		var eval types.Evaluation
		err := rows.Scan(
			&eval.ID, &eval.JobID, &eval.Type, &eval.Iteration, &eval.OverallScore,
			&eval.Scores, &eval.Passed, &eval.Issues, &eval.Feedback, &eval.RatedBy, &eval.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan evaluation: %w", err)
		}
		evals = append(evals, &eval)
	}
	return evals, rows.Err()
}
