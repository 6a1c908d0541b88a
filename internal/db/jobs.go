package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/MandBea-Media-Labs/cost-of-concrete-sub007/internal/types"
)

// jobColumns is the select list every job query shares.
const jobColumns = `id, keyword, status, current_agent, progress, current_iteration,
	max_iterations, tokens_used, estimated_cost, final_output, page_id, last_error,
	priority, settings, created_by, created_at, updated_at, started_at, completed_at`

// CreateJob inserts a new job record
func (db *DB) CreateJob(ctx context.Context, job *types.Job) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO jobs (id, keyword, status, max_iterations, priority, settings, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		job.ID, job.Keyword, job.Status, job.MaxIterations, job.Priority, job.Settings, job.CreatedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by ID. Returns nil without error when no row exists.
func (db *DB) GetJob(ctx context.Context, id uuid.UUID) (*types.Job, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// JobFilter narrows ListJobs results.
type JobFilter struct {
	Status  *types.JobStatus
	Keyword string
	Limit   int
	Offset  int
}

// ListJobs returns jobs newest first, optionally filtered by status and
// keyword substring.
func (db *DB) ListJobs(ctx context.Context, filter JobFilter) ([]*types.Job, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	query := `SELECT ` + jobColumns + ` FROM jobs`
	args := []any{}
	var where []string
	if filter.Status != nil {
		args = append(args, *filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Keyword != "" {
		args = append(args, "%"+filter.Keyword+"%")
		where = append(where, fmt.Sprintf("keyword ILIKE $%d", len(args)))
	}
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d OFFSET %d`, limit, filter.Offset)

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*types.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// StartJob marks a job as processing and stamps started_at
func (db *DB) StartJob(ctx context.Context, id uuid.UUID) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE jobs SET status = 'processing', started_at = NOW(), updated_at = NOW() WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to start job: %w", err)
	}
	return nil
}

// UpdateJobProgress records the job's position in the pipeline
func (db *DB) UpdateJobProgress(ctx context.Context, id uuid.UUID, progress, iteration int, agent *types.AgentType) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE jobs SET progress = $1, current_iteration = $2, current_agent = $3, updated_at = NOW()
		 WHERE id = $4`,
		progress, iteration, agent, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update job progress: %w", err)
	}
	return nil
}

// AddJobUsage folds one step's token usage and cost into the job totals
func (db *DB) AddJobUsage(ctx context.Context, id uuid.UUID, usage types.TokenUsage, cost float64) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE jobs SET tokens_used = tokens_used + $1, estimated_cost = estimated_cost + $2,
		 updated_at = NOW() WHERE id = $3`,
		usage.TotalTokens, cost, id,
	)
	if err != nil {
		return fmt.Errorf("failed to add job usage: %w", err)
	}
	return nil
}

// CompleteJob marks a processing job as completed with its final article.
// The status guard keeps a concurrent cancel from being overwritten; returns
// whether the row transitioned.
func (db *DB) CompleteJob(ctx context.Context, id uuid.UUID, final *types.FinalArticle) (bool, error) {
	tag, err := db.pool.Exec(ctx,
		`UPDATE jobs SET status = 'completed', final_output = $1, progress = 100,
		 current_agent = NULL, completed_at = NOW(), updated_at = NOW()
		 WHERE id = $2 AND status = 'processing'`,
		final, id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to complete job: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// FailJob marks a non-terminal job as failed with the error message. Returns
// whether the row transitioned; terminal states are never overwritten.
func (db *DB) FailJob(ctx context.Context, id uuid.UUID, message string) (bool, error) {
	tag, err := db.pool.Exec(ctx,
		`UPDATE jobs SET status = 'failed', last_error = $1, current_agent = NULL,
		 completed_at = NOW(), updated_at = NOW()
		 WHERE id = $2 AND status NOT IN ('completed', 'failed', 'cancelled')`,
		message, id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to fail job: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// RequeueJob returns a processing job to the pending queue so another worker
// can claim it. Used when a worker shuts down mid-run.
func (db *DB) RequeueJob(ctx context.Context, id uuid.UUID) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE jobs SET status = 'pending', current_agent = NULL, started_at = NULL,
		 updated_at = NOW() WHERE id = $1 AND status = 'processing'`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to requeue job: %w", err)
	}
	return nil
}

// CancelJob marks a job cancelled unless it already reached a terminal
// status. Returns whether a row was updated.
func (db *DB) CancelJob(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := db.pool.Exec(ctx,
		`UPDATE jobs SET status = 'cancelled', completed_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND status NOT IN ('completed', 'failed', 'cancelled')`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to cancel job: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ClaimPendingJob atomically claims the oldest pending job for a worker.
// SKIP LOCKED keeps concurrent workers from claiming the same row. Returns
// nil when no pending job exists.
func (db *DB) ClaimPendingJob(ctx context.Context) (*types.Job, error) {
	row := db.pool.QueryRow(ctx,
		`UPDATE jobs SET status = 'processing', started_at = NOW(), updated_at = NOW()
		 WHERE id = (
			SELECT id FROM jobs WHERE status = 'pending'
			ORDER BY priority DESC, created_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		 )
		 RETURNING `+jobColumns)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to claim pending job: %w", err)
	}
	return job, nil
}

// scanJob reads one job row in jobColumns order.
func scanJob(row pgx.Row) (*types.Job, error) {
	var job types.Job
	err := row.Scan(
		&job.ID, &job.Keyword, &job.Status, &job.CurrentAgent, &job.Progress,
		&job.CurrentIteration, &job.MaxIterations, &job.TokensUsed, &job.EstimatedCost,
		&job.FinalOutput, &job.PageID, &job.LastError, &job.Priority, &job.Settings,
		&job.CreatedBy, &job.CreatedAt, &job.UpdatedAt, &job.StartedAt, &job.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &job, nil
}
