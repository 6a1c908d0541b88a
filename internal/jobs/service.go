// Package jobs manages the generation job lifecycle: creation, lookup,
// listing, and cancellation. Pipeline execution itself belongs to the
// orchestrator; this service only owns the queue-facing state transitions.
package jobs

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/MandBea-Media-Labs/cost-of-concrete-sub007/internal/db"
	"github.com/MandBea-Media-Labs/cost-of-concrete-sub007/internal/types"
)

// maxIterationsCeiling caps per-job revision budgets so one job cannot burn
// an unbounded number of model calls.
const maxIterationsCeiling = 10

// Store is the persistence surface the job service needs. *db.DB satisfies it.
type Store interface {
	CreateJob(ctx context.Context, job *types.Job) error
	GetJob(ctx context.Context, id uuid.UUID) (*types.Job, error)
	ListJobs(ctx context.Context, filter db.JobFilter) ([]*types.Job, error)
	CancelJob(ctx context.Context, id uuid.UUID) (bool, error)
	ListStepsByJob(ctx context.Context, jobID uuid.UUID) ([]*types.Step, error)
	ListEvaluationsByJob(ctx context.Context, jobID uuid.UUID) ([]*types.Evaluation, error)
}

// Service manages generation jobs.
type Service struct {
	store Store
}

// NewService creates a job service over the given store.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// CreateParams are the caller-supplied fields for a new job.
type CreateParams struct {
	Keyword       string
	MaxIterations int
	Priority      int
	Settings      map[string]any
	CreatedBy     string
}

// Create validates the parameters and enqueues a pending job.
func (s *Service) Create(ctx context.Context, params CreateParams) (*types.Job, error) {
	keyword := strings.TrimSpace(params.Keyword)
	if keyword == "" {
		return nil, &ErrValidation{Field: "keyword", Message: "must not be empty"}
	}
	if params.MaxIterations < 0 || params.MaxIterations > maxIterationsCeiling {
		return nil, &ErrValidation{
			Field:   "max_iterations",
			Message: fmt.Sprintf("must be between 0 and %d (0 uses the default)", maxIterationsCeiling),
		}
	}
	maxIterations := params.MaxIterations
	if maxIterations == 0 {
		maxIterations = types.DefaultMaxIterations
	}

	job := &types.Job{
		ID:            uuid.New(),
		Keyword:       keyword,
		Status:        types.JobStatusPending,
		MaxIterations: maxIterations,
		Priority:      params.Priority,
		Settings:      params.Settings,
		CreatedBy:     params.CreatedBy,
	}
	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}
	return s.Get(ctx, job.ID)
}

// Get returns a job by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*types.Job, error) {
	job, err := s.store.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, &ErrJobNotFound{JobID: id}
	}
	return job, nil
}

// Detail bundles a job with its full execution history.
type Detail struct {
	Job         *types.Job          `json:"job"`
	Steps       []*types.Step       `json:"steps"`
	Evaluations []*types.Evaluation `json:"evaluations"`
}

// GetDetail returns a job with its steps and evaluations.
func (s *Service) GetDetail(ctx context.Context, id uuid.UUID) (*Detail, error) {
	job, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	steps, err := s.store.ListStepsByJob(ctx, id)
	if err != nil {
		return nil, err
	}
	evals, err := s.store.ListEvaluationsByJob(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Detail{Job: job, Steps: steps, Evaluations: evals}, nil
}

// List returns jobs newest first, optionally filtered by status and keyword
// substring.
func (s *Service) List(ctx context.Context, status *types.JobStatus, keyword string, limit, offset int) ([]*types.Job, error) {
	return s.store.ListJobs(ctx, db.JobFilter{Status: status, Keyword: strings.TrimSpace(keyword), Limit: limit, Offset: offset})
}

// Cancel requests cancellation of a job. Terminal jobs cannot be cancelled; a
// processing job stops at its next loop boundary.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*types.Job, error) {
	job, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status.Terminal() {
		return nil, &ErrJobConflict{JobID: id, Status: job.Status}
	}

	updated, err := s.store.CancelJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if !updated {
		// The job reached a terminal status between the read and the update.
		current, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, &ErrJobConflict{JobID: id, Status: current.Status}
	}
	return s.Get(ctx, id)
}
