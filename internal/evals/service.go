// Package evals records quality judgments on finished work: human reviews of
// generated articles and the promotion of exemplary runs into golden
// examples.
package evals

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MandBea-Media-Labs/cost-of-concrete-sub007/internal/types"
)

// Store is the persistence surface the eval service needs. *db.DB satisfies
// it.
type Store interface {
	GetJob(ctx context.Context, id uuid.UUID) (*types.Job, error)
	CreateEvaluation(ctx context.Context, eval *types.Evaluation) error
	ListEvaluationsByJob(ctx context.Context, jobID uuid.UUID) ([]*types.Evaluation, error)
	ListStepsByJob(ctx context.Context, jobID uuid.UUID) ([]*types.Step, error)
	CreateGoldenExample(ctx context.Context, ex *types.GoldenExample) error
}

// Service records evaluations and promotes golden examples.
type Service struct {
	store Store
}

// NewService creates an eval service over the given store.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// HumanEvalParams are the reviewer-supplied fields for a human evaluation.
type HumanEvalParams struct {
	Scores   types.DimensionScores
	Issues   []types.EvalIssue
	Feedback string
	RatedBy  string
}

// RecordHumanEval stores a human review of a job's output. The overall score
// is the unweighted mean of the five dimensions; the reviewer never supplies
// it directly.
func (s *Service) RecordHumanEval(ctx context.Context, jobID uuid.UUID, params HumanEvalParams) (*types.Evaluation, error) {
	if err := validateScores(params.Scores); err != nil {
		return nil, err
	}
	if params.RatedBy == "" {
		return nil, &ErrValidation{Field: "rated_by", Message: "must not be empty"}
	}

	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, &ErrJobNotFound{JobID: jobID}
	}

	overall := params.Scores.Mean()
	ratedBy := params.RatedBy
	eval := &types.Evaluation{
		ID:           uuid.New(),
		JobID:        jobID,
		Type:         types.EvalTypeHuman,
		Iteration:    job.CurrentIteration,
		OverallScore: overall,
		Scores:       params.Scores,
		Passed:       overall >= types.PassThreshold,
		Issues:       params.Issues,
		Feedback:     params.Feedback,
		RatedBy:      &ratedBy,
		CreatedAt:    time.Now(),
	}
	if err := s.store.CreateEvaluation(ctx, eval); err != nil {
		return nil, fmt.Errorf("failed to record evaluation: %w", err)
	}
	return eval, nil
}

// PromoteParams are the curator-supplied fields for golden promotion. An
// empty Title falls back to the job keyword.
type PromoteParams struct {
	Title       string
	Description string
	Tags        []string
	CreatedBy   string
}

// PromoteGoldenExamples captures a completed job's step outputs as golden
// examples for prompt tuning. Only completed jobs can be promoted; each
// completed step with an output becomes one example, titled with the curator
// title suffixed by the agent type.
func (s *Service) PromoteGoldenExamples(ctx context.Context, jobID uuid.UUID, params PromoteParams) ([]*types.GoldenExample, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, &ErrJobNotFound{JobID: jobID}
	}
	if job.Status != types.JobStatusCompleted {
		return nil, &ErrInvalidState{JobID: jobID, Status: job.Status}
	}

	steps, err := s.store.ListStepsByJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	quality, err := s.latestScore(ctx, jobID)
	if err != nil {
		return nil, err
	}

	title := params.Title
	if title == "" {
		title = job.Keyword
	}

	var promoted []*types.GoldenExample
	for _, step := range steps {
		if step.Status != types.StepStatusCompleted || len(step.Output) == 0 {
			continue
		}
		stepID := step.ID
		ex := &types.GoldenExample{
			ID:           uuid.New(),
			AgentType:    step.AgentType,
			Title:        fmt.Sprintf("%s (%s)", title, step.AgentType),
			Description:  params.Description,
			Input:        step.Input,
			Output:       step.Output,
			JobID:        &jobID,
			StepID:       &stepID,
			QualityScore: quality,
			Tags:         params.Tags,
			CreatedBy:    params.CreatedBy,
			Active:       true,
			CreatedAt:    time.Now(),
		}
		if err := s.store.CreateGoldenExample(ctx, ex); err != nil {
			return nil, fmt.Errorf("failed to promote step %s: %w", step.ID, err)
		}
		promoted = append(promoted, ex)
	}
	return promoted, nil
}

// latestScore returns the most recent evaluation's overall score, or zero
// when the job was never evaluated.
func (s *Service) latestScore(ctx context.Context, jobID uuid.UUID) (int, error) {
	evals, err := s.store.ListEvaluationsByJob(ctx, jobID)
	if err != nil {
		return 0, err
	}
	if len(evals) == 0 {
		return 0, nil
	}
	return evals[len(evals)-1].OverallScore, nil
}

// validateScores checks each dimension is within 0-100.
func validateScores(scores types.DimensionScores) error {
	dims := map[string]int{
		"readability": scores.Readability,
		"seo":         scores.SEO,
		"accuracy":    scores.Accuracy,
		"engagement":  scores.Engagement,
		"brand_voice": scores.BrandVoice,
	}
	for field, v := range dims {
		if v < 0 || v > 100 {
			return &ErrValidation{Field: field, Message: "must be between 0 and 100"}
		}
	}
	return nil
}
