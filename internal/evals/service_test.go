package evals

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MandBea-Media-Labs/cost-of-concrete-sub007/internal/types"
)

// memStore is an in-memory Store for eval service tests.
type memStore struct {
	mu     sync.Mutex
	jobs   map[uuid.UUID]*types.Job
	steps  map[uuid.UUID][]*types.Step
	evals  map[uuid.UUID][]*types.Evaluation
	golden []*types.GoldenExample
}

func newMemStore() *memStore {
	return &memStore{
		jobs:  make(map[uuid.UUID]*types.Job),
		steps: make(map[uuid.UUID][]*types.Step),
		evals: make(map[uuid.UUID][]*types.Evaluation),
	}
}

func (s *memStore) GetJob(_ context.Context, id uuid.UUID) (*types.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, nil
	}
	copied := *job
	return &copied, nil
}

func (s *memStore) CreateEvaluation(_ context.Context, eval *types.Evaluation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *eval
	s.evals[eval.JobID] = append(s.evals[eval.JobID], &copied)
	return nil
}

func (s *memStore) ListEvaluationsByJob(_ context.Context, jobID uuid.UUID) ([]*types.Evaluation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evals[jobID], nil
}

func (s *memStore) ListStepsByJob(_ context.Context, jobID uuid.UUID) ([]*types.Step, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.steps[jobID], nil
}

func (s *memStore) CreateGoldenExample(_ context.Context, ex *types.GoldenExample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *ex
	s.golden = append(s.golden, &copied)
	return nil
}

func seedJob(store *memStore, status types.JobStatus) *types.Job {
	job := &types.Job{
		ID:               uuid.New(),
		Keyword:          "concrete driveway cost",
		Status:           status,
		CurrentIteration: 2,
	}
	store.jobs[job.ID] = job
	return job
}

func TestRecordHumanEval(t *testing.T) {
	store := newMemStore()
	svc := NewService(store)
	job := seedJob(store, types.JobStatusCompleted)

	eval, err := svc.RecordHumanEval(context.Background(), job.ID, HumanEvalParams{
		Scores: types.DimensionScores{
			Readability: 80, SEO: 75, Accuracy: 90, Engagement: 70, BrandVoice: 85,
		},
		Feedback: "Strong cost tables, weak intro.",
		RatedBy:  "editor@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, types.EvalTypeHuman, eval.Type)
	// (80+75+90+70+85)/5 = 80
	assert.Equal(t, 80, eval.OverallScore)
	assert.True(t, eval.Passed)
	assert.Equal(t, 2, eval.Iteration)
	require.NotNil(t, eval.RatedBy)
	assert.Equal(t, "editor@example.com", *eval.RatedBy)
}

func TestRecordHumanEval_FailingMean(t *testing.T) {
	store := newMemStore()
	svc := NewService(store)
	job := seedJob(store, types.JobStatusCompleted)

	eval, err := svc.RecordHumanEval(context.Background(), job.ID, HumanEvalParams{
		Scores:  types.DimensionScores{Readability: 69, SEO: 69, Accuracy: 69, Engagement: 69, BrandVoice: 69},
		RatedBy: "editor@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, 69, eval.OverallScore)
	assert.False(t, eval.Passed)
}

func TestRecordHumanEval_Validation(t *testing.T) {
	store := newMemStore()
	svc := NewService(store)
	job := seedJob(store, types.JobStatusCompleted)

	_, err := svc.RecordHumanEval(context.Background(), job.ID, HumanEvalParams{
		Scores:  types.DimensionScores{Readability: 101},
		RatedBy: "editor@example.com",
	})
	var vErr *ErrValidation
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "readability", vErr.Field)

	_, err = svc.RecordHumanEval(context.Background(), job.ID, HumanEvalParams{
		Scores: types.DimensionScores{Readability: 80, SEO: 80, Accuracy: 80, Engagement: 80, BrandVoice: 80},
	})
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "rated_by", vErr.Field)
}

func TestRecordHumanEval_JobNotFound(t *testing.T) {
	svc := NewService(newMemStore())

	_, err := svc.RecordHumanEval(context.Background(), uuid.New(), HumanEvalParams{
		Scores:  types.DimensionScores{Readability: 80, SEO: 80, Accuracy: 80, Engagement: 80, BrandVoice: 80},
		RatedBy: "editor@example.com",
	})
	var nfErr *ErrJobNotFound
	assert.ErrorAs(t, err, &nfErr)
}

func TestPromoteGoldenExamples(t *testing.T) {
	store := newMemStore()
	svc := NewService(store)
	job := seedJob(store, types.JobStatusCompleted)

	output := json.RawMessage(`{"title":"Concrete Driveway Cost Guide"}`)
	store.steps[job.ID] = []*types.Step{
		{ID: uuid.New(), JobID: job.ID, AgentType: types.AgentResearch, Status: types.StepStatusCompleted, Output: output},
		{ID: uuid.New(), JobID: job.ID, AgentType: types.AgentWriter, Status: types.StepStatusCompleted, Output: output},
		// Failed and output-less steps are skipped.
		{ID: uuid.New(), JobID: job.ID, AgentType: types.AgentSEO, Status: types.StepStatusFailed, Output: output},
		{ID: uuid.New(), JobID: job.ID, AgentType: types.AgentQA, Status: types.StepStatusCompleted},
	}
	store.evals[job.ID] = []*types.Evaluation{
		{ID: uuid.New(), JobID: job.ID, OverallScore: 72},
		{ID: uuid.New(), JobID: job.ID, OverallScore: 85},
	}

	promoted, err := svc.PromoteGoldenExamples(context.Background(), job.ID, PromoteParams{
		Tags:      []string{"driveways"},
		CreatedBy: "editor@example.com",
	})
	require.NoError(t, err)
	require.Len(t, promoted, 2)

	first := promoted[0]
	assert.Equal(t, types.AgentResearch, first.AgentType)
	assert.Equal(t, "concrete driveway cost (research)", first.Title)
	assert.Equal(t, 85, first.QualityScore)
	assert.True(t, first.Active)
	require.NotNil(t, first.JobID)
	assert.Equal(t, job.ID, *first.JobID)
	assert.Equal(t, []string{"driveways"}, first.Tags)

	assert.Len(t, store.golden, 2)
}

func TestPromoteGoldenExamples_CuratorTitle(t *testing.T) {
	store := newMemStore()
	svc := NewService(store)
	job := seedJob(store, types.JobStatusCompleted)
	store.steps[job.ID] = []*types.Step{
		{ID: uuid.New(), JobID: job.ID, AgentType: types.AgentWriter, Status: types.StepStatusCompleted,
			Output: json.RawMessage(`{"title":"x"}`)},
	}

	promoted, err := svc.PromoteGoldenExamples(context.Background(), job.ID, PromoteParams{
		Title:       "Exemplary driveway run",
		Description: "Strong price tables",
		CreatedBy:   "editor@example.com",
	})
	require.NoError(t, err)
	require.Len(t, promoted, 1)
	assert.Equal(t, "Exemplary driveway run (writer)", promoted[0].Title)
	assert.Equal(t, "Strong price tables", promoted[0].Description)
}

func TestPromoteGoldenExamples_RequiresCompletedJob(t *testing.T) {
	store := newMemStore()
	svc := NewService(store)

	for _, status := range []types.JobStatus{
		types.JobStatusPending, types.JobStatusProcessing,
		types.JobStatusFailed, types.JobStatusCancelled,
	} {
		job := seedJob(store, status)
		_, err := svc.PromoteGoldenExamples(context.Background(), job.ID, PromoteParams{CreatedBy: "editor@example.com"})
		var stateErr *ErrInvalidState
		require.ErrorAs(t, err, &stateErr, "status %s", status)
		assert.Equal(t, status, stateErr.Status)
	}
}

func TestPromoteGoldenExamples_JobNotFound(t *testing.T) {
	svc := NewService(newMemStore())

	_, err := svc.PromoteGoldenExamples(context.Background(), uuid.New(), PromoteParams{CreatedBy: "editor@example.com"})
	var nfErr *ErrJobNotFound
	assert.ErrorAs(t, err, &nfErr)
}
