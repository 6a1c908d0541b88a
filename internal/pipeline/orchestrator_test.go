package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MandBea-Media-Labs/cost-of-concrete-sub007/internal/agents"
	"github.com/MandBea-Media-Labs/cost-of-concrete-sub007/internal/types"
)

// fakeStore is an in-memory Store for pipeline tests.
type fakeStore struct {
	mu       sync.Mutex
	jobs     map[uuid.UUID]*types.Job
	steps    []*types.Step
	evals    []*types.Evaluation
	personas map[types.AgentType]*types.Persona

	// cancelAfterSteps flips the job to cancelled once that many steps have
	// completed, simulating an external cancel request.
	cancelAfterSteps int

	// progressLog records every persisted progress value in write order.
	progressLog []int
}

func newFakeStore(job *types.Job) *fakeStore {
	s := &fakeStore{
		jobs:     map[uuid.UUID]*types.Job{job.ID: job},
		personas: make(map[types.AgentType]*types.Persona),
	}
	for _, t := range types.AllAgentTypes() {
		s.personas[t] = &types.Persona{
			ID:        uuid.New(),
			AgentType: t,
			Model:     "gemini-2.5-flash",
			Enabled:   true,
		}
	}
	return s
}

func (s *fakeStore) GetJob(_ context.Context, id uuid.UUID) (*types.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %s not found", id)
	}
	s.applyCancel(job)
	copied := *job
	return &copied, nil
}

// applyCancel simulates the external cancel request landing once enough
// steps have finished. Callers must hold the lock.
func (s *fakeStore) applyCancel(job *types.Job) {
	if s.cancelAfterSteps > 0 && s.completedSteps() >= s.cancelAfterSteps && !job.Status.Terminal() {
		job.Status = types.JobStatusCancelled
	}
}

func (s *fakeStore) completedSteps() int {
	n := 0
	for _, step := range s.steps {
		if step.Status == types.StepStatusCompleted {
			n++
		}
	}
	return n
}

func (s *fakeStore) GetEnabledPersona(_ context.Context, t types.AgentType) (*types.Persona, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.personas[t]
	if !ok {
		return nil, fmt.Errorf("no enabled persona for %s", t)
	}
	return p, nil
}

func (s *fakeStore) StartJob(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[id].Status = types.JobStatusProcessing
	return nil
}

func (s *fakeStore) UpdateJobProgress(_ context.Context, id uuid.UUID, progress, iteration int, agent *types.AgentType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job := s.jobs[id]
	job.Progress = progress
	job.CurrentIteration = iteration
	job.CurrentAgent = agent
	s.progressLog = append(s.progressLog, progress)
	return nil
}

func (s *fakeStore) AddJobUsage(_ context.Context, id uuid.UUID, usage types.TokenUsage, cost float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job := s.jobs[id]
	job.TokensUsed += usage.TotalTokens
	job.EstimatedCost += cost
	return nil
}

func (s *fakeStore) CompleteJob(_ context.Context, id uuid.UUID, final *types.FinalArticle) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job := s.jobs[id]
	s.applyCancel(job)
	if job.Status != types.JobStatusProcessing {
		return false, nil
	}
	job.Status = types.JobStatusCompleted
	job.FinalOutput = final
	job.Progress = 100
	return true, nil
}

func (s *fakeStore) FailJob(_ context.Context, id uuid.UUID, message string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job := s.jobs[id]
	s.applyCancel(job)
	if job.Status.Terminal() {
		return false, nil
	}
	job.Status = types.JobStatusFailed
	job.LastError = &message
	return true, nil
}

func (s *fakeStore) RequeueJob(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job := s.jobs[id]
	if job.Status == types.JobStatusProcessing {
		job.Status = types.JobStatusPending
		job.CurrentAgent = nil
	}
	return nil
}

func (s *fakeStore) CreateStep(_ context.Context, step *types.Step) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *step
	s.steps = append(s.steps, &copied)
	return nil
}

func (s *fakeStore) UpdateStep(_ context.Context, step *types.Step) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.steps {
		if existing.ID == step.ID {
			copied := *step
			s.steps[i] = &copied
			return nil
		}
	}
	return fmt.Errorf("step %s not found", step.ID)
}

func (s *fakeStore) CreateEvaluation(_ context.Context, eval *types.Evaluation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *eval
	s.evals = append(s.evals, &copied)
	return nil
}

// stubAgent returns scripted results in call order.
type stubAgent struct {
	role      types.AgentType
	results   []*agents.Result
	errs      []error
	calls     int
	onExecute func()
}

func (a *stubAgent) Type() types.AgentType           { return a.role }
func (a *stubAgent) ValidateInput(*agents.Context) error { return nil }
func (a *stubAgent) OutputSchema() string            { return "{}" }

func (a *stubAgent) Execute(_ context.Context, _ *agents.Context) (*agents.Result, error) {
	if a.onExecute != nil {
		a.onExecute()
	}
	i := a.calls
	a.calls++
	if i < len(a.errs) && a.errs[i] != nil {
		return nil, a.errs[i]
	}
	if i >= len(a.results) {
		i = len(a.results) - 1
	}
	return a.results[i], nil
}

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func okResult(output json.RawMessage) *agents.Result {
	return &agents.Result{
		Output:           output,
		Usage:            types.TokenUsage{PromptTokens: 100, CompletionTokens: 50, TotalTokens: 150},
		EstimatedCostUSD: 0.001,
		ContinueToNext:   true,
	}
}

func qaResult(t *testing.T, passed bool, score int) *agents.Result {
	report := types.QAReport{
		Passed:       passed,
		OverallScore: score,
		Scores: types.DimensionScores{
			Readability: score, SEO: score, Accuracy: score, Engagement: score, BrandVoice: score,
		},
		Feedback: "tighten the cost tables",
	}
	r := okResult(mustJSON(t, report))
	r.ContinueToNext = passed
	r.Feedback = report.Feedback
	return r
}

// buildRegistry wires stub agents for all four roles, with the QA stub
// supplied by the caller.
func buildRegistry(t *testing.T, qa *stubAgent) *agents.Registry {
	t.Helper()
	r := agents.NewRegistry(nil)
	r.Register(&stubAgent{role: types.AgentResearch, results: []*agents.Result{
		okResult(mustJSON(t, types.ResearchBrief{Keyword: "concrete driveway cost", SearchIntent: "commercial"})),
	}})
	r.Register(&stubAgent{role: types.AgentWriter, results: []*agents.Result{
		okResult(mustJSON(t, types.ArticleDraft{
			Title:           "Concrete Driveway Cost Guide",
			Slug:            "concrete-driveway-cost",
			MetaDescription: "What a driveway costs.",
			BodyHTML:        "<h2>Costs</h2><p>$4 to $15 per square foot.</p>",
			WordCount:       900,
		})),
	}})
	r.Register(&stubAgent{role: types.AgentSEO, results: []*agents.Result{
		okResult(mustJSON(t, types.SEOReport{
			MetaTitle:         "Concrete Driveway Cost: Price Guide",
			MetaDescription:   "Per-square-foot driveway pricing.",
			SchemaMarkup:      `{"@type": "Article"}`,
			OptimizationScore: 80,
		})),
	}})
	r.Register(qa)
	return r
}

func pendingJob(maxIterations int) *types.Job {
	return &types.Job{
		ID:            uuid.New(),
		Keyword:       "concrete driveway cost",
		Status:        types.JobStatusPending,
		MaxIterations: maxIterations,
	}
}

func TestRun_QAPassesFirstIteration(t *testing.T) {
	job := pendingJob(3)
	store := newFakeStore(job)
	qa := &stubAgent{role: types.AgentQA, results: []*agents.Result{qaResult(t, true, 85)}}
	orch := NewOrchestrator(store, buildRegistry(t, qa))

	result, err := orch.Run(context.Background(), job.ID)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.True(t, result.QAPassed)
	assert.Equal(t, 1, result.Iterations)

	// research + writer + seo + qa
	assert.Len(t, store.steps, 4)
	for _, step := range store.steps {
		assert.Equal(t, types.StepStatusCompleted, step.Status)
	}

	final := store.jobs[job.ID].FinalOutput
	require.NotNil(t, final)
	assert.Equal(t, types.JobStatusCompleted, store.jobs[job.ID].Status)
	assert.Equal(t, "Concrete Driveway Cost: Price Guide", final.MetaTitle)
	assert.Equal(t, "concrete-driveway-cost", final.Slug)
	assert.Equal(t, "concrete driveway cost", final.Keyword)

	// 4 agent calls at 150 tokens each.
	assert.Equal(t, 600, result.Usage.TotalTokens)
	assert.Equal(t, 600, store.jobs[job.ID].TokensUsed)
	assert.InDelta(t, 0.004, result.CostUSD, 1e-9)

	require.Len(t, store.evals, 1)
	assert.Equal(t, types.EvalTypeAutomated, store.evals[0].Type)
	assert.True(t, store.evals[0].Passed)
}

func TestRun_BestEffortCompletionWhenQANeverPasses(t *testing.T) {
	job := pendingJob(2)
	store := newFakeStore(job)
	qa := &stubAgent{role: types.AgentQA, results: []*agents.Result{qaResult(t, false, 55)}}
	orch := NewOrchestrator(store, buildRegistry(t, qa))

	result, err := orch.Run(context.Background(), job.ID)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.False(t, result.QAPassed)
	assert.Equal(t, 2, result.Iterations)

	// research + 2 * (writer + seo + qa)
	assert.Len(t, store.steps, 7)
	assert.Equal(t, types.JobStatusCompleted, store.jobs[job.ID].Status)
	require.NotNil(t, store.jobs[job.ID].FinalOutput)

	require.Len(t, store.evals, 2)
	assert.False(t, store.evals[0].Passed)
	assert.Equal(t, 1, store.evals[0].Iteration)
	assert.Equal(t, 2, store.evals[1].Iteration)
}

func TestRun_AgentFailureFailsJob(t *testing.T) {
	job := pendingJob(3)
	store := newFakeStore(job)
	qa := &stubAgent{role: types.AgentQA, results: []*agents.Result{qaResult(t, true, 85)}}
	registry := buildRegistry(t, qa)
	registry.Register(&stubAgent{role: types.AgentWriter, errs: []error{errors.New("model returned garbage")}})
	orch := NewOrchestrator(store, registry)

	result, err := orch.Run(context.Background(), job.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "writer agent failed")
	assert.False(t, result.Success)

	failed := store.jobs[job.ID]
	assert.Equal(t, types.JobStatusFailed, failed.Status)
	require.NotNil(t, failed.LastError)
	assert.Contains(t, *failed.LastError, "model returned garbage")

	// research completed, writer failed
	require.Len(t, store.steps, 2)
	assert.Equal(t, types.StepStatusCompleted, store.steps[0].Status)
	assert.Equal(t, types.StepStatusFailed, store.steps[1].Status)
	require.NotNil(t, store.steps[1].ErrorMessage)
}

func TestRun_CancellationAtLoopBoundary(t *testing.T) {
	job := pendingJob(3)
	store := newFakeStore(job)
	store.cancelAfterSteps = 1 // cancel lands while research runs
	qa := &stubAgent{role: types.AgentQA, results: []*agents.Result{qaResult(t, true, 85)}}
	orch := NewOrchestrator(store, buildRegistry(t, qa))

	result, err := orch.Run(context.Background(), job.ID)
	require.NoError(t, err)
	assert.True(t, result.Cancelled)
	assert.False(t, result.Success)
	assert.Equal(t, 0, result.Iterations)

	// Only the research step ran; the writer never started.
	assert.Len(t, store.steps, 1)
	assert.Equal(t, types.JobStatusCancelled, store.jobs[job.ID].Status)
}

func TestRun_PersistsProgressAfterEachStep(t *testing.T) {
	job := pendingJob(3)
	store := newFakeStore(job)
	qa := &stubAgent{role: types.AgentQA, results: []*agents.Result{qaResult(t, true, 85)}}
	orch := NewOrchestrator(store, buildRegistry(t, qa))

	_, err := orch.Run(context.Background(), job.ID)
	require.NoError(t, err)

	// Each of the four steps writes its position twice, when it starts and
	// when it finishes, so pollers between steps see the completed work.
	assert.Equal(t, []int{0, 10, 10, 20, 20, 30, 30, 40}, store.progressLog)
}

func TestRun_CancellationMidIteration(t *testing.T) {
	job := pendingJob(3)
	store := newFakeStore(job)
	store.cancelAfterSteps = 2 // cancel lands while the writer runs
	qa := &stubAgent{role: types.AgentQA, results: []*agents.Result{qaResult(t, true, 85)}}
	orch := NewOrchestrator(store, buildRegistry(t, qa))

	result, err := orch.Run(context.Background(), job.ID)
	require.NoError(t, err)
	assert.True(t, result.Cancelled)
	assert.False(t, result.Success)
	assert.Equal(t, 0, result.Iterations)

	// Research and writer finished; seo and qa never start on a cancelled
	// job, and no further steps are appended.
	assert.Len(t, store.steps, 2)
	assert.Equal(t, types.JobStatusCancelled, store.jobs[job.ID].Status)
	assert.Nil(t, store.jobs[job.ID].FinalOutput)
}

func TestRun_CancelAfterFinalStepIsNotClobbered(t *testing.T) {
	job := pendingJob(1)
	store := newFakeStore(job)
	store.cancelAfterSteps = 4 // cancel lands between the last step and completion
	qa := &stubAgent{role: types.AgentQA, results: []*agents.Result{qaResult(t, true, 85)}}
	orch := NewOrchestrator(store, buildRegistry(t, qa))

	result, err := orch.Run(context.Background(), job.ID)
	require.NoError(t, err)
	assert.True(t, result.Cancelled)
	assert.False(t, result.Success)

	// The guarded completion write must not overwrite the terminal status.
	assert.Equal(t, types.JobStatusCancelled, store.jobs[job.ID].Status)
	assert.Nil(t, store.jobs[job.ID].FinalOutput)
}

func TestRun_DriverShutdownRequeuesJob(t *testing.T) {
	job := pendingJob(3)
	store := newFakeStore(job)
	qa := &stubAgent{role: types.AgentQA, results: []*agents.Result{qaResult(t, true, 85)}}
	registry := buildRegistry(t, qa)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	registry.Register(&stubAgent{role: types.AgentWriter, onExecute: cancel, results: []*agents.Result{
		okResult(mustJSON(t, types.ArticleDraft{Title: "Concrete Driveway Cost Guide", BodyHTML: "<p>draft</p>"})),
	}})
	orch := NewOrchestrator(store, registry)

	result, err := orch.Run(ctx, job.ID)
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, result)

	// The job goes back to the queue for another worker, not to failed.
	requeued := store.jobs[job.ID]
	assert.Equal(t, types.JobStatusPending, requeued.Status)
	assert.Nil(t, requeued.LastError)

	// Research and writer finished before the shutdown was observed.
	require.Len(t, store.steps, 2)
	for _, step := range store.steps {
		assert.Equal(t, types.StepStatusCompleted, step.Status)
	}
}

func TestRun_MissingPersonaFailsJob(t *testing.T) {
	job := pendingJob(3)
	store := newFakeStore(job)
	delete(store.personas, types.AgentSEO)
	qa := &stubAgent{role: types.AgentQA, results: []*agents.Result{qaResult(t, true, 85)}}
	orch := NewOrchestrator(store, buildRegistry(t, qa))

	_, err := orch.Run(context.Background(), job.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no enabled persona for seo agent")
	assert.Equal(t, types.JobStatusFailed, store.jobs[job.ID].Status)
	assert.Empty(t, store.steps)
}

func TestRun_TerminalJobRejected(t *testing.T) {
	job := pendingJob(3)
	job.Status = types.JobStatusCompleted
	store := newFakeStore(job)
	qa := &stubAgent{role: types.AgentQA, results: []*agents.Result{qaResult(t, true, 85)}}
	orch := NewOrchestrator(store, buildRegistry(t, qa))

	_, err := orch.Run(context.Background(), job.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already completed")
}

func TestRun_CallbacksFire(t *testing.T) {
	job := pendingJob(3)
	store := newFakeStore(job)
	qa := &stubAgent{role: types.AgentQA, results: []*agents.Result{qaResult(t, true, 85)}}
	orch := NewOrchestrator(store, buildRegistry(t, qa))

	var started, completed []types.AgentType
	var lastProgress int
	orch.SetCallbacks(Callbacks{
		OnAgentStart:    func(agent types.AgentType, _ int) { started = append(started, agent) },
		OnAgentComplete: func(agent types.AgentType, _ int, _ *types.Step) { completed = append(completed, agent) },
		OnProgress:      func(p int) { lastProgress = p },
	})

	_, err := orch.Run(context.Background(), job.ID)
	require.NoError(t, err)

	want := []types.AgentType{types.AgentResearch, types.AgentWriter, types.AgentSEO, types.AgentQA}
	assert.Equal(t, want, started)
	assert.Equal(t, want, completed)
	assert.Equal(t, 100, lastProgress)
}
