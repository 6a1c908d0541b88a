// Package pipeline runs the multi-agent generation flow for a job: research
// once, then a bounded writer/seo/qa revision loop, with every agent
// invocation persisted as a step.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/MandBea-Media-Labs/cost-of-concrete-sub007/internal/agents"
	"github.com/MandBea-Media-Labs/cost-of-concrete-sub007/internal/types"
)

// Store is the persistence surface the orchestrator needs. *db.DB satisfies
// it; tests supply an in-memory fake.
type Store interface {
	GetJob(ctx context.Context, id uuid.UUID) (*types.Job, error)
	GetEnabledPersona(ctx context.Context, t types.AgentType) (*types.Persona, error)
	StartJob(ctx context.Context, id uuid.UUID) error
	UpdateJobProgress(ctx context.Context, id uuid.UUID, progress, iteration int, agent *types.AgentType) error
	AddJobUsage(ctx context.Context, id uuid.UUID, usage types.TokenUsage, cost float64) error
	CompleteJob(ctx context.Context, id uuid.UUID, final *types.FinalArticle) (bool, error)
	FailJob(ctx context.Context, id uuid.UUID, message string) (bool, error)
	RequeueJob(ctx context.Context, id uuid.UUID) error
	CreateStep(ctx context.Context, step *types.Step) error
	UpdateStep(ctx context.Context, step *types.Step) error
	CreateEvaluation(ctx context.Context, eval *types.Evaluation) error
}

// Callbacks receive pipeline events as they happen. All fields are optional;
// the CLI uses them for verbose narration.
type Callbacks struct {
	OnAgentStart    func(agent types.AgentType, iteration int)
	OnAgentComplete func(agent types.AgentType, iteration int, step *types.Step)
	OnProgress      func(progress int)
}

// RunResult summarizes a finished pipeline run.
type RunResult struct {
	Success    bool
	Cancelled  bool
	Iterations int
	QAPassed   bool
	Final      *types.FinalArticle
	Usage      types.TokenUsage
	CostUSD    float64
	Err        error
}

// Orchestrator drives jobs through the agent pipeline.
type Orchestrator struct {
	store     Store
	registry  *agents.Registry
	callbacks Callbacks
}

// NewOrchestrator creates an orchestrator over the given store and registry.
func NewOrchestrator(store Store, registry *agents.Registry) *Orchestrator {
	return &Orchestrator{store: store, registry: registry}
}

// SetCallbacks installs event callbacks for subsequent runs.
func (o *Orchestrator) SetCallbacks(cb Callbacks) {
	o.callbacks = cb
}

// Run executes the full pipeline for the job. The job completes when QA
// passes or the iteration budget is spent; only a hard agent failure marks it
// failed. Cancellation is honored at step boundaries, never mid-agent; a
// driver shutdown requeues the job instead of failing it.
func (o *Orchestrator) Run(ctx context.Context, jobID uuid.UUID) (*RunResult, error) {
	job, err := o.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to load job %s: %w", jobID, err)
	}
	if job == nil {
		return nil, fmt.Errorf("job %s not found", jobID)
	}
	if job.Status.Terminal() {
		return nil, fmt.Errorf("job %s is already %s", jobID, job.Status)
	}
	if job.MaxIterations <= 0 {
		job.MaxIterations = types.DefaultMaxIterations
	}

	personas, err := o.resolvePersonas(ctx)
	if err != nil {
		return o.fail(ctx, job, err)
	}

	if err := o.store.StartJob(ctx, job.ID); err != nil {
		return nil, fmt.Errorf("failed to start job %s: %w", job.ID, err)
	}

	run := &runState{job: job, personas: personas}

	// Research runs once per job. Its brief feeds every later agent.
	if res, err := o.stepBoundary(ctx, job, run, 1); res != nil || err != nil {
		return res, err
	}
	if err := o.runAgent(ctx, run, types.AgentResearch, 1); err != nil {
		if ctx.Err() != nil {
			return o.shutdown(ctx, job.ID, ctx.Err())
		}
		return o.fail(ctx, job, err)
	}

	var qaPassed bool
	iteration := 0
	for iteration < job.MaxIterations && !qaPassed {
		iteration++

		for _, agentType := range []types.AgentType{types.AgentWriter, types.AgentSEO, types.AgentQA} {
			if res, err := o.stepBoundary(ctx, job, run, iteration); res != nil || err != nil {
				return res, err
			}
			if err := o.runAgent(ctx, run, agentType, iteration); err != nil {
				if ctx.Err() != nil {
					return o.shutdown(ctx, job.ID, ctx.Err())
				}
				return o.fail(ctx, job, err)
			}
		}
		qaPassed = run.qa != nil && run.qa.Passed

		if err := o.recordAutomatedEval(ctx, job.ID, iteration, run.qa); err != nil {
			// Evaluations are an audit record; a write failure should not
			// fail an otherwise healthy run.
			log.Printf("job %s: failed to record automated evaluation: %v", job.ID, err)
		}
	}

	if !qaPassed {
		log.Printf("job %s: quality gate not met after %d iteration(s), completing with best draft", job.ID, iteration)
	}

	final, err := run.assembleFinal()
	if err != nil {
		return o.fail(ctx, job, err)
	}
	completed, err := o.store.CompleteJob(ctx, job.ID, final)
	if err != nil {
		return nil, fmt.Errorf("failed to complete job %s: %w", job.ID, err)
	}
	if !completed {
		// The guarded update found the job no longer processing: a cancel
		// landed after the last step boundary and must stand.
		return &RunResult{Cancelled: true, Iterations: iteration, Usage: run.usage, CostUSD: run.cost}, nil
	}
	o.notifyProgress(100)

	return &RunResult{
		Success:    true,
		Iterations: iteration,
		QAPassed:   qaPassed,
		Final:      final,
		Usage:      run.usage,
		CostUSD:    run.cost,
	}, nil
}

// runState accumulates the intermediate outputs and totals for one run.
type runState struct {
	job      *types.Job
	personas map[types.AgentType]*types.Persona

	research *types.ResearchBrief
	draft    *types.ArticleDraft
	seo      *types.SEOReport
	qa       *types.QAReport

	usage     types.TokenUsage
	cost      float64
	stepsDone int
}

// runAgent executes one agent, persisting the step through its lifecycle.
func (o *Orchestrator) runAgent(ctx context.Context, run *runState, agentType types.AgentType, iteration int) error {
	agent, ok := o.registry.Get(agentType)
	if !ok {
		return fmt.Errorf("no agent registered for role %q", agentType)
	}

	ac := &agents.Context{
		Job:       run.job,
		Persona:   run.personas[agentType],
		Iteration: iteration,
		Research:  run.research,
		Draft:     run.draft,
		SEO:       run.seo,
		PriorQA:   run.qa,
	}

	input, err := json.Marshal(stepInput{Keyword: run.job.Keyword, Iteration: iteration})
	if err != nil {
		return fmt.Errorf("failed to encode step input: %w", err)
	}

	now := time.Now()
	step := &types.Step{
		ID:        uuid.New(),
		JobID:     run.job.ID,
		AgentType: agentType,
		Iteration: iteration,
		Status:    types.StepStatusRunning,
		Input:     input,
		CreatedAt: now,
		StartedAt: &now,
	}
	if err := o.store.CreateStep(ctx, step); err != nil {
		return fmt.Errorf("failed to create %s step: %w", agentType, err)
	}

	at := agentType
	if err := o.store.UpdateJobProgress(ctx, run.job.ID, run.progress(), iteration, &at); err != nil {
		return fmt.Errorf("failed to update job progress: %w", err)
	}
	if o.callbacks.OnAgentStart != nil {
		o.callbacks.OnAgentStart(agentType, iteration)
	}

	result, execErr := agent.Execute(ctx, ac)

	completed := time.Now()
	duration := completed.Sub(now).Milliseconds()
	step.DurationMs = &duration
	step.CompletedAt = &completed

	if execErr != nil {
		step.Status = types.StepStatusFailed
		msg := execErr.Error()
		step.ErrorMessage = &msg
		if updateErr := o.store.UpdateStep(ctx, step); updateErr != nil {
			log.Printf("job %s: failed to persist failed %s step: %v", run.job.ID, agentType, updateErr)
		}
		return fmt.Errorf("%s agent failed: %w", agentType, execErr)
	}

	step.Status = types.StepStatusCompleted
	step.Output = result.Output
	step.Usage = result.Usage
	if err := o.store.UpdateStep(ctx, step); err != nil {
		return fmt.Errorf("failed to persist %s step: %w", agentType, err)
	}

	run.usage = run.usage.Add(result.Usage)
	run.cost += result.EstimatedCostUSD
	run.stepsDone++
	if err := o.store.AddJobUsage(ctx, run.job.ID, result.Usage, result.EstimatedCostUSD); err != nil {
		return fmt.Errorf("failed to record job usage: %w", err)
	}

	if err := run.absorb(agentType, result.Output); err != nil {
		return err
	}

	// Persist the post-step position too, so pollers between steps see the
	// finished work rather than the stale pre-step snapshot.
	if err := o.store.UpdateJobProgress(ctx, run.job.ID, run.progress(), iteration, &at); err != nil {
		return fmt.Errorf("failed to update job progress: %w", err)
	}

	if o.callbacks.OnAgentComplete != nil {
		o.callbacks.OnAgentComplete(agentType, iteration, step)
	}
	o.notifyProgress(run.progress())
	return nil
}

// stepInput is the persisted input snapshot for a step record.
type stepInput struct {
	Keyword   string `json:"keyword"`
	Iteration int    `json:"iteration"`
}

// absorb decodes an agent's output into the run state slot for its role.
func (run *runState) absorb(agentType types.AgentType, output json.RawMessage) error {
	switch agentType {
	case types.AgentResearch:
		run.research = &types.ResearchBrief{}
		if err := json.Unmarshal(output, run.research); err != nil {
			return fmt.Errorf("failed to decode research output: %w", err)
		}
	case types.AgentWriter:
		run.draft = &types.ArticleDraft{}
		if err := json.Unmarshal(output, run.draft); err != nil {
			return fmt.Errorf("failed to decode writer output: %w", err)
		}
	case types.AgentSEO:
		run.seo = &types.SEOReport{}
		if err := json.Unmarshal(output, run.seo); err != nil {
			return fmt.Errorf("failed to decode seo output: %w", err)
		}
	case types.AgentQA:
		run.qa = &types.QAReport{}
		if err := json.Unmarshal(output, run.qa); err != nil {
			return fmt.Errorf("failed to decode qa output: %w", err)
		}
	default:
		return fmt.Errorf("unknown agent role %q", agentType)
	}
	return nil
}

// progress estimates completion percentage from steps done against the worst
// case of one research step plus three steps per allowed iteration. Capped at
// 95 so only CompleteJob reports 100.
func (run *runState) progress() int {
	planned := 1 + 3*run.job.MaxIterations
	p := run.stepsDone * 100 / planned
	if p > 95 {
		p = 95
	}
	return p
}

// assembleFinal builds the finished article from the last draft and SEO pass.
func (run *runState) assembleFinal() (*types.FinalArticle, error) {
	if run.draft == nil {
		return nil, errors.New("no draft produced, cannot assemble final article")
	}
	final := &types.FinalArticle{
		Title:           run.draft.Title,
		Slug:            run.draft.Slug,
		BodyHTML:        run.draft.BodyHTML,
		MetaTitle:       run.draft.Title,
		MetaDescription: run.draft.MetaDescription,
		Keyword:         run.job.Keyword,
		WordCount:       run.draft.WordCount,
	}
	if run.seo != nil {
		if run.seo.MetaTitle != "" {
			final.MetaTitle = run.seo.MetaTitle
		}
		if run.seo.MetaDescription != "" {
			final.MetaDescription = run.seo.MetaDescription
		}
		final.SchemaMarkup = run.seo.SchemaMarkup
	}
	return final, nil
}

// resolvePersonas loads an enabled persona for every role before any agent
// runs, so misconfiguration fails the job up front instead of mid-pipeline.
func (o *Orchestrator) resolvePersonas(ctx context.Context) (map[types.AgentType]*types.Persona, error) {
	personas := make(map[types.AgentType]*types.Persona, len(types.AllAgentTypes()))
	for _, t := range types.AllAgentTypes() {
		p, err := o.store.GetEnabledPersona(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("no enabled persona for %s agent: %w", t, err)
		}
		personas[t] = p
	}
	return personas, nil
}

// stepBoundary is the cooperative cancellation point before each agent call.
// A dead driver context requeues the job so another worker can resume it; an
// external cancel ends the run, keeping the steps that already finished. A
// (nil, nil) return means proceed.
func (o *Orchestrator) stepBoundary(ctx context.Context, job *types.Job, run *runState, iteration int) (*RunResult, error) {
	if err := ctx.Err(); err != nil {
		return o.shutdown(ctx, job.ID, err)
	}
	current, err := o.store.GetJob(ctx, job.ID)
	if err != nil {
		return o.fail(ctx, job, fmt.Errorf("failed to re-check job %s: %w", job.ID, err))
	}
	if current == nil {
		return o.fail(ctx, job, fmt.Errorf("job %s disappeared mid-run", job.ID))
	}
	if current.Status == types.JobStatusCancelled {
		return &RunResult{Cancelled: true, Iterations: iteration - 1, Usage: run.usage, CostUSD: run.cost}, nil
	}
	return nil, nil
}

// shutdown requeues the job when the driver's context ended mid-run, leaving
// it claimable by another worker instead of marking it failed.
func (o *Orchestrator) shutdown(ctx context.Context, jobID uuid.UUID, cause error) (*RunResult, error) {
	if err := o.store.RequeueJob(context.WithoutCancel(ctx), jobID); err != nil {
		log.Printf("job %s: failed to requeue after driver shutdown: %v", jobID, err)
	}
	return nil, cause
}

// recordAutomatedEval persists the QA verdict as an automated evaluation row.
func (o *Orchestrator) recordAutomatedEval(ctx context.Context, jobID uuid.UUID, iteration int, report *types.QAReport) error {
	if report == nil {
		return nil
	}
	return o.store.CreateEvaluation(ctx, &types.Evaluation{
		ID:           uuid.New(),
		JobID:        jobID,
		Type:         types.EvalTypeAutomated,
		Iteration:    iteration,
		OverallScore: report.OverallScore,
		Scores:       report.Scores,
		Passed:       report.Passed,
		Issues:       report.Issues,
		Feedback:     report.Feedback,
		CreatedAt:    time.Now(),
	})
}

// fail marks the job failed and returns the terminal result. The original
// agent error is preserved in the result and the job record. A job already in
// a terminal state is left untouched.
func (o *Orchestrator) fail(ctx context.Context, job *types.Job, cause error) (*RunResult, error) {
	failed, err := o.store.FailJob(ctx, job.ID, cause.Error())
	if err != nil {
		log.Printf("job %s: failed to mark job failed: %v", job.ID, err)
	} else if !failed {
		log.Printf("job %s: already terminal, keeping existing status", job.ID)
	}
	return &RunResult{Success: false, Err: cause}, cause
}

func (o *Orchestrator) notifyProgress(p int) {
	if o.callbacks.OnProgress != nil {
		o.callbacks.OnProgress(p)
	}
}
