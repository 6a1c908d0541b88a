// Package worker runs the job queue consumers: goroutines that claim pending
// jobs and drive them through the pipeline.
package worker

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/MandBea-Media-Labs/cost-of-concrete-sub007/internal/pipeline"
	"github.com/MandBea-Media-Labs/cost-of-concrete-sub007/internal/types"
)

// DefaultPollInterval is the queue poll cadence when none is configured.
const DefaultPollInterval = 5 * time.Second

// Queue is the claim surface the worker needs. *db.DB satisfies it.
type Queue interface {
	ClaimPendingJob(ctx context.Context) (*types.Job, error)
}

// Runner executes one claimed job. *pipeline.Orchestrator satisfies it.
type Runner interface {
	Run(ctx context.Context, jobID uuid.UUID) (*pipeline.RunResult, error)
}

// Config holds worker pool settings.
type Config struct {
	Concurrency  int
	PollInterval time.Duration
}

// Worker consumes the pending job queue.
type Worker struct {
	queue  Queue
	runner Runner
	config Config
}

// New creates a worker pool over the given queue and runner.
func New(queue Queue, runner Runner, config Config) *Worker {
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	return &Worker{queue: queue, runner: runner, config: config}
}

// Run consumes jobs until the context is cancelled. Job failures are recorded
// on the job itself and do not stop the pool; only the context ends it.
func (w *Worker) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < w.config.Concurrency; i++ {
		g.Go(func() error {
			return w.consume(ctx)
		})
	}
	if err := g.Wait(); err != nil && err != context.Canceled {
		return err
	}
	return nil
}

// consume is one worker goroutine's claim-and-run loop.
func (w *Worker) consume(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		job, err := w.queue.ClaimPendingJob(ctx)
		if err != nil {
			log.Printf("worker: failed to claim job: %v", err)
			if !w.sleep(ctx) {
				return ctx.Err()
			}
			continue
		}
		if job == nil {
			if !w.sleep(ctx) {
				return ctx.Err()
			}
			continue
		}

		log.Printf("worker: claimed job %s (keyword %q)", job.ID, job.Keyword)
		result, err := w.runner.Run(ctx, job.ID)
		switch {
		case errors.Is(err, context.Canceled):
			log.Printf("worker: job %s interrupted by shutdown, requeued", job.ID)
		case err != nil:
			log.Printf("worker: job %s failed: %v", job.ID, err)
		case result.Cancelled:
			log.Printf("worker: job %s cancelled after %d iteration(s)", job.ID, result.Iterations)
		default:
			log.Printf("worker: job %s completed in %d iteration(s), %d tokens, $%.4f",
				job.ID, result.Iterations, result.Usage.TotalTokens, result.CostUSD)
		}
	}
}

// sleep waits one poll interval, reporting false when the context ended.
func (w *Worker) sleep(ctx context.Context) bool {
	timer := time.NewTimer(w.config.PollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
