// Package progress turns persisted job state into a stream of change events
// by polling. The pipeline writes state through its store; watchers observe
// it here without coupling the two.
package progress

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/MandBea-Media-Labs/cost-of-concrete-sub007/internal/types"
)

// DefaultInterval is the poll cadence when none is configured.
const DefaultInterval = time.Second

// Source is the read surface the watcher polls. *db.DB satisfies it.
type Source interface {
	GetJob(ctx context.Context, id uuid.UUID) (*types.Job, error)
	ListStepsByJob(ctx context.Context, jobID uuid.UUID) ([]*types.Step, error)
}

// EventType labels one kind of job state change.
type EventType string

// Event type constants
const (
	EventProgress     EventType = "progress"
	EventStepStart    EventType = "step:start"
	EventStepComplete EventType = "step:complete"
	EventComplete     EventType = "complete"
	EventFailed       EventType = "failed"
	EventCancelled    EventType = "cancelled"
)

// Event is one observed change in a job's state.
type Event struct {
	Type      EventType        `json:"type"`
	JobID     uuid.UUID        `json:"job_id"`
	Status    types.JobStatus  `json:"status"`
	Progress  int              `json:"progress"`
	Iteration int              `json:"iteration"`
	Agent     *types.AgentType `json:"agent,omitempty"`
	Step      *types.Step      `json:"step,omitempty"`
	Error     string           `json:"error,omitempty"`
}

// Watcher polls job state and emits change events.
type Watcher struct {
	source   Source
	interval time.Duration
}

// NewWatcher creates a watcher polling at the given interval.
func NewWatcher(source Source, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Watcher{source: source, interval: interval}
}

// Watch streams events for a job until it reaches a terminal status or the
// context is cancelled. The returned channel is closed when watching stops.
func (w *Watcher) Watch(ctx context.Context, jobID uuid.UUID) <-chan Event {
	events := make(chan Event, 16)
	go w.run(ctx, jobID, events)
	return events
}

func (w *Watcher) run(ctx context.Context, jobID uuid.UUID, events chan<- Event) {
	defer close(events)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	seen := make(map[uuid.UUID]types.StepStatus)
	lastProgress := -1

	for {
		job, err := w.source.GetJob(ctx, jobID)
		if err != nil || job == nil {
			return
		}

		steps, err := w.source.ListStepsByJob(ctx, jobID)
		if err != nil {
			return
		}
		for _, step := range steps {
			prev, known := seen[step.ID]
			if known && prev == step.Status {
				continue
			}
			seen[step.ID] = step.Status
			switch step.Status {
			case types.StepStatusRunning:
				w.send(ctx, events, stepEvent(EventStepStart, job, step))
			case types.StepStatusCompleted, types.StepStatusFailed:
				if !known {
					// Missed the running phase between polls; report the
					// start first so consumers see a consistent sequence.
					w.send(ctx, events, stepEvent(EventStepStart, job, step))
				}
				w.send(ctx, events, stepEvent(EventStepComplete, job, step))
			}
		}

		if job.Status.Terminal() {
			w.send(ctx, events, terminalEvent(job))
			return
		}

		if job.Progress != lastProgress {
			lastProgress = job.Progress
			w.send(ctx, events, jobEvent(EventProgress, job))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *Watcher) send(ctx context.Context, events chan<- Event, ev Event) {
	select {
	case events <- ev:
	case <-ctx.Done():
	}
}

func jobEvent(t EventType, job *types.Job) Event {
	return Event{
		Type:      t,
		JobID:     job.ID,
		Status:    job.Status,
		Progress:  job.Progress,
		Iteration: job.CurrentIteration,
		Agent:     job.CurrentAgent,
	}
}

func stepEvent(t EventType, job *types.Job, step *types.Step) Event {
	ev := jobEvent(t, job)
	ev.Step = step
	return ev
}

func terminalEvent(job *types.Job) Event {
	var t EventType
	switch job.Status {
	case types.JobStatusFailed:
		t = EventFailed
	case types.JobStatusCancelled:
		t = EventCancelled
	default:
		t = EventComplete
	}
	ev := jobEvent(t, job)
	if job.LastError != nil {
		ev.Error = *job.LastError
	}
	return ev
}
