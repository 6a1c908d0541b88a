package progress

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MandBea-Media-Labs/cost-of-concrete-sub007/internal/types"
)

// mutableSource is a Source whose state tests mutate between polls.
type mutableSource struct {
	mu    sync.Mutex
	job   *types.Job
	steps []*types.Step
}

func (s *mutableSource) GetJob(_ context.Context, _ uuid.UUID) (*types.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *s.job
	return &copied, nil
}

func (s *mutableSource) ListStepsByJob(_ context.Context, _ uuid.UUID) ([]*types.Step, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*types.Step, len(s.steps))
	for i, step := range s.steps {
		copied := *step
		out[i] = &copied
	}
	return out, nil
}

func (s *mutableSource) update(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}

func collect(t *testing.T, events <-chan Event) []Event {
	t.Helper()
	var out []Event
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatal("timed out waiting for watcher to finish")
		}
	}
}

func TestWatch_JobLifecycle(t *testing.T) {
	jobID := uuid.New()
	step := &types.Step{ID: uuid.New(), JobID: jobID, AgentType: types.AgentResearch, Status: types.StepStatusRunning}
	source := &mutableSource{
		job:   &types.Job{ID: jobID, Status: types.JobStatusProcessing, Progress: 10},
		steps: []*types.Step{step},
	}

	watcher := NewWatcher(source, 5*time.Millisecond)
	events := watcher.Watch(context.Background(), jobID)

	// Let a few polls happen, then finish the step and the job.
	time.Sleep(20 * time.Millisecond)
	source.update(func() {
		source.steps[0].Status = types.StepStatusCompleted
		source.job.Progress = 100
		source.job.Status = types.JobStatusCompleted
	})

	got := collect(t, events)
	require.NotEmpty(t, got)

	kinds := make([]EventType, len(got))
	for i, ev := range got {
		kinds[i] = ev.Type
	}
	assert.Contains(t, kinds, EventStepStart)
	assert.Contains(t, kinds, EventStepComplete)
	assert.Contains(t, kinds, EventProgress)
	assert.Equal(t, EventComplete, kinds[len(kinds)-1])
}

func TestWatch_FailedJobEmitsError(t *testing.T) {
	jobID := uuid.New()
	msg := "writer agent failed: model returned garbage"
	source := &mutableSource{
		job: &types.Job{ID: jobID, Status: types.JobStatusFailed, LastError: &msg},
	}

	watcher := NewWatcher(source, 5*time.Millisecond)
	got := collect(t, watcher.Watch(context.Background(), jobID))

	require.NotEmpty(t, got)
	last := got[len(got)-1]
	assert.Equal(t, EventFailed, last.Type)
	assert.Equal(t, msg, last.Error)
}

func TestWatch_MissedRunningPhaseStillReportsStart(t *testing.T) {
	jobID := uuid.New()
	// The step is already completed on the first poll.
	step := &types.Step{ID: uuid.New(), JobID: jobID, AgentType: types.AgentWriter, Status: types.StepStatusCompleted}
	source := &mutableSource{
		job:   &types.Job{ID: jobID, Status: types.JobStatusCompleted},
		steps: []*types.Step{step},
	}

	watcher := NewWatcher(source, 5*time.Millisecond)
	got := collect(t, watcher.Watch(context.Background(), jobID))

	var kinds []EventType
	for _, ev := range got {
		kinds = append(kinds, ev.Type)
	}
	assert.Equal(t, []EventType{EventStepStart, EventStepComplete, EventComplete}, kinds)
}

func TestWatch_ContextCancelStops(t *testing.T) {
	jobID := uuid.New()
	source := &mutableSource{
		job: &types.Job{ID: jobID, Status: types.JobStatusProcessing},
	}

	ctx, cancel := context.WithCancel(context.Background())
	watcher := NewWatcher(source, 5*time.Millisecond)
	events := watcher.Watch(ctx, jobID)

	time.Sleep(15 * time.Millisecond)
	cancel()

	got := collect(t, events)
	for _, ev := range got {
		assert.NotEqual(t, EventComplete, ev.Type)
	}
}
