package engine

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"stepforge/actions"
	"stepforge/clock"
	"stepforge/domain"
	"stepforge/store"
)

func newWorkerFixture(t *testing.T, steps []domain.Step) (*store.MemStore, domain.Run) {
	t.Helper()
	ctx := context.Background()
	s := store.NewMemStore()

	wf := domain.Workflow{ID: uuid.New(), Name: "wf", Definition: []byte(`{}`), CreatedAt: time.Now()}
	if err := s.CreateWorkflow(ctx, wf); err != nil {
		t.Fatalf("CreateWorkflow() error = %v", err)
	}
	run := domain.Run{ID: uuid.New(), WorkflowID: wf.ID, Status: domain.RunPending, CreatedAt: time.Now()}
	for i := range steps {
		steps[i].RunID = run.ID
		steps[i].StepIndex = i
	}
	if err := s.CreateRun(ctx, run, steps); err != nil {
		t.Fatalf("CreateRun() error = %v", err)
	}
	return s, run
}

func TestRunWorker_AllStepsSucceed(t *testing.T) {
	steps := []domain.Step{
		{ID: uuid.New(), StepID: "a", Type: "task", Status: domain.StepPending, CreatedAt: time.Now()},
		{ID: uuid.New(), StepID: "b", Type: "task", Status: domain.StepPending, CreatedAt: time.Now()},
	}
	s, run := newWorkerFixture(t, steps)
	defer func() { _ = s.Close() }()

	ex := NewStepExecutor(s, actions.NewRegistry(), clock.RealClock{}, nil, nil)
	w := NewRunWorker(s, ex, nil)
	w.Run(context.Background(), run.ID)

	got, err := s.GetRun(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if got.Status != domain.RunCompleted {
		t.Fatalf("run status = %v, want COMPLETED", got.Status)
	}
	if got.CompletedAt == nil {
		t.Error("CompletedAt not set")
	}

	finalSteps, err := s.GetSteps(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("GetSteps() error = %v", err)
	}
	for _, step := range finalSteps {
		if step.Status != domain.StepCompleted {
			t.Errorf("step %s status = %v, want COMPLETED", step.StepID, step.Status)
		}
	}
}

func TestRunWorker_PermanentStepFailureFailsRun(t *testing.T) {
	steps := []domain.Step{
		{ID: uuid.New(), StepID: "a", Type: "task", Status: domain.StepPending, CreatedAt: time.Now()},
		{
			ID: uuid.New(), StepID: "b", Type: "task", Status: domain.StepPending,
			FailProbability: 1.0, MaxRetries: 0, CreatedAt: time.Now(),
		},
		{ID: uuid.New(), StepID: "c", Type: "task", Status: domain.StepPending, CreatedAt: time.Now()},
	}
	s, run := newWorkerFixture(t, steps)
	defer func() { _ = s.Close() }()

	ex := NewStepExecutor(s, actions.NewRegistry(), clock.RealClock{}, nil, nil)
	w := NewRunWorker(s, ex, nil)
	w.Run(context.Background(), run.ID)

	got, err := s.GetRun(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if got.Status != domain.RunFailed {
		t.Fatalf("run status = %v, want FAILED", got.Status)
	}

	finalSteps, err := s.GetSteps(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("GetSteps() error = %v", err)
	}
	if finalSteps[0].Status != domain.StepCompleted {
		t.Errorf("step a status = %v, want COMPLETED", finalSteps[0].Status)
	}
	if finalSteps[1].Status != domain.StepFailed {
		t.Errorf("step b status = %v, want FAILED", finalSteps[1].Status)
	}
	if finalSteps[2].Status != domain.StepPending {
		t.Errorf("step c status = %v, want PENDING (never reached)", finalSteps[2].Status)
	}
}

func TestRunWorker_ResumesPastAlreadyCompletedSteps(t *testing.T) {
	steps := []domain.Step{
		{ID: uuid.New(), StepID: "a", Type: "task", Status: domain.StepPending, CreatedAt: time.Now()},
		{ID: uuid.New(), StepID: "b", Type: "task", Status: domain.StepPending, CreatedAt: time.Now()},
	}
	s, run := newWorkerFixture(t, steps)
	defer func() { _ = s.Close() }()
	ctx := context.Background()

	// Simulate a crash after step "a" committed but before the run was
	// re-submitted: mark it COMPLETED directly, as a recovered attempt would
	// have left it.
	if err := s.BeginStepAttempt(ctx, steps[0].ID, "pre-existing", time.Now()); err != nil {
		t.Fatalf("BeginStepAttempt() error = %v", err)
	}
	if err := s.CommitStepSuccess(ctx, steps[0].ID, "pre-existing", nil, nil, nil, time.Now()); err != nil {
		t.Fatalf("CommitStepSuccess() error = %v", err)
	}

	ex := NewStepExecutor(s, actions.NewRegistry(), clock.RealClock{}, nil, nil)
	w := NewRunWorker(s, ex, nil)
	w.Run(ctx, run.ID)

	got, err := s.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if got.Status != domain.RunCompleted {
		t.Fatalf("run status = %v, want COMPLETED", got.Status)
	}
}
