package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"stepforge/clock"
	"stepforge/domain"
	"stepforge/store"
)

// RunWorker executes one Run end-to-end: set it RUNNING, drive each planned
// Step through StepExecutor in order, and record the terminal status. A
// worker never touches any Run or Step other than its own.
type RunWorker struct {
	store    store.Store
	executor *StepExecutor
	metrics  *Metrics
}

// NewRunWorker builds a RunWorker.
func NewRunWorker(st store.Store, executor *StepExecutor, metrics *Metrics) *RunWorker {
	return &RunWorker{store: st, executor: executor, metrics: metrics}
}

// Run drives runID to a terminal status. It recovers from any panic inside
// the drive loop, marking the Run FAILED rather than letting a worker-
// internal bug leave the Run RUNNING forever (the spec's worker-internal
// error handling rule).
func (w *RunWorker) Run(ctx context.Context, runID uuid.UUID) {
	w.metrics.incRunsInflight()
	defer w.metrics.decRunsInflight()

	defer func() {
		if r := recover(); r != nil {
			now := clock.RealClock{}.Now()
			_ = w.store.SetRunStatus(context.Background(), runID, domain.RunFailed, nil, &now)
		}
	}()

	if err := w.drive(ctx, runID); err != nil {
		now := clock.RealClock{}.Now()
		_ = w.store.SetRunStatus(context.Background(), runID, domain.RunFailed, nil, &now)
	}
}

func (w *RunWorker) drive(ctx context.Context, runID uuid.UUID) error {
	run, err := w.store.GetRun(ctx, runID)
	if err != nil {
		return fmt.Errorf("load run: %w", err)
	}

	now := clock.RealClock{}.Now()
	if err := w.store.SetRunStatus(ctx, run.ID, domain.RunRunning, &now, nil); err != nil {
		return fmt.Errorf("mark run running: %w", err)
	}

	wf, err := w.store.GetWorkflow(ctx, run.WorkflowID)
	if err != nil {
		return fmt.Errorf("load workflow: %w", err)
	}

	steps, err := w.store.GetSteps(ctx, run.ID)
	if err != nil {
		return fmt.Errorf("load steps: %w", err)
	}

	rng := clock.NewRand(run.ID)
	allComplete := true
	for _, step := range steps {
		if step.Status == domain.StepCompleted {
			continue
		}

		for {
			outcome, err := w.executor.Execute(ctx, wf.Name, run, step, rng)
			if err != nil {
				return fmt.Errorf("execute step %q: %w", step.StepID, err)
			}
			if outcome == Retry {
				refreshed, err := w.store.GetSteps(ctx, run.ID)
				if err != nil {
					return fmt.Errorf("reload steps after retry: %w", err)
				}
				for _, s := range refreshed {
					if s.ID == step.ID {
						step = s
						break
					}
				}
				continue
			}
			if outcome == PermanentFailure {
				allComplete = false
			}
			break
		}
		if !allComplete {
			break
		}
	}

	completedAt := clock.RealClock{}.Now()
	finalStatus := domain.RunCompleted
	if !allComplete {
		finalStatus = domain.RunFailed
	}
	if err := w.store.SetRunStatus(ctx, run.ID, finalStatus, nil, &completedAt); err != nil {
		return fmt.Errorf("set terminal run status: %w", err)
	}
	w.metrics.incRunOutcome(wf.Name, string(finalStatus))
	return nil
}
