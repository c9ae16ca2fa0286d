// Package engine drives Runs to completion: StepExecutor advances a single
// Step through its state machine, RunWorker drives a Run's Steps in order,
// Supervisor fans RunWorkers out across goroutines, and Recovery resubmits
// Runs left RUNNING by a crash.
package engine

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/google/uuid"

	"stepforge/actions"
	"stepforge/clock"
	"stepforge/domain"
	"stepforge/emit"
	"stepforge/store"
	"stepforge/taskrunner"
)

// Outcome is what one StepExecutor invocation decided for the step it drove.
type Outcome int

const (
	// Success means the step reached COMPLETED.
	Success Outcome = iota
	// Retry means the step returned to PENDING with its retry_count
	// incremented; the caller (RunWorker) must invoke StepExecutor again.
	Retry
	// PermanentFailure means the step reached FAILED with no retries left.
	PermanentFailure
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Retry:
		return "retry"
	case PermanentFailure:
		return "permanent_failure"
	default:
		return "unknown"
	}
}

// StepExecutor drives one Step through exactly one attempt of its state
// machine: issue an idempotency key, probe for a result left by a crashed
// prior attempt, invoke the TaskRunner, and commit the outcome.
type StepExecutor struct {
	store    store.Store
	registry *actions.Registry
	clock    clock.Clock
	emitter  emit.Emitter
	metrics  *Metrics
}

// NewStepExecutor builds a StepExecutor. emitter and metrics may be nil.
func NewStepExecutor(st store.Store, registry *actions.Registry, c clock.Clock, emitter emit.Emitter, metrics *Metrics) *StepExecutor {
	if c == nil {
		c = clock.RealClock{}
	}
	return &StepExecutor{store: st, registry: registry, clock: c, emitter: emitter, metrics: metrics}
}

// Execute drives one attempt of step, returning the resulting Outcome. rng
// must be the run-scoped deterministic generator; workflowName labels
// metrics and trace events.
func (e *StepExecutor) Execute(ctx context.Context, workflowName string, run domain.Run, step domain.Step, rng *rand.Rand) (Outcome, error) {
	idempotencyKey := uuid.NewString()
	now := e.clock.Now()

	if err := e.store.BeginStepAttempt(ctx, step.ID, idempotencyKey, now); err != nil {
		return PermanentFailure, fmt.Errorf("begin step attempt: %w", err)
	}
	e.emit(run, step, "step_start", nil)

	if existing, err := e.store.FindStepResult(ctx, idempotencyKey); err != nil {
		return PermanentFailure, fmt.Errorf("probe step result: %w", err)
	} else if existing != nil {
		if err := e.store.CompleteFromExistingResult(ctx, step.ID, e.clock.Now()); err != nil {
			return PermanentFailure, fmt.Errorf("complete from existing result: %w", err)
		}
		e.emit(run, step, "step_complete", map[string]interface{}{"from_existing_result": true})
		return Success, nil
	}

	start := e.clock.Now()
	result, taskErr := taskrunner.Run(ctx, rng, taskrunner.Spec{
		DurationSeconds: step.DurationSeconds,
		FailProbability: step.FailProbability,
	})
	elapsed := e.clock.Now().Sub(start).Seconds()

	if result == taskrunner.Success && taskErr == nil {
		var action store.ActionFunc
		if step.Action != "" && e.registry != nil {
			if fn, ok := e.registry.Lookup(step.Action); ok {
				action = fn
			}
		}
		commitErr := e.store.CommitStepSuccess(ctx, step.ID, idempotencyKey, nil, run.BusinessObjectID, action, e.clock.Now())
		if commitErr == nil {
			e.metrics.observeStepDuration(workflowName, step.Type, "success", elapsed)
			e.emit(run, step, "step_complete", nil)
			return Success, nil
		}
		// Write B failed (including an action error): treat as a failed
		// attempt for retry accounting, per the dispatch rule in 4.2.4d.
		taskErr = commitErr
	}

	e.metrics.observeStepDuration(workflowName, step.Type, "fail", elapsed)
	errMsg := "step task failed"
	if taskErr != nil {
		errMsg = taskErr.Error()
	}

	if step.RetryCount < step.MaxRetries {
		if err := e.store.RetryStep(ctx, step.ID, errMsg, e.clock.Now()); err != nil {
			return PermanentFailure, fmt.Errorf("retry step: %w", err)
		}
		e.metrics.incStepRetry(workflowName, step.Type)
		e.emit(run, step, "step_retry", map[string]interface{}{"error": errMsg, "retry_count": step.RetryCount + 1})
		return Retry, nil
	}

	if err := e.store.FailStep(ctx, step.ID, errMsg, e.clock.Now()); err != nil {
		return PermanentFailure, fmt.Errorf("fail step: %w", err)
	}
	e.emit(run, step, "step_failed", map[string]interface{}{"error": errMsg})
	return PermanentFailure, nil
}

func (e *StepExecutor) emit(run domain.Run, step domain.Step, msg string, meta map[string]interface{}) {
	if e.emitter == nil {
		return
	}
	if meta == nil {
		meta = map[string]interface{}{}
	}
	if _, ok := meta["retry_count"]; !ok {
		meta["retry_count"] = step.RetryCount
	}
	e.emitter.Emit(emit.Event{
		RunID:  run.ID.String(),
		Step:   step.StepIndex,
		NodeID: step.StepID,
		Msg:    msg,
		Meta:   meta,
	})
}
