// Package store defines the persistence contract for stepforge's workflow
// engine and provides two production-grade implementations (SQLite, MySQL)
// plus an in-memory one for tests. All three satisfy identical transactional
// semantics so the engine itself is storage-agnostic.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"stepforge/domain"
)

// ErrNotFound is returned when a requested workflow, run, step, or business
// object does not exist.
var ErrNotFound = errors.New("not found")

// BusinessObjectTx scopes a registered action's access to exactly the
// business object referenced by the Run it runs under, within the same
// database transaction as the step's completion write. Actions must not
// reach outside this handle for persistence.
type BusinessObjectTx interface {
	// Get loads the current row. Returns ErrNotFound if it does not exist.
	Get(ctx context.Context) (domain.BusinessObject, error)
	// Update persists a mutated copy of the row within the enclosing
	// transaction; UpdatedAt is stamped by the store.
	Update(ctx context.Context, obj domain.BusinessObject) error
}

// ActionFunc is a registered action's implementation, invoked inside the
// same atomic commit as step completion (spec step 4.2 Write B, sub-step
// c). A non-nil error aborts the whole transaction, and the step attempt
// is treated as a failed attempt for retry accounting.
type ActionFunc func(ctx context.Context, tx BusinessObjectTx) error

// Store is the durability layer the engine depends on. Every write method
// that says "atomically" commits all of its effects in a single
// transaction or none of them.
type Store interface {
	CreateWorkflow(ctx context.Context, wf domain.Workflow) error
	GetWorkflow(ctx context.Context, id uuid.UUID) (domain.Workflow, error)
	ListWorkflows(ctx context.Context) ([]domain.Workflow, error)

	// CreateRun persists a Run and its pre-ordered Steps atomically.
	CreateRun(ctx context.Context, run domain.Run, steps []domain.Step) error
	GetRun(ctx context.Context, id uuid.UUID) (domain.Run, error)
	ListRuns(ctx context.Context) ([]domain.Run, error)
	// ListRunningRuns returns every Run with status RUNNING, the set
	// Recovery resubmits to the Supervisor on startup.
	ListRunningRuns(ctx context.Context) ([]domain.Run, error)
	// GetSteps returns a Run's Steps ordered by step_index ascending.
	GetSteps(ctx context.Context, runID uuid.UUID) ([]domain.Step, error)
	// SetRunStatus updates a Run's status and optional timestamps.
	SetRunStatus(ctx context.Context, runID uuid.UUID, status domain.RunStatus, startedAt, completedAt *time.Time) error

	// BeginStepAttempt is Write A: issue a fresh idempotency key, set
	// status=RUNNING, set started_at if null, commit.
	BeginStepAttempt(ctx context.Context, stepID uuid.UUID, idempotencyKey string, now time.Time) error
	// FindStepResult probes for a StepResult by idempotency key. A nil,
	// nil return means no such result exists yet.
	FindStepResult(ctx context.Context, idempotencyKey string) (*domain.StepResult, error)
	// CompleteFromExistingResult marks a Step COMPLETED without invoking
	// TaskRunner or an action, used only when FindStepResult's probe hits
	// (see spec step 4.2.2).
	CompleteFromExistingResult(ctx context.Context, stepID uuid.UUID, now time.Time) error
	// CommitStepSuccess is Write B: insert the StepResult, mark the Step
	// COMPLETED, and (if action is non-nil) invoke it against the Run's
	// business object -- all in one transaction. If action returns an
	// error, the entire transaction rolls back and CommitStepSuccess
	// returns that error.
	CommitStepSuccess(ctx context.Context, stepID uuid.UUID, idempotencyKey string, resultData []byte, businessObjectID *uuid.UUID, action ActionFunc, now time.Time) error
	// RetryStep increments retry_count, clears the idempotency key, sets
	// status=PENDING, and records error_message.
	RetryStep(ctx context.Context, stepID uuid.UUID, errMsg string, now time.Time) error
	// FailStep sets status=FAILED, records error_message and completed_at.
	FailStep(ctx context.Context, stepID uuid.UUID, errMsg string, now time.Time) error

	CreateBusinessObject(ctx context.Context, obj domain.BusinessObject) error
	GetBusinessObject(ctx context.Context, id uuid.UUID) (domain.BusinessObject, error)

	Close() error
}
