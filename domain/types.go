// Package domain defines the entities persisted and manipulated by stepforge:
// Workflow, Run, Step, StepResult, and the demo BusinessObject. These are the
// concrete (non-generic) rows described in the workflow engine's data model;
// every other package imports domain rather than redefining these shapes.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus is the lifecycle state of a Run. Transitions move monotonically
// away from PENDING; COMPLETED and FAILED are terminal.
type RunStatus string

const (
	RunPending   RunStatus = "PENDING"
	RunRunning   RunStatus = "RUNNING"
	RunCompleted RunStatus = "COMPLETED"
	RunFailed    RunStatus = "FAILED"
)

// StepStatus is the lifecycle state of a Step within a Run.
type StepStatus string

const (
	StepPending   StepStatus = "PENDING"
	StepRunning   StepStatus = "RUNNING"
	StepCompleted StepStatus = "COMPLETED"
	StepFailed    StepStatus = "FAILED"
)

// BusinessObjectStatus is the lifecycle state of the order demo object.
type BusinessObjectStatus string

const (
	BusinessObjectPending   BusinessObjectStatus = "PENDING"
	BusinessObjectValidated BusinessObjectStatus = "VALIDATED"
	BusinessObjectCharged   BusinessObjectStatus = "CHARGED"
	BusinessObjectShipped   BusinessObjectStatus = "SHIPPED"
)

// Workflow is an immutable named DAG definition. Definition holds canonical
// JSON re-marshaled from the parsed definition with defaults filled in,
// whether the caller supplied JSON or YAML; the caller's original bytes are
// not kept.
type Workflow struct {
	ID         uuid.UUID
	Name       string
	Definition []byte
	CreatedAt  time.Time
}

// Run is one execution instance of a Workflow.
type Run struct {
	ID               uuid.UUID
	WorkflowID       uuid.UUID
	Status           RunStatus
	StartedAt        *time.Time
	CompletedAt      *time.Time
	CreatedAt        time.Time
	BusinessObjectID *uuid.UUID
}

// Step is one node of a Run's execution plan, pre-ordered by the topological
// planner at run-creation time. StepIndex is contiguous within a Run,
// starting at 0, and is a valid topological linearization of the workflow's
// depends_on graph.
type Step struct {
	ID               uuid.UUID
	RunID            uuid.UUID
	StepID           string // caller-chosen id from the workflow definition, unique within the run
	StepIndex        int
	Type             string
	Action           string // registered action name, empty if none
	DurationSeconds  float64
	FailProbability  float64
	Status           StepStatus
	IdempotencyKey   *string
	RetryCount       int
	MaxRetries       int
	StartedAt        *time.Time
	CompletedAt      *time.Time
	ErrorMessage     *string
	CreatedAt        time.Time
}

// StepResult is the append-only, idempotency-keyed record of a successful
// step attempt. At most one StepResult exists per idempotency key.
type StepResult struct {
	IdempotencyKey string
	StepID         uuid.UUID
	ResultData     []byte
	CreatedAt      time.Time
}

// BusinessObject is the order demo entity mutated by registered actions.
type BusinessObject struct {
	ID        uuid.UUID
	Status    BusinessObjectStatus
	Amount    float64
	CreatedAt time.Time
	UpdatedAt time.Time
}
