// Package api implements exactly the operations the core exposes to a
// hosting surface: workflow registration, run lifecycle, and the demo
// BusinessObject CRUD. It is the one package allowed to see both
// planner/store (persistence + validation) and engine (execution), and is
// what cmd/stepforge and any future HTTP layer would sit on top of.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"stepforge/domain"
	"stepforge/engine"
	"stepforge/planner"
	"stepforge/store"
	"stepforge/workflowdef"
)

// RunSnapshot is a read-only view of a Run and its Steps, the shape
// GetRun returns to callers (ListRuns returns bare domain.Run values).
type RunSnapshot struct {
	Run   domain.Run
	Steps []domain.Step
}

// Service implements the core's external operation surface over a Store and
// a Supervisor. All methods are safe for concurrent use.
type Service struct {
	store      store.Store
	supervisor *engine.Supervisor
}

// NewService builds a Service. st and sup must already be wired together
// (sup's RunWorker must read and write through st) by the caller.
func NewService(st store.Store, sup *engine.Supervisor) *Service {
	return &Service{store: st, supervisor: sup}
}

// CreateWorkflow validates def via the topological planner and persists it
// as canonical JSON re-marshaled from def with defaults applied. No Run is
// created.
func (s *Service) CreateWorkflow(ctx context.Context, name string, def workflowdef.Definition) (uuid.UUID, error) {
	def.Name = name
	def.ApplyDefaults()

	if _, err := planner.Plan(def); err != nil {
		return uuid.Nil, err
	}

	canonical, err := json.Marshal(def)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal workflow definition: %w", err)
	}

	wf := domain.Workflow{
		ID:         uuid.New(),
		Name:       name,
		Definition: canonical,
		CreatedAt:  time.Now(),
	}
	if err := s.store.CreateWorkflow(ctx, wf); err != nil {
		return uuid.Nil, fmt.Errorf("create workflow: %w", err)
	}
	return wf.ID, nil
}

// StartRun re-validates the stored workflow (it was already validated at
// create_workflow time, but re-planning here is what turns depends_on into
// the Step sequence the worker walks), persists the Run and its pre-ordered
// Steps, submits the Run to the Supervisor, and returns immediately.
func (s *Service) StartRun(ctx context.Context, workflowID uuid.UUID, businessObjectID *uuid.UUID) (uuid.UUID, error) {
	wf, err := s.store.GetWorkflow(ctx, workflowID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("load workflow: %w", err)
	}

	var def workflowdef.Definition
	if err := json.Unmarshal(wf.Definition, &def); err != nil {
		return uuid.Nil, fmt.Errorf("decode stored workflow definition: %w", err)
	}

	planned, err := planner.Plan(def)
	if err != nil {
		return uuid.Nil, err
	}

	run := domain.Run{
		ID:               uuid.New(),
		WorkflowID:       wf.ID,
		Status:           domain.RunPending,
		CreatedAt:        time.Now(),
		BusinessObjectID: businessObjectID,
	}

	steps := make([]domain.Step, len(planned))
	for i, p := range planned {
		steps[i] = domain.Step{
			ID:              uuid.New(),
			RunID:           run.ID,
			StepID:          p.ID,
			StepIndex:       p.Index,
			Type:            p.Type,
			Action:          p.Config.Action,
			DurationSeconds: p.Config.Duration(),
			FailProbability: p.Config.FailProbability,
			Status:          domain.StepPending,
			MaxRetries:      p.Config.MaxRetries,
			CreatedAt:       time.Now(),
		}
	}

	if err := s.store.CreateRun(ctx, run, steps); err != nil {
		return uuid.Nil, fmt.Errorf("create run: %w", err)
	}

	s.supervisor.Submit(ctx, run.ID)
	return run.ID, nil
}

// GetRun returns a read-only snapshot of runID and its Steps.
func (s *Service) GetRun(ctx context.Context, runID uuid.UUID) (RunSnapshot, error) {
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return RunSnapshot{}, fmt.Errorf("load run: %w", err)
	}
	steps, err := s.store.GetSteps(ctx, runID)
	if err != nil {
		return RunSnapshot{}, fmt.Errorf("load steps: %w", err)
	}
	return RunSnapshot{Run: run, Steps: steps}, nil
}

// ListRuns returns every Run, without Steps (callers fetch those with
// GetRun when they need them).
func (s *Service) ListRuns(ctx context.Context) ([]domain.Run, error) {
	runs, err := s.store.ListRuns(ctx)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// ListWorkflows returns every registered Workflow.
func (s *Service) ListWorkflows(ctx context.Context) ([]domain.Workflow, error) {
	wfs, err := s.store.ListWorkflows(ctx)
	if err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}
	return wfs, nil
}

// GetWorkflow returns one registered Workflow by id.
func (s *Service) GetWorkflow(ctx context.Context, workflowID uuid.UUID) (domain.Workflow, error) {
	wf, err := s.store.GetWorkflow(ctx, workflowID)
	if err != nil {
		return domain.Workflow{}, fmt.Errorf("load workflow: %w", err)
	}
	return wf, nil
}

// CreateBusinessObject creates the demo order entity in PENDING status.
func (s *Service) CreateBusinessObject(ctx context.Context, amount float64) (uuid.UUID, error) {
	now := time.Now()
	obj := domain.BusinessObject{
		ID:        uuid.New(),
		Status:    domain.BusinessObjectPending,
		Amount:    amount,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateBusinessObject(ctx, obj); err != nil {
		return uuid.Nil, fmt.Errorf("create business object: %w", err)
	}
	return obj.ID, nil
}

// GetBusinessObject returns one BusinessObject by id.
func (s *Service) GetBusinessObject(ctx context.Context, id uuid.UUID) (domain.BusinessObject, error) {
	obj, err := s.store.GetBusinessObject(ctx, id)
	if err != nil {
		return domain.BusinessObject{}, fmt.Errorf("load business object: %w", err)
	}
	return obj, nil
}
