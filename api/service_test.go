package api

import (
	"context"
	"errors"
	"testing"

	"stepforge/actions"
	"stepforge/clock"
	"stepforge/domain"
	"stepforge/engine"
	"stepforge/planner"
	"stepforge/store"
	"stepforge/workflowdef"
)

func newTestService() *Service {
	s := store.NewMemStore()
	ex := engine.NewStepExecutor(s, actions.NewRegistry(), clock.RealClock{}, nil, nil)
	sup := engine.NewSupervisor(engine.NewRunWorker(s, ex, nil))
	return NewService(s, sup)
}

func chainDefinition() workflowdef.Definition {
	zeroDuration := 0.0
	zero := workflowdef.Config{DurationSeconds: &zeroDuration}
	return workflowdef.Definition{
		Steps: []workflowdef.Step{
			{ID: "a", Type: "task", Config: zero},
			{ID: "b", Type: "task", DependsOn: []string{"a"}, Config: zero},
			{ID: "c", Type: "task", DependsOn: []string{"a"}, Config: zero},
		},
	}
}

func TestService_CreateWorkflowAndStartRun(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	wfID, err := svc.CreateWorkflow(ctx, "chain", chainDefinition())
	if err != nil {
		t.Fatalf("CreateWorkflow() error = %v", err)
	}

	runID, err := svc.StartRun(ctx, wfID, nil)
	if err != nil {
		t.Fatalf("StartRun() error = %v", err)
	}

	svc.supervisor.Wait()

	snap, err := svc.GetRun(ctx, runID)
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if snap.Run.Status != domain.RunCompleted {
		t.Fatalf("run status = %v, want COMPLETED", snap.Run.Status)
	}
	if len(snap.Steps) != 3 {
		t.Fatalf("len(steps) = %d, want 3", len(snap.Steps))
	}
	if snap.Steps[0].StepID != "a" {
		t.Errorf("steps[0] = %q, want %q", snap.Steps[0].StepID, "a")
	}
}

func TestService_CreateWorkflow_CycleRejected(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	def := workflowdef.Definition{
		Steps: []workflowdef.Step{
			{ID: "a", Type: "task", DependsOn: []string{"b"}},
			{ID: "b", Type: "task", DependsOn: []string{"a"}},
		},
	}
	_, err := svc.CreateWorkflow(ctx, "cycle", def)
	if !errors.Is(err, planner.ErrCycleDetected) {
		t.Fatalf("CreateWorkflow() error = %v, want ErrCycleDetected", err)
	}

	wfs, err := svc.ListWorkflows(ctx)
	if err != nil {
		t.Fatalf("ListWorkflows() error = %v", err)
	}
	if len(wfs) != 0 {
		t.Fatalf("ListWorkflows() len = %d, want 0 (nothing persisted on validation failure)", len(wfs))
	}
}

func TestService_BusinessObjectLifecycle(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	id, err := svc.CreateBusinessObject(ctx, 99.5)
	if err != nil {
		t.Fatalf("CreateBusinessObject() error = %v", err)
	}

	obj, err := svc.GetBusinessObject(ctx, id)
	if err != nil {
		t.Fatalf("GetBusinessObject() error = %v", err)
	}
	if obj.Status != domain.BusinessObjectPending {
		t.Errorf("status = %v, want PENDING", obj.Status)
	}
	if obj.Amount != 99.5 {
		t.Errorf("amount = %v, want 99.5", obj.Amount)
	}
}

func TestService_OrderWorkflowDrivesBusinessObjectToShipped(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	def := workflowdef.Definition{
		Steps: []workflowdef.Step{
			{ID: "validate", Type: "task", Config: workflowdef.Config{Action: "validate_order"}},
			{ID: "charge", Type: "task", DependsOn: []string{"validate"}, Config: workflowdef.Config{Action: "charge_payment"}},
			{ID: "ship", Type: "task", DependsOn: []string{"charge"}, Config: workflowdef.Config{Action: "ship_order"}},
		},
	}
	wfID, err := svc.CreateWorkflow(ctx, "order", def)
	if err != nil {
		t.Fatalf("CreateWorkflow() error = %v", err)
	}

	objID, err := svc.CreateBusinessObject(ctx, 50)
	if err != nil {
		t.Fatalf("CreateBusinessObject() error = %v", err)
	}

	runID, err := svc.StartRun(ctx, wfID, &objID)
	if err != nil {
		t.Fatalf("StartRun() error = %v", err)
	}
	svc.supervisor.Wait()

	snap, err := svc.GetRun(ctx, runID)
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if snap.Run.Status != domain.RunCompleted {
		t.Fatalf("run status = %v, want COMPLETED", snap.Run.Status)
	}

	obj, err := svc.GetBusinessObject(ctx, objID)
	if err != nil {
		t.Fatalf("GetBusinessObject() error = %v", err)
	}
	if obj.Status != domain.BusinessObjectShipped {
		t.Fatalf("business object status = %v, want SHIPPED", obj.Status)
	}
}
