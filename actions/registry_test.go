package actions

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"stepforge/domain"
	"stepforge/store"
)

// fakeTx is a minimal BusinessObjectTx backed by a single in-memory object,
// enough to exercise action preconditions without a real Store.
type fakeTx struct {
	obj domain.BusinessObject
}

func (f *fakeTx) Get(context.Context) (domain.BusinessObject, error) { return f.obj, nil }
func (f *fakeTx) Update(_ context.Context, obj domain.BusinessObject) error {
	f.obj = obj
	return nil
}

func newObject(status domain.BusinessObjectStatus, amount float64) *fakeTx {
	return &fakeTx{obj: domain.BusinessObject{
		ID: uuid.New(), Status: status, Amount: amount,
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}}
}

func TestRegistry_Lookup(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"validate_order", "charge_payment", "ship_order", "send_notification"} {
		if _, ok := r.Lookup(name); !ok {
			t.Errorf("Lookup(%q) not found", name)
		}
	}
	if _, ok := r.Lookup("unknown_action"); ok {
		t.Error("Lookup(\"unknown_action\") found, want not registered")
	}
}

func TestValidateOrder(t *testing.T) {
	tests := []struct {
		name    string
		amount  float64
		wantErr bool
	}{
		{"positive amount succeeds", 10, false},
		{"zero amount rejected", 0, true},
		{"negative amount rejected", -5, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := newObject(domain.BusinessObjectPending, tt.amount)
			err := validateOrder(context.Background(), tx)
			if (err != nil) != tt.wantErr {
				t.Fatalf("validateOrder() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && tx.obj.Status != domain.BusinessObjectValidated {
				t.Errorf("status = %v, want VALIDATED", tx.obj.Status)
			}
		})
	}
}

func TestChargePayment_RequiresValidated(t *testing.T) {
	tx := newObject(domain.BusinessObjectPending, 10)
	if err := chargePayment(context.Background(), tx); err == nil {
		t.Fatal("chargePayment() on PENDING object succeeded, want error")
	}

	tx = newObject(domain.BusinessObjectValidated, 10)
	if err := chargePayment(context.Background(), tx); err != nil {
		t.Fatalf("chargePayment() error = %v", err)
	}
	if tx.obj.Status != domain.BusinessObjectCharged {
		t.Errorf("status = %v, want CHARGED", tx.obj.Status)
	}
}

func TestShipOrder_RequiresCharged(t *testing.T) {
	tx := newObject(domain.BusinessObjectValidated, 10)
	if err := shipOrder(context.Background(), tx); err == nil {
		t.Fatal("shipOrder() on VALIDATED object succeeded, want error")
	}

	tx = newObject(domain.BusinessObjectCharged, 10)
	if err := shipOrder(context.Background(), tx); err != nil {
		t.Fatalf("shipOrder() error = %v", err)
	}
	if tx.obj.Status != domain.BusinessObjectShipped {
		t.Errorf("status = %v, want SHIPPED", tx.obj.Status)
	}
}

func TestSendNotification_NoTransition(t *testing.T) {
	tx := newObject(domain.BusinessObjectCharged, 10)
	if err := sendNotification(context.Background(), tx); err != nil {
		t.Fatalf("sendNotification() error = %v", err)
	}
	if tx.obj.Status != domain.BusinessObjectCharged {
		t.Errorf("status changed to %v, want unchanged CHARGED", tx.obj.Status)
	}
}

// TestRegistry_FullOrderLifecycle exercises the demo order's happy path end
// to end against the real in-memory store: each action is dispatched the
// same way the engine dispatches it, inside CommitStepSuccess, and its
// mutation must be visible to the next action in the chain.
func TestRegistry_FullOrderLifecycle(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemStore()
	defer func() { _ = s.Close() }()

	wf := domain.Workflow{ID: uuid.New(), Name: "order", Definition: []byte(`{}`), CreatedAt: time.Now()}
	if err := s.CreateWorkflow(ctx, wf); err != nil {
		t.Fatalf("CreateWorkflow() error = %v", err)
	}

	obj := domain.BusinessObject{ID: uuid.New(), Status: domain.BusinessObjectPending, Amount: 42, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	if err := s.CreateBusinessObject(ctx, obj); err != nil {
		t.Fatalf("CreateBusinessObject() error = %v", err)
	}

	run := domain.Run{ID: uuid.New(), WorkflowID: wf.ID, Status: domain.RunRunning, BusinessObjectID: &obj.ID, CreatedAt: time.Now()}
	actionNames := []string{"validate_order", "charge_payment", "ship_order"}
	steps := make([]domain.Step, len(actionNames))
	for i, name := range actionNames {
		steps[i] = domain.Step{
			ID: uuid.New(), RunID: run.ID, StepID: name, StepIndex: i,
			Type: "task", Action: name, Status: domain.StepPending, CreatedAt: time.Now(),
		}
	}
	if err := s.CreateRun(ctx, run, steps); err != nil {
		t.Fatalf("CreateRun() error = %v", err)
	}

	r := NewRegistry()
	for i, step := range steps {
		fn, ok := r.Lookup(step.Action)
		if !ok {
			t.Fatalf("Lookup(%q) not found", step.Action)
		}
		key := step.ID.String()
		if err := s.BeginStepAttempt(ctx, step.ID, key, time.Now()); err != nil {
			t.Fatalf("BeginStepAttempt(%d) error = %v", i, err)
		}
		if err := s.CommitStepSuccess(ctx, step.ID, key, nil, run.BusinessObjectID, fn, time.Now()); err != nil {
			t.Fatalf("CommitStepSuccess(%s) error = %v", step.Action, err)
		}
	}

	got, err := s.GetBusinessObject(ctx, obj.ID)
	if err != nil {
		t.Fatalf("GetBusinessObject() error = %v", err)
	}
	if got.Status != domain.BusinessObjectShipped {
		t.Fatalf("final status = %v, want SHIPPED", got.Status)
	}
}
