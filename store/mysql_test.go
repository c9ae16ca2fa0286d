package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"stepforge/domain"
)

// getTestDSN returns the MySQL DSN for integration tests, read from
// TEST_MYSQL_DSN. Tests that need a live MySQL skip (not fail) when it is
// unset, so the suite runs without a database available.
func getTestDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("TEST_MYSQL_DSN")
	if dsn == "" {
		t.Log("MySQL tests skipped: set TEST_MYSQL_DSN to run, e.g. user:pass@tcp(localhost:3306)/stepforge_test")
	}
	return dsn
}

func TestMySQLStore_NewConnection(t *testing.T) {
	dsn := getTestDSN(t)
	if dsn == "" {
		t.Skip("TEST_MYSQL_DSN not set")
	}

	s, err := NewMySQLStore(dsn)
	if err != nil {
		t.Fatalf("NewMySQLStore() error = %v", err)
	}
	defer func() { _ = s.Close() }()
}

func TestMySQLStore_InvalidDSN(t *testing.T) {
	if _, err := NewMySQLStore("not-a-valid-dsn"); err == nil {
		t.Error("NewMySQLStore(invalid dsn) error = nil, want error")
	}
}

func TestMySQLStore_WorkflowAndBusinessObjectRoundTrip(t *testing.T) {
	dsn := getTestDSN(t)
	if dsn == "" {
		t.Skip("TEST_MYSQL_DSN not set")
	}

	ctx := context.Background()
	s, err := NewMySQLStore(dsn)
	if err != nil {
		t.Fatalf("NewMySQLStore() error = %v", err)
	}
	defer func() { _ = s.Close() }()

	wf := domain.Workflow{ID: uuid.New(), Name: "mysql-wf", Definition: []byte(`{}`), CreatedAt: time.Now()}
	if err := s.CreateWorkflow(ctx, wf); err != nil {
		t.Fatalf("CreateWorkflow() error = %v", err)
	}
	got, err := s.GetWorkflow(ctx, wf.ID)
	if err != nil {
		t.Fatalf("GetWorkflow() error = %v", err)
	}
	if got.Name != wf.Name {
		t.Errorf("GetWorkflow().Name = %q, want %q", got.Name, wf.Name)
	}

	obj := domain.BusinessObject{ID: uuid.New(), Status: domain.BusinessObjectPending, Amount: 77, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	if err := s.CreateBusinessObject(ctx, obj); err != nil {
		t.Fatalf("CreateBusinessObject() error = %v", err)
	}
	gotObj, err := s.GetBusinessObject(ctx, obj.ID)
	if err != nil {
		t.Fatalf("GetBusinessObject() error = %v", err)
	}
	if gotObj.Amount != obj.Amount {
		t.Errorf("GetBusinessObject().Amount = %v, want %v", gotObj.Amount, obj.Amount)
	}
}

// TestMySQLStore_CommitStepSuccess_LocksBusinessObjectRow documents and
// exercises the row-locking behavior that lets two Runs sharing one
// BusinessObject serialize on it instead of racing a lost update: the
// action reads through SELECT ... FOR UPDATE inside the same transaction
// that then writes the step's completion, so a concurrent committer blocks
// until this one commits or rolls back.
func TestMySQLStore_CommitStepSuccess_LocksBusinessObjectRow(t *testing.T) {
	dsn := getTestDSN(t)
	if dsn == "" {
		t.Skip("TEST_MYSQL_DSN not set")
	}

	ctx := context.Background()
	s, err := NewMySQLStore(dsn)
	if err != nil {
		t.Fatalf("NewMySQLStore() error = %v", err)
	}
	defer func() { _ = s.Close() }()

	wf := domain.Workflow{ID: uuid.New(), Name: "wf", Definition: []byte(`{}`), CreatedAt: time.Now()}
	if err := s.CreateWorkflow(ctx, wf); err != nil {
		t.Fatalf("CreateWorkflow() error = %v", err)
	}
	obj := domain.BusinessObject{ID: uuid.New(), Status: domain.BusinessObjectPending, Amount: 5, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	if err := s.CreateBusinessObject(ctx, obj); err != nil {
		t.Fatalf("CreateBusinessObject() error = %v", err)
	}
	run := domain.Run{ID: uuid.New(), WorkflowID: wf.ID, Status: domain.RunRunning, CreatedAt: time.Now(), BusinessObjectID: &obj.ID}
	step := domain.Step{ID: uuid.New(), RunID: run.ID, StepID: "a", StepIndex: 0, Type: "task", Status: domain.StepPending, CreatedAt: time.Now()}
	if err := s.CreateRun(ctx, run, []domain.Step{step}); err != nil {
		t.Fatalf("CreateRun() error = %v", err)
	}

	now := time.Now()
	if err := s.BeginStepAttempt(ctx, step.ID, "key-1", now); err != nil {
		t.Fatalf("BeginStepAttempt() error = %v", err)
	}
	action := func(ctx context.Context, tx BusinessObjectTx) error {
		current, err := tx.Get(ctx)
		if err != nil {
			return err
		}
		current.Status = domain.BusinessObjectValidated
		return tx.Update(ctx, current)
	}
	if err := s.CommitStepSuccess(ctx, step.ID, "key-1", nil, &obj.ID, action, now); err != nil {
		t.Fatalf("CommitStepSuccess() error = %v", err)
	}

	gotObj, err := s.GetBusinessObject(ctx, obj.ID)
	if err != nil {
		t.Fatalf("GetBusinessObject() error = %v", err)
	}
	if gotObj.Status != domain.BusinessObjectValidated {
		t.Errorf("business object status = %v, want VALIDATED", gotObj.Status)
	}
}
