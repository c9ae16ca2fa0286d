package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"stepforge/domain"
)

// MemStore is an in-memory implementation of Store.
//
// Designed for:
//   - Unit and integration tests that exercise the engine without a real
//     database
//   - Short-lived demos where persistence isn't required
//
// MemStore is thread-safe: every method holds the store's single mutex for
// its duration, which gives the same serialized-transaction semantics the
// SQL stores get from SetMaxOpenConns(1) / row locks, just coarser.
//
// Data is lost when the process exits; MemStore is not a substitute for
// SQLiteStore or MySQLStore in production.
type MemStore struct {
	mu sync.Mutex

	workflows       map[uuid.UUID]domain.Workflow
	workflowOrder   []uuid.UUID
	runs            map[uuid.UUID]domain.Run
	runOrder        []uuid.UUID
	steps           map[uuid.UUID][]domain.Step // runID -> steps ordered by index
	stepByID        map[uuid.UUID]*domain.Step
	stepResults     map[string]domain.StepResult
	businessObjects map[uuid.UUID]domain.BusinessObject
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		workflows:       make(map[uuid.UUID]domain.Workflow),
		runs:            make(map[uuid.UUID]domain.Run),
		steps:           make(map[uuid.UUID][]domain.Step),
		stepByID:        make(map[uuid.UUID]*domain.Step),
		stepResults:     make(map[string]domain.StepResult),
		businessObjects: make(map[uuid.UUID]domain.BusinessObject),
	}
}

// Close is a no-op; MemStore owns no external resource.
func (m *MemStore) Close() error { return nil }

func (m *MemStore) CreateWorkflow(_ context.Context, wf domain.Workflow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.workflows[wf.ID] = wf
	m.workflowOrder = append(m.workflowOrder, wf.ID)
	return nil
}

func (m *MemStore) GetWorkflow(_ context.Context, id uuid.UUID) (domain.Workflow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wf, ok := m.workflows[id]
	if !ok {
		return domain.Workflow{}, ErrNotFound
	}
	return wf, nil
}

func (m *MemStore) ListWorkflows(_ context.Context) ([]domain.Workflow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Workflow, 0, len(m.workflowOrder))
	for _, id := range m.workflowOrder {
		out = append(out, m.workflows[id])
	}
	return out, nil
}

func (m *MemStore) CreateRun(_ context.Context, run domain.Run, steps []domain.Step) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.runs[run.ID] = run
	m.runOrder = append(m.runOrder, run.ID)

	stored := make([]domain.Step, len(steps))
	copy(stored, steps)
	m.steps[run.ID] = stored
	for i := range m.steps[run.ID] {
		m.stepByID[m.steps[run.ID][i].ID] = &m.steps[run.ID][i]
	}
	return nil
}

func (m *MemStore) GetRun(_ context.Context, id uuid.UUID) (domain.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return domain.Run{}, ErrNotFound
	}
	return run, nil
}

func (m *MemStore) ListRuns(_ context.Context) ([]domain.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Run, 0, len(m.runOrder))
	for _, id := range m.runOrder {
		out = append(out, m.runs[id])
	}
	return out, nil
}

func (m *MemStore) ListRunningRuns(_ context.Context) ([]domain.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Run
	for _, id := range m.runOrder {
		if run := m.runs[id]; run.Status == domain.RunRunning {
			out = append(out, run)
		}
	}
	return out, nil
}

func (m *MemStore) GetSteps(_ context.Context, runID uuid.UUID) ([]domain.Step, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	steps, ok := m.steps[runID]
	if !ok {
		return nil, nil
	}
	out := make([]domain.Step, len(steps))
	copy(out, steps)
	return out, nil
}

func (m *MemStore) SetRunStatus(_ context.Context, runID uuid.UUID, status domain.RunStatus, startedAt, completedAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[runID]
	if !ok {
		return ErrNotFound
	}
	run.Status = status
	if run.StartedAt == nil {
		run.StartedAt = startedAt
	}
	if completedAt != nil {
		run.CompletedAt = completedAt
	}
	m.runs[runID] = run
	return nil
}

func (m *MemStore) BeginStepAttempt(_ context.Context, stepID uuid.UUID, idempotencyKey string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	step, ok := m.stepByID[stepID]
	if !ok {
		return ErrNotFound
	}
	key := idempotencyKey
	step.IdempotencyKey = &key
	step.Status = domain.StepRunning
	if step.StartedAt == nil {
		startedAt := now
		step.StartedAt = &startedAt
	}
	return nil
}

func (m *MemStore) FindStepResult(_ context.Context, idempotencyKey string) (*domain.StepResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res, ok := m.stepResults[idempotencyKey]
	if !ok {
		return nil, nil
	}
	copied := res
	return &copied, nil
}

func (m *MemStore) CompleteFromExistingResult(_ context.Context, stepID uuid.UUID, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	step, ok := m.stepByID[stepID]
	if !ok {
		return ErrNotFound
	}
	step.Status = domain.StepCompleted
	completedAt := now
	step.CompletedAt = &completedAt
	return nil
}

func (m *MemStore) CommitStepSuccess(_ context.Context, stepID uuid.UUID, idempotencyKey string, resultData []byte, businessObjectID *uuid.UUID, action ActionFunc, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	step, ok := m.stepByID[stepID]
	if !ok {
		return ErrNotFound
	}

	if action != nil && businessObjectID != nil {
		before, existed := m.businessObjects[*businessObjectID]
		actionTx := &memBusinessObjectTx{store: m, id: *businessObjectID, now: now}
		if err := action(context.Background(), actionTx); err != nil {
			// Undo any Update the action made before failing.
			if existed {
				m.businessObjects[*businessObjectID] = before
			} else {
				delete(m.businessObjects, *businessObjectID)
			}
			return err
		}
	}

	m.stepResults[idempotencyKey] = domain.StepResult{
		IdempotencyKey: idempotencyKey,
		StepID:         stepID,
		ResultData:     resultData,
		CreatedAt:      now,
	}
	step.Status = domain.StepCompleted
	completedAt := now
	step.CompletedAt = &completedAt
	return nil
}

func (m *MemStore) RetryStep(_ context.Context, stepID uuid.UUID, errMsg string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	step, ok := m.stepByID[stepID]
	if !ok {
		return ErrNotFound
	}
	step.Status = domain.StepPending
	step.IdempotencyKey = nil
	step.RetryCount++
	msg := errMsg
	step.ErrorMessage = &msg
	return nil
}

func (m *MemStore) FailStep(_ context.Context, stepID uuid.UUID, errMsg string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	step, ok := m.stepByID[stepID]
	if !ok {
		return ErrNotFound
	}
	step.Status = domain.StepFailed
	msg := errMsg
	step.ErrorMessage = &msg
	completedAt := now
	step.CompletedAt = &completedAt
	return nil
}

func (m *MemStore) CreateBusinessObject(_ context.Context, obj domain.BusinessObject) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.businessObjects[obj.ID] = obj
	return nil
}

func (m *MemStore) GetBusinessObject(_ context.Context, id uuid.UUID) (domain.BusinessObject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.businessObjects[id]
	if !ok {
		return domain.BusinessObject{}, ErrNotFound
	}
	return obj, nil
}

// memBusinessObjectTx scopes a registered action to one business object
// while the store's single mutex is already held by CommitStepSuccess,
// giving it the same atomicity the SQL stores get from *sql.Tx.
type memBusinessObjectTx struct {
	store *MemStore
	id    uuid.UUID
	now   time.Time
}

func (a *memBusinessObjectTx) Get(_ context.Context) (domain.BusinessObject, error) {
	obj, ok := a.store.businessObjects[a.id]
	if !ok {
		return domain.BusinessObject{}, ErrNotFound
	}
	return obj, nil
}

func (a *memBusinessObjectTx) Update(_ context.Context, obj domain.BusinessObject) error {
	obj.UpdatedAt = a.now
	a.store.businessObjects[a.id] = obj
	return nil
}
