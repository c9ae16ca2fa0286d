package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"stepforge/domain"
)

// SQLiteStore is a SQLite implementation of Store.
//
// Designed for:
//   - Development and testing with zero setup
//   - Single-process deployments
//   - Prototyping before migrating to a distributed store
//
// SQLiteStore uses WAL mode and a single connection: SQLite supports one
// writer at a time, so concurrent RunWorkers serialize on this connection,
// matching the single-writer store policy of the concurrency model.
//
// Schema:
//   - workflows: immutable DAG definitions
//   - runs: one row per execution instance
//   - steps: one row per planned step of a run
//   - step_results: append-only, idempotency-keyed successful attempts
//   - business_objects: the order demo entity mutated by registered actions
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
	path   string
}

// NewSQLiteStore creates a new SQLite-backed store.
//
// The path parameter specifies the database file location:
//   - "./stepforge.db" - file in the current directory
//   - "/var/lib/stepforge/db.sqlite" - absolute path
//   - ":memory:" - in-memory database (data lost on close)
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite connection: %w", err)
	}

	db.SetMaxOpenConns(1)    // SQLite supports one writer at a time
	db.SetMaxIdleConns(1)    // keep the connection open
	db.SetConnMaxLifetime(0) // no max lifetime for SQLite

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	s := &SQLiteStore{db: db, path: path}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) createTables(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS workflows (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			definition TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			workflow_id TEXT NOT NULL REFERENCES workflows(id),
			status TEXT NOT NULL,
			started_at TIMESTAMP,
			completed_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL,
			business_object_id TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status)`,
		`CREATE TABLE IF NOT EXISTS steps (
			id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL REFERENCES runs(id),
			step_id TEXT NOT NULL,
			step_index INTEGER NOT NULL,
			type TEXT NOT NULL,
			action TEXT NOT NULL DEFAULT '',
			duration_seconds REAL NOT NULL,
			fail_probability REAL NOT NULL,
			status TEXT NOT NULL,
			idempotency_key TEXT,
			retry_count INTEGER NOT NULL DEFAULT 0,
			max_retries INTEGER NOT NULL DEFAULT 0,
			started_at TIMESTAMP,
			completed_at TIMESTAMP,
			error_message TEXT,
			created_at TIMESTAMP NOT NULL,
			UNIQUE(run_id, step_id),
			UNIQUE(run_id, step_index)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_steps_run_id ON steps(run_id)`,
		`CREATE TABLE IF NOT EXISTS step_results (
			idempotency_key TEXT PRIMARY KEY,
			step_id TEXT NOT NULL REFERENCES steps(id),
			result_data BLOB,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS business_objects (
			id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			amount REAL NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database connection. Calling Close multiple times is
// safe (subsequent calls are no-ops).
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *SQLiteStore) CreateWorkflow(ctx context.Context, wf domain.Workflow) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO workflows (id, name, definition, created_at) VALUES (?, ?, ?, ?)`,
		wf.ID.String(), wf.Name, string(wf.Definition), wf.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create workflow: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetWorkflow(ctx context.Context, id uuid.UUID) (domain.Workflow, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, definition, created_at FROM workflows WHERE id = ?`, id.String())
	return scanWorkflow(row)
}

func (s *SQLiteStore) ListWorkflows(ctx context.Context) ([]domain.Workflow, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, definition, created_at FROM workflows ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []domain.Workflow
	for rows.Next() {
		wf, err := scanWorkflow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, wf)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkflow(row rowScanner) (domain.Workflow, error) {
	var wf domain.Workflow
	var id, def string
	if err := row.Scan(&id, &wf.Name, &def, &wf.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return domain.Workflow{}, ErrNotFound
		}
		return domain.Workflow{}, fmt.Errorf("failed to scan workflow: %w", err)
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return domain.Workflow{}, fmt.Errorf("failed to parse workflow id: %w", err)
	}
	wf.ID = parsed
	wf.Definition = []byte(def)
	return wf, nil
}

func (s *SQLiteStore) CreateRun(ctx context.Context, run domain.Run, steps []domain.Step) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var bizID any
	if run.BusinessObjectID != nil {
		bizID = run.BusinessObjectID.String()
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, workflow_id, status, started_at, completed_at, created_at, business_object_id) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID.String(), run.WorkflowID.String(), string(run.Status), run.StartedAt, run.CompletedAt, run.CreatedAt, bizID,
	); err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for _, step := range steps {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO steps (id, run_id, step_id, step_index, type, action, duration_seconds, fail_probability, status, idempotency_key, retry_count, max_retries, started_at, completed_at, error_message, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			step.ID.String(), step.RunID.String(), step.StepID, step.StepIndex, step.Type, step.Action,
			step.DurationSeconds, step.FailProbability, string(step.Status), step.IdempotencyKey,
			step.RetryCount, step.MaxRetries, step.StartedAt, step.CompletedAt, step.ErrorMessage, step.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to insert step %q: %w", step.StepID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run creation: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetRun(ctx context.Context, id uuid.UUID) (domain.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, workflow_id, status, started_at, completed_at, created_at, business_object_id FROM runs WHERE id = ?`, id.String())
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context) ([]domain.Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, workflow_id, status, started_at, completed_at, created_at, business_object_id FROM runs ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanRuns(rows)
}

func (s *SQLiteStore) ListRunningRuns(ctx context.Context) ([]domain.Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, workflow_id, status, started_at, completed_at, created_at, business_object_id FROM runs WHERE status = ?`,
		string(domain.RunRunning))
	if err != nil {
		return nil, fmt.Errorf("failed to list running runs: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanRuns(rows)
}

func scanRuns(rows *sql.Rows) ([]domain.Run, error) {
	var out []domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func scanRun(row rowScanner) (domain.Run, error) {
	var run domain.Run
	var id, workflowID, status string
	var bizID sql.NullString
	if err := row.Scan(&id, &workflowID, &status, &run.StartedAt, &run.CompletedAt, &run.CreatedAt, &bizID); err != nil {
		if err == sql.ErrNoRows {
			return domain.Run{}, ErrNotFound
		}
		return domain.Run{}, fmt.Errorf("failed to scan run: %w", err)
	}
	parsedID, err := uuid.Parse(id)
	if err != nil {
		return domain.Run{}, fmt.Errorf("failed to parse run id: %w", err)
	}
	parsedWorkflowID, err := uuid.Parse(workflowID)
	if err != nil {
		return domain.Run{}, fmt.Errorf("failed to parse run workflow id: %w", err)
	}
	run.ID = parsedID
	run.WorkflowID = parsedWorkflowID
	run.Status = domain.RunStatus(status)
	if bizID.Valid {
		parsed, err := uuid.Parse(bizID.String)
		if err != nil {
			return domain.Run{}, fmt.Errorf("failed to parse run business object id: %w", err)
		}
		run.BusinessObjectID = &parsed
	}
	return run, nil
}

func (s *SQLiteStore) GetSteps(ctx context.Context, runID uuid.UUID) ([]domain.Step, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, step_id, step_index, type, action, duration_seconds, fail_probability, status, idempotency_key, retry_count, max_retries, started_at, completed_at, error_message, created_at
		 FROM steps WHERE run_id = ? ORDER BY step_index ASC`, runID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list steps: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []domain.Step
	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, step)
	}
	return out, rows.Err()
}

func scanStep(row rowScanner) (domain.Step, error) {
	var step domain.Step
	var id, runID, status string
	if err := row.Scan(&id, &runID, &step.StepID, &step.StepIndex, &step.Type, &step.Action,
		&step.DurationSeconds, &step.FailProbability, &status, &step.IdempotencyKey,
		&step.RetryCount, &step.MaxRetries, &step.StartedAt, &step.CompletedAt, &step.ErrorMessage, &step.CreatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return domain.Step{}, ErrNotFound
		}
		return domain.Step{}, fmt.Errorf("failed to scan step: %w", err)
	}
	parsedID, err := uuid.Parse(id)
	if err != nil {
		return domain.Step{}, fmt.Errorf("failed to parse step id: %w", err)
	}
	parsedRunID, err := uuid.Parse(runID)
	if err != nil {
		return domain.Step{}, fmt.Errorf("failed to parse step run id: %w", err)
	}
	step.ID = parsedID
	step.RunID = parsedRunID
	step.Status = domain.StepStatus(status)
	return step, nil
}

func (s *SQLiteStore) SetRunStatus(ctx context.Context, runID uuid.UUID, status domain.RunStatus, startedAt, completedAt *time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, started_at = COALESCE(started_at, ?), completed_at = COALESCE(?, completed_at) WHERE id = ?`,
		string(status), startedAt, completedAt, runID.String())
	if err != nil {
		return fmt.Errorf("failed to set run status: %w", err)
	}
	return nil
}

func (s *SQLiteStore) BeginStepAttempt(ctx context.Context, stepID uuid.UUID, idempotencyKey string, now time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE steps SET idempotency_key = ?, status = ?, started_at = COALESCE(started_at, ?) WHERE id = ?`,
		idempotencyKey, string(domain.StepRunning), now, stepID.String())
	if err != nil {
		return fmt.Errorf("failed to begin step attempt: %w", err)
	}
	return nil
}

func (s *SQLiteStore) FindStepResult(ctx context.Context, idempotencyKey string) (*domain.StepResult, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT idempotency_key, step_id, result_data, created_at FROM step_results WHERE idempotency_key = ?`, idempotencyKey)
	var res domain.StepResult
	var stepID string
	if err := row.Scan(&res.IdempotencyKey, &stepID, &res.ResultData, &res.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find step result: %w", err)
	}
	parsed, err := uuid.Parse(stepID)
	if err != nil {
		return nil, fmt.Errorf("failed to parse step result step id: %w", err)
	}
	res.StepID = parsed
	return &res, nil
}

func (s *SQLiteStore) CompleteFromExistingResult(ctx context.Context, stepID uuid.UUID, now time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE steps SET status = ?, completed_at = ? WHERE id = ?`,
		string(domain.StepCompleted), now, stepID.String())
	if err != nil {
		return fmt.Errorf("failed to complete step from existing result: %w", err)
	}
	return nil
}

func (s *SQLiteStore) CommitStepSuccess(ctx context.Context, stepID uuid.UUID, idempotencyKey string, resultData []byte, businessObjectID *uuid.UUID, action ActionFunc, now time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO step_results (idempotency_key, step_id, result_data, created_at) VALUES (?, ?, ?, ?)`,
		idempotencyKey, stepID.String(), resultData, now,
	); err != nil {
		return fmt.Errorf("failed to insert step result: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE steps SET status = ?, completed_at = ? WHERE id = ?`,
		string(domain.StepCompleted), now, stepID.String(),
	); err != nil {
		return fmt.Errorf("failed to mark step completed: %w", err)
	}

	if action != nil && businessObjectID != nil {
		actionTx := &sqliteBusinessObjectTx{tx: tx, id: *businessObjectID, now: now}
		if err := action(ctx, actionTx); err != nil {
			return fmt.Errorf("action failed: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit step success: %w", err)
	}
	return nil
}

func (s *SQLiteStore) RetryStep(ctx context.Context, stepID uuid.UUID, errMsg string, now time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE steps SET status = ?, idempotency_key = NULL, retry_count = retry_count + 1, error_message = ? WHERE id = ?`,
		string(domain.StepPending), errMsg, stepID.String())
	if err != nil {
		return fmt.Errorf("failed to record step retry: %w", err)
	}
	return nil
}

func (s *SQLiteStore) FailStep(ctx context.Context, stepID uuid.UUID, errMsg string, now time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE steps SET status = ?, error_message = ?, completed_at = ? WHERE id = ?`,
		string(domain.StepFailed), errMsg, now, stepID.String())
	if err != nil {
		return fmt.Errorf("failed to fail step: %w", err)
	}
	return nil
}

func (s *SQLiteStore) CreateBusinessObject(ctx context.Context, obj domain.BusinessObject) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO business_objects (id, status, amount, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		obj.ID.String(), string(obj.Status), obj.Amount, obj.CreatedAt, obj.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create business object: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetBusinessObject(ctx context.Context, id uuid.UUID) (domain.BusinessObject, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, status, amount, created_at, updated_at FROM business_objects WHERE id = ?`, id.String())
	return scanBusinessObject(row, id)
}

func scanBusinessObject(row rowScanner, fallbackID uuid.UUID) (domain.BusinessObject, error) {
	var obj domain.BusinessObject
	var id, status string
	if err := row.Scan(&id, &status, &obj.Amount, &obj.CreatedAt, &obj.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return domain.BusinessObject{}, ErrNotFound
		}
		return domain.BusinessObject{}, fmt.Errorf("failed to scan business object: %w", err)
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		parsed = fallbackID
	}
	obj.ID = parsed
	obj.Status = domain.BusinessObjectStatus(status)
	return obj, nil
}

// sqliteBusinessObjectTx scopes a registered action to one business object
// row within an in-flight *sql.Tx, satisfying BusinessObjectTx.
type sqliteBusinessObjectTx struct {
	tx  *sql.Tx
	id  uuid.UUID
	now time.Time
}

func (a *sqliteBusinessObjectTx) Get(ctx context.Context) (domain.BusinessObject, error) {
	row := a.tx.QueryRowContext(ctx,
		`SELECT id, status, amount, created_at, updated_at FROM business_objects WHERE id = ?`, a.id.String())
	return scanBusinessObject(row, a.id)
}

func (a *sqliteBusinessObjectTx) Update(ctx context.Context, obj domain.BusinessObject) error {
	_, err := a.tx.ExecContext(ctx,
		`UPDATE business_objects SET status = ?, amount = ?, updated_at = ? WHERE id = ?`,
		string(obj.Status), obj.Amount, a.now, a.id.String())
	if err != nil {
		return fmt.Errorf("failed to update business object: %w", err)
	}
	return nil
}
