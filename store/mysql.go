package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	_ "github.com/go-sql-driver/mysql"

	"stepforge/domain"
)

// MySQLStore is a MySQL/MariaDB implementation of Store.
//
// Designed for:
//   - Production deployments requiring durability beyond a single file
//   - Multiple RunWorker processes sharing one database
//   - Audit trails and compliance requirements
//
// Unlike SQLiteStore, MySQLStore pools connections; concurrent Runs that
// share a BusinessObject serialize on that row via SELECT ... FOR UPDATE
// inside CommitStepSuccess rather than on a single connection.
//
// Schema:
//   - workflows, runs, steps, step_results, business_objects -- same logical
//     shape as SQLiteStore, expressed in MySQL DDL.
type MySQLStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewMySQLStore creates a new MySQL-backed store.
//
// The DSN (Data Source Name) format is:
//
//	[username[:password]@][protocol[(address)]]/dbname[?param1=value1&...&paramN=valueN]
//
// Example:
//
//	user:password@tcp(127.0.0.1:3306)/stepforge?parseTime=true
//
// Security Warning:
//
//	Never hardcode credentials in source. Read the DSN from the environment:
//	    dsn := os.Getenv("STEPFORGE_MYSQL_DSN")
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	s := &MySQLStore{db: db}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

func (m *MySQLStore) createTables(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS workflows (
			id VARCHAR(36) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			definition JSON NOT NULL,
			created_at TIMESTAMP(6) NOT NULL
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
		`CREATE TABLE IF NOT EXISTS runs (
			id VARCHAR(36) PRIMARY KEY,
			workflow_id VARCHAR(36) NOT NULL,
			status VARCHAR(16) NOT NULL,
			started_at TIMESTAMP(6) NULL,
			completed_at TIMESTAMP(6) NULL,
			created_at TIMESTAMP(6) NOT NULL,
			business_object_id VARCHAR(36) NULL,
			INDEX idx_runs_status (status),
			FOREIGN KEY (workflow_id) REFERENCES workflows(id)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
		`CREATE TABLE IF NOT EXISTS steps (
			id VARCHAR(36) PRIMARY KEY,
			run_id VARCHAR(36) NOT NULL,
			step_id VARCHAR(255) NOT NULL,
			step_index INT NOT NULL,
			type VARCHAR(64) NOT NULL,
			action VARCHAR(128) NOT NULL DEFAULT '',
			duration_seconds DOUBLE NOT NULL,
			fail_probability DOUBLE NOT NULL,
			status VARCHAR(16) NOT NULL,
			idempotency_key VARCHAR(255) NULL,
			retry_count INT NOT NULL DEFAULT 0,
			max_retries INT NOT NULL DEFAULT 0,
			started_at TIMESTAMP(6) NULL,
			completed_at TIMESTAMP(6) NULL,
			error_message TEXT NULL,
			created_at TIMESTAMP(6) NOT NULL,
			UNIQUE KEY uniq_run_step_id (run_id, step_id),
			UNIQUE KEY uniq_run_step_index (run_id, step_index),
			INDEX idx_steps_run_id (run_id),
			FOREIGN KEY (run_id) REFERENCES runs(id)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
		`CREATE TABLE IF NOT EXISTS step_results (
			idempotency_key VARCHAR(255) PRIMARY KEY,
			step_id VARCHAR(36) NOT NULL,
			result_data LONGBLOB,
			created_at TIMESTAMP(6) NOT NULL,
			FOREIGN KEY (step_id) REFERENCES steps(id)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
		`CREATE TABLE IF NOT EXISTS business_objects (
			id VARCHAR(36) PRIMARY KEY,
			status VARCHAR(16) NOT NULL,
			amount DOUBLE NOT NULL,
			created_at TIMESTAMP(6) NOT NULL,
			updated_at TIMESTAMP(6) NOT NULL
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
	}
	for _, stmt := range stmts {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the connection pool. Calling Close multiple times is safe.
func (m *MySQLStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	return m.db.Close()
}

func (m *MySQLStore) CreateWorkflow(ctx context.Context, wf domain.Workflow) error {
	_, err := m.db.ExecContext(ctx,
		`INSERT INTO workflows (id, name, definition, created_at) VALUES (?, ?, ?, ?)`,
		wf.ID.String(), wf.Name, wf.Definition, wf.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create workflow: %w", err)
	}
	return nil
}

func (m *MySQLStore) GetWorkflow(ctx context.Context, id uuid.UUID) (domain.Workflow, error) {
	row := m.db.QueryRowContext(ctx,
		`SELECT id, name, definition, created_at FROM workflows WHERE id = ?`, id.String())
	return scanWorkflowBytes(row)
}

func (m *MySQLStore) ListWorkflows(ctx context.Context) ([]domain.Workflow, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT id, name, definition, created_at FROM workflows ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []domain.Workflow
	for rows.Next() {
		wf, err := scanWorkflowBytes(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, wf)
	}
	return out, rows.Err()
}

func scanWorkflowBytes(row rowScanner) (domain.Workflow, error) {
	var wf domain.Workflow
	var id string
	var def []byte
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
	wf.Definition = def
	return wf, nil
}

func (m *MySQLStore) CreateRun(ctx context.Context, run domain.Run, steps []domain.Step) error {
	tx, err := m.db.BeginTx(ctx, nil)
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

func (m *MySQLStore) GetRun(ctx context.Context, id uuid.UUID) (domain.Run, error) {
	row := m.db.QueryRowContext(ctx,
		`SELECT id, workflow_id, status, started_at, completed_at, created_at, business_object_id FROM runs WHERE id = ?`, id.String())
	return scanRun(row)
}

func (m *MySQLStore) ListRuns(ctx context.Context) ([]domain.Run, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT id, workflow_id, status, started_at, completed_at, created_at, business_object_id FROM runs ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanRuns(rows)
}

func (m *MySQLStore) ListRunningRuns(ctx context.Context) ([]domain.Run, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT id, workflow_id, status, started_at, completed_at, created_at, business_object_id FROM runs WHERE status = ?`,
		string(domain.RunRunning))
	if err != nil {
		return nil, fmt.Errorf("failed to list running runs: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanRuns(rows)
}

func (m *MySQLStore) GetSteps(ctx context.Context, runID uuid.UUID) ([]domain.Step, error) {
	rows, err := m.db.QueryContext(ctx,
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

func (m *MySQLStore) SetRunStatus(ctx context.Context, runID uuid.UUID, status domain.RunStatus, startedAt, completedAt *time.Time) error {
	_, err := m.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, started_at = COALESCE(started_at, ?), completed_at = COALESCE(?, completed_at) WHERE id = ?`,
		string(status), startedAt, completedAt, runID.String())
	if err != nil {
		return fmt.Errorf("failed to set run status: %w", err)
	}
	return nil
}

func (m *MySQLStore) BeginStepAttempt(ctx context.Context, stepID uuid.UUID, idempotencyKey string, now time.Time) error {
	_, err := m.db.ExecContext(ctx,
		`UPDATE steps SET idempotency_key = ?, status = ?, started_at = COALESCE(started_at, ?) WHERE id = ?`,
		idempotencyKey, string(domain.StepRunning), now, stepID.String())
	if err != nil {
		return fmt.Errorf("failed to begin step attempt: %w", err)
	}
	return nil
}

func (m *MySQLStore) FindStepResult(ctx context.Context, idempotencyKey string) (*domain.StepResult, error) {
	row := m.db.QueryRowContext(ctx,
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

func (m *MySQLStore) CompleteFromExistingResult(ctx context.Context, stepID uuid.UUID, now time.Time) error {
	_, err := m.db.ExecContext(ctx,
		`UPDATE steps SET status = ?, completed_at = ? WHERE id = ?`,
		string(domain.StepCompleted), now, stepID.String())
	if err != nil {
		return fmt.Errorf("failed to complete step from existing result: %w", err)
	}
	return nil
}

// CommitStepSuccess commits the StepResult insert, the Step completion
// update, and the registered action (if any) in one transaction. The action
// runs after those two writes; its Get locks the business object row with
// SELECT ... FOR UPDATE so concurrent Runs sharing the same object
// serialize on it rather than racing a lost-update.
func (m *MySQLStore) CommitStepSuccess(ctx context.Context, stepID uuid.UUID, idempotencyKey string, resultData []byte, businessObjectID *uuid.UUID, action ActionFunc, now time.Time) error {
	tx, err := m.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
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
		actionTx := &mysqlBusinessObjectTx{tx: tx, id: *businessObjectID, now: now}
		if err := action(ctx, actionTx); err != nil {
			return fmt.Errorf("action failed: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit step success: %w", err)
	}
	return nil
}

func (m *MySQLStore) RetryStep(ctx context.Context, stepID uuid.UUID, errMsg string, now time.Time) error {
	_, err := m.db.ExecContext(ctx,
		`UPDATE steps SET status = ?, idempotency_key = NULL, retry_count = retry_count + 1, error_message = ? WHERE id = ?`,
		string(domain.StepPending), errMsg, stepID.String())
	if err != nil {
		return fmt.Errorf("failed to record step retry: %w", err)
	}
	return nil
}

func (m *MySQLStore) FailStep(ctx context.Context, stepID uuid.UUID, errMsg string, now time.Time) error {
	_, err := m.db.ExecContext(ctx,
		`UPDATE steps SET status = ?, error_message = ?, completed_at = ? WHERE id = ?`,
		string(domain.StepFailed), errMsg, now, stepID.String())
	if err != nil {
		return fmt.Errorf("failed to fail step: %w", err)
	}
	return nil
}

func (m *MySQLStore) CreateBusinessObject(ctx context.Context, obj domain.BusinessObject) error {
	_, err := m.db.ExecContext(ctx,
		`INSERT INTO business_objects (id, status, amount, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		obj.ID.String(), string(obj.Status), obj.Amount, obj.CreatedAt, obj.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create business object: %w", err)
	}
	return nil
}

func (m *MySQLStore) GetBusinessObject(ctx context.Context, id uuid.UUID) (domain.BusinessObject, error) {
	row := m.db.QueryRowContext(ctx,
		`SELECT id, status, amount, created_at, updated_at FROM business_objects WHERE id = ?`, id.String())
	return scanBusinessObject(row, id)
}

// mysqlBusinessObjectTx locks the business object row with SELECT ... FOR
// UPDATE on first Get, holding the lock until the enclosing transaction
// commits or rolls back.
type mysqlBusinessObjectTx struct {
	tx  *sql.Tx
	id  uuid.UUID
	now time.Time
}

func (a *mysqlBusinessObjectTx) Get(ctx context.Context) (domain.BusinessObject, error) {
	row := a.tx.QueryRowContext(ctx,
		`SELECT id, status, amount, created_at, updated_at FROM business_objects WHERE id = ? FOR UPDATE`, a.id.String())
	return scanBusinessObject(row, a.id)
}

func (a *mysqlBusinessObjectTx) Update(ctx context.Context, obj domain.BusinessObject) error {
	_, err := a.tx.ExecContext(ctx,
		`UPDATE business_objects SET status = ?, amount = ?, updated_at = ? WHERE id = ?`,
		string(obj.Status), obj.Amount, a.now, a.id.String())
	if err != nil {
		return fmt.Errorf("failed to update business object: %w", err)
	}
	return nil
}
