package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sctg/renderpool/internal/model"

	_ "modernc.org/sqlite"
)

const createTasksTable = `
CREATE TABLE IF NOT EXISTS tasks (
    id          TEXT PRIMARY KEY,
    status      TEXT NOT NULL,
    format      TEXT NOT NULL,
    input       TEXT NOT NULL,
    result      TEXT,
    error       TEXT,
    renderer    INTEGER,
    duration_ms INTEGER,
    created_at  DATETIME NOT NULL,
    started_at  DATETIME,
    finished_at DATETIME
)`

// Compile-time interface satisfaction check.
var _ TaskRegistry = (*SQLiteRegistry)(nil)

// SQLiteRegistry implements TaskRegistry using SQLite.
type SQLiteRegistry struct {
	db *sql.DB
}

// NewSQLiteRegistry opens the SQLite database at dbPath and runs migrations.
// Pass ":memory:" for an ephemeral registry.
func NewSQLiteRegistry(dbPath string) (*SQLiteRegistry, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if _, err := db.Exec(createTasksTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tasks table: %w", err)
	}

	return &SQLiteRegistry{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteRegistry) Close() error {
	return s.db.Close()
}

// CreateTask inserts a new task record.
func (s *SQLiteRegistry) CreateTask(ctx context.Context, t *model.Task) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (
			id, status, format, input, result, error, renderer,
			duration_ms, created_at, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Status, t.Format, t.Input, t.Result, t.Error, t.Renderer,
		t.DurationMS, t.CreatedAt, t.StartedAt, t.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// GetTask retrieves a task by ID.
func (s *SQLiteRegistry) GetTask(ctx context.Context, id string) (*model.Task, error) {
	t := &model.Task{}
	var result, errMsg sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, status, format, input, result, error, renderer,
			duration_ms, created_at, started_at, finished_at
		FROM tasks WHERE id = ?`, id,
	).Scan(
		&t.ID, &t.Status, &t.Format, &t.Input, &result, &errMsg, &t.Renderer,
		&t.DurationMS, &t.CreatedAt, &t.StartedAt, &t.FinishedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	t.Result = result.String
	t.Error = errMsg.String
	return t, nil
}

// ListTasks returns a paginated list of tasks ordered by created_at DESC,
// along with the total count of all tasks.
func (s *SQLiteRegistry) ListTasks(ctx context.Context, limit, offset int) ([]*model.Task, int, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, 0, fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback()

	var total int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM tasks").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count tasks: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT id, status, format, input, result, error, renderer,
			duration_ms, created_at, started_at, finished_at
		FROM tasks ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*model.Task
	for rows.Next() {
		t := &model.Task{}
		var result, errMsg sql.NullString
		if err := rows.Scan(
			&t.ID, &t.Status, &t.Format, &t.Input, &result, &errMsg, &t.Renderer,
			&t.DurationMS, &t.CreatedAt, &t.StartedAt, &t.FinishedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan task: %w", err)
		}
		t.Result = result.String
		t.Error = errMsg.String
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate tasks: %w", err)
	}

	return tasks, total, nil
}

// MarkRunning transitions a pending task to running. The WHERE clause doubles
// as the transition guard: a task that is no longer pending is left untouched
// and the caller gets ErrInvalidTransition.
func (s *SQLiteRegistry) MarkRunning(ctx context.Context, id string, renderer int, startedAt time.Time) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE tasks SET status = ?, renderer = ?, started_at = ? WHERE id = ? AND status = ?",
		model.StatusRunning, renderer, startedAt, id, model.StatusPending,
	)
	if err != nil {
		return fmt.Errorf("mark task running: %w", err)
	}
	return s.checkGuardedUpdate(ctx, result, id)
}

// SettleTask writes the terminal state for a task. Only non-terminal tasks
// may be settled; a second settlement attempt returns ErrInvalidTransition.
func (s *SQLiteRegistry) SettleTask(ctx context.Context, t *model.Task) error {
	if !model.Terminal(t.Status) {
		return fmt.Errorf("%w: settle to %q", ErrInvalidTransition, t.Status)
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET status = ?, result = ?, error = ?, duration_ms = ?, finished_at = ?
		WHERE id = ? AND status IN (?, ?)`,
		t.Status, t.Result, t.Error, t.DurationMS, t.FinishedAt,
		t.ID, model.StatusPending, model.StatusRunning,
	)
	if err != nil {
		return fmt.Errorf("settle task: %w", err)
	}
	return s.checkGuardedUpdate(ctx, result, t.ID)
}

// checkGuardedUpdate distinguishes "no such task" from "guard rejected the
// transition" when a guarded UPDATE affected zero rows.
func (s *SQLiteRegistry) checkGuardedUpdate(ctx context.Context, result sql.Result, id string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rowsAffected > 0 {
		return nil
	}

	var exists int
	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tasks WHERE id = ?", id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check task existence: %w", err)
	}
	if exists == 0 {
		return ErrNotFound
	}
	return ErrInvalidTransition
}

// GetTaskStats returns aggregate counts and the average duration of settled tasks.
func (s *SQLiteRegistry) GetTaskStats(ctx context.Context) (*TaskStats, error) {
	stats := &TaskStats{
		CountByStatus: make(map[string]int),
		CountByFormat: make(map[string]int),
	}

	rows, err := s.db.QueryContext(ctx, "SELECT status, COUNT(*) FROM tasks GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		stats.CountByStatus[status] = count
		stats.Total += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status counts: %w", err)
	}

	formatRows, err := s.db.QueryContext(ctx, "SELECT format, COUNT(*) FROM tasks GROUP BY format")
	if err != nil {
		return nil, fmt.Errorf("count by format: %w", err)
	}
	defer formatRows.Close()
	for formatRows.Next() {
		var format string
		var count int
		if err := formatRows.Scan(&format, &count); err != nil {
			return nil, fmt.Errorf("scan format count: %w", err)
		}
		stats.CountByFormat[format] = count
	}
	if err := formatRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate format counts: %w", err)
	}

	err = s.db.QueryRowContext(ctx,
		"SELECT COALESCE(AVG(duration_ms), 0) FROM tasks WHERE duration_ms IS NOT NULL",
	).Scan(&stats.AvgDurationMS)
	if err != nil {
		return nil, fmt.Errorf("average duration: %w", err)
	}

	return stats, nil
}
