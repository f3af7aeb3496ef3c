package store

import (
	"context"
	"fmt"
	"time"
)

// Task statuses.
const (
	TaskPending = "pending"
	TaskRunning = "running"
	TaskDone    = "done"
	TaskFailed  = "failed"
)

// Task is a named unit of work due at RunAt. Payload is handler-specific JSON.
type Task struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Payload   string    `db:"payload" json:"payload"`
	RunAtMs   int64     `db:"run_at_ms" json:"runAtMs"`
	Status    string    `db:"status" json:"status"`
	Attempts  int       `db:"attempts" json:"attempts"`
	LastError string    `db:"last_error" json:"lastError,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// RunAt returns the due time.
func (t *Task) RunAt() time.Time {
	return time.UnixMilli(t.RunAtMs).UTC()
}

func (s *SQLiteStore) EnqueueTask(ctx context.Context, t *Task) error {
	now := time.Now().UTC()
	if t.Status == "" {
		t.Status = TaskPending
	}
	if t.Payload == "" {
		t.Payload = "{}"
	}
	t.CreatedAt, t.UpdatedAt = now, now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, name, payload, run_at_ms, status, attempts, last_error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 0, '', ?, ?)
	`, t.ID, t.Name, t.Payload, t.RunAtMs, t.Status, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("enqueue task %s: %w", t.Name, err)
	}
	return nil
}

// ClaimDueTasks marks up to limit due pending tasks as running and returns them,
// oldest due first.
func (s *SQLiteStore) ClaimDueTasks(ctx context.Context, now time.Time, limit int) ([]Task, error) {
	if limit <= 0 {
		return nil, nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin claim: %w", err)
	}
	defer tx.Rollback()

	var tasks []Task
	err = tx.SelectContext(ctx, &tasks, `
		SELECT * FROM tasks WHERE status = ? AND run_at_ms <= ?
		ORDER BY run_at_ms, created_at LIMIT ?
	`, TaskPending, now.UnixMilli(), limit)
	if err != nil {
		return nil, fmt.Errorf("select due tasks: %w", err)
	}

	ts := now.UTC()
	for i := range tasks {
		if _, err := tx.ExecContext(ctx,
			"UPDATE tasks SET status = ?, attempts = attempts + 1, updated_at = ? WHERE id = ?",
			TaskRunning, ts, tasks[i].ID); err != nil {
			return nil, fmt.Errorf("claim task %s: %w", tasks[i].ID, err)
		}
		tasks[i].Status = TaskRunning
		tasks[i].Attempts++
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit claim: %w", err)
	}
	return tasks, nil
}

func (s *SQLiteStore) CompleteTask(ctx context.Context, id string) error {
	return s.finishTask(ctx, id, TaskDone, "")
}

func (s *SQLiteStore) FailTask(ctx context.Context, id string, reason string) error {
	return s.finishTask(ctx, id, TaskFailed, reason)
}

func (s *SQLiteStore) finishTask(ctx context.Context, id, status, reason string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE tasks SET status = ?, last_error = ?, updated_at = ? WHERE id = ?",
		status, reason, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("finish task %s: %w", id, err)
	}
	return nil
}

// RetryTask puts a task back in the pending state, due at runAt.
func (s *SQLiteStore) RetryTask(ctx context.Context, id string, runAt time.Time, reason string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE tasks SET status = ?, run_at_ms = ?, last_error = ?, updated_at = ? WHERE id = ?",
		TaskPending, runAt.UnixMilli(), reason, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("retry task %s: %w", id, err)
	}
	return nil
}

// CountOpenTasks counts tasks that are pending or running.
func (s *SQLiteStore) CountOpenTasks(ctx context.Context) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM tasks WHERE status IN (?, ?)", TaskPending, TaskRunning)
	if err != nil {
		return 0, fmt.Errorf("count open tasks: %w", err)
	}
	return n, nil
}

// RequeueRunningTasks returns tasks left running by a dead worker to the pending state.
func (s *SQLiteStore) RequeueRunningTasks(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE tasks SET status = ?, updated_at = ? WHERE status = ?",
		TaskPending, time.Now().UTC(), TaskRunning)
	if err != nil {
		return 0, fmt.Errorf("requeue running tasks: %w", err)
	}
	return res.RowsAffected()
}

// GetTask returns one task by id.
func (s *SQLiteStore) GetTask(ctx context.Context, id string) (*Task, error) {
	var t Task
	if err := s.db.GetContext(ctx, &t, "SELECT * FROM tasks WHERE id = ?", id); err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	return &t, nil
}
