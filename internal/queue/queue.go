// Package queue runs named tasks after a delay. Tasks are persisted in the store so a
// chain of delayed steps survives process restarts.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/elonfeng/skilldex/internal/store"
)

// Store is the task persistence the queue needs.
type Store interface {
	EnqueueTask(ctx context.Context, t *store.Task) error
	ClaimDueTasks(ctx context.Context, now time.Time, limit int) ([]store.Task, error)
	CompleteTask(ctx context.Context, id string) error
	FailTask(ctx context.Context, id string, reason string) error
	RetryTask(ctx context.Context, id string, runAt time.Time, reason string) error
	RequeueRunningTasks(ctx context.Context) (int64, error)
	CountOpenTasks(ctx context.Context) (int, error)
}

// Handler executes one task. A returned error is retried up to the queue's attempt
// limit, then the task is marked failed.
type Handler func(ctx context.Context, payload json.RawMessage) error

// Options tunes the worker.
type Options struct {
	Concurrency  int
	PollInterval time.Duration
	MaxAttempts  int
	RetryBackoff time.Duration
}

// Queue schedules tasks and runs them with a bounded worker pool.
// Register all handlers before calling Run.
type Queue struct {
	store    Store
	log      *slog.Logger
	handlers map[string]Handler
	opts     Options
	now      func() time.Time
}

// New creates a queue.
func New(s Store, log *slog.Logger, opts Options) *Queue {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 30 * time.Second
	}
	return &Queue{
		store:    s,
		log:      log,
		handlers: make(map[string]Handler),
		opts:     opts,
		now:      time.Now,
	}
}

// Register binds a handler to a task name.
func (q *Queue) Register(name string, h Handler) {
	q.handlers[name] = h
}

// RunAfter persists a task named name, due after delay. payload is JSON encoded.
func (q *Queue) RunAfter(ctx context.Context, delay time.Duration, name string, payload any) error {
	if _, ok := q.handlers[name]; !ok {
		return fmt.Errorf("schedule %s: no handler registered", name)
	}
	raw := []byte("{}")
	if payload != nil {
		var err error
		if raw, err = json.Marshal(payload); err != nil {
			return fmt.Errorf("encode %s payload: %w", name, err)
		}
	}
	t := &store.Task{
		ID:      uuid.NewString(),
		Name:    name,
		Payload: string(raw),
		RunAtMs: q.now().Add(delay).UnixMilli(),
	}
	return q.store.EnqueueTask(ctx, t)
}

// Run requeues tasks orphaned by a previous process and then polls for due tasks
// until ctx is cancelled.
func (q *Queue) Run(ctx context.Context) error {
	if n, err := q.store.RequeueRunningTasks(ctx); err != nil {
		return err
	} else if n > 0 {
		q.log.Info("requeued interrupted tasks", "count", n)
	}

	q.log.Info("worker running", "concurrency", q.opts.Concurrency, "poll", q.opts.PollInterval)
	ticker := time.NewTicker(q.opts.PollInterval)
	defer ticker.Stop()

	for {
		if _, err := q.drainDue(ctx); err != nil && !errors.Is(err, context.Canceled) {
			q.log.Error("worker poll failed", "error", err)
		}
		select {
		case <-ctx.Done():
			q.log.Info("worker stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunUntilIdle works like Run but returns once no pending or running task remains.
// It is used by one-shot CLI commands that want the whole chain to finish.
func (q *Queue) RunUntilIdle(ctx context.Context) (int, error) {
	if _, err := q.store.RequeueRunningTasks(ctx); err != nil {
		return 0, err
	}
	ticker := time.NewTicker(q.opts.PollInterval)
	defer ticker.Stop()

	total := 0
	for {
		n, err := q.drainDue(ctx)
		total += n
		if err != nil {
			return total, err
		}
		open, err := q.store.CountOpenTasks(ctx)
		if err != nil {
			return total, err
		}
		if open == 0 {
			return total, nil
		}
		select {
		case <-ctx.Done():
			return total, ctx.Err()
		case <-ticker.C:
		}
	}
}

// drainDue claims and runs batches of due tasks until none are due.
func (q *Queue) drainDue(ctx context.Context) (int, error) {
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		tasks, err := q.store.ClaimDueTasks(ctx, q.now(), q.opts.Concurrency)
		if err != nil {
			return total, err
		}
		if len(tasks) == 0 {
			return total, nil
		}

		var g errgroup.Group
		g.SetLimit(q.opts.Concurrency)
		for i := range tasks {
			task := tasks[i]
			g.Go(func() error {
				q.execute(ctx, &task)
				return nil
			})
		}
		g.Wait()
		total += len(tasks)
	}
}

func (q *Queue) execute(ctx context.Context, t *store.Task) {
	log := q.log.With("task", t.Name, "task_id", t.ID, "attempt", t.Attempts)

	h, ok := q.handlers[t.Name]
	if !ok {
		log.Error("no handler for task")
		if err := q.store.FailTask(ctx, t.ID, "no handler registered"); err != nil {
			log.Error("mark task failed", "error", err)
		}
		return
	}

	start := time.Now()
	err := safeCall(ctx, h, json.RawMessage(t.Payload))
	if err == nil {
		if err := q.store.CompleteTask(ctx, t.ID); err != nil {
			log.Error("mark task done", "error", err)
		}
		log.Debug("task done", "duration", time.Since(start).Round(time.Millisecond))
		return
	}

	if t.Attempts < q.opts.MaxAttempts && ctx.Err() == nil {
		next := q.now().Add(time.Duration(t.Attempts) * q.opts.RetryBackoff)
		log.Warn("task failed, will retry", "error", err, "run_at", next.UTC().Format(time.RFC3339))
		if err := q.store.RetryTask(ctx, t.ID, next, err.Error()); err != nil {
			log.Error("reschedule task", "error", err)
		}
		return
	}

	log.Error("task failed", "error", err)
	if err := q.store.FailTask(ctx, t.ID, err.Error()); err != nil {
		log.Error("mark task failed", "error", err)
	}
}

func safeCall(ctx context.Context, h Handler, payload json.RawMessage) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, payload)
}
