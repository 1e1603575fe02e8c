package store

import (
	"context"
	"errors"
	"time"

	"github.com/sctg/renderpool/internal/model"
)

// ErrNotFound is returned when a task is not found.
var ErrNotFound = errors.New("task not found")

// ErrInvalidTransition is returned when a task status transition is not
// allowed, including any attempt to rewrite a task that already reached a
// terminal state.
var ErrInvalidTransition = errors.New("invalid status transition")

// TaskStats holds aggregate rendering statistics.
type TaskStats struct {
	Total         int            `json:"total"`
	CountByStatus map[string]int `json:"count_by_status"`
	CountByFormat map[string]int `json:"count_by_format"`
	AvgDurationMS float64        `json:"avg_duration_ms"`
}

// TaskRegistry is the pollable state-reporting surface for tasks. It is
// written only by the pool, at three points: creation (pending), assignment
// (pending→running) and settlement (running→done/error). Everything else is
// reads, typically from the HTTP layer on behalf of a remote controller that
// cannot hold the in-process completion channel.
type TaskRegistry interface {
	CreateTask(ctx context.Context, t *model.Task) error
	GetTask(ctx context.Context, id string) (*model.Task, error)
	ListTasks(ctx context.Context, limit, offset int) ([]*model.Task, int, error)

	// MarkRunning transitions a pending task to running and records the
	// assigned renderer slot and start time.
	MarkRunning(ctx context.Context, id string, renderer int, startedAt time.Time) error

	// SettleTask writes the terminal state for a task: done with a result, or
	// error with a message, plus the elapsed duration. Settling an already
	// terminal task returns ErrInvalidTransition, which is what keeps registry
	// entries stable after the first terminal observation.
	SettleTask(ctx context.Context, t *model.Task) error

	GetTaskStats(ctx context.Context) (*TaskStats, error)
	Close() error
}
