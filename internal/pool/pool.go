// Package pool provides the fixed-size render pool: a set of renderer slots,
// a FIFO dispatch queue, and the task lifecycle bookkeeping that feeds the
// task registry and the event broker.
package pool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sctg/renderpool/internal/capability"
	"github.com/sctg/renderpool/internal/model"
	"github.com/sctg/renderpool/internal/renderer"
	"github.com/sctg/renderpool/internal/store"
)

// Pool size bounds. The configured size is clamped into this range.
const (
	MinSize     = 1
	MaxSize     = 8
	DefaultSize = 2
)

// ErrDuplicateID is returned when a task id was already submitted to this pool.
var ErrDuplicateID = errors.New("task id already submitted")

// ErrClosed is returned when submitting to a pool that has been shut down.
var ErrClosed = errors.New("pool is closed")

// Result is the settlement value delivered on the channel returned by Submit.
// Exactly one Result is ever sent per task.
type Result struct {
	Output string
	Err    error
}

// Status is the pool status snapshot exposed to external pollers.
type Status struct {
	PoolSize    int `json:"pool_size"`
	QueueLength int `json:"queue_length"`
	Busy        int `json:"busy"`
}

// Config holds pool construction parameters.
type Config struct {
	// Size is the number of renderer slots, clamped to [MinSize, MaxSize].
	Size int

	// RenderTimeout is the per-strategy time box for each render attempt.
	RenderTimeout time.Duration

	// SettleWindow bounds the staged strategy's output polling.
	SettleWindow time.Duration
}

// pendingTask is one queued submission awaiting a free slot.
type pendingTask struct {
	task *model.Task
	done chan Result
}

// Pool owns the renderer slots and the FIFO queue. The queue, the busy flags
// and the seen-id set are only touched under mu: that critical section is
// what the original single-threaded event loop got for free, made explicit
// for preemptive goroutine scheduling.
type Pool struct {
	mu        sync.Mutex
	renderers []*renderer.Renderer
	busy      []bool
	queue     []*pendingTask
	seen      map[string]bool
	closed    bool

	registry store.TaskRegistry
	caps     *capability.Registry
	broker   *EventBroker
	logger   *slog.Logger
	wg       sync.WaitGroup
}

// New creates a pool with cfg.Size renderer slots.
func New(cfg Config, registry store.TaskRegistry, caps *capability.Registry, logger *slog.Logger) *Pool {
	size := cfg.Size
	if size < MinSize {
		size = MinSize
	}
	if size > MaxSize {
		size = MaxSize
	}

	renderers := make([]*renderer.Renderer, size)
	for i := range renderers {
		renderers[i] = renderer.New(i, cfg.RenderTimeout, cfg.SettleWindow, logger)
	}

	return &Pool{
		renderers: renderers,
		busy:      make([]bool, size),
		seen:      make(map[string]bool),
		registry:  registry,
		caps:      caps,
		broker:    NewEventBroker(),
		logger:    logger,
	}
}

// Broker returns the pool's event broker for SSE subscription.
func (p *Pool) Broker() *EventBroker {
	return p.broker
}

// Submit registers the task, appends it to the FIFO queue and kicks the
// dispatch loop. The returned channel is buffered and receives exactly one
// Result at settlement; callers that only poll the registry may ignore it.
// Duplicate ids are rejected for the lifetime of the pool.
func (p *Pool) Submit(ctx context.Context, t *model.Task) (<-chan Result, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}
	if p.seen[t.ID] {
		p.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrDuplicateID, t.ID)
	}
	p.seen[t.ID] = true
	p.mu.Unlock()

	// Registry write happens outside the dispatch critical section.
	if err := p.registry.CreateTask(ctx, t); err != nil {
		p.mu.Lock()
		delete(p.seen, t.ID)
		p.mu.Unlock()
		return nil, fmt.Errorf("create task: %w", err)
	}

	tCopy := *t
	pt := &pendingTask{task: &tCopy, done: make(chan Result, 1)}

	p.mu.Lock()
	p.queue = append(p.queue, pt)
	p.updateGaugesLocked()
	p.mu.Unlock()

	p.logger.Debug("task queued", "task_id", t.ID, "format", t.Format)
	p.dispatch()
	return pt.done, nil
}

// Status returns the current pool snapshot.
func (p *Pool) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	busy := 0
	for _, b := range p.busy {
		if b {
			busy++
		}
	}
	return Status{
		PoolSize:    len(p.renderers),
		QueueLength: len(p.queue),
		Busy:        busy,
	}
}

// Close rejects further submissions, fails everything still waiting in the
// queue and blocks until in-flight renders settle.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	drained := p.queue
	p.queue = nil
	p.updateGaugesLocked()
	p.mu.Unlock()

	for _, pt := range drained {
		p.settle(pt, -1, "", "", ErrClosed, time.Now().UTC(), 0)
	}

	p.wg.Wait()
}

// Wait blocks until all in-flight renders settle, without closing the pool.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// dispatch assigns queued tasks to idle renderer slots: while the queue is
// non-empty and an idle slot exists, the head of the queue (earliest
// submission) wins the slot. It returns as soon as either runs out; every
// settlement re-invokes it so waiting tasks drain without delay.
func (p *Pool) dispatch() {
	for {
		p.mu.Lock()
		if p.closed || len(p.queue) == 0 {
			p.mu.Unlock()
			return
		}

		slot := -1
		for i, b := range p.busy {
			if !b {
				slot = i
				break
			}
		}
		if slot == -1 {
			p.mu.Unlock()
			return
		}

		pt := p.queue[0]
		p.queue = p.queue[1:]
		p.busy[slot] = true
		// Registered before the lock drops so a concurrent Close cannot
		// observe a zero counter while this task is about to start.
		p.wg.Add(1)
		p.updateGaugesLocked()
		p.mu.Unlock()

		go p.run(slot, pt)
	}
}

// run drives one assigned task through its lifecycle on the given slot.
func (p *Pool) run(slot int, pt *pendingTask) {
	defer p.wg.Done()

	t := pt.task
	ctx := context.Background()
	start := time.Now().UTC()

	if err := p.registry.MarkRunning(ctx, t.ID, slot, start); err != nil {
		p.logger.Error("failed to transition to running", "task_id", t.ID, "error", err)
	}
	p.broker.Publish(t.ID, Event{Status: model.StatusRunning})
	p.logger.Info("task running", "task_id", t.ID, "renderer", slot, "format", t.Format)

	output, capName, err := p.execute(slot, t)
	durationMS := int(time.Since(start).Milliseconds())

	p.settle(pt, slot, output, capName, err, time.Now().UTC(), durationMS)

	p.mu.Lock()
	p.busy[slot] = false
	p.updateGaugesLocked()
	p.mu.Unlock()

	// Slot freed: re-drain the queue immediately.
	p.dispatch()
}

// execute resolves the capability and renders. A panicking capability is
// converted to an error so the slot is always freed and siblings are never
// affected.
func (p *Pool) execute(slot int, t *model.Task) (output, capName string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("render panicked: %v", rec)
		}
	}()

	c, err := p.caps.Resolve(t.Format, t.Input)
	if err != nil {
		return "", "", err
	}
	output, err = p.renderers[slot].Render(context.Background(), t.Input, c)
	return output, c.Name(), err
}

// settle writes the terminal registry entry, publishes the final event,
// records metrics and delivers the result exactly once.
func (p *Pool) settle(pt *pendingTask, slot int, output, capName string, err error, finishedAt time.Time, durationMS int) {
	t := pt.task

	settled := &model.Task{
		ID:         t.ID,
		DurationMS: &durationMS,
		FinishedAt: &finishedAt,
	}
	ev := Event{DurationMS: &durationMS}

	if err != nil {
		settled.Status = model.StatusError
		settled.Error = err.Error()
		ev.Status = model.StatusError
		ev.Error = err.Error()
		p.logger.Error("task failed", "task_id", t.ID, "renderer", slot, "error", err)
	} else {
		settled.Status = model.StatusDone
		settled.Result = output
		ev.Status = model.StatusDone
		p.logger.Info("task done", "task_id", t.ID, "renderer", slot, "duration_ms", durationMS)
	}

	if serr := p.registry.SettleTask(context.Background(), settled); serr != nil {
		p.logger.Error("failed to settle task", "task_id", t.ID, "error", serr)
	}

	p.broker.Publish(t.ID, ev)
	p.broker.Close(t.ID)

	tasksTotal.WithLabelValues(settled.Status).Inc()
	if capName != "" {
		renderDuration.WithLabelValues(capName).Observe(float64(durationMS) / 1000)
	}

	// Buffered channel: the send never blocks and settles exactly once.
	pt.done <- Result{Output: output, Err: err}
}

// updateGaugesLocked refreshes the queue and busy gauges. Callers hold mu.
func (p *Pool) updateGaugesLocked() {
	busy := 0
	for _, b := range p.busy {
		if b {
			busy++
		}
	}
	queueLength.Set(float64(len(p.queue)))
	busyRenderers.Set(float64(busy))
}
