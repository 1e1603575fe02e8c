// Package renderer provides one worker slot of the render pool. A Renderer
// executes a single request end-to-end by driving the external capability
// through an ordered chain of fallback strategies, each individually
// time-boxed, because the capability's completion signal is unreliable and
// varies between implementations.
package renderer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sctg/renderpool/internal/capability"
)

const (
	// DefaultTimeout is the per-strategy time box when none is configured.
	DefaultTimeout = 5000 * time.Millisecond

	// DefaultSettle is the staged-output poll window when none is configured.
	DefaultSettle = 1500 * time.Millisecond

	// pollInterval is how often the staged strategy re-checks the stage.
	pollInterval = 25 * time.Millisecond
)

// Renderer is one worker slot. It knows how to run one request to completion
// or failure; busy/idle discipline toward callers is owned by the pool, not
// by the Renderer. Each staged attempt gets its own Stage, so output from an
// earlier task can never surface in a later one.
type Renderer struct {
	id      int
	timeout time.Duration
	settle  time.Duration
	logger  *slog.Logger
}

// strategy is one entry of the fallback chain. run reports supported=false
// when the capability does not expose the matching invocation shape, in
// which case the attempt does not count against the request.
type strategy struct {
	name string
	run  func(ctx context.Context, input string, c capability.Capability) (output string, supported bool, err error)
}

// New creates a renderer slot. Non-positive timeout or settle values fall
// back to the defaults.
func New(id int, timeout, settle time.Duration, logger *slog.Logger) *Renderer {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if settle <= 0 {
		settle = DefaultSettle
	}
	return &Renderer{
		id:      id,
		timeout: timeout,
		settle:  settle,
		logger:  logger,
	}
}

// ID returns the slot identifier.
func (r *Renderer) ID() int { return r.id }

// Render executes one request against the given capability. Strategies are
// tried strictly in order — direct call, mount-and-poll, callback with
// timeout — and the first success short-circuits the rest. Worst case
// latency is the sum of the per-strategy time boxes; that trade of latency
// for correctness is deliberate.
//
// Failure is classified as ErrCompile when the capability explicitly rejects
// the input (the chain stops immediately), ErrTimeout when every attempted
// strategy hit its time box, and ErrExhaustedStrategies otherwise.
func (r *Renderer) Render(ctx context.Context, input string, c capability.Capability) (string, error) {
	chain := []strategy{
		{name: "direct", run: r.renderDirect},
		{name: "staged", run: r.renderStaged},
		{name: "callback", run: r.renderCallback},
	}

	attempts := 0
	timeouts := 0
	var lastErr error

	for _, s := range chain {
		attemptCtx, cancel := context.WithTimeout(ctx, r.timeout)
		output, supported, err := s.run(attemptCtx, input, c)
		cancel()

		if !supported {
			continue
		}
		attempts++

		if err != nil {
			if errors.Is(err, capability.ErrInvalidInput) {
				return "", fmt.Errorf("%w: %v", ErrCompile, err)
			}
			if errors.Is(err, context.DeadlineExceeded) {
				timeouts++
			}
			lastErr = err
			r.logger.Debug("render strategy failed",
				"renderer", r.id,
				"strategy", s.name,
				"capability", c.Name(),
				"error", err,
			)
			continue
		}

		if strings.Contains(output, c.Marker()) {
			r.logger.Debug("render strategy succeeded",
				"renderer", r.id,
				"strategy", s.name,
				"capability", c.Name(),
			)
			return output, nil
		}

		// Completed without an error but the output is not usable.
		lastErr = fmt.Errorf("strategy %s: output missing marker %q", s.name, c.Marker())
	}

	if attempts == 0 {
		return "", fmt.Errorf("%w: capability %q exposes no known invocation shape",
			ErrExhaustedStrategies, c.Name())
	}
	if timeouts == attempts {
		return "", fmt.Errorf("%w: no strategy completed within %s", ErrTimeout, r.timeout)
	}
	if lastErr != nil {
		return "", fmt.Errorf("%w: %v", ErrExhaustedStrategies, lastErr)
	}
	return "", ErrExhaustedStrategies
}

// renderDirect invokes the capability's plain render call.
func (r *Renderer) renderDirect(ctx context.Context, input string, c capability.Capability) (string, bool, error) {
	d, ok := c.(capability.Direct)
	if !ok {
		return "", false, nil
	}
	output, err := d.Render(ctx, input)
	return output, true, err
}

// renderStaged hands the capability a staging area private to this attempt,
// then polls it for the expected marker within the settle window. The window
// is a bounded wait, not a hard completion guarantee, which is why this shape
// sits behind the direct call in the chain. The stage is never reused: a
// writer goroutine that fires after the window expires scribbles on a buffer
// nothing will ever read, instead of on the next task's output.
func (r *Renderer) renderStaged(ctx context.Context, input string, c capability.Capability) (string, bool, error) {
	s, ok := c.(capability.Staged)
	if !ok {
		return "", false, nil
	}

	stage := NewStage()
	if err := s.RenderInto(ctx, input, stage); err != nil {
		return "", true, err
	}

	settleCtx, cancel := context.WithTimeout(ctx, r.settle)
	defer cancel()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		if contents := stage.Contents(); strings.Contains(contents, c.Marker()) {
			return contents, true, nil
		}
		select {
		case <-settleCtx.Done():
			return "", true, fmt.Errorf("staged output did not settle within %s: %w",
				r.settle, context.DeadlineExceeded)
		case <-ticker.C:
		}
	}
}

// renderCallback invokes the callback shape guarded by the attempt's
// deadline. The callback may fire late, never, or more than once; the result
// channel is buffered and the once guard makes every outcome safe.
func (r *Renderer) renderCallback(ctx context.Context, input string, c capability.Capability) (string, bool, error) {
	cb, ok := c.(capability.Callback)
	if !ok {
		return "", false, nil
	}

	type callbackResult struct {
		output string
		err    error
	}

	resultCh := make(chan callbackResult, 1)
	var once sync.Once
	cb.RenderAsync(input, func(output string, err error) {
		once.Do(func() {
			resultCh <- callbackResult{output: output, err: err}
		})
	})

	select {
	case res := <-resultCh:
		return res.output, true, res.err
	case <-ctx.Done():
		return "", true, ctx.Err()
	}
}
