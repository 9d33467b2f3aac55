package join

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/stacklok/joingroup/internal/telemetry"
)

// WaitResult is the outcome of a bounded wait
type WaitResult int

const (
	// WaitCompleted means the batch drained before the deadline
	WaitCompleted WaitResult = iota

	// WaitTimedOut means the deadline passed with operations still pending
	WaitTimedOut
)

// String returns the lowercase name of the result
func (r WaitResult) String() string {
	switch r {
	case WaitCompleted:
		return "completed"
	case WaitTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// callback is a continuation waiting for the current batch to drain
type callback struct {
	exec Executor
	fn   func()
}

// Group is a join coordinator. The zero value is not usable; create groups with New.
// All methods are safe for concurrent use.
type Group struct {
	name    string
	metrics *telemetry.JoinMetrics

	mu         sync.Mutex
	pending    int
	generation uint64
	callbacks  []callback
	drained    chan struct{} // closed while pending == 0
	batchStart time.Time
}

// Option configures a Group
type Option func(*Group)

// WithName sets the name used in logs, metrics and violations
func WithName(name string) Option {
	return func(g *Group) {
		g.name = name
	}
}

// WithMetrics sets the metrics recorder for the group
func WithMetrics(metrics *telemetry.JoinMetrics) Option {
	return func(g *Group) {
		g.metrics = metrics
	}
}

// New creates an empty group
func New(opts ...Option) *Group {
	drained := make(chan struct{})
	close(drained)

	g := &Group{
		name:    "default",
		drained: drained,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Name returns the group name
func (g *Group) Name() string {
	return g.name
}

// Enter registers one more pending operation
func (g *Group) Enter() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.pending == 0 {
		g.drained = make(chan struct{})
		g.batchStart = time.Now()
	}
	g.pending++
}

// Leave marks one pending operation as finished. When the count reaches zero every
// callback registered for the batch is dispatched and waiters are released.
// Calling Leave with nothing pending returns a *ProtocolViolation and changes nothing.
func (g *Group) Leave() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.pending == 0 {
		err := &ProtocolViolation{
			Group:      g.name,
			Generation: g.generation,
			Err:        ErrUnbalancedLeave,
		}
		slog.Error("Unbalanced leave on join group",
			"group", g.name,
			"generation", g.generation,
			"error", err)
		g.metrics.RecordProtocolViolation(context.Background(), g.name)
		return err
	}

	g.pending--
	if g.pending > 0 {
		return nil
	}

	callbacks := g.callbacks
	g.callbacks = nil
	g.generation++
	close(g.drained)

	duration := time.Since(g.batchStart)
	g.metrics.RecordBatchDuration(context.Background(), g.name, duration)
	slog.Debug("Join group drained",
		"group", g.name,
		"generation", g.generation,
		"callbacks", len(callbacks),
		"duration", duration)

	// Dispatch under the lock so no Enter for the next batch can interleave.
	for _, cb := range callbacks {
		cb.exec.Dispatch(cb.fn)
	}
	return nil
}

// Notify registers fn to run on exec once the current batch drains. If nothing is
// pending fn is dispatched right away. A nil exec means Background.
func (g *Group) Notify(exec Executor, fn func()) {
	if exec == nil {
		exec = Background
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.pending == 0 {
		exec.Dispatch(fn)
		return
	}
	g.callbacks = append(g.callbacks, callback{exec: exec, fn: fn})
}

// Wait blocks until the current batch drains or timeout elapses. A timeout of zero
// or less has already elapsed: Wait reports the current state without blocking.
// Use WaitContext to wait without a bound.
//
// Wait must not be called from the goroutine that delivers the outstanding Leave calls.
func (g *Group) Wait(timeout time.Duration) WaitResult {
	drained := g.drainedChan()

	var result WaitResult
	if timeout <= 0 {
		select {
		case <-drained:
			result = WaitCompleted
		default:
			result = WaitTimedOut
		}
	} else {
		timer := time.NewTimer(timeout)
		defer timer.Stop()

		select {
		case <-drained:
			result = WaitCompleted
		case <-timer.C:
			result = WaitTimedOut
		}
	}

	g.metrics.RecordWait(context.Background(), g.name, result.String())
	return result
}

// WaitContext blocks until the current batch drains or ctx is done
func (g *Group) WaitContext(ctx context.Context) error {
	drained := g.drainedChan()

	select {
	case <-drained:
		g.metrics.RecordWait(ctx, g.name, WaitCompleted.String())
		return nil
	case <-ctx.Done():
		g.metrics.RecordWait(ctx, g.name, WaitTimedOut.String())
		return ctx.Err()
	}
}

// Pending returns the number of outstanding operations
func (g *Group) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pending
}

// Generation returns the number of batches drained so far
func (g *Group) Generation() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.generation
}

func (g *Group) drainedChan() <-chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.drained
}
