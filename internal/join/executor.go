package join

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Executor schedules callbacks onto an execution context.
//
// Dispatch must return without running fn inline and must not block: a Group
// dispatches drained callbacks while holding its lock.
type Executor interface {
	Dispatch(fn func())
}

type background struct{}

func (background) Dispatch(fn func()) {
	go fn()
}

// Background runs every callback on its own goroutine.
var Background Executor = background{}

// SerialQueue runs callbacks one at a time, in dispatch order, on a single loop goroutine.
// Dispatch never blocks; the queue is unbounded.
type SerialQueue struct {
	name string

	mu      sync.Mutex
	pending []func()
	wake    chan struct{}
	done    chan struct{}
	started bool
}

// NewSerialQueue creates a serial queue. The queue does nothing until Run or Start is called.
func NewSerialQueue(name string) *SerialQueue {
	return &SerialQueue{
		name: name,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Name returns the queue name
func (q *SerialQueue) Name() string {
	return q.name
}

// Dispatch appends fn to the queue
func (q *SerialQueue) Dispatch(fn func()) {
	q.mu.Lock()
	q.pending = append(q.pending, fn)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Len returns the number of callbacks waiting to run
func (q *SerialQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Run drains the queue on the calling goroutine until ctx is cancelled.
// Callbacks still queued at cancellation are dropped. Run may only be called once.
func (q *SerialQueue) Run(ctx context.Context) error {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return fmt.Errorf("serial queue %q is already running", q.name)
	}
	q.started = true
	q.mu.Unlock()

	defer close(q.done)

	for {
		for {
			fn, ok := q.next()
			if !ok {
				break
			}
			if ctx.Err() != nil {
				return nil
			}
			q.invoke(fn)
		}

		select {
		case <-q.wake:
		case <-ctx.Done():
			slog.Debug("Serial queue stopping", "queue", q.name, "dropped", q.Len())
			return nil
		}
	}
}

// Start runs the queue on a new goroutine
func (q *SerialQueue) Start(ctx context.Context) {
	go func() {
		if err := q.Run(ctx); err != nil {
			slog.Error("Serial queue failed to start", "queue", q.name, "error", err)
		}
	}()
}

// Done is closed once Run has returned
func (q *SerialQueue) Done() <-chan struct{} {
	return q.done
}

func (q *SerialQueue) next() (func(), bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return nil, false
	}
	fn := q.pending[0]
	q.pending[0] = nil
	q.pending = q.pending[1:]
	return fn, true
}

// invoke runs a single callback; a panic is logged and the loop keeps going.
func (q *SerialQueue) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Recovered panic in serial queue callback", "queue", q.name, "panic", r)
		}
	}()
	fn()
}
