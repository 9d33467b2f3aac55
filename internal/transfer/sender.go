package transfer

import (
	"context"
	"log/slog"
	"time"

	"github.com/stacklok/joingroup/internal/join"
	"github.com/stacklok/joingroup/internal/telemetry"
)

// DefaultTimeout is how long Send waits for the duplicate check
const DefaultTimeout = 5 * time.Second

// Outcome is the result of a send attempt
type Outcome struct {
	Duplicate bool
	TimedOut  bool
	Err       error
}

// Message returns the user facing summary of the outcome
func (o Outcome) Message() string {
	switch {
	case o.TimedOut:
		return "Duplicate check timed out"
	case o.Err != nil:
		return o.Err.Error()
	case o.Duplicate:
		return "Duplicate payment detected"
	default:
		return "Money sent"
	}
}

// Sent reports whether the money went out
func (o Outcome) Sent() bool {
	return !o.TimedOut && o.Err == nil && !o.Duplicate
}

// Sender runs the duplicate check and decides whether to send
type Sender struct {
	checker Checker
	timeout time.Duration
	metrics *telemetry.JoinMetrics
}

// SenderOption configures a Sender
type SenderOption func(*Sender)

// WithTimeout sets how long to wait for the duplicate check. Zero or less gives the
// check no time at all, so the transfer times out.
func WithTimeout(timeout time.Duration) SenderOption {
	return func(s *Sender) {
		s.timeout = timeout
	}
}

// WithMetrics sets the metrics recorder for the underlying join group
func WithMetrics(metrics *telemetry.JoinMetrics) SenderOption {
	return func(s *Sender) {
		s.metrics = metrics
	}
}

// NewSender creates a sender
func NewSender(checker Checker, opts ...SenderOption) *Sender {
	s := &Sender{
		checker: checker,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send starts the duplicate check and returns immediately. done runs on exec once
// with the outcome. The blocking wait happens on a background goroutine, never on exec.
// A check still running at the timeout is cancelled.
func (s *Sender) Send(ctx context.Context, exec join.Executor, done func(Outcome)) {
	if exec == nil {
		exec = join.Background
	}

	group := join.New(join.WithName("transfer"), join.WithMetrics(s.metrics))
	checkCtx, cancel := context.WithCancel(ctx)

	var (
		duplicate bool
		checkErr  error
	)
	guard := group.Acquire()
	go func() {
		defer guard.Release()
		duplicate, checkErr = s.checker.HasDuplicate(checkCtx)
	}()

	go func() {
		defer cancel()

		var outcome Outcome
		if group.Wait(s.timeout) == join.WaitTimedOut {
			outcome.TimedOut = true
		} else {
			outcome.Duplicate = duplicate
			outcome.Err = checkErr
		}

		slog.Info("Transfer decided",
			"sent", outcome.Sent(),
			"duplicate", outcome.Duplicate,
			"timed_out", outcome.TimedOut,
			"error", outcome.Err)
		exec.Dispatch(func() { done(outcome) })
	}()
}
