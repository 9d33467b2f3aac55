package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/stacklok/joingroup/internal/join"
	"github.com/stacklok/joingroup/internal/otel"
	"github.com/stacklok/joingroup/internal/records"
	"github.com/stacklok/joingroup/internal/telemetry"
)

// Result is the outcome of one fetch in a batch
type Result struct {
	Ref      records.Ref
	Record   records.Record
	Err      error
	Duration time.Duration
}

// Batch is a set of fetches that complete together
type Batch struct {
	ID       string
	Results  []Result
	Started  time.Time
	Finished time.Time
}

// Failed returns the results that ended in an error
func (b *Batch) Failed() []Result {
	var failed []Result
	for _, r := range b.Results {
		if r.Err != nil {
			failed = append(failed, r)
		}
	}
	return failed
}

// Records returns the records fetched successfully, in request order
func (b *Batch) Records() []records.Record {
	out := make([]records.Record, 0, len(b.Results))
	for _, r := range b.Results {
		if r.Err == nil {
			out = append(out, r.Record)
		}
	}
	return out
}

// Orchestrator launches batches of concurrent fetches and joins their completion
type Orchestrator struct {
	fetcher     Fetcher
	sem         *semaphore.Weighted
	metrics     *telemetry.FetchMetrics
	joinMetrics *telemetry.JoinMetrics
	tracer      trace.Tracer
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithMaxInFlight caps the number of fetches running at once across all batches.
// Zero or less means no cap.
func WithMaxInFlight(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.sem = semaphore.NewWeighted(int64(n))
		}
	}
}

// WithFetchMetrics sets the per-fetch metrics recorder
func WithFetchMetrics(metrics *telemetry.FetchMetrics) Option {
	return func(o *Orchestrator) {
		o.metrics = metrics
	}
}

// WithJoinMetrics sets the metrics recorder passed to every batch group
func WithJoinMetrics(metrics *telemetry.JoinMetrics) Option {
	return func(o *Orchestrator) {
		o.joinMetrics = metrics
	}
}

// WithTracer sets the tracer used for batch and fetch spans
func WithTracer(tracer trace.Tracer) Option {
	return func(o *Orchestrator) {
		o.tracer = tracer
	}
}

// New creates an orchestrator around fetcher
func New(fetcher Fetcher, opts ...Option) *Orchestrator {
	o := &Orchestrator{fetcher: fetcher}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Start launches one fetch per ref and returns the group tracking them. done runs on
// exec exactly once, after every fetch has finished, with results in request order.
// Start never blocks on the fetches themselves.
func (o *Orchestrator) Start(ctx context.Context, refs []records.Ref, exec join.Executor, done func(*Batch)) *join.Group {
	batch := &Batch{
		ID:      uuid.NewString(),
		Results: make([]Result, len(refs)),
		Started: time.Now(),
	}

	ctx, span := otel.StartSpan(ctx, o.tracer, "fetch.batch",
		trace.WithAttributes(
			otel.AttrBatchID.String(batch.ID),
			otel.AttrBatchSize.Int(len(refs)),
		))

	group := join.New(join.WithName("batch-"+batch.ID), join.WithMetrics(o.joinMetrics))

	slog.Debug("Starting fetch batch", "batch_id", batch.ID, "size", len(refs))

	for i, ref := range refs {
		guard := group.Acquire()
		go func() {
			defer guard.Release()
			batch.Results[i] = o.fetchOne(ctx, ref)
		}()
	}

	group.Notify(exec, func() {
		batch.Finished = time.Now()
		failed := len(batch.Failed())
		span.SetAttributes(attribute.Int("batch.failed", failed))
		span.End()

		slog.Info("Fetch batch complete",
			"batch_id", batch.ID,
			"size", len(batch.Results),
			"failed", failed,
			"duration", batch.Finished.Sub(batch.Started))
		done(batch)
	})

	return group
}

// Run fetches refs and blocks until the batch completes or timeout elapses. On timeout
// the outstanding fetches are cancelled and no batch is returned. A timeout of zero or
// less times out unless refs is empty.
func (o *Orchestrator) Run(ctx context.Context, refs []records.Ref, timeout time.Duration) (*Batch, join.WaitResult) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	delivered := make(chan *Batch, 1)
	group := o.Start(ctx, refs, join.Background, func(b *Batch) {
		delivered <- b
	})

	if group.Wait(timeout) == join.WaitTimedOut {
		slog.Warn("Fetch batch timed out",
			"group", group.Name(),
			"pending", group.Pending(),
			"timeout", timeout)
		return nil, join.WaitTimedOut
	}

	return <-delivered, join.WaitCompleted
}

// fetchOne runs a single fetch, waiting for a slot when the orchestrator is capped
func (o *Orchestrator) fetchOne(ctx context.Context, ref records.Ref) Result {
	result := Result{Ref: ref}

	if o.sem != nil {
		if err := o.sem.Acquire(ctx, 1); err != nil {
			result.Err = fmt.Errorf("failed to acquire fetch slot for %s: %w", ref, err)
			return result
		}
		defer o.sem.Release(1)
	}

	ctx, span := otel.StartSpan(ctx, o.tracer, "fetch.record",
		trace.WithAttributes(
			otel.AttrRecordKind.String(string(ref.Kind)),
			otel.AttrRecordID.String(ref.ID),
		))
	defer span.End()

	start := time.Now()
	result.Record, result.Err = o.fetcher.Fetch(ctx, ref)
	result.Duration = time.Since(start)

	o.metrics.RecordFetchDuration(ctx, string(ref.Kind), result.Duration, result.Err == nil)

	if result.Err != nil {
		otel.RecordError(span, result.Err)
		slog.Warn("Fetch failed", "ref", ref.String(), "error", result.Err)
		return result
	}

	slog.Debug("Fetch succeeded", "ref", ref.String(), "duration", result.Duration)
	return result
}
