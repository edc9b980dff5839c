package batch

import (
	"context"
	"iter"
	"slices"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/thecopy-and-thepaste/DA/internal/logging"
)

// TransformFunc maps one item to one result. It is called concurrently from
// several workers and must not mutate shared state without its own locking.
// Extra arguments are captured by the closure.
type TransformFunc[T, R any] func(ctx context.Context, item T) (R, error)

// job carries an input position with its value.
type job[T any] struct {
	index int
	item  T
}

// Run applies fn to every item on a bounded worker pool and returns the
// results in input order: result[i] is fn(items[i]).
//
// The pool size is the configured worker count, capped by WithMaxWorkers.
// Run blocks until every item is done or one fails. On failure the run's
// context is cancelled, workers stop taking new items, and the failing
// invocation's error is returned as is with no results.
func Run[T, R any](ctx context.Context, fn TransformFunc[T, R], items []T, opts ...Option) ([]R, error) {
	if fn == nil {
		return nil, ErrNilTransform
	}

	results := make([]R, len(items))
	if len(items) == 0 {
		return results, nil
	}

	o := newRunOptions(opts)
	store := func(i int, r R) { results[i] = r }
	if err := execute(ctx, o, len(items), slices.All(items), fn, store); err != nil {
		return nil, err
	}

	return results, nil
}

// RunSeq is Run over a sequence whose length is not known up front. Progress
// is reported without a total. Results are still returned in sequence order.
func RunSeq[T, R any](ctx context.Context, fn TransformFunc[T, R], seq iter.Seq[T], opts ...Option) ([]R, error) {
	if fn == nil {
		return nil, ErrNilTransform
	}

	o := newRunOptions(opts)
	logging.FromContext(ctx).Warn().
		Ctx(ctx).
		Str("component", "batch").
		Str("operation", o.name).
		Msg("total size cannot be calculated, progress is indeterminate")

	indexed := func(yield func(int, T) bool) {
		i := 0
		for item := range seq {
			if !yield(i, item) {
				return
			}
			i++
		}
	}

	var (
		mu      sync.Mutex
		results []R
	)
	store := func(i int, r R) {
		mu.Lock()
		defer mu.Unlock()
		if i >= len(results) {
			results = append(results, make([]R, i+1-len(results))...)
		}
		results[i] = r
	}

	if err := execute(ctx, o, 0, indexed, fn, store); err != nil {
		return nil, err
	}

	if results == nil {
		results = []R{}
	}
	return results, nil
}

// execute feeds items to a fixed set of workers. total is only used for
// sizing and progress; 0 means unknown.
func execute[T, R any](
	ctx context.Context,
	o *runOptions,
	total int,
	items iter.Seq2[int, T],
	fn TransformFunc[T, R],
	store func(int, R),
) error {
	workers := o.workerCount(total)
	runID := logging.NewTraceID()

	logger := logging.FromContext(ctx).With().
		Str("component", "batch").
		Str("operation", o.name).
		Str("run_id", runID).
		Int("workers", workers).
		Int("total", total).
		Logger()

	ctx, span := o.tracer.Start(ctx, "da.batch.run",
		trace.WithAttributes(
			attribute.String("da.batch.name", o.name),
			attribute.String("da.batch.run_id", runID),
			attribute.Int("da.batch.workers", workers),
			attribute.Int("da.batch.total", total),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	defer span.End()

	logger.Debug().Ctx(ctx).Msg("batch run starting")

	progress := NewProgress(total)
	reporter := o.progressReporter()
	// reporters see ProcessedItems in increasing order
	var reportMu sync.Mutex
	reporter.Start(progress.Snapshot())

	g, gctx := errgroup.WithContext(ctx)
	jobs := make(chan job[T])

	g.Go(func() error {
		defer close(jobs)
		for i, item := range items {
			select {
			case jobs <- job[T]{index: i, item: item}:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	for range workers {
		g.Go(func() error {
			for j := range jobs {
				if err := gctx.Err(); err != nil {
					return err
				}

				r, err := fn(gctx, j.item)
				if err != nil {
					logger.Error().
						Ctx(ctx).
						Err(err).
						Int("item_index", j.index).
						Msg("transform failed, cancelling run")
					return err
				}

				store(j.index, r)
				reportMu.Lock()
				progress.AddProcessed(1)
				reporter.Update(progress.Snapshot())
				reportMu.Unlock()
			}
			return nil
		})
	}

	err := g.Wait()
	snap := progress.Snapshot()
	reporter.Finish(snap)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error().
			Ctx(ctx).
			Err(err).
			Int("completed", snap.ProcessedItems).
			Msg("batch run failed")
		return err
	}

	span.SetAttributes(attribute.Int("da.batch.completed", snap.ProcessedItems))
	span.SetStatus(codes.Ok, "")
	logger.Debug().
		Ctx(ctx).
		Int("completed", snap.ProcessedItems).
		Dur("elapsed", snap.ElapsedTime).
		Msg("batch run completed")

	return nil
}
