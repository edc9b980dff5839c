package batch

import (
	"context"
	"fmt"
)

// Batch is the half-open index window [Start, End) over a collection. End may
// run past the collection's length on the last batch; use Clamp or Window.
type Batch struct {
	Start int
	End   int
}

// Clamp returns b with End capped at n.
func (b Batch) Clamp(n int) Batch {
	return Batch{Start: b.Start, End: min(b.End, n)}
}

// Len is the number of indexes the window spans before clamping.
func (b Batch) Len() int {
	return b.End - b.Start
}

func (b Batch) String() string {
	return fmt.Sprintf("[%d, %d)", b.Start, b.End)
}

// Window returns the part of data covered by b.
func Window[T any](b Batch, data []T) []T {
	c := b.Clamp(len(data))
	if c.Start >= c.End {
		return nil
	}
	return data[c.Start:c.End]
}

// BatchHandler processes one window of data. data is the whole collection;
// the handler reads data[b.Start:min(b.End, len(data))]. A nil result means
// the batch produced nothing and is skipped when flattening.
type BatchHandler[T, R any] func(ctx context.Context, b Batch, data []T) ([]R, error)

// BatchSize returns ceil(total / numBatches).
func BatchSize(total, numBatches int) (int, error) {
	if numBatches < 1 {
		return 0, fmt.Errorf("%w: got %d", ErrInvalidNumBatches, numBatches)
	}
	if total <= 0 {
		return 1, nil
	}
	return (total + numBatches - 1) / numBatches, nil
}

// Batches returns the windows (start, start+size) stepping by size while
// start < total. Together they cover [0, total) exactly once.
func Batches(total, size int) ([]Batch, error) {
	if size < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidBatchSize, size)
	}
	if total <= 0 {
		return []Batch{}, nil
	}

	out := make([]Batch, 0, (total+size-1)/size)
	for start := 0; start < total; start += size {
		out = append(out, Batch{Start: start, End: start + size})
	}
	return out, nil
}

// Batchify splits data into contiguous windows, runs handler once per window
// through Run and concatenates the non-nil results in batch order.
//
// The window size is WithBatchSize if given, otherwise ceil(len(data) / n)
// where n is WithNumBatches or the configured batch count. If data is empty or
// every handler returns nil, Batchify returns a nil slice; otherwise the
// result is non-nil, possibly empty.
func Batchify[T, R any](ctx context.Context, handler BatchHandler[T, R], data []T, opts ...Option) ([]R, error) {
	if handler == nil {
		return nil, ErrNilHandler
	}

	opts = append([]Option{WithName("batchify")}, opts...)
	o := newRunOptions(opts)

	size, err := o.resolveBatchSize(len(data))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}

	batches, err := Batches(len(data), size)
	if err != nil {
		return nil, err
	}

	perBatch, err := Run(ctx, func(ctx context.Context, b Batch) ([]R, error) {
		return handler(ctx, b, data)
	}, batches, opts...)
	if err != nil {
		return nil, err
	}

	return Flatten(perBatch), nil
}

// Flatten concatenates parts in order, skipping nil parts. It returns nil only
// when every part is nil.
func Flatten[R any](parts [][]R) []R {
	var (
		n       int
		present bool
	)
	for _, p := range parts {
		if p != nil {
			present = true
			n += len(p)
		}
	}
	if !present {
		return nil
	}

	out := make([]R, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func (o *runOptions) resolveBatchSize(total int) (int, error) {
	if o.batchSizeSet {
		if o.batchSize < 1 {
			return 0, fmt.Errorf("%w: got %d", ErrInvalidBatchSize, o.batchSize)
		}
		return o.batchSize, nil
	}

	numBatches := o.process.NumBatches()
	if o.numBatchesSet {
		numBatches = o.numBatches
	}
	return BatchSize(total, numBatches)
}
