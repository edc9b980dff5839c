package batch

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/thecopy-and-thepaste/DA/internal/config"
)

var errBoom = errors.New("boom")

func processWith(t *testing.T, workers int) *config.ProcessConfig {
	t.Helper()
	p := config.NewProcessConfig()
	require.NoError(t, p.SetNumWorkers(workers))
	return p
}

func intsUpTo(n int) []int {
	items := make([]int, n)
	for i := range items {
		items[i] = i
	}
	return items
}

func square(_ context.Context, x int) (int, error) {
	return x * x, nil
}

func TestRun_PreservesOrder(t *testing.T) {
	for _, n := range []int{1, 2, 7, 100, 3000} {
		for _, w := range []int{1, n} {
			t.Run(fmt.Sprintf("N=%d/W=%d", n, w), func(t *testing.T) {
				items := intsUpTo(n)

				got, err := Run(context.Background(), square, items,
					WithProcessConfig(processWith(t, w)), WithHideProgress())
				require.NoError(t, err)
				require.Len(t, got, n)
				for i, v := range got {
					assert.Equal(t, i*i, v, "index %d", i)
				}
			})
		}
	}
}

func TestRun_OrderWithUnevenDurations(t *testing.T) {
	items := intsUpTo(50)
	slow := func(_ context.Context, x int) (string, error) {
		// later items finish first
		time.Sleep(time.Duration(50-x) * 100 * time.Microsecond)
		return fmt.Sprintf("item-%d", x), nil
	}

	got, err := Run(context.Background(), slow, items,
		WithProcessConfig(processWith(t, 8)), WithHideProgress())
	require.NoError(t, err)
	for i, v := range got {
		assert.Equal(t, fmt.Sprintf("item-%d", i), v)
	}
}

func TestRun_Empty(t *testing.T) {
	var calls atomic.Int32
	fn := func(_ context.Context, x int) (int, error) {
		calls.Add(1)
		return x, nil
	}

	got, err := Run(context.Background(), fn, nil, WithHideProgress())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Zero(t, calls.Load())
}

func TestRun_NilTransform(t *testing.T) {
	_, err := Run[int, int](context.Background(), nil, []int{1})
	assert.ErrorIs(t, err, ErrNilTransform)
}

func TestRun_FailFast(t *testing.T) {
	for _, k := range []int{0, 17, 99} {
		t.Run(fmt.Sprintf("k=%d", k), func(t *testing.T) {
			items := intsUpTo(100)
			fn := func(_ context.Context, x int) (int, error) {
				if x == k {
					return 0, errBoom
				}
				return x, nil
			}

			got, err := Run(context.Background(), fn, items,
				WithProcessConfig(processWith(t, 4)), WithHideProgress())
			require.Error(t, err)
			assert.Same(t, errBoom, err)
			assert.Nil(t, got)
		})
	}
}

func TestRun_StopsSchedulingAfterFailure(t *testing.T) {
	items := intsUpTo(100)
	var calls atomic.Int32
	fn := func(_ context.Context, x int) (int, error) {
		calls.Add(1)
		if x == 3 {
			return 0, errBoom
		}
		return x, nil
	}

	_, err := Run(context.Background(), fn, items,
		WithProcessConfig(processWith(t, 1)), WithHideProgress())
	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, int32(4), calls.Load())
}

func TestRun_FailureCancelsInFlightWork(t *testing.T) {
	items := intsUpTo(8)
	var cancelled atomic.Int32
	fn := func(ctx context.Context, x int) (int, error) {
		if x == 0 {
			time.Sleep(10 * time.Millisecond)
			return 0, errBoom
		}
		select {
		case <-ctx.Done():
			cancelled.Add(1)
			return 0, ctx.Err()
		case <-time.After(5 * time.Second):
			return x, nil
		}
	}

	start := time.Now()
	_, err := Run(context.Background(), fn, items,
		WithProcessConfig(processWith(t, 4)), WithHideProgress())
	require.ErrorIs(t, err, errBoom)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Positive(t, cancelled.Load())
}

func TestRun_MaxWorkersCapsConcurrency(t *testing.T) {
	items := intsUpTo(40)
	var inFlight, peak atomic.Int32
	fn := func(_ context.Context, x int) (int, error) {
		cur := inFlight.Add(1)
		for {
			old := peak.Load()
			if cur <= old || peak.CompareAndSwap(old, cur) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		inFlight.Add(-1)
		return x, nil
	}

	_, err := Run(context.Background(), fn, items,
		WithProcessConfig(processWith(t, 8)), WithMaxWorkers(2), WithHideProgress())
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.Positive(t, peak.Load())
}

func TestRun_ParentContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got, err := Run(ctx, square, intsUpTo(10), WithHideProgress())
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, got)
}

func TestRun_ReportsProgress(t *testing.T) {
	var (
		mu    sync.Mutex
		final ProgressSnapshot
		calls int
	)
	reporter := ProgressFunc(func(s ProgressSnapshot) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if s.ProcessedItems >= final.ProcessedItems {
			final = s
		}
	})

	_, err := Run(context.Background(), square, intsUpTo(25),
		WithProcessConfig(processWith(t, 3)), WithReporter(reporter))
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 26, calls)
	assert.Equal(t, 25, final.ProcessedItems)
	assert.Equal(t, 25, final.TotalItems)
	assert.InDelta(t, 100.0, final.PercentComplete, 0.001)
}

func TestRun_ProgressIsMonotonic(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []int
	)
	reporter := ProgressFunc(func(s ProgressSnapshot) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, s.ProcessedItems)
	})

	_, err := Run(context.Background(), square, intsUpTo(500),
		WithProcessConfig(processWith(t, 8)), WithReporter(reporter))
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 501)
	for i := 1; i < len(seen)-1; i++ {
		assert.Equal(t, seen[i-1]+1, seen[i], "update %d", i)
	}
	assert.Equal(t, 500, seen[len(seen)-1])
}

func TestRun_HideProgressOverridesReporter(t *testing.T) {
	var calls atomic.Int32
	reporter := ProgressFunc(func(ProgressSnapshot) { calls.Add(1) })

	_, err := Run(context.Background(), square, intsUpTo(5),
		WithReporter(reporter), WithHideProgress())
	require.NoError(t, err)
	assert.Zero(t, calls.Load())
}

func TestRun_RecordsSpan(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	t.Run("success", func(t *testing.T) {
		_, err := Run(context.Background(), square, intsUpTo(5),
			WithTracer(tp.Tracer("test")), WithName("squares"), WithHideProgress())
		require.NoError(t, err)
	})
	t.Run("failure", func(t *testing.T) {
		fail := func(context.Context, int) (int, error) { return 0, errBoom }
		_, err := Run(context.Background(), fail, intsUpTo(5),
			WithTracer(tp.Tracer("test")), WithName("failing"), WithHideProgress())
		require.Error(t, err)
	})

	spans := sr.Ended()
	require.Len(t, spans, 2)
	for _, s := range spans {
		assert.Equal(t, "da.batch.run", s.Name())
	}
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, errBoom.Error(), spans[1].Status().Description)
}

func TestRunSeq(t *testing.T) {
	t.Run("preserves order", func(t *testing.T) {
		items := intsUpTo(500)
		got, err := RunSeq(context.Background(), square, slices.Values(items),
			WithProcessConfig(processWith(t, 6)), WithHideProgress())
		require.NoError(t, err)
		require.Len(t, got, 500)
		for i, v := range got {
			assert.Equal(t, i*i, v)
		}
	})

	t.Run("empty sequence", func(t *testing.T) {
		got, err := RunSeq(context.Background(), square, slices.Values([]int{}), WithHideProgress())
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("progress has no total", func(t *testing.T) {
		var last atomic.Value
		reporter := ProgressFunc(func(s ProgressSnapshot) { last.Store(s) })

		_, err := RunSeq(context.Background(), square, slices.Values(intsUpTo(10)),
			WithReporter(reporter))
		require.NoError(t, err)

		snap, ok := last.Load().(ProgressSnapshot)
		require.True(t, ok)
		assert.True(t, snap.Indeterminate())
		assert.Equal(t, 10, snap.ProcessedItems)
	})

	t.Run("fail fast", func(t *testing.T) {
		fn := func(_ context.Context, x int) (int, error) {
			if x == 42 {
				return 0, errBoom
			}
			return x, nil
		}
		got, err := RunSeq(context.Background(), fn, slices.Values(intsUpTo(100)), WithHideProgress())
		require.ErrorIs(t, err, errBoom)
		assert.Nil(t, got)
	})
}

func TestWorkerCount(t *testing.T) {
	tests := []struct {
		name       string
		workers    int
		maxWorkers int
		total      int
		want       int
	}{
		{name: "configured", workers: 4, total: 100, want: 4},
		{name: "capped", workers: 4, maxWorkers: 2, total: 100, want: 2},
		{name: "cap above configured", workers: 4, maxWorkers: 16, total: 100, want: 4},
		{name: "fewer items", workers: 8, total: 3, want: 3},
		{name: "unknown total", workers: 8, total: 0, want: 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := newRunOptions([]Option{
				WithProcessConfig(processWith(t, tt.workers)),
				WithMaxWorkers(tt.maxWorkers),
			})
			assert.Equal(t, tt.want, o.workerCount(tt.total))
		})
	}
}
