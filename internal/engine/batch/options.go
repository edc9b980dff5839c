package batch

import (
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/thecopy-and-thepaste/DA/internal/config"
)

// tracerName is the instrumentation scope name for batch tracing.
const tracerName = "github.com/thecopy-and-thepaste/DA/internal/engine/batch"

// Common batch errors.
var (
	ErrNilTransform      = errors.New("transform function cannot be nil")
	ErrNilHandler        = errors.New("batch handler cannot be nil")
	ErrInvalidBatchSize  = errors.New("batch size must be at least 1")
	ErrInvalidNumBatches = errors.New("number of batches must be at least 1")
)

// Option configures Run, RunSeq and Batchify.
type Option func(*runOptions)

type runOptions struct {
	process      *config.ProcessConfig
	maxWorkers   int
	hideProgress bool
	reporter     Reporter
	tracer       trace.Tracer
	name         string

	numBatches    int
	numBatchesSet bool
	batchSize     int
	batchSizeSet  bool
}

func newRunOptions(opts []Option) *runOptions {
	o := &runOptions{
		process: config.Process(),
		name:    "run",
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer(tracerName)
	}
	return o
}

// WithProcessConfig reads worker and batch counts from p instead of the
// process-wide config.
func WithProcessConfig(p *config.ProcessConfig) Option {
	return func(o *runOptions) {
		if p != nil {
			o.process = p
		}
	}
}

// WithMaxWorkers caps the pool size. The pool never exceeds the configured
// worker count; n <= 0 means no cap.
func WithMaxWorkers(n int) Option {
	return func(o *runOptions) {
		o.maxWorkers = n
	}
}

// WithHideProgress disables progress reporting.
func WithHideProgress() Option {
	return func(o *runOptions) {
		o.hideProgress = true
	}
}

// WithReporter sends progress to r instead of the default terminal bar.
func WithReporter(r Reporter) Option {
	return func(o *runOptions) {
		o.reporter = r
	}
}

// WithTracer sets the tracer used for run spans.
func WithTracer(t trace.Tracer) Option {
	return func(o *runOptions) {
		o.tracer = t
	}
}

// WithName labels the run in logs, spans and the progress bar.
func WithName(name string) Option {
	return func(o *runOptions) {
		o.name = name
	}
}

// WithNumBatches sets how many batches Batchify splits the data into.
// Ignored by Run and when WithBatchSize is also given.
func WithNumBatches(n int) Option {
	return func(o *runOptions) {
		o.numBatches = n
		o.numBatchesSet = true
	}
}

// WithBatchSize sets the Batchify window size directly. Ignored by Run.
func WithBatchSize(n int) Option {
	return func(o *runOptions) {
		o.batchSize = n
		o.batchSizeSet = true
	}
}

// workerCount resolves the pool size for a run over total items; total <= 0
// means the size is unknown.
func (o *runOptions) workerCount(total int) int {
	workers := o.process.NumWorkers()
	if o.maxWorkers > 0 && o.maxWorkers < workers {
		workers = o.maxWorkers
	}
	if total > 0 && total < workers {
		workers = total
	}
	return workers
}

func (o *runOptions) progressReporter() Reporter {
	if o.hideProgress {
		return nopReporter{}
	}
	if o.reporter != nil {
		return o.reporter
	}
	return DefaultReporter(o.name)
}
