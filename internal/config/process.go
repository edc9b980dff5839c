package config

import (
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
)

// ErrInvalidProcessValue is returned when a worker or batch count below 1 is set.
var ErrInvalidProcessValue = errors.New("process value must be at least 1")

// ProcessConfig holds the worker and batch counts used by the batch executor.
//
// An unset value resolves to DefaultParallelism on every read. Overrides are
// meant to be applied at startup or in test setup, before any batch run begins;
// a run reads the values once when it starts.
type ProcessConfig struct {
	numWorkers atomic.Int64
	numBatches atomic.Int64
}

//nolint:gochecknoglobals // one logical ProcessConfig per process
var process = NewProcessConfig()

// Process returns the process-wide ProcessConfig shared by every caller that
// does not thread its own instance.
func Process() *ProcessConfig {
	return process
}

// NewProcessConfig returns a ProcessConfig with no overrides.
func NewProcessConfig() *ProcessConfig {
	return &ProcessConfig{}
}

// DefaultParallelism is the number of CPUs minus one, floored at 1.
func DefaultParallelism() int {
	return max(runtime.NumCPU()-1, 1)
}

// NumWorkers returns the worker pool size.
func (p *ProcessConfig) NumWorkers() int {
	if n := p.numWorkers.Load(); n > 0 {
		return int(n)
	}
	return DefaultParallelism()
}

// NumBatches returns the number of batches a collection is split into.
func (p *ProcessConfig) NumBatches() int {
	if n := p.numBatches.Load(); n > 0 {
		return int(n)
	}
	return DefaultParallelism()
}

// SetNumWorkers overrides the worker pool size.
func (p *ProcessConfig) SetNumWorkers(n int) error {
	if n < 1 {
		return fmt.Errorf("%w: num_workers=%d", ErrInvalidProcessValue, n)
	}
	p.numWorkers.Store(int64(n))
	return nil
}

// SetNumBatches overrides the number of batches.
func (p *ProcessConfig) SetNumBatches(n int) error {
	if n < 1 {
		return fmt.Errorf("%w: num_batches=%d", ErrInvalidProcessValue, n)
	}
	p.numBatches.Store(int64(n))
	return nil
}

// Reset clears both overrides.
func (p *ProcessConfig) Reset() {
	p.numWorkers.Store(0)
	p.numBatches.Store(0)
}

// ProcessSettings is the YAML form of the process overrides. Zero means "derive
// from available parallelism".
type ProcessSettings struct {
	NumWorkers int `yaml:"num_workers,omitempty" json:"num_workers,omitempty"`
	NumBatches int `yaml:"num_batches,omitempty" json:"num_batches,omitempty"`
}

// Validate rejects negative counts.
func (s ProcessSettings) Validate() error {
	if s.NumWorkers < 0 {
		return fmt.Errorf("%w: num_workers=%d", ErrInvalidProcessValue, s.NumWorkers)
	}
	if s.NumBatches < 0 {
		return fmt.Errorf("%w: num_batches=%d", ErrInvalidProcessValue, s.NumBatches)
	}
	return nil
}

// Apply copies the non-zero settings onto p.
func (s ProcessSettings) Apply(p *ProcessConfig) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if s.NumWorkers > 0 {
		if err := p.SetNumWorkers(s.NumWorkers); err != nil {
			return err
		}
	}
	if s.NumBatches > 0 {
		if err := p.SetNumBatches(s.NumBatches); err != nil {
			return err
		}
	}
	return nil
}
