// Package batch runs transforms over ordered collections on a bounded worker pool.
//
// Two entry points share one executor:
//   - Run (and RunSeq) applies a transform to every item with a fixed number of
//     workers and returns the results in input order.
//   - Batchify splits a collection into contiguous index windows, runs a handler
//     once per window through Run and flattens the per-window results.
//
// Worker and batch counts come from a config.ProcessConfig, the process-wide one
// unless WithProcessConfig supplies another. The first failing invocation cancels
// the run's context, no further items are started, and that error is returned
// unchanged with no partial results.
package batch
