// Package runner executes discovered test cases concurrently.
//
// The main components are:
//   - TestExecutor: runs the per-test pipeline (instance, fixtures, body, release)
//   - ParallelExecutor: a bounded worker pool feeding test cases to the executor
//   - Aggregator: the single synchronized sink results are appended to
//   - ProgressIndicator: optional periodic progress reporting
//
// Timeouts cancel the wait, not the work. A test body that outlives its
// deadline is recorded as timed out and its context is cancelled, but the
// goroutine running it keeps going until the body returns on its own. Such
// bodies are logged and tracked by the harness_leaked_bodies gauge; they may
// still hold resources after their fixtures have been released.
package runner
