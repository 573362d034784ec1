package runner

import "time"

const (
	// DefaultTestTimeout is the default timeout for individual tests
	DefaultTestTimeout = 60 * time.Second

	// MaxReasonableConcurrency is the worker count above which a warning is logged
	MaxReasonableConcurrency = 32

	// RunCancelledMessage is recorded for tests interrupted by run cancellation
	RunCancelledMessage = "run cancelled"
)
