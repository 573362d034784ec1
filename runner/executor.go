package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/sourcegraph/conc/panics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ethereum-optimism/infra/op-harness/fixture"
	"github.com/ethereum-optimism/infra/op-harness/metrics"
	"github.com/ethereum-optimism/infra/op-harness/types"
)

var _ TestExecutor = (*testExecutor)(nil)

// TestExecutor runs the complete pipeline for a single test case: fresh
// class instance, fixture acquisition, body under a deadline, fixture
// release. It always returns a result.
type TestExecutor interface {
	Execute(ctx context.Context, tc types.TestCase) *types.TestResult
}

// testExecutor implements TestExecutor
type testExecutor struct {
	fixtures *fixture.Manager
	timeout  time.Duration
	runID    string
	log      log.Logger
	tracer   trace.Tracer
}

// NewTestExecutor creates a new test executor. A non-positive timeout
// selects DefaultTestTimeout.
func NewTestExecutor(fixtures *fixture.Manager, timeout time.Duration, runID string, logger log.Logger) (TestExecutor, error) {
	if fixtures == nil {
		return nil, fmt.Errorf("fixture manager cannot be nil")
	}
	if timeout <= 0 {
		timeout = DefaultTestTimeout
	}
	if logger == nil {
		logger = log.New()
	}

	return &testExecutor{
		fixtures: fixtures,
		timeout:  timeout,
		runID:    runID,
		log:      logger.New("component", "executor"),
		tracer:   otel.Tracer("test executor"),
	}, nil
}

// Execute runs a single test case
func (e *testExecutor) Execute(ctx context.Context, tc types.TestCase) *types.TestResult {
	ctx, span := e.tracer.Start(ctx, fmt.Sprintf("test %s", tc.Name()))
	defer span.End()

	result := types.NewTestResult(tc)
	e.log.Debug("Running test", "test", result.Name, "fixtures", len(tc.Fixtures))

	outcome, message, duration := e.run(ctx, tc)
	result.Outcome = outcome
	result.Message = message
	result.Duration = duration

	span.SetAttributes(
		attribute.String("test.outcome", string(outcome)),
		attribute.StringSlice("test.tags", result.Tags),
	)
	if outcome != types.TestOutcomePassed {
		span.SetStatus(codes.Error, message)
	}

	metrics.RecordOutcome(e.runID, result.Name, outcome, duration)
	e.log.Debug("Test finished", "test", result.Name, "outcome", outcome, "duration", duration)
	return result
}

// run executes the pipeline and classifies its outcome. Every handle
// acquired for this invocation is released before run returns, whatever
// the outcome.
func (e *testExecutor) run(ctx context.Context, tc types.TestCase) (types.TestOutcome, string, time.Duration) {
	instance, err := newInstance(tc.Class)
	if err != nil {
		return types.TestOutcomeError, errorMessage(types.TestOutcomeError, err), 0
	}

	scope, values, err := e.fixtures.AcquireAll(ctx, tc.Fixtures)
	defer scope.Release()
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return types.TestOutcomeError, RunCancelledMessage, 0
		}
		return types.TestOutcomeError, errorMessage(types.TestOutcomeError, err), 0
	}
	if ctx.Err() != nil {
		return types.TestOutcomeError, RunCancelledMessage, 0
	}

	timeout := e.timeout
	if tc.Timeout > 0 {
		timeout = tc.Timeout
	}
	return e.runBody(ctx, tc, instance, values, timeout)
}

// runBody races the test body against its deadline
func (e *testExecutor) runBody(ctx context.Context, tc types.TestCase, instance any, values []any, timeout time.Duration) (types.TestOutcome, string, time.Duration) {
	bodyCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	start := time.Now()
	go func() {
		done <- callBody(bodyCtx, tc.Body, instance, values)
	}()

	select {
	case err := <-done:
		duration := time.Since(start)
		outcome, message := classify(ctx, bodyCtx, err, timeout)
		return outcome, message, duration
	case <-bodyCtx.Done():
		duration := time.Since(start)
		// the body may have finished at the same instant
		select {
		case err := <-done:
			outcome, message := classify(ctx, bodyCtx, err, timeout)
			return outcome, message, duration
		default:
		}

		e.leaked(tc.Name(), done)
		if ctx.Err() != nil {
			return types.TestOutcomeError, RunCancelledMessage, duration
		}
		return types.TestOutcomeTimedOut, timeoutMessage(timeout), duration
	}
}

// leaked tracks a body that is still running after its result was recorded
func (e *testExecutor) leaked(name string, done <-chan error) {
	metrics.BodyLeaked()
	e.log.Warn("Test body still running after deadline; it will not be stopped", "test", name)
	go func() {
		err := <-done
		metrics.BodyReturned()
		e.log.Debug("Leaked test body returned", "test", name, "err", err)
	}()
}

// callBody invokes a test body, converting panics into errors. A panic
// carrying an AssertionError is kept as is so that it classifies as Failed.
func callBody(ctx context.Context, body types.TestFunc, instance any, values []any) error {
	var (
		err     error
		catcher panics.Catcher
	)
	catcher.Try(func() {
		err = body(ctx, instance, values)
	})
	if r := catcher.Recovered(); r != nil {
		if perr, ok := r.Value.(error); ok && types.IsAssertionError(perr) {
			return perr
		}
		return fmt.Errorf("panic: %v", r.Value)
	}
	return err
}

// newInstance constructs a fresh owning-class instance
func newInstance(class types.TestClass) (instance any, err error) {
	if class.New == nil {
		return nil, nil
	}
	var catcher panics.Catcher
	catcher.Try(func() {
		instance = class.New()
	})
	if r := catcher.Recovered(); r != nil {
		return nil, fmt.Errorf("failed to create instance of %s: panic: %v", class.Name, r.Value)
	}
	return instance, nil
}

// classify maps a body's return value to an outcome and message
func classify(runCtx, bodyCtx context.Context, err error, timeout time.Duration) (types.TestOutcome, string) {
	switch {
	case err == nil:
		return types.TestOutcomePassed, ""
	case types.IsAssertionError(err):
		return types.TestOutcomeFailed, errorMessage(types.TestOutcomeFailed, err)
	case runCtx.Err() != nil && errors.Is(err, runCtx.Err()):
		return types.TestOutcomeError, RunCancelledMessage
	case errors.Is(bodyCtx.Err(), context.DeadlineExceeded) && errors.Is(err, context.DeadlineExceeded):
		// the body honoured its cancelled context
		return types.TestOutcomeTimedOut, timeoutMessage(timeout)
	default:
		return types.TestOutcomeError, errorMessage(types.TestOutcomeError, err)
	}
}

// errorMessage returns the text of err, never empty for a non-passing outcome
func errorMessage(outcome types.TestOutcome, err error) string {
	if msg := err.Error(); msg != "" {
		return msg
	}
	verb := "errored"
	if outcome == types.TestOutcomeFailed {
		verb = "failed"
	}
	return fmt.Sprintf("test %s: %T returned an empty error", verb, err)
}

func timeoutMessage(timeout time.Duration) string {
	return fmt.Sprintf("test timed out after %s", timeout)
}
