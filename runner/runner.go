package runner

import (
	"context"
	"fmt"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ethereum-optimism/infra/op-harness/fixture"
	"github.com/ethereum-optimism/infra/op-harness/logging"
	"github.com/ethereum-optimism/infra/op-harness/metrics"
	"github.com/ethereum-optimism/infra/op-harness/registry"
	"github.com/ethereum-optimism/infra/op-harness/tags"
	"github.com/ethereum-optimism/infra/op-harness/types"
)

// RunnerResult captures the complete test run results
type RunnerResult struct {
	RunID     string
	Results   []*types.TestResult // sorted by test name
	Stats     ResultStats
	Status    types.TestOutcome // Passed iff every result passed
	Duration  time.Duration
	StartTime time.Time
	EndTime   time.Time
}

// Passed reports whether every test in the run passed
func (r *RunnerResult) Passed() bool {
	return r.Status == types.TestOutcomePassed
}

// Failures returns the results that did not pass
func (r *RunnerResult) Failures() []*types.TestResult {
	var failed []*types.TestResult
	for _, res := range r.Results {
		if !res.Passed() {
			failed = append(failed, res)
		}
	}
	return failed
}

// String returns a one-line summary of the run
func (r *RunnerResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s: %d tests, %d passed, %d failed, %d errored, %d timed out",
		r.RunID, r.Stats.Total, r.Stats.Passed, r.Stats.Failed, r.Stats.Errored, r.Stats.TimedOut)
	if r.Stats.Rejected > 0 {
		fmt.Fprintf(&b, " (%d filtered out)", r.Stats.Rejected)
	}
	fmt.Fprintf(&b, " in %s", r.Duration.Round(time.Millisecond))
	return b.String()
}

// TestRunner defines the interface for running a suite of test cases
type TestRunner interface {
	RunAllTests(ctx context.Context) (*RunnerResult, error)
}

// TestRunnerWithFileLogger extends the TestRunner interface with a method
// to set the file logger after creation
type TestRunnerWithFileLogger interface {
	TestRunner
	SetFileLogger(logger *logging.FileLogger)
}

// Config holds configuration for creating a new runner
type Config struct {
	Provider    registry.Provider
	Filter      tags.Filter
	Concurrency int           // maximum concurrently running tests; <= 0 selects runtime.NumCPU()
	Timeout     time.Duration // per-test deadline; <= 0 selects DefaultTestTimeout
	Log         log.Logger
	FileLogger  *logging.FileLogger // optional sink for results as they complete
	Progress    ProgressIndicator   // optional
}

// runner struct implements TestRunner interface
type runner struct {
	provider    registry.Provider
	filter      tags.Filter
	concurrency int
	timeout     time.Duration
	log         log.Logger
	fileLogger  *logging.FileLogger
	progress    ProgressIndicator
	tracer      trace.Tracer
}

var _ TestRunnerWithFileLogger = (*runner)(nil)

// NewTestRunner creates a new test runner instance
func NewTestRunner(cfg Config) (TestRunner, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("provider is required")
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = runtime.NumCPU()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTestTimeout
	}
	if cfg.Progress == nil {
		cfg.Progress = NewNoOpProgressIndicator()
	}

	cfg.Log.Debug("NewTestRunner()", "concurrency", cfg.Concurrency, "timeout", cfg.Timeout,
		"includeTags", cfg.Filter.Include.Sorted(), "excludeTags", cfg.Filter.Exclude.Sorted())

	return &runner{
		provider:    cfg.Provider,
		filter:      cfg.Filter,
		concurrency: cfg.Concurrency,
		timeout:     cfg.Timeout,
		log:         cfg.Log,
		fileLogger:  cfg.FileLogger,
		progress:    cfg.Progress,
		tracer:      otel.Tracer("test runner"),
	}, nil
}

// SetFileLogger sets the file logger used for subsequent runs
func (r *runner) SetFileLogger(logger *logging.FileLogger) {
	r.fileLogger = logger
}

// RunAllTests implements the TestRunner interface. Provider failures are
// returned as *types.ProviderError before any test runs.
func (r *runner) RunAllTests(ctx context.Context) (*RunnerResult, error) {
	// Use fileLogger's runID if available, otherwise generate new
	runID := uuid.New().String()
	if r.fileLogger != nil {
		runID = r.fileLogger.GetRunID()
	}

	ctx, span := r.tracer.Start(ctx, "run", trace.WithAttributes(attribute.String("run.id", runID)))
	defer span.End()

	start := time.Now()
	r.log.Debug("Running all tests", "run_id", runID)

	cases, err := r.provider.TestCases()
	if err != nil {
		metrics.RecordErrorDetails("provider", err)
		return nil, &types.ProviderError{Err: err}
	}
	providers, err := r.provider.Fixtures()
	if err != nil {
		metrics.RecordErrorDetails("provider", err)
		return nil, &types.ProviderError{Err: err}
	}
	fixtures, err := fixture.NewManager(providers, r.log)
	if err != nil {
		metrics.RecordErrorDetails("provider", err)
		return nil, &types.ProviderError{Err: err}
	}

	admitted, rejected := r.filter.Partition(cases)
	for _, tc := range rejected {
		r.log.Debug("Test filtered out by tags", "test", tc.Name(), "tags", tc.Tags)
	}
	r.log.Info("Discovered tests", "run_id", runID, "discovered", len(cases),
		"admitted", len(admitted), "rejected", len(rejected), "fixtures", fixtures.Len())

	executor, err := NewTestExecutor(fixtures, r.timeout, runID, r.log)
	if err != nil {
		return nil, fmt.Errorf("failed to create test executor: %w", err)
	}

	aggregator := NewAggregator()
	if r.fileLogger != nil {
		fileLogger := r.fileLogger
		aggregator.OnAppend(func(result *types.TestResult) {
			if err := fileLogger.LogTestResult(result, runID); err != nil {
				r.log.Error("Failed to log test result", "test", result.Name, "error", err)
			}
		})
	}

	NewParallelExecutor(executor, aggregator, r.concurrency, r.progress, r.log).ExecuteTests(ctx, admitted)

	results := aggregator.Drain()
	slices.SortStableFunc(results, func(a, b *types.TestResult) int {
		return strings.Compare(a.Name, b.Name)
	})

	stats := ResultStats{Discovered: len(cases), Rejected: len(rejected)}
	for _, res := range results {
		stats.Add(res)
	}

	end := time.Now()
	result := &RunnerResult{
		RunID:     runID,
		Results:   results,
		Stats:     stats,
		Status:    determineRunStatus(results),
		Duration:  end.Sub(start),
		StartTime: start,
		EndTime:   end,
	}

	span.SetAttributes(attribute.String("run.status", string(result.Status)))
	r.log.Info("Run complete", "run_id", runID, "status", result.Status, "total", stats.Total,
		"passed", stats.Passed, "failed", stats.Failed, "errored", stats.Errored,
		"timedOut", stats.TimedOut, "duration", result.Duration)

	return result, nil
}
