package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/op-harness/types"
)

// ParallelExecutor manages parallel test execution across a bounded set of workers
type ParallelExecutor struct {
	executor    TestExecutor
	aggregator  *Aggregator
	concurrency int
	log         log.Logger
	ui          ProgressIndicator
}

// NewParallelExecutor creates a new parallel test executor with validation
func NewParallelExecutor(executor TestExecutor, aggregator *Aggregator, concurrency int, ui ProgressIndicator, logger log.Logger) *ParallelExecutor {
	if executor == nil {
		panic("executor cannot be nil")
	}
	if aggregator == nil {
		panic("aggregator cannot be nil")
	}
	if concurrency <= 0 {
		panic("concurrency must be positive")
	}
	if logger == nil {
		logger = log.New()
	}
	if ui == nil {
		ui = NewNoOpProgressIndicator()
	}

	if concurrency > MaxReasonableConcurrency {
		logger.Warn("Very high concurrency requested", "concurrency", concurrency,
			"recommendation", "Consider using lower values to avoid resource exhaustion")
	}

	return &ParallelExecutor{
		executor:    executor,
		aggregator:  aggregator,
		concurrency: concurrency,
		log:         logger.New("component", "parallel-executor"),
		ui:          ui,
	}
}

// ExecuteTests runs every test case through the executor and appends its
// result to the aggregator. Each case produces exactly one result, also when
// ctx is cancelled part way through; cases still queued then finish quickly
// as cancelled.
func (pe *ParallelExecutor) ExecuteTests(ctx context.Context, cases []types.TestCase) {
	if len(cases) == 0 {
		pe.log.Debug("No test cases to execute")
		return
	}

	start := time.Now()
	workers := min(pe.concurrency, len(cases))
	pe.log.Info("Starting parallel test execution", "totalTests", len(cases), "concurrency", workers)
	pe.ui.StartRun(len(cases))

	// Buffer size should be reasonable regardless of test count
	bufferSize := min(workers*2, 100)
	workChan := make(chan types.TestCase, bufferSize)

	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go pe.worker(ctx, &wg, i, workChan)
	}

	for _, tc := range cases {
		workChan <- tc
	}
	close(workChan)
	wg.Wait()

	pe.ui.CompleteRun()
	pe.log.Info("Parallel test execution completed",
		"duration", time.Since(start),
		"totalTests", len(cases))
}

// worker processes test cases until the work channel is closed
func (pe *ParallelExecutor) worker(ctx context.Context, wg *sync.WaitGroup, id int, workChan <-chan types.TestCase) {
	defer wg.Done()

	workerID := fmt.Sprintf("worker-%d", id)
	pe.log.Debug("Worker starting", "workerID", workerID)
	defer pe.log.Debug("Worker exiting", "workerID", workerID)

	for tc := range workChan {
		name := tc.Name()
		pe.log.Debug("Worker processing test", "workerID", workerID, "test", name)
		pe.ui.StartTest(name)

		result := pe.executor.Execute(ctx, tc)
		if result == nil {
			// TestExecutor contract violation
			result = types.NewTestResult(tc)
			result.Outcome = types.TestOutcomeError
			result.Message = "executor returned no result"
		}

		pe.aggregator.Append(result)
		pe.ui.UpdateTest(name, result.Outcome)
	}
}
