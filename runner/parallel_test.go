package runner

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-harness/types"
)

// concurrencyProbe records the highest number of simultaneously running bodies
type concurrencyProbe struct {
	current atomic.Int32
	max     atomic.Int32
}

func (p *concurrencyProbe) body(d time.Duration) types.TestFunc {
	return func(ctx context.Context, _ any, _ []any) error {
		n := p.current.Add(1)
		defer p.current.Add(-1)
		for {
			m := p.max.Load()
			if n <= m || p.max.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(d)
		return nil
	}
}

func sleepingCases(n int, body types.TestFunc) []types.TestCase {
	cases := make([]types.TestCase, n)
	for i := range n {
		cases[i] = testCase("Parallel", fmt.Sprintf("Test%02d", i), body)
	}
	return cases
}

// recordingProgress counts the calls made by the workers
type recordingProgress struct {
	mu        sync.Mutex
	total     int
	started   []string
	completed map[string]types.TestOutcome
	finished  bool
}

func newRecordingProgress() *recordingProgress {
	return &recordingProgress{completed: make(map[string]types.TestOutcome)}
}

func (p *recordingProgress) StartRun(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.total = total
}

func (p *recordingProgress) StartTest(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.started = append(p.started, name)
}

func (p *recordingProgress) UpdateTest(name string, outcome types.TestOutcome) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.completed[name] = outcome
}

func (p *recordingProgress) CompleteRun() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.finished = true
}

func (p *recordingProgress) Stop() {}

func TestParallelExecutorRunsConcurrently(t *testing.T) {
	const (
		tests       = 8
		concurrency = 4
		sleep       = 100 * time.Millisecond
	)

	probe := &concurrencyProbe{}
	agg := NewAggregator()
	pe := NewParallelExecutor(newTestExecutor(t, time.Second), agg, concurrency, nil, discardLogger())

	start := time.Now()
	pe.ExecuteTests(context.Background(), sleepingCases(tests, probe.body(sleep)))
	elapsed := time.Since(start)

	results := agg.Drain()
	require.Len(t, results, tests)
	for _, r := range results {
		assert.Equal(t, types.TestOutcomePassed, r.Outcome)
	}

	assert.LessOrEqual(t, probe.max.Load(), int32(concurrency))
	assert.Greater(t, probe.max.Load(), int32(1))
	assert.Less(t, elapsed, tests*sleep, "tests should not run serially")
	assert.GreaterOrEqual(t, elapsed, (tests/concurrency)*sleep)
}

func TestParallelExecutorSerial(t *testing.T) {
	probe := &concurrencyProbe{}
	agg := NewAggregator()
	pe := NewParallelExecutor(newTestExecutor(t, time.Second), agg, 1, nil, discardLogger())

	pe.ExecuteTests(context.Background(), sleepingCases(5, probe.body(5*time.Millisecond)))

	assert.Len(t, agg.Drain(), 5)
	assert.Equal(t, int32(1), probe.max.Load())
}

func TestParallelExecutorFewerTestsThanWorkers(t *testing.T) {
	agg := NewAggregator()
	pe := NewParallelExecutor(newTestExecutor(t, time.Second), agg, 16, nil, discardLogger())

	pe.ExecuteTests(context.Background(), sleepingCases(2, (&concurrencyProbe{}).body(0)))
	assert.Len(t, agg.Drain(), 2)
}

func TestParallelExecutorEmpty(t *testing.T) {
	agg := NewAggregator()
	progress := newRecordingProgress()
	pe := NewParallelExecutor(newTestExecutor(t, time.Second), agg, 4, progress, discardLogger())

	pe.ExecuteTests(context.Background(), nil)
	assert.Empty(t, agg.Drain())
	assert.False(t, progress.finished)
}

func TestParallelExecutorOneResultPerCaseWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var started atomic.Int32
	body := func(bodyCtx context.Context, _ any, _ []any) error {
		if started.Add(1) == 1 {
			cancel()
		}
		<-bodyCtx.Done()
		return bodyCtx.Err()
	}

	agg := NewAggregator()
	pe := NewParallelExecutor(newTestExecutor(t, time.Minute), agg, 2, nil, discardLogger())
	pe.ExecuteTests(ctx, sleepingCases(10, body))

	results := agg.Drain()
	require.Len(t, results, 10)
	for _, r := range results {
		assert.Equal(t, types.TestOutcomeError, r.Outcome, r.Name)
		assert.Equal(t, RunCancelledMessage, r.Message)
	}
}

func TestParallelExecutorReportsProgress(t *testing.T) {
	agg := NewAggregator()
	progress := newRecordingProgress()
	pe := NewParallelExecutor(newTestExecutor(t, time.Second), agg, 3, progress, discardLogger())

	cases := sleepingCases(6, (&concurrencyProbe{}).body(time.Millisecond))
	pe.ExecuteTests(context.Background(), cases)

	progress.mu.Lock()
	defer progress.mu.Unlock()
	assert.Equal(t, 6, progress.total)
	assert.Len(t, progress.started, 6)
	assert.Len(t, progress.completed, 6)
	assert.True(t, progress.finished)
	for _, tc := range cases {
		assert.Equal(t, types.TestOutcomePassed, progress.completed[tc.Name()])
	}
}

type nilExecutor struct{}

func (nilExecutor) Execute(context.Context, types.TestCase) *types.TestResult { return nil }

func TestParallelExecutorNilResult(t *testing.T) {
	agg := NewAggregator()
	pe := NewParallelExecutor(nilExecutor{}, agg, 1, nil, discardLogger())
	pe.ExecuteTests(context.Background(), sleepingCases(1, nil))

	results := agg.Drain()
	require.Len(t, results, 1)
	assert.Equal(t, types.TestOutcomeError, results[0].Outcome)
	assert.Equal(t, "Parallel.Test00", results[0].Name)
}

func TestNewParallelExecutorValidation(t *testing.T) {
	executor := newTestExecutor(t, time.Second)
	agg := NewAggregator()

	assert.Panics(t, func() { NewParallelExecutor(nil, agg, 1, nil, discardLogger()) })
	assert.Panics(t, func() { NewParallelExecutor(executor, nil, 1, nil, discardLogger()) })
	assert.Panics(t, func() { NewParallelExecutor(executor, agg, 0, nil, discardLogger()) })
	assert.Panics(t, func() { NewParallelExecutor(executor, agg, -1, nil, discardLogger()) })
	assert.NotPanics(t, func() { NewParallelExecutor(executor, agg, MaxReasonableConcurrency+1, nil, discardLogger()) })
}
