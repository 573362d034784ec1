package runner

import (
	"sync"

	"github.com/ethereum-optimism/infra/op-harness/types"
)

// Aggregator collects test results from concurrent workers. It is the only
// state shared between workers.
type Aggregator struct {
	mu       sync.Mutex
	results  []*types.TestResult
	onAppend func(*types.TestResult)
}

// NewAggregator creates an empty aggregator
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// OnAppend registers a hook that observes every appended result. The hook
// runs outside the aggregator lock, on the appending goroutine, and must be
// safe for concurrent use.
func (a *Aggregator) OnAppend(fn func(*types.TestResult)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onAppend = fn
}

// Append adds a result. Safe to call from any number of goroutines.
func (a *Aggregator) Append(result *types.TestResult) {
	if result == nil {
		panic("result cannot be nil")
	}

	a.mu.Lock()
	a.results = append(a.results, result)
	hook := a.onAppend
	a.mu.Unlock()

	if hook != nil {
		hook(result)
	}
}

// Drain returns every appended result, in no particular order, and empties
// the aggregator.
func (a *Aggregator) Drain() []*types.TestResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	results := a.results
	a.results = nil
	if results == nil {
		return []*types.TestResult{}
	}
	return results
}

// Len returns the number of results not yet drained
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.results)
}

// ResultStats tracks per-outcome counts for a run
type ResultStats struct {
	Discovered int // test cases returned by the provider
	Rejected   int // test cases excluded by the tag filter
	Total      int // results produced
	Passed     int
	Failed     int
	Errored    int
	TimedOut   int
}

// Add counts a single result
func (s *ResultStats) Add(result *types.TestResult) {
	s.Total++
	switch result.Outcome {
	case types.TestOutcomePassed:
		s.Passed++
	case types.TestOutcomeFailed:
		s.Failed++
	case types.TestOutcomeError:
		s.Errored++
	case types.TestOutcomeTimedOut:
		s.TimedOut++
	}
}

// Counts returns the per-outcome counts keyed by outcome
func (s ResultStats) Counts() map[types.TestOutcome]int {
	return map[types.TestOutcome]int{
		types.TestOutcomePassed:   s.Passed,
		types.TestOutcomeFailed:   s.Failed,
		types.TestOutcomeError:    s.Errored,
		types.TestOutcomeTimedOut: s.TimedOut,
	}
}

// determineRunStatus returns Passed iff every result passed. A run that
// produced no results passed.
func determineRunStatus(results []*types.TestResult) types.TestOutcome {
	for _, r := range results {
		if !r.Passed() {
			return types.TestOutcomeFailed
		}
	}
	return types.TestOutcomePassed
}
