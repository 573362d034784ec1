package sample

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-harness/registry"
	"github.com/ethereum-optimism/infra/op-harness/runner"
	"github.com/ethereum-optimism/infra/op-harness/tags"
	"github.com/ethereum-optimism/infra/op-harness/types"
)

func TestSuiteRegistration(t *testing.T) {
	cases, err := Suite().TestCases()
	require.NoError(t, err)

	names := make([]string, len(cases))
	for i, tc := range cases {
		names[i] = tc.Name()
	}
	assert.Equal(t, []string{
		"FixtureTests.TestWithSimpleFixture",
		"FixtureTests.TestWithDisposableFixture",
		"FixtureTests.TestWithAsyncFixture",
		"FixtureTests.TestWithMultipleFixtures",
		"TaggedTests.FastTest",
		"TaggedTests.SlowTest",
		"TimeoutTests.TestThatPasses",
		"TimeoutTests.TestThatTimesOut",
		"AssertionTests.TestWrongAnswer",
	}, names)

	fixtures, err := Suite().Fixtures()
	require.NoError(t, err)
	require.Len(t, fixtures, 3)
}

func TestFixturesLifecycle(t *testing.T) {
	fixtures, err := Suite().Fixtures()
	require.NoError(t, err)

	byName := make(map[string]types.FixtureProvider)
	for _, f := range fixtures {
		byName[f.Name] = f
	}

	t.Run("SimpleFixture", func(t *testing.T) {
		v, teardown, err := byName["SimpleFixture"].Func(context.Background())
		require.NoError(t, err)
		assert.Equal(t, SimpleFixtureValue, v)
		require.NoError(t, teardown())
	})

	t.Run("DisposableFixture", func(t *testing.T) {
		v, teardown, err := byName["DisposableFixture"].Func(context.Background())
		require.NoError(t, err)
		res := v.(*DisposableResource)
		assert.False(t, res.IsDisposed())
		require.NoError(t, teardown())
		assert.True(t, res.IsDisposed())
	})

	t.Run("AsyncFixture", func(t *testing.T) {
		v, teardown, err := byName["AsyncFixture"].Func(context.Background())
		require.NoError(t, err)
		got, err := v.(AsyncResult).Await(context.Background())
		require.NoError(t, err)
		assert.Equal(t, AsyncFixtureValue, got)
		require.NoError(t, teardown())
	})
}

func TestAsyncResultAwaitCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := AsyncResult(make(chan string)).Await(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func runSuite(t *testing.T, filter tags.Filter, timeout time.Duration) *runner.RunnerResult {
	t.Helper()
	r, err := runner.NewTestRunner(runner.Config{
		Provider:    Suite(),
		Filter:      filter,
		Concurrency: 4,
		Timeout:     timeout,
		Log:         log.NewLogger(log.DiscardHandler()),
	})
	require.NoError(t, err)
	result, err := r.RunAllTests(context.Background())
	require.NoError(t, err)
	return result
}

func outcomes(result *runner.RunnerResult) map[string]types.TestOutcome {
	m := make(map[string]types.TestOutcome)
	for _, res := range result.Results {
		m[res.Name] = res.Outcome
	}
	return m
}

func TestRunSampleSuite(t *testing.T) {
	result := runSuite(t, tags.Filter{}, 500*time.Millisecond)

	got := outcomes(result)
	require.Len(t, got, 9)
	for name, outcome := range got {
		switch name {
		case "TimeoutTests.TestThatTimesOut":
			assert.Equal(t, types.TestOutcomeTimedOut, outcome, name)
		case "AssertionTests.TestWrongAnswer":
			assert.Equal(t, types.TestOutcomeFailed, outcome, name)
		default:
			assert.Equal(t, types.TestOutcomePassed, outcome, name)
		}
	}
	assert.False(t, result.Passed())
}

func TestRunSampleSuiteTagFilter(t *testing.T) {
	result := runSuite(t, tags.New([]string{"Fast"}, nil), time.Second)
	assert.Equal(t, map[string]types.TestOutcome{"TaggedTests.FastTest": types.TestOutcomePassed}, outcomes(result))
	assert.True(t, result.Passed())
	assert.Equal(t, 8, result.Stats.Rejected)
}

func TestSuiteWithPlan(t *testing.T) {
	short := 10 * time.Millisecond
	plan := &types.RunPlan{Tests: []types.TestOverride{
		{Name: "TaggedTests.SlowTest", Timeout: &short},
	}}

	r, err := runner.NewTestRunner(runner.Config{
		Provider: registry.WithPlan(Suite(), plan),
		Filter:   tags.New([]string{"Slow"}, nil),
		Log:      log.NewLogger(log.DiscardHandler()),
	})
	require.NoError(t, err)
	result, err := r.RunAllTests(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]types.TestOutcome{"TaggedTests.SlowTest": types.TestOutcomeTimedOut}, outcomes(result))
}
