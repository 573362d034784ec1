package harness

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ethereum-optimism/infra/op-harness/runner"
	"github.com/ethereum-optimism/infra/op-harness/types"
)

func TestDefaultMetricsReporter_ReportResults(t *testing.T) {
	result := &runner.RunnerResult{
		RunID:    "reporter-run",
		Status:   types.TestOutcomeFailed,
		Duration: 150 * time.Millisecond,
		Stats:    runner.ResultStats{Total: 3, Passed: 1, Failed: 1, TimedOut: 1, Rejected: 2},
	}

	assert.NotPanics(t, func() {
		NewDefaultMetricsReporter().ReportResults(result.RunID, result)
	})
}

func TestRunStatus(t *testing.T) {
	start := time.Now()
	result := &runner.RunnerResult{
		RunID: "status-run",
		Results: []*types.TestResult{
			{Name: "A.Pass", Outcome: types.TestOutcomePassed},
			{Name: "A.Slow", Outcome: types.TestOutcomeTimedOut},
		},
		Stats:     runner.ResultStats{Total: 2, Passed: 1, TimedOut: 1, Rejected: 4},
		Status:    types.TestOutcomeFailed,
		StartTime: start,
		EndTime:   start.Add(time.Second),
	}

	status := runStatus(result)
	assert.Equal(t, "status-run", status.RunID)
	assert.Equal(t, "fail", status.Status)
	assert.False(t, status.Running)
	assert.Equal(t, 2, status.Total)
	assert.Equal(t, 1, status.TimedOut)
	assert.Equal(t, 4, status.Rejected)
	assert.Equal(t, start.Add(time.Second), status.FinishedAt)
	assert.Equal(t, map[string]string{"A.Pass": "pass", "A.Slow": "timeout"}, status.Outcomes)
}
