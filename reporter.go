package harness

import (
	"github.com/ethereum-optimism/infra/op-harness/metrics"
	"github.com/ethereum-optimism/infra/op-harness/runner"
	"github.com/ethereum-optimism/infra/op-harness/service"
)

// MetricsReporter is responsible for reporting metrics from test results.
type MetricsReporter interface {
	ReportResults(runID string, result *runner.RunnerResult)
}

// DefaultMetricsReporter implements the MetricsReporter interface.
type DefaultMetricsReporter struct{}

// NewDefaultMetricsReporter creates a new DefaultMetricsReporter.
func NewDefaultMetricsReporter() *DefaultMetricsReporter {
	return &DefaultMetricsReporter{}
}

// ReportResults reports the test results to metrics systems.
func (r *DefaultMetricsReporter) ReportResults(runID string, result *runner.RunnerResult) {
	metrics.RecordRun(
		runID,
		string(result.Status),
		result.Stats.Counts(),
		result.Stats.Rejected,
		result.Duration,
	)
}

// StatusPublisher receives the state of the current run, e.g. the status
// endpoint of the service
type StatusPublisher interface {
	SetStatus(status service.RunStatus)
}

// runStatus converts a finished run into its published form
func runStatus(result *runner.RunnerResult) service.RunStatus {
	outcomes := make(map[string]string, len(result.Results))
	for _, res := range result.Results {
		outcomes[res.Name] = string(res.Outcome)
	}
	return service.RunStatus{
		RunID:      result.RunID,
		Status:     string(result.Status),
		Total:      result.Stats.Total,
		Passed:     result.Stats.Passed,
		Failed:     result.Stats.Failed,
		Errored:    result.Stats.Errored,
		TimedOut:   result.Stats.TimedOut,
		Rejected:   result.Stats.Rejected,
		StartedAt:  result.StartTime,
		FinishedAt: result.EndTime,
		Outcomes:   outcomes,
	}
}
