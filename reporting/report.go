// Package reporting renders completed test results as console tables and
// text summaries.
package reporting

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/ethereum-optimism/infra/op-harness/types"
)

// ReportStats contains aggregated statistics for a test run
type ReportStats struct {
	Total    int
	Passed   int
	Failed   int
	Errored  int
	Timeouts int
	PassRate float64
}

// ReportTestItem represents a single test in the report
type ReportTestItem struct {
	Name     string // Display name (Class.Method)
	Class    string
	Method   string
	Tags     []string
	Fixtures []string

	Outcome  types.TestOutcome
	Message  string
	Duration time.Duration

	LogPath string // Path of the per-test log file, relative to the run directory
}

// ReportData contains all the structured data needed for any report format
type ReportData struct {
	RunID        string
	Timestamp    time.Time
	Duration     time.Duration
	DurationText string

	Stats        ReportStats
	PassRateText string
	HasFailures  bool
	HasTimeouts  bool

	AllTests     []ReportTestItem // sorted by name
	FailedTests  []ReportTestItem // Failed and Error outcomes
	TimeoutTests []ReportTestItem

	FailedTestNames  []string
	TimeoutTestNames []string
}

// ReportBuilder constructs ReportData from test results
type ReportBuilder struct {
	logPathGenerator func(test *types.TestResult) string
}

// NewReportBuilder creates a new report builder
func NewReportBuilder() *ReportBuilder {
	return &ReportBuilder{
		logPathGenerator: func(test *types.TestResult) string {
			return ""
		},
	}
}

// WithLogPathGenerator sets a custom function for generating log file paths
func (rb *ReportBuilder) WithLogPathGenerator(generator func(test *types.TestResult) string) *ReportBuilder {
	rb.logPathGenerator = generator
	return rb
}

// BuildFromTestResults creates a ReportData from a collection of TestResults.
// duration is the wall-clock duration of the run; when zero the sum of test
// durations is used instead.
func (rb *ReportBuilder) BuildFromTestResults(testResults []*types.TestResult, runID string, duration time.Duration) *ReportData {
	report := &ReportData{
		RunID:            runID,
		Timestamp:        time.Now(),
		AllTests:         make([]ReportTestItem, 0, len(testResults)),
		FailedTests:      make([]ReportTestItem, 0),
		TimeoutTests:     make([]ReportTestItem, 0),
		FailedTestNames:  make([]string, 0),
		TimeoutTestNames: make([]string, 0),
	}

	sorted := slices.Clone(testResults)
	slices.SortStableFunc(sorted, func(a, b *types.TestResult) int {
		return strings.Compare(a.Name, b.Name)
	})

	var totalDuration time.Duration
	for _, result := range sorted {
		item := ReportTestItem{
			Name:     result.Name,
			Class:    result.Class,
			Method:   result.Method,
			Tags:     slices.Clone(result.Tags),
			Fixtures: slices.Clone(result.Fixtures),
			Outcome:  result.Outcome,
			Message:  result.Message,
			Duration: result.Duration,
			LogPath:  rb.logPathGenerator(result),
		}
		report.AllTests = append(report.AllTests, item)
		totalDuration += result.Duration
		rb.updateStats(&report.Stats, result.Outcome)

		switch result.Outcome {
		case types.TestOutcomeFailed, types.TestOutcomeError:
			report.FailedTests = append(report.FailedTests, item)
			report.FailedTestNames = append(report.FailedTestNames, item.Name)
		case types.TestOutcomeTimedOut:
			report.TimeoutTests = append(report.TimeoutTests, item)
			report.TimeoutTestNames = append(report.TimeoutTestNames, item.Name)
		}
	}

	if duration <= 0 {
		duration = totalDuration
	}
	report.Duration = duration
	report.DurationText = formatDuration(duration)

	if report.Stats.Total > 0 {
		report.Stats.PassRate = float64(report.Stats.Passed) * 100.0 / float64(report.Stats.Total)
	}
	report.PassRateText = fmt.Sprintf("%.1f%%", report.Stats.PassRate)
	report.HasFailures = report.Stats.Passed != report.Stats.Total
	report.HasTimeouts = report.Stats.Timeouts > 0

	return report
}

func (rb *ReportBuilder) updateStats(stats *ReportStats, outcome types.TestOutcome) {
	stats.Total++
	switch outcome {
	case types.TestOutcomePassed:
		stats.Passed++
	case types.TestOutcomeFailed:
		stats.Failed++
	case types.TestOutcomeError:
		stats.Errored++
	case types.TestOutcomeTimedOut:
		stats.Timeouts++
	}
}
