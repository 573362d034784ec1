package metrics

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/ethereum-optimism/infra/op-harness/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	MetricsNamespace = "harness"
)

var (
	Debug                bool = true
	nonAlphanumericRegex      = regexp.MustCompile(`[^a-zA-Z ]+`)

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "errors_total",
		Help:      "Count of errors",
	}, []string{
		"error",
	})

	testOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "test_outcomes_total",
		Help:      "Count of test outcomes",
	}, []string{
		"run_id",
		"name",
		"outcome",
	})

	testDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: MetricsNamespace,
		Name:      "test_duration_seconds",
		Help:      "Duration of individual test bodies",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
	}, []string{
		"outcome",
	})

	fixtureReleaseErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "fixture_release_errors_total",
		Help:      "Count of fixture teardown failures",
	}, []string{
		"fixture",
	})

	leakedBodies = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "leaked_bodies",
		Help:      "Test bodies still running after their timeout was recorded",
	})

	runResults = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_results",
		Help:      "Result of test runs",
	}, []string{
		"run_id",
		"result",
	})

	runTestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "run_tests_total",
		Help:      "Number of tests per run and outcome",
	}, []string{
		"run_id",
		"outcome",
	})

	runRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "run_rejected_total",
		Help:      "Number of test cases rejected by the tag filter",
	}, []string{
		"run_id",
	})

	runDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_duration_seconds",
		Help:      "Wall clock duration of test runs",
	}, []string{
		"run_id",
	})
)

// errToLabel tries to make the error string a more valid Prometheus label
func errToLabel(err error) string {
	if err == nil {
		return "nil"
	}
	errClean := nonAlphanumericRegex.ReplaceAllString(err.Error(), "")
	errClean = strings.ReplaceAll(errClean, " ", "_")
	errClean = strings.ReplaceAll(errClean, "__", "_")
	return errClean
}

func RecordError(error string) {
	if Debug {
		log.Debug("metric inc",
			"m", "errors_total",
			"error", error,
		)
	}
	errorsTotal.WithLabelValues(error).Inc()
}

// RecordErrorDetails concats the error message to the label
// and also tries to clean the label to be a valid Prometheus label
func RecordErrorDetails(label string, err error) {
	if err == nil {
		return
	}
	label = fmt.Sprintf("%s.%s", label, errToLabel(err))
	RecordError(label)
}

// RecordOutcome counts a single test outcome and observes its duration
func RecordOutcome(runID string, name string, outcome types.TestOutcome, duration time.Duration) {
	if !isValidOutcome(outcome) {
		log.Error("RecordOutcome - invalid outcome", "outcome", outcome)
		return
	}
	if Debug {
		log.Debug("metric inc",
			"m", "test_outcomes_total",
			"run_id", runID,
			"test", name,
			"outcome", outcome)
	}
	testOutcomesTotal.WithLabelValues(runID, name, string(outcome)).Inc()
	testDuration.WithLabelValues(string(outcome)).Observe(duration.Seconds())
}

// RecordFixtureReleaseError counts a teardown failure for the named fixture
func RecordFixtureReleaseError(fixture string) {
	fixtureReleaseErrors.WithLabelValues(fixture).Inc()
}

// BodyLeaked marks a timed-out test body as still running
func BodyLeaked() {
	leakedBodies.Inc()
}

// BodyReturned marks a previously leaked test body as finished
func BodyReturned() {
	leakedBodies.Dec()
}

// RecordRun records the aggregate statistics of a completed run
func RecordRun(
	runID string,
	result string,
	counts map[types.TestOutcome]int,
	rejected int,
	duration time.Duration,
) {
	runResults.WithLabelValues(runID, result).Set(1)
	for outcome, n := range counts {
		runTestsTotal.WithLabelValues(runID, string(outcome)).Add(float64(n))
	}
	runRejectedTotal.WithLabelValues(runID).Add(float64(rejected))
	runDuration.WithLabelValues(runID).Set(duration.Seconds())
}

func isValidOutcome(outcome types.TestOutcome) bool {
	return slices.Contains(types.AllOutcomes, outcome)
}
