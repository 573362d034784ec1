package metrics

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/ethereum-optimism/infra/op-harness/types"
)

func TestErrToLabel(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{
			name: "nil error",
			err:  nil,
		},
		{
			name: "simple error",
			err:  errors.New("test error"),
		},
		{
			name: "error with special chars",
			err:  errors.New("test@error#123"),
		},
		{
			name: "error with multiple spaces",
			err:  errors.New("test   error"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := errToLabel(tt.err)
			validLabelRegex := regexp.MustCompile(`[a-zA-Z_][a-zA-Z0-9_]*`)
			if !validLabelRegex.MatchString(result) {
				t.Errorf("errLabel() = %v, is not a valid Prometheus label", result)
			}
		})
	}
}

func TestRecordErrorDetails(t *testing.T) {
	// Test with nil error
	RecordErrorDetails("test", nil)

	// Test with actual error
	RecordErrorDetails("test", errors.New("sample error"))
}

func TestRecordOutcome(t *testing.T) {
	RecordOutcome("run1", "Suite.TestA", types.TestOutcomePassed, time.Millisecond)
	RecordOutcome("run1", "Suite.TestA", types.TestOutcomePassed, time.Millisecond)

	got := testutil.ToFloat64(testOutcomesTotal.WithLabelValues("run1", "Suite.TestA", "pass"))
	assert.Equal(t, float64(2), got)

	// Unknown outcomes are dropped
	RecordOutcome("run1", "Suite.TestA", types.TestOutcome("skip"), time.Millisecond)
	got = testutil.ToFloat64(testOutcomesTotal.WithLabelValues("run1", "Suite.TestA", "skip"))
	assert.Equal(t, float64(0), got)
}

func TestLeakedBodies(t *testing.T) {
	before := testutil.ToFloat64(leakedBodies)
	BodyLeaked()
	BodyLeaked()
	BodyReturned()
	assert.Equal(t, before+1, testutil.ToFloat64(leakedBodies))
	BodyReturned()
}

func TestRecordRun(t *testing.T) {
	RecordRun("run2", "fail", map[types.TestOutcome]int{
		types.TestOutcomePassed:   3,
		types.TestOutcomeTimedOut: 1,
	}, 2, time.Second)

	assert.Equal(t, float64(3), testutil.ToFloat64(runTestsTotal.WithLabelValues("run2", "pass")))
	assert.Equal(t, float64(1), testutil.ToFloat64(runTestsTotal.WithLabelValues("run2", "timeout")))
	assert.Equal(t, float64(2), testutil.ToFloat64(runRejectedTotal.WithLabelValues("run2")))
	assert.Equal(t, float64(1), testutil.ToFloat64(runDuration.WithLabelValues("run2")))
}

func TestRecordFixtureReleaseError(t *testing.T) {
	RecordFixtureReleaseError("Db")
	assert.Equal(t, float64(1), testutil.ToFloat64(fixtureReleaseErrors.WithLabelValues("Db")))
}
