package harness

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-harness/reporting"
	"github.com/ethereum-optimism/infra/op-harness/runner"
	"github.com/ethereum-optimism/infra/op-harness/types"
)

func plainFormatter(out *bytes.Buffer) *ConsoleResultFormatter {
	return &ConsoleResultFormatter{logger: discardLogger(), out: out}
}

func TestConsoleResultFormatter(t *testing.T) {
	result := &runner.RunnerResult{
		RunID: "run-42",
		Results: []*types.TestResult{
			{Name: "FixtureTests.TestWithSimpleFixture", Outcome: types.TestOutcomePassed, Duration: 3 * time.Millisecond},
			{
				Name:     "FixtureTests.TestWrongValue",
				Outcome:  types.TestOutcomeFailed,
				Message:  "check.Equal failed. Expected: <7>. Actual: <42>.",
				Tags:     []string{"Broken"},
				Duration: time.Millisecond,
			},
		},
		Stats:    runner.ResultStats{Discovered: 2, Total: 2, Passed: 1, Failed: 1},
		Status:   types.TestOutcomeFailed,
		Duration: 10 * time.Millisecond,
	}

	var out bytes.Buffer
	require.NoError(t, plainFormatter(&out).FormatResults(result))

	text := out.String()
	assert.Contains(t, text, "FixtureTests.TestWithSimpleFixture")
	assert.Contains(t, text, "check.Equal failed. Expected: <7>. Actual: <42>.")
	assert.Contains(t, text, "Broken")
	assert.Contains(t, text, "run run-42: 2 tests, 1 passed, 1 failed")
}

func TestConsoleResultFormatterEmptyRun(t *testing.T) {
	result := &runner.RunnerResult{RunID: "empty", Results: []*types.TestResult{}, Status: types.TestOutcomePassed}

	var out bytes.Buffer
	require.NoError(t, plainFormatter(&out).FormatResults(result))
	assert.Contains(t, out.String(), reporting.NoTestsMessage)
	assert.Contains(t, out.String(), "0 tests")
}

func TestFormatTestList(t *testing.T) {
	cases := []types.TestCase{
		{Class: types.TestClass{Name: "TaggedTests"}, Method: "FastTest", Tags: []string{"Fast"}},
		{Class: types.TestClass{Name: "FixtureTests"}, Method: "TestWithSimpleFixture", Fixtures: []string{"SimpleFixture"}},
		{Class: types.TestClass{Name: "TaggedTests"}, Method: "SlowTest", Tags: []string{"Slow"}, Timeout: 2 * time.Second},
	}

	out := FormatTestList(cases)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")

	require.Len(t, lines, 6)
	assert.Equal(t, "TaggedTests", lines[0])
	assert.Contains(t, lines[1], "FastTest [Fast]")
	assert.Contains(t, lines[2], "SlowTest [Slow] timeout=2s")
	assert.Equal(t, "FixtureTests", lines[3])
	assert.Contains(t, lines[4], "TestWithSimpleFixture (fixtures: SimpleFixture)")
	assert.Equal(t, "3 tests", lines[5])
}

func TestFormatTestListEmpty(t *testing.T) {
	assert.Equal(t, reporting.NoTestsMessage+"\n", FormatTestList(nil))
}
