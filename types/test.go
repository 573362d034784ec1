// Package types contains the metadata and result model shared across the harness
package types

import (
	"context"
	"slices"
	"time"
)

// TestOutcome represents the terminal classification of a test execution
type TestOutcome string

const (
	TestOutcomePassed   TestOutcome = "pass"
	TestOutcomeFailed   TestOutcome = "fail"
	TestOutcomeError    TestOutcome = "error"
	TestOutcomeTimedOut TestOutcome = "timeout"
)

// AllOutcomes lists every outcome in reporting order
var AllOutcomes = []TestOutcome{TestOutcomePassed, TestOutcomeFailed, TestOutcomeError, TestOutcomeTimedOut}

// String implements the Stringer interface for TestOutcome
func (o TestOutcome) String() string {
	return string(o)
}

// Label returns the human readable name of the outcome
func (o TestOutcome) Label() string {
	switch o {
	case TestOutcomePassed:
		return "Passed"
	case TestOutcomeFailed:
		return "Failed"
	case TestOutcomeError:
		return "Error"
	case TestOutcomeTimedOut:
		return "TimedOut"
	default:
		return string(o)
	}
}

// TestFunc is an invocable test body. The instance is the freshly constructed
// owning-class value and fixtures holds the injected fixture values in
// binding order. ctx is cancelled once the test's deadline passes; bodies that
// ignore it keep running in the background after the result is recorded.
type TestFunc func(ctx context.Context, instance any, fixtures []any) error

// TestClass identifies the owner of a group of test methods
type TestClass struct {
	Name string
	New  func() any // constructs a fresh instance; nil yields a nil instance
}

// TestCase describes one discovered, independently runnable test.
// It is read-only after discovery.
type TestCase struct {
	Class    TestClass
	Method   string
	Tags     []string
	Fixtures []string // fixture-name bindings, in declaration order
	Body     TestFunc
	Timeout  time.Duration // overrides the run timeout when > 0
}

// Name returns the display name of the test case
func (tc TestCase) Name() string {
	if tc.Class.Name == "" {
		return tc.Method
	}
	return tc.Class.Name + "." + tc.Method
}

// TestResult captures the outcome of a single test invocation.
// It is never mutated after being handed to the aggregator.
type TestResult struct {
	Name     string
	Class    string
	Method   string
	Outcome  TestOutcome
	Duration time.Duration
	Message  string   // empty iff Outcome is TestOutcomePassed
	Tags     []string // copied verbatim from the TestCase
	Fixtures []string
}

// NewTestResult creates a result skeleton for the given test case
func NewTestResult(tc TestCase) *TestResult {
	return &TestResult{
		Name:     tc.Name(),
		Class:    tc.Class.Name,
		Method:   tc.Method,
		Tags:     slices.Clone(tc.Tags),
		Fixtures: slices.Clone(tc.Fixtures),
	}
}

// Passed reports whether the test passed
func (tr *TestResult) Passed() bool {
	return tr.Outcome == TestOutcomePassed
}
