package types

import (
	"errors"
	"fmt"
)

// FixturePhase names the half of a fixture lifecycle that failed
type FixturePhase string

const (
	FixturePhaseSetup    FixturePhase = "setup"
	FixturePhaseTeardown FixturePhase = "teardown"
)

// AssertionError is the explicit expected-mismatch signal raised by test code.
// A test body returning or panicking with it is classified as Failed.
type AssertionError struct {
	Message string
}

func (e *AssertionError) Error() string {
	return e.Message
}

// NewAssertionError creates a new AssertionError
func NewAssertionError(format string, args ...any) *AssertionError {
	return &AssertionError{Message: fmt.Sprintf(format, args...)}
}

// IsAssertionError checks if the error is or wraps an AssertionError
func IsAssertionError(err error) bool {
	var assertErr *AssertionError
	return err != nil && errors.As(err, &assertErr)
}

// FixtureNotFoundError is returned when a binding references an unregistered fixture
type FixtureNotFoundError struct {
	Name string
}

func (e *FixtureNotFoundError) Error() string {
	return fmt.Sprintf("fixture %q not found", e.Name)
}

// IsFixtureNotFoundError checks if the error is or wraps a FixtureNotFoundError
func IsFixtureNotFoundError(err error) bool {
	var nfErr *FixtureNotFoundError
	return err != nil && errors.As(err, &nfErr)
}

// FixtureError wraps a fault raised by fixture setup or teardown logic
type FixtureError struct {
	Name  string
	Phase FixturePhase
	Err   error
}

func (e *FixtureError) Error() string {
	return fmt.Sprintf("fixture %q %s failed: %v", e.Name, e.Phase, e.Err)
}

// Unwrap implements the errors.Unwrap interface
func (e *FixtureError) Unwrap() error {
	return e.Err
}

// ProviderError signals that the metadata provider itself failed.
// It aborts the run before any results are produced.
type ProviderError struct {
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("metadata provider failed: %v", e.Err)
}

// Unwrap implements the errors.Unwrap interface
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsProviderError checks if the error is or wraps a ProviderError
func IsProviderError(err error) bool {
	var provErr *ProviderError
	return err != nil && errors.As(err, &provErr)
}
