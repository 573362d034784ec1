// Package check provides assertion helpers for test bodies. Every helper
// returns nil on success and a *types.AssertionError on mismatch, which the
// runner classifies as a failed test.
package check

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/ethereum-optimism/infra/op-harness/types"
)

// Equal verifies that expected and actual are deeply equal
func Equal(expected, actual any) error {
	if !reflect.DeepEqual(expected, actual) {
		return types.NewAssertionError("check.Equal failed. Expected: <%v>. Actual: <%v>.", expected, actual)
	}
	return nil
}

// NotEqual verifies that notExpected and actual differ
func NotEqual(notExpected, actual any) error {
	if reflect.DeepEqual(notExpected, actual) {
		return types.NewAssertionError("check.NotEqual failed. Value was <%v>, but it should not have been.", actual)
	}
	return nil
}

// True verifies that condition holds
func True(condition bool) error {
	if !condition {
		return types.NewAssertionError("check.True failed.")
	}
	return nil
}

// False verifies that condition does not hold
func False(condition bool) error {
	if condition {
		return types.NewAssertionError("check.False failed.")
	}
	return nil
}

// Nil verifies that value is nil, including typed nil pointers
func Nil(value any) error {
	if !isNil(value) {
		return types.NewAssertionError("check.Nil failed. Value was <%v>.", value)
	}
	return nil
}

// NotNil verifies that value is not nil
func NotNil(value any) error {
	if isNil(value) {
		return types.NewAssertionError("check.NotNil failed. Value was nil.")
	}
	return nil
}

// Panics verifies that fn panics
func Panics(fn func()) (err error) {
	defer func() {
		if r := recover(); r == nil {
			err = types.NewAssertionError("check.Panics failed. Expected a panic, but none occurred.")
		}
	}()
	fn()
	return nil
}

// ErrorIs verifies that err matches target in its chain
func ErrorIs(err, target error) error {
	if !errors.Is(err, target) {
		return types.NewAssertionError("check.ErrorIs failed. Expected: <%v>. Actual: <%v>.", target, err)
	}
	return nil
}

// All returns the first failed check, or nil when every check passed
func All(checks ...error) error {
	for i, err := range checks {
		if err != nil {
			if len(checks) == 1 {
				return err
			}
			return fmt.Errorf("check %d of %d: %w", i+1, len(checks), err)
		}
	}
	return nil
}

func isNil(value any) bool {
	if value == nil {
		return true
	}
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Pointer, reflect.Slice:
		return v.IsNil()
	}
	return false
}
