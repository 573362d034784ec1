package check

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-harness/types"
)

func TestEqual(t *testing.T) {
	assert.NoError(t, Equal(42, 42))
	assert.NoError(t, Equal([]int{1, 2}, []int{1, 2}))

	err := Equal(42, 7)
	require.Error(t, err)
	assert.True(t, types.IsAssertionError(err))
	assert.Equal(t, "check.Equal failed. Expected: <42>. Actual: <7>.", err.Error())
}

func TestNotEqual(t *testing.T) {
	assert.NoError(t, NotEqual(1, 2))
	err := NotEqual("a", "a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "<a>")
}

func TestBooleans(t *testing.T) {
	assert.NoError(t, True(true))
	assert.Error(t, True(false))
	assert.NoError(t, False(false))
	assert.Error(t, False(true))
}

func TestNilChecks(t *testing.T) {
	var nilPtr *int
	var nilMap map[string]int
	n := 3

	tests := []struct {
		name  string
		value any
		isNil bool
	}{
		{name: "untyped nil", value: nil, isNil: true},
		{name: "typed nil pointer", value: nilPtr, isNil: true},
		{name: "nil map", value: nilMap, isNil: true},
		{name: "pointer", value: &n, isNil: false},
		{name: "int", value: 0, isNil: false},
		{name: "string", value: "", isNil: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.isNil {
				assert.NoError(t, Nil(tt.value))
				assert.Error(t, NotNil(tt.value))
			} else {
				assert.Error(t, Nil(tt.value))
				assert.NoError(t, NotNil(tt.value))
			}
		})
	}
}

func TestPanics(t *testing.T) {
	assert.NoError(t, Panics(func() { panic("boom") }))

	err := Panics(func() {})
	require.Error(t, err)
	assert.True(t, types.IsAssertionError(err))
}

func TestErrorIs(t *testing.T) {
	sentinel := errors.New("sentinel")
	assert.NoError(t, ErrorIs(fmt.Errorf("wrapped: %w", sentinel), sentinel))
	assert.Error(t, ErrorIs(errors.New("other"), sentinel))
}

func TestAll(t *testing.T) {
	assert.NoError(t, All(True(true), Equal(1, 1)))

	err := All(True(true), Equal(42, 7), False(true))
	require.Error(t, err)
	assert.True(t, types.IsAssertionError(err))
	assert.Contains(t, err.Error(), "check 2 of 3")
	assert.Contains(t, err.Error(), "Expected: <42>. Actual: <7>.")

	single := All(Equal(1, 2))
	assert.Equal(t, "check.Equal failed. Expected: <1>. Actual: <2>.", single.Error())
}
