package fixture

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-harness/types"
)

// recorder tracks setup/teardown calls across fixture instances
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func trackedFixture(rec *recorder, name string, value any, teardownErr error) types.FixtureProvider {
	return types.FixtureProvider{
		Name: name,
		Func: func(ctx context.Context) (any, func() error, error) {
			rec.add("setup:" + name)
			return value, func() error {
				rec.add("teardown:" + name)
				return teardownErr
			}, nil
		},
	}
}

func newTestManager(t *testing.T, providers ...types.FixtureProvider) *Manager {
	t.Helper()
	m, err := NewManager(providers, log.New())
	require.NoError(t, err)
	return m
}

func TestNewManagerValidation(t *testing.T) {
	noop := func(ctx context.Context) (any, func() error, error) { return nil, nil, nil }

	tests := []struct {
		name      string
		providers []types.FixtureProvider
		errMsg    string
	}{
		{
			name:      "blank name",
			providers: []types.FixtureProvider{{Name: "  ", Func: noop}},
			errMsg:    "cannot be blank",
		},
		{
			name:      "nil func",
			providers: []types.FixtureProvider{{Name: "Simple"}},
			errMsg:    "no provider function",
		},
		{
			name:      "duplicate",
			providers: []types.FixtureProvider{{Name: "Simple", Func: noop}, {Name: "Simple", Func: noop}},
			errMsg:    "more than once",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewManager(tt.providers, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestInstantiateNotFound(t *testing.T) {
	m := newTestManager(t)

	h, err := m.Instantiate("Missing")
	assert.Nil(t, h)
	require.Error(t, err)
	assert.True(t, types.IsFixtureNotFoundError(err))
	assert.Contains(t, err.Error(), "Missing")
}

func TestHandleLifecycle(t *testing.T) {
	rec := &recorder{}
	m := newTestManager(t, trackedFixture(rec, "Simple", 42, nil))

	h, err := m.Instantiate("Simple")
	require.NoError(t, err)
	assert.Equal(t, "Simple", h.Name())

	// Releasing before acquiring does nothing
	require.NoError(t, h.Release())
	assert.Empty(t, rec.list())

	value, err := h.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, value)

	_, err = h.Acquire(context.Background())
	assert.Error(t, err, "second acquire must fail")

	require.NoError(t, h.Release())
	require.NoError(t, h.Release())
	assert.Equal(t, []string{"setup:Simple", "teardown:Simple"}, rec.list())
}

func TestHandleSetupFailure(t *testing.T) {
	m := newTestManager(t,
		types.FixtureProvider{
			Name: "Broken",
			Func: func(ctx context.Context) (any, func() error, error) {
				return nil, nil, errors.New("connection refused")
			},
		},
		types.FixtureProvider{
			Name: "Panicky",
			Func: func(ctx context.Context) (any, func() error, error) {
				panic("setup exploded")
			},
		},
	)

	for _, name := range []string{"Broken", "Panicky"} {
		t.Run(name, func(t *testing.T) {
			h, err := m.Instantiate(name)
			require.NoError(t, err)

			_, err = h.Acquire(context.Background())
			require.Error(t, err)
			var fixErr *types.FixtureError
			require.ErrorAs(t, err, &fixErr)
			assert.Equal(t, types.FixturePhaseSetup, fixErr.Phase)
			assert.Equal(t, name, fixErr.Name)
			assert.NoError(t, h.Release())
		})
	}
}

func TestHandleTeardownPanic(t *testing.T) {
	m := newTestManager(t, types.FixtureProvider{
		Name: "Fragile",
		Func: func(ctx context.Context) (any, func() error, error) {
			return "value", func() error { panic("teardown exploded") }, nil
		},
	})

	h, err := m.Instantiate("Fragile")
	require.NoError(t, err)
	_, err = h.Acquire(context.Background())
	require.NoError(t, err)

	err = h.Release()
	var fixErr *types.FixtureError
	require.ErrorAs(t, err, &fixErr)
	assert.Equal(t, types.FixturePhaseTeardown, fixErr.Phase)
	assert.Contains(t, err.Error(), "teardown exploded")
}

func TestInstancesAreIndependent(t *testing.T) {
	m := newTestManager(t, types.FixtureProvider{
		Name: "TestList",
		Func: func(ctx context.Context) (any, func() error, error) {
			list := []int{1, 2, 3}
			return &list, nil, nil
		},
	})

	first, err := m.Instantiate("TestList")
	require.NoError(t, err)
	second, err := m.Instantiate("TestList")
	require.NoError(t, err)
	require.NotSame(t, first, second)

	a, err := first.Acquire(context.Background())
	require.NoError(t, err)
	listA := a.(*[]int)
	*listA = append(*listA, 4)

	b, err := second.Acquire(context.Background())
	require.NoError(t, err)
	listB := b.(*[]int)

	assert.Len(t, *listA, 4)
	assert.Equal(t, []int{1, 2, 3}, *listB)
}

func TestAcquireAllOrderAndRelease(t *testing.T) {
	rec := &recorder{}
	m := newTestManager(t,
		trackedFixture(rec, "First", 1, nil),
		trackedFixture(rec, "Second", "two", nil),
		trackedFixture(rec, "Third", 3.0, nil),
	)

	scope, values, err := m.AcquireAll(context.Background(), []string{"Second", "First", "Third"})
	require.NoError(t, err)
	assert.Equal(t, []any{"two", 1, 3.0}, values)
	assert.Equal(t, 3, scope.Len())

	assert.Empty(t, scope.Release())
	assert.Equal(t, []string{
		"setup:Second", "setup:First", "setup:Third",
		"teardown:Third", "teardown:First", "teardown:Second",
	}, rec.list())

	// A released scope has nothing left to release
	assert.Empty(t, scope.Release())
	assert.Len(t, rec.list(), 6)
}

func TestAcquireAllPartialFailureReleasesAcquired(t *testing.T) {
	rec := &recorder{}
	m := newTestManager(t,
		trackedFixture(rec, "First", 1, nil),
		trackedFixture(rec, "Second", 2, nil),
	)

	scope, values, err := m.AcquireAll(context.Background(), []string{"First", "Missing", "Second"})
	require.Error(t, err)
	assert.True(t, types.IsFixtureNotFoundError(err))
	assert.Nil(t, values)
	require.Equal(t, 1, scope.Len())

	scope.Release()
	assert.Equal(t, []string{"setup:First", "teardown:First"}, rec.list())
}

func TestScopeReleaseToleratesFailures(t *testing.T) {
	rec := &recorder{}
	m := newTestManager(t,
		trackedFixture(rec, "Good", 1, nil),
		trackedFixture(rec, "Bad", 2, errors.New("disk full")),
		trackedFixture(rec, "AlsoGood", 3, nil),
	)

	scope, _, err := m.AcquireAll(context.Background(), []string{"Good", "Bad", "AlsoGood"})
	require.NoError(t, err)

	errs := scope.Release()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "disk full")
	assert.Equal(t, []string{
		"setup:Good", "setup:Bad", "setup:AlsoGood",
		"teardown:AlsoGood", "teardown:Bad", "teardown:Good",
	}, rec.list())
}

func TestAcquireAllCancelledContext(t *testing.T) {
	rec := &recorder{}
	m := newTestManager(t, trackedFixture(rec, "First", 1, nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	scope, _, err := m.AcquireAll(ctx, []string{"First"})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, scope.Len())
	assert.Empty(t, rec.list())
}
