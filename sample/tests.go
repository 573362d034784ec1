package sample

import (
	"context"
	"time"

	"github.com/ethereum-optimism/infra/op-harness/check"
	"github.com/ethereum-optimism/infra/op-harness/registry"
)

// SlowTestDuration is how long TaggedTests.SlowTest sleeps
const SlowTestDuration = 100 * time.Millisecond

// HangDuration outlasts the default 60s test timeout
const HangDuration = 61 * time.Second

// Suite returns a registry holding the sample fixtures and tests
func Suite() *registry.Registry {
	r := registry.New()
	registerFixtures(r)
	registerFixtureTests(r)
	registerTaggedTests(r)
	registerTimeoutTests(r)
	registerAssertionTests(r)
	return r
}

type FixtureTests struct{}

func registerFixtureTests(r *registry.Registry) {
	c := registry.NewClass[FixtureTests](r, "FixtureTests")

	r.Test(c, "TestWithSimpleFixture", registry.Method((*FixtureTests).TestWithSimpleFixture),
		registry.WithFixtures("SimpleFixture"))
	r.Test(c, "TestWithDisposableFixture", registry.Method((*FixtureTests).TestWithDisposableFixture),
		registry.WithFixtures("DisposableFixture"))
	r.Test(c, "TestWithAsyncFixture", registry.Method((*FixtureTests).TestWithAsyncFixture),
		registry.WithFixtures("AsyncFixture"))
	r.Test(c, "TestWithMultipleFixtures", registry.Method((*FixtureTests).TestWithMultipleFixtures),
		registry.WithFixtures("SimpleFixture", "DisposableFixture"))
}

func (*FixtureTests) TestWithSimpleFixture(ctx context.Context, fixtures []any) error {
	return check.Equal(SimpleFixtureValue, fixtures[0])
}

func (*FixtureTests) TestWithDisposableFixture(ctx context.Context, fixtures []any) error {
	res, err := registry.Arg[*DisposableResource](fixtures, 0)
	if err != nil {
		return err
	}
	return check.All(
		check.NotNil(res),
		check.False(res.IsDisposed()),
	)
}

func (*FixtureTests) TestWithAsyncFixture(ctx context.Context, fixtures []any) error {
	async, err := registry.Arg[AsyncResult](fixtures, 0)
	if err != nil {
		return err
	}
	v, err := async.Await(ctx)
	if err != nil {
		return err
	}
	return check.Equal(AsyncFixtureValue, v)
}

func (*FixtureTests) TestWithMultipleFixtures(ctx context.Context, fixtures []any) error {
	res, err := registry.Arg[*DisposableResource](fixtures, 1)
	if err != nil {
		return err
	}
	return check.All(
		check.Equal(SimpleFixtureValue, fixtures[0]),
		check.NotNil(res),
	)
}

func registerTaggedTests(r *registry.Registry) {
	c := r.Class("TaggedTests", nil)

	r.Test(c, "FastTest", func(context.Context, any, []any) error {
		return check.True(true)
	}, registry.WithTags("Fast"))

	r.Test(c, "SlowTest", func(ctx context.Context, _ any, _ []any) error {
		time.Sleep(SlowTestDuration)
		return check.True(true)
	}, registry.WithTags("Slow"))
}

func registerTimeoutTests(r *registry.Registry) {
	c := r.Class("TimeoutTests", nil)

	r.Test(c, "TestThatPasses", func(context.Context, any, []any) error {
		return check.True(true)
	})

	// ignores ctx on purpose: the body keeps running after its timeout
	r.Test(c, "TestThatTimesOut", func(context.Context, any, []any) error {
		time.Sleep(HangDuration)
		return nil
	})
}

func registerAssertionTests(r *registry.Registry) {
	c := r.Class("AssertionTests", nil)

	r.Test(c, "TestWrongAnswer", func(context.Context, any, []any) error {
		return check.Equal(SimpleFixtureValue, 7)
	}, registry.WithTags("Broken"))
}
