package types

import "context"

// FixtureFunc starts a fresh fixture lifecycle instance. It runs setup logic
// and returns the value to inject along with a teardown function that is
// invoked once the test body has completed or timed out. teardown may be nil.
type FixtureFunc func(ctx context.Context) (value any, teardown func() error, err error)

// FixtureProvider is a named fixture generator
type FixtureProvider struct {
	Name string
	Func FixtureFunc
}
