package registry

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/ethereum-optimism/infra/op-harness/fixture"
	"github.com/ethereum-optimism/infra/op-harness/types"
)

// Provider exposes discovered test cases and fixture providers to the runner.
// An error from either method aborts the run before any test executes.
type Provider interface {
	TestCases() ([]types.TestCase, error)
	Fixtures() ([]types.FixtureProvider, error)
}

var _ Provider = (*Registry)(nil)

// Registry is a declarative registration table of test classes, test cases
// and fixture providers. Registration problems are collected and reported
// when the registry is enumerated.
type Registry struct {
	mu       sync.RWMutex
	classes  map[string]bool
	tests    []types.TestCase
	names    map[string]bool
	fixtures []types.FixtureProvider
	errs     []error
}

// New creates an empty registry
func New() *Registry {
	return &Registry{
		classes: make(map[string]bool),
		names:   make(map[string]bool),
	}
}

// TestOption customises a registered test case
type TestOption func(*types.TestCase)

// WithTags declares tags on a test case
func WithTags(tags ...string) TestOption {
	return func(tc *types.TestCase) {
		tc.Tags = append(tc.Tags, tags...)
	}
}

// WithFixtures binds fixtures to a test case, in injection order
func WithFixtures(names ...string) TestOption {
	return func(tc *types.TestCase) {
		tc.Fixtures = append(tc.Fixtures, names...)
	}
}

// WithTimeout overrides the run timeout for a test case
func WithTimeout(timeout time.Duration) TestOption {
	return func(tc *types.TestCase) {
		tc.Timeout = timeout
	}
}

// Class registers a test class whose instances are built by newFn
func (r *Registry) Class(name string, newFn func() any) types.TestClass {
	r.mu.Lock()
	defer r.mu.Unlock()

	if strings.TrimSpace(name) == "" {
		r.errs = append(r.errs, errors.New("class name cannot be blank"))
	} else if r.classes[name] {
		r.errs = append(r.errs, fmt.Errorf("class %q registered more than once", name))
	}
	r.classes[name] = true
	return types.TestClass{Name: name, New: newFn}
}

// NewClass registers a test class backed by the zero value of C
func NewClass[C any](r *Registry, name string) types.TestClass {
	return r.Class(name, func() any { return new(C) })
}

// Test registers a test method on class
func (r *Registry) Test(class types.TestClass, method string, body types.TestFunc, opts ...TestOption) {
	tc := types.TestCase{
		Class:  class,
		Method: method,
		Body:   body,
	}
	for _, opt := range opts {
		opt(&tc)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := validateTestCase(tc); err != nil {
		r.errs = append(r.errs, err)
		return
	}
	if r.names[tc.Name()] {
		r.errs = append(r.errs, fmt.Errorf("test %q registered more than once", tc.Name()))
		return
	}
	r.names[tc.Name()] = true
	r.tests = append(r.tests, tc)
}

// Fixture registers a named fixture provider
func (r *Registry) Fixture(name string, fn types.FixtureFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if strings.TrimSpace(name) == "" {
		r.errs = append(r.errs, errors.New("fixture name cannot be blank"))
		return
	}
	if fn == nil {
		r.errs = append(r.errs, fmt.Errorf("fixture %q has no provider function", name))
		return
	}
	for _, existing := range r.fixtures {
		if existing.Name == name {
			r.errs = append(r.errs, fmt.Errorf("fixture %q registered more than once", name))
			return
		}
	}
	r.fixtures = append(r.fixtures, types.FixtureProvider{Name: name, Func: fn})
}

// SeqFixture registers a generator-style fixture provider
func (r *Registry) SeqFixture(name string, seq iter.Seq[any]) {
	r.Fixture(name, fixture.FromSeq(seq))
}

// TestCases implements Provider
func (r *Registry) TestCases() ([]types.TestCase, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := errors.Join(r.errs...); err != nil {
		return nil, fmt.Errorf("invalid registry: %w", err)
	}
	return slices.Clone(r.tests), nil
}

// Fixtures implements Provider
func (r *Registry) Fixtures() ([]types.FixtureProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := errors.Join(r.errs...); err != nil {
		return nil, fmt.Errorf("invalid registry: %w", err)
	}
	return slices.Clone(r.fixtures), nil
}

func validateTestCase(tc types.TestCase) error {
	if strings.TrimSpace(tc.Method) == "" {
		return fmt.Errorf("test in class %q has a blank method name", tc.Class.Name)
	}
	if tc.Body == nil {
		return fmt.Errorf("test %q has no body", tc.Name())
	}
	for _, tag := range tc.Tags {
		if strings.TrimSpace(tag) == "" {
			return fmt.Errorf("test %q declares a blank tag", tc.Name())
		}
	}
	for _, name := range tc.Fixtures {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("test %q binds a blank fixture name", tc.Name())
		}
	}
	if tc.Timeout < 0 {
		return fmt.Errorf("test %q has a negative timeout", tc.Name())
	}
	return nil
}

// Method adapts a typed method on *C into a TestFunc
func Method[C any](fn func(c *C, ctx context.Context, fixtures []any) error) types.TestFunc {
	return func(ctx context.Context, instance any, fixtures []any) error {
		c, ok := instance.(*C)
		if !ok {
			return fmt.Errorf("test instance has type %T, want *%T", instance, *new(C))
		}
		return fn(c, ctx, fixtures)
	}
}

// Arg returns the fixture value at index i as a T
func Arg[T any](fixtures []any, i int) (T, error) {
	var zero T
	if i < 0 || i >= len(fixtures) {
		return zero, fmt.Errorf("fixture argument %d out of range (have %d)", i, len(fixtures))
	}
	v, ok := fixtures[i].(T)
	if !ok {
		return zero, fmt.Errorf("fixture argument %d has type %T, want %T", i, fixtures[i], zero)
	}
	return v, nil
}
