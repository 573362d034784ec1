// Package fixture turns named fixture providers into two-phase lifecycle
// handles. Every Instantiate call starts a fresh lifecycle; nothing is cached
// or shared between test invocations.
package fixture

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/log"
	"github.com/sourcegraph/conc/panics"

	"github.com/ethereum-optimism/infra/op-harness/metrics"
	"github.com/ethereum-optimism/infra/op-harness/types"
)

// Manager resolves fixture names to providers
type Manager struct {
	providers map[string]types.FixtureFunc
	log       log.Logger
}

// NewManager creates a manager over the given providers.
// Names must be non-blank and unique.
func NewManager(providers []types.FixtureProvider, logger log.Logger) (*Manager, error) {
	if logger == nil {
		logger = log.New()
	}

	m := &Manager{
		providers: make(map[string]types.FixtureFunc, len(providers)),
		log:       logger.New("component", "fixtures"),
	}
	for _, p := range providers {
		if strings.TrimSpace(p.Name) == "" {
			return nil, errors.New("fixture name cannot be blank")
		}
		if p.Func == nil {
			return nil, fmt.Errorf("fixture %q has no provider function", p.Name)
		}
		if _, exists := m.providers[p.Name]; exists {
			return nil, fmt.Errorf("fixture %q registered more than once", p.Name)
		}
		m.providers[p.Name] = p.Func
	}
	return m, nil
}

// Has reports whether a provider is registered under name
func (m *Manager) Has(name string) bool {
	_, ok := m.providers[name]
	return ok
}

// Len returns the number of registered providers
func (m *Manager) Len() int {
	return len(m.providers)
}

// Instantiate starts a fresh lifecycle instance for the named provider
func (m *Manager) Instantiate(name string) (*Handle, error) {
	open, ok := m.providers[name]
	if !ok {
		return nil, &types.FixtureNotFoundError{Name: name}
	}
	return &Handle{name: name, open: open}, nil
}

// AcquireAll instantiates and acquires the named fixtures sequentially, in
// order. The returned scope holds every handle acquired so far, even when an
// error is returned, and must always be released by the caller.
func (m *Manager) AcquireAll(ctx context.Context, names []string) (*Scope, []any, error) {
	scope := &Scope{log: m.log}
	values := make([]any, 0, len(names))

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return scope, nil, err
		}
		h, err := m.Instantiate(name)
		if err != nil {
			return scope, nil, err
		}
		value, err := h.Acquire(ctx)
		if err != nil {
			return scope, nil, err
		}
		m.log.Trace("Fixture acquired", "fixture", name)
		scope.handles = append(scope.handles, h)
		values = append(values, value)
	}
	return scope, values, nil
}

type handleState int

const (
	stateNew handleState = iota
	stateAcquired
	stateReleased
)

// Handle wraps one fixture lifecycle instance for one test invocation.
// Acquire and Release must be called in that order, by a single owner.
type Handle struct {
	name     string
	open     types.FixtureFunc
	state    handleState
	teardown func() error
}

// Name returns the fixture name
func (h *Handle) Name() string {
	return h.name
}

// Acquire runs the provider's setup logic and returns the value to inject
func (h *Handle) Acquire(ctx context.Context) (any, error) {
	if h.state != stateNew {
		return nil, fmt.Errorf("fixture %q cannot be acquired twice", h.name)
	}

	var (
		value    any
		teardown func() error
		err      error
		catcher  panics.Catcher
	)
	catcher.Try(func() {
		value, teardown, err = h.open(ctx)
	})
	if r := catcher.Recovered(); r != nil {
		err = fmt.Errorf("panic: %v", r.Value)
	}
	if err != nil {
		// setup never yielded, so there is nothing to tear down
		h.state = stateReleased
		return nil, &types.FixtureError{Name: h.name, Phase: types.FixturePhaseSetup, Err: err}
	}

	h.state = stateAcquired
	h.teardown = teardown
	return value, nil
}

// Release runs the provider's teardown logic. It only has an effect on an
// acquired handle and only the first time it is called.
func (h *Handle) Release() error {
	if h.state != stateAcquired {
		return nil
	}
	h.state = stateReleased
	if h.teardown == nil {
		return nil
	}

	var (
		err     error
		catcher panics.Catcher
	)
	catcher.Try(func() {
		err = h.teardown()
	})
	h.teardown = nil
	if r := catcher.Recovered(); r != nil {
		err = fmt.Errorf("panic: %v", r.Value)
	}
	if err != nil {
		return &types.FixtureError{Name: h.name, Phase: types.FixturePhaseTeardown, Err: err}
	}
	return nil
}

// Scope owns the handles acquired for a single test invocation
type Scope struct {
	handles []*Handle
	log     log.Logger
}

// Len returns the number of acquired handles
func (s *Scope) Len() int {
	return len(s.handles)
}

// Release tears down every acquired handle in reverse order. Failures are
// logged and returned for diagnostics; they never stop the remaining releases.
func (s *Scope) Release() []error {
	var errs []error
	for i := len(s.handles) - 1; i >= 0; i-- {
		h := s.handles[i]
		if err := h.Release(); err != nil {
			s.log.Warn("Fixture teardown failed", "fixture", h.Name(), "error", err)
			metrics.RecordFixtureReleaseError(h.Name())
			errs = append(errs, err)
		}
	}
	s.handles = nil
	return errs
}
