// Package sample is an example test module. It exercises fixtures of every
// shape (generator, explicit teardown, asynchronous), tag filtering and
// timeouts. Build it as a plugin from ./plugin and pass the .so to op-harness.
package sample

import (
	"context"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/op-harness/registry"
)

// SimpleFixtureValue is the value yielded by SimpleFixture
const SimpleFixtureValue = 42

// AsyncFixtureValue is eventually delivered by AsyncFixture
const AsyncFixtureValue = "Async Result"

// DisposableResource records whether it has been disposed
type DisposableResource struct {
	disposed atomic.Bool
}

func (d *DisposableResource) Dispose() error {
	d.disposed.Store(true)
	return nil
}

func (d *DisposableResource) IsDisposed() bool {
	return d.disposed.Load()
}

// AsyncResult delivers a value computed in the background
type AsyncResult <-chan string

// Await blocks until the value is available or ctx is done
func (a AsyncResult) Await(ctx context.Context) (string, error) {
	select {
	case v := <-a:
		return v, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func registerFixtures(r *registry.Registry) {
	r.SeqFixture("SimpleFixture", func(yield func(any) bool) {
		log.Debug("Fixture setup", "fixture", "SimpleFixture")
		yield(SimpleFixtureValue)
		log.Debug("Fixture teardown", "fixture", "SimpleFixture")
	})

	r.Fixture("DisposableFixture", func(ctx context.Context) (any, func() error, error) {
		log.Debug("Fixture setup", "fixture", "DisposableFixture")
		res := &DisposableResource{}
		return res, func() error {
			log.Debug("Fixture teardown", "fixture", "DisposableFixture")
			return res.Dispose()
		}, nil
	})

	r.SeqFixture("AsyncFixture", func(yield func(any) bool) {
		log.Debug("Fixture setup", "fixture", "AsyncFixture")
		ch := make(chan string, 1)
		go func() { ch <- AsyncFixtureValue }()
		yield(AsyncResult(ch))
		log.Debug("Fixture teardown", "fixture", "AsyncFixture")
	})
}
