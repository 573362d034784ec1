package fixture

import (
	"context"
	"errors"
	"iter"

	"github.com/ethereum-optimism/infra/op-harness/types"
)

// ErrNoValue is returned when a generator fixture finishes without yielding
var ErrNoValue = errors.New("fixture generator finished without yielding a value")

// FromSeq adapts a generator-style fixture to a FixtureFunc. The generator
// runs up to its first yield on acquire; releasing the handle resumes it so
// any code after the yield (or deferred inside it) runs as teardown:
//
//	fixture.FromSeq(func(yield func(any) bool) {
//		res := open()
//		defer res.Close()
//		yield(res)
//	})
func FromSeq(seq iter.Seq[any]) types.FixtureFunc {
	return func(ctx context.Context) (any, func() error, error) {
		next, stop := iter.Pull(seq)
		value, ok := next()
		if !ok {
			stop()
			return nil, nil, ErrNoValue
		}
		return value, func() error {
			stop()
			return nil
		}, nil
	}
}
