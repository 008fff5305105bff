package shared

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// Flight coalesces concurrent calls for the same key into one execution.
// A cancelled waiter returns early with ctx.Err(); the leader keeps running
// and publishes its result to the remaining waiters.
type Flight struct {
	group singleflight.Group
}

// Do runs fn under the key, sharing one in-flight execution per key.
func (f *Flight) Do(ctx context.Context, key string, fn func() (any, error)) (any, error, bool) {
	ch := f.group.DoChan(key, func() (any, error) {
		defer f.group.Forget(key)
		return fn()
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err(), false
	case res := <-ch:
		return res.Val, res.Err, res.Shared
	}
}
