// Package serial provides the single-writer point for aggregate mutations.
//
// Every read-then-write on an aggregate (a leave balance, a payroll period, a
// swap request, a principal) runs inside Do with the aggregate's key. Two
// dispatches racing on the same key are serialized; unrelated keys proceed in
// parallel across shards. Stores still enforce optimistic versions, so this
// lock is a contention reducer in multi-process deployments, not the only
// guard.
package serial

import (
	"context"
	"time"

	dErrors "github.com/InteriMed/Medishift-sub005/pkg/domain-errors"
)

const numShards = 128

// DefaultTimeout bounds one serialized section when the caller set no deadline.
const DefaultTimeout = 5 * time.Second

// Locker serializes work per aggregate key.
type Locker struct {
	shards  [numShards]chan struct{}
	timeout time.Duration
}

type Option func(*Locker)

func WithTimeout(d time.Duration) Option {
	return func(l *Locker) {
		if d > 0 {
			l.timeout = d
		}
	}
}

func New(opts ...Option) *Locker {
	l := &Locker{timeout: DefaultTimeout}
	for i := range l.shards {
		l.shards[i] = make(chan struct{}, 1)
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Do runs fn while holding the shard for key. Waiting for the shard honours
// ctx, so a stuck writer turns into a timeout instead of a pile-up.
// Sections must not nest: fn may not call Do again.
func (l *Locker) Do(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "serialized section aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	shard := l.shards[hashKey(key)%numShards]
	select {
	case shard <- struct{}{}:
	case <-ctx.Done():
		return dErrors.Wrap(ctx.Err(), dErrors.CodeTimeout, "timed out waiting for "+key)
	}
	defer func() { <-shard }()

	return fn(ctx)
}

// hashKey is FNV-1a.
func hashKey(s string) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}
