package policies

import (
	"context"
	"errors"
)

var ErrLockNotAcquired = errors.New("policies: lock not acquired")

// Release gives a held lock back. It is safe to call more than once.
type Release func()

// Locker serializes work on one key across every writer that shares the locker.
type Locker interface {
	Acquire(ctx context.Context, key string) (Release, error)
}
