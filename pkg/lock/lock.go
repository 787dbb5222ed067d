// Package lock provides per-key mutual exclusion for critical sections that
// span more than one row, such as admitting a booking against a provider's
// daily capacity.
package lock

import (
	"context"
	"errors"
)

var ErrLockNotAcquired = errors.New("lock not acquired")

// Locker runs fn while holding the lock named by key.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}
