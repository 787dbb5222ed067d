package lock

import (
	"context"
	"sync"
	"time"
)

type keyedMutex struct {
	ch   chan struct{}
	refs int
}

// MemoryLocker serialises callers within one process.
type MemoryLocker struct {
	mu   sync.Mutex
	keys map[string]*keyedMutex
	wait time.Duration
}

// NewMemoryLocker returns a locker whose acquisitions give up after wait.
// A zero wait blocks until the context ends.
func NewMemoryLocker(wait time.Duration) *MemoryLocker {
	return &MemoryLocker{keys: make(map[string]*keyedMutex), wait: wait}
}

func (l *MemoryLocker) acquireRef(key string) *keyedMutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	km, ok := l.keys[key]
	if !ok {
		km = &keyedMutex{ch: make(chan struct{}, 1)}
		l.keys[key] = km
	}
	km.refs++
	return km
}

func (l *MemoryLocker) releaseRef(key string, km *keyedMutex) {
	l.mu.Lock()
	defer l.mu.Unlock()
	km.refs--
	if km.refs == 0 {
		delete(l.keys, key)
	}
}

func (l *MemoryLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	km := l.acquireRef(key)
	defer l.releaseRef(key, km)

	waitCtx := ctx
	if l.wait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, l.wait)
		defer cancel()
	}

	select {
	case km.ch <- struct{}{}:
	case <-waitCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrLockNotAcquired
	}
	defer func() { <-km.ch }()

	return fn(ctx)
}
