package services

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// KeyLocker serializes work per key. Waiting for a key honors ctx, so a
// caller queued behind a long sync can give up.
type KeyLocker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	sem  *semaphore.Weighted
	refs int
}

func NewKeyLocker() *KeyLocker {
	return &KeyLocker{locks: make(map[string]*keyLock)}
}

// Lock blocks until key is free or ctx is done. The returned func releases
// the key and must be called exactly once.
func (l *KeyLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{sem: semaphore.NewWeighted(1)}
		l.locks[key] = kl
	}
	kl.refs++
	l.mu.Unlock()

	if err := kl.sem.Acquire(ctx, 1); err != nil {
		l.release(key, kl, false)
		return nil, err
	}
	var once sync.Once
	return func() { once.Do(func() { l.release(key, kl, true) }) }, nil
}

func (l *KeyLocker) release(key string, kl *keyLock, held bool) {
	if held {
		kl.sem.Release(1)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, key)
	}
}

// size is the number of keys currently tracked.
func (l *KeyLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
