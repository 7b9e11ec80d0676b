package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var ErrLockNotAcquired = errors.New("lock not acquired")

// Locker guards a critical section per key. fn runs only while the key is held.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

type keyEntry struct {
	sem  chan struct{}
	refs int
}

// KeyedMutex is an in-process Locker. Waiters on the same key queue up; unrelated keys
// never block each other. Entries are dropped once no goroutine references them.
type KeyedMutex struct {
	mu   sync.Mutex
	keys map[string]*keyEntry
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{keys: make(map[string]*keyEntry)}
}

func (m *KeyedMutex) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	e := m.ref(key)
	defer m.unref(key, e)

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("%w: %s: %v", ErrLockNotAcquired, key, ctx.Err())
	}
	defer func() { <-e.sem }()

	return fn(ctx)
}

func (m *KeyedMutex) ref(key string) *keyEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.keys[key]
	if !ok {
		e = &keyEntry{sem: make(chan struct{}, 1)}
		m.keys[key] = e
	}
	e.refs++
	return e
}

func (m *KeyedMutex) unref(key string, e *keyEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(m.keys, key)
	}
}

// Len reports how many keys are currently held or awaited.
func (m *KeyedMutex) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.keys)
}
