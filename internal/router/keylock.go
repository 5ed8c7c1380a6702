package router

import "sync"

// keyLock serializes work per key. Entries are dropped when the last holder
// unlocks.
type keyLock[K comparable] struct {
	mu sync.Mutex
	m  map[K]*keyEntry
}

type keyEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyLock[K comparable]() *keyLock[K] {
	return &keyLock[K]{m: map[K]*keyEntry{}}
}

// Lock blocks until k is free and returns its unlock func.
func (l *keyLock[K]) Lock(k K) func() {
	l.mu.Lock()
	e, ok := l.m[k]
	if !ok {
		e = &keyEntry{}
		l.m[k] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.m, k)
		}
		l.mu.Unlock()
	}
}

func (l *keyLock[K]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}
