// Package keylock provides per-key mutual exclusion. The access gate uses
// it to serialize decision evaluation for one identity so two simultaneous
// requests from the same user cannot both start a challenge.
package keylock

import "sync"

// KeyLock hands out one mutex per key, created lazily. Entries live for the
// process lifetime; the key space is bounded by the active user population,
// so there is no eviction.
type KeyLock struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New() *KeyLock {
	return &KeyLock{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for key and returns its release func. Callers must
// defer the release so every exit path unlocks.
func (k *KeyLock) Lock(key string) (unlock func()) {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// Len reports how many keys have been locked at least once.
func (k *KeyLock) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
