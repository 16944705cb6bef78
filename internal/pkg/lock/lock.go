// Package lock provides keyed locking for persisted-record mutations.
// Every read-modify-write of a storage record happens under that record's
// lock so the session timers, the reconcile ticker, and user actions never
// interleave their whole-record saves.
package lock

import (
	"sync"
)

// keyMutex wraps a mutex with reference counting for cleanup.
type keyMutex struct {
	mu       sync.Mutex
	refCount int
}

// KeyLock provides per-record locking keyed by storage key.
type KeyLock struct {
	locks sync.Map // map[string]*keyMutex
	pool  sync.Pool
}

// NewKeyLock creates a new KeyLock instance.
func NewKeyLock() *KeyLock {
	return &KeyLock{
		pool: sync.Pool{
			New: func() any {
				return &keyMutex{}
			},
		},
	}
}

// getLock retrieves or creates a mutex for the given key.
func (kl *KeyLock) getLock(key string) *keyMutex {
	if v, ok := kl.locks.Load(key); ok {
		return v.(*keyMutex)
	}

	newLock := kl.pool.Get().(*keyMutex)
	newLock.refCount = 0

	// Store or load existing (handles the racing-creator case)
	actual, loaded := kl.locks.LoadOrStore(key, newLock)
	if loaded {
		// Another goroutine created the lock first, return ours to pool
		kl.pool.Put(newLock)
	}
	return actual.(*keyMutex)
}

// Lock acquires the lock for a record key.
// This should be called before any record-modifying operation.
func (kl *KeyLock) Lock(key string) {
	lock := kl.getLock(key)
	lock.mu.Lock()
	lock.refCount++
}

// Unlock releases the lock for a record key.
func (kl *KeyLock) Unlock(key string) {
	if v, ok := kl.locks.Load(key); ok {
		lock := v.(*keyMutex)
		lock.refCount--
		lock.mu.Unlock()
	}
}

// TryLock attempts to acquire the lock without blocking.
// Returns true if the lock was acquired, false otherwise.
func (kl *KeyLock) TryLock(key string) bool {
	lock := kl.getLock(key)
	if lock.mu.TryLock() {
		lock.refCount++
		return true
	}
	return false
}
