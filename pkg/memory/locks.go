package memory

import "sync"

// LockRegistry maps user IDs to mutexes, created lazily on first
// access. Access to the map itself is guarded by its own mutex so two
// concurrent requests for a brand-new user still receive the same
// lock. Locks for different users are fully independent.
type LockRegistry struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLockRegistry creates an empty registry.
func NewLockRegistry() *LockRegistry {
	return &LockRegistry{locks: make(map[string]*sync.Mutex)}
}

// Get returns the mutex for userID, creating it on first access.
func (r *LockRegistry) Get(userID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[userID] = lock
	}
	return lock
}

// Lock acquires the user's mutex and returns the unlock function:
//
//	defer locks.Lock(userID)()
func (r *LockRegistry) Lock(userID string) func() {
	lock := r.Get(userID)
	lock.Lock()
	return lock.Unlock
}
