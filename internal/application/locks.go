package application

import "sync"

// keyedMutex serializes mutations per entity id. Concurrent transitions on
// the same escrow or token take the same lock; the loser of a race then
// fails the status precondition instead of corrupting counters. Entries are
// never evicted, so the table grows with the set of entity ids a process
// has touched; a deployment that needs bounded memory here would move the
// lock to the storage layer (SELECT ... FOR UPDATE) instead.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = map[string]*sync.Mutex{}
	}
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()
	m.Lock()
	return m.Unlock
}
