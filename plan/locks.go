package plan

import (
	"sort"
	"sync"
)

// LockSet provides keyed mutual exclusion between units. Each key gets its
// own mutex, created on first use, so units holding disjoint keys run
// concurrently while units sharing a key serialize. A LockSet may be shared
// between plans to serialize across them.
type LockSet struct {
	mu    sync.Mutex // guards the map, not the keyed locks
	locks map[string]*sync.Mutex
}

// NewLockSet creates an empty lock set.
func NewLockSet() *LockSet {
	return &LockSet{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for a single key.
func (l *LockSet) Lock(key string) {
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
}

// Unlock releases the mutex for a single key.
func (l *LockSet) Unlock(key string) {
	l.mu.Lock()
	m, ok := l.locks[key]
	l.mu.Unlock()

	if ok {
		m.Unlock()
	}
}

// LockAll acquires every key in sorted order. The fixed order prevents
// deadlock between units whose key sets overlap.
func (l *LockSet) LockAll(keys []string) {
	for _, k := range sortedUnique(keys) {
		l.Lock(k)
	}
}

// UnlockAll releases every key in reverse sorted order, symmetric with
// LockAll.
func (l *LockSet) UnlockAll(keys []string) {
	sorted := sortedUnique(keys)
	for i := len(sorted) - 1; i >= 0; i-- {
		l.Unlock(sorted[i])
	}
}

// sortedUnique copies, sorts and deduplicates keys. Deduplication matters:
// locking the same key twice in one LockAll would deadlock.
func sortedUnique(keys []string) []string {
	if len(keys) == 0 {
		return nil
	}
	out := make([]string, len(keys))
	copy(out, keys)
	sort.Strings(out)

	n := 1
	for _, k := range out[1:] {
		if k != out[n-1] {
			out[n] = k
			n++
		}
	}
	return out[:n]
}
