package store

import "sync"

// Per-key mutexes serialize read-modify-write cycles on a single row
// (conversation, marker, watermark). All coordination is scoped to the key
// being mutated; there is no global write lock.
var (
	rowLocks = make(map[string]*sync.Mutex)
	locksMu  sync.Mutex
)

// lockRow returns the mutex for the given row key, creating it if needed.
func lockRow(key string) *sync.Mutex {
	locksMu.Lock()
	defer locksMu.Unlock()
	if l, ok := rowLocks[key]; ok {
		return l
	}
	l := &sync.Mutex{}
	rowLocks[key] = l
	return l
}
