package infrastructure

import (
	"path/filepath"
	"sync"
)

// rootLocks maps a cleaned absolute cache root to the lock shared by every
// component that touches it.
var rootLocks sync.Map

// RootLock returns the process-wide lock for a cache root. Scans take the read
// side; removals, clears and artifact placement take the write side.
func RootLock(root string) *sync.RWMutex {
	key := filepath.Clean(root)
	if abs, err := filepath.Abs(key); err == nil {
		key = abs
	}
	lock, _ := rootLocks.LoadOrStore(key, &sync.RWMutex{})
	return lock.(*sync.RWMutex)
}
