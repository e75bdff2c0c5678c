package index

import "sync"

// HandleCache is a process-wide map from alias to a shared open index
// handle, behind a reader-writer lock with double-checked acquisition.
// Handles are fully loaded in memory, so a reader that obtained one
// before an atomic swap keeps searching the old state safely.
type HandleCache struct {
	mu      sync.RWMutex
	handles map[string]*Handle
}

// NewHandleCache creates an empty cache.
func NewHandleCache() *HandleCache {
	return &HandleCache{handles: make(map[string]*Handle)}
}

// Get returns the cached handle for alias, opening it via open() on a
// miss. The open runs under the exclusive lock after a re-check, so
// concurrent readers racing on a cold alias open the index once.
func (c *HandleCache) Get(alias string, open func() (*Handle, error)) (*Handle, error) {
	c.mu.RLock()
	if h, ok := c.handles[alias]; ok {
		c.mu.RUnlock()
		return h, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Another writer may have inserted between the locks.
	if h, ok := c.handles[alias]; ok {
		return h, nil
	}

	h, err := open()
	if err != nil {
		return nil, err
	}
	c.handles[alias] = h
	return h, nil
}

// Invalidate removes the entry for alias. Searches in flight continue
// on their previously obtained handle.
func (c *HandleCache) Invalidate(alias string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.handles, alias)
}

// Len reports the number of cached handles.
func (c *HandleCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.handles)
}
