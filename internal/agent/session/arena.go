package session

import "sync"

// Arena owns one Cache per live conversation so concurrent sessions never
// share display state. Only the session map itself needs guarding; within a
// session, turns run one at a time.
type Arena struct {
	mu       sync.Mutex
	sessions map[string]*Cache
}

func NewArena() *Arena {
	return &Arena{sessions: make(map[string]*Cache)}
}

// Acquire returns the session's cache, creating an empty one on first use.
func (a *Arena) Acquire(conversationID string) *Cache {
	a.mu.Lock()
	defer a.mu.Unlock()
	c, ok := a.sessions[conversationID]
	if !ok {
		c = NewCache()
		a.sessions[conversationID] = c
	}
	return c
}

// End drops the session's cache. A later Acquire starts empty again.
func (a *Arena) End(conversationID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.sessions, conversationID)
}

// Len reports how many sessions currently hold a cache.
func (a *Arena) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.sessions)
}
