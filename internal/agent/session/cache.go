package session

import (
	"sort"
	"sync"

	"github.com/storefront-agent/server/internal/agent/model"
)

// Cache is the per-session record of what the user was last shown.
// Invariant: its contents equal exactly the result of the session's most
// recent successful filter call. Replace swaps the whole mapping; there is
// no merge or partial update path.
type Cache struct {
	mu       sync.RWMutex
	products map[string]model.Product
}

func NewCache() *Cache {
	return &Cache{products: make(map[string]model.Product)}
}

// Replace atomically sets the cache to exactly the given products,
// discarding everything shown before. Products without a handle are not
// admitted; the filter rejects them before they get here.
func (c *Cache) Replace(products []model.Product) {
	next := make(map[string]model.Product, len(products))
	for _, p := range products {
		if p.Handle == "" {
			continue
		}
		next[p.Handle] = p
	}

	c.mu.Lock()
	c.products = next
	c.mu.Unlock()
}

func (c *Cache) Get(handle string) (model.Product, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.products[handle]
	return p, ok
}

func (c *Cache) Has(handle string) bool {
	_, ok := c.Get(handle)
	return ok
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.products)
}

// Handles returns the cached handles in sorted order.
func (c *Cache) Handles() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	handles := make([]string, 0, len(c.products))
	for handle := range c.products {
		handles = append(handles, handle)
	}
	sort.Strings(handles)
	return handles
}

// Snapshot copies the current contents for turn rollback.
func (c *Cache) Snapshot() map[string]model.Product {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snap := make(map[string]model.Product, len(c.products))
	for handle, p := range c.products {
		snap[handle] = p
	}
	return snap
}

// Restore reinstates a snapshot taken before a failed turn.
func (c *Cache) Restore(snap map[string]model.Product) {
	next := make(map[string]model.Product, len(snap))
	for handle, p := range snap {
		next[handle] = p
	}

	c.mu.Lock()
	c.products = next
	c.mu.Unlock()
}
