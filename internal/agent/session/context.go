package session

import "context"

type cacheCtxKey struct{}

// WithCache binds a session cache to the context for the duration of a turn.
// The tools read it back instead of holding a process-global cache.
func WithCache(ctx context.Context, c *Cache) context.Context {
	return context.WithValue(ctx, cacheCtxKey{}, c)
}

// CacheFrom returns the turn's session cache, if one was bound.
func CacheFrom(ctx context.Context) (*Cache, bool) {
	c, ok := ctx.Value(cacheCtxKey{}).(*Cache)
	return c, ok
}
