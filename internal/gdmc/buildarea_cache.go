package gdmc

import (
	"context"
	"sync"
	"time"

	"github.com/natea/minecraft-mcp-gdpc/internal/geometry"
)

// BuildAreaCache memoizes the authorized build area for a short TTL so
// bursts of writes don't re-query the world server per request.
// A TTL of zero disables caching.
type BuildAreaCache struct {
	client *Client
	ttl    time.Duration

	mu      sync.Mutex
	area    geometry.Box
	fetched time.Time
	valid   bool

	now func() time.Time // test hook
}

func NewBuildAreaCache(client *Client, ttl time.Duration) *BuildAreaCache {
	return &BuildAreaCache{client: client, ttl: ttl, now: time.Now}
}

// Get returns the cached build area or refetches it when stale.
func (b *BuildAreaCache) Get(ctx context.Context) (geometry.Box, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.valid && b.ttl > 0 && b.now().Sub(b.fetched) < b.ttl {
		return b.area, nil
	}
	area, err := b.client.BuildArea(ctx)
	if err != nil {
		return geometry.Box{}, err
	}
	b.area = area
	b.fetched = b.now()
	b.valid = true
	return area, nil
}

// Invalidate drops the cached region; the next Get refetches.
func (b *BuildAreaCache) Invalidate() {
	b.mu.Lock()
	b.valid = false
	b.mu.Unlock()
}
